package fbus

import "sync"

const (
	SeqFirst = 0x40
	SeqLast  = 0x47
)

type seqNum byte

func (s seqNum) inc() seqNum {
	if s >= SeqLast || s < SeqFirst {
		return SeqFirst
	}
	return s + 1
}

// SeqCounter hands out the cyclic sequence numbers of one channel. The zero value starts
// at SeqFirst.
type SeqCounter struct {
	mutex   sync.Mutex
	started bool
	next    seqNum
}

func NewSeqCounter() *SeqCounter {
	return &SeqCounter{started: true, next: SeqFirst}
}

// Next returns the sequence number for the next outgoing frame and advances the counter.
func (s *SeqCounter) Next() byte {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.started {
		s.next = SeqFirst
		s.started = true
	}
	seq := s.next
	s.next = s.next.inc()
	return byte(seq)
}

// Peek returns what Next would return without advancing.
func (s *SeqCounter) Peek() byte {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.started {
		return SeqFirst
	}
	return byte(s.next)
}
