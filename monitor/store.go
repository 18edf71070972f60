package monitor

import (
	"errors"
	"time"
)

var ErrUnavailable = errors.New("snapshot store busy")

const DefaultWait = 100 * time.Millisecond

// Store holds the latest snapshot. Writers and readers both wait a bounded time for the
// lock and give up with ErrUnavailable.
type Store struct {
	sem  chan struct{}
	snap *Snapshot
}

func NewStore() *Store {
	return &Store{
		sem:  make(chan struct{}, 1),
		snap: &Snapshot{},
	}
}

func (s *Store) lock(wait time.Duration) bool {
	select {
	case s.sem <- struct{}{}:
		return true
	default:
	}
	if wait <= 0 {
		return false
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case s.sem <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

func (s *Store) unlock() {
	<-s.sem
}

// Publish installs snap, which must not be modified afterwards.
func (s *Store) Publish(snap *Snapshot, wait time.Duration) error {
	if !s.lock(wait) {
		return ErrUnavailable
	}
	s.snap = snap
	s.unlock()
	return nil
}

// Load returns a copy of the latest snapshot.
func (s *Store) Load(wait time.Duration) (Snapshot, error) {
	if !s.lock(wait) {
		return Snapshot{}, ErrUnavailable
	}
	defer s.unlock()

	return s.snap.clone(), nil
}

// Reset installs the empty snapshot, waiting for the lock as long as needed.
func (s *Store) Reset() {
	s.sem <- struct{}{}
	s.snap = &Snapshot{}
	s.unlock()
}
