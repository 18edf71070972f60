package fbus

import (
	"context"
	"time"
)

// Link bundles the protocol state of one open serial line: the port, the sequence
// counter, the acker and the receiver.
type Link struct {
	ep    Endpoint
	port  Port
	seq   *SeqCounter
	stats *Stats
	acker *Acker
	rx    *Receiver
}

func NewLink(ep Endpoint, port Port, stats *Stats) *Link {
	acker := NewAcker(ep, port, stats)
	return &Link{
		ep:    ep,
		port:  port,
		seq:   NewSeqCounter(),
		stats: stats,
		acker: acker,
		rx:    NewReceiver(ep, port, acker, stats),
	}
}

func (l *Link) write(f []byte) error {
	n, err := l.port.Write(f)
	l.stats.addOut(n)
	return err
}

// Send encodes a command frame with the next sequence number and writes it.
func (l *Link) Send(cmd byte, args []byte) error {
	f, err := Encode(l.ep, l.seq, cmd, args)
	if err != nil {
		return err
	}
	return l.write(f)
}

// SendRaw writes a frame carrying payload as is, followed by the next sequence number.
func (l *Link) SendRaw(cmd byte, payload []byte) error {
	if n := len(payload) + 1; n+n%2 > MaxPayloadLength { // Checking before the counter advances.
		return ErrPayloadTooLarge
	}
	f, err := EncodeRaw(l.ep, cmd, payload, l.seq.Next())
	if err != nil {
		return err
	}
	return l.write(f)
}

func (l *Link) Receive(ctx context.Context, cmd byte, timeout time.Duration) ([]byte, error) {
	return l.rx.Receive(ctx, cmd, timeout)
}

func (l *Link) Seq() *SeqCounter {
	return l.seq
}

func (l *Link) Stats() *Stats {
	return l.stats
}
