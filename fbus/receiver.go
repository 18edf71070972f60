package fbus

import (
	"bytes"
	"context"
	"time"

	"github.com/nonoo/fbusmon/log"
)

const (
	readChunkSize = 256
	// Unconsumed bytes carried over to the next Receive call are capped at this length.
	maxPendingBytes = 4096
)

// Receiver waits for frames addressed to its endpoint, acknowledging every valid one.
type Receiver struct {
	ep    Endpoint
	port  Port
	acker *Acker
	stats *Stats

	// Bytes left unconsumed by a timed out Receive call.
	pending []byte
	readBuf []byte
}

func NewReceiver(ep Endpoint, port Port, acker *Acker, stats *Stats) *Receiver {
	return &Receiver{
		ep:      ep,
		port:    port,
		acker:   acker,
		stats:   stats,
		readBuf: make([]byte, readChunkSize),
	}
}

func (r *Receiver) keep(b []byte) {
	if len(b) > maxPendingBytes {
		b = b[len(b)-maxPendingBytes:]
	}
	if len(b) == 0 {
		r.pending = nil
		return
	}
	r.pending = append([]byte(nil), b...)
}

// Pending returns the number of bytes carried over from the last timed out call.
func (r *Receiver) Pending() int {
	return len(r.pending)
}

func copyPayload(f Frame) []byte {
	p := append([]byte(nil), f.Payload()...)
	for i := range p {
		if p[i] == 0x00 {
			p[i] = nullPlaceholder
		}
	}
	return p
}

// Scans buf from pos. Returns the updated buffer and scan position, and the payload if
// a frame with the wanted command was found.
func (r *Receiver) scan(buf []byte, pos int, cmd byte) ([]byte, int, []byte, error) {
	sig := r.ep.signature()
	for {
		i := bytes.Index(buf[pos:], sig[:])
		if i < 0 {
			// The signature may be split between this and the next read.
			if p := len(buf) - (len(sig) - 1); p > pos {
				pos = p
			}
			return buf, pos, nil, nil
		}
		pos += i

		status, l := Validate(buf, pos)
		switch status {
		case Incomplete:
			return buf, pos, nil, nil
		case Invalid:
			r.stats.add(func(c *StatsSnapshot) { c.BadFrames++ })
			pos++ // False signature match or line noise.
			continue
		}

		f := Frame(buf[pos : pos+l])
		if f.IsAck() {
			r.stats.add(func(c *StatsSnapshot) { c.AcksReceived++ })
			pos++
			continue
		}

		r.stats.add(func(c *StatsSnapshot) { c.Frames++ })
		if err := r.acker.Acknowledge(f.Command(), f.Sequence()); err != nil {
			return buf[pos+l:], 0, nil, err // The frame is consumed even if unacknowledged.
		}

		if f.Command() == cmd {
			return nil, 0, copyPayload(f), nil
		}

		log.Debugf("dropping frame cmd %.2x seq %.2x, waiting for %.2x", f.Command(), f.Sequence(), cmd)
		buf = buf[pos+l:]
		pos = 0
		if len(buf) == 0 {
			buf = nil
		}
	}
}

// Receive returns the payload (without the sequence byte, 0x00 bytes replaced by '.') of
// the first valid frame with the given command. Valid frames with other commands are
// acknowledged and dropped. Returns ErrTimeout if no such frame arrived in time.
func (r *Receiver) Receive(ctx context.Context, cmd byte, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)

	buf := r.pending
	r.pending = nil
	var pos int

	for {
		var payload []byte
		var err error
		buf, pos, payload, err = r.scan(buf, pos, cmd)
		if err != nil {
			r.keep(buf[pos:])
			return nil, err
		}
		if payload != nil {
			return payload, nil
		}

		if err := ctx.Err(); err != nil {
			r.keep(buf[pos:])
			return nil, err
		}
		if !time.Now().Before(deadline) {
			r.keep(buf[pos:])
			r.stats.add(func(c *StatsSnapshot) { c.Timeouts++ })
			return nil, ErrTimeout
		}

		n, err := r.port.Read(r.readBuf)
		if n > 0 {
			r.stats.addIn(n)
			if pos > 0 { // Already scanned bytes are not needed anymore.
				buf = append(buf[:0], buf[pos:]...)
				pos = 0
			}
			buf = append(buf, r.readBuf[:n]...)
		}
		if err != nil {
			r.keep(buf[pos:])
			return nil, err
		}
	}
}
