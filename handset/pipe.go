package handset

import (
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

const DefaultPollInterval = 10 * time.Millisecond

// One direction of an in-memory serial line.
type pipeBuffer struct {
	mutex  sync.Mutex
	data   []byte
	closed bool
	ready  chan struct{}
}

func newPipeBuffer() *pipeBuffer {
	return &pipeBuffer{ready: make(chan struct{}, 1)}
}

func (b *pipeBuffer) notify() {
	// Non-blocking notify.
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

func (b *pipeBuffer) write(p []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return 0, io.ErrClosedPipe
	}
	b.data = append(b.data, p...)
	b.notify()
	return len(p), nil
}

func (b *pipeBuffer) tryRead(p []byte) (n int, ok bool, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if len(b.data) > 0 {
		n = copy(p, b.data)
		b.data = b.data[n:]
		return n, true, nil
	}
	if b.closed {
		return 0, true, io.EOF
	}
	return 0, false, nil
}

// Waits at most poll for data, returns 0, nil if nothing arrived.
func (b *pipeBuffer) read(p []byte, poll time.Duration) (int, error) {
	if n, ok, err := b.tryRead(p); ok {
		return n, err
	}

	t := time.NewTimer(poll)
	defer t.Stop()
	select {
	case <-b.ready:
	case <-t.C:
	}

	n, _, err := b.tryRead(p)
	return n, err
}

func (b *pipeBuffer) close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.closed = true
	b.notify()
}

// PipeEnd is one side of an in-memory serial line. It also answers the line setup calls
// of a real serial port, so it can stand in for one.
type PipeEnd struct {
	in   *pipeBuffer
	out  *pipeBuffer
	poll time.Duration

	mutex sync.Mutex
	mode  serial.Mode
	dtr   bool
	rts   bool
}

// Pipe returns the two connected ends of an in-memory serial line.
func Pipe() (*PipeEnd, *PipeEnd) {
	a := newPipeBuffer()
	b := newPipeBuffer()
	return &PipeEnd{in: a, out: b, poll: DefaultPollInterval},
		&PipeEnd{in: b, out: a, poll: DefaultPollInterval}
}

func (e *PipeEnd) Read(p []byte) (int, error) {
	e.mutex.Lock()
	poll := e.poll
	e.mutex.Unlock()

	return e.in.read(p, poll)
}

func (e *PipeEnd) Write(p []byte) (int, error) {
	return e.out.write(p)
}

// Close closes both directions, so the other end reads io.EOF.
func (e *PipeEnd) Close() error {
	e.in.close()
	e.out.close()
	return nil
}

func (e *PipeEnd) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return &serial.ModemStatusBits{CTS: e.rts, DSR: e.dtr}, nil
}

func (e *PipeEnd) SetMode(mode *serial.Mode) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.mode = *mode
	return nil
}

func (e *PipeEnd) Mode() serial.Mode {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.mode
}

func (e *PipeEnd) SetDTR(dtr bool) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.dtr = dtr
	return nil
}

func (e *PipeEnd) SetRTS(rts bool) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.rts = rts
	return nil
}

func (e *PipeEnd) Lines() (dtr, rts bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.dtr, e.rts
}

func (e *PipeEnd) SetReadTimeout(t time.Duration) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.poll = t
	return nil
}

// StreamPort turns a blocking reader (like a pty master) into a polled port.
type StreamPort struct {
	rw   io.ReadWriter
	in   *pipeBuffer
	poll time.Duration
}

func NewStreamPort(rw io.ReadWriter, poll time.Duration) *StreamPort {
	p := &StreamPort{rw: rw, in: newPipeBuffer(), poll: poll}
	go p.pump()
	return p
}

func (p *StreamPort) pump() {
	b := make([]byte, 256)
	for {
		n, err := p.rw.Read(b)
		if n > 0 {
			_, _ = p.in.write(b[:n])
		}
		if err != nil {
			p.in.close()
			return
		}
	}
}

func (p *StreamPort) Read(b []byte) (int, error) {
	return p.in.read(b, p.poll)
}

func (p *StreamPort) Write(b []byte) (int, error) {
	return p.rw.Write(b)
}
