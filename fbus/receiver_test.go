package fbus

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hands out queued chunks one Read at a time and records writes.
type fakePort struct {
	mutex  sync.Mutex
	chunks [][]byte
	out    bytes.Buffer
	err    error

	writeErr error
}

func (p *fakePort) feed(chunks ...[]byte) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.chunks = append(p.chunks, chunks...)
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mutex.Lock()
	if len(p.chunks) == 0 {
		err := p.err
		p.mutex.Unlock()
		time.Sleep(time.Millisecond)
		return 0, err
	}
	c := p.chunks[0]
	n := copy(b, c)
	if n < len(c) {
		p.chunks[0] = c[n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	p.mutex.Unlock()
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.out.Write(b)
}

// Splits everything written so far into frames.
func (p *fakePort) written(t *testing.T) []Frame {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var frames []Frame
	b := p.out.Bytes()
	for len(b) > 0 {
		status, l := Validate(b, 0)
		require.Equal(t, Valid, status)
		frames = append(frames, Frame(append([]byte(nil), b[:l]...)))
		b = b[l:]
	}
	return frames
}

func phoneFrame(t *testing.T, cmd byte, payload string, seq byte) []byte {
	f, err := EncodeRaw(Handset, cmd, []byte(payload), seq)
	require.NoError(t, err)
	return f
}

func newTestReceiver(p *fakePort, stats *Stats) *Receiver {
	return NewReceiver(Terminal, p, NewAcker(Terminal, p, stats), stats)
}

func TestReceiveMatchingFrame(t *testing.T) {
	p := &fakePort{}
	p.feed(phoneFrame(t, 0x40, "hello\x00world", 0x44))
	r := newTestReceiver(p, nil)

	payload, err := r.Receive(context.Background(), 0x40, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello.world"), payload)

	acks := p.written(t)
	require.Len(t, acks, 1)
	assert.True(t, acks[0].IsAck())
	assert.Equal(t, byte(0x40), acks[0].AckedCommand())
	assert.Equal(t, byte(0x44&0x07), acks[0].AckedSequence())
}

func TestReceiveResynchronizesAfterNoise(t *testing.T) {
	good := phoneFrame(t, 0x40, "payload", 0x41)

	// A fake signature followed by a plausible length but garbage checksum.
	spurious := []byte{FrameID, DevTerminal, DevPhone, 0x40, 0x00, 0x04, 0x01, 0x02, 0x03, 0x04, 0xde, 0xad}
	stream := append([]byte{0x55, 0x55, 0x00}, spurious...)
	stream = append(stream, 0x13, 0x37)
	stream = append(stream, good...)

	p := &fakePort{}
	p.feed(stream)
	stats := &Stats{}
	r := newTestReceiver(p, stats)

	payload, err := r.Receive(context.Background(), 0x40, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), payload)
	assert.Equal(t, 1, stats.Get().BadFrames)
	assert.Equal(t, 1, stats.Get().Frames)
}

func TestReceiveAcksFramesOfOtherCommands(t *testing.T) {
	p := &fakePort{}
	p.feed(append(phoneFrame(t, 0x0a, "other", 0x42), phoneFrame(t, 0x40, "mine", 0x43)...))
	stats := &Stats{}
	r := newTestReceiver(p, stats)

	payload, err := r.Receive(context.Background(), 0x40, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("mine"), payload)

	acks := p.written(t)
	require.Len(t, acks, 2)
	assert.Equal(t, byte(0x0a), acks[0].AckedCommand())
	assert.Equal(t, byte(0x02), acks[0].AckedSequence())
	assert.Equal(t, byte(0x40), acks[1].AckedCommand())
	assert.Equal(t, byte(0x03), acks[1].AckedSequence())
	assert.Equal(t, 2, stats.Get().AcksSent)
}

func TestReceiveDoesNotAckAcks(t *testing.T) {
	p := &fakePort{}
	p.feed(EncodeAck(Handset, 0x40, 0x40), phoneFrame(t, 0x40, "data", 0x45))
	stats := &Stats{}
	r := newTestReceiver(p, stats)

	payload, err := r.Receive(context.Background(), 0x40, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), payload)

	acks := p.written(t)
	require.Len(t, acks, 1)
	assert.Equal(t, byte(0x05), acks[0].AckedSequence())
	assert.Equal(t, 1, stats.Get().AcksReceived)
}

func TestReceiveAcrossPartialReads(t *testing.T) {
	f := phoneFrame(t, 0x40, "split across reads", 0x46)

	p := &fakePort{}
	for i := 0; i < len(f); i += 3 {
		end := i + 3
		if end > len(f) {
			end = len(f)
		}
		p.feed(f[i:end])
	}
	r := newTestReceiver(p, nil)

	payload, err := r.Receive(context.Background(), 0x40, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("split across reads"), payload)
}

func TestReceiveTimeoutKeepsTrailingBytes(t *testing.T) {
	f := phoneFrame(t, 0x40, "late", 0x47)

	p := &fakePort{}
	p.feed(f[:7])
	stats := &Stats{}
	r := newTestReceiver(p, stats)

	start := time.Now()
	_, err := r.Receive(context.Background(), 0x40, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 7, r.Pending())
	assert.Equal(t, 1, stats.Get().Timeouts)

	p.feed(f[7:])
	payload, err := r.Receive(context.Background(), 0x40, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("late"), payload)
	assert.Zero(t, r.Pending())
}

func TestReceiveAckWriteErrorConsumesFrame(t *testing.T) {
	errWrite := errors.New("write failed")
	p := &fakePort{writeErr: errWrite}
	p.feed(append(phoneFrame(t, 0x40, "first", 0x41), phoneFrame(t, 0x40, "second", 0x42)...))
	r := newTestReceiver(p, nil)

	_, err := r.Receive(context.Background(), 0x40, time.Second)
	require.ErrorIs(t, err, errWrite)

	p.mutex.Lock()
	p.writeErr = nil
	p.mutex.Unlock()

	payload, err := r.Receive(context.Background(), 0x40, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), payload)

	acks := p.written(t)
	require.Len(t, acks, 1)
	assert.Equal(t, byte(0x02), acks[0].AckedSequence())
}

func TestReceiveTimeoutWithoutData(t *testing.T) {
	p := &fakePort{}
	r := newTestReceiver(p, nil)

	_, err := r.Receive(context.Background(), 0x40, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, r.Pending())
	assert.Empty(t, p.written(t))
}

func TestReceiveIgnoresFramesForOtherDevices(t *testing.T) {
	// Our own echo (terminal to phone) must not be taken as a reply.
	echo, err := Encode(Terminal, NewSeqCounter(), 0x40, []byte{0x64, 0x01})
	require.NoError(t, err)

	p := &fakePort{}
	p.feed(echo)
	r := newTestReceiver(p, nil)

	_, err = r.Receive(context.Background(), 0x40, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Empty(t, p.written(t))
}

func TestReceiveContextCancel(t *testing.T) {
	p := &fakePort{}
	r := newTestReceiver(p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := r.Receive(ctx, 0x40, 5*time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReceiveReadError(t *testing.T) {
	readErr := errors.New("line gone")
	p := &fakePort{err: readErr}
	r := newTestReceiver(p, nil)

	_, err := r.Receive(context.Background(), 0x40, time.Second)
	require.ErrorIs(t, err, readErr)
}

func TestLinkSend(t *testing.T) {
	p := &fakePort{}
	stats := &Stats{}
	l := NewLink(Terminal, p, stats)

	require.NoError(t, l.Send(0x40, []byte{0x7e, 0x03}))
	require.NoError(t, l.Send(0x40, []byte{0x7e, 0x04}))

	frames := p.written(t)
	require.Len(t, frames, 2)
	assert.Equal(t, byte(0x40), frames[0].Sequence())
	assert.Equal(t, byte(0x41), frames[1].Sequence())
	assert.Equal(t, len(frames[0])+len(frames[1]), stats.Get().BytesOut)
}
