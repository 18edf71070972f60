// Package fbus implements the framing layer of the Nokia FBUS serial protocol: frame
// encoding and validation, acknowledgements, sequence numbers and a resynchronizing
// frame receiver.
package fbus

import (
	"errors"
	"io"
)

const (
	FrameID = 0x1e

	DevPhone    = 0x00
	DevTerminal = 0x0c

	CmdAck = 0x7f

	headerLength     = 6
	checksumLength   = 2
	minPayloadLength = 2
	MaxPayloadLength = 0xff

	ackFrameLength  = 10
	framesRemaining = 0x01

	// Replaces 0x00 bytes in received payloads.
	nullPlaceholder = '.'
)

var (
	ErrTimeout         = errors.New("fbus: timeout")
	ErrPayloadTooLarge = errors.New("fbus: payload too large")
)

// Port is one end of a serial line. Read must not block longer than a short poll interval
// and returns 0, nil if nothing has arrived in the meantime.
type Port interface {
	io.Reader
	io.Writer
}

// Endpoint describes which device we are on the bus.
type Endpoint struct {
	Self byte
	Peer byte
}

var (
	Terminal = Endpoint{Self: DevTerminal, Peer: DevPhone}
	Handset  = Endpoint{Self: DevPhone, Peer: DevTerminal}
)

// Header bytes of frames addressed to this endpoint.
func (e Endpoint) signature() [3]byte {
	return [3]byte{FrameID, e.Self, e.Peer}
}
