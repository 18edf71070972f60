package fbus

import "fmt"

type Status int

const (
	Invalid = Status(iota)
	Incomplete
	Valid
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Incomplete:
		return "incomplete"
	default:
		return "invalid"
	}
}

// Checksum returns the XOR of all bytes at even and at odd offsets of b.
func Checksum(b []byte) (even, odd byte) {
	for i, v := range b {
		if i%2 == 0 {
			even ^= v
		} else {
			odd ^= v
		}
	}
	return
}

// EncodeRaw builds a frame from ep to its peer carrying payload and the sequence byte.
// Terminal frames count a padding byte before the sequence byte in the length, like the
// handset expects them. Phone frames declare the real length, an odd one is followed by a
// padding byte after the sequence byte.
func EncodeRaw(ep Endpoint, cmd byte, payload []byte, seq byte) ([]byte, error) {
	l := len(payload) + 1 // Sequence byte.
	pad := l%2 != 0
	declared := l
	if pad && ep.Self != DevPhone {
		declared++
	}
	if declared > MaxPayloadLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, declared)
	}

	f := make([]byte, 0, headerLength+l+1+checksumLength)
	f = append(f, FrameID, ep.Peer, ep.Self, cmd, byte(declared>>8), byte(declared))
	f = append(f, payload...)
	if pad && ep.Self != DevPhone {
		f = append(f, 0x00)
	}
	f = append(f, seq)
	if pad && ep.Self == DevPhone {
		f = append(f, 0x00)
	}

	even, odd := Checksum(f)
	return append(f, even, odd), nil
}

// Encode builds a command frame with the static payload framing the handset expects
// around args, using the next sequence number of seq.
func Encode(ep Endpoint, seq *SeqCounter, cmd byte, args []byte) ([]byte, error) {
	p := make([]byte, 0, len(args)+3)
	p = append(p, 0x00, 0x01)
	p = append(p, args...)
	p = append(p, framesRemaining)
	if l := len(p) + 1; l+l%2 > MaxPayloadLength { // Checking before the counter advances.
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, l+l%2)
	}
	return EncodeRaw(ep, cmd, p, seq.Next())
}

// EncodeAck builds the acknowledgement of a frame with the given command and sequence byte.
func EncodeAck(ep Endpoint, cmd, seq byte) []byte {
	f := []byte{FrameID, ep.Peer, ep.Self, CmdAck, 0x00, 0x02, cmd, seq & 0x07, 0x00, 0x00}
	f[8], f[9] = Checksum(f[:8])
	return f
}

// Validate checks the candidate frame starting at buf[off] against its own length field
// and trailing checksums. The returned length is only meaningful for Valid frames.
func Validate(buf []byte, off int) (Status, int) {
	if off < 0 || len(buf)-off < headerLength {
		return Incomplete, 0
	}
	f := buf[off:]

	l := int(f[4])<<8 | int(f[5])
	if l < minPayloadLength || l > MaxPayloadLength {
		return Invalid, 0
	}
	padded := l + l%2
	total := headerLength + padded + checksumLength
	if len(f) < total {
		return Incomplete, total
	}

	even, odd := Checksum(f[:headerLength+padded])
	if f[total-2] != even || f[total-1] != odd {
		return Invalid, total
	}
	return Valid, total
}

// Frame is a view of a validated frame.
type Frame []byte

func (f Frame) Dest() byte    { return f[1] }
func (f Frame) Source() byte  { return f[2] }
func (f Frame) Command() byte { return f[3] }
func (f Frame) IsAck() bool   { return f[3] == CmdAck }

func (f Frame) declaredLength() int {
	return int(f[4])<<8 | int(f[5])
}

// Sequence returns the last byte of the declared payload.
func (f Frame) Sequence() byte {
	return f[headerLength+f.declaredLength()-1]
}

// Payload returns the declared payload without the sequence byte.
func (f Frame) Payload() []byte {
	return f[headerLength : headerLength+f.declaredLength()-1]
}

// AckedCommand and AckedSequence are only meaningful for ack frames.
func (f Frame) AckedCommand() byte  { return f[6] }
func (f Frame) AckedSequence() byte { return f[7] }
