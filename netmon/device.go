package netmon

import (
	"fmt"
	"io"
	"time"

	"github.com/nonoo/fbusmon/fbus"
	"go.bug.st/serial"
)

// Device is an open serial line. serial.Port satisfies it.
type Device interface {
	fbus.Port
	io.Closer
	GetModemStatusBits() (*serial.ModemStatusBits, error)
	SetMode(mode *serial.Mode) error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	SetReadTimeout(t time.Duration) error
}

// Opener opens the device at path.
type Opener func(path string) (Device, error)

// DeviceNamer maps a channel id to a device path.
type DeviceNamer func(id int) string

func DefaultDeviceNamer(id int) string {
	return fmt.Sprintf("/dev/ttyUSB%d", id-1)
}

func lineMode() *serial.Mode {
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
		InitialStatusBits: &serial.ModemOutputBits{
			DTR: true,
			RTS: false,
		},
	}
}

// SerialOpener opens a real serial port.
func SerialOpener(path string) (Device, error) {
	p, err := serial.Open(path, lineMode())
	if err != nil {
		return nil, err
	}
	return p, nil
}

type deviceConfig struct {
	mode         *serial.Mode
	pollInterval time.Duration
}

func setupLine(dev Device, cfg deviceConfig) error {
	if _, err := dev.GetModemStatusBits(); err != nil {
		return fmt.Errorf("%w: %v", ErrGetLineState, err)
	}
	if err := dev.SetMode(cfg.mode); err != nil {
		return fmt.Errorf("%w: %v", ErrSetLineState, err)
	}
	if err := dev.SetDTR(true); err != nil {
		return fmt.Errorf("%w: dtr: %v", ErrSetLineState, err)
	}
	if err := dev.SetRTS(false); err != nil {
		return fmt.Errorf("%w: rts: %v", ErrSetLineState, err)
	}
	if err := dev.SetReadTimeout(cfg.pollInterval); err != nil {
		return fmt.Errorf("%w: read timeout: %v", ErrSetLineState, err)
	}
	return nil
}

// The handset synchronizes its UART to the preamble.
func sendPreamble(dev Device) error {
	b := make([]byte, preambleLength)
	for i := range b {
		b[i] = preambleByte
	}
	for len(b) > 0 {
		n, err := dev.Write(b)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSendPreamble, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: short write", ErrSendPreamble)
		}
		b = b[n:]
	}
	return nil
}
