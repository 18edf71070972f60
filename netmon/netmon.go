// Package netmon reads base station and cell information from Nokia handsets in
// netmonitor mode over FBUS.
package netmon

import (
	"errors"
	"time"
)

var (
	ErrInvalidChannel   = errors.New("invalid channel")
	ErrAlreadyOpen      = errors.New("channel already open")
	ErrCannotOpen       = errors.New("can't open serial device")
	ErrGetLineState     = errors.New("can't get serial line state")
	ErrSetLineState     = errors.New("can't set serial line state")
	ErrSendPreamble     = errors.New("can't send preamble")
	ErrNotConnected     = errors.New("channel not connected")
	ErrNoData           = errors.New("no data from handset")
	ErrUnexpectedFormat = errors.New("unexpected page format")
)

const (
	DefaultMaxChannels  = 4
	DefaultTimeout      = 2000 * time.Millisecond
	DefaultPollInterval = 10 * time.Millisecond

	baudRate       = 115200
	preambleLength = 128
	preambleByte   = 0x55
)

// BaseStation is one entry of the handset's neighbour list.
type BaseStation struct {
	Channel uint16
	Power   uint // -dBm, so less is stronger.
}

// Location describes the cell the handset is camped on.
type Location struct {
	Country uint
	Network uint
	Area    uint16
	Cell    uint16
	Channel uint16
}
