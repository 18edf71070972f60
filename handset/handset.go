// Package handset emulates an FBUS handset in netmonitor mode, answering the requests of
// a terminal with pages rendered from a configurable cell scenario.
package handset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nonoo/fbusmon/fbus"
	"github.com/nonoo/fbusmon/log"
)

const (
	cmdNetmon = 0x40

	argEnable = 0x64
	argPage   = 0x7e

	pageLocation = 0x0b

	lineLength    = 13
	linesPerPage  = 3
	firstBSPage   = 3
	lastBSPage    = 5
	locationWidth = 52

	serveTimeout = 200 * time.Millisecond
)

type Neighbour struct {
	Channel int
	Power   int // -dBm
}

// Cell is what the emulated handset reports.
type Cell struct {
	Country int
	Network int
	Area    int
	CellID  int
	Channel int

	// At most three neighbours are shown on each of the pages 3 to 5.
	Neighbours []Neighbour
}

// DefaultCell is a plausible scenario.
var DefaultCell = Cell{
	Country: 232,
	Network: 5,
	Area:    1234,
	CellID:  40321,
	Channel: 71,
	Neighbours: []Neighbour{
		{Channel: 71, Power: 63},
		{Channel: 85, Power: 75},
		{Channel: 102, Power: 81},
		{Channel: 17, Power: 99},
		{Channel: 540, Power: 104},
	},
}

type Handset struct {
	port fbus.Port
	link *fbus.Link

	mutex        sync.Mutex
	cell         Cell
	silent       bool
	noise        []byte
	droppedPages map[byte]bool
	requests     int
}

func New(port fbus.Port, cell Cell) *Handset {
	return &Handset{
		port:         port,
		link:         fbus.NewLink(fbus.Handset, port, nil),
		cell:         cell,
		droppedPages: make(map[byte]bool),
	}
}

func (h *Handset) SetCell(c Cell) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.cell = c
}

// SetSilent makes the handset ignore everything, like a phone which is switched off.
func (h *Handset) SetSilent(silent bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.silent = silent
}

// SetNoise sets bytes written to the line before every reply.
func (h *Handset) SetNoise(b []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.noise = append([]byte(nil), b...)
}

// DropPage makes the handset leave requests for the given netmonitor page unanswered.
func (h *Handset) DropPage(page byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.droppedPages[page] = true
}

// Requests returns the number of netmonitor requests received.
func (h *Handset) Requests() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.requests
}

func renderChannel(ch int) string {
	if ch <= 0 {
		return "xxx"
	}
	return fmt.Sprintf("%3d", ch)
}

func renderPower(p int) string {
	if p < 100 {
		return fmt.Sprintf("-%2d", p)
	}
	return fmt.Sprintf("%3d", p)
}

func pageHeader(page byte) []byte {
	return []byte{0x01, argPage, page, 0x00}
}

// Renders one base station page: three lines with the channel at column 4 and the
// signal level at column 10.
func renderBasestationPage(c Cell, page byte) []byte {
	var sb strings.Builder
	first := int(page-firstBSPage) * linesPerPage
	for i := first; i < first+linesPerPage; i++ {
		n := Neighbour{}
		if i < len(c.Neighbours) {
			n = c.Neighbours[i]
		}
		pw := "   "
		if n.Channel > 0 {
			pw = renderPower(n.Power)
		}
		fmt.Fprintf(&sb, "    %s   %s", renderChannel(n.Channel), pw)
	}
	p := []byte(sb.String())
	copy(p, pageHeader(page))
	return p
}

func putField(p []byte, off int, s string) {
	copy(p[off:], s)
}

func renderLocationPage(c Cell) []byte {
	p := []byte(strings.Repeat(" ", locationWidth))
	copy(p, pageHeader(pageLocation))
	putField(p, 4, "CC")
	putField(p, 7, fmt.Sprintf("%03d", c.Country))
	putField(p, 10, "NC")
	putField(p, 13, fmt.Sprintf("%02d", c.Network))
	putField(p, 17, "LAC")
	putField(p, 21, fmt.Sprintf("%5d", c.Area))
	putField(p, 30, "CH")
	putField(p, 34, fmt.Sprintf("%3d", c.Channel))
	putField(p, 38, "CID")
	putField(p, 43, fmt.Sprintf("%05d", c.CellID))
	return p
}

func (h *Handset) reply(payload []byte) error {
	h.mutex.Lock()
	noise := h.noise
	h.mutex.Unlock()

	if len(noise) > 0 {
		if _, err := h.port.Write(noise); err != nil {
			return err
		}
	}
	return h.link.SendRaw(cmdNetmon, payload)
}

// Args of a received command frame sit after the two static payload bytes.
func (h *Handset) handle(p []byte) error {
	if len(p) < 4 {
		return nil
	}
	arg, param := p[2], p[3]

	h.mutex.Lock()
	h.requests++
	c := h.cell
	dropped := arg == argPage && h.droppedPages[param]
	h.mutex.Unlock()

	switch {
	case dropped:
		log.Debug("dropping page ", param)
		return nil
	case arg == argEnable:
		return h.reply([]byte{0x01, argEnable, 0x01, 0x00})
	case arg == argPage && param >= firstBSPage && param <= lastBSPage:
		return h.reply(renderBasestationPage(c, param))
	case arg == argPage && param == pageLocation:
		return h.reply(renderLocationPage(c))
	}
	return h.reply(append(pageHeader(param), []byte("unknown page")...))
}

func (h *Handset) isSilent() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.silent
}

// Serve answers requests until ctx is done or the line fails.
func (h *Handset) Serve(ctx context.Context) error {
	drain := make([]byte, 256)
	for ctx.Err() == nil {
		if h.isSilent() {
			if _, err := h.port.Read(drain); err != nil {
				return err
			}
			continue
		}

		p, err := h.link.Receive(ctx, cmdNetmon, serveTimeout)
		if errors.Is(err, fbus.ErrTimeout) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		if h.isSilent() {
			continue
		}
		if err := h.handle(p); err != nil {
			return err
		}
	}
	return ctx.Err()
}
