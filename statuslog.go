package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/nonoo/fbusmon/fbus"
	"github.com/nonoo/fbusmon/log"
	"github.com/nonoo/fbusmon/monitor"
)

type statusLogStruct struct {
	ticker           *time.Ticker
	stopChan         chan bool
	stopFinishedChan chan bool
	mutex            sync.Mutex

	line string

	interval  time.Duration
	realtime  bool
	startTime time.Time
	store     *monitor.Store
	stats     *fbus.Stats
}

var statusLog statusLogStruct

var (
	statusBestColor = color.New(color.FgHiGreen, color.Bold)
	statusLocColor  = color.New(color.FgHiCyan)
	statusErrColor  = color.New(color.FgHiRed)
)

func (s *statusLogStruct) print() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.realtime {
		fmt.Print("\033[2K", s.line)
	} else {
		log.Print(s.line)
	}
}

func formatStatusLine(snap *monitor.Snapshot, st fbus.StatsSnapshot, now time.Time) string {
	var best string
	if bs, ok := snap.Strongest(); ok {
		best = statusBestColor.Sprintf("%d -%ddBm", bs.Channel, bs.Power)
	} else {
		best = statusErrColor.Sprint("no signal")
	}

	loc := "loc ?"
	if snap.HasLocation {
		l := snap.Location
		loc = statusLocColor.Sprintf("loc %03d-%02d lac %d cid %d", l.Country, l.Network, l.Area, l.Cell)
	}

	age := "-"
	if !snap.UpdatedAt.IsZero() {
		age = now.Sub(snap.UpdatedAt).Round(100 * time.Millisecond).String()
	}

	return fmt.Sprint("best ", best, " stations ", snap.Count(), " ", loc,
		" cycle ", snap.Cycle, " age ", age,
		" rx ", fbus.FormatByteCount(st.BytesIn), " tx ", fbus.FormatByteCount(st.BytesOut),
		" bad ", st.BadFrames, " timeouts ", st.Timeouts)
}

func (s *statusLogStruct) update() {
	snap, err := s.store.Load(monitor.DefaultWait)
	if err != nil {
		return // Keeping the previous line.
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.line = fmt.Sprint("up ", time.Since(s.startTime).Round(time.Second), " ",
		formatStatusLine(&snap, s.stats.Get(), time.Now()))

	if s.realtime {
		s.line = fmt.Sprint(time.Now().Format("2006-01-02T15:04:05.000Z0700"), " ", s.line, "\r")
	}
}

func (s *statusLogStruct) loop(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
			s.update()
			s.print()
		case <-s.stopChan:
			s.stopFinishedChan <- true
			return
		}
	}
}

func (s *statusLogStruct) isActive() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.ticker != nil
}

// Short intervals on a terminal overwrite a single line instead of logging.
func (s *statusLogStruct) startPeriodicPrint(interval time.Duration, store *monitor.Store, stats *fbus.Stats) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.interval = interval
	s.realtime = interval < time.Second && isatty.IsTerminal(os.Stdout.Fd())
	s.store = store
	s.stats = stats
	s.startTime = time.Now()
	s.stopChan = make(chan bool)
	s.stopFinishedChan = make(chan bool)
	s.ticker = time.NewTicker(interval)
	go s.loop(s.ticker)
}

func (s *statusLogStruct) stopPeriodicPrint() {
	if !s.isActive() {
		return
	}
	s.mutex.Lock()
	s.ticker.Stop()
	s.ticker = nil
	realtime := s.realtime
	s.mutex.Unlock()

	s.stopChan <- true
	<-s.stopFinishedChan

	if realtime {
		fmt.Println()
	}
}
