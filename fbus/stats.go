package fbus

import (
	"fmt"
	"sync"
)

type StatsSnapshot struct {
	BytesIn      int
	BytesOut     int
	Frames       int
	BadFrames    int
	AcksSent     int
	AcksReceived int
	Timeouts     int
}

// Stats counts line traffic. One instance can be shared by several channels, and a nil
// *Stats counts nothing.
type Stats struct {
	mutex sync.Mutex
	c     StatsSnapshot
}

func (s *Stats) add(f func(c *StatsSnapshot)) {
	if s == nil {
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f(&s.c)
}

func (s *Stats) addIn(n int) {
	s.add(func(c *StatsSnapshot) { c.BytesIn += n })
}

func (s *Stats) addOut(n int) {
	s.add(func(c *StatsSnapshot) { c.BytesOut += n })
}

func (s *Stats) Get() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.c
}

func (s *Stats) Reset() {
	s.add(func(c *StatsSnapshot) { *c = StatsSnapshot{} })
}

func FormatByteCount(c int) string {
	const unit = 1000
	if c < unit {
		return fmt.Sprintf("%d B", c)
	}
	div, exp := int(unit), 0
	for n := c / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(c)/float64(div), "kMGTPE"[exp])
}
