// Package monitor polls a handset periodically and publishes what it sees as snapshots.
package monitor

import (
	"time"

	"github.com/nonoo/fbusmon/netmon"
)

// Snapshot is the result of one polling cycle. It is never modified after publishing.
type Snapshot struct {
	BaseStations []netmon.BaseStation
	Location     netmon.Location
	HasLocation  bool
	UpdatedAt    time.Time
	Cycle        uint64
}

func (s *Snapshot) clone() Snapshot {
	c := *s
	c.BaseStations = append([]netmon.BaseStation(nil), s.BaseStations...)
	return c
}

func (s *Snapshot) Count() int {
	return len(s.BaseStations)
}

// Power returns the level of the given channel.
func (s *Snapshot) Power(channel uint16) (uint, bool) {
	for _, bs := range s.BaseStations {
		if bs.Channel == channel {
			return bs.Power, true
		}
	}
	return 0, false
}

// Nth returns the entry at the zero based index i, in handset order.
func (s *Snapshot) Nth(i int) (netmon.BaseStation, bool) {
	if i < 0 || i >= len(s.BaseStations) {
		return netmon.BaseStation{}, false
	}
	return s.BaseStations[i], true
}

// Strongest returns the first entry, the handset lists the strongest station first.
func (s *Snapshot) Strongest() (netmon.BaseStation, bool) {
	return s.Nth(0)
}
