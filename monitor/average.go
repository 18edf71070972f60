package monitor

import "github.com/nonoo/fbusmon/netmon"

// Averager is an n-point moving average of a channel's power. The first sample seeds it.
type Averager struct {
	Channel uint16
	N       float64

	avg float64
}

// Add feeds the power of the channel in snap to the average. A missing channel counts
// as 0. N of 0 resets the average.
func (a *Averager) Add(snap *Snapshot) float64 {
	p, _ := snap.Power(a.Channel)
	return a.AddSample(float64(p))
}

func (a *Averager) AddSample(p float64) float64 {
	switch {
	case a.N == 0:
		a.avg = 0
	case a.avg == 0:
		a.avg = p
	default:
		a.avg = a.avg*((a.N-1)/a.N) + p*(1/a.N)
	}
	return a.avg
}

func (a *Averager) Value() float64 {
	return a.avg
}

// ChangeTracker reports when the channel at an index of the list changes.
type ChangeTracker struct {
	Index int

	prev uint16
}

// Update returns the entry at the tracked index, and whether its channel differs from
// the one seen on the previous call.
func (c *ChangeTracker) Update(snap *Snapshot) (bs netmon.BaseStation, ok, changed bool) {
	bs, ok = snap.Nth(c.Index)
	if !ok {
		return bs, false, false
	}
	if bs.Channel != c.prev {
		c.prev = bs.Channel
		changed = true
	}
	return bs, true, changed
}
