package main

import (
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/nonoo/fbusmon/fbus"
	"github.com/nonoo/fbusmon/monitor"
	"github.com/nonoo/fbusmon/netmon"
	"github.com/stretchr/testify/assert"
)

func TestFormatStatusLine(t *testing.T) {
	color.NoColor = true
	now := time.Now()

	snap := &monitor.Snapshot{
		BaseStations: []netmon.BaseStation{{Channel: 71, Power: 63}, {Channel: 85, Power: 75}},
		Location:     netmon.Location{Country: 232, Network: 5, Area: 1234, Cell: 40321},
		HasLocation:  true,
		UpdatedAt:    now.Add(-1500 * time.Millisecond),
		Cycle:        12,
	}
	st := fbus.StatsSnapshot{BytesIn: 1500, BytesOut: 300, BadFrames: 2, Timeouts: 1}
	assert.Equal(t, "best 71 -63dBm stations 2 loc 232-05 lac 1234 cid 40321 cycle 12 age 1.5s "+
		"rx 1.5 kB tx 300 B bad 2 timeouts 1", formatStatusLine(snap, st, now))

	assert.Equal(t, "best no signal stations 0 loc ? cycle 0 age - rx 0 B tx 0 B bad 0 timeouts 0",
		formatStatusLine(&monitor.Snapshot{}, fbus.StatsSnapshot{}, now))
}

func TestCmdEnv(t *testing.T) {
	env := cmdEnv(netmon.BaseStation{Channel: 71, Power: 63})
	assert.Contains(t, env, "FBUSMON_CHANNEL=71")
	assert.Contains(t, env, "FBUSMON_POWER=63")
}

func TestOnPublishTracksStrongest(t *testing.T) {
	f := onPublish(nil)
	// No runner started, triggering is a no-op.
	f(&monitor.Snapshot{BaseStations: []netmon.BaseStation{{Channel: 71, Power: 63}}})
	f(&monitor.Snapshot{})
}
