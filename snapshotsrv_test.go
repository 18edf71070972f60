package main

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/nonoo/fbusmon/fbus"
	"github.com/nonoo/fbusmon/monitor"
	"github.com/nonoo/fbusmon/netmon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *monitor.Store {
	st := monitor.NewStore()
	require.NoError(t, st.Publish(&monitor.Snapshot{
		BaseStations: []netmon.BaseStation{
			{Channel: 71, Power: 63},
			{Channel: 85, Power: 75},
		},
		Location:    netmon.Location{Country: 232, Network: 5, Area: 1234, Cell: 40321, Channel: 71},
		HasLocation: true,
		Cycle:       3,
	}, monitor.DefaultWait))
	return st
}

func runCmd(t *testing.T, s *snapshotSrvSession, out *bytes.Buffer, cmd string) string {
	t.Helper()
	out.Reset()
	_, err := s.processCmd(cmd)
	require.NoError(t, err)
	return out.String()
}

func TestSnapshotSrvCommands(t *testing.T) {
	var out bytes.Buffer
	s := newSnapshotSrvSession(&out, testStore(t), nil)

	assert.Equal(t, "2\nRPRT 0\n", runCmd(t, s, &out, "num"))
	assert.Equal(t, "75\nRPRT 0\n", runCmd(t, s, &out, "chan 85"))
	assert.Equal(t, "0\nRPRT 0\n", runCmd(t, s, &out, "chan 17"))
	assert.Equal(t, "232\n5\n1234\n40321\n71\nRPRT 0\n", runCmd(t, s, &out, "loc"))
	assert.Empty(t, runCmd(t, s, &out, ""))
}

func TestSnapshotSrvSort(t *testing.T) {
	var out bytes.Buffer
	s := newSnapshotSrvSession(&out, testStore(t), nil)

	assert.Equal(t, "75\n85\n1\nRPRT 0\n", runCmd(t, s, &out, "sort 1"))
	assert.Equal(t, "75\n85\n0\nRPRT 0\n", runCmd(t, s, &out, "sort 1"))
	assert.Equal(t, "0\n0\n0\nRPRT 0\n", runCmd(t, s, &out, "sort 5"))
	assert.Equal(t, "RPRT -1\n", runCmd(t, s, &out, "sort x"))
}

func TestSnapshotSrvAverage(t *testing.T) {
	var out bytes.Buffer
	s := newSnapshotSrvSession(&out, testStore(t), nil)

	assert.Equal(t, "63.00\nRPRT 0\n", runCmd(t, s, &out, "avg 71 3"))
	assert.Equal(t, "63.00\nRPRT 0\n", runCmd(t, s, &out, "avg 71 3"))
	assert.Equal(t, "0.00\nRPRT 0\n", runCmd(t, s, &out, "avg 71 0"))
	assert.Equal(t, "RPRT -1\n", runCmd(t, s, &out, "avg 71"))
	assert.Equal(t, "RPRT -1\n", runCmd(t, s, &out, "avg 71 -2"))
}

func TestSnapshotSrvErrors(t *testing.T) {
	var out bytes.Buffer
	s := newSnapshotSrvSession(&out, testStore(t), nil)

	assert.Equal(t, "RPRT -11\n", runCmd(t, s, &out, "F 14074000"))
	assert.Equal(t, "RPRT -1\n", runCmd(t, s, &out, "chan"))
	assert.Equal(t, "RPRT -1\n", runCmd(t, s, &out, "chan 70000"))

	out.Reset()
	close, err := s.processCmd("q")
	require.NoError(t, err)
	assert.True(t, close)
	assert.Equal(t, "RPRT 0\n", out.String())
}

func TestSnapshotSrvStats(t *testing.T) {
	var out bytes.Buffer
	stats := &fbus.Stats{}
	s := newSnapshotSrvSession(&out, testStore(t), stats)
	assert.Equal(t, "0\n0\n0\n0\n0\n0\n0\nRPRT 0\n", runCmd(t, s, &out, "stats"))
}

func TestSnapshotSrvOverTCP(t *testing.T) {
	var srv snapshotSrvStruct
	require.NoError(t, srv.init("127.0.0.1:0", testStore(t), nil))
	defer srv.deinit()

	conn, err := net.Dial("tcp", srv.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	r := bufio.NewReader(conn)
	// Commands may arrive split or several in one write.
	_, err = fmt.Fprint(conn, "nu")
	require.NoError(t, err)
	_, err = fmt.Fprint(conn, "m\nchan 71\n")
	require.NoError(t, err)

	var lines []string
	for len(lines) < 4 {
		l, err := r.ReadString('\n')
		require.NoError(t, err)
		lines = append(lines, strings.TrimSpace(l))
	}
	assert.Equal(t, []string{"2", "RPRT 0", "63", "RPRT 0"}, lines)

	_, err = fmt.Fprint(conn, "q\n")
	require.NoError(t, err)
	l, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "RPRT 0\n", l)
}
