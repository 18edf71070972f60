package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/nonoo/fbusmon/fbus"
	"github.com/nonoo/fbusmon/log"
	"github.com/nonoo/fbusmon/monitor"
)

const (
	snapshotSrvNoError        = 0
	snapshotSrvInvalidParam   = -1
	snapshotSrvUnavailable    = -5
	snapshotSrvUnsupportedCmd = -11
)

// Per client state: averages and change trackers live as long as the connection.
type snapshotSrvSession struct {
	w     io.Writer
	store *monitor.Store
	stats *fbus.Stats

	averagers map[uint16]*monitor.Averager
	trackers  map[int]*monitor.ChangeTracker
}

func newSnapshotSrvSession(w io.Writer, store *monitor.Store, stats *fbus.Stats) *snapshotSrvSession {
	return &snapshotSrvSession{
		w:         w,
		store:     store,
		stats:     stats,
		averagers: make(map[uint16]*monitor.Averager),
		trackers:  make(map[int]*monitor.ChangeTracker),
	}
}

func (s *snapshotSrvSession) send(a ...interface{}) error {
	_, err := s.w.Write([]byte(fmt.Sprint(a...)))
	return err
}

func (s *snapshotSrvSession) sendReplyCode(code int) error {
	_, err := s.w.Write([]byte(fmt.Sprint("RPRT ", code, "\n")))
	return err
}

func parseChannelArg(args []string, i int) (uint16, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	c, err := strconv.ParseUint(args[i], 10, 16)
	return uint16(c), err
}

func (s *snapshotSrvSession) processCmd(cmd string) (close bool, err error) {
	cmdSplit := strings.Fields(cmd)
	if len(cmdSplit) == 0 {
		return
	}
	if cmdSplit[0] == "q" {
		err = s.sendReplyCode(snapshotSrvNoError)
		return true, err
	}

	var snap monitor.Snapshot
	switch cmdSplit[0] {
	case "num", "chan", "sort", "avg", "loc":
		snap, err = s.store.Load(monitor.DefaultWait)
		if err != nil {
			return false, s.sendReplyCode(snapshotSrvUnavailable)
		}
	}

	switch cmdSplit[0] {
	case "num":
		err = s.send(snap.Count(), "\n")
	case "chan":
		var c uint16
		c, err = parseChannelArg(cmdSplit, 1)
		if err != nil {
			return false, s.sendReplyCode(snapshotSrvInvalidParam)
		}
		p, _ := snap.Power(c)
		err = s.send(p, "\n")
	case "sort":
		if len(cmdSplit) < 2 {
			return false, s.sendReplyCode(snapshotSrvInvalidParam)
		}
		var i int
		i, err = strconv.Atoi(cmdSplit[1])
		if err != nil || i < 0 {
			return false, s.sendReplyCode(snapshotSrvInvalidParam)
		}
		t := s.trackers[i]
		if t == nil {
			t = &monitor.ChangeTracker{Index: i}
			s.trackers[i] = t
		}
		bs, _, changed := t.Update(&snap)
		ch := 0
		if changed {
			ch = 1
		}
		err = s.send(bs.Power, "\n", bs.Channel, "\n", ch, "\n")
	case "avg":
		var c uint16
		c, err = parseChannelArg(cmdSplit, 1)
		if err != nil || len(cmdSplit) < 3 {
			return false, s.sendReplyCode(snapshotSrvInvalidParam)
		}
		var n float64
		n, err = strconv.ParseFloat(cmdSplit[2], 64)
		if err != nil || n < 0 {
			return false, s.sendReplyCode(snapshotSrvInvalidParam)
		}
		a := s.averagers[c]
		if a == nil {
			a = &monitor.Averager{Channel: c}
			s.averagers[c] = a
		}
		a.N = n
		err = s.send(strconv.FormatFloat(a.Add(&snap), 'f', 2, 64), "\n")
	case "loc":
		l := snap.Location
		err = s.send(l.Country, "\n", l.Network, "\n", l.Area, "\n", l.Cell, "\n", l.Channel, "\n")
	case "stats":
		st := s.stats.Get()
		err = s.send(st.BytesIn, "\n", st.BytesOut, "\n", st.Frames, "\n", st.BadFrames, "\n",
			st.AcksSent, "\n", st.AcksReceived, "\n", st.Timeouts, "\n")
	default:
		return false, s.sendReplyCode(snapshotSrvUnsupportedCmd)
	}
	if err != nil {
		return
	}
	return false, s.sendReplyCode(snapshotSrvNoError)
}

// Serves snapshot queries over TCP, one client at a time. A new client replaces the
// previous one.
type snapshotSrvStruct struct {
	listener net.Listener
	client   net.Conn
	store    *monitor.Store
	stats    *fbus.Stats

	clientLoopDeinitNeededChan   chan bool
	clientLoopDeinitFinishedChan chan bool

	deinitNeededChan   chan bool
	deinitFinishedChan chan bool
}

var snapshotSrv snapshotSrvStruct

func (s *snapshotSrvStruct) disconnectClient() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *snapshotSrvStruct) deinitClient() {
	if s.clientLoopDeinitNeededChan != nil {
		s.clientLoopDeinitNeededChan <- true
		<-s.clientLoopDeinitFinishedChan

		s.clientLoopDeinitNeededChan = nil
		s.clientLoopDeinitFinishedChan = nil
	}
}

func (s *snapshotSrvStruct) clientLoop(client net.Conn, deinitNeededChan, deinitFinishedChan chan bool) {
	defer func() {
		client.Close()
		<-deinitNeededChan
		deinitFinishedChan <- true
	}()

	log.Print("client ", client.RemoteAddr().String(), " connected")
	session := newSnapshotSrvSession(client, s.store, s.stats)

	var lineBuf bytes.Buffer
	b := make([]byte, 64)
	for {
		n, err := client.Read(b)
		if err != nil {
			log.Print("client ", client.RemoteAddr().String(), " disconnected")
			return
		}
		lineBuf.Write(b[:n])

		for {
			line, err := lineBuf.ReadString('\n')
			if err != nil { // No full line yet.
				lineBuf.Reset()
				lineBuf.WriteString(line)
				break
			}
			close, err := session.processCmd(strings.TrimSpace(line))
			if err != nil {
				log.Error(err)
				return
			}
			if close {
				return
			}
		}
	}
}

func (s *snapshotSrvStruct) loop() {
	for {
		newClient, err := s.listener.Accept()

		s.disconnectClient()
		s.deinitClient()

		if err != nil {
			<-s.deinitNeededChan
			s.deinitFinishedChan <- true
			return
		}

		s.client = newClient
		s.clientLoopDeinitNeededChan = make(chan bool)
		s.clientLoopDeinitFinishedChan = make(chan bool)
		go s.clientLoop(newClient, s.clientLoopDeinitNeededChan, s.clientLoopDeinitFinishedChan)
	}
}

func (s *snapshotSrvStruct) init(addr string, store *monitor.Store, stats *fbus.Stats) (err error) {
	s.store = store
	s.stats = stats
	s.listener, err = net.Listen("tcp", addr)
	if err != nil {
		return
	}

	log.Print("snapshot server listening on ", s.listener.Addr().String())

	s.deinitNeededChan = make(chan bool)
	s.deinitFinishedChan = make(chan bool)
	go s.loop()
	return
}

func (s *snapshotSrvStruct) deinit() {
	if s.listener != nil {
		s.listener.Close()
	}

	if s.deinitNeededChan != nil {
		s.deinitNeededChan <- true
		<-s.deinitFinishedChan
		s.deinitNeededChan = nil
	}
	s.listener = nil
}
