package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/nonoo/fbusmon/log"
	"github.com/nonoo/fbusmon/netmon"
)

// Runs a command each time the strongest base station changes. A still running instance
// is killed before the next one starts.
type cmdRunner struct {
	mutex          sync.Mutex
	triggerChan    chan netmon.BaseStation
	runEndNeeded   chan bool
	runEndFinished chan bool
}

var changeCmdRunner cmdRunner

func (c *cmdRunner) kill(cmd *exec.Cmd) {
	err := cmd.Process.Kill()
	if err != nil {
		_ = cmd.Process.Signal(syscall.SIGKILL)
	}
}

func cmdEnv(bs netmon.BaseStation) []string {
	return append(os.Environ(),
		fmt.Sprint("FBUSMON_CHANNEL=", bs.Channel),
		fmt.Sprint("FBUSMON_POWER=", bs.Power),
	)
}

func (c *cmdRunner) run(cmdLine string) {
	var cmd *exec.Cmd
	var finishedChan chan error

	defer func() {
		if finishedChan != nil {
			c.kill(cmd)
			<-finishedChan
		}
		c.runEndFinished <- true
	}()

	s := strings.Fields(cmdLine)

	for {
		var bs netmon.BaseStation
		select {
		case bs = <-c.triggerChan:
		case err := <-finishedChan:
			if err != nil {
				log.Error(cmd, " error: ", err)
			}
			finishedChan = nil
			continue
		case <-c.runEndNeeded:
			return
		}

		if finishedChan != nil {
			log.Debug("restarting ", cmd)
			c.kill(cmd)
			<-finishedChan
			finishedChan = nil
		}

		cmd = exec.Command(s[0], s[1:]...)
		cmd.Env = cmdEnv(bs)
		if err := cmd.Start(); err != nil {
			log.Error("error starting ", cmd, ": ", err)
			continue
		}
		log.Print("started: ", cmd)

		finishedChan = make(chan error, 1)
		go func(cmd *exec.Cmd, finishedChan chan error) {
			finishedChan <- cmd.Wait()
		}(cmd, finishedChan)
	}
}

func (c *cmdRunner) startIfNeeded(cmdLine string) {
	if c.runEndNeeded != nil || strings.TrimSpace(cmdLine) == "" || cmdLine == "-" {
		return
	}

	c.mutex.Lock()
	c.triggerChan = make(chan netmon.BaseStation, 1)
	c.mutex.Unlock()
	c.runEndNeeded = make(chan bool)
	c.runEndFinished = make(chan bool)
	go c.run(cmdLine)
}

func (c *cmdRunner) trigger(bs netmon.BaseStation) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.triggerChan == nil {
		return
	}

	// Non-blocking notify.
	select {
	case c.triggerChan <- bs:
	default:
	}
}

func (c *cmdRunner) stop() {
	if c.runEndNeeded == nil {
		return
	}

	c.runEndNeeded <- true
	<-c.runEndFinished
	c.runEndNeeded = nil

	c.mutex.Lock()
	c.triggerChan = nil
	c.mutex.Unlock()
}
