package main

import (
	"context"
	"sync"

	"github.com/google/goterm/term"
	"github.com/nonoo/fbusmon/handset"
	"github.com/nonoo/fbusmon/log"
	"github.com/nonoo/fbusmon/netmon"
)

// Runs emulated handsets, in process for --emulate and on a pseudo-terminal for --pty.
type emulatorStruct struct {
	pty    *term.PTY
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var emulator emulatorStruct

func (e *emulatorStruct) init() {
	e.ctx, e.cancel = context.WithCancel(context.Background())
}

func (e *emulatorStruct) serve(h *handset.Handset) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := h.Serve(e.ctx); err != nil && e.ctx.Err() == nil {
			log.Debug("emulated handset stopped: ", err)
		}
	}()
}

// Each connect gets a fresh handset on an in-memory line.
func (e *emulatorStruct) opener(path string) (netmon.Device, error) {
	line, phone := handset.Pipe()
	e.serve(handset.New(phone, handset.DefaultCell))
	log.Print("emulated handset on ", path)
	return line, nil
}

func (e *emulatorStruct) initPTY() error {
	var err error
	e.pty, err = term.OpenPTY()
	if err != nil {
		return err
	}
	n, err := e.pty.PTSName()
	if err != nil {
		return err
	}
	e.serve(handset.New(handset.NewStreamPort(e.pty.Master, handset.DefaultPollInterval), handset.DefaultCell))
	log.Print("emulated handset on ", n)
	return nil
}

func (e *emulatorStruct) deinit() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.pty != nil {
		e.pty.Close()
		e.pty = nil
	}
	e.wg.Wait()
}
