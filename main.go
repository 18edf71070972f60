package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nonoo/fbusmon/log"
	"github.com/nonoo/fbusmon/monitor"
	"github.com/nonoo/fbusmon/netmon"
	"go.uber.org/multierr"
)

const restartDelay = 5 * time.Second

// Hooks run on every published snapshot.
func onPublish(m *metricsStruct) func(snap *monitor.Snapshot) {
	var tracker monitor.ChangeTracker
	return func(snap *monitor.Snapshot) {
		if m != nil {
			m.observe(snap)
		}
		if bs, ok, changed := tracker.Update(snap); ok && changed {
			log.Print("strongest base station is now ", bs.Channel, " at -", bs.Power, " dBm")
			changeCmdRunner.trigger(bs)
		}
	}
}

func runWorker(cfg config, reg *netmon.Registry, store *monitor.Store, m *metricsStruct,
	osSignal chan os.Signal) (shouldExit bool, exitCode int) {
	w := monitor.NewWorker(reg, store, monitor.WorkerConfig{
		Channel:   cfg.Channel,
		Interval:  cfg.Interval,
		OnPublish: onPublish(m),
	})

	if err := w.Start(); err != nil {
		log.Error(err)
	} else {
		select {
		case <-w.Done():
			log.Error("worker stopped: ", w.Err())
		case <-osSignal:
			log.Print("sigterm received")
			if err := w.Stop(cfg.ShutdownGrace); err != nil {
				log.Error(err)
				return true, 1
			}
			return true, 0
		}
	}

	t := time.NewTimer(restartDelay)
	defer t.Stop()
	log.Print("restarting in ", restartDelay)
	select {
	case <-t.C:
		return false, 0
	case <-osSignal:
		return true, 0
	}
}

func waitForSignal(osSignal chan os.Signal) {
	<-osSignal
	log.Print("sigterm received")
}

func exit(reg *netmon.Registry, m *metricsStruct, exitCode int) {
	statusLog.stopPeriodicPrint()
	snapshotSrv.deinit()
	changeCmdRunner.stop()
	if m != nil {
		m.stop()
	}

	var err error
	if reg != nil {
		err = multierr.Append(err, reg.Close())
	}
	emulator.deinit()
	if err != nil {
		log.Error(err)
		exitCode = 1
	}

	log.Print("exiting")
	log.Sync()
	os.Exit(exitCode)
}

func main() {
	cfg := parseArgs()
	log.Init(cfg.Log.Verbose, cfg.Log.File)
	log.Print("fbusmon: nokia netmonitor over fbus")

	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal, os.Interrupt, syscall.SIGTERM)

	emulator.init()
	if cfg.PTY {
		if err := emulator.initPTY(); err != nil {
			fmt.Println(err)
			exit(nil, nil, 1)
		}
		if !cfg.Emulate {
			waitForSignal(osSignal)
			exit(nil, nil, 0)
		}
	}

	opts := netmon.Options{
		MaxChannels:  cfg.MaxChannels,
		Timeout:      cfg.Timeout,
		PollInterval: cfg.PollInterval,
		Namer:        cfg.deviceNamer(),
	}
	if cfg.Emulate {
		opts.Opener = emulator.opener
	}
	reg := netmon.NewRegistry(opts)
	store := monitor.NewStore()
	stats := reg.Stats(cfg.Channel)

	var m *metricsStruct
	if cfg.Metrics != "" {
		m = newMetrics(stats)
		m.start(cfg.Metrics)
	}
	if cfg.Listen != "" && cfg.Listen != "-" {
		if err := snapshotSrv.init(cfg.Listen, store, stats); err != nil {
			log.Error(err)
			exit(reg, m, 1)
		}
	}
	changeCmdRunner.startIfNeeded(cfg.OnChange)
	if cfg.StatusInterval > 0 {
		statusLog.startPeriodicPrint(cfg.StatusInterval, store, stats)
	}

	var shouldExit bool
	var exitCode int
	for !shouldExit {
		shouldExit, exitCode = runWorker(cfg, reg, store, m, osSignal)
	}
	exit(reg, m, exitCode)
}
