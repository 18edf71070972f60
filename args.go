package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pborman/getopt"
)

func parseArgs() config {
	h := getopt.BoolLong("help", 'h', "display help")
	c := getopt.StringLong("config", 'c', "", "Load config from YAML file")
	d := getopt.StringLong("device", 'd', "", "Serial device of the channel (default /dev/ttyUSB<channel-1>)")
	n := getopt.IntLong("channel", 'n', 0, "Channel number (default 1)")
	t := getopt.IntLong("timeout", 't', 0, "Frame receive timeout in milliseconds (default 2000)")
	i := getopt.IntLong("interval", 'i', -1, "Pause between polls in milliseconds (default 0)")
	s := getopt.IntLong("statusinterval", 's', 0, "Status line interval in milliseconds (default 5000)")
	l := getopt.StringLong("listen", 'l', "", "Snapshot server listen address, - to disable (default :4533)")
	m := getopt.StringLong("metrics", 'm', "", "Prometheus exporter listen address")
	o := getopt.StringLong("onchange", 'o', "", "Run command when the strongest base station changes")
	e := getopt.BoolLong("emulate", 'e', "Poll an emulated handset")
	p := getopt.BoolLong("pty", 0, "Expose an emulated handset on a pseudo-terminal")
	v := getopt.BoolLong("verbose", 'v', "Enable debug logging")
	f := getopt.StringLong("logfile", 0, "", "Log to rotated file as well")

	getopt.Parse()

	if *h {
		getopt.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*c)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *d != "" {
		cfg.Device = *d
	}
	if *n > 0 {
		cfg.Channel = *n
	}
	if *t > 0 {
		cfg.Timeout = time.Duration(*t) * time.Millisecond
	}
	if *i >= 0 {
		cfg.Interval = time.Duration(*i) * time.Millisecond
	}
	if *s > 0 {
		cfg.StatusInterval = time.Duration(*s) * time.Millisecond
	}
	if *l != "" {
		cfg.Listen = *l
	}
	if *m != "" {
		cfg.Metrics = *m
	}
	if *o != "" {
		cfg.OnChange = *o
	}
	cfg.Emulate = cfg.Emulate || *e
	cfg.PTY = cfg.PTY || *p
	cfg.Log.Verbose = cfg.Log.Verbose || *v
	if *f != "" {
		cfg.Log.File = *f
	}

	if err := cfg.validate(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return cfg
}
