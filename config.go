package main

import (
	"fmt"
	"os"
	"time"

	"github.com/nonoo/fbusmon/monitor"
	"github.com/nonoo/fbusmon/netmon"
	"gopkg.in/yaml.v3"
)

type logConfig struct {
	File    string `yaml:"file"`
	Verbose bool   `yaml:"verbose"`
}

type config struct {
	Device         string         `yaml:"device"`
	Devices        map[int]string `yaml:"devices"`
	Channel        int            `yaml:"channel"`
	MaxChannels    int            `yaml:"max_channels"`
	Timeout        time.Duration  `yaml:"timeout"`
	PollInterval   time.Duration  `yaml:"poll_interval"`
	Interval       time.Duration  `yaml:"interval"`
	StatusInterval time.Duration  `yaml:"status_interval"`
	ShutdownGrace  time.Duration  `yaml:"shutdown_grace"`
	Listen         string         `yaml:"listen"`
	Metrics        string         `yaml:"metrics"`
	OnChange       string         `yaml:"on_change"`
	Emulate        bool           `yaml:"emulate"`
	PTY            bool           `yaml:"pty"`
	Log            logConfig      `yaml:"log"`
}

func defaultConfig() config {
	return config{
		Channel:        1,
		MaxChannels:    netmon.DefaultMaxChannels,
		Timeout:        netmon.DefaultTimeout,
		PollInterval:   netmon.DefaultPollInterval,
		StatusInterval: 5 * time.Second,
		ShutdownGrace:  monitor.DefaultGrace,
		Listen:         ":4533",
	}
}

func loadConfig(path string) (config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	c.applyDefaults()
	return c, c.validate()
}

// Zero values left by the file fall back to defaults.
func (c *config) applyDefaults() {
	d := defaultConfig()
	if c.Channel == 0 {
		c.Channel = d.Channel
	}
	if c.MaxChannels <= 0 {
		c.MaxChannels = d.MaxChannels
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = d.ShutdownGrace
	}
}

func (c *config) validate() error {
	if c.Channel < 1 || c.Channel > c.MaxChannels {
		return fmt.Errorf("channel %d out of range 1..%d", c.Channel, c.MaxChannels)
	}
	if c.Interval < 0 {
		return fmt.Errorf("negative interval %s", c.Interval)
	}
	return nil
}

func (c *config) deviceNamer() netmon.DeviceNamer {
	return func(id int) string {
		if id == c.Channel && c.Device != "" {
			return c.Device
		}
		if p, ok := c.Devices[id]; ok {
			return p
		}
		return netmon.DefaultDeviceNamer(id)
	}
}
