package netmon

import (
	"fmt"
	"sync"
	"time"

	"github.com/nonoo/fbusmon/fbus"
	"github.com/nonoo/fbusmon/log"
	"go.uber.org/multierr"
)

type Options struct {
	MaxChannels  int
	Timeout      time.Duration
	PollInterval time.Duration
	Namer        DeviceNamer
	Opener       Opener
}

func (o *Options) applyDefaults() {
	if o.MaxChannels <= 0 {
		o.MaxChannels = DefaultMaxChannels
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Namer == nil {
		o.Namer = DefaultDeviceNamer
	}
	if o.Opener == nil {
		o.Opener = SerialOpener
	}
}

// An open channel. The query mutex serializes exchanges on the line.
type channel struct {
	dev  Device
	link *fbus.Link

	queryMutex sync.Mutex
}

// Registry holds the open channels, at most one per id.
type Registry struct {
	opts Options

	mutex    sync.Mutex
	channels map[int]*channel
	stats    map[int]*fbus.Stats
}

func NewRegistry(opts Options) *Registry {
	opts.applyDefaults()
	return &Registry{
		opts:     opts,
		channels: make(map[int]*channel),
		stats:    make(map[int]*fbus.Stats),
	}
}

func (r *Registry) validID(id int) bool {
	return id >= 1 && id <= r.opts.MaxChannels
}

// Stats returns the line counters of a channel. They survive reconnects.
func (r *Registry) Stats(id int) *fbus.Stats {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.statsLocked(id)
}

func (r *Registry) statsLocked(id int) *fbus.Stats {
	s := r.stats[id]
	if s == nil {
		s = &fbus.Stats{}
		r.stats[id] = s
	}
	return s
}

// Connect opens the device of the channel and prepares the line for FBUS.
func (r *Registry) Connect(id int) error {
	if !r.validID(id) {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, id)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.channels[id]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyOpen, id)
	}

	path := r.opts.Namer(id)
	dev, err := r.opts.Opener(path)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrCannotOpen, path, err)
	}

	cfg := deviceConfig{mode: lineMode(), pollInterval: r.opts.PollInterval}
	if err = setupLine(dev, cfg); err == nil {
		err = sendPreamble(dev)
	}
	if err != nil {
		_ = dev.Close()
		return err
	}

	stats := r.statsLocked(id)
	r.channels[id] = &channel{
		dev:  dev,
		link: fbus.NewLink(fbus.Terminal, dev, stats),
	}
	log.Print("channel ", id, " connected to ", path)
	return nil
}

// Disconnect closes the device of the channel. A query in flight fails with the
// device's read error.
func (r *Registry) Disconnect(id int) error {
	if !r.validID(id) {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, id)
	}

	r.mutex.Lock()
	ch, ok := r.channels[id]
	delete(r.channels, id)
	r.mutex.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrNotConnected, id)
	}
	log.Print("channel ", id, " disconnected")
	return ch.dev.Close()
}

// Connected returns whether the channel has an open device.
func (r *Registry) Connected(id int) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, ok := r.channels[id]
	return ok
}

// Close disconnects all channels.
func (r *Registry) Close() error {
	r.mutex.Lock()
	ids := make([]int, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	r.mutex.Unlock()

	var err error
	for _, id := range ids {
		err = multierr.Append(err, r.Disconnect(id))
	}
	return err
}

func (r *Registry) get(id int) (*channel, error) {
	if !r.validID(id) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannel, id)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch, ok := r.channels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotConnected, id)
	}
	return ch, nil
}
