package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nonoo/fbusmon/fbus"
	"github.com/nonoo/fbusmon/log"
	"github.com/nonoo/fbusmon/netmon"
)

var ErrDegradedShutdown = errors.New("worker did not stop in time, abandoned")

const DefaultGrace = time.Second

// Querier is the part of netmon.Registry the worker uses.
type Querier interface {
	Connect(id int) error
	Disconnect(id int) error
	GetBasestations(ctx context.Context, id int) ([]netmon.BaseStation, error)
	GetLocation(ctx context.Context, id int) (netmon.Location, error)
}

type WorkerConfig struct {
	Channel int
	// Pause between cycles. 0 polls back to back.
	Interval    time.Duration
	PublishWait time.Duration

	// Called from the worker goroutine after each publish.
	OnPublish func(snap *Snapshot)
}

// Worker polls one channel and publishes the results to a Store.
type Worker struct {
	q     Querier
	store *Store
	cfg   WorkerConfig

	mutex              sync.Mutex
	cancel             context.CancelFunc
	deinitFinishedChan chan bool
	err                error
}

func NewWorker(q Querier, store *Store, cfg WorkerConfig) *Worker {
	if cfg.PublishWait <= 0 {
		cfg.PublishWait = DefaultWait
	}
	return &Worker{q: q, store: store, cfg: cfg}
}

// Start connects the channel and starts polling.
func (w *Worker) Start() error {
	if err := w.q.Connect(w.cfg.Channel); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.mutex.Lock()
	w.cancel = cancel
	w.deinitFinishedChan = make(chan bool)
	w.err = nil
	finished := w.deinitFinishedChan
	w.mutex.Unlock()

	go w.loop(ctx, cancel, finished)
	return nil
}

// Done is closed when the polling goroutine exits.
func (w *Worker) Done() <-chan bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.deinitFinishedChan
}

// Err returns the error which stopped the worker.
func (w *Worker) Err() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.err
}

// Stop asks the worker to finish its cycle and waits for it at most grace. If it doesn't
// finish in time, it is left running and ErrDegradedShutdown is returned.
func (w *Worker) Stop(grace time.Duration) error {
	w.mutex.Lock()
	cancel := w.cancel
	finished := w.deinitFinishedChan
	w.mutex.Unlock()

	if cancel == nil { // Already stopped?
		return nil
	}
	cancel()

	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-finished:
	case <-t.C:
		log.Error("worker for channel ", w.cfg.Channel, " didn't stop in ", grace)
		return ErrDegradedShutdown
	}

	w.mutex.Lock()
	w.cancel = nil
	w.mutex.Unlock()
	return nil
}

func (w *Worker) exit(err error, finished chan bool) {
	w.store.Reset()
	if derr := w.q.Disconnect(w.cfg.Channel); derr != nil && !errors.Is(derr, netmon.ErrNotConnected) {
		log.Error(derr)
	}

	w.mutex.Lock()
	w.err = err
	w.mutex.Unlock()
	close(finished)
}

func isExpected(err error) bool {
	return errors.Is(err, netmon.ErrNoData) || errors.Is(err, fbus.ErrTimeout)
}

func (w *Worker) loop(ctx context.Context, cancel context.CancelFunc, finished chan bool) {
	var err error
	defer func() {
		cancel()
		w.exit(err, finished)
	}()

	var cycle uint64
	var prevChannel uint16
	var loc netmon.Location
	var hasLoc bool

	for {
		if ctx.Err() != nil {
			return
		}

		var bs []netmon.BaseStation
		bs, err = w.q.GetBasestations(ctx, w.cfg.Channel)
		if ctx.Err() != nil {
			err = nil
			return
		}
		if isExpected(err) {
			log.Debug("channel ", w.cfg.Channel, ": ", err)
			err = nil
			w.sleep(ctx)
			continue
		}
		if err != nil {
			log.Error("channel ", w.cfg.Channel, ": ", err)
			return
		}

		var strongest uint16
		if len(bs) > 0 {
			strongest = bs[0].Channel
		}
		if strongest != prevChannel || !hasLoc {
			l, lerr := w.q.GetLocation(ctx, w.cfg.Channel)
			switch {
			case lerr == nil:
				loc = l
				hasLoc = true
				prevChannel = strongest
			case ctx.Err() != nil:
				return
			case isExpected(lerr):
				log.Debug("channel ", w.cfg.Channel, " location: ", lerr)
			default:
				err = lerr
				log.Error("channel ", w.cfg.Channel, " location: ", err)
				return
			}
		}

		cycle++
		snap := &Snapshot{
			BaseStations: bs,
			Location:     loc,
			HasLocation:  hasLoc,
			UpdatedAt:    time.Now(),
			Cycle:        cycle,
		}
		if perr := w.store.Publish(snap, w.cfg.PublishWait); perr != nil {
			log.Debug("channel ", w.cfg.Channel, ": publish skipped: ", perr)
		} else if w.cfg.OnPublish != nil {
			w.cfg.OnPublish(snap)
		}

		w.sleep(ctx)
	}
}

func (w *Worker) sleep(ctx context.Context) {
	if w.cfg.Interval <= 0 {
		return
	}
	t := time.NewTimer(w.cfg.Interval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
