package netmon

import (
	"context"
	"errors"
	"fmt"

	"github.com/nonoo/fbusmon/fbus"
	"github.com/nonoo/fbusmon/log"
)

const (
	cmdNetmon = 0x40

	argEnable = 0x64
	argPage   = 0x7e

	firstBasestationPage = 3
	lastBasestationPage  = 5
	locationPage         = 0x0b
)

// Switches the handset to netmonitor mode. Any answer on the netmonitor command counts.
var enableArgs = []byte{argEnable, 0x01}

func (r *Registry) request(ctx context.Context, ch *channel, args []byte) ([]byte, error) {
	if err := ch.link.Send(cmdNetmon, args); err != nil {
		return nil, err
	}
	return ch.link.Receive(ctx, cmdNetmon, r.opts.Timeout)
}

func (r *Registry) probe(ctx context.Context, id int, ch *channel) error {
	_, err := r.request(ctx, ch, enableArgs)
	if errors.Is(err, fbus.ErrTimeout) {
		return fmt.Errorf("%w: channel %d not answering", ErrNoData, id)
	}
	return err
}

// GetBasestations reads the neighbour list pages. Pages the handset doesn't answer are
// skipped. The result is in page order and may be empty.
func (r *Registry) GetBasestations(ctx context.Context, id int) ([]BaseStation, error) {
	ch, err := r.get(id)
	if err != nil {
		return nil, err
	}
	ch.queryMutex.Lock()
	defer ch.queryMutex.Unlock()

	if err := r.probe(ctx, id, ch); err != nil {
		return nil, err
	}

	res := []BaseStation{}
	for page := byte(firstBasestationPage); page <= lastBasestationPage; page++ {
		p, err := r.request(ctx, ch, []byte{argPage, page})
		if errors.Is(err, fbus.ErrTimeout) {
			log.Debug("channel ", id, " page ", page, " timed out")
			continue
		}
		if err != nil {
			return nil, err
		}
		res = append(res, parseBasestationPage(p)...)
	}
	return res, nil
}

// GetLocation reads the serving cell page.
func (r *Registry) GetLocation(ctx context.Context, id int) (Location, error) {
	ch, err := r.get(id)
	if err != nil {
		return Location{}, err
	}
	ch.queryMutex.Lock()
	defer ch.queryMutex.Unlock()

	if err := r.probe(ctx, id, ch); err != nil {
		return Location{}, err
	}

	p, err := r.request(ctx, ch, []byte{argPage, locationPage})
	if errors.Is(err, fbus.ErrTimeout) {
		return Location{}, fmt.Errorf("%w: channel %d location page timed out", ErrNoData, id)
	}
	if err != nil {
		return Location{}, err
	}
	return parseLocation(p)
}
