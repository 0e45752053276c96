// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
)

// defaultRequestTimeout bounds each backend request made by the poller
// so a stalled backend cannot wedge the polling goroutine.
const defaultRequestTimeout = 30 * time.Second

// PollerConfig holds the dependencies of a Poller.
type PollerConfig struct {
	// Source is asked for the best height on every tick.
	Source Source

	// Ticker drives the polling cadence. Tests can inject a force
	// ticker to control ticks manually.
	Ticker ticker.Ticker

	// OnBlock is invoked once per newly seen height, in ascending
	// order, from the poller's goroutine.
	OnBlock func(height int32)
}

// Poller watches a chain source for best-height growth and notifies on
// every new block. Backends that push notifications natively do not
// need it; pull-style backends wrap themselves in one.
type Poller struct {
	cfg PollerConfig

	started sync.Once
	stopped sync.Once
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewPoller constructs a poller from the given config.
func NewPoller(cfg *PollerConfig) *Poller {
	return &Poller{
		cfg:  *cfg,
		quit: make(chan struct{}),
	}
}

// Start queries the current best height and begins watching for growth
// past it.
func (p *Poller) Start() error {
	var startErr error
	p.started.Do(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), defaultRequestTimeout,
		)
		defer cancel()

		height, err := p.cfg.Source.BestHeight(ctx)
		if err != nil {
			startErr = err
			return
		}

		p.wg.Add(1)
		go p.pollBlocks(height)
	})
	return startErr
}

// Stop halts the polling goroutine and waits for it to exit.
func (p *Poller) Stop() {
	p.stopped.Do(func() {
		close(p.quit)
		p.wg.Wait()
	})
}

// pollBlocks asks the source for its best height on every tick and
// fires the callback for each height between the last seen one and the
// new tip.
func (p *Poller) pollBlocks(startHeight int32) {
	defer p.wg.Done()

	log.Infof("Started polling for new blocks from height %d",
		startHeight)

	p.cfg.Ticker.Resume()
	defer p.cfg.Ticker.Stop()

	height := startHeight
	for {
		select {
		case <-p.cfg.Ticker.Ticks():
			ctx, cancel := context.WithTimeout(
				context.Background(), defaultRequestTimeout,
			)
			best, err := p.cfg.Source.BestHeight(ctx)
			cancel()
			if err != nil {
				log.Errorf("Unable to retrieve best height: "+
					"%v", err)
				continue
			}

			if best <= height {
				continue
			}

			for i := height + 1; i <= best; i++ {
				p.cfg.OnBlock(i)
			}
			height = best

		case <-p.quit:
			return
		}
	}
}
