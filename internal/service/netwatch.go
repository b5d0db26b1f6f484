// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/go-state-keeper/internal/logger"
)

// Pinger is the connectivity probe the poll watcher drives. The server
// adapter satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityWatcher reports network reachability and notifies subscribers
// on transitions. Listeners are invoked synchronously in registration order;
// Subscribe returns the unregister handle.
type ConnectivityWatcher interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// connectivityFeed holds the shared subscriber bookkeeping for both watcher
// implementations.
type connectivityFeed struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   []connectivitySub
}

type connectivitySub struct {
	id int
	fn func(online bool)
}

func (f *connectivityFeed) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *connectivityFeed) Subscribe(fn func(online bool)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs = append(f.subs, connectivitySub{id: id, fn: fn})
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, sub := range f.subs {
			if sub.id == id {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				return
			}
		}
	}
}

// transition flips the state and notifies subscribers if it actually changed.
func (f *connectivityFeed) transition(online bool) {
	f.mu.Lock()
	if f.online == online {
		f.mu.Unlock()
		return
	}
	f.online = online
	subs := make([]connectivitySub, len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	for _, sub := range subs {
		sub.fn(online)
	}
}

// PollWatcher detects connectivity by pinging the server on a fixed interval.
// It starts offline and flips online on the first successful probe, so the
// engine never assumes reachability it has not observed.
type PollWatcher struct {
	connectivityFeed

	pinger   Pinger
	interval time.Duration
	logger   *logger.Logger

	jobMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPollWatcher creates a PollWatcher that probes pinger every interval.
// The watcher is idle until Start is called. A non-positive interval defaults
// to 30 seconds.
func NewPollWatcher(pinger Pinger, interval time.Duration, log *logger.Logger) *PollWatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PollWatcher{pinger: pinger, interval: interval, logger: log}
}

// Start launches the probe loop. It probes once immediately, then on every
// tick. Stops any previously running loop first.
func (w *PollWatcher) Start(ctx context.Context) {
	w.Stop()

	w.jobMu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	w.jobMu.Unlock()

	go func() {
		defer w.wg.Done()
		w.probe(jobCtx)

		t := time.NewTicker(w.interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				w.probe(jobCtx)
			}
		}
	}()
}

// Stop cancels the probe loop and blocks until it has exited. Safe to call
// when the watcher is not running.
func (w *PollWatcher) Stop() {
	w.jobMu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.jobMu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *PollWatcher) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	err := w.pinger.Ping(probeCtx)
	online := err == nil
	if !online {
		w.logger.Debug().Err(err).Msg("connectivity probe failed")
	}
	w.transition(online)
}

// ManualWatcher is a ConnectivityWatcher driven by explicit SetOnline calls.
// Used where the host environment delivers its own connectivity signal, and
// in tests.
type ManualWatcher struct {
	connectivityFeed
}

// NewManualWatcher creates a ManualWatcher with the given initial state.
// The initial state is set without notifying subscribers.
func NewManualWatcher(online bool) *ManualWatcher {
	w := &ManualWatcher{}
	w.online = online
	return w
}

// SetOnline flips the connectivity state. Subscribers fire only on an actual
// change.
func (w *ManualWatcher) SetOnline(online bool) {
	w.transition(online)
}
