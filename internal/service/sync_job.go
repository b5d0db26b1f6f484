// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"sync"
	"time"
)

// AutoSyncJob runs periodic sync cycles on a ticker while the client is
// online and the engine is idle. The job is idle until Start is called.
type AutoSyncJob struct {
	engine  *SyncEngine
	watcher ConnectivityWatcher

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAutoSyncJob creates an AutoSyncJob over an engine and its watcher.
func NewAutoSyncJob(engine *SyncEngine, watcher ConnectivityWatcher) *AutoSyncJob {
	return &AutoSyncJob{engine: engine, watcher: watcher}
}

// Start stops any previously running job, then launches a background
// goroutine that triggers a sync every interval. If interval is zero or
// negative it defaults to 5 minutes. The goroutine exits when ctx is
// cancelled or Stop is called.
func (j *AutoSyncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				j.tick(jobCtx)
			}
		}
	}()
}

// Stop cancels the background goroutine's context and blocks until it has
// fully exited. Safe to call when the job is not running.
func (j *AutoSyncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

// tick triggers one cycle, but only while online and idle: a cycle already
// in flight or waiting out a retry delay is left alone.
func (j *AutoSyncJob) tick(ctx context.Context) {
	if !j.watcher.Online() {
		return
	}
	if j.engine.Status().State != StateIdle {
		return
	}
	_ = j.engine.Sync(ctx)
}
