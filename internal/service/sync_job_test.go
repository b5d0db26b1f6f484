// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoSyncJob_SyncsOnTicker(t *testing.T) {
	srv := &fakeServer{}
	e, watcher, _ := newTestEngine(t, EngineConfig{}, srv, true)

	job := NewAutoSyncJob(e, watcher)
	job.Start(context.Background(), 10*time.Millisecond)
	defer job.Stop()

	require.Eventually(t, func() bool {
		return srv.pulls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond, "the job keeps cycling while online and idle")
}

func TestAutoSyncJob_SkipsWhileOffline(t *testing.T) {
	srv := &fakeServer{}
	e, watcher, _ := newTestEngine(t, EngineConfig{}, srv, true)
	watcher.SetOnline(false)

	job := NewAutoSyncJob(e, watcher)
	job.Start(context.Background(), 10*time.Millisecond)
	defer job.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int64(0), srv.pulls.Load(), "no proactive cycles while offline")
}

func TestAutoSyncJob_StopTerminates(t *testing.T) {
	srv := &fakeServer{}
	e, watcher, _ := newTestEngine(t, EngineConfig{}, srv, true)

	job := NewAutoSyncJob(e, watcher)
	job.Start(context.Background(), 10*time.Millisecond)
	job.Stop()

	pullsAtStop := srv.pulls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, pullsAtStop, srv.pulls.Load(), "stopped jobs fire no further cycles")
}
