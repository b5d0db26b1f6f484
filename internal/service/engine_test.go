// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-state-keeper/internal/adapter"
	"github.com/MKhiriev/go-state-keeper/internal/cache"
	"github.com/MKhiriev/go-state-keeper/internal/codec"
	"github.com/MKhiriev/go-state-keeper/internal/logger"
	"github.com/MKhiriev/go-state-keeper/internal/mock"
	"github.com/MKhiriev/go-state-keeper/internal/store"
	"github.com/MKhiriev/go-state-keeper/models"
)

// fakeServer is an in-memory ServerAdapter holding one snapshot per test. It
// applies the server-side conflict rule: a stored copy with a higher version
// and a different checksum rejects the push and hands back its own token.
type fakeServer struct {
	mu        sync.Mutex
	has       bool
	token     string
	timestamp int64
	version   int64
	checksum  string

	pushes  atomic.Int64
	pulls   atomic.Int64
	failAll atomic.Bool
}

func (f *fakeServer) seed(t *testing.T, envCodec *codec.EnvelopeCodec, data any, ts, version int64) {
	t.Helper()
	token, err := envCodec.Encode(data, codec.EncodeOptions{})
	require.NoError(t, err)
	sum, err := codec.Checksum(data)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.has, f.token, f.timestamp, f.version, f.checksum = true, token, ts, version, sum
}

func (f *fakeServer) Pull(_ context.Context, _ string) (models.PullResponse, bool, error) {
	f.pulls.Add(1)
	if f.failAll.Load() {
		return models.PullResponse{}, false, fmt.Errorf("%w: fake outage", adapter.ErrNetworkFailure)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.has {
		return models.PullResponse{}, false, nil
	}
	return models.PullResponse{Token: f.token, Timestamp: f.timestamp, Version: f.version, Checksum: f.checksum}, true, nil
}

func (f *fakeServer) Push(_ context.Context, _ string, req models.PushRequest) (models.PushResponse, error) {
	f.pushes.Add(1)
	if f.failAll.Load() {
		return models.PushResponse{}, fmt.Errorf("%w: fake outage", adapter.ErrNetworkFailure)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.has && f.version > req.Version && f.checksum != req.Checksum {
		return models.PushResponse{
			Timestamp:   f.timestamp,
			Version:     f.version,
			Conflict:    true,
			ServerToken: f.token,
		}, nil
	}

	f.has, f.token, f.timestamp, f.version, f.checksum = true, req.Token, req.Timestamp, req.Version, req.Checksum
	return models.PushResponse{Timestamp: req.Timestamp, Version: req.Version}, nil
}

func (f *fakeServer) Ping(context.Context) error {
	if f.failAll.Load() {
		return fmt.Errorf("%w: fake outage", adapter.ErrNetworkFailure)
	}
	return nil
}

func (f *fakeServer) SetToken(string) {}

// newTestEngine — хелпер: движок над in-memory кэшем и фейковым адаптером.
func newTestEngine(t *testing.T, cfg EngineConfig, remote adapter.ServerAdapter, online bool) (*SyncEngine, *ManualWatcher, *cache.Manager) {
	t.Helper()

	if cfg.StoreID == "" {
		cfg.StoreID = "settings"
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = 5 * time.Millisecond
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 10 * time.Millisecond
	}

	watcher := NewManualWatcher(online)
	chain := store.NewChain(logger.Nop(), store.NewMemoryBackend(""))
	mgr := cache.NewManager(chain, codec.NewEnvelopeCodec(), 0, logger.Nop())

	e := NewSyncEngine(cfg, mgr, remote, codec.NewEnvelopeCodec(), watcher, logger.Nop())
	t.Cleanup(e.Close)
	return e, watcher, mgr
}

// ── save & pending queue ─────────────────────────────────────────────────────

func TestSyncEngine_Save_Offline_CachesAndQueues(t *testing.T) {
	srv := &fakeServer{}
	e, _, mgr := newTestEngine(t, EngineConfig{}, srv, false)
	ctx := context.Background()

	require.NoError(t, e.Save(ctx, map[string]any{"theme": "dark"}))

	st := e.Status()
	assert.Equal(t, 1, st.PendingChanges)
	assert.Equal(t, int64(0), srv.pushes.Load(), "offline saves must not touch the network")

	// The local cache write happens before Save returns.
	value, ok, err := mgr.Load(ctx, "settings", cache.LoadOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"theme": "dark"}, value)
}

func TestSyncEngine_OfflineSaves_FlushOnReconnect(t *testing.T) {
	srv := &fakeServer{}
	e, watcher, _ := newTestEngine(t, EngineConfig{}, srv, false)
	ctx := context.Background()

	require.NoError(t, e.Save(ctx, map[string]any{"draft": float64(1)}))
	require.NoError(t, e.Save(ctx, map[string]any{"draft": float64(2)}))
	require.Equal(t, 2, e.Status().PendingChanges)

	watcher.SetOnline(true)

	require.Eventually(t, func() bool {
		return e.Status().PendingChanges == 0 && e.Status().State == StateIdle
	}, 2*time.Second, 10*time.Millisecond, "reconnect must drain the pending queue")

	assert.Equal(t, int64(2), srv.pushes.Load(), "exactly one POST per queued item")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.True(t, srv.has)
}

func TestSyncEngine_Save_ValidationGate(t *testing.T) {
	srv := &fakeServer{}
	e, _, mgr := newTestEngine(t, EngineConfig{
		Validate: func(value any) error {
			if _, ok := value.(map[string]any); !ok {
				return errors.New("want an object")
			}
			return nil
		},
	}, srv, false)
	ctx := context.Background()

	err := e.Save(ctx, "just a string")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, e.Status().PendingChanges)

	_, ok, err := mgr.Load(ctx, "settings", cache.LoadOptions{})
	require.NoError(t, err)
	assert.False(t, ok, "rejected values must not reach the cache")
}

func TestSyncEngine_Save_Online_PushesWithoutConflict(t *testing.T) {
	srv := &fakeServer{}
	e, _, _ := newTestEngine(t, EngineConfig{}, srv, true)
	ctx := context.Background()

	require.NoError(t, e.Save(ctx, map[string]any{"count": float64(1)}))
	require.Eventually(t, func() bool {
		return srv.pushes.Load() == 1 && e.Status().State == StateIdle
	}, 2*time.Second, 5*time.Millisecond)

	// Overwriting our own previous server copy is a plain update, never a
	// conflict against ourselves.
	require.NoError(t, e.Save(ctx, map[string]any{"count": float64(2)}))
	require.Eventually(t, func() bool {
		return srv.pushes.Load() == 2 && e.Status().State == StateIdle
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(0), e.Status().Conflicts)
	assert.Equal(t, int64(0), srv.pulls.Load(), "an online save pushes; it does not pull")

	snapshot, ok := e.Snapshot()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"count": float64(2)}, snapshot.Data)

	want, err := codec.Checksum(map[string]any{"count": float64(2)})
	require.NoError(t, err)
	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, want, srv.checksum, "the server holds the latest save")
}

func TestSyncEngine_Save_Online_ServerWinsKeepsNewSave(t *testing.T) {
	srv := &fakeServer{}
	e, _, _ := newTestEngine(t, EngineConfig{Strategy: models.StrategyServerWins}, srv, true)
	ctx := context.Background()

	require.NoError(t, e.Save(ctx, map[string]any{"count": float64(1)}))
	require.Eventually(t, func() bool {
		return srv.pushes.Load() == 1 && e.Status().State == StateIdle
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.Save(ctx, map[string]any{"count": float64(2)}))
	require.Eventually(t, func() bool {
		return srv.pushes.Load() == 2 && e.Status().State == StateIdle
	}, 2*time.Second, 5*time.Millisecond)

	snapshot, ok := e.Snapshot()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"count": float64(2)}, snapshot.Data,
		"a save must not be reverted to the server's previous copy")
}

func TestSyncEngine_Save_DuringActiveCycle_Queued(t *testing.T) {
	srv := &fakeServer{}
	srv.failAll.Store(true)
	e, _, _ := newTestEngine(t, EngineConfig{RetryAttempts: 3, RetryBaseDelay: time.Minute}, srv, true)
	ctx := context.Background()

	require.Error(t, e.Sync(ctx))
	require.Equal(t, StateRetryWait, e.Status().State)

	require.NoError(t, e.Save(ctx, map[string]any{"draft": true}))

	require.Eventually(t, func() bool {
		return e.Status().PendingChanges == 1
	}, time.Second, 5*time.Millisecond, "a save during an active cycle is queued, not dropped")
}

// ── pull & adoption ──────────────────────────────────────────────────────────

func TestSyncEngine_Sync_AdoptsServerCopy(t *testing.T) {
	srv := &fakeServer{}
	e, _, mgr := newTestEngine(t, EngineConfig{}, srv, true)
	ctx := context.Background()

	srv.seed(t, codec.NewEnvelopeCodec(), map[string]any{"count": 7}, 1000, 3)

	require.NoError(t, e.Sync(ctx))

	snapshot, ok := e.Snapshot()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"count": float64(7)}, snapshot.Data)
	assert.Equal(t, int64(3), snapshot.Version)

	value, ok, err := mgr.Load(ctx, "settings", cache.LoadOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"count": float64(7)}, value)

	// Second cycle: checksums are equal, nothing to push, no conflict.
	pushesBefore := srv.pushes.Load()
	require.NoError(t, e.Sync(ctx))
	assert.Equal(t, pushesBefore, srv.pushes.Load())
	assert.Equal(t, int64(0), e.Status().Conflicts)
}

func TestSyncEngine_Sync_SeedsEmptyServer(t *testing.T) {
	srv := &fakeServer{}
	e, _, _ := newTestEngine(t, EngineConfig{}, srv, false)
	ctx := context.Background()

	require.NoError(t, e.Save(ctx, map[string]any{"first": true}))
	require.NoError(t, e.Sync(ctx))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.True(t, srv.has, "the first sync seeds the server copy")
}

// ── conflicts ────────────────────────────────────────────────────────────────

func TestSyncEngine_Conflict_TimestampStrategy(t *testing.T) {
	srv := &fakeServer{}
	e, _, _ := newTestEngine(t, EngineConfig{Strategy: models.StrategyTimestamp}, srv, false)
	ctx := context.Background()

	// Server copy: higher version and a timestamp far in the future.
	future := time.Now().Add(time.Hour).UnixMilli()
	srv.seed(t, codec.NewEnvelopeCodec(), map[string]any{"count": 2}, future, 5)

	var events []ConflictEvent
	e.OnConflict(func(ev ConflictEvent) { events = append(events, ev) })

	require.NoError(t, e.Save(ctx, map[string]any{"count": 1}))
	require.NoError(t, e.Sync(ctx))

	require.Len(t, events, 1)
	assert.Equal(t, map[string]any{"count": float64(2)}, events[0].Resolved, "most recent timestamp wins outright")

	st := e.Status()
	assert.Equal(t, int64(1), st.Conflicts)
	assert.Equal(t, int64(6), st.Version, "resolution bumps past the larger version")

	snapshot, ok := e.Snapshot()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"count": float64(2)}, snapshot.Data)
}

func TestSyncEngine_Conflict_MergeStrategy(t *testing.T) {
	srv := &fakeServer{}
	e, _, _ := newTestEngine(t, EngineConfig{Strategy: models.StrategyMerge}, srv, false)
	ctx := context.Background()

	srv.seed(t, codec.NewEnvelopeCodec(), []any{2, 3}, 2000, 5)

	var resolved any
	e.OnConflict(func(ev ConflictEvent) { resolved = ev.Resolved })

	require.NoError(t, e.Save(ctx, []any{1, 2}))
	require.NoError(t, e.Sync(ctx))

	assert.Equal(t, []any{float64(2), float64(3), float64(1)}, resolved)
}

// ── retry & backoff ──────────────────────────────────────────────────────────

func TestSyncEngine_Retry_ExhaustsAndReturnsToIdle(t *testing.T) {
	srv := &fakeServer{}
	srv.failAll.Store(true)
	e, _, _ := newTestEngine(t, EngineConfig{RetryAttempts: 2, RetryBaseDelay: 5 * time.Millisecond}, srv, true)
	ctx := context.Background()

	results := make(chan error, 8)
	e.OnSync(func(err error) { results <- err })

	err := e.Sync(ctx)
	require.ErrorIs(t, err, adapter.ErrNetworkFailure, "the trigger call reports the first failure")

	select {
	case got := <-results:
		assert.ErrorIs(t, got, ErrRetriesExhausted)
		assert.ErrorIs(t, got, adapter.ErrNetworkFailure)
	case <-time.After(2 * time.Second):
		t.Fatal("retry ceiling never surfaced")
	}

	st := e.Status()
	assert.Equal(t, StateIdle, st.State, "after exhaustion the engine idles until the next trigger")
	assert.Error(t, st.LastError)
	assert.Equal(t, int64(3), srv.pulls.Load(), "initial attempt plus two retries")
}

func TestSyncEngine_Retry_ExhaustionClearsPendingQueue(t *testing.T) {
	srv := &fakeServer{}
	e, watcher, _ := newTestEngine(t, EngineConfig{RetryAttempts: 2, RetryBaseDelay: 5 * time.Millisecond}, srv, false)
	ctx := context.Background()

	require.NoError(t, e.Save(ctx, map[string]any{"draft": true}))
	require.Equal(t, 1, e.Status().PendingChanges)

	results := make(chan error, 8)
	e.OnSync(func(err error) { results <- err })

	srv.failAll.Store(true)
	watcher.SetOnline(true)

	select {
	case got := <-results:
		require.ErrorIs(t, got, ErrRetriesExhausted)
	case <-time.After(2 * time.Second):
		t.Fatal("retry ceiling never surfaced")
	}

	st := e.Status()
	assert.Equal(t, 0, st.PendingChanges, "exhausted retries consume the queued items")
	assert.Equal(t, StateIdle, st.State)
}

func TestSyncEngine_Sync_BusyDuringRetryWait(t *testing.T) {
	srv := &fakeServer{}
	srv.failAll.Store(true)
	e, _, _ := newTestEngine(t, EngineConfig{RetryAttempts: 3, RetryBaseDelay: time.Minute}, srv, true)
	ctx := context.Background()

	require.Error(t, e.Sync(ctx))
	require.Equal(t, StateRetryWait, e.Status().State)

	err := e.Sync(ctx)
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestSyncEngine_Retry_RecoversMidway(t *testing.T) {
	srv := &fakeServer{}
	srv.failAll.Store(true)
	e, _, _ := newTestEngine(t, EngineConfig{RetryAttempts: 5, RetryBaseDelay: 5 * time.Millisecond}, srv, true)
	ctx := context.Background()

	results := make(chan error, 8)
	e.OnSync(func(err error) { results <- err })

	require.Error(t, e.Sync(ctx))
	srv.failAll.Store(false) // сеть вернулась до исчерпания попыток

	select {
	case got := <-results:
		assert.NoError(t, got, "a retry after recovery completes the cycle")
	case <-time.After(2 * time.Second):
		t.Fatal("retry never completed")
	}
	assert.Equal(t, StateIdle, e.Status().State)
}

// ── listeners & encrypted stores ─────────────────────────────────────────────

func TestSyncEngine_Listeners_UnregisterHandle(t *testing.T) {
	srv := &fakeServer{}
	e, _, _ := newTestEngine(t, EngineConfig{}, srv, true)

	var kept, removed atomic.Int64
	e.OnSync(func(error) { kept.Add(1) })
	unregister := e.OnSync(func(error) { removed.Add(1) })
	unregister()

	require.NoError(t, e.Sync(context.Background()))

	assert.Equal(t, int64(1), kept.Load())
	assert.Equal(t, int64(0), removed.Load())
}

func TestSyncEngine_OfflineOnlineCallbacks(t *testing.T) {
	srv := &fakeServer{}
	e, watcher, _ := newTestEngine(t, EngineConfig{}, srv, true)

	var wentOffline, wentOnline atomic.Int64
	e.OnOffline(func() { wentOffline.Add(1) })
	e.OnOnline(func() { wentOnline.Add(1) })

	watcher.SetOnline(false)
	watcher.SetOnline(true)

	assert.Equal(t, int64(1), wentOffline.Load())
	assert.Equal(t, int64(1), wentOnline.Load())
}

func TestSyncEngine_EncryptedStore_RoundTrip(t *testing.T) {
	srv := &fakeServer{}
	e, _, _ := newTestEngine(t, EngineConfig{Encrypt: true, Password: "vault-pw"}, srv, false)
	ctx := context.Background()

	require.NoError(t, e.Save(ctx, map[string]any{"secret": "v"}))
	require.NoError(t, e.Sync(ctx))

	srv.mu.Lock()
	token := srv.token
	srv.mu.Unlock()
	assert.True(t, strings.HasPrefix(token, models.PrefixEncrypted), "the wire token carries the encryption prefix")

	// The next cycle decodes the server copy with the configured password.
	require.NoError(t, e.Sync(ctx))
	assert.Equal(t, int64(0), e.Status().Conflicts)
}

// ── gomock adapter ───────────────────────────────────────────────────────────

func TestSyncEngine_Sync_NothingAnywhere(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := mock.NewMockServerAdapter(ctrl)
	remote.EXPECT().Pull(gomock.Any(), "settings").Return(models.PullResponse{}, false, nil)

	e, _, _ := newTestEngine(t, EngineConfig{}, remote, true)

	require.NoError(t, e.Sync(context.Background()), "no local and no server copy is a clean no-op")
	assert.Equal(t, StateIdle, e.Status().State)
}
