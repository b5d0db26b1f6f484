// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package service implements the synchronization layer: conflict resolution
// strategies, the connectivity watcher, the sync engine state machine and the
// periodic auto-sync job.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/MKhiriev/go-state-keeper/internal/adapter"
	"github.com/MKhiriev/go-state-keeper/internal/cache"
	"github.com/MKhiriev/go-state-keeper/internal/codec"
	"github.com/MKhiriev/go-state-keeper/internal/logger"
	"github.com/MKhiriev/go-state-keeper/models"
)

// Engine states.
const (
	StateIdle      = "idle"
	StateSyncing   = "syncing"
	StateRetryWait = "retry-wait"
)

// Engine events.
const (
	eventTrigger = "trigger"
	eventSucceed = "succeed"
	eventFail    = "fail"
	eventRetry   = "retry"
	eventGiveUp  = "give-up"
)

// EngineConfig configures a sync engine for one logical store.
type EngineConfig struct {
	// StoreID names the logical store; it is both the cache key and the
	// server endpoint path segment.
	StoreID string

	// ClientID identifies this client instance. Generated when empty.
	ClientID string

	// UserID optionally scopes snapshots to an authenticated user.
	UserID string

	// Strategy selects conflict resolution. Defaults to client-wins.
	Strategy models.ConflictStrategy

	// Resolver backs the custom strategy.
	Resolver CustomResolver

	// RetryAttempts caps automatic retries per trigger. Defaults to 3.
	RetryAttempts int

	// RetryBaseDelay is the first retry delay; each retry doubles it.
	// Defaults to 1 second.
	RetryBaseDelay time.Duration

	// SettleDelay postpones the sync scheduled on reconnect, so a flapping
	// network does not trigger a herd of cycles. Defaults to 2 seconds.
	SettleDelay time.Duration

	// CacheTTL bounds the local record's lifetime. Zero uses the cache
	// manager default.
	CacheTTL time.Duration

	// Compress, Encrypt and Password control how snapshots are encoded for
	// both the local cache and the wire.
	Compress bool
	Encrypt  bool
	Password string

	// Validate optionally gates values before they are accepted by Save.
	Validate func(value any) error
}

// ConflictEvent is delivered to conflict listeners after a resolution.
type ConflictEvent struct {
	Client   any
	Server   any
	Resolved any
}

// EngineStatus is a point-in-time view of the engine.
type EngineStatus struct {
	State          string
	Online         bool
	PendingChanges int
	Conflicts      int64
	Version        int64
	LastSyncAt     time.Time
	LastError      error
}

// SyncEngine owns the snapshot lifecycle of one logical store across network
// state transitions. Local saves always land in the cache first; the network
// side runs through an idle/syncing/retry-wait state machine with exponential
// backoff. The engine serializes its own cycles but is not designed for
// multiple concurrent writers of the same store: callers serialize Save calls
// at the call site.
type SyncEngine struct {
	cfg     EngineConfig
	cache   *cache.Manager
	remote  adapter.ServerAdapter
	codec   *codec.EnvelopeCodec
	watcher ConnectivityWatcher
	logger  *logger.Logger
	machine *fsm.FSM

	mu          sync.Mutex
	current     *models.Snapshot
	queue       []models.PendingSyncItem
	retryCount  int
	wait        *backoff.ExponentialBackOff
	retryTimer  *time.Timer
	settleTimer *time.Timer
	conflicts   int64
	lastError   error
	lastSyncAt  time.Time
	closed      bool

	syncSubs     listenerSet[func(err error)]
	conflictSubs listenerSet[func(ev ConflictEvent)]
	offlineSubs  listenerSet[func()]
	onlineSubs   listenerSet[func()]

	unwatch func()
}

// NewSyncEngine wires an engine over the offline cache, the server adapter
// and a connectivity watcher. The engine subscribes to the watcher
// immediately; Close unsubscribes.
func NewSyncEngine(cfg EngineConfig, cacheMgr *cache.Manager, remote adapter.ServerAdapter, envCodec *codec.EnvelopeCodec, watcher ConnectivityWatcher, log *logger.Logger) *SyncEngine {
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	if cfg.Strategy == "" {
		cfg.Strategy = models.StrategyClientWins
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}

	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = cfg.RetryBaseDelay
	wait.RandomizationFactor = 0
	wait.Multiplier = 2
	wait.MaxInterval = cfg.RetryBaseDelay << uint(cfg.RetryAttempts)
	wait.MaxElapsedTime = 0
	wait.Reset()

	e := &SyncEngine{
		cfg:     cfg,
		cache:   cacheMgr,
		remote:  remote,
		codec:   envCodec,
		watcher: watcher,
		logger:  log,
		wait:    wait,
		machine: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: eventTrigger, Src: []string{StateIdle}, Dst: StateSyncing},
				{Name: eventSucceed, Src: []string{StateSyncing}, Dst: StateIdle},
				{Name: eventFail, Src: []string{StateSyncing}, Dst: StateRetryWait},
				{Name: eventRetry, Src: []string{StateRetryWait}, Dst: StateSyncing},
				{Name: eventGiveUp, Src: []string{StateRetryWait}, Dst: StateIdle},
			},
			fsm.Callbacks{},
		),
	}

	e.unwatch = watcher.Subscribe(func(online bool) {
		if online {
			e.onlineSubs.each(func(fn func()) { fn() })
			e.scheduleSettledSync()
			return
		}
		e.offlineSubs.each(func(fn func()) { fn() })
	})

	return e
}

// Save validates value, snapshots it and writes it to the offline cache
// before returning. When online, the network push runs in the background and
// is surfaced only through sync listeners; when offline, an upload item is
// queued for the next reconnect cycle.
func (e *SyncEngine) Save(ctx context.Context, value any) error {
	if e.cfg.Validate != nil {
		if err := e.cfg.Validate(value); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	sum, err := codec.Checksum(value)
	if err != nil {
		return fmt.Errorf("checksum snapshot: %w", err)
	}

	e.mu.Lock()
	version := int64(1)
	if e.current != nil {
		version = e.current.Version
	}
	snap := models.Snapshot{
		Data:      value,
		Timestamp: time.Now().UnixMilli(),
		Version:   version,
		Checksum:  sum,
		Encrypted: e.cfg.Encrypt,
		ClientID:  e.cfg.ClientID,
		UserID:    e.cfg.UserID,
	}
	e.current = &snap
	e.mu.Unlock()

	if err = e.cache.Save(ctx, e.cfg.StoreID, value, e.cacheSaveOptions()); err != nil {
		return err
	}

	if e.watcher.Online() {
		// Fire and forget: the local save must not block on the network.
		go e.pushSaved(context.WithoutCancel(ctx), snap)
		return nil
	}

	pending := e.enqueue(snap)
	e.logger.Debug().Str("store", e.cfg.StoreID).Int("pending", pending).Msg("offline save queued for upload")
	return nil
}

// enqueue appends an upload item for snap and returns the new queue length.
func (e *SyncEngine) enqueue(snap models.Snapshot) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, models.PendingSyncItem{
		StoreID:   e.cfg.StoreID,
		Operation: models.SyncOpUpload,
		Data:      snap,
		Timestamp: snap.Timestamp,
	})
	return len(e.queue)
}

// pushSaved submits a freshly saved snapshot. The save itself is the newest
// state for this store, so no pull/compare runs; the server's optimistic
// check decides whether resolution is needed. When a cycle is already in
// flight the upload is queued instead of dropped, to be flushed by the next
// trigger.
func (e *SyncEngine) pushSaved(ctx context.Context, snap models.Snapshot) {
	if e.machine.Event(ctx, eventTrigger) != nil {
		pending := e.enqueue(snap)
		e.logger.Debug().Str("store", e.cfg.StoreID).Int("pending", pending).Msg("save during active cycle queued for upload")
		return
	}
	_ = e.runCycle(ctx, e.pushCurrent)
}

// pushCurrent flushes the pending queue and pushes the engine's current
// snapshot. Reading e.current at execution time (not capture time) means a
// retry always uploads the latest save.
func (e *SyncEngine) pushCurrent(ctx context.Context) error {
	if err := e.flushQueue(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	var snap *models.Snapshot
	if e.current != nil {
		s := *e.current
		snap = &s
	}
	e.mu.Unlock()

	if snap == nil {
		return nil
	}
	return e.pushSnapshot(ctx, *snap)
}

// Load restores the store's value from the offline cache, typically at
// startup before any network round-trip. The loaded value becomes the current
// snapshot when the engine holds none yet.
func (e *SyncEngine) Load(ctx context.Context) (any, bool, error) {
	value, ok, err := e.cache.Load(ctx, e.cfg.StoreID, cache.LoadOptions{Password: e.cfg.Password})
	if err != nil || !ok {
		return nil, false, err
	}

	sum, err := codec.Checksum(value)
	if err != nil {
		return nil, false, fmt.Errorf("checksum cached snapshot: %w", err)
	}

	e.mu.Lock()
	if e.current == nil {
		e.current = &models.Snapshot{
			Data:      value,
			Timestamp: time.Now().UnixMilli(),
			Version:   1,
			Checksum:  sum,
			Encrypted: e.cfg.Encrypt,
			ClientID:  e.cfg.ClientID,
			UserID:    e.cfg.UserID,
		}
	}
	e.mu.Unlock()

	return value, true, nil
}

// Snapshot returns a copy of the engine's current snapshot, if any.
func (e *SyncEngine) Snapshot() (models.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return models.Snapshot{}, false
	}
	return *e.current, true
}

// Sync triggers one synchronization cycle: flush the pending queue, pull the
// server snapshot, compare checksums, resolve conflicts, persist the result
// on both sides. Returns ErrSyncInProgress when the engine is not idle.
// Transient network failures are retried with exponential backoff up to the
// configured ceiling before the engine gives up and returns to idle.
func (e *SyncEngine) Sync(ctx context.Context) error {
	if err := e.machine.Event(ctx, eventTrigger); err != nil {
		return ErrSyncInProgress
	}
	return e.runCycle(ctx, e.cycle)
}

// Status reports the engine's current state.
func (e *SyncEngine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := EngineStatus{
		State:          e.machine.Current(),
		Online:         e.watcher.Online(),
		PendingChanges: len(e.queue),
		Conflicts:      e.conflicts,
		LastSyncAt:     e.lastSyncAt,
		LastError:      e.lastError,
	}
	if e.current != nil {
		st.Version = e.current.Version
	}
	return st
}

// OnSync registers a listener invoked after every completed cycle, with nil
// on success. Returns the unregister handle. Listeners run synchronously in
// registration order.
func (e *SyncEngine) OnSync(fn func(err error)) func() { return e.syncSubs.add(fn) }

// OnConflict registers a listener invoked after every conflict resolution.
func (e *SyncEngine) OnConflict(fn func(ev ConflictEvent)) func() { return e.conflictSubs.add(fn) }

// OnOffline registers a listener for online-to-offline transitions.
func (e *SyncEngine) OnOffline(fn func()) func() { return e.offlineSubs.add(fn) }

// OnOnline registers a listener for offline-to-online transitions.
func (e *SyncEngine) OnOnline(fn func()) func() { return e.onlineSubs.add(fn) }

// Close stops pending timers and detaches the engine from the connectivity
// watcher. The engine must not be used afterwards.
func (e *SyncEngine) Close() {
	e.mu.Lock()
	e.closed = true
	if e.retryTimer != nil {
		e.retryTimer.Stop()
	}
	if e.settleTimer != nil {
		e.settleTimer.Stop()
	}
	e.mu.Unlock()

	if e.unwatch != nil {
		e.unwatch()
	}
}

// ── cycle internals ──────────────────────────────────────────────────────────

func (e *SyncEngine) runCycle(ctx context.Context, work func(context.Context) error) error {
	err := work(ctx)
	if err == nil {
		e.mu.Lock()
		e.retryCount = 0
		e.wait.Reset()
		e.lastError = nil
		e.lastSyncAt = time.Now()
		e.mu.Unlock()

		_ = e.machine.Event(ctx, eventSucceed)
		e.syncSubs.each(func(fn func(err error)) { fn(nil) })
		return nil
	}

	_ = e.machine.Event(ctx, eventFail)

	// Only transient network failures are worth retrying; everything else
	// surfaces immediately.
	if !errors.Is(err, adapter.ErrNetworkFailure) {
		e.mu.Lock()
		e.lastError = err
		e.mu.Unlock()

		_ = e.machine.Event(ctx, eventGiveUp)
		e.syncSubs.each(func(fn func(err error)) { fn(err) })
		return err
	}

	e.mu.Lock()
	e.retryCount++
	e.lastError = err
	if e.retryCount > e.cfg.RetryAttempts {
		e.retryCount = 0
		e.wait.Reset()
		// The cycle that gives up consumes its queued items; their snapshots
		// stay in the local cache, so nothing is lost locally.
		dropped := len(e.queue)
		e.queue = nil
		e.mu.Unlock()

		exhausted := fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
		_ = e.machine.Event(ctx, eventGiveUp)
		if dropped > 0 {
			e.logger.Warn().Str("store", e.cfg.StoreID).Int("dropped", dropped).Msg("pending uploads cleared after retry ceiling")
		}
		e.syncSubs.each(func(fn func(err error)) { fn(exhausted) })
		return exhausted
	}

	delay := e.wait.NextBackOff()
	attempt := e.retryCount
	if !e.closed {
		e.retryTimer = time.AfterFunc(delay, func() {
			if e.machine.Event(context.Background(), eventRetry) != nil {
				return
			}
			_ = e.runCycle(context.Background(), work)
		})
	}
	e.mu.Unlock()

	e.logger.Debug().
		Str("store", e.cfg.StoreID).
		Int("attempt", attempt).
		Dur("delay", delay).
		Err(err).
		Msg("sync failed, retry scheduled")
	return err
}

func (e *SyncEngine) cycle(ctx context.Context) error {
	if err := e.flushQueue(ctx); err != nil {
		return err
	}
	return e.pullCompare(ctx)
}

// flushQueue drains the pending upload queue in FIFO order. On failure the
// failed item and the rest of the batch go back to the front of the queue.
func (e *SyncEngine) flushQueue(ctx context.Context) error {
	e.mu.Lock()
	items := e.queue
	e.queue = nil
	e.mu.Unlock()

	for i, item := range items {
		if err := e.pushSnapshot(ctx, item.Data); err != nil {
			item.Retries++
			e.mu.Lock()
			requeue := make([]models.PendingSyncItem, 0, len(items)-i+len(e.queue))
			requeue = append(requeue, item)
			requeue = append(requeue, items[i+1:]...)
			e.queue = append(requeue, e.queue...)
			e.mu.Unlock()
			return fmt.Errorf("flush pending queue: %w", err)
		}
	}
	return nil
}

func (e *SyncEngine) pullCompare(ctx context.Context) error {
	pull, ok, err := e.remote.Pull(ctx, e.cfg.StoreID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	var local *models.Snapshot
	if e.current != nil {
		snap := *e.current
		local = &snap
	}
	e.mu.Unlock()

	if !ok {
		// No server copy yet: seed it with the local snapshot.
		if local == nil {
			return nil
		}
		return e.pushSnapshot(ctx, *local)
	}

	server, err := e.decodeServer(pull)
	if err != nil {
		return err
	}

	if local == nil {
		return e.adoptServer(ctx, server)
	}
	if local.Equivalent(server) {
		return nil
	}
	return e.resolveAndPersist(ctx, *local, server)
}

// pushSnapshot encodes and submits one snapshot. A conflict response routes
// into resolution against the server copy.
func (e *SyncEngine) pushSnapshot(ctx context.Context, snap models.Snapshot) error {
	token, err := e.encodeSnapshot(snap)
	if err != nil {
		return err
	}

	resp, err := e.remote.Push(ctx, e.cfg.StoreID, models.PushRequest{
		Token:     token,
		Timestamp: snap.Timestamp,
		Version:   snap.Version,
		Checksum:  snap.Checksum,
		ClientID:  snap.ClientID,
	})
	if err != nil {
		return err
	}
	if !resp.Conflict {
		return nil
	}

	server, err := e.conflictSnapshot(ctx, resp)
	if err != nil {
		return err
	}
	return e.resolveAndPersist(ctx, snap, server)
}

// conflictSnapshot materializes the server's copy out of a conflict response,
// pulling explicitly when the response carried no server token.
func (e *SyncEngine) conflictSnapshot(ctx context.Context, resp models.PushResponse) (models.Snapshot, error) {
	if resp.ServerToken != "" {
		return e.decodeServer(models.PullResponse{
			Token:     resp.ServerToken,
			Timestamp: resp.Timestamp,
			Version:   resp.Version,
		})
	}

	pull, ok, err := e.remote.Pull(ctx, e.cfg.StoreID)
	if err != nil {
		return models.Snapshot{}, err
	}
	if !ok {
		return models.Snapshot{}, fmt.Errorf("conflict reported but server holds no snapshot for %q", e.cfg.StoreID)
	}
	return e.decodeServer(pull)
}

// resolveAndPersist reconciles the two snapshots, persists the result locally
// and remotely, bumps the version and notifies conflict listeners.
func (e *SyncEngine) resolveAndPersist(ctx context.Context, client, server models.Snapshot) error {
	resolved, err := Resolve(e.cfg.Strategy, e.cfg.Resolver, client, server)
	if err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}

	sum, err := codec.Checksum(resolved)
	if err != nil {
		return fmt.Errorf("checksum resolved snapshot: %w", err)
	}

	version := client.Version
	if server.Version > version {
		version = server.Version
	}
	snap := models.Snapshot{
		Data:      resolved,
		Timestamp: time.Now().UnixMilli(),
		Version:   version + 1,
		Checksum:  sum,
		Encrypted: e.cfg.Encrypt,
		ClientID:  e.cfg.ClientID,
		UserID:    e.cfg.UserID,
	}

	if err = e.cache.Save(ctx, e.cfg.StoreID, resolved, e.cacheSaveOptions()); err != nil {
		return fmt.Errorf("persist resolved snapshot: %w", err)
	}

	e.mu.Lock()
	e.current = &snap
	e.conflicts++
	e.mu.Unlock()

	e.conflictSubs.each(func(fn func(ev ConflictEvent)) {
		fn(ConflictEvent{Client: client.Data, Server: server.Data, Resolved: resolved})
	})

	token, err := e.encodeSnapshot(snap)
	if err != nil {
		return err
	}
	resp, err := e.remote.Push(ctx, e.cfg.StoreID, models.PushRequest{
		Token:     token,
		Timestamp: snap.Timestamp,
		Version:   snap.Version,
		Checksum:  snap.Checksum,
		ClientID:  snap.ClientID,
	})
	if err != nil {
		return fmt.Errorf("push resolved snapshot: %w", err)
	}
	if resp.Conflict && resp.ServerToken != "" {
		// The server resolved on its side while we were resolving on ours.
		// Its copy wins; adopting it ends the exchange instead of ping-ponging.
		serverResolved, decodeErr := e.decodeServer(models.PullResponse{
			Token:     resp.ServerToken,
			Timestamp: resp.Timestamp,
			Version:   resp.Version,
		})
		if decodeErr != nil {
			return decodeErr
		}
		return e.adoptServer(ctx, serverResolved)
	}

	return nil
}

// adoptServer installs the server snapshot as the local state.
func (e *SyncEngine) adoptServer(ctx context.Context, server models.Snapshot) error {
	if err := e.cache.Save(ctx, e.cfg.StoreID, server.Data, e.cacheSaveOptions()); err != nil {
		return fmt.Errorf("persist server snapshot: %w", err)
	}

	e.mu.Lock()
	e.current = &server
	e.mu.Unlock()
	return nil
}

// decodeServer turns a pull payload into a snapshot. The lenient decode path
// is used because server tokens may have been produced by clients on older
// format versions.
func (e *SyncEngine) decodeServer(pull models.PullResponse) (models.Snapshot, error) {
	value, err := e.codec.DecodeLenient(pull.Token, codec.DecodeOptions{Password: e.cfg.Password})
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("decode server snapshot: %w", err)
	}

	sum, err := codec.Checksum(value)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("checksum server snapshot: %w", err)
	}

	return models.Snapshot{
		Data:      value,
		Timestamp: pull.Timestamp,
		Version:   pull.Version,
		Checksum:  sum,
		Encrypted: e.cfg.Encrypt,
	}, nil
}

func (e *SyncEngine) encodeSnapshot(snap models.Snapshot) (string, error) {
	token, err := e.codec.Encode(snap.Data, codec.EncodeOptions{
		Compress: e.cfg.Compress,
		Encrypt:  e.cfg.Encrypt,
		Password: e.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return token, nil
}

func (e *SyncEngine) cacheSaveOptions() cache.SaveOptions {
	return cache.SaveOptions{
		TTL:      e.cfg.CacheTTL,
		Compress: e.cfg.Compress,
		Encrypt:  e.cfg.Encrypt,
		Password: e.cfg.Password,
	}
}

// scheduleSettledSync arms the post-reconnect sync after the settle delay.
// A reconnect while a previous settle timer is armed just rewinds it.
func (e *SyncEngine) scheduleSettledSync() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.settleTimer != nil {
		e.settleTimer.Stop()
	}
	e.settleTimer = time.AfterFunc(e.cfg.SettleDelay, func() {
		_ = e.Sync(context.Background())
	})
}

// ── listeners ────────────────────────────────────────────────────────────────

// listenerSet is an ordered listener registry. add returns the unregister
// handle; each invokes listeners synchronously in registration order.
type listenerSet[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   []listenerEntry[T]
}

type listenerEntry[T any] struct {
	id int
	fn T
}

func (s *listenerSet[T]) add(fn T) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, listenerEntry[T]{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *listenerSet[T]) each(call func(fn T)) {
	s.mu.Lock()
	subs := make([]listenerEntry[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		call(sub.fn)
	}
}
