package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/MKhiriev/go-state-keeper/internal/logger"
)

// Chain orders candidate backends from most to least capable, probes each
// with a harmless round-trip, and pins the first backend that succeeds as the
// default for the rest of the process lifetime (or until Reset). Probing
// every operation would be wasteful, so the selection result is cached; the
// cache is safe to read concurrently from multiple store instances.
//
// The chain guarantees degradation rather than outright failure: a probe
// error on the preferred backend is logged and the next candidate is tried.
// Only exhaustion of the whole chain is a hard [ErrStorageUnavailable].
type Chain struct {
	candidates []Backend
	logger     *logger.Logger

	mu     sync.RWMutex
	pinned Backend
}

// NewChain constructs a fallback chain over candidates, ordered most to
// least capable.
func NewChain(log *logger.Logger, candidates ...Backend) *Chain {
	return &Chain{candidates: candidates, logger: log}
}

// Backend returns the pinned backend, probing the chain on first use.
func (c *Chain) Backend(ctx context.Context) (Backend, error) {
	c.mu.RLock()
	pinned := c.pinned
	c.mu.RUnlock()
	if pinned != nil {
		return pinned, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have completed the probe while we waited.
	if c.pinned != nil {
		return c.pinned, nil
	}

	for _, candidate := range c.candidates {
		if err := probe(ctx, candidate); err != nil {
			c.logger.Warn().
				Err(err).
				Str("backend", candidate.Name()).
				Msg("storage backend failed probe, trying next candidate")
			continue
		}

		c.logger.Info().Str("backend", candidate.Name()).Msg("storage backend pinned")
		c.pinned = candidate
		return candidate, nil
	}

	return nil, ErrStorageUnavailable
}

// Reset forgets the pinned backend so the next call to Backend re-probes the
// chain. Intended for tests and for recovery after an environment change.
func (c *Chain) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = nil
}

// probe performs a harmless write/read/delete round-trip under a random key
// inside the backend's own namespace.
func probe(ctx context.Context, b Backend) error {
	key := "__probe__" + uuid.NewString()
	const payload = "ping"

	if err := b.Set(ctx, key, payload, 0); err != nil {
		return fmt.Errorf("probe write: %w", err)
	}

	record, ok, err := b.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("probe read: %w", err)
	}
	if !ok || record.Payload != payload {
		return fmt.Errorf("probe read returned wrong payload")
	}

	if err = b.Delete(ctx, key); err != nil {
		return fmt.Errorf("probe delete: %w", err)
	}

	return nil
}
