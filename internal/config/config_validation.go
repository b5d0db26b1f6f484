// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"

	"github.com/MKhiriev/go-state-keeper/models"
)

// validate checks that the final merged [StructuredConfig] satisfies the
// invariants the application relies on at startup. Only cross-field
// consistency is checked here; absent values fall back to defaults in the
// Get*Config views.
func (c *StructuredConfig) validate() error {
	if c.Sync.Strategy != "" {
		strategy := models.ConflictStrategy(c.Sync.Strategy)
		// The custom strategy needs a resolver function, which cannot come
		// from configuration.
		if !strategy.IsValid() || strategy == models.StrategyCustom {
			return fmt.Errorf("%w: unknown strategy %q", ErrInvalidSyncConfigs, c.Sync.Strategy)
		}
	}

	if c.Sync.Encrypt && c.Client.Password == "" {
		return fmt.Errorf("%w: encryption enabled without a password", ErrInvalidClientConfigs)
	}

	return nil
}
