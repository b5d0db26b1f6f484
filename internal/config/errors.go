// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when the merged
// configuration is inconsistent.
var (
	// ErrInvalidSyncConfigs indicates invalid sync engine settings (for
	// example, an unknown conflict strategy name).
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")

	// ErrInvalidClientConfigs indicates invalid client transport settings
	// (for example, encryption enabled without a password).
	ErrInvalidClientConfigs = errors.New("invalid client configuration")
)
