// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import "errors"

var (
	// ErrValidation is returned by Save when the configured schema gate
	// rejects the caller-supplied value.
	ErrValidation = errors.New("validation rejected")

	// ErrSyncInProgress is returned by Sync when a cycle is already running
	// or waiting out a retry delay.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrRetriesExhausted is surfaced after the retry ceiling is reached.
	// The engine returns to idle and waits for the next trigger.
	ErrRetriesExhausted = errors.New("retry attempts exhausted")

	// ErrNoResolver is returned when the custom strategy is selected without
	// supplying a resolver function.
	ErrNoResolver = errors.New("custom strategy requires a resolver")

	// ErrUnknownStrategy is returned for strategies outside the known set.
	ErrUnknownStrategy = errors.New("unknown conflict strategy")
)
