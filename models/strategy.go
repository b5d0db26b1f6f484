// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// ConflictStrategy selects how two divergent snapshots of the same logical
// store are reconciled into one.
type ConflictStrategy string

const (
	// StrategyClientWins keeps the local snapshot unconditionally.
	StrategyClientWins ConflictStrategy = "client-wins"

	// StrategyServerWins keeps the remote snapshot unconditionally.
	StrategyServerWins ConflictStrategy = "server-wins"

	// StrategyTimestamp keeps whichever snapshot has the most recent
	// timestamp, outright.
	StrategyTimestamp ConflictStrategy = "timestamp"

	// StrategyMerge deep-merges both snapshots: objects merge key-wise with
	// client values winning on primitive collisions, arrays concatenate
	// server items first followed by client items not already present.
	StrategyMerge ConflictStrategy = "merge"

	// StrategyCustom delegates to a caller-supplied resolver function.
	StrategyCustom ConflictStrategy = "custom"
)

// IsValid returns true if the strategy is recognized.
func (s ConflictStrategy) IsValid() bool {
	switch s {
	case StrategyClientWins, StrategyServerWins, StrategyTimestamp, StrategyMerge, StrategyCustom:
		return true
	default:
		return false
	}
}

// String returns the string representation of the strategy.
func (s ConflictStrategy) String() string {
	return string(s)
}
