// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/MKhiriev/go-state-keeper/models"
)

// CustomResolver reconciles two divergent snapshots into one resolved value.
// It receives full snapshots so callers can branch on timestamps, versions or
// client identity, not just the data.
type CustomResolver func(client, server models.Snapshot) (any, error)

// Resolve reconciles two divergent snapshots according to strategy. The
// returned value is always normalized to plain JSON shapes (maps, slices,
// float64 numbers) so checksums of the result are stable across call sites.
//
// The merge strategy is a two-way merge exactly: objects merge key-wise with
// client values winning on primitive collisions, arrays concatenate server
// items first followed by client items not already present (structural
// equality). Three-way merges and concurrent resolution races are out of its
// contract.
func Resolve(strategy models.ConflictStrategy, custom CustomResolver, client, server models.Snapshot) (any, error) {
	switch strategy {
	case models.StrategyClientWins:
		return normalize(client.Data)
	case models.StrategyServerWins:
		return normalize(server.Data)
	case models.StrategyTimestamp:
		// Most recent timestamp wins outright. Ties keep the local copy.
		if server.Timestamp > client.Timestamp {
			return normalize(server.Data)
		}
		return normalize(client.Data)
	case models.StrategyMerge:
		c, err := normalize(client.Data)
		if err != nil {
			return nil, fmt.Errorf("normalize client data: %w", err)
		}
		s, err := normalize(server.Data)
		if err != nil {
			return nil, fmt.Errorf("normalize server data: %w", err)
		}
		return mergeValues(c, s), nil
	case models.StrategyCustom:
		if custom == nil {
			return nil, ErrNoResolver
		}
		resolved, err := custom(client, server)
		if err != nil {
			return nil, fmt.Errorf("custom resolver: %w", err)
		}
		return normalize(resolved)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// normalize round-trips v through JSON so both sides of a merge share one
// representation: map[string]any objects, []any arrays, float64 numbers.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err = json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeValues implements the two-way deep merge over normalized values.
// Shape mismatches (object vs array, object vs primitive) resolve to the
// client value, same as primitive collisions.
func mergeValues(client, server any) any {
	clientObj, cObjOK := client.(map[string]any)
	serverObj, sObjOK := server.(map[string]any)
	if cObjOK && sObjOK {
		merged := make(map[string]any, len(serverObj)+len(clientObj))
		for k, v := range serverObj {
			merged[k] = v
		}
		for k, cv := range clientObj {
			if sv, ok := merged[k]; ok {
				merged[k] = mergeValues(cv, sv)
			} else {
				merged[k] = cv
			}
		}
		return merged
	}

	clientArr, cArrOK := client.([]any)
	serverArr, sArrOK := server.([]any)
	if cArrOK && sArrOK {
		return mergeArrays(serverArr, clientArr)
	}

	return client
}

// mergeArrays keeps server order, then appends client items not already
// present anywhere in the result.
func mergeArrays(server, client []any) []any {
	merged := make([]any, 0, len(server)+len(client))
	merged = append(merged, server...)
	for _, item := range client {
		if !containsValue(merged, item) {
			merged = append(merged, item)
		}
	}
	return merged
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}
