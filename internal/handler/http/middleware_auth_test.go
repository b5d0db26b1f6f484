// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSignKey = "test-sign-key"

func TestAuth_DecisionMatrix(t *testing.T) {
	h, _ := newTestHandler(t, testSignKey)

	valid, err := IssueToken(testSignKey, "user-1", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSignKey, "user-1", -time.Hour)
	require.NoError(t, err)
	wrongKey, err := IssueToken("other-key", "user-1", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + valid, http.StatusNoContent},
		{"no header", "", http.StatusUnauthorized},
		{"scheme only", "Bearer", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong sign key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := map[string]string{}
			if tt.authHeader != "" {
				header["Authorization"] = tt.authHeader
			}
			rec := doRequest(h, http.MethodGet, "/api/state/settings", nil, header)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAuth_DisabledWithoutSignKey(t *testing.T) {
	h, _ := newTestHandler(t, "")

	rec := doRequest(h, http.MethodGet, "/api/state/settings", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "no sign key means open state routes")
}

func TestAuth_HealthNeverRequiresAuth(t *testing.T) {
	h, _ := newTestHandler(t, testSignKey)

	rec := doRequest(h, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
