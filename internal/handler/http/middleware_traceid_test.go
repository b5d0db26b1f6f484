// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceID_GeneratedWhenAbsent(t *testing.T) {
	h, _ := newTestHandler(t, "")

	rec := doRequest(h, http.MethodGet, "/api/health", nil, nil)

	traceID := rec.Header().Get(traceIDHeader)
	require.NotEmpty(t, traceID)
	_, err := uuid.Parse(traceID)
	assert.NoError(t, err, "generated trace ids are uuids")
}

func TestTraceID_IncomingHeaderPreserved(t *testing.T) {
	h, _ := newTestHandler(t, "")

	rec := doRequest(h, http.MethodGet, "/api/health", nil, map[string]string{
		traceIDHeader: "trace-from-client",
	})

	assert.Equal(t, "trace-from-client", rec.Header().Get(traceIDHeader))
}
