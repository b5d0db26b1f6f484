// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"encoding/json"
	"net/http"

	"github.com/MKhiriev/go-state-keeper/internal/logger"
	"github.com/MKhiriev/go-state-keeper/internal/store"
)

// Handler serves the sync transport: the per-store state endpoint pair and
// the health probe. Authentication, tracing and logging are middleware
// concerns layered in front of the route handlers.
type Handler struct {
	repo    store.SnapshotRepository
	signKey string

	logger *logger.Logger
}

// NewHandler creates the HTTP handler. An empty signKey disables the JWT
// auth middleware on the state routes.
func NewHandler(repo store.SnapshotRepository, signKey string, log *logger.Logger) *Handler {
	log.Info().Bool("auth_enabled", signKey != "").Msg("http handler created")
	return &Handler{
		repo:    repo,
		signKey: signKey,
		logger:  log,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
