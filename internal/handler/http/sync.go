// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MKhiriev/go-state-keeper/internal/logger"
	"github.com/MKhiriev/go-state-keeper/internal/store"
	"github.com/MKhiriev/go-state-keeper/models"
)

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// pullState returns the current server-side token for a store, or 204 when
// the server holds none.
func (h *Handler) pullState(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	storeID := chi.URLParam(r, "storeID")
	if storeID == "" {
		http.Error(w, "missing store id", http.StatusBadRequest)
		return
	}

	snap, err := h.repo.GetSnapshot(r.Context(), storeID)
	if errors.Is(err, store.ErrSnapshotNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		log.Err(err).Str("store_id", storeID).Msg("failed to load snapshot")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.PullResponse{
		Token:     snap.Token,
		Timestamp: snap.Timestamp,
		Version:   snap.Version,
		Checksum:  snap.Checksum,
	})
}

// pushState accepts a client snapshot. A version conflict answers 409 with
// the server's copy in the body so the client can resolve and re-push.
func (h *Handler) pushState(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	storeID := chi.URLParam(r, "storeID")
	if storeID == "" {
		http.Error(w, "missing store id", http.StatusBadRequest)
		return
	}

	var req models.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Msg("malformed push request body")
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	saved, err := h.repo.SaveSnapshot(r.Context(), models.ServerSnapshot{
		StoreID:   storeID,
		Token:     req.Token,
		Timestamp: req.Timestamp,
		Version:   req.Version,
		Checksum:  req.Checksum,
		ClientID:  req.ClientID,
	})
	if errors.Is(err, store.ErrVersionConflict) {
		log.Debug().
			Str("store_id", storeID).
			Int64("stored_version", saved.Version).
			Int64("submitted_version", req.Version).
			Msg("push rejected with conflict")
		writeJSON(w, http.StatusConflict, models.PushResponse{
			Timestamp:   saved.Timestamp,
			Version:     saved.Version,
			Conflict:    true,
			ServerToken: saved.Token,
		})
		return
	}
	if err != nil {
		log.Err(err).Str("store_id", storeID).Msg("failed to save snapshot")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.PushResponse{
		Timestamp: saved.Timestamp,
		Version:   saved.Version,
	})
}
