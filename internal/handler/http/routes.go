// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Init builds the router. Every route runs behind trace-id and logging
// middleware; the state routes additionally require a bearer token when a
// sign key is configured.
func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)

	router.Get("/api/health", h.health)

	router.Group(func(r chi.Router) {
		if h.signKey != "" {
			r.Use(h.auth)
		}
		r.Get("/api/state/{storeID}", h.pullState)
		r.Post("/api/state/{storeID}", h.pushState)
	})

	return router
}
