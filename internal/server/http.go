package server

import (
	"context"
	"net/http"

	"github.com/MKhiriev/go-state-keeper/internal/config"
	"github.com/MKhiriev/go-state-keeper/internal/logger"
)

type httpServer struct {
	server *http.Server
	logger *logger.Logger
}

func newHTTPServer(router http.Handler, cfg config.Server, logger *logger.Logger) *httpServer {
	return &httpServer{
		server: &http.Server{
			Addr:              cfg.HTTPAddress,
			Handler:           router,
			ReadTimeout:       cfg.RequestTimeout,
			ReadHeaderTimeout: cfg.RequestTimeout,
			WriteTimeout:      cfg.RequestTimeout,
		},
		logger: logger,
	}
}

func (h *httpServer) RunServer() {
	if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		h.logger.Error().Err(err).Msg("HTTP server ListenAndServe")
	}
}

func (h *httpServer) Shutdown() {
	if err := h.server.Shutdown(context.Background()); err != nil {
		// ошибки закрытия Listener
		h.logger.Error().Err(err).Msg("HTTP server Shutdown")
	}
}
