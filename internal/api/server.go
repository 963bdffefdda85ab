// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the HTTP control plane and the HLS file surface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/pagecast/internal/config"
	"github.com/ManuGH/pagecast/internal/domain/session/manager"
)

// Server bundles the control-plane dependencies behind one router.
type Server struct {
	cfg      config.Config
	sessions *manager.Manager
}

// NewServer creates the HTTP server facade.
func NewServer(cfg config.Config, sessions *manager.Manager) *Server {
	return &Server{cfg: cfg, sessions: sessions}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/sessions", func(r chi.Router) {
		r.With(httprate.LimitByIP(30, time.Minute)).Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Get("/{id}/status", s.handleSessionStatus)
		r.Delete("/{id}", s.handleDeleteSession)
	})

	r.Get("/receivers", s.handleReceivers)

	r.Handle("/cast/*", http.StripPrefix("/cast", s.secureFileServer()))

	return r
}
