// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api assembles the KiwiTrace HTTP surface.

	GET  /health, /ready           probes
	GET  /confirm/{token}          browser target of the confirmation mail
	/api/v1/accounts/...           JSON account API

Unknown routes and methods answer with the same JSON error envelope as the
account API.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kiwitrace/kiwitrace/internal/platform/apperr"
	"github.com/kiwitrace/kiwitrace/internal/platform/config"
	"github.com/kiwitrace/kiwitrace/internal/platform/constants"
	"github.com/kiwitrace/kiwitrace/internal/platform/middleware"
	"github.com/kiwitrace/kiwitrace/internal/platform/respond"
	"github.com/kiwitrace/kiwitrace/internal/users/account"
)

// Server owns the root router and the [http.Server] listening on SERVER_PORT.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// Handlers are the route targets [NewServer] mounts.
type Handlers struct {
	Liveness  http.HandlerFunc
	Readiness http.HandlerFunc
	Account   *account.Handler
}

var errMethodNotAllowed = apperr.New("METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed, "Method not allowed")

// NewServer builds the router: middleware chain, probes, the confirmation
// page and the versioned account API.
func NewServer(cfg *config.Config, log *slog.Logger, h Handlers) *Server {
	router := chi.NewRouter()

	router.Use(
		middleware.RequestID(),
		middleware.StructuredLogger(log),
		chimw.Timeout(constants.GlobalRequestTimeout),
		middleware.PanicRecovery(log),
		middleware.CORS(cfg),
		chimw.CleanPath,
	)

	router.NotFound(func(writer http.ResponseWriter, request *http.Request) {
		respond.Error(writer, request, apperr.NotFound("Route"))
	})
	router.MethodNotAllowed(func(writer http.ResponseWriter, request *http.Request) {
		respond.Error(writer, request, errMethodNotAllowed)
	})

	router.Get("/health", h.Liveness)
	router.Get("/ready", h.Readiness)
	router.Get("/confirm/{token}", h.Account.ConfirmPage)

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Mount("/accounts", h.Account.Routes())
	})

	return &Server{
		router: router,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
			ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		},
	}
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. After Shutdown it returns
// http.ErrServerClosed.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits up to timeout for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
