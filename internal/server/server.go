// Package server is the HTTP surface over the service layer: the JSON
// API the dashboard polls plus a websocket stream of refreshed route
// sets.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/createMonster/arbradar-sub000/internal/config"
	"github.com/createMonster/arbradar-sub000/internal/service"
)

// Server hosts the REST API and websocket hub.
type Server struct {
	cfg    config.ServerConfig
	svc    *service.Service
	hub    *Hub
	logger zerolog.Logger
	http   *http.Server
}

// New constructs the server and registers its routes.
func New(cfg config.ServerConfig, svc *service.Service, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		hub:    newHub(logger),
		logger: logger.With().Str("component", "server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/routes", s.handleRoutes)
	mux.HandleFunc("GET /api/tickers", s.handleTickers)
	mux.HandleFunc("GET /api/funding-rates", s.handleFundingRates)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/update", s.handleForceUpdate)
	mux.HandleFunc("DELETE /api/cache", s.handleClearCache)
	mux.HandleFunc("GET /ws", s.hub.handleUpgrade)

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Every fresh aggregation is pushed to connected dashboards.
	svc.OnRefresh(s.hub.Broadcast)

	return s
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is cancelled, then drains connections within
// the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.hub.Close()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
