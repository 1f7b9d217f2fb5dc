package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API over the catalog and trade dialogs.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New registers every route on a ServeMux and wraps it in request logging.
func New(addr string, h *Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      Routes(h, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the full handler tree.
func Routes(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health)

	mux.HandleFunc("GET /api/markets", h.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.GetMarket)
	mux.HandleFunc("GET /api/categories", h.ListCategories)

	mux.HandleFunc("POST /api/dialogs", h.OpenDialog)
	mux.HandleFunc("GET /api/dialogs/{id}", h.GetDialog)
	mux.HandleFunc("PUT /api/dialogs/{id}/intent", h.UpdateIntent)
	mux.HandleFunc("POST /api/dialogs/{id}/submit", h.Submit)
	mux.HandleFunc("DELETE /api/dialogs/{id}", h.CloseDialog)

	mux.Handle("GET /metrics", promhttp.Handler())

	return logging(logger)(mux)
}

// Start blocks until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
