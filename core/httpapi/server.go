package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/financebot/core/config"
	"github.com/m3rciful/financebot/core/logger"
)

// Server runs the router until its context is cancelled.
type Server struct {
	srv *http.Server
}

// NewServer binds h to the configured listen address.
func NewServer(cfg coreconfig.HTTPConfig, h http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              cfg.Listen,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}}
}

// Run listens and serves; on ctx cancellation it shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return context.WithoutCancel(ctx) }
	errCh := make(chan error, 1)
	go func() {
		logger.HTTP.Info("http server started",
			slog.String("event", "http.start"),
			slog.String("listen", ln.Addr().String()),
		)
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.srv.Shutdown(shutdownCtx)
	logger.HTTP.Info("http server stopped",
		slog.String("event", "http.stop"),
		slog.String("status", logger.Status(err)),
	)
	return err
}
