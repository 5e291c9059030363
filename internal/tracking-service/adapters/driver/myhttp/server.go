package myhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"bus-tracker/internal/config"
	"bus-tracker/internal/mylogger"
)

var ErrServerClosed = errors.New("Server closed")

type Server struct {
	cfg     *config.Serviceconfig
	handler http.Handler
	srv     *http.Server
	mylog   mylogger.Logger
	mu      sync.Mutex
}

func NewServer(cfg *config.Serviceconfig, handler http.Handler, mylog mylogger.Logger) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		mylog:   mylog,
	}
}

// Run starts listening and blocks until the server stops or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	mylog := s.mylog.Action("server_started")

	ln, err := net.Listen("tcp", fmt.Sprintf(":%v", s.cfg.TrackingServicePort))
	if err != nil {
		mylog.Action("listen_failed").Error("Failed to listen", err)
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.srv = &http.Server{
		Handler:     s.handler,
		ReadTimeout: s.cfg.ReadTimeout,
		// WriteTimeout would cut long-lived websocket sessions; the client
		// sets its own per-frame deadlines.
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		IdleTimeout:       s.cfg.WriteTimeout * 4,
	}
	s.mu.Unlock()

	mylog.WithGroup("details").With("port", s.cfg.TrackingServicePort).Info("server is running")

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Action("graceful_shutdown_started").Info("Shutting down HTTP server...")

	if s.srv == nil {
		return ErrServerClosed
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}
