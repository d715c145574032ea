package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/smukkama/landslide-monitor/internal/logger"
)

// Server runs an HTTP handler until Stop.
type Server struct {
	name            string
	http            *http.Server
	shutdownTimeout time.Duration
	wg              sync.WaitGroup
}

func NewServer(name string, port int, handler http.Handler, shutdownTimeout time.Duration) *Server {
	return &Server{
		name: name,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to start %s server: %w", s.name, err)
	}

	log := logger.WithComponent(s.name)
	log.Info().Str("addr", listener.Addr().String()).Msg("HTTP server listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	log := logger.WithComponent(s.name)
	if err := s.http.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}
	s.wg.Wait()
	log.Info().Msg("HTTP server stopped")
}
