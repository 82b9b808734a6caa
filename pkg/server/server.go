// Package server runs the cntfs process: the protocol adapters, the
// auxiliary HTTP servers and the resources they share, with ordered
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/cntfs/internal/logger"
	"github.com/marmos91/cntfs/pkg/adapter"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// auxStopTimeout bounds the shutdown of each auxiliary server.
const auxStopTimeout = 5 * time.Second

// AuxiliaryServer is an HTTP side server (API, metrics).
type AuxiliaryServer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Port() int
}

type closer struct {
	name string
	fn   func() error
}

// Server orchestrates startup and graceful shutdown.
type Server struct {
	shutdownTimeout time.Duration

	mu       sync.Mutex
	adapters []adapter.Adapter
	aux      []AuxiliaryServer
	closers  []closer
	served   bool

	serveOnce sync.Once
}

// New creates a Server. A zero timeout uses DefaultShutdownTimeout.
func New(shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{shutdownTimeout: shutdownTimeout}
}

// AddAdapter registers a protocol adapter. Must be called before Serve.
func (s *Server) AddAdapter(a adapter.Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}
	s.adapters = append(s.adapters, a)
	logger.Info("Adapter registered", "protocol", a.Protocol(), "port", a.Port())
}

// AddAuxiliary registers an auxiliary server. Must be called before Serve.
func (s *Server) AddAuxiliary(srv AuxiliaryServer) {
	if srv == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.served {
		panic("cannot add auxiliary server after Serve() has been called")
	}
	s.aux = append(s.aux, srv)
	logger.Info("Auxiliary server registered", "port", srv.Port())
}

// OnShutdown registers fn to run after every server has stopped. Closers
// run in reverse registration order.
func (s *Server) OnShutdown(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// Serve starts every registered component and blocks until ctx is
// cancelled or one of them fails. Only the first call does anything.
//
// Returns nil when shutdown was requested through ctx, otherwise the error
// of the component that failed.
func (s *Server) Serve(ctx context.Context) error {
	err := errors.New("server already served")
	s.serveOnce.Do(func() {
		s.mu.Lock()
		s.served = true
		s.mu.Unlock()
		err = s.serve(ctx)
	})
	return err
}

func (s *Server) serve(ctx context.Context) error {
	if len(s.adapters) == 0 {
		s.runClosers()
		return errors.New("no adapters registered")
	}

	logger.Info("Starting cntfs server", "adapters", len(s.adapters), "auxiliary", len(s.aux))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(s.adapters)+len(s.aux))
	var wg sync.WaitGroup

	for _, a := range s.adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()
			if err := a.Serve(runCtx); err != nil {
				errCh <- fmt.Errorf("%s adapter: %w", a.Protocol(), err)
			}
		}(a)
	}
	for _, srv := range s.aux {
		wg.Add(1)
		go func(srv AuxiliaryServer) {
			defer wg.Done()
			if err := srv.Start(runCtx); err != nil {
				errCh <- fmt.Errorf("server on port %d: %w", srv.Port(), err)
			}
		}(srv)
	}

	var result error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
	case err := <-errCh:
		logger.Error("Server component failed - initiating shutdown", logger.Err(err))
		result = err
	}

	s.shutdown()
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.shutdownTimeout):
		logger.Warn("Timed out waiting for servers to exit", "timeout", s.shutdownTimeout)
	}

	s.runClosers()
	logger.Info("cntfs server stopped")
	return result
}

// shutdown stops the adapters first so in-flight transfers drain, then the
// auxiliary servers.
func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logger.Info("Stopping adapters")
	for _, a := range s.adapters {
		if err := a.Stop(ctx); err != nil {
			logger.Warn("Error stopping adapter", "protocol", a.Protocol(), logger.Err(err))
		}
	}

	for _, srv := range s.aux {
		auxCtx, auxCancel := context.WithTimeout(context.Background(), auxStopTimeout)
		if err := srv.Stop(auxCtx); err != nil {
			logger.Error("Auxiliary server shutdown error", "port", srv.Port(), logger.Err(err))
		}
		auxCancel()
	}
}

func (s *Server) runClosers() {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		logger.Debug("Closing resource", "name", c.name)
		if err := c.fn(); err != nil {
			logger.Warn("Error closing resource", "name", c.name, logger.Err(err))
		}
	}
}
