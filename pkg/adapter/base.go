package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/cntfs/internal/logger"
)

// ConnectionHandler serves one accepted connection. Serve blocks until the
// session ends or ctx is cancelled, and must close the connection before it
// returns.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory creates the protocol handler for an accepted connection.
// id is a unique connection identifier used for logs and tracking.
type ConnectionFactory interface {
	NewConnection(conn net.Conn, id string) ConnectionHandler
}

// BaseConfig holds configuration common to all protocol adapters.
type BaseConfig struct {
	// BindAddress is the IP address to bind to. Empty or "0.0.0.0" binds to
	// all interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	// MaxConnections limits concurrent sessions. 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout bounds how long graceful shutdown waits for live
	// sessions before force-closing them.
	ShutdownTimeout time.Duration

	// MetricsLogInterval logs the active connection count periodically.
	// 0 disables it.
	MetricsLogInterval time.Duration
}

// MetricsRecorder records connection lifecycle metrics.
// metrics.ServerMetrics satisfies it.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// OnConnectionClose is invoked when a connection's serve goroutine completes,
// before the connection is untracked.
type OnConnectionClose func(id string)

// shutdownReadGrace is the deadline put on blocked reads at shutdown so that
// sessions notice the cancelled context.
const shutdownReadGrace = 100 * time.Millisecond

// BaseAdapter provides the shared TCP lifecycle: listening, accepting,
// one goroutine per connection, and graceful shutdown.
//
// All exported methods are safe for concurrent use. Shutdown is guarded by a
// sync.Once so Stop and context cancellation may race freely.
type BaseAdapter struct {
	Config BaseConfig

	protocolName string

	// Metrics is optional; nil disables collection.
	Metrics MetricsRecorder

	listener   net.Listener
	listenerMu sync.RWMutex

	// activeConns counts serve goroutines still running.
	activeConns sync.WaitGroup

	shutdownOnce sync.Once

	// Shutdown is closed when shutdown starts.
	Shutdown chan struct{}

	// ConnCount is the number of live sessions.
	ConnCount atomic.Int32

	// connSemaphore is nil when MaxConnections is 0.
	connSemaphore chan struct{}

	// ShutdownCtx is passed to every session and cancelled at shutdown so
	// sessions stop between requests.
	ShutdownCtx    context.Context
	CancelRequests context.CancelFunc

	// ActiveConnections maps connection ID to net.Conn for forced closure.
	ActiveConnections sync.Map

	// ListenerReady is closed once the listener is bound, or once binding
	// failed. Used by tests to synchronize with startup.
	ListenerReady chan struct{}
	readyOnce     sync.Once
}

// NewBaseAdapter creates a stopped BaseAdapter. Call ServeWithFactory to run it.
func NewBaseAdapter(config BaseConfig, protocol string) *BaseAdapter {
	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug(protocol+" connection limit", "max_connections", config.MaxConnections)
	} else {
		logger.Debug(protocol+" connection limit", "max_connections", "unlimited")
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &BaseAdapter{
		Config:         config,
		protocolName:   protocol,
		Shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		ShutdownCtx:    shutdownCtx,
		CancelRequests: cancelRequests,
		ListenerReady:  make(chan struct{}),
	}
}

func (b *BaseAdapter) markReady() {
	b.readyOnce.Do(func() { close(b.ListenerReady) })
}

// ServeWithFactory runs the accept loop, handing every connection to a
// handler from factory on its own goroutine.
//
// preAccept, when non-nil, may reject a connection before it is tracked.
// onClose, when non-nil, runs after each handler returns.
//
// Returns nil on graceful shutdown, or an error if the listener cannot be
// created or shutdown had to force-close sessions.
func (b *BaseAdapter) ServeWithFactory(
	ctx context.Context,
	factory ConnectionFactory,
	preAccept func(net.Conn) bool,
	onClose OnConnectionClose,
) error {
	listenAddr := net.JoinHostPort(b.Config.BindAddress, fmt.Sprint(b.Config.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		b.markReady()
		return fmt.Errorf("failed to create %s listener on %s: %w", b.protocolName, listenAddr, err)
	}

	// initiateShutdown closes Shutdown before taking listenerMu, so a stop
	// that ran before this point is seen here and a later one sees listener.
	b.listenerMu.Lock()
	select {
	case <-b.Shutdown:
		b.listenerMu.Unlock()
		_ = listener.Close()
		b.markReady()
		logger.Debug(b.protocolName+" stopped before serving", "address", listenAddr)
		return nil
	default:
	}
	b.listener = listener
	b.listenerMu.Unlock()
	b.markReady()

	logger.Info(b.protocolName+" server listening", "address", listener.Addr().String())

	go func() {
		select {
		case <-ctx.Done():
			logger.Info(b.protocolName+" shutdown signal received", "error", ctx.Err())
			b.initiateShutdown()
		case <-b.Shutdown:
		}
	}()

	if b.Config.MetricsLogInterval > 0 {
		go b.logMetrics(ctx)
	}

	for {
		if b.connSemaphore != nil {
			select {
			case b.connSemaphore <- struct{}{}:
			case <-b.Shutdown:
				return b.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			if b.connSemaphore != nil {
				<-b.connSemaphore
			}

			select {
			case <-b.Shutdown:
				return b.gracefulShutdown()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return b.gracefulShutdown()
			}
			logger.Debug("Error accepting "+b.protocolName+" connection", logger.Err(err))
			continue
		}

		if tcp, ok := tcpConn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", logger.Err(err))
			}
		}

		if preAccept != nil && !preAccept(tcpConn) {
			_ = tcpConn.Close()
			if b.connSemaphore != nil {
				<-b.connSemaphore
			}
			continue
		}

		id := uuid.NewString()

		b.activeConns.Add(1)
		b.ConnCount.Add(1)
		b.ActiveConnections.Store(id, tcpConn)

		currentConns := b.ConnCount.Load()
		if b.Metrics != nil {
			b.Metrics.RecordConnectionAccepted()
			b.Metrics.SetActiveConnections(currentConns)
		}

		logger.Debug(b.protocolName+" connection accepted",
			logger.ConnectionID(id), logger.ClientIP(tcpConn.RemoteAddr().String()), logger.KeyActive, currentConns)

		handler := factory.NewConnection(tcpConn, id)

		go func(id string, tcp net.Conn) {
			defer func() {
				if onClose != nil {
					onClose(id)
				}

				b.ActiveConnections.Delete(id)

				b.ConnCount.Add(-1)
				if b.connSemaphore != nil {
					<-b.connSemaphore
				}

				if b.Metrics != nil {
					b.Metrics.RecordConnectionClosed()
					b.Metrics.SetActiveConnections(b.ConnCount.Load())
				}

				logger.Debug(b.protocolName+" connection closed",
					logger.ConnectionID(id), logger.KeyActive, b.ConnCount.Load())
				b.activeConns.Done()
			}()

			handler.Serve(b.ShutdownCtx)
		}(id, tcpConn)
	}
}

// initiateShutdown stops accepting, cancels ShutdownCtx so sessions stop
// after their current request, then interrupts reads blocked on idle
// clients. Safe to call more than once.
func (b *BaseAdapter) initiateShutdown() {
	b.shutdownOnce.Do(func() {
		logger.Debug(b.protocolName + " shutdown initiated")

		close(b.Shutdown)

		b.listenerMu.Lock()
		if b.listener != nil {
			if err := b.listener.Close(); err != nil {
				logger.Debug("Error closing "+b.protocolName+" listener", logger.Err(err))
			}
		}
		b.listenerMu.Unlock()

		b.CancelRequests()
		b.interruptBlockingReads()
	})
}

func (b *BaseAdapter) interruptBlockingReads() {
	deadline := time.Now().Add(shutdownReadGrace)

	b.ActiveConnections.Range(func(key, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			if err := conn.SetReadDeadline(deadline); err != nil {
				logger.Debug("Error setting shutdown deadline on connection",
					logger.KeyConnectionID, key, logger.Err(err))
			}
		}
		return true
	})
}

// waitConns returns a channel closed once every serve goroutine has exited.
func (b *BaseAdapter) waitConns() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()
	return done
}

// gracefulShutdown waits up to ShutdownTimeout for live sessions, then
// force-closes the rest.
func (b *BaseAdapter) gracefulShutdown() error {
	logger.Info(b.protocolName+" graceful shutdown: waiting for active connections",
		logger.KeyActive, b.ConnCount.Load(), "timeout", b.Config.ShutdownTimeout)

	var timeout <-chan time.Time
	if b.Config.ShutdownTimeout > 0 {
		timer := time.NewTimer(b.Config.ShutdownTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	done := b.waitConns()
	select {
	case <-done:
		logger.Info(b.protocolName + " graceful shutdown complete: all connections closed")
		return nil

	case <-timeout:
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown timeout exceeded - forcing closure",
			logger.KeyActive, remaining, "timeout", b.Config.ShutdownTimeout)

		b.forceCloseConnections()
		<-done

		return fmt.Errorf("%s shutdown timeout: %d connections force-closed", b.protocolName, remaining)
	}
}

func (b *BaseAdapter) forceCloseConnections() {
	closedCount := 0
	b.ActiveConnections.Range(func(key, value any) bool {
		id := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection", logger.ConnectionID(id), logger.Err(err))
			return true
		}
		closedCount++
		logger.Debug("Force-closed connection", logger.ConnectionID(id))
		if b.Metrics != nil {
			b.Metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed "+b.protocolName+" connections", "count", closedCount)
	}
}

// Stop initiates shutdown and waits for live sessions to finish. When ctx
// expires first, remaining sessions are force-closed and ctx's error is
// returned. A nil ctx waits up to ShutdownTimeout.
func (b *BaseAdapter) Stop(ctx context.Context) error {
	b.initiateShutdown()

	if ctx == nil {
		return b.gracefulShutdown()
	}

	done := b.waitConns()
	select {
	case <-done:
		return nil

	case <-ctx.Done():
		logger.Warn(b.protocolName+" shutdown context cancelled",
			logger.KeyActive, b.ConnCount.Load(), logger.Err(ctx.Err()))
		b.forceCloseConnections()
		return ctx.Err()
	}
}

func (b *BaseAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Shutdown:
			return
		case <-ticker.C:
			logger.Info(b.protocolName+" metrics", "active_connections", b.ConnCount.Load())
		}
	}
}

// GetActiveConnections returns the number of live sessions.
func (b *BaseAdapter) GetActiveConnections() int32 {
	return b.ConnCount.Load()
}

// GetListenerAddr blocks until the listener is bound and returns its address,
// or "" if binding failed.
func (b *BaseAdapter) GetListenerAddr() string {
	<-b.ListenerReady

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()

	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Port returns the configured TCP port.
func (b *BaseAdapter) Port() int {
	return b.Config.Port
}

// Protocol returns the protocol name.
func (b *BaseAdapter) Protocol() string {
	return b.protocolName
}

// MapError is the default: no mapping.
func (b *BaseAdapter) MapError(_ error) ProtocolError {
	return nil
}
