// Package cnt implements the cntfs file-sharing protocol server: one
// Session per TCP connection, each running the connect handshake and then a
// strictly sequential request loop against a shared files.Manager.
package cnt

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/marmos91/cntfs/internal/logger"
	"github.com/marmos91/cntfs/pkg/adapter"
	"github.com/marmos91/cntfs/pkg/auth"
	"github.com/marmos91/cntfs/pkg/files"
	"github.com/marmos91/cntfs/pkg/metrics"
	"github.com/marmos91/cntfs/pkg/stats"
)

// ProtocolName identifies the adapter in logs.
const ProtocolName = "CNT"

// StatsRecorder receives completed transfers and answers per-user stats
// requests. *stats.History implements it.
type StatsRecorder interface {
	stats.Sink
	Report(username string) stats.Report
}

// Dependencies are the shared collaborators every session uses.
type Dependencies struct {
	Files *files.Manager
	Auth  *auth.Authenticator

	// Stats is optional. When nil a memory-only history is used.
	Stats StatsRecorder
}

// Adapter is the cnt protocol server.
//
// Adapter embeds BaseAdapter for the TCP lifecycle (listener, connection
// tracking, graceful shutdown). Shutdown cancels the context every session
// runs under, so sessions stop between requests; sessions blocked on an idle
// client are interrupted by a read deadline and the rest force-closed after
// ShutdownTimeout.
type Adapter struct {
	*adapter.BaseAdapter

	config  Config
	files   *files.Manager
	auth    *auth.Authenticator
	stats   StatsRecorder
	sink    stats.Sink
	metrics metrics.ServerMetrics
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates a stopped Adapter. m may be nil to disable metrics.
func New(config Config, deps Dependencies, m metrics.ServerMetrics) (*Adapter, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid cnt config: %w", err)
	}
	if deps.Files == nil {
		return nil, errors.New("cnt adapter requires a files manager")
	}
	if deps.Auth == nil {
		return nil, errors.New("cnt adapter requires an authenticator")
	}

	rec := deps.Stats
	if rec == nil {
		h, err := stats.OpenHistory("", stats.DefaultHistorySize)
		if err != nil {
			return nil, err
		}
		rec = h
	}

	var sink stats.Sink = rec
	if m != nil {
		sink = stats.Multi{rec, m}
	}

	base := adapter.NewBaseAdapter(adapter.BaseConfig{
		BindAddress:        config.BindAddress,
		Port:               config.Port,
		MaxConnections:     config.MaxConnections,
		ShutdownTimeout:    config.ShutdownTimeout,
		MetricsLogInterval: config.MetricsLogInterval,
	}, ProtocolName)
	if m != nil {
		base.Metrics = m
	}

	logger.Debug("cnt adapter configured",
		"port", config.Port,
		"frame_size", config.FrameSize,
		"max_connections", config.MaxConnections,
		"root", deps.Files.Root())

	return &Adapter{
		BaseAdapter: base,
		config:      config,
		files:       deps.Files,
		auth:        deps.Auth,
		stats:       rec,
		sink:        sink,
		metrics:     m,
	}, nil
}

// Serve accepts connections until ctx is cancelled or Stop is called.
func (a *Adapter) Serve(ctx context.Context) error {
	return a.ServeWithFactory(ctx, a, nil, nil)
}

// NewConnection implements adapter.ConnectionFactory.
func (a *Adapter) NewConnection(conn net.Conn, id string) adapter.ConnectionHandler {
	return newSession(a, conn, id)
}

// MapError translates a domain error into the Ack it is reported as.
func (a *Adapter) MapError(err error) adapter.ProtocolError {
	if ae := mapError(err); ae != nil {
		return ae
	}
	return nil
}

