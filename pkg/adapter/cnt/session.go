package cnt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/marmos91/cntfs/internal/logger"
	"github.com/marmos91/cntfs/internal/telemetry"
	"github.com/marmos91/cntfs/pkg/auth"
	"github.com/marmos91/cntfs/pkg/protocol"
)

type sessionState int

const (
	stateAwaitingConnect sessionState = iota
	stateAuthenticated
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateAwaitingConnect:
		return "awaiting_connect"
	case stateAuthenticated:
		return "authenticated"
	default:
		return "closed"
	}
}

// Session is one client connection.
//
// The request loop runs on a single goroutine and is the only reader and
// writer of the socket. mu guards state against Close from another
// goroutine (forced disconnect); it is not held while serving.
type Session struct {
	server *Adapter
	conn   net.Conn
	wire   *protocol.Conn
	id     string

	mu         sync.Mutex
	state      sessionState
	username   string
	currentDir string
	lc         *logger.LogContext
}

func newSession(server *Adapter, conn net.Conn, id string) *Session {
	clientIP := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(clientIP); err == nil {
		clientIP = host
	}
	return &Session{
		server:     server,
		conn:       conn,
		wire:       protocol.NewConn(conn, server.config.FrameSize, protocol.DirectionResponse),
		id:         id,
		currentDir: server.files.Root(),
		lc:         logger.NewLogContext(id, clientIP),
	}
}

// Serve runs the session until the client closes, a fatal error occurs or
// ctx is cancelled. The connection is closed on return.
func (s *Session) Serve(ctx context.Context) {
	defer s.handleClose()

	ctx, span := telemetry.StartSessionSpan(ctx, s.id, s.lc.ClientIP)
	defer span.End()
	s.lc = s.lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, s.lc)

	logger.DebugCtx(ctx, "session started")

	if !s.awaitConnect(ctx) {
		return
	}

	for {
		if ctx.Err() != nil {
			logger.DebugCtx(ctx, "session closed by server shutdown")
			return
		}

		msg, dir, err := s.receive(ctx, s.server.config.Timeouts.Idle)
		if err != nil {
			s.logReadError(ctx, err)
			return
		}
		if !s.dispatch(ctx, msg, dir) {
			return
		}
	}
}

// awaitConnect runs the AwaitingConnect state. It reports whether the
// session is now authenticated.
func (s *Session) awaitConnect(ctx context.Context) bool {
	msg, _, err := s.receive(ctx, s.server.config.Timeouts.Idle)
	if err != nil {
		s.logReadError(ctx, err)
		return false
	}

	connect, ok := msg.(protocol.Connect)
	if !ok {
		logger.DebugCtx(ctx, "first message is not connect, dropping connection",
			logger.Command(string(msg.Type())))
		return false
	}

	cmdCtx, span := telemetry.StartCommandSpan(ctx, string(protocol.TypeConnect), telemetry.Username(connect.Username))
	defer span.End()
	start := time.Now()

	code, authenticated := s.authenticate(cmdCtx, connect)

	telemetry.SetAttributes(cmdCtx, telemetry.AckCode(code))
	if s.server.metrics != nil {
		s.server.metrics.RecordCommand(string(protocol.TypeConnect), code, time.Since(start))
	}
	return authenticated
}

func (s *Session) authenticate(ctx context.Context, c protocol.Connect) (int, bool) {
	outcome, err := s.server.auth.Authenticate(ctx, c.Username, c.PasswordHash)
	telemetry.SetAttributes(ctx, telemetry.AuthOutcome(outcome.String()))
	if s.server.metrics != nil {
		s.server.metrics.RecordAuthentication(outcome.String())
	}

	if err != nil {
		telemetry.RecordError(ctx, err)
		if ae := mapError(err); ae != nil {
			logger.InfoCtx(ctx, "connect rejected", logger.Username(c.Username), logger.Err(err))
			_ = s.send(ctx, protocol.Ack{Code: ae.code, Message: ae.message})
			return ae.code, false
		}
		logger.ErrorCtx(ctx, "credential store failure during connect", logger.Username(c.Username), logger.Err(err))
		return 0, false
	}

	var text string
	switch outcome {
	case auth.OutcomeRegistered:
		text = "welcome new user"
	case auth.OutcomeVerified:
		text = "welcome back"
	default:
		logger.InfoCtx(ctx, "connect rejected: invalid password", logger.Username(c.Username))
		_ = s.send(ctx, protocol.Ack{Code: protocol.CodeUnauthorized, Message: "invalid password"})
		return protocol.CodeUnauthorized, false
	}

	if err := s.send(ctx, protocol.Ack{Code: protocol.CodeOK, Message: text}); err != nil {
		logger.DebugCtx(ctx, "failed to acknowledge connect", logger.Err(err))
		return protocol.CodeOK, false
	}

	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return protocol.CodeOK, false
	}
	s.state = stateAuthenticated
	s.username = c.Username
	s.lc = s.lc.WithUsername(c.Username)
	s.mu.Unlock()

	logger.InfoCtx(ctx, "client connected", logger.Username(c.Username), "outcome", outcome.String())
	return protocol.CodeOK, true
}

// dispatch handles one request and reports whether the session stays open.
func (s *Session) dispatch(ctx context.Context, msg protocol.Message, dir protocol.Direction) bool {
	command := string(msg.Type())
	lc := s.lc.WithCommand(command)
	ctx = logger.WithContext(ctx, lc)
	ctx, span := telemetry.StartCommandSpan(ctx, command)
	defer span.End()

	code, err := s.handle(ctx, msg, dir)

	telemetry.SetAttributes(ctx, telemetry.AckCode(code))
	if s.server.metrics != nil {
		s.server.metrics.RecordCommand(command, code, time.Since(lc.StartTime))
	}

	switch {
	case err == nil:
		logger.DebugCtx(ctx, "request handled", logger.AckCode(code), logger.DurationMs(lc.DurationMs()))
		return true
	case errors.Is(err, errSessionDone):
		logger.DebugCtx(ctx, "client closed session")
		return false
	default:
		telemetry.RecordError(ctx, err)
		s.logReadError(ctx, err)
		return false
	}
}

// handle routes msg to its handler. A non-nil error ends the session; the
// returned code is what was sent back, 0 when nothing was.
func (s *Session) handle(ctx context.Context, msg protocol.Message, dir protocol.Direction) (int, error) {
	switch m := msg.(type) {
	case protocol.Connect:
		return s.reply(ctx, protocol.CodeAlreadyConnected, "already connected")

	case protocol.Close:
		code, err := s.reply(ctx, protocol.CodeOK, "goodbye")
		if err != nil {
			return code, err
		}
		return code, errSessionDone

	case protocol.Ack:
		logger.DebugCtx(ctx, "ignoring unsolicited ack", logger.AckCode(m.Code), logger.KeyDirection, string(dir))
		return 0, nil

	case protocol.Upload:
		return s.handleUpload(ctx, m)
	case protocol.DownloadRequest:
		return s.handleDownload(ctx, m)
	case protocol.Delete:
		return s.handleDelete(ctx, m)
	case protocol.DirRequest:
		return s.handleDir(ctx)
	case protocol.Move:
		return s.handleMove(ctx, m)
	case protocol.Subfolder:
		return s.handleSubfolder(ctx, m)
	case protocol.StatsRequest:
		return s.handleStats(ctx)

	default:
		return 0, &protocol.DecodeError{Reason: fmt.Sprintf("%s %s is not a client request", m.Type(), dir)}
	}
}

// receive reads one control frame, waiting at most timeout.
func (s *Session) receive(ctx context.Context, timeout time.Duration) (protocol.Message, protocol.Direction, error) {
	if err := s.armRead(ctx, timeout); err != nil {
		return nil, "", err
	}
	return s.wire.Receive()
}

// send writes one response frame within the write timeout.
func (s *Session) send(ctx context.Context, m protocol.Message) error {
	if err := s.armWrite(ctx); err != nil {
		return err
	}
	if err := s.wire.Send(m); err != nil {
		return fmt.Errorf("send %s: %w", m.Type(), err)
	}
	return nil
}

// armRead sets the read deadline for the next blocking read. It refuses
// once shutdown has begun so it cannot clear the shutdown interrupt.
func (s *Session) armRead(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	return s.conn.SetReadDeadline(deadline)
}

func (s *Session) armWrite(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var deadline time.Time
	if t := s.server.config.Timeouts.Write; t > 0 {
		deadline = time.Now().Add(t)
	}
	return s.conn.SetWriteDeadline(deadline)
}

func (s *Session) logReadError(ctx context.Context, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		logger.DebugCtx(ctx, "client disconnected")
	case errors.Is(err, context.Canceled), errors.Is(err, net.ErrClosed):
		logger.DebugCtx(ctx, "session closed by server shutdown")
	case errors.As(err, &netErr) && netErr.Timeout():
		if ctx.Err() != nil {
			logger.DebugCtx(ctx, "session closed by server shutdown")
			return
		}
		logger.InfoCtx(ctx, "session timed out", logger.Err(err))
	case protocol.IsDecodeError(err), errors.Is(err, protocol.ErrFrameTooLarge):
		logger.WarnCtx(ctx, "protocol error, closing session", logger.Err(err))
	case errors.Is(err, io.ErrUnexpectedEOF):
		logger.InfoCtx(ctx, "client disconnected mid-transfer", logger.Err(err))
	default:
		logger.DebugCtx(ctx, "session I/O error", logger.Err(err))
	}
}

// State returns the session's current state name.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.String()
}

// Close tears the session down. It is safe to call from any goroutine and
// more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	return s.conn.Close()
}

func (s *Session) handleClose() {
	if r := recover(); r != nil {
		logger.Error("Panic in cnt session handler",
			logger.ConnectionID(s.id),
			logger.KeyError, r,
			"stack", string(debug.Stack()))
	}
	if err := s.Close(); err != nil {
		logger.Debug("Error closing cnt session", logger.ConnectionID(s.id), logger.Err(err))
	}

	s.mu.Lock()
	s.username = ""
	s.currentDir = ""
	s.mu.Unlock()
}
