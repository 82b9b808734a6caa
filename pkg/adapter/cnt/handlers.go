package cnt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/marmos91/cntfs/internal/logger"
	"github.com/marmos91/cntfs/internal/telemetry"
	"github.com/marmos91/cntfs/pkg/protocol"
	"github.com/marmos91/cntfs/pkg/stats"
)

// reply sends an Ack and returns its code.
func (s *Session) reply(ctx context.Context, code int, text string) (int, error) {
	if err := s.send(ctx, protocol.Ack{Code: code, Message: text}); err != nil {
		return 0, err
	}
	return code, nil
}

// replyError sends the Ack err maps to. Errors with no mapping are answered
// with a Conflict unless the session itself is shutting down.
func (s *Session) replyError(ctx context.Context, err error) (int, error) {
	ae := s.ackFor(ctx, err)
	if ae == nil {
		return 0, err
	}
	return s.reply(ctx, ae.code, ae.message)
}

// ackFor maps err for a response. A nil result means err is fatal.
func (s *Session) ackFor(ctx context.Context, err error) *ackError {
	if ae := mapError(err); ae != nil {
		logger.DebugCtx(ctx, "request rejected", logger.AckCode(ae.code), logger.Err(err))
		return ae
	}
	if ctx.Err() != nil {
		return nil
	}
	logger.WarnCtx(ctx, "request failed", logger.Err(err))
	return &ackError{code: protocol.CodeConflict, message: "internal error", err: err}
}

// resolve turns a client path into an absolute path inside the sandbox,
// relative to the session's current directory.
func (s *Session) resolve(raw string) (string, error) {
	s.mu.Lock()
	cwd := s.currentDir
	s.mu.Unlock()
	return s.server.files.Sandbox().Resolve(raw, cwd)
}

func (s *Session) user() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *Session) relCurrentDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.files.Sandbox().Rel(s.currentDir)
}

// awaitClientAck reads the client's go-ahead for a pending payload. Anything
// other than an ack is a protocol error.
func (s *Session) awaitClientAck(ctx context.Context) (protocol.Ack, error) {
	msg, _, err := s.receive(ctx, s.server.config.Timeouts.Read)
	if err != nil {
		return protocol.Ack{}, err
	}
	ack, ok := msg.(protocol.Ack)
	if !ok {
		return protocol.Ack{}, &protocol.DecodeError{Reason: fmt.Sprintf("expected ack before payload, got %s", msg.Type())}
	}
	return ack, nil
}

// writePayload streams size bytes from r after the client acked. The write
// deadline covers the whole payload and grows with its size.
func (s *Session) writePayload(ctx context.Context, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var deadline time.Time
	if t := s.server.config.Timeouts.Write; t > 0 {
		deadline = time.Now().Add(t + payloadAllowance(size))
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.wire.WritePayload(r, size)
}

// payloadAllowance is one extra second per MiB.
func payloadAllowance(size int64) time.Duration {
	return time.Duration(size>>20) * time.Second
}

func (s *Session) recordTransfer(dir stats.Direction, size int64, start, end time.Time, latency time.Duration) {
	t := stats.NewTransfer(s.user(), dir, size, start, end, latency)
	s.server.sink.RecordTransfer(t)
}

// ============================================================================
// Upload
// ============================================================================

func (s *Session) handleUpload(ctx context.Context, m protocol.Upload) (int, error) {
	telemetry.SetAttributes(ctx,
		telemetry.Path(m.Name), telemetry.Kind(string(m.Kind)), telemetry.Size(m.Size))

	dest, err := s.resolve(m.Name)
	if err != nil {
		return s.replyError(ctx, err)
	}

	handle, err := s.server.files.RequestUpload(ctx, dest, m.Size, s.user())
	if err != nil {
		return s.replyError(ctx, err)
	}

	if _, err := s.reply(ctx, protocol.CodeOK, "OK"); err != nil {
		return 0, err
	}
	sent := time.Now()

	timeout := s.server.config.Timeouts.Read
	if timeout > 0 {
		timeout += payloadAllowance(m.Size)
	}
	if err := s.armRead(ctx, timeout); err != nil {
		return 0, err
	}
	body := &meteredReader{r: io.LimitReader(s.conn, m.Size)}

	commitCtx, span := telemetry.StartSpan(ctx, telemetry.SpanCommitUpload)
	ok := s.server.files.CommitUpload(commitCtx, handle, body)
	span.End()

	// keep the stream aligned on frames: whatever the commit did not read
	// is still on the wire
	if _, err := io.Copy(io.Discard, body); err != nil {
		return 0, fmt.Errorf("drain upload payload: %w", err)
	}
	if body.n != m.Size {
		return 0, fmt.Errorf("upload payload: got %d of %d bytes: %w", body.n, m.Size, io.ErrUnexpectedEOF)
	}
	end := time.Now()

	if !ok {
		logger.InfoCtx(ctx, "upload failed", logger.Path(s.server.files.Sandbox().Rel(dest)), logger.Size(m.Size))
		return s.reply(ctx, protocol.CodeConflict, "upload failed")
	}

	s.recordTransfer(stats.Upload, m.Size, body.firstAt(sent), end, body.latency(sent))
	logger.InfoCtx(ctx, "file uploaded",
		logger.Path(s.server.files.Sandbox().Rel(dest)),
		logger.Size(m.Size),
		logger.KeyKind, string(m.Kind))
	return s.reply(ctx, protocol.CodeOK, "OK")
}

// ============================================================================
// Download
// ============================================================================

func (s *Session) handleDownload(ctx context.Context, m protocol.DownloadRequest) (int, error) {
	telemetry.SetAttributes(ctx, telemetry.Path(m.Path))

	src, err := s.resolve(m.Path)
	if err != nil {
		return s.downloadError(ctx, err)
	}

	rc, size, err := s.server.files.ExtractContents(ctx, src, s.user())
	if err != nil {
		return s.downloadError(ctx, err)
	}
	defer rc.Close()

	kind := protocol.KindFromName(path.Base(m.Path))
	telemetry.SetAttributes(ctx, telemetry.Kind(string(kind)), telemetry.Size(size))

	if err := s.send(ctx, protocol.DownloadResponse{
		Status:  protocol.CodeOK,
		Message: "OK",
		Kind:    kind,
		Size:    size,
	}); err != nil {
		return 0, err
	}
	sent := time.Now()

	ack, err := s.awaitClientAck(ctx)
	if err != nil {
		return protocol.CodeOK, err
	}
	if ack.Code != protocol.CodeOK {
		logger.DebugCtx(ctx, "client declined download", logger.Path(m.Path), logger.AckCode(ack.Code))
		return protocol.CodeOK, nil
	}
	latency := time.Since(sent)

	start := time.Now()
	if err := s.writePayload(ctx, rc, size); err != nil {
		return protocol.CodeOK, err
	}
	s.recordTransfer(stats.Download, size, start, time.Now(), latency)

	logger.InfoCtx(ctx, "file downloaded", logger.Path(m.Path), logger.Size(size))
	return protocol.CodeOK, nil
}

// downloadError answers a failed download with a response carrying no kind.
func (s *Session) downloadError(ctx context.Context, err error) (int, error) {
	ae := s.ackFor(ctx, err)
	if ae == nil {
		return 0, err
	}
	if err := s.send(ctx, protocol.DownloadResponse{Status: ae.code, Message: ae.message}); err != nil {
		return 0, err
	}
	return ae.code, nil
}

// ============================================================================
// Delete, Move, Subfolder
// ============================================================================

func (s *Session) handleDelete(ctx context.Context, m protocol.Delete) (int, error) {
	telemetry.SetAttributes(ctx, telemetry.Path(m.Path))

	target, err := s.resolve(m.Path)
	if err != nil {
		return s.replyError(ctx, err)
	}
	if err := s.server.files.DeleteFile(ctx, target, s.user()); err != nil {
		return s.replyError(ctx, err)
	}

	logger.InfoCtx(ctx, "file deleted", logger.Path(s.server.files.Sandbox().Rel(target)))
	return s.reply(ctx, protocol.CodeOK, "OK")
}

func (s *Session) handleMove(ctx context.Context, m protocol.Move) (int, error) {
	telemetry.SetAttributes(ctx, telemetry.Path(m.Path))

	target, err := s.resolve(m.Path)
	if err != nil {
		logger.DebugCtx(ctx, "move rejected", logger.Path(m.Path), logger.Err(err))
		return s.reply(ctx, protocol.CodeForbidden, pathErrorText)
	}
	if !s.server.files.IsDir(target) {
		return s.reply(ctx, protocol.CodeNotFound, "not a directory")
	}
	if !s.listingFits(s.server.files.Sandbox().Rel(target)) {
		logger.DebugCtx(ctx, "move rejected: directory does not fit a dir response", logger.Path(m.Path))
		return s.reply(ctx, protocol.CodeConflict, "path too long")
	}

	s.mu.Lock()
	s.currentDir = target
	s.mu.Unlock()

	rel := s.relCurrentDir()
	telemetry.SetAttributes(ctx, telemetry.CurrentDir(rel))
	logger.DebugCtx(ctx, "working directory changed", logger.KeyCurrentDir, rel)
	return s.reply(ctx, protocol.CodeOK, "OK")
}

// dirMessageReserve is room kept in a dir response for an error message.
const dirMessageReserve = 64

// listingFits reports whether a dir response naming rel as the current
// directory still fits one frame.
func (s *Session) listingFits(rel string) bool {
	return protocol.Fits(protocol.DirResponse{
		Code:       protocol.CodeConflict,
		Message:    strings.Repeat("x", dirMessageReserve),
		CurrentDir: rel,
		Size:       math.MaxInt64,
	}, protocol.DirectionResponse, s.wire.FrameSize())
}

func (s *Session) handleSubfolder(ctx context.Context, m protocol.Subfolder) (int, error) {
	telemetry.SetAttributes(ctx, telemetry.Path(m.Path), telemetry.Action(string(m.Action)))

	target, err := s.resolve(m.Path)
	if err != nil {
		return s.replyError(ctx, err)
	}
	if err := s.server.files.ModifySubdirectory(target, m.Action); err != nil {
		return s.replyError(ctx, err)
	}

	logger.InfoCtx(ctx, "subfolder modified",
		logger.Path(s.server.files.Sandbox().Rel(target)),
		logger.KeyAction, string(m.Action))
	return s.reply(ctx, protocol.CodeOK, "OK")
}

// ============================================================================
// Dir and Stats: a response announcing a JSON payload sent after the ack
// ============================================================================

func (s *Session) handleDir(ctx context.Context) (int, error) {
	cwd := s.relCurrentDir()

	treeCtx, span := telemetry.StartSpan(ctx, telemetry.SpanBuildTree)
	tree, err := s.server.files.BuildTree(treeCtx)
	span.End()
	if err != nil {
		ae := s.ackFor(ctx, err)
		if ae == nil {
			return 0, err
		}
		if err := s.send(ctx, protocol.DirResponse{Code: ae.code, Message: ae.message, CurrentDir: cwd}); err != nil {
			return 0, err
		}
		return ae.code, nil
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return 0, fmt.Errorf("encode directory tree: %w", err)
	}

	err = s.send(ctx, protocol.DirResponse{
		Code:       protocol.CodeOK,
		Message:    "OK",
		CurrentDir: cwd,
		Size:       int64(len(data)),
	})
	if err != nil {
		return 0, err
	}
	return s.sendAfterAck(ctx, data)
}

func (s *Session) handleStats(ctx context.Context) (int, error) {
	report := s.server.stats.Report(s.user())
	data, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("encode stats report: %w", err)
	}

	err = s.send(ctx, protocol.StatsResponse{
		Code:    protocol.CodeOK,
		Message: "OK",
		Size:    int64(len(data)),
	})
	if err != nil {
		return 0, err
	}
	return s.sendAfterAck(ctx, data)
}

// sendAfterAck waits for the client's go-ahead and streams data.
func (s *Session) sendAfterAck(ctx context.Context, data []byte) (int, error) {
	ack, err := s.awaitClientAck(ctx)
	if err != nil {
		return protocol.CodeOK, err
	}
	if ack.Code != protocol.CodeOK {
		logger.DebugCtx(ctx, "client declined payload", logger.AckCode(ack.Code))
		return protocol.CodeOK, nil
	}
	if err := s.writePayload(ctx, bytes.NewReader(data), int64(len(data))); err != nil {
		return protocol.CodeOK, err
	}
	return protocol.CodeOK, nil
}

// ============================================================================
// Helpers
// ============================================================================

// meteredReader counts bytes and notes when the first one arrived.
type meteredReader struct {
	r     io.Reader
	n     int64
	first time.Time
}

func (m *meteredReader) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	if n > 0 && m.first.IsZero() {
		m.first = time.Now()
	}
	m.n += int64(n)
	return n, err
}

// firstAt returns when the first byte arrived, or fallback if none did.
func (m *meteredReader) firstAt(fallback time.Time) time.Time {
	if m.first.IsZero() {
		return fallback
	}
	return m.first
}

// latency is the delay between the go-ahead at sent and the first byte.
func (m *meteredReader) latency(sent time.Time) time.Duration {
	if m.first.IsZero() {
		return 0
	}
	return m.first.Sub(sent)
}
