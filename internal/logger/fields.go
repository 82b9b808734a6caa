package logger

import "log/slog"

// Standard field keys. Use these consistently so log lines can be queried
// across components.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Connection
	KeyConnectionID = "connection_id"
	KeyClientIP     = "client_ip"
	KeyAddress      = "address"
	KeyActive       = "active"
	KeyUsername     = "username"

	// Protocol
	KeyCommand   = "command"
	KeyDirection = "direction"
	KeyAckCode   = "ack_code"
	KeyAckMsg    = "ack_message"

	// Filesystem
	KeyPath       = "path"
	KeyCurrentDir = "current_dir"
	KeyKind       = "kind"
	KeySize       = "size"
	KeyAction     = "action"

	// Transfer
	KeyBytes    = "bytes"
	KeyDataRate = "data_rate_mbps"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyStore      = "store"
)

func ConnectionID(id string) slog.Attr { return slog.String(KeyConnectionID, id) }

func ClientIP(addr string) slog.Attr { return slog.String(KeyClientIP, addr) }

func Username(name string) slog.Attr { return slog.String(KeyUsername, name) }

func Command(name string) slog.Attr { return slog.String(KeyCommand, name) }

func AckCode(code int) slog.Attr { return slog.Int(KeyAckCode, code) }

func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

func Size(n int64) slog.Attr { return slog.Int64(KeySize, n) }

func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns an error attribute; a nil error yields an empty attribute that
// handlers skip.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
