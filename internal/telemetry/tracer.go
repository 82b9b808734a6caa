package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for cnt sessions.
const (
	AttrClientIP     = "client.ip"
	AttrConnectionID = "cnt.connection_id"
	AttrUsername     = "user.name"

	AttrCommand    = "cnt.command"
	AttrAckCode    = "cnt.ack_code"
	AttrPath       = "fs.path"
	AttrCurrentDir = "fs.current_dir"
	AttrKind       = "fs.kind"
	AttrSize       = "fs.size"
	AttrAction     = "fs.action"

	AttrAuthOutcome = "auth.outcome"
	AttrStoreType   = "store.type"
)

// Span names.
const (
	SpanSession = "cnt.session"

	// Commands are recorded as "cnt.<message type>", e.g. "cnt.upload".
	spanCommandPrefix = "cnt."

	SpanAuthenticate = "auth.authenticate"
	SpanCommitUpload = "files.commit_upload"
	SpanBuildTree    = "files.build_tree"
)

func ClientIP(ip string) attribute.KeyValue { return attribute.String(AttrClientIP, ip) }

func ConnectionID(id string) attribute.KeyValue { return attribute.String(AttrConnectionID, id) }

func Username(name string) attribute.KeyValue { return attribute.String(AttrUsername, name) }

func Command(name string) attribute.KeyValue { return attribute.String(AttrCommand, name) }

func AckCode(code int) attribute.KeyValue { return attribute.Int(AttrAckCode, code) }

func Path(p string) attribute.KeyValue { return attribute.String(AttrPath, p) }

func CurrentDir(p string) attribute.KeyValue { return attribute.String(AttrCurrentDir, p) }

func Kind(k string) attribute.KeyValue { return attribute.String(AttrKind, k) }

func Size(n int64) attribute.KeyValue { return attribute.Int64(AttrSize, n) }

func Action(a string) attribute.KeyValue { return attribute.String(AttrAction, a) }

func AuthOutcome(o string) attribute.KeyValue { return attribute.String(AttrAuthOutcome, o) }

func StoreType(t string) attribute.KeyValue { return attribute.String(AttrStoreType, t) }

// StartSessionSpan starts the root span of one client connection.
func StartSessionSpan(ctx context.Context, connectionID, clientIP string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSession,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(ConnectionID(connectionID), ClientIP(clientIP)),
	)
}

// StartCommandSpan starts a child span for one request, named after its
// message type.
func StartCommandSpan(ctx context.Context, command string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{Command(command)}, attrs...)
	return StartSpan(ctx, spanCommandPrefix+command, trace.WithAttributes(attrs...))
}
