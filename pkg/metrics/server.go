package metrics

import (
	"time"

	"github.com/marmos91/cntfs/pkg/stats"
)

// ServerMetrics instruments the cnt server: connection lifecycle, command
// outcomes, authentication results and completed transfers.
//
// A nil ServerMetrics disables collection:
//
//	m := prometheus.NewServerMetrics() // nil unless InitRegistry was called
//	srv := cnt.New(cfg, deps, m)
type ServerMetrics interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)

	// RecordCommand records one handled request. code is the Ack (or
	// response status) code sent back, 0 when the request ended the session
	// without a response.
	RecordCommand(command string, code int, duration time.Duration)

	// RecordAuthentication records a connect outcome: "registered",
	// "verified" or "rejected".
	RecordAuthentication(outcome string)

	// RecordTransfer implements stats.Sink so metrics can sit in a
	// stats.Multi next to the transfer history.
	RecordTransfer(t stats.Transfer)
}
