// Package stats records completed file transfers and summarizes them per
// user. Sinks are fire-and-forget: recording never fails the transfer.
package stats

import "time"

// Direction is upload (client to server) or download.
type Direction string

const (
	Upload   Direction = "upload"
	Download Direction = "download"
)

// Transfer is one completed payload transfer.
type Transfer struct {
	Username     string    `json:"username"`
	Direction    Direction `json:"direction"`
	Size         int64     `json:"size"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	DurationSecs float64   `json:"duration_secs"`
	LatencySecs  float64   `json:"latency_secs"`
	DataRateMbps float64   `json:"data_rate_mbps"`
}

// NewTransfer builds a record and derives duration and data rate. The data
// rate is megabytes (10^6 bytes) per second, zero for instant transfers.
func NewTransfer(username string, dir Direction, size int64, start, end time.Time, latency time.Duration) Transfer {
	duration := end.Sub(start).Seconds()
	if duration < 0 {
		duration = 0
	}
	t := Transfer{
		Username:     username,
		Direction:    dir,
		Size:         size,
		StartedAt:    start,
		EndedAt:      end,
		DurationSecs: duration,
		LatencySecs:  latency.Seconds(),
	}
	if duration > 0 {
		t.DataRateMbps = float64(size) / 1e6 / duration
	}
	return t
}

// Sink receives completed transfers.
type Sink interface {
	RecordTransfer(t Transfer)
}

// Multi fans a transfer out to every sink.
type Multi []Sink

func (m Multi) RecordTransfer(t Transfer) {
	for _, s := range m {
		if s != nil {
			s.RecordTransfer(t)
		}
	}
}

// Discard drops every transfer.
var Discard Sink = discard{}

type discard struct{}

func (discard) RecordTransfer(Transfer) {}

// Summary aggregates a set of transfers.
type Summary struct {
	Count           int     `json:"count"`
	TotalBytes      int64   `json:"total_bytes"`
	AvgDataRateMbps float64 `json:"avg_data_rate_mbps"`
	AvgTransferSecs float64 `json:"avg_transfer_secs"`
	AvgLatencySecs  float64 `json:"avg_latency_secs"`
}

// Summarize computes averages over transfers. An empty input yields zeros.
func Summarize(transfers []Transfer) Summary {
	s := Summary{Count: len(transfers)}
	if s.Count == 0 {
		return s
	}
	var rate, secs, latency float64
	for _, t := range transfers {
		s.TotalBytes += t.Size
		rate += t.DataRateMbps
		secs += t.DurationSecs
		latency += t.LatencySecs
	}
	n := float64(s.Count)
	s.AvgDataRateMbps = rate / n
	s.AvgTransferSecs = secs / n
	s.AvgLatencySecs = latency / n
	return s
}

// Report is the payload answering a stats request.
type Report struct {
	Transfers []Transfer `json:"transfers"`
	Summary   Summary    `json:"summary"`
}

// NewReport wraps transfers with their summary.
func NewReport(transfers []Transfer) Report {
	if transfers == nil {
		transfers = []Transfer{}
	}
	return Report{Transfers: transfers, Summary: Summarize(transfers)}
}
