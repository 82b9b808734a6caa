package output

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/marmos91/cntfs/pkg/stats"
)

// TransferTable renders transfer records, newest last.
type TransferTable []stats.Transfer

func (t TransferTable) Headers() []string {
	return []string{"User", "Direction", "Size", "Started", "Duration", "Rate", "Latency"}
}

func (t TransferTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, tr := range t {
		rows = append(rows, []string{
			tr.Username,
			string(tr.Direction),
			humanize.IBytes(uint64(tr.Size)),
			humanize.Time(tr.StartedAt),
			seconds(tr.DurationSecs),
			Rate(tr.DataRateMbps),
			seconds(tr.LatencySecs),
		})
	}
	return rows
}

// SummaryPairs lays out a summary for SimpleTable.
func SummaryPairs(s stats.Summary) [][2]string {
	return [][2]string{
		{"Transfers", humanize.Comma(int64(s.Count))},
		{"Total", humanize.IBytes(uint64(s.TotalBytes))},
		{"Avg rate", Rate(s.AvgDataRateMbps)},
		{"Avg duration", seconds(s.AvgTransferSecs)},
		{"Avg latency", seconds(s.AvgLatencySecs)},
	}
}

// Rate formats a data rate given in megabytes per second.
func Rate(mbps float64) string {
	return humanize.Bytes(uint64(mbps*1e6)) + "/s"
}

func seconds(s float64) string {
	return (time.Duration(s * float64(time.Second))).Round(time.Millisecond).String()
}

// ByteCount formats n bytes in binary units, e.g. "1.5 MiB".
func ByteCount(n int64) string {
	if n < 0 {
		return fmt.Sprintf("%d B", n)
	}
	return humanize.IBytes(uint64(n))
}
