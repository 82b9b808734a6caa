package commands

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntctl/cmdutil"
	"github.com/marmos91/cntfs/internal/cli/output"
	"github.com/marmos91/cntfs/pkg/api/handlers"
	"github.com/marmos91/cntfs/pkg/client"
	"github.com/marmos91/cntfs/pkg/stats"
)

var statsAll bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show transfer statistics",
	Long: `Show your upload and download history with its averages.

With --all, show totals for every user from the server's HTTP API
instead. That needs an API URL, saved at login or given with --api-url.

Examples:
  cntctl stats
  cntctl stats --all -o json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsAll, "all", false, "Show every user's totals from the HTTP API")
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsAll {
		return runGlobalStats(cmd)
	}

	var report stats.Report
	err := cmdutil.Session(cmd.Context(), func(c *client.Client) error {
		var err error
		report, err = c.Stats(cmd.Context())
		return err
	})
	if err != nil {
		return err
	}

	p, err := cmdutil.Printer(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if p.Structured() {
		return p.Print(report)
	}
	if len(report.Transfers) == 0 {
		p.Println("No transfers yet.")
		return nil
	}
	if err := output.PrintTable(p.Writer(), output.TransferTable(report.Transfers)); err != nil {
		return err
	}
	p.Println()
	return output.SimpleTable(p.Writer(), output.SummaryPairs(report.Summary))
}

// UserStatsTable renders per-user summaries.
type UserStatsTable []handlers.UserSummary

func (t UserStatsTable) Headers() []string {
	return []string{"User", "Transfers", "Total", "Avg rate", "Avg duration", "Avg latency"}
}

func (t UserStatsTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, u := range t {
		rows = append(rows, []string{
			u.Username,
			humanize.Comma(int64(u.Count)),
			humanize.IBytes(uint64(u.TotalBytes)),
			output.Rate(u.AvgDataRateMbps),
			secondsString(u.AvgTransferSecs),
			secondsString(u.AvgLatencySecs),
		})
	}
	return rows
}

func secondsString(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond).String()
}

func runGlobalStats(cmd *cobra.Command) error {
	api, err := cmdutil.APIClient()
	if err != nil {
		return err
	}
	global, err := api.Stats(cmd.Context())
	if err != nil {
		return err
	}

	p, err := cmdutil.Printer(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if p.Structured() {
		return p.Print(global)
	}
	if len(global.Users) == 0 {
		p.Println("No transfers yet.")
		return nil
	}
	if err := output.PrintTable(p.Writer(), UserStatsTable(global.Users)); err != nil {
		return err
	}
	p.Println()
	return output.SimpleTable(p.Writer(), output.SummaryPairs(global.Summary))
}
