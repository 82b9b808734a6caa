package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/cmd/cntctl/cmdutil"
	"github.com/marmos91/cntfs/internal/cli/output"
	"github.com/marmos91/cntfs/pkg/api/handlers"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the server's health",
	Long: `Query the liveness and readiness checks of the server's HTTP API.

Examples:
  cntctl health
  cntctl health --api-url http://localhost:8080 -o json`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

// HealthReport is the combined result of both checks.
type HealthReport struct {
	Service string                `json:"service" yaml:"service"`
	Ready   bool                  `json:"ready" yaml:"ready"`
	Store   *handlers.StoreHealth `json:"store,omitempty" yaml:"store,omitempty"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	api, err := cmdutil.APIClient()
	if err != nil {
		return err
	}

	live, err := api.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("server is not answering: %w", err)
	}
	report := HealthReport{Service: live.Service}
	store, readyErr := api.Ready(cmd.Context())
	report.Store = store
	report.Ready = readyErr == nil

	p, err := cmdutil.Printer(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if p.Structured() {
		if err := p.Print(report); err != nil {
			return err
		}
		return readyErr
	}

	if report.Ready {
		p.Success("● Ready")
	} else {
		p.Error("○ Not ready")
	}
	pairs := [][2]string{{"Service", cmdutil.EmptyOr(report.Service, "-")}}
	if store != nil {
		pairs = append(pairs,
			[2]string{"Store", fmt.Sprintf("%s (%s)", cmdutil.EmptyOr(store.Type, "-"), cmdutil.EmptyOr(store.Status, "-"))},
			[2]string{"Latency", cmdutil.EmptyOr(store.Latency, "-")},
		)
		if store.Error != "" {
			pairs = append(pairs, [2]string{"Error", store.Error})
		}
	}
	if err := output.SimpleTable(p.Writer(), pairs); err != nil {
		return err
	}
	return readyErr
}
