package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/cntfs/internal/cli/output"
	"github.com/marmos91/cntfs/internal/daemon"
	"github.com/marmos91/cntfs/pkg/apiclient"
	"github.com/marmos91/cntfs/pkg/config"
)

var (
	statusOutput  string
	statusPidFile string
	statusAPIPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the cntfs server.

The PID file tells whether a daemon is running. The API health endpoints
tell whether the server answers and its store is reachable. The API port
is read from the configuration unless --api-port is given.

Examples:
  # Check status (uses configured settings)
  cntfs status

  # Check status with custom API port
  cntfs status --api-port 9080

  # Output as JSON
  cntfs status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/cntfs/cntfs.pid)")
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 0, "API server port (default: from configuration)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus represents the server status information.
type ServerStatus struct {
	Running     bool   `json:"running" yaml:"running"`
	PID         int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Listen      string `json:"listen,omitempty" yaml:"listen,omitempty"`
	Root        string `json:"root,omitempty" yaml:"root,omitempty"`
	Uptime      string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Healthy     bool   `json:"healthy" yaml:"healthy"`
	Store       string `json:"store,omitempty" yaml:"store,omitempty"`
	StoreStatus string `json:"store_status,omitempty" yaml:"store_status,omitempty"`
	Latency     string `json:"latency,omitempty" yaml:"latency,omitempty"`
	Message     string `json:"message" yaml:"message"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ServerStatus{Message: "Server is not running"}
	if rec, running := daemon.Running(orDefault(statusPidFile, GetDefaultPidFile())); running {
		status.Running = true
		status.PID = rec.PID
		status.Listen = rec.Listen
		status.Root = rec.Root
		if up := rec.Uptime(time.Now()); up > 0 {
			status.Uptime = up.String()
		}
	}

	apiURL, err := statusAPIURL()
	if err != nil {
		return err
	}
	checkHealth(cmd.Context(), apiclient.New(apiURL), &status)

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		return printStatusTable(status)
	}
}

func statusAPIURL() (string, error) {
	port := statusAPIPort
	if port == 0 {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return "", fmt.Errorf("failed to load config: %w", err)
		}
		if !cfg.API.IsEnabled() {
			return "", fmt.Errorf("the API server is disabled in the configuration; pass --api-port to check another instance")
		}
		port = cfg.API.Port
	}
	return "http://" + net.JoinHostPort("localhost", strconv.Itoa(port)), nil
}

// checkHealth fills status from the liveness and readiness checks.
func checkHealth(ctx context.Context, c *apiclient.Client, status *ServerStatus) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := c.Health(ctx); err != nil {
		if status.Running {
			status.Message = "Server process exists but health check failed"
		}
		return
	}
	status.Running = true

	store, err := c.Ready(ctx)
	if store != nil {
		status.Store = store.Type
		status.StoreStatus = store.Status
		status.Latency = store.Latency
	}
	if err != nil {
		status.Message = fmt.Sprintf("Server is running but unhealthy: %v", err)
		return
	}
	status.Healthy = true
	status.Message = "Server is running and healthy"
}

func printStatusTable(status ServerStatus) error {
	p := output.DefaultPrinter()
	p.Println()
	p.Println("cntfs Server Status")
	p.Println("===================")
	p.Println()

	switch {
	case status.Healthy:
		p.Success("● Running")
	case status.Running:
		p.Warning("● Running (unhealthy)")
	default:
		p.Error("○ Stopped")
	}

	var pairs [][2]string
	if status.PID != 0 {
		pairs = append(pairs, [2]string{"PID", strconv.Itoa(status.PID)})
	}
	for _, kv := range [][2]string{{"Listening", status.Listen}, {"Sandbox", status.Root}, {"Uptime", status.Uptime}} {
		if kv[1] != "" {
			pairs = append(pairs, kv)
		}
	}
	if status.Store != "" {
		pairs = append(pairs, [2]string{"Store", fmt.Sprintf("%s (%s)", status.Store, status.StoreStatus)})
	}
	if status.Latency != "" {
		pairs = append(pairs, [2]string{"Latency", status.Latency})
	}
	if len(pairs) > 0 {
		if err := output.SimpleTable(p.Writer(), pairs); err != nil {
			return err
		}
	}

	p.Println()
	p.Printf("  %s\n\n", status.Message)
	return nil
}
