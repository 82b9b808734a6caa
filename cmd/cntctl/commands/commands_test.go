package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/cntfs/internal/cli/credentials"
	"github.com/marmos91/cntfs/pkg/adapter/cnt"
	"github.com/marmos91/cntfs/pkg/api"
	"github.com/marmos91/cntfs/pkg/api/handlers"
	"github.com/marmos91/cntfs/pkg/auth"
	"github.com/marmos91/cntfs/pkg/files"
	"github.com/marmos91/cntfs/pkg/protocol"
	"github.com/marmos91/cntfs/pkg/stats"
	"github.com/marmos91/cntfs/pkg/store/memory"
)

type testEnv struct {
	addr   string
	apiURL string
}

// startServer runs a cnt adapter and an API server in-process, and points
// the credential store at a temp dir.
func startServer(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CNTCTL_PASSWORD", "secret")

	st := memory.New()
	fm, err := files.NewManager(t.TempDir(), st)
	require.NoError(t, err)
	history, err := stats.OpenHistory("", 0)
	require.NoError(t, err)

	adapter, err := cnt.New(cnt.Config{BindAddress: "127.0.0.1"}, cnt.Dependencies{
		Files: fm,
		Auth:  auth.New(st, auth.WithCost(bcrypt.MinCost)),
		Stats: history,
	}, nil)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	apiServer := api.NewServer(api.APIConfig{}, api.Dependencies{Store: st, StoreType: "memory", Stats: history})

	ctx, cancel := context.WithCancel(context.Background())
	adapterDone := make(chan struct{})
	apiDone := make(chan struct{})
	go func() {
		defer close(adapterDone)
		_ = adapter.Serve(ctx)
	}()
	go func() {
		defer close(apiDone)
		_ = apiServer.Serve(ctx, l)
	}()
	t.Cleanup(func() {
		cancel()
		<-adapterDone
		<-apiDone
	})

	addr := adapter.GetListenerAddr()
	require.NotEmpty(t, addr)
	return &testEnv{addr: addr, apiURL: "http://" + l.Addr().String()}
}

// resetFlags puts every flag back to its default so runs do not leak into
// each other through the shared command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := GetRootCmd()
	resetFlags(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, "cntctl %v: %s", args, out)
	return out
}

func TestClientWorkflow(t *testing.T) {
	env := startServer(t)

	out := mustRun(t, "login", env.addr, "--user", "alice", "--api-url", env.apiURL)
	assert.Contains(t, out, "Logged in to "+env.addr+" as alice")

	mustRun(t, "mkdir", "docs")

	local := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(local, []byte("quarterly numbers"), 0644))
	out = mustRun(t, "put", local, "docs/report.txt")
	assert.Contains(t, out, "Uploaded")

	t.Run("ls json", func(t *testing.T) {
		out := mustRun(t, "ls", "-o", "json")
		var listing struct {
			CurrentDir string                 `json:"current_dir"`
			Tree       protocol.DirectoryInfo `json:"tree"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &listing))
		entry, ok := listing.Tree.Lookup("docs/report.txt").(*protocol.FileInfo)
		require.True(t, ok, "docs/report.txt is listed as a file")
		assert.Equal(t, "alice", entry.Owner)
		assert.EqualValues(t, 17, entry.Size)
	})

	t.Run("tree of a subdirectory", func(t *testing.T) {
		out := mustRun(t, "tree", "docs")
		assert.Contains(t, out, "docs/")
		assert.Contains(t, out, "report.txt  (alice,")
	})

	t.Run("ls of a missing directory", func(t *testing.T) {
		_, err := run(t, "ls", "nowhere")
		assert.ErrorContains(t, err, "no such directory")
	})

	t.Run("get", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "copy.txt")
		mustRun(t, "get", "docs/report.txt", dest)
		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "quarterly numbers", string(data))

		out := mustRun(t, "get", "docs/report.txt", "-")
		assert.Equal(t, "quarterly numbers", out)
	})

	t.Run("get missing file leaves nothing behind", func(t *testing.T) {
		dir := t.TempDir()
		_, err := run(t, "get", "docs/missing.txt", filepath.Join(dir, "missing.txt"))
		require.Error(t, err)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("put refuses overwrite", func(t *testing.T) {
		_, err := run(t, "put", local, "docs/report.txt")
		assert.Error(t, err)
	})

	t.Run("stats", func(t *testing.T) {
		out := mustRun(t, "stats", "-o", "json")
		var report stats.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.GreaterOrEqual(t, report.Summary.Count, 3)
		for _, tr := range report.Transfers {
			assert.Equal(t, "alice", tr.Username)
		}

		out = mustRun(t, "stats", "--all", "-o", "json")
		var global handlers.GlobalStats
		require.NoError(t, json.Unmarshal([]byte(out), &global))
		require.Len(t, global.Users, 1)
		assert.Equal(t, "alice", global.Users[0].Username)
	})

	t.Run("health", func(t *testing.T) {
		out := mustRun(t, "health", "-o", "json")
		var report HealthReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.True(t, report.Ready)
		require.NotNil(t, report.Store)
		assert.Equal(t, "memory", report.Store.Type)
	})

	t.Run("other users cannot delete", func(t *testing.T) {
		_, err := run(t, "rm", "docs/report.txt", "--force", "--user", "bob")
		assert.Error(t, err)
	})

	mustRun(t, "rm", "docs/report.txt", "--force")
	mustRun(t, "rmdir", "docs")

	out = mustRun(t, "ls")
	assert.Contains(t, out, "No files found.")
}

func TestContextCommands(t *testing.T) {
	env := startServer(t)
	mustRun(t, "login", env.addr, "--user", "alice", "--name", "local")

	out := mustRun(t, "context", "list", "-o", "json")
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "local", list[0]["name"])
	assert.Equal(t, true, list[0]["current"])
	assert.Equal(t, true, list[0]["logged_in"])

	mustRun(t, "logout")
	out = mustRun(t, "context", "current", "-o", "json")
	var current map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &current))
	assert.Equal(t, false, current["logged_in"])
	assert.Equal(t, "alice", current["username"])

	// The password comes from $CNTCTL_PASSWORD once the digest is gone.
	mustRun(t, "ls")

	_, err := run(t, "context", "use", "nosuch")
	assert.ErrorContains(t, err, `context "nosuch" not found`)

	mustRun(t, "context", "delete", "local", "--force")
	_, err = run(t, "ls")
	assert.ErrorIs(t, err, credentials.ErrNotLoggedIn)
}

func TestLoginWrongPassword(t *testing.T) {
	env := startServer(t)
	mustRun(t, "login", env.addr, "--user", "alice")

	t.Setenv("CNTCTL_PASSWORD", "wrong")
	_, err := run(t, "login", env.addr, "--user", "alice")
	assert.ErrorContains(t, err, `login as "alice" failed`)
}

func TestHealthNeedsAPIURL(t *testing.T) {
	env := startServer(t)
	mustRun(t, "login", env.addr, "--user", "alice")

	_, err := run(t, "health")
	assert.ErrorContains(t, err, "no API URL configured")
}

func TestServerFlagWithoutLogin(t *testing.T) {
	env := startServer(t)

	out := mustRun(t, "ls", "--server", env.addr, "--user", "carol", "--timeout", "5s")
	assert.Contains(t, out, "No files found.")
}
