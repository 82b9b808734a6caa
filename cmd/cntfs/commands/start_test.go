package commands

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cntfs/pkg/apiclient"
	"github.com/marmos91/cntfs/pkg/client"
	"github.com/marmos91/cntfs/pkg/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = "ERROR"
	cfg.Server.BindAddress = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.Root = filepath.Join(dir, "data")
	cfg.Store.Type = config.StoreMemory
	cfg.Stats.HistoryPath = filepath.Join(dir, "transfers.json")
	cfg.API.BindAddress = "127.0.0.1"
	cfg.API.Port = freePort(t)
	cfg.ShutdownTimeout = 2 * time.Second
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func TestBuildServerServesProtocolAndAPI(t *testing.T) {
	cfg := testConfig(t)
	srv, err := buildServer(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Server.Port))
	var c *client.Client
	require.Eventually(t, func() bool {
		c, err = client.Dial(context.Background(), addr, client.WithTimeout(5*time.Second))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	_, err = c.Connect(ctx, "alice", client.HashPassword("pw"))
	require.NoError(t, err)
	require.NoError(t, c.Upload(ctx, "hello.txt", strings.NewReader("hello"), 5))

	var buf bytes.Buffer
	_, _, err = c.Download(ctx, "hello.txt", &buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())
	require.NoError(t, c.Close(ctx))

	api := apiclient.New("http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.API.Port)))
	require.Eventually(t, func() bool {
		_, err := api.Health(context.Background())
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	ready, err := api.Ready(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, ready.Type)

	global, err := api.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, global.Summary.Count)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = os.Stat(cfg.Stats.HistoryPath)
	assert.NoError(t, err, "transfer history is saved on shutdown")
}

func TestBuildServerRejectsBadStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Type = "nosuch"

	_, err := buildServer(cfg)
	assert.ErrorContains(t, err, "unknown store type")
}
