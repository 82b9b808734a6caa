package cnt

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cntfs/pkg/protocol"
)

// listen runs the adapter on a free loopback port and returns its address
// and the channel Serve's result arrives on.
func (ts *testServer) listen(t *testing.T) (string, <-chan error) {
	t.Helper()
	served := make(chan error, 1)
	go func() { served <- ts.adapter.Serve(context.Background()) }()
	t.Cleanup(func() { _ = ts.adapter.Stop(context.Background()) })

	addr := ts.adapter.GetListenerAddr()
	require.NotEmpty(t, addr)
	return addr, served
}

func dialTCP(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{
		t:    t,
		conn: conn,
		wire: protocol.NewConn(conn, protocol.DefaultFrameSize, protocol.DirectionRequest),
	}
}

func TestPortZeroBindsFreePort(t *testing.T) {
	ts := newTestServerWith(t, Config{BindAddress: "127.0.0.1"})
	addr, _ := ts.listen(t)

	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	assert.NotEqual(t, "0", port)

	c := dialTCP(t, addr)
	assert.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)
}

func TestStopEndsLiveSessions(t *testing.T) {
	ts := newTestServerWith(t, Config{
		BindAddress:     "127.0.0.1",
		ShutdownTimeout: 5 * time.Second,
		Timeouts:        TimeoutsConfig{Read: 30 * time.Second, Write: 5 * time.Second},
	})
	addr, served := ts.listen(t)

	idle := dialTCP(t, addr)
	require.Equal(t, protocol.CodeOK, idle.connect("alice", aliceHash).Code)

	uploading := dialTCP(t, addr)
	require.Equal(t, protocol.CodeOK, uploading.connect("bob", otherHash).Code)
	require.Equal(t, protocol.CodeOK, uploading.ack(protocol.Upload{Name: "big.mp4", Kind: protocol.KindVideo, Size: 1 << 20}).Code)
	_, err := uploading.conn.Write(make([]byte, 4096))
	require.NoError(t, err)
	require.Equal(t, int32(2), ts.adapter.GetActiveConnections())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, ts.adapter.Stop(ctx))
	assert.Less(t, time.Since(start), 2*time.Second, "sessions blocked on reads must be interrupted")
	assert.Equal(t, int32(0), ts.adapter.GetActiveConnections())

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after stop")
	}

	for _, c := range []*testClient{idle, uploading} {
		require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, _, err := c.wire.Receive()
		assert.Error(t, err)
	}
	ts.expectEmptyRoot(t)

	_, err = net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err, "listener must be closed")
}
