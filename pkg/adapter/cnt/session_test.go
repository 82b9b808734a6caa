package cnt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/cntfs/pkg/auth"
	"github.com/marmos91/cntfs/pkg/files"
	"github.com/marmos91/cntfs/pkg/protocol"
	"github.com/marmos91/cntfs/pkg/stats"
	"github.com/marmos91/cntfs/pkg/store/memory"
)

const (
	aliceHash = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	otherHash = "486ea46224d1bb4fb680f34f7c9ad96a8f24ec88be73ea8e5a6c65260e9cb8a7"
)

type testServer struct {
	adapter *Adapter
	root    string
	history *stats.History
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, Config{Timeouts: TimeoutsConfig{Read: 5 * time.Second, Write: 5 * time.Second}})
}

func newTestServerWith(t *testing.T, cfg Config) *testServer {
	t.Helper()
	s := memory.New()
	fm, err := files.NewManager(t.TempDir(), s)
	require.NoError(t, err)
	history, err := stats.OpenHistory("", 0)
	require.NoError(t, err)

	a, err := New(cfg, Dependencies{
		Files: fm,
		Auth:  auth.New(s, auth.WithCost(bcrypt.MinCost)),
		Stats: history,
	}, nil)
	require.NoError(t, err)
	return &testServer{adapter: a, root: fm.Root(), history: history}
}

// testClient drives one session over an in-memory pipe.
type testClient struct {
	t    *testing.T
	conn net.Conn
	wire *protocol.Conn
	done chan struct{}
	sess *Session
}

func (ts *testServer) dial(t *testing.T) *testClient {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	sess := newSession(ts.adapter, serverSide, "test-session")
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(done)
		sess.Serve(ctx)
	}()
	c := &testClient{
		t:    t,
		conn: clientSide,
		wire: protocol.NewConn(clientSide, protocol.DefaultFrameSize, protocol.DirectionRequest),
		done: done,
		sess: sess,
	}
	t.Cleanup(func() {
		cancel()
		_ = clientSide.Close()
		<-done
	})
	return c
}

func (c *testClient) send(m protocol.Message) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	require.NoError(c.t, c.wire.Send(m))
}

func (c *testClient) recv() protocol.Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	m, dir, err := c.wire.Receive()
	require.NoError(c.t, err)
	assert.Equal(c.t, protocol.DirectionResponse, dir)
	return m
}

func (c *testClient) ack(m protocol.Message) protocol.Ack {
	c.t.Helper()
	c.send(m)
	a, ok := c.recv().(protocol.Ack)
	require.True(c.t, ok, "expected an ack")
	return a
}

func (c *testClient) connect(user, hash string) protocol.Ack {
	c.t.Helper()
	return c.ack(protocol.Connect{Username: user, PasswordHash: hash})
}

func (c *testClient) upload(name string, body []byte) protocol.Ack {
	c.t.Helper()
	first := c.ack(protocol.Upload{Name: name, Kind: protocol.KindFromName(name), Size: int64(len(body))})
	if first.Code != protocol.CodeOK {
		return first
	}
	require.NoError(c.t, c.wire.WritePayload(bytes.NewReader(body), int64(len(body))))
	final, ok := c.recv().(protocol.Ack)
	require.True(c.t, ok)
	return final
}

func (c *testClient) download(path string) (protocol.DownloadResponse, []byte) {
	c.t.Helper()
	c.send(protocol.DownloadRequest{Path: path})
	resp, ok := c.recv().(protocol.DownloadResponse)
	require.True(c.t, ok)
	if resp.Status != protocol.CodeOK {
		return resp, nil
	}
	c.send(protocol.Ack{Code: protocol.CodeOK, Message: "OK"})
	var buf bytes.Buffer
	require.NoError(c.t, c.wire.ReadPayload(&buf, resp.Size))
	return resp, buf.Bytes()
}

// expectClosed asserts the server hung up without sending anything.
func (c *testClient) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := c.wire.Receive()
	require.Error(c.t, err)
	assert.ErrorIs(c.t, err, io.EOF)
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		c.t.Fatal("session did not exit")
	}
}

func TestConnectRegistersThenWelcomesBack(t *testing.T) {
	ts := newTestServer(t)

	c := ts.dial(t)
	a := c.connect("alice", aliceHash)
	assert.Equal(t, protocol.CodeOK, a.Code)
	assert.Equal(t, "welcome new user", a.Message)
	assert.Equal(t, "authenticated", c.sess.State())
	assert.Equal(t, protocol.CodeOK, c.ack(protocol.Close{}).Code)
	c.expectClosed()

	c = ts.dial(t)
	a = c.connect("alice", aliceHash)
	assert.Equal(t, protocol.CodeOK, a.Code)
	assert.Equal(t, "welcome back", a.Message)
}

func TestWrongPasswordIsRejectedAndClosed(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)
	c.ack(protocol.Close{})

	c = ts.dial(t)
	a := c.connect("alice", otherHash)
	assert.Equal(t, protocol.CodeUnauthorized, a.Code)
	c.expectClosed()
}

func TestLongHashRegistersAndReconnects(t *testing.T) {
	ts := newTestServer(t)
	hash := string(bytes.Repeat([]byte("b"), 128))

	c := ts.dial(t)
	a := c.connect("carol", hash)
	require.Equal(t, protocol.CodeOK, a.Code, a.Message)
	assert.Equal(t, "welcome new user", a.Message)
	c.ack(protocol.Close{})
	c.expectClosed()

	c = ts.dial(t)
	a = c.connect("carol", hash)
	require.Equal(t, protocol.CodeOK, a.Code, a.Message)
	assert.Equal(t, "welcome back", a.Message)
}

func TestRequestBeforeConnectDropsConnection(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	c.send(protocol.DirRequest{})
	c.expectClosed()
}

func TestSecondConnectIsTeapot(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)

	a := c.connect("alice", aliceHash)
	assert.Equal(t, protocol.CodeAlreadyConnected, a.Code)

	// the session is still usable
	assert.Equal(t, protocol.CodeOK, c.ack(protocol.Move{Path: "."}).Code)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)

	require.Equal(t, protocol.CodeOK, c.ack(protocol.Subfolder{Path: "alice", Action: protocol.SubfolderAdd}).Code)
	require.Equal(t, protocol.CodeOK, c.ack(protocol.Move{Path: "alice"}).Code)

	a := c.upload("report.txt", []byte("hello"))
	require.Equal(t, protocol.CodeOK, a.Code, a.Message)

	data, err := os.ReadFile(filepath.Join(ts.root, "alice", "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	resp, body := c.download("report.txt")
	require.Equal(t, protocol.CodeOK, resp.Status)
	assert.Equal(t, protocol.KindText, resp.Kind)
	assert.Equal(t, int64(5), resp.Size)
	assert.Equal(t, "hello", string(body))

	// the session stays aligned after a payload
	assert.Equal(t, protocol.CodeOK, c.ack(protocol.Move{Path: ".."}).Code)

	transfers := ts.history.ForUser("alice")
	require.Len(t, transfers, 2)
	assert.Equal(t, stats.Upload, transfers[0].Direction)
	assert.Equal(t, stats.Download, transfers[1].Direction)
	assert.Equal(t, int64(5), transfers[1].Size)
}

func TestUploadExistingFileConflicts(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)
	require.Equal(t, protocol.CodeOK, c.upload("a.txt", []byte("one")).Code)

	a := c.upload("a.txt", []byte("two"))
	assert.Equal(t, protocol.CodeConflict, a.Code)

	data, err := os.ReadFile(filepath.Join(ts.root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestDownloadOfOtherUsersFileIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t)
	require.Equal(t, protocol.CodeOK, alice.connect("alice", aliceHash).Code)
	require.Equal(t, protocol.CodeOK, alice.upload("secret.txt", []byte("s3cr3t")).Code)

	bob := ts.dial(t)
	require.Equal(t, protocol.CodeOK, bob.connect("bob", otherHash).Code)
	resp, body := bob.download("secret.txt")
	assert.Equal(t, protocol.CodeUnauthorized, resp.Status)
	assert.Empty(t, resp.Kind)
	assert.Nil(t, body)

	assert.Equal(t, protocol.CodeUnauthorized, bob.ack(protocol.Delete{Path: "secret.txt"}).Code)
	assert.FileExists(t, filepath.Join(ts.root, "secret.txt"))
}

func TestDownloadDeclinedByClient(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)
	require.Equal(t, protocol.CodeOK, c.upload("a.txt", []byte("abc")).Code)

	c.send(protocol.DownloadRequest{Path: "a.txt"})
	resp, ok := c.recv().(protocol.DownloadResponse)
	require.True(t, ok)
	require.Equal(t, protocol.CodeOK, resp.Status)
	c.send(protocol.Ack{Code: protocol.CodeConflict, Message: "no space"})

	// no payload follows; the next control frame is the move reply
	assert.Equal(t, protocol.CodeOK, c.ack(protocol.Move{Path: "."}).Code)
	assert.Len(t, ts.history.ForUser("alice"), 1)
}

func TestDeleteMissingFile(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)

	assert.Equal(t, protocol.CodeNotFound, c.ack(protocol.Delete{Path: "nope.txt"}).Code)
}

func TestDeleteOwnFile(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)
	require.Equal(t, protocol.CodeOK, c.upload("a.txt", []byte("abc")).Code)

	assert.Equal(t, protocol.CodeOK, c.ack(protocol.Delete{Path: "a.txt"}).Code)
	assert.NoFileExists(t, filepath.Join(ts.root, "a.txt"))
}

func TestSubfolderLifecycle(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)

	add := protocol.Subfolder{Path: "docs", Action: protocol.SubfolderAdd}
	del := protocol.Subfolder{Path: "docs", Action: protocol.SubfolderDelete}

	assert.Equal(t, protocol.CodeOK, c.ack(add).Code)
	assert.Equal(t, protocol.CodeConflict, c.ack(add).Code)
	assert.Equal(t, protocol.CodeOK, c.ack(del).Code)
	assert.Equal(t, protocol.CodeConflict, c.ack(del).Code)
}

func TestMoveOutsideSandboxIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)

	a := c.ack(protocol.Move{Path: "../../etc"})
	assert.Equal(t, protocol.CodeForbidden, a.Code)
	assert.Equal(t, "invalid path", a.Message)

	c.send(protocol.DirRequest{})
	resp, ok := c.recv().(protocol.DirResponse)
	require.True(t, ok)
	assert.Equal(t, ".", resp.CurrentDir)
	c.send(protocol.Ack{Code: protocol.CodeConflict})
}

func TestMoveToMissingDirectory(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)

	assert.Equal(t, protocol.CodeNotFound, c.ack(protocol.Move{Path: "ghost"}).Code)
	assert.Equal(t, protocol.CodeForbidden, c.ack(protocol.Move{Path: "/tmp"}).Code)
}

func TestDirListsTree(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)
	require.Equal(t, protocol.CodeOK, c.ack(protocol.Subfolder{Path: "music", Action: protocol.SubfolderAdd}).Code)
	require.Equal(t, protocol.CodeOK, c.ack(protocol.Move{Path: "music"}).Code)
	require.Equal(t, protocol.CodeOK, c.upload("song.mp3", []byte("la la")).Code)

	c.send(protocol.DirRequest{})
	resp, ok := c.recv().(protocol.DirResponse)
	require.True(t, ok)
	require.Equal(t, protocol.CodeOK, resp.Code)
	assert.Equal(t, "music", resp.CurrentDir)

	c.send(protocol.Ack{Code: protocol.CodeOK})
	var buf bytes.Buffer
	require.NoError(t, c.wire.ReadPayload(&buf, resp.Size))

	var tree protocol.DirectoryInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &tree))

	found := map[string]protocol.Entry{}
	tree.Walk(func(rel string, e protocol.Entry) { found[rel] = e })
	require.Contains(t, found, "music/song.mp3")
	song, ok := found["music/song.mp3"].(*protocol.FileInfo)
	require.True(t, ok)
	assert.Equal(t, "alice", song.Owner)
	assert.Equal(t, protocol.KindAudio, song.Kind)
	assert.EqualValues(t, 5, song.Size)
}

func TestStatsReportsOwnTransfers(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)
	require.Equal(t, protocol.CodeOK, c.upload("a.txt", []byte("12345")).Code)
	ts.history.RecordTransfer(stats.NewTransfer("bob", stats.Upload, 99, time.Now(), time.Now(), 0))

	c.send(protocol.StatsRequest{})
	resp, ok := c.recv().(protocol.StatsResponse)
	require.True(t, ok)
	require.Equal(t, protocol.CodeOK, resp.Code)

	c.send(protocol.Ack{Code: protocol.CodeOK})
	var buf bytes.Buffer
	require.NoError(t, c.wire.ReadPayload(&buf, resp.Size))

	var report stats.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	require.Len(t, report.Transfers, 1)
	assert.Equal(t, "alice", report.Transfers[0].Username)
	assert.Equal(t, int64(5), report.Summary.TotalBytes)
}

func TestServerResponseFromClientIsProtocolError(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)

	// a client-side Conn refuses to send responses, so write the frame raw
	require.NoError(t, protocol.WriteMessage(c.conn, protocol.StatsResponse{Code: 200}, protocol.DirectionResponse, protocol.DefaultFrameSize))
	c.expectClosed()
}

func TestMalformedFrameClosesSession(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)

	frame := make([]byte, protocol.DefaultFrameSize)
	copy(frame, `{"type":"upload","direction":"request","data":{"name":"x"}}`)
	_, err := c.conn.Write(frame)
	require.NoError(t, err)
	c.expectClosed()
}

func TestCloseSession(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)

	a := c.ack(protocol.Close{})
	assert.Equal(t, "goodbye", a.Message)
	c.expectClosed()
	assert.Equal(t, "closed", c.sess.State())
}

// expectEmptyRoot asserts no file, staged or final, was left in the sandbox.
func (ts *testServer) expectEmptyRoot(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(ts.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadCutShortEndsSession(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)
	require.Equal(t, protocol.CodeOK, c.ack(protocol.Upload{Name: "a.txt", Kind: protocol.KindText, Size: 10}).Code)

	require.NoError(t, c.conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	_, err := c.conn.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, c.conn.Close())

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not exit")
	}
	assert.Equal(t, "closed", c.sess.State())
	ts.expectEmptyRoot(t)
	assert.Empty(t, ts.history.ForUser("alice"))
}

func TestUploadStallDropsOnlyThatSession(t *testing.T) {
	ts := newTestServerWith(t, Config{Timeouts: TimeoutsConfig{Read: 200 * time.Millisecond, Write: 5 * time.Second}})
	stalled := ts.dial(t)
	require.Equal(t, protocol.CodeOK, stalled.connect("alice", aliceHash).Code)
	require.Equal(t, protocol.CodeOK, stalled.ack(protocol.Upload{Name: "a.txt", Kind: protocol.KindText, Size: 10}).Code)

	require.NoError(t, stalled.conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	_, err := stalled.conn.Write([]byte("abc"))
	require.NoError(t, err)

	other := ts.dial(t)
	require.Equal(t, protocol.CodeOK, other.connect("bob", otherHash).Code)
	assert.Equal(t, protocol.CodeOK, other.ack(protocol.Move{Path: "."}).Code)

	stalled.expectClosed()
	ts.expectEmptyRoot(t)
	assert.Empty(t, ts.history.ForUser("alice"))

	assert.Equal(t, protocol.CodeOK, other.ack(protocol.Subfolder{Path: "docs", Action: protocol.SubfolderAdd}).Code)
}

func TestMoveRejectsDirectoryTooLongToList(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	require.Equal(t, protocol.CodeOK, c.connect("alice", aliceHash).Code)

	var parts []string
	for _, ch := range "abcde" {
		parts = append(parts, strings.Repeat(string(ch), 200))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(append([]string{ts.root}, parts...)...), 0755))

	near := strings.Join(parts[:3], "/")
	require.Equal(t, protocol.CodeOK, c.ack(protocol.Move{Path: near}).Code)

	a := c.ack(protocol.Move{Path: strings.Join(parts[3:], "/")})
	assert.Equal(t, protocol.CodeConflict, a.Code)
	assert.Equal(t, "path too long", a.Message)

	// the session stays where it was and can still list
	c.send(protocol.DirRequest{})
	resp, ok := c.recv().(protocol.DirResponse)
	require.True(t, ok)
	assert.Equal(t, protocol.CodeOK, resp.Code)
	assert.Equal(t, near, resp.CurrentDir)
	c.send(protocol.Ack{Code: protocol.CodeConflict})
	assert.Equal(t, protocol.CodeOK, c.ack(protocol.Move{Path: ".."}).Code)
}
