// Package client is a Go client for the cntfs file-sharing protocol, used by
// cntctl and the end-to-end tests.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/marmos91/cntfs/pkg/protocol"
	"github.com/marmos91/cntfs/pkg/stats"
)

// DefaultTimeout bounds each call when ctx has no deadline.
const DefaultTimeout = 30 * time.Second

// HashPassword returns the digest clients send instead of the password: the
// lowercase hex SHA-256 of its UTF-8 bytes.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout used when ctx has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithFrameSize sets the control frame size. It must match the server.
func WithFrameSize(n int) Option {
	return func(c *Client) { c.frameSize = n }
}

// Client is one connection to a cntfs server. Calls are serialized; a
// Client may be shared between goroutines but only one call runs at a time.
type Client struct {
	conn      net.Conn
	wire      *protocol.Conn
	timeout   time.Duration
	frameSize int

	mu     sync.Mutex
	closed bool
}

// Dial connects to addr. The session is not authenticated until Connect.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := &Client{timeout: DefaultTimeout, frameSize: protocol.DefaultFrameSize}
	for _, opt := range opts {
		opt(c)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c.conn = conn
	c.wire = protocol.NewConn(conn, c.frameSize, protocol.DirectionRequest)
	return c, nil
}

// New wraps an established connection.
func New(conn net.Conn, opts ...Option) *Client {
	c := &Client{conn: conn, timeout: DefaultTimeout, frameSize: protocol.DefaultFrameSize}
	for _, opt := range opts {
		opt(c)
	}
	c.wire = protocol.NewConn(conn, c.frameSize, protocol.DirectionRequest)
	return c
}

// call runs fn with the connection's deadline bound to ctx. Errors other
// than a server status leave the stream in an unknown state, so the
// connection is dropped.
func (c *Client) call(ctx context.Context, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	err := fn()
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	var se *StatusError
	if err != nil && !errors.As(err, &se) {
		c.closed = true
		_ = c.conn.Close()
	}
	return err
}

func (c *Client) roundTrip(req protocol.Message) (protocol.Message, error) {
	if err := c.wire.Send(req); err != nil {
		return nil, err
	}
	resp, _, err := c.wire.Receive()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Type(), err)
	}
	return resp, nil
}

func (c *Client) expectAck(req protocol.Message) (protocol.Ack, error) {
	resp, err := c.roundTrip(req)
	if err != nil {
		return protocol.Ack{}, err
	}
	ack, ok := resp.(protocol.Ack)
	if !ok {
		return protocol.Ack{}, fmt.Errorf("%s: unexpected %s response", req.Type(), resp.Type())
	}
	return ack, nil
}

func (c *Client) simple(ctx context.Context, req protocol.Message) error {
	return c.call(ctx, func() error {
		ack, err := c.expectAck(req)
		if err != nil {
			return err
		}
		return check(string(req.Type()), ack.Code, ack.Message)
	})
}

// Connect authenticates as username with the digest from HashPassword. The
// first connect for an unknown user registers it. It returns the server's
// greeting.
func (c *Client) Connect(ctx context.Context, username, passwordHash string) (string, error) {
	var greeting string
	err := c.call(ctx, func() error {
		ack, err := c.expectAck(protocol.Connect{Username: username, PasswordHash: passwordHash})
		if err != nil {
			return err
		}
		greeting = ack.Message
		return check("connect", ack.Code, ack.Message)
	})
	return greeting, err
}

// Upload sends size bytes from r as a new file named name in the current
// directory.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader, size int64) error {
	return c.call(ctx, func() error {
		ack, err := c.expectAck(protocol.Upload{Name: name, Kind: protocol.KindFromName(name), Size: size})
		if err != nil {
			return err
		}
		if err := check("upload", ack.Code, ack.Message); err != nil {
			return err
		}
		if err := c.wire.WritePayload(r, size); err != nil {
			return err
		}
		resp, _, err := c.wire.Receive()
		if err != nil {
			return fmt.Errorf("upload: %w", err)
		}
		final, ok := resp.(protocol.Ack)
		if !ok {
			return fmt.Errorf("upload: unexpected %s response", resp.Type())
		}
		return check("upload", final.Code, final.Message)
	})
}

// Download copies the file at path into w and returns its kind and size.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (protocol.FileKind, int64, error) {
	var resp protocol.DownloadResponse
	err := c.call(ctx, func() error {
		m, err := c.roundTrip(protocol.DownloadRequest{Path: path})
		if err != nil {
			return err
		}
		var ok bool
		if resp, ok = m.(protocol.DownloadResponse); !ok {
			return fmt.Errorf("download: unexpected %s response", m.Type())
		}
		if err := check("download", resp.Status, resp.Message); err != nil {
			return err
		}
		return c.receivePayload(w, resp.Size)
	})
	if err != nil {
		return "", 0, err
	}
	return resp.Kind, resp.Size, nil
}

// receivePayload acks an announced payload and reads it into w.
func (c *Client) receivePayload(w io.Writer, size int64) error {
	if err := c.wire.Send(protocol.Ack{Code: protocol.CodeOK, Message: "OK"}); err != nil {
		return err
	}
	return c.wire.ReadPayload(w, size)
}

// Delete removes the file at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.simple(ctx, protocol.Delete{Path: path})
}

// Move changes the working directory.
func (c *Client) Move(ctx context.Context, path string) error {
	return c.simple(ctx, protocol.Move{Path: path})
}

// Mkdir creates the directory at path and any missing parents.
func (c *Client) Mkdir(ctx context.Context, path string) error {
	return c.simple(ctx, protocol.Subfolder{Path: path, Action: protocol.SubfolderAdd})
}

// Rmdir removes the empty directory at path.
func (c *Client) Rmdir(ctx context.Context, path string) error {
	return c.simple(ctx, protocol.Subfolder{Path: path, Action: protocol.SubfolderDelete})
}

// List returns the sandbox tree and the working directory relative to its
// root.
func (c *Client) List(ctx context.Context) (*protocol.DirectoryInfo, string, error) {
	var (
		tree protocol.DirectoryInfo
		cwd  string
	)
	err := c.call(ctx, func() error {
		m, err := c.roundTrip(protocol.DirRequest{})
		if err != nil {
			return err
		}
		resp, ok := m.(protocol.DirResponse)
		if !ok {
			return fmt.Errorf("dir: unexpected %s response", m.Type())
		}
		if err := check("dir", resp.Code, resp.Message); err != nil {
			return err
		}
		cwd = resp.CurrentDir

		var buf bytes.Buffer
		if err := c.receivePayload(&buf, resp.Size); err != nil {
			return err
		}
		return json.Unmarshal(buf.Bytes(), &tree)
	})
	if err != nil {
		return nil, "", err
	}
	return &tree, cwd, nil
}

// Stats returns the caller's transfer history and summary.
func (c *Client) Stats(ctx context.Context) (stats.Report, error) {
	var report stats.Report
	err := c.call(ctx, func() error {
		m, err := c.roundTrip(protocol.StatsRequest{})
		if err != nil {
			return err
		}
		resp, ok := m.(protocol.StatsResponse)
		if !ok {
			return fmt.Errorf("stats: unexpected %s response", m.Type())
		}
		if err := check("stats", resp.Code, resp.Message); err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := c.receivePayload(&buf, resp.Size); err != nil {
			return err
		}
		return json.Unmarshal(buf.Bytes(), &report)
	})
	return report, err
}

// Close says goodbye and closes the connection. It is safe to call more
// than once.
func (c *Client) Close(ctx context.Context) error {
	err := c.simple(ctx, protocol.Close{})
	if errors.Is(err, ErrClosed) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return err
	}
	c.closed = true
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
