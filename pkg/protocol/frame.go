package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultFrameSize is the size of a control frame when none is configured.
const DefaultFrameSize = 1024

// WriteMessage encodes m in direction dir and writes it as one frame of
// exactly frameSize bytes.
func WriteMessage(w io.Writer, m Message, dir Direction, frameSize int) error {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	payload, err := Encode(m, dir)
	if err != nil {
		return err
	}
	if len(payload) > frameSize {
		return fmt.Errorf("%s is %d bytes, frame is %d: %w", m.Type(), len(payload), frameSize, ErrFrameTooLarge)
	}

	frame := make([]byte, frameSize)
	copy(frame, payload)
	_, err = w.Write(frame)
	return err
}

// Fits reports whether m, sent in direction dir, encodes into one frame of
// frameSize bytes.
func Fits(m Message, dir Direction, frameSize int) bool {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	payload, err := Encode(m, dir)
	return err == nil && len(payload) <= frameSize
}

// ReadMessage reads exactly one frame and decodes it. A peer that closed
// cleanly between frames yields io.EOF; a frame cut short yields an error
// wrapping io.ErrUnexpectedEOF.
func ReadMessage(r io.Reader, frameSize int) (Message, Direction, error) {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	frame := make([]byte, frameSize)
	n, err := io.ReadFull(r, frame)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, "", io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, "", fmt.Errorf("read frame: got %d of %d bytes: %w", n, frameSize, io.ErrUnexpectedEOF)
		}
		return nil, "", fmt.Errorf("read frame: %w", err)
	}

	payload := bytes.TrimRight(frame, "\x00")
	if len(payload) == 0 {
		return nil, "", &DecodeError{Reason: "empty frame"}
	}
	return DecodeWithDirection(payload)
}

// Conn frames messages over a byte stream. Side is the direction this end
// sends in: servers send responses, clients send requests. Conn does no
// locking; callers serialize access.
type Conn struct {
	rw        io.ReadWriter
	frameSize int
	side      Direction
}

// NewConn wraps rw. A non-positive frameSize selects DefaultFrameSize.
func NewConn(rw io.ReadWriter, frameSize int, side Direction) *Conn {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	return &Conn{rw: rw, frameSize: frameSize, side: side}
}

// FrameSize returns the frame size in use.
func (c *Conn) FrameSize() int { return c.frameSize }

// Send writes m as one frame in this end's direction.
func (c *Conn) Send(m Message) error {
	return WriteMessage(c.rw, m, c.side, c.frameSize)
}

// Receive reads one frame and returns the message and the direction the peer
// sent it in.
func (c *Conn) Receive() (Message, Direction, error) {
	return ReadMessage(c.rw, c.frameSize)
}

// ReadPayload copies exactly size raw bytes from the stream into w. Running
// out of input before size bytes is io.ErrUnexpectedEOF.
func (c *Conn) ReadPayload(w io.Writer, size int64) error {
	n, err := io.CopyN(w, c.rw, size)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("read payload: got %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("read payload: %w", err)
	}
	return nil
}

// WritePayload copies exactly size raw bytes from r to the stream.
func (c *Conn) WritePayload(r io.Reader, size int64) error {
	n, err := io.CopyN(c.rw, r, size)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("write payload: source ended after %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}
