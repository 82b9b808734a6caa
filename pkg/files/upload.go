package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/marmos91/cntfs/internal/logger"
)

// tempPrefix marks staged uploads. BuildTree hides them.
const tempPrefix = ".cntfs-upload-"

// UploadHandle is an accepted upload waiting for its payload. It binds the
// destination path to its future owner and can be committed once.
type UploadHandle struct {
	Path  string
	Owner string
	Size  int64

	used atomic.Bool
}

// RequestUpload validates an upload of size bytes to path by username and
// creates the parent directories. Nothing is written to path until
// CommitUpload.
func (m *Manager) RequestUpload(ctx context.Context, path string, size int64, username string) (*UploadHandle, error) {
	if err := m.checkTarget(path, username); err != nil {
		return nil, err
	}
	if filepath.Clean(path) == m.sandbox.Path() {
		return nil, NewConflictError(m.rel(path), "is the root directory")
	}

	if _, err := os.Lstat(path); err == nil {
		return nil, NewConflictError(m.rel(path), "file already exists")
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, m.logOS(path, "stat", err)
	}

	if size <= 0 {
		return nil, NewConflictError(m.rel(path), "empty upload")
	}
	if m.maxUploadSize > 0 && size > m.maxUploadSize {
		return nil, NewConflictError(m.rel(path), fmt.Sprintf("upload of %d bytes exceeds limit of %d", size, m.maxUploadSize))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, m.logOS(path, "mkdir", err)
	}

	return &UploadHandle{Path: path, Owner: username, Size: size}, nil
}

// CommitUpload writes exactly h.Size bytes from r to a temporary file next
// to the destination, renames it into place and records ownership. It
// reports false on any failure, in which case nothing is left behind. The
// caller is responsible for any bytes of r left unread on failure.
func (m *Manager) CommitUpload(ctx context.Context, h *UploadHandle, r io.Reader) bool {
	if h == nil || !h.used.CompareAndSwap(false, true) {
		return false
	}
	rel := m.rel(h.Path)

	tmp, err := os.CreateTemp(filepath.Dir(h.Path), tempPrefix+"*")
	if err != nil {
		m.logOS(h.Path, "create temp", err)
		return false
	}
	tmpName := tmp.Name()
	fail := func(op string, err error) bool {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		m.logOS(h.Path, op, err)
		return false
	}

	if _, err := io.CopyN(tmp, r, h.Size); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		m.logOS(h.Path, "close", err)
		return false
	}

	// a file may have appeared at the destination since RequestUpload
	if _, err := os.Lstat(h.Path); err == nil {
		_ = os.Remove(tmpName)
		logger.Warn("upload destination appeared during transfer", logger.Path(rel))
		return false
	}
	if err := os.Rename(tmpName, h.Path); err != nil {
		_ = os.Remove(tmpName)
		m.logOS(h.Path, "rename", err)
		return false
	}

	if err := m.owners.SetOwner(ctx, rel, h.Owner); err != nil {
		_ = os.Remove(h.Path)
		logger.Warn("upload rolled back: ownership not recorded", logger.Path(rel), logger.Err(err))
		return false
	}
	return true
}
