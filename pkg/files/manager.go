// Package files performs the filesystem side of client commands inside a
// sandbox root: staged uploads, owner-checked reads and deletes, and
// subdirectory management. Ownership is recorded in a store.OwnershipStore
// keyed by the slash-separated path relative to the root.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/marmos91/cntfs/internal/logger"
	"github.com/marmos91/cntfs/pkg/protocol"
	"github.com/marmos91/cntfs/pkg/sandbox"
	"github.com/marmos91/cntfs/pkg/store"
)

// SubdirAction selects what ModifySubdirectory does.
type SubdirAction = protocol.SubfolderAction

// Manager runs file operations against one sandbox root. It is safe for
// concurrent use; concurrent operations on the same path are only as atomic
// as the underlying filesystem.
type Manager struct {
	sandbox       *sandbox.Root
	owners        store.OwnershipStore
	maxUploadSize int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxUploadSize rejects uploads larger than n bytes. Zero means no limit.
func WithMaxUploadSize(n int64) Option {
	return func(m *Manager) { m.maxUploadSize = n }
}

// NewManager creates root if needed and returns a Manager for it.
func NewManager(root string, owners store.OwnershipStore, opts ...Option) (*Manager, error) {
	sb, err := sandbox.NewRoot(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}
	if err := os.MkdirAll(sb.Path(), 0755); err != nil {
		return nil, fmt.Errorf("create root %q: %w", sb.Path(), err)
	}

	m := &Manager{sandbox: sb, owners: owners}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Root returns the absolute sandbox root.
func (m *Manager) Root() string { return m.sandbox.Path() }

// Sandbox returns the path resolver bound to the root.
func (m *Manager) Sandbox() *sandbox.Root { return m.sandbox }

// MaxUploadSize returns the upload limit, zero when unlimited.
func (m *Manager) MaxUploadSize() int64 { return m.maxUploadSize }

func (m *Manager) rel(path string) string {
	return m.sandbox.Rel(path)
}

// checkTarget applies the preconditions shared by every operation.
func (m *Manager) checkTarget(path, username string) error {
	if path == "" {
		return NewNotFoundError(path, "path")
	}
	if username == "" {
		return NewNotFoundError(path, "user")
	}
	if !m.sandbox.Contains(path) {
		return NewForbiddenError(path)
	}
	return nil
}

// ownedFile checks that path is an existing regular file owned by username.
func (m *Manager) ownedFile(ctx context.Context, path, username string) (fs.FileInfo, error) {
	if err := m.checkTarget(path, username); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NewNotFoundError(m.rel(path), "file")
	}
	if err != nil {
		return nil, m.logOS(path, "stat", err)
	}
	if !info.Mode().IsRegular() {
		return nil, NewNotFoundError(m.rel(path), "file")
	}

	owned, err := m.owners.IsOwner(ctx, m.rel(path), username)
	if err != nil {
		return nil, NewConflictError(m.rel(path), fmt.Sprintf("ownership lookup: %v", err))
	}
	if !owned {
		return nil, NewUnauthorizedError(m.rel(path), "not the owner")
	}
	return info, nil
}

// ExtractContents opens the file at path for reading by its owner and
// returns its size.
func (m *Manager) ExtractContents(ctx context.Context, path, username string) (io.ReadCloser, int64, error) {
	info, err := m.ownedFile(ctx, path, username)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, m.logOS(path, "open", err)
	}
	return f, info.Size(), nil
}

// DeleteFile removes the file at path and its ownership record.
func (m *Manager) DeleteFile(ctx context.Context, path, username string) error {
	if _, err := m.ownedFile(ctx, path, username); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return m.logOS(path, "remove", err)
	}
	if err := m.owners.RemoveOwner(ctx, m.rel(path)); err != nil {
		logger.Warn("file removed but ownership record remains", logger.Path(m.rel(path)), logger.Err(err))
	}
	return nil
}

// ModifySubdirectory creates (add) or removes (delete) the directory at
// path. Removal is not recursive: a non-empty directory is a Conflict.
func (m *Manager) ModifySubdirectory(path string, action SubdirAction) error {
	if path == "" {
		return NewNotFoundError(path, "path")
	}
	if !m.sandbox.Contains(path) {
		return NewForbiddenError(path)
	}
	if filepath.Clean(path) == m.sandbox.Path() {
		return NewForbiddenError(m.rel(path))
	}

	_, statErr := os.Lstat(path)
	exists := statErr == nil

	switch action {
	case protocol.SubfolderAdd:
		if exists {
			return NewConflictError(m.rel(path), "already exists")
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return m.logOS(path, "mkdir", err)
		}
		return nil

	case protocol.SubfolderDelete:
		if !exists {
			return NewConflictError(m.rel(path), "does not exist")
		}
		info, err := os.Lstat(path)
		if err != nil {
			return m.logOS(path, "stat", err)
		}
		if !info.IsDir() {
			return NewConflictError(m.rel(path), "not a directory")
		}
		if err := os.Remove(path); err != nil {
			return m.logOS(path, "rmdir", err)
		}
		return nil

	default:
		return NewConflictError(m.rel(path), fmt.Sprintf("unknown action %q", action))
	}
}

// IsDir reports whether path is an existing directory inside the root.
func (m *Manager) IsDir(path string) bool {
	if !m.sandbox.Contains(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (m *Manager) logOS(path, op string, err error) *Error {
	fe := fromOS(m.rel(path), op, err)
	logger.Warn("file operation failed",
		logger.Path(m.rel(path)),
		"op", op,
		"code", fe.Code.String(),
		logger.Err(err))
	return fe
}
