// Package sandbox confines client-supplied paths to a server-side root.
//
// All paths handled here are OS paths. The root and the current directory
// are expected to be absolute and clean; client input is relative and is
// resolved against the current directory, never against the process
// working directory.
package sandbox

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrAbsolutePath is returned when a client sends an absolute path.
	ErrAbsolutePath = errors.New("absolute paths are not allowed")

	// ErrOutsideRoot is returned when a path resolves outside the root.
	ErrOutsideRoot = errors.New("path escapes the sandbox root")
)

// Resolve joins raw onto currentDir and cleans the result. It fails with
// ErrAbsolutePath when raw is absolute and with ErrOutsideRoot when the
// cleaned path is not root or below it.
func Resolve(raw, currentDir, root string) (string, error) {
	if filepath.IsAbs(raw) || strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, `\`) {
		return "", ErrAbsolutePath
	}
	resolved := filepath.Join(currentDir, filepath.FromSlash(raw))
	if !IsValid(resolved, root) {
		return "", ErrOutsideRoot
	}
	return resolved, nil
}

// IsValid reports whether path, once cleaned, is root itself or lies below
// it. The comparison is component-wise: /srv/data-other is not below
// /srv/data.
func IsValid(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}

	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// MakeRelative returns abs relative to root using forward slashes, or "."
// for root itself. Paths outside root are returned cleaned but unchanged.
func MakeRelative(abs, root string) string {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(abs))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(filepath.Clean(abs))
	}
	return filepath.ToSlash(rel)
}

// Root is a sandbox bound to one directory.
type Root struct {
	path string
}

// NewRoot returns a Root for dir, made absolute against the process working
// directory.
func NewRoot(dir string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Root{path: abs}, nil
}

// Path returns the absolute root directory.
func (r *Root) Path() string { return r.path }

// Resolve is the package-level Resolve bound to r.
func (r *Root) Resolve(raw, currentDir string) (string, error) {
	return Resolve(raw, currentDir, r.path)
}

// Contains reports whether path is r or lies below it.
func (r *Root) Contains(path string) bool { return IsValid(path, r.path) }

// Rel is MakeRelative bound to r.
func (r *Root) Rel(abs string) string { return MakeRelative(abs, r.path) }
