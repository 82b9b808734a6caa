// Package store defines the persistence interfaces of the server: user
// credentials and file ownership. Backends live in subpackages (memory,
// database, badger) and are all safe for concurrent use.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrOwnerNotFound = errors.New("ownership record not found")
	ErrDuplicateUser = errors.New("user already exists")
)

// Credentials is a stored user record. Verifier is the server-side digest of
// the client password hash; the client hash itself is never persisted.
type Credentials struct {
	Username  string
	Verifier  string
	CreatedAt time.Time
}

// CredentialStore persists user credentials.
type CredentialStore interface {
	// GetCredentials returns ErrUserNotFound for unknown users.
	GetCredentials(ctx context.Context, username string) (*Credentials, error)

	// PutCredentials creates a user. It returns ErrDuplicateUser if the
	// username is taken, so concurrent first connects register exactly once.
	PutCredentials(ctx context.Context, creds *Credentials) error

	// ListUsers returns all users sorted by username.
	ListUsers(ctx context.Context) ([]*Credentials, error)

	// DeleteUser returns ErrUserNotFound for unknown users.
	DeleteUser(ctx context.Context, username string) error
}

// OwnershipStore maps sandbox-relative file paths to the user that
// uploaded them.
type OwnershipStore interface {
	IsOwner(ctx context.Context, path, username string) (bool, error)

	// SetOwner creates or replaces the record for path.
	SetOwner(ctx context.Context, path, username string) error

	// RemoveOwner is a no-op for paths without a record.
	RemoveOwner(ctx context.Context, path string) error

	// Owner returns ErrOwnerNotFound for paths without a record.
	Owner(ctx context.Context, path string) (string, error)
}

// Store is a complete backend.
type Store interface {
	CredentialStore
	OwnershipStore

	// Healthcheck verifies the backend is reachable.
	Healthcheck(ctx context.Context) error

	Close() error
}
