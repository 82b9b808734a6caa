// Package badger is a store.Store on an embedded BadgerDB key-value store.
//
// Key namespace:
//
//	Data type     Prefix   Key format        Value
//	=====================================================
//	Users         "u:"     u:<username>      userValue (JSON)
//	File owners   "o:"     o:<rel path>      username (bytes)
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/cntfs/pkg/store"
)

const (
	prefixUser  = "u:"
	prefixOwner = "o:"

	// conflicting concurrent writers are retried this many times
	maxTxnRetries = 10
)

func keyUser(username string) []byte { return []byte(prefixUser + username) }
func keyOwner(path string) []byte    { return []byte(prefixOwner + path) }

type userValue struct {
	Verifier  string    `json:"verifier"`
	CreatedAt time.Time `json:"created_at"`
}

// Config configures the Badger store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory.
	InMemory bool
}

// Store implements store.Store using BadgerDB.
type Store struct {
	db *badgerdb.DB
}

// New opens (or creates) the database described by cfg.
func New(cfg Config) (*Store, error) {
	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger path is required")
		}
		opts = badgerdb.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (s *Store) update(fn func(txn *badgerdb.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
	}
	return err
}

// ============================================================================
// Credentials
// ============================================================================

func (s *Store) GetCredentials(ctx context.Context, username string) (*store.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var creds *store.Credentials
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyUser(username))
		if err == badgerdb.ErrKeyNotFound {
			return store.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			c, err := decodeUser(username, val)
			creds = c
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return creds, nil
}

func (s *Store) PutCredentials(ctx context.Context, creds *store.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v := userValue{Verifier: creds.Verifier, CreatedAt: creds.CreatedAt}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	return s.update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyUser(creds.Username))
		if err == nil {
			return store.ErrDuplicateUser
		}
		if err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Set(keyUser(creds.Username), data)
	})
}

func (s *Store) ListUsers(ctx context.Context) ([]*store.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := []*store.Credentials{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixUser)

		it := txn.NewIterator(opts)
		defer it.Close()

		// keys iterate in byte order, so the result is sorted by username
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			username := strings.TrimPrefix(string(item.Key()), prefixUser)
			err := item.Value(func(val []byte) error {
				c, err := decodeUser(username, val)
				if err != nil {
					return err
				}
				result = append(result, c)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyUser(username)); err != nil {
			if err == badgerdb.ErrKeyNotFound {
				return store.ErrUserNotFound
			}
			return err
		}
		return txn.Delete(keyUser(username))
	})
}

func decodeUser(username string, val []byte) (*store.Credentials, error) {
	var v userValue
	if err := json.Unmarshal(val, &v); err != nil {
		return nil, fmt.Errorf("failed to decode user %q: %w", username, err)
	}
	return &store.Credentials{Username: username, Verifier: v.Verifier, CreatedAt: v.CreatedAt}, nil
}

// ============================================================================
// Ownership
// ============================================================================

func (s *Store) IsOwner(ctx context.Context, path, username string) (bool, error) {
	owner, err := s.Owner(ctx, path)
	if errors.Is(err, store.ErrOwnerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == username, nil
}

func (s *Store) SetOwner(ctx context.Context, path, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyOwner(path), []byte(username))
	})
}

func (s *Store) RemoveOwner(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(txn *badgerdb.Txn) error {
		return txn.Delete(keyOwner(path))
	})
}

func (s *Store) Owner(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var owner string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyOwner(path))
		if err == badgerdb.ErrKeyNotFound {
			return store.ErrOwnerNotFound
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		owner = string(val)
		return err
	})
	if err != nil {
		return "", err
	}
	return owner, nil
}

// ============================================================================
// Health & lifecycle
// ============================================================================

// Healthcheck verifies the database can serve a read transaction.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("healthcheck failed: database is closed")
	}
	if err := s.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ store.Store = (*Store)(nil)
