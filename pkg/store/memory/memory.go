// Package memory is a Store kept entirely in process memory. Nothing
// survives a restart; it backs tests and throwaway servers.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/cntfs/pkg/store"
)

// Store is an in-memory store.Store.
type Store struct {
	mu     sync.RWMutex
	users  map[string]store.Credentials
	owners map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:  make(map[string]store.Credentials),
		owners: make(map[string]string),
	}
}

func (s *Store) GetCredentials(ctx context.Context, username string) (*store.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.users[username]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &c, nil
}

func (s *Store) PutCredentials(ctx context.Context, creds *store.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[creds.Username]; exists {
		return store.ErrDuplicateUser
	}
	c := *creds
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.users[c.Username] = c
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*store.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Credentials, 0, len(s.users))
	for _, c := range s.users {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return store.ErrUserNotFound
	}
	delete(s.users, username)
	return nil
}

func (s *Store) IsOwner(ctx context.Context, path, username string) (bool, error) {
	owner, err := s.Owner(ctx, path)
	if err == store.ErrOwnerNotFound {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	s.owners[path] = username
	return nil
}

func (s *Store) RemoveOwner(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.owners, path)
	return nil
}

func (s *Store) Owner(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.owners[path]
	if !ok {
		return "", store.ErrOwnerNotFound
	}
	return owner, nil
}

func (s *Store) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)
