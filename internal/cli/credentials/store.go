// Package credentials keeps cntctl's saved servers ("contexts") and the
// password digest used to reconnect to them.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	DefaultConfigDir = "cntctl"
	ConfigFileName   = "config.json"

	// The file holds password digests, which are as good as the password
	// to the server.
	FilePermissions = 0600
	DirPermissions  = 0700
)

var (
	ErrNoCurrentContext = errors.New("no current context set")
	ErrContextNotFound  = errors.New("context not found")
	ErrNotLoggedIn      = errors.New("not logged in - run 'cntctl login' first")
)

// Context is one saved server.
type Context struct {
	// Server is the protocol address, host:port.
	Server string `json:"server"`

	// APIURL is the HTTP API base URL. Optional.
	APIURL string `json:"api_url,omitempty"`

	Username string `json:"username,omitempty"`

	// PasswordHash is the hex SHA-256 digest sent on connect. Cleared by
	// logout.
	PasswordHash string `json:"password_hash,omitempty"`

	LoggedInAt time.Time `json:"logged_in_at,omitempty"`
}

// HasCredentials reports whether the context can connect without a prompt.
func (c *Context) HasCredentials() bool {
	return c.Username != "" && c.PasswordHash != ""
}

// Preferences represents user preferences.
type Preferences struct {
	DefaultOutput string `json:"default_output,omitempty"` // table, json, yaml
	Color         string `json:"color,omitempty"`          // auto, always, never
}

// Config represents the complete cntctl configuration.
type Config struct {
	CurrentContext string              `json:"current_context"`
	Contexts       map[string]*Context `json:"contexts"`
	Preferences    Preferences         `json:"preferences,omitempty"`
}

// Store manages credential storage and retrieval.
type Store struct {
	configPath string
	config     *Config
}

// NewStore opens the store at $XDG_CONFIG_HOME/cntctl/config.json.
func NewStore() (*Store, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewStoreAt(configPath)
}

// NewStoreAt opens the store at configPath. A missing file is an empty store.
func NewStoreAt(configPath string) (*Store, error) {
	store := &Store{configPath: configPath}

	if err := store.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		store.config = &Config{Contexts: make(map[string]*Context)}
	}
	if store.config.Contexts == nil {
		store.config.Contexts = make(map[string]*Context)
	}
	return store, nil
}

func getConfigPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}

	return filepath.Join(configHome, DefaultConfigDir, ConfigFileName), nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return err
	}

	s.config = &Config{}
	if err := json.Unmarshal(data, s.config); err != nil {
		return fmt.Errorf("parse %s: %w", s.configPath, err)
	}
	return nil
}

func (s *Store) save() error {
	dir := filepath.Dir(s.configPath)
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(s.config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.configPath, data, FilePermissions)
}

// GetCurrentContext returns the current context.
func (s *Store) GetCurrentContext() (*Context, error) {
	if s.config.CurrentContext == "" {
		return nil, ErrNoCurrentContext
	}
	return s.GetContext(s.config.CurrentContext)
}

func (s *Store) GetCurrentContextName() string {
	return s.config.CurrentContext
}

// GetContext returns a specific context by name.
func (s *Store) GetContext(name string) (*Context, error) {
	ctx, ok := s.config.Contexts[name]
	if !ok {
		return nil, ErrContextNotFound
	}
	return ctx, nil
}

// ListContexts returns all context names, sorted.
func (s *Store) ListContexts() []string {
	names := make([]string, 0, len(s.config.Contexts))
	for name := range s.config.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetContext creates or updates a context. The first context saved becomes
// current.
func (s *Store) SetContext(name string, ctx *Context) error {
	s.config.Contexts[name] = ctx
	if s.config.CurrentContext == "" {
		s.config.CurrentContext = name
	}
	return s.save()
}

// UseContext switches to a different context.
func (s *Store) UseContext(name string) error {
	if _, ok := s.config.Contexts[name]; !ok {
		return ErrContextNotFound
	}
	s.config.CurrentContext = name
	return s.save()
}

// DeleteContext removes a context.
func (s *Store) DeleteContext(name string) error {
	if _, ok := s.config.Contexts[name]; !ok {
		return ErrContextNotFound
	}

	delete(s.config.Contexts, name)

	if s.config.CurrentContext == name {
		s.config.CurrentContext = ""
	}

	return s.save()
}

// ClearCurrentContext forgets the current context's password digest
// (logout). Server and username are kept.
func (s *Store) ClearCurrentContext() error {
	ctx, err := s.GetCurrentContext()
	if err != nil {
		return err
	}

	ctx.PasswordHash = ""
	ctx.LoggedInAt = time.Time{}

	return s.save()
}

func (s *Store) GetPreferences() Preferences {
	return s.config.Preferences
}

func (s *Store) SetPreferences(prefs Preferences) error {
	s.config.Preferences = prefs
	return s.save()
}

func (s *Store) ConfigPath() string {
	return s.configPath
}

// ContextName derives a context name from a server address: its host, or
// "default" when that is empty.
func ContextName(server string) string {
	host, _, err := net.SplitHostPort(server)
	if err != nil {
		host = server
	}
	if host == "" {
		return "default"
	}
	return host
}
