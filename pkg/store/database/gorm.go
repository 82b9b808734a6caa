// Package database is a store.Store on top of GORM. The same code serves
// SQLite (embedded, via a pure-Go driver) and PostgreSQL.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/marmos91/cntfs/pkg/store"
)

// Store implements store.Store using GORM.
type Store struct {
	db     *gorm.DB
	config *Config
}

// New opens the configured database and creates the schema via AutoMigrate.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case TypeSQLite:
		dsn := config.SQLite.Path
		if dsn != MemoryPath {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
			// WAL for concurrent readers, wait up to 5s on a locked database
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
		dialector = sqlite.Open(dsn)

	case TypePostgres:
		dialector = postgres.Open(config.Postgres.DSN())

	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	switch {
	case config.Type == TypePostgres:
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	case config.SQLite.Path == MemoryPath:
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return &Store{db: db, config: config}, nil
}

// DB returns the underlying GORM connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ============================================
// CREDENTIALS
// ============================================

func (s *Store) GetCredentials(ctx context.Context, username string) (*store.Credentials, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&rec).Error; err != nil {
		return nil, convertNotFoundError(err, store.ErrUserNotFound)
	}
	return rec.toCredentials(), nil
}

func (s *Store) PutCredentials(ctx context.Context, creds *store.Credentials) error {
	rec := userRecord{
		ID:        uuid.New().String(),
		Username:  creds.Username,
		Verifier:  creds.Verifier,
		CreatedAt: creds.CreatedAt,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*store.Credentials, error) {
	var recs []userRecord
	if err := s.db.WithContext(ctx).Order("username").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*store.Credentials, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toCredentials())
	}
	return out, nil
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	result := s.db.WithContext(ctx).Where("username = ?", username).Delete(&userRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func (r *userRecord) toCredentials() *store.Credentials {
	return &store.Credentials{Username: r.Username, Verifier: r.Verifier, CreatedAt: r.CreatedAt}
}

// ============================================
// OWNERSHIP
// ============================================

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
	rec := ownershipRecord{Path: path, Username: username, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
	}).Create(&rec).Error
}

func (s *Store) RemoveOwner(ctx context.Context, path string) error {
	return s.db.WithContext(ctx).Where("path = ?", path).Delete(&ownershipRecord{}).Error
}

func (s *Store) Owner(ctx context.Context, path string) (string, error) {
	var rec ownershipRecord
	if err := s.db.WithContext(ctx).Where("path = ?", path).First(&rec).Error; err != nil {
		return "", convertNotFoundError(err, store.ErrOwnerNotFound)
	}
	return rec.Username, nil
}

// ============================================
// HEALTH & LIFECYCLE
// ============================================

func (s *Store) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// isUniqueConstraintError checks if the error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "duplicate key value violates unique constraint")
}

// convertNotFoundError converts gorm.ErrRecordNotFound to the domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}

var _ store.Store = (*Store)(nil)
