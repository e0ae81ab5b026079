// Package store persists users, uploads and the receipt outbox in Postgres.
package store

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"receipt2ledger/models"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
)

type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to Postgres. Unique violations surface as gorm.ErrDuplicatedKey.
func Open(dsn string, log zerolog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_DSN is not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// New wraps an existing connection.
func New(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates the schema. Roles go first so the users FK can be applied;
// each model migrates on its own so one failure doesn't block the rest.
func (s *Store) Migrate() error {
	var errs []error
	for _, m := range []struct {
		name  string
		model any
	}{
		{"roles", &models.Role{}},
		{"users", &models.User{}},
		{"uploads", &models.Upload{}},
		{"receipts", &models.Receipt{}},
	} {
		if err := s.db.AutoMigrate(m.model); err != nil {
			s.log.Warn().Err(err).Str("table", m.name).Msg("migration warning")
			errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
		}
	}
	return errors.Join(errs...)
}

// Seed makes sure the master roles exist.
func (s *Store) Seed() error {
	for _, r := range models.DefaultRoles() {
		role := r
		if err := s.db.Where("name = ?", role.Name).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
