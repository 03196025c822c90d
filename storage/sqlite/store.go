// Package sqlite provides a SQLite-backed account store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/sicilica/yachu-server/storage"
	"github.com/sicilica/yachu-server/storage/sqlite/migrations"
)

// Store persists accounts and user data in SQLite. Client password hashes
// are stored as bcrypt digests.
type Store struct {
	db       *sql.DB
	hashCost int
}

type Option func(*Store)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Store) { s.hashCost = cost }
}

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db, hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Login(ctx context.Context, name, password string) (storage.Account, error) {
	var (
		id     string
		digest []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_digest FROM accounts WHERE name = ?`, name,
	).Scan(&id, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Account{}, storage.ErrInvalidAccount
	}
	if err != nil {
		return storage.Account{}, fmt.Errorf("login %s: %w", name, err)
	}

	if bcrypt.CompareHashAndPassword(digest, []byte(password)) != nil {
		return storage.Account{}, storage.ErrInvalidPassword
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return storage.Account{}, fmt.Errorf("login %s: bad account id %q: %w", name, id, err)
	}
	return storage.Account{ID: parsed, Name: name}, nil
}

func (s *Store) Register(ctx context.Context, name, password string) (storage.Account, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return storage.Account{}, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Account{}, fmt.Errorf("register %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	id := uuid.New()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (id, name, password_digest, created_at) VALUES (?, ?, ?, ?)`,
		id.String(), name, digest, time.Now().UTC().UnixMilli(),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.Account{}, storage.ErrDuplicateName
		}
		return storage.Account{}, fmt.Errorf("register %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (account_id) VALUES (?)`, id.String(),
	); err != nil {
		return storage.Account{}, fmt.Errorf("register %s: create user: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return storage.Account{}, fmt.Errorf("register %s: commit: %w", name, err)
	}
	return storage.Account{ID: id, Name: name}, nil
}

func (s *Store) ChangeName(ctx context.Context, id uuid.UUID, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET name = ? WHERE id = ?`, name, id.String())
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateName
		}
		return fmt.Errorf("change name: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("change name: %w", err)
	}
	if n != 1 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) UserData(ctx context.Context, id uuid.UUID) (storage.UserData, error) {
	var d storage.UserData
	err := s.db.QueryRowContext(ctx,
		`SELECT money, play_count, win_count, lose_count FROM users WHERE account_id = ?`, id.String(),
	).Scan(&d.Money, &d.PlayCount, &d.WinCount, &d.LoseCount)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.UserData{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.UserData{}, fmt.Errorf("user data: %w", err)
	}
	return d, nil
}

// SetUserData upserts the row, as long as the account exists.
func (s *Store) SetUserData(ctx context.Context, id uuid.UUID, d storage.UserData) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (account_id, money, play_count, win_count, lose_count)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(account_id) DO UPDATE SET
    money = excluded.money,
    play_count = excluded.play_count,
    win_count = excluded.win_count,
    lose_count = excluded.lose_count`,
		id.String(), d.Money, d.PlayCount, d.WinCount, d.LoseCount,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("set user data: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

var _ storage.Store = (*Store)(nil)
