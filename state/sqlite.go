package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hlgc/IceCream/logger"
)

// SQLiteStore persists sync state in a sqlite database. The schema is
// managed by the migrations package; callers run migrations before
// constructing the store.
type SQLiteStore struct {
	db      *sql.DB
	logger  *logger.Logger
	builder sq.StatementBuilderType
}

// NewSQLiteStore wraps an open sqlite database handle.
func NewSQLiteStore(db *sql.DB, log *logger.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:      db,
		logger:  log.WithComponent("state-store"),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Open opens (or creates) the sqlite database at path. The caller owns the
// returned *sql.DB and is responsible for running migrations on it.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	return db, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := s.builder.
		Select("value").
		From("sync_state").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build state select: %w", err)
	}

	var value []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state key %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	query, args, err := s.builder.
		Insert("sync_state").
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("build state upsert: %w", err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write state key %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int("bytes", len(value)).Msg("state written")
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	query, args, err := s.builder.
		Delete("sync_state").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build state delete: %w", err)
	}

	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete state key %s: %w", key, err)
	}
	return nil
}
