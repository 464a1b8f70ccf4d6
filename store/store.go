package store

import (
	"context"
	"time"

	"github.com/buildbuildio/mosaic/gqlerrors"
	"github.com/buildbuildio/mosaic/metrics"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const driverName = "postgres"

// User is a row of the users table
type User struct {
	ID        uuid.UUID `db:"id"`
	Email     string    `db:"email"`
	Password  string    `db:"password"`
	Continent string    `db:"continent"`
	Confirmed bool      `db:"confirmed"`
}

// Config describes connection pool of the store
type Config struct {
	DSN             string        `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `yaml:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" split_words:"true"`
}

// Store reads users backed by PostgreSQL. It only ever reads.
type Store struct {
	db           *sqlx.DB
	queryTimeout time.Duration
}

type Option func(*Store)

// WithQueryTimeout bounds every query, zero means no timeout
func WithQueryTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		s.queryTimeout = timeout
	}
}

// New creates a Store using the provided database handle.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the database described by cfg and verifies the connection.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN)
	if err != nil {
		return nil, &gqlerrors.DataAccessError{Op: "connect", Err: err}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return New(db, opts...), nil
}

// Close releases the pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return &gqlerrors.DataAccessError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// observe records the query outcome and wraps err as DataAccessError
func observe(op string, start time.Time, err error) error {
	metrics.ObserveStoreQuery(op, err, time.Since(start))
	if err != nil {
		return &gqlerrors.DataAccessError{Op: op, Err: err}
	}
	return nil
}

// CountUsers returns number of rows in users, 0 for an empty table.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()

	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	if err := observe("count_users", start, err); err != nil {
		return 0, err
	}

	return count, nil
}

// ListUsers returns every user. Order is whatever the database returns.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()

	users := []User{}
	err := s.db.SelectContext(ctx, &users, `SELECT id, email, password, continent, confirmed FROM users`)
	if err := observe("list_users", start, err); err != nil {
		return nil, err
	}

	return users, nil
}
