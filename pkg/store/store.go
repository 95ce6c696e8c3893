package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("resource not found")

// PostgresConfig holds connection settings for the relational store.
type PostgresConfig struct {
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode)
}

// PostgresStore reads trailing-window aggregates and persists metric
// snapshots in Postgres.
type PostgresStore struct {
	db           *sqlx.DB
	logger       *logrus.Logger
	queryTimeout time.Duration
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(config PostgresConfig, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	timeout := config.QueryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger.WithFields(logrus.Fields{
		"host":     config.Host,
		"port":     config.Port,
		"database": config.Database,
	}).Info("Connected to Postgres")

	return &PostgresStore{
		db:           db,
		logger:       logger,
		queryTimeout: timeout,
	}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// getContext derives a query-scoped context with the configured timeout.
func (s *PostgresStore) getContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}
