// Package postgres implements the storage contracts on PostgreSQL using
// database/sql and raw SQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"

	"github.com/trogers1052/portfolio-service/internal/storage"
)

// Store wraps the database connection.
type Store struct {
	conn *sql.DB
}

// New opens a connection and verifies it with a ping.
func New(connectionString string) (*Store, error) {
	conn, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{conn: conn}, nil
}

// NewFromConn wraps an existing connection; used by tests.
func NewFromConn(conn *sql.DB) *Store {
	return &Store{conn: conn}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping checks if the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// parseID converts an external string id into the BIGSERIAL value the schema uses.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, storage.ErrInvalidID
	}
	return n, nil
}
