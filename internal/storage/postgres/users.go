package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/trogers1052/portfolio-service/internal/models"
	"github.com/trogers1052/portfolio-service/internal/storage"
)

// ListUsers returns all directory records ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT id, username, email FROM users ORDER BY id`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		var id int64
		if err := rows.Scan(&id, &u.Username, &u.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.ID = strconv.FormatInt(id, 10)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}

	return users, nil
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, username, email FROM users WHERE id = $1`

	var u models.User
	var dbID int64
	err = s.conn.QueryRowContext(ctx, query, uid).Scan(&dbID, &u.Username, &u.Email)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.ID = strconv.FormatInt(dbID, 10)
	return &u, nil
}

// CreateUser inserts a new user. Duplicate username or email surfaces as the
// matching sentinel error.
func (s *Store) CreateUser(ctx context.Context, username, email string) (*models.User, error) {
	query := `INSERT INTO users (username, email) VALUES ($1, $2) RETURNING id`

	var id int64
	err := s.conn.QueryRowContext(ctx, query, username, email).Scan(&id)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &models.User{ID: strconv.FormatInt(id, 10), Username: username, Email: email}, nil
}

// UpdateUser applies the provided fields and returns the updated record.
func (s *Store) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE users SET
			username = COALESCE($2, username),
			email = COALESCE($3, email)
		WHERE id = $1
		RETURNING id, username, email
	`
	var u models.User
	var dbID int64
	err = s.conn.QueryRowContext(ctx, query, uid, upd.Username, upd.Email).Scan(&dbID, &u.Username, &u.Email)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	u.ID = strconv.FormatInt(dbID, 10)
	return &u, nil
}

// duplicateError maps a unique violation to the sentinel for the constraint that
// fired, or returns nil when the error is something else.
func duplicateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	if strings.Contains(pqErr.Constraint, "email") {
		return storage.ErrDuplicateEmail
	}
	return storage.ErrDuplicateUsername
}
