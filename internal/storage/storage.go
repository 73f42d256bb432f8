// Package storage defines the backend-agnostic persistence contracts. Two
// implementations exist: a relational one on PostgreSQL and a document one on
// MongoDB. Callers never depend on which backend is wired in.
package storage

import (
	"context"
	"errors"

	"github.com/trogers1052/portfolio-service/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID is returned when an identifier does not parse for the active backend.
	ErrInvalidID = errors.New("invalid id")
	// ErrDuplicateUsername is returned when the username uniqueness constraint fires.
	ErrDuplicateUsername = errors.New("username already in use")
	// ErrDuplicateEmail is returned when the email uniqueness constraint fires.
	ErrDuplicateEmail = errors.New("email already in use")
)

// PortfolioStore holds one position per (user, ticker) pair plus the append-only
// order log.
type PortfolioStore interface {
	// GetPosition returns the position for (userID, ticker), or ErrNotFound.
	GetPosition(ctx context.Context, userID, ticker string) (*models.Position, error)

	// GetPositions returns all positions held by the user. An empty slice, not an
	// error, when the user holds nothing.
	GetPositions(ctx context.Context, userID string) ([]models.Position, error)

	// GetOrders returns the user's order records in chronological order.
	GetOrders(ctx context.Context, userID string) ([]models.Order, error)

	// ExecuteOrder persists the recomputed position and appends the order record,
	// both or neither. A position with zero quantity is removed rather than stored.
	// Returns the id assigned to the appended order.
	ExecuteOrder(ctx context.Context, pos *models.Position, order *models.Order) (string, error)
}

// UserStore holds the identity directory.
type UserStore interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, username, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
}
