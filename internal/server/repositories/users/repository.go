// Package users declares the persistence contract for user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/stagepass/internal/server/models"
)

// Repository reads and writes rows of the users table.
// Lookups return common.ErrorNotFound when no row matches.
type Repository interface {
	// Create inserts user, assigning ID and timestamps. A duplicate email
	// yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// Lock reads the user row with FOR UPDATE. Must be called inside a transaction.
	Lock(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, verifier string) error
	SetActive(ctx context.Context, id string, active bool) error
}
