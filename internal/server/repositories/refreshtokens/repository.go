// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/server/models"
)

// Repository defines operations for issuing, consuming, and revoking refresh
// tokens. Tokens are addressed by the sha256 hash of their secret.
type Repository interface {
	// Create stores token, assigning ID and CreatedAt.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Lookup returns the row for tokenHash regardless of expiry, or
	// common.ErrorNotFound.
	Lookup(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Consume deletes the row for tokenHash if it is still live at now and
	// returns it. A missing, already consumed or expired token yields
	// common.ErrorNotFound. Only one of several concurrent callers can win.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)

	// DeleteByUser removes every token of userID and reports how many went.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes tokens whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
