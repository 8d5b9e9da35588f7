package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/common"
	"github.com/dmitrijs2005/stagepass/internal/dbx"
	"github.com/dmitrijs2005/stagepass/internal/server/models"
	"github.com/dmitrijs2005/stagepass/internal/server/repositories/repomanager"
)

// refreshSecretSize is the number of random bytes in a refresh secret.
const refreshSecretSize = 32

// RefreshLedger issues and rotates one-time refresh tokens. Secrets are
// returned to the caller once; only their sha256 hash is persisted.
type RefreshLedger struct {
	repos repomanager.RepositoryManager
	ttl   time.Duration
	now   func() time.Time
}

func NewRefreshLedger(m repomanager.RepositoryManager, ttl time.Duration, now func() time.Time) *RefreshLedger {
	return &RefreshLedger{repos: m, ttl: ttl, now: now}
}

// Rotation is the result of a successful Rotate. Secret is the replacement
// refresh secret; Owner is the user row, locked for the rest of the
// transaction.
type Rotation struct {
	Secret string
	Owner  *models.User
}

// Issue creates a token for userID and returns its secret.
func (l *RefreshLedger) Issue(ctx context.Context, db dbx.DBTX, userID string) (string, error) {
	secret, err := common.MakeRandHexString(refreshSecretSize)
	if err != nil {
		return "", fmt.Errorf("error generating refresh token: %w", err)
	}

	token := &models.RefreshToken{
		UserID:    userID,
		TokenHash: common.HashToken(secret),
		ExpiresAt: l.now().Add(l.ttl),
	}
	if err := l.repos.RefreshTokens(db).Create(ctx, token); err != nil {
		return "", fmt.Errorf("error storing refresh token: %w", err)
	}
	return secret, nil
}

// Rotate consumes the token behind secret and issues a replacement for the
// same user. It must run inside a transaction. The owner row is locked
// before the token is consumed, so of two concurrent calls with one secret
// exactly one succeeds and the other gets common.ErrExpiredOrInvalid.
func (l *RefreshLedger) Rotate(ctx context.Context, db dbx.DBTX, secret string) (*Rotation, error) {
	if secret == "" {
		return nil, common.ErrExpiredOrInvalid
	}
	hash := common.HashToken(secret)
	tokens := l.repos.RefreshTokens(db)

	found, err := tokens.Lookup(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrExpiredOrInvalid
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if found.Expired(l.now()) {
		return nil, common.ErrExpiredOrInvalid
	}

	owner, err := l.repos.Users(db).Lock(ctx, found.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrExpiredOrInvalid
		}
		return nil, fmt.Errorf("error locking token owner: %w", err)
	}

	_, err = tokens.Consume(ctx, hash, l.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrExpiredOrInvalid
		}
		return nil, fmt.Errorf("error consuming refresh token: %w", err)
	}

	next, err := l.Issue(ctx, db, owner.ID)
	if err != nil {
		return nil, err
	}

	return &Rotation{Secret: next, Owner: owner}, nil
}

// PurgeAll deletes every refresh token of userID.
func (l *RefreshLedger) PurgeAll(ctx context.Context, db dbx.DBTX, userID string) (int64, error) {
	n, err := l.repos.RefreshTokens(db).DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("error purging refresh tokens: %w", err)
	}
	return n, nil
}

// SweepExpired deletes tokens that can no longer be rotated.
func (l *RefreshLedger) SweepExpired(ctx context.Context, db dbx.DBTX) (int64, error) {
	return l.repos.RefreshTokens(db).DeleteExpired(ctx, l.now())
}
