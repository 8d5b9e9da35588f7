// Package services contains server-side business logic. This file implements
// UserService, which handles sign-up, sign-in, refresh token rotation,
// password change and deactivation.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/common"
	"github.com/dmitrijs2005/stagepass/internal/dbx"
	"github.com/dmitrijs2005/stagepass/internal/logging"
	"github.com/dmitrijs2005/stagepass/internal/server/auth"
	"github.com/dmitrijs2005/stagepass/internal/server/config"
	"github.com/dmitrijs2005/stagepass/internal/server/models"
	"github.com/dmitrijs2005/stagepass/internal/server/passwords"
	"github.com/dmitrijs2005/stagepass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/stagepass/internal/server/validation"
)

// TokenPair bundles a short-lived access token, its expiry and a one-time
// refresh token.
type TokenPair struct {
	AccessToken  string
	ExpiresAt    time.Time
	RefreshToken string
}

// UserService orchestrates the credential store, the refresh ledger and the
// access token issuer. Each operation runs in a single transaction bounded
// by the configured store timeout.
type UserService struct {
	tx          dbx.Transactor
	credentials *CredentialStore
	ledger      *RefreshLedger
	issuer      *auth.Issuer
	logger      logging.Logger

	storeTimeout       time.Duration
	reactivateOnSignIn bool
	now                func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(tx dbx.Transactor, m repomanager.RepositoryManager, hasher passwords.Hasher,
	issuer *auth.Issuer, cfg *config.Config, logger logging.Logger) *UserService {
	s := &UserService{
		tx:                 tx,
		issuer:             issuer,
		logger:             logger,
		storeTimeout:       cfg.StoreTimeout,
		reactivateOnSignIn: cfg.ReactivateOnSignIn,
		now:                time.Now,
	}
	clock := func() time.Time { return s.now() }
	s.credentials = NewCredentialStore(m, hasher, clock)
	s.ledger = NewRefreshLedger(m, cfg.RefreshTokenValidityDuration, clock)
	return s
}

// SignUp creates the account and returns its first token pair. On failure
// nothing is persisted.
func (s *UserService) SignUp(ctx context.Context, attrs validation.SignUpAttributes) (*TokenPair, error) {
	var pair *TokenPair
	err := s.withinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.credentials.Create(ctx, tx, attrs)
		if err != nil {
			return err
		}
		pair, err = s.issuePair(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "sign up", err)
	}
	return pair, nil
}

// SignIn checks credentials. Unknown email and wrong password are both
// reported as common.ErrInvalidCredentials. A deactivated account is
// reactivated when the service is configured to do so and rejected otherwise.
func (s *UserService) SignIn(ctx context.Context, email, password string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.withinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.credentials.FindByEmail(ctx, tx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				s.credentials.BurnVerification(password)
				return common.ErrInvalidCredentials
			}
			return err
		}

		if !s.credentials.VerifyPassword(user, password) {
			return common.ErrInvalidCredentials
		}

		user, err = s.credentials.Lock(ctx, tx, user.ID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidCredentials
			}
			return err
		}

		if !user.Active {
			if !s.reactivateOnSignIn {
				return common.ErrInvalidCredentials
			}
			if _, err := s.credentials.Reactivate(ctx, tx, user); err != nil {
				return err
			}
			s.logger.Info(ctx, "user reactivated on sign in", "user_id", user.ID)
		}

		pair, err = s.issuePair(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "sign in", err)
	}
	return pair, nil
}

// Refresh rotates the refresh token and mints a new access token for its
// owner. A missing, expired or already used secret, as well as an inactive
// owner, yields common.ErrExpiredOrInvalid and changes nothing.
func (s *UserService) Refresh(ctx context.Context, refreshSecret string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.withinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		rot, err := s.ledger.Rotate(ctx, tx, refreshSecret)
		if err != nil {
			return err
		}
		if !rot.Owner.Active {
			return common.ErrExpiredOrInvalid
		}
		access, expiresAt, err := s.issuer.Mint(rot.Owner.ID)
		if err != nil {
			return fmt.Errorf("error minting access token: %w", err)
		}
		pair = &TokenPair{AccessToken: access, ExpiresAt: expiresAt, RefreshToken: rot.Secret}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "refresh", err)
	}
	return pair, nil
}

// ChangePassword stores the new password, drops every refresh token of the
// user and returns one fresh pair. Unknown or inactive users get
// common.ErrorUnauthorized.
func (s *UserService) ChangePassword(ctx context.Context, userID, password, confirmation string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.withinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.lockActive(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := s.credentials.UpdatePassword(ctx, tx, user, password, confirmation); err != nil {
			return err
		}
		if _, err := s.ledger.PurgeAll(ctx, tx, user.ID); err != nil {
			return err
		}
		pair, err = s.issuePair(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "change password", err)
	}
	return pair, nil
}

// Deactivate clears the active flag and purges all refresh tokens in one
// transaction. Deactivating an inactive user succeeds without changes.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	err := s.withinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.credentials.Lock(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return err
		}
		if _, err := s.credentials.Deactivate(ctx, tx, user); err != nil {
			return err
		}
		n, err := s.ledger.PurgeAll(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		s.logger.Info(ctx, "user deactivated", "user_id", user.ID, "purged_tokens", n)
		return nil
	})
	if err != nil {
		return s.fail(ctx, "deactivate", err)
	}
	return nil
}

// Authenticate resolves an access token to a user id without touching the
// store.
func (s *UserService) Authenticate(_ context.Context, accessToken string) (string, error) {
	userID, err := s.issuer.Verify(accessToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	return userID, nil
}

// SweepExpiredTokens deletes refresh tokens past their expiry.
func (s *UserService) SweepExpiredTokens(ctx context.Context) (int64, error) {
	var n int64
	err := s.withinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = s.ledger.SweepExpired(ctx, tx)
		return err
	})
	if err != nil {
		return 0, s.fail(ctx, "sweep expired tokens", err)
	}
	return n, nil
}

func (s *UserService) withinTx(ctx context.Context, fn dbx.TxFunc) error {
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}
	return s.tx.WithinTx(ctx, fn)
}

func (s *UserService) lockActive(ctx context.Context, tx dbx.DBTX, userID string) (*models.User, error) {
	user, err := s.credentials.Lock(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !user.Active {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

func (s *UserService) issuePair(ctx context.Context, tx dbx.DBTX, userID string) (*TokenPair, error) {
	refresh, err := s.ledger.Issue(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	access, expiresAt, err := s.issuer.Mint(userID)
	if err != nil {
		return nil, fmt.Errorf("error minting access token: %w", err)
	}
	return &TokenPair{AccessToken: access, ExpiresAt: expiresAt, RefreshToken: refresh}, nil
}

// fail passes domain errors through, maps timeouts and retryable conflicts
// to common.ErrTransientStore and hides everything else behind
// common.ErrorInternal.
func (s *UserService) fail(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrExpiredOrInvalid),
		errors.Is(err, common.ErrorUnauthorized):
		return err
	}

	if err = dbx.Classify(err); errors.Is(err, common.ErrTransientStore) {
		s.logger.Warn(ctx, op+": store unavailable", "error", err)
		return err
	}

	s.logger.Error(ctx, op+" failed", "error", err)
	return fmt.Errorf("%s: %w", op, common.ErrorInternal)
}
