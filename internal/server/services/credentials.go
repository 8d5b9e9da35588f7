package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/common"
	"github.com/dmitrijs2005/stagepass/internal/dbx"
	"github.com/dmitrijs2005/stagepass/internal/server/models"
	"github.com/dmitrijs2005/stagepass/internal/server/passwords"
	"github.com/dmitrijs2005/stagepass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/stagepass/internal/server/validation"
)

const emailTaken = "has already been taken"

// CredentialStore owns user identity and password verifiers. Every method
// takes the DBTX to run on so callers can compose them in one transaction.
type CredentialStore struct {
	repos  repomanager.RepositoryManager
	hasher passwords.Hasher
	now    func() time.Time

	dummyOnce     sync.Once
	dummyVerifier string
}

func NewCredentialStore(m repomanager.RepositoryManager, hasher passwords.Hasher, now func() time.Time) *CredentialStore {
	return &CredentialStore{repos: m, hasher: hasher, now: now}
}

// Create validates attrs, reporting every violation at once, and inserts
// the user with a freshly hashed password.
func (c *CredentialStore) Create(ctx context.Context, db dbx.DBTX, attrs validation.SignUpAttributes) (*models.User, error) {
	attrs.Normalize()
	violations := validation.SignUp(attrs, c.now())

	repo := c.repos.Users(db)

	if attrs.Email != "" && !violations.Has("email") {
		_, err := repo.GetUserByEmail(ctx, attrs.Email)
		switch {
		case err == nil:
			violations.Add("email", emailTaken)
		case !errors.Is(err, common.ErrorNotFound):
			return nil, fmt.Errorf("error checking email: %w", err)
		}
	}

	if err := common.NewValidationError(violations); err != nil {
		return nil, err
	}

	birthDate, err := validation.ParseDate(attrs.BirthDate)
	if err != nil {
		return nil, fmt.Errorf("error parsing birth date: %w", err)
	}

	verifier, err := c.hasher.Hash(attrs.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Email:                attrs.Email,
		PasswordVerifier:     verifier,
		Role:                 attrs.Role,
		Name:                 attrs.Name,
		BirthDate:            birthDate,
		NumberOfParticipants: attrs.NumberOfParticipants,
		Active:               true,
	}

	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, &common.ValidationError{Violations: common.Violations{{Field: "email", Message: emailTaken}}}
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

func (c *CredentialStore) FindByEmail(ctx context.Context, db dbx.DBTX, email string) (*models.User, error) {
	return c.repos.Users(db).GetUserByEmail(ctx, email)
}

func (c *CredentialStore) VerifyPassword(user *models.User, candidate string) bool {
	return c.hasher.Verify(user.PasswordVerifier, candidate)
}

// BurnVerification spends the same effort as VerifyPassword against a
// throwaway verifier, so unknown emails take as long as wrong passwords.
func (c *CredentialStore) BurnVerification(candidate string) {
	c.dummyOnce.Do(func() {
		c.dummyVerifier, _ = c.hasher.Hash(hex.EncodeToString(common.GenerateRandByteArray(16)))
	})
	_ = c.hasher.Verify(c.dummyVerifier, candidate)
}

// UpdatePassword validates the new password against its confirmation and
// stores a new verifier.
func (c *CredentialStore) UpdatePassword(ctx context.Context, db dbx.DBTX, user *models.User, password, confirmation string) (*models.User, error) {
	if err := common.NewValidationError(validation.PasswordChange(password, confirmation)); err != nil {
		return nil, err
	}

	verifier, err := c.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	if err := c.repos.Users(db).UpdatePassword(ctx, user.ID, verifier); err != nil {
		return nil, fmt.Errorf("error updating password: %w", err)
	}
	user.PasswordVerifier = verifier
	return user, nil
}

func (c *CredentialStore) Deactivate(ctx context.Context, db dbx.DBTX, user *models.User) (*models.User, error) {
	return c.setActive(ctx, db, user, false)
}

func (c *CredentialStore) Reactivate(ctx context.Context, db dbx.DBTX, user *models.User) (*models.User, error) {
	return c.setActive(ctx, db, user, true)
}

func (c *CredentialStore) setActive(ctx context.Context, db dbx.DBTX, user *models.User, active bool) (*models.User, error) {
	if user.Active == active {
		return user, nil
	}
	if err := c.repos.Users(db).SetActive(ctx, user.ID, active); err != nil {
		return nil, fmt.Errorf("error updating active flag: %w", err)
	}
	user.Active = active
	return user, nil
}

// Lock reads the user row FOR UPDATE. Mutating flows call it first so that
// deactivation, refresh and password change serialize per user.
func (c *CredentialStore) Lock(ctx context.Context, db dbx.DBTX, userID string) (*models.User, error) {
	return c.repos.Users(db).Lock(ctx, userID)
}
