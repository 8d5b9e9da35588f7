// Package auth mints and verifies the short-lived access tokens.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims includes the registered claims and one custom UserID claim.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// Issuer signs HS256 access tokens with a process-wide secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type Option func(*Issuer)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret []byte, ttl time.Duration, issuer string, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: access token ttl must be positive")
	}
	i := &Issuer{secret: secret, ttl: ttl, issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Mint returns a signed token for userID and the instant it stops being valid.
func (i *Issuer) Mint(userID string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl).Truncate(time.Second)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// Verify checks signature, algorithm, issuer and expiry. Every failure is
// reported as common.ErrInvalidToken so callers cannot tell them apart.
func (i *Issuer) Verify(tokenString string) (string, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return "", common.ErrInvalidToken
	}

	if claims.UserID == "" || claims.UserID != claims.Subject {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
