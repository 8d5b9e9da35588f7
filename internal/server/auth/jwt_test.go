package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestIssuer(t *testing.T, clock *fakeClock) *Issuer {
	t.Helper()
	i, err := NewIssuer([]byte("super-secret"), 15*time.Minute, "stagepass", WithClock(clock.Now))
	require.NoError(t, err)
	return i
}

func TestMintAndVerify_Success(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	i := newTestIssuer(t, clock)

	tok, exp, err := i.Mint("user-123")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, clock.t.Add(15*time.Minute), exp)

	got, err := i.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", got)
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: start}
	i := newTestIssuer(t, clock)

	tok, exp, err := i.Mint("u1")
	require.NoError(t, err)

	clock.t = exp.Add(-time.Second)
	_, err = i.Verify(tok)
	require.NoError(t, err, "token must be valid just before expiry")

	clock.t = exp
	_, err = i.Verify(tok)
	require.ErrorIs(t, err, common.ErrInvalidToken)

	clock.t = exp.Add(time.Hour)
	_, err = i.Verify(tok)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	i := newTestIssuer(t, clock)
	tok, _, err := i.Mint("u2")
	require.NoError(t, err)

	other, err := NewIssuer([]byte("wrong-secret"), time.Hour, "stagepass", WithClock(clock.Now))
	require.NoError(t, err)

	_, err = other.Verify(tok)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_WrongIssuer(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	i := newTestIssuer(t, clock)
	tok, _, err := i.Mint("u3")
	require.NoError(t, err)

	other, err := NewIssuer([]byte("super-secret"), time.Hour, "someone-else", WithClock(clock.Now))
	require.NoError(t, err)

	_, err = other.Verify(tok)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	i := newTestIssuer(t, clock)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u4",
			Issuer:    "stagepass",
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
		UserID: "u4",
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("super-secret"))
	require.NoError(t, err)
	_, err = i.Verify(hs512)
	require.ErrorIs(t, err, common.ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = i.Verify(none)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	i := newTestIssuer(t, clock)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u5", Issuer: "stagepass"},
		UserID:           "u5",
	}).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	_, err = i.Verify(tok)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_MalformedString(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, &fakeClock{t: time.Now()})
	for _, tok := range []string{"", "not.a.jwt", "abc"} {
		_, err := i.Verify(tok)
		require.ErrorIs(t, err, common.ErrInvalidToken, tok)
	}
}

func TestNewIssuer_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer(nil, time.Minute, "x")
	assert.Error(t, err)

	_, err = NewIssuer([]byte("k"), 0, "x")
	assert.Error(t, err)

	i, err := NewIssuer([]byte("k"), time.Minute, "x")
	require.NoError(t, err)
	_, expiresAt, err := i.Mint("u-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 2*time.Second)
}
