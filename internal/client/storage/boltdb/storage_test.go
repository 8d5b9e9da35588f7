package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/client/api"
	"github.com/dmitrijs2005/stagepass/internal/client/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "session.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	return store, dbPath
}

func TestStorage_SaveGetDeleteSession(t *testing.T) {
	ctx := context.Background()
	store, _ := createTestStorage(t)
	defer store.Close()

	_, err := store.GetSession(ctx)
	require.ErrorIs(t, err, storage.ErrNoSession)

	sess := &storage.Session{
		Email: "solo@example.com",
		Tokens: api.Tokens{
			AccessToken:  "acc",
			ExpiresAt:    time.Unix(1718452800, 0).UTC(),
			RefreshToken: "ref",
		},
	}
	require.NoError(t, store.SaveSession(ctx, sess))

	got, err := store.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.Email, got.Email)
	assert.Equal(t, sess.Tokens.AccessToken, got.Tokens.AccessToken)
	assert.Equal(t, sess.Tokens.RefreshToken, got.Tokens.RefreshToken)
	assert.True(t, sess.Tokens.ExpiresAt.Equal(got.Tokens.ExpiresAt))

	require.NoError(t, store.DeleteSession(ctx))
	_, err = store.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrNoSession)

	require.NoError(t, store.DeleteSession(ctx), "deleting twice is fine")
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	store, path := createTestStorage(t)

	require.NoError(t, store.SaveSession(ctx, &storage.Session{Email: "a@example.com"}))
	require.NoError(t, store.Close())

	reopened, err := New(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
}

func TestStorage_OverwritesPreviousSession(t *testing.T) {
	ctx := context.Background()
	store, _ := createTestStorage(t)
	defer store.Close()

	require.NoError(t, store.SaveSession(ctx, &storage.Session{Email: "first@example.com"}))
	require.NoError(t, store.SaveSession(ctx, &storage.Session{Email: "second@example.com"}))

	got, err := store.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", got.Email)
}

func TestNew_FailsOnDirectoryPath(t *testing.T) {
	_, err := New(context.Background(), t.TempDir())
	assert.Error(t, err)
}
