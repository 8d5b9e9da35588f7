package services

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/common"
	"github.com/dmitrijs2005/stagepass/internal/dbx"
	"github.com/dmitrijs2005/stagepass/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/stagepass/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/stagepass/internal/server/repositories/users"
	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for PostgreSQL. memTx runs one
// transaction at a time and restores a snapshot when fn fails, which gives
// the same all-or-nothing and serialized behavior the service relies on.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken // by token hash

	// fail maps an operation name (e.g. "tokens.Create") to the error it returns.
	fail map[string]error
	// block makes the named operation wait for ctx cancellation.
	block map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]*models.User{},
		tokens: map[string]*models.RefreshToken{},
		fail:   map[string]error{},
		block:  map[string]bool{},
	}
}

func (s *memStore) check(ctx context.Context, op string) error {
	if s.block[op] {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := s.fail[op]; err != nil {
		return err
	}
	return ctx.Err()
}

type memSnapshot struct {
	users  map[string]models.User
	tokens map[string]models.RefreshToken
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{users: map[string]models.User{}, tokens: map[string]models.RefreshToken{}}
	for k, v := range s.users {
		snap.users[k] = *v
	}
	for k, v := range s.tokens {
		snap.tokens[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.users = map[string]*models.User{}
	s.tokens = map[string]*models.RefreshToken{}
	for k, v := range snap.users {
		u := v
		s.users[k] = &u
	}
	for k, v := range snap.tokens {
		t := v
		s.tokens[k] = &t
	}
}

// user returns a copy of the stored user, for assertions.
func (s *memStore) user(id string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	c := *u
	return &c
}

func (s *memStore) userByEmail(email string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c
		}
	}
	return nil
}

func (s *memStore) tokenCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

type memTx struct {
	store *memStore
	calls int
}

func (t *memTx) WithinTx(ctx context.Context, fn dbx.TxFunc) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.calls++

	snap := t.store.snapshot()
	if err := fn(ctx, nil); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

type memRepoManager struct {
	store *memStore
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *memRepoManager) Users(dbx.DBTX) usersrepo.Repository { return &memUsers{m.store} }

func (m *memRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository {
	return &memTokens{m.store}
}

type memUsers struct{ s *memStore }

func (r *memUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := r.s.check(ctx, "users.Create"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, common.ErrorAlreadyExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	c := *user
	r.s.users[user.ID] = &c
	return user, nil
}

func (r *memUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := r.s.check(ctx, "users.GetUserByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) Lock(ctx context.Context, id string) (*models.User, error) {
	if err := r.s.check(ctx, "users.Lock"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUsers) UpdatePassword(ctx context.Context, id string, verifier string) error {
	if err := r.s.check(ctx, "users.UpdatePassword"); err != nil {
		return err
	}
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordVerifier = verifier
	return nil
}

func (r *memUsers) SetActive(ctx context.Context, id string, active bool) error {
	if err := r.s.check(ctx, "users.SetActive"); err != nil {
		return err
	}
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Active = active
	return nil
}

type memTokens struct{ s *memStore }

func (r *memTokens) Create(ctx context.Context, token *models.RefreshToken) error {
	if err := r.s.check(ctx, "tokens.Create"); err != nil {
		return err
	}
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = time.Now()
	c := *token
	r.s.tokens[token.TokenHash] = &c
	return nil
}

func (r *memTokens) Lookup(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	if err := r.s.check(ctx, "tokens.Lookup"); err != nil {
		return nil, err
	}
	t, ok := r.s.tokens[tokenHash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (r *memTokens) Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	if err := r.s.check(ctx, "tokens.Consume"); err != nil {
		return nil, err
	}
	t, ok := r.s.tokens[tokenHash]
	if !ok || !t.ExpiresAt.After(now) {
		return nil, common.ErrorNotFound
	}
	delete(r.s.tokens, tokenHash)
	return t, nil
}

func (r *memTokens) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	if err := r.s.check(ctx, "tokens.DeleteByUser"); err != nil {
		return 0, err
	}
	var n int64
	for k, t := range r.s.tokens {
		if t.UserID == userID {
			delete(r.s.tokens, k)
			n++
		}
	}
	return n, nil
}

func (r *memTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := r.s.check(ctx, "tokens.DeleteExpired"); err != nil {
		return 0, err
	}
	var n int64
	for k, t := range r.s.tokens {
		if !t.ExpiresAt.After(now) {
			delete(r.s.tokens, k)
			n++
		}
	}
	return n, nil
}
