// Package storage defines the client-side session record and its store.
package storage

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/stagepass/internal/client/api"
)

// ErrNoSession is returned when nobody is signed in on this machine.
var ErrNoSession = errors.New("no stored session")

// Session is what the CLI remembers between invocations.
type Session struct {
	Email  string     `json:"email"`
	Tokens api.Tokens `json:"tokens"`
}

type SessionStore interface {
	SaveSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context) (*Session, error)
	DeleteSession(ctx context.Context) error
	Close() error
}
