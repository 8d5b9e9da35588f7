package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/stagepass/internal/client/api"
	"github.com/dmitrijs2005/stagepass/internal/client/storage"
	"github.com/dmitrijs2005/stagepass/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// ErrNotSignedIn is returned by commands that need a stored session.
var ErrNotSignedIn = errors.New("not signed in, run signin first")

func (a *App) prompt(text string) (string, error) {
	return getSimpleText(a.reader, text, a.out)
}

// secret reads a password without echo and returns it as a string, wiping
// the raw bytes.
func (a *App) secret(text string) (string, error) {
	pw, err := getPassword(a.out, text)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

func (a *App) SignUp(ctx context.Context) error {
	var req api.SignUpRequest
	var err error

	if req.Email, err = a.prompt("Enter email"); err != nil {
		return err
	}
	if req.Name, err = a.prompt("Enter name"); err != nil {
		return err
	}
	if req.Role, err = a.prompt("Enter role (musician or musician_group)"); err != nil {
		return err
	}
	if req.BirthDate, err = a.prompt("Enter birth date (YYYY-MM-DD)"); err != nil {
		return err
	}
	if req.Role == "musician_group" {
		raw, err := a.prompt("Enter number of participants")
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("number of participants must be a number: %w", err)
		}
		req.NumberOfParticipants = &n
	}
	if req.Password, err = a.secret("Enter password"); err != nil {
		return err
	}
	if req.PasswordConfirmation, err = a.secret("Confirm password"); err != nil {
		return err
	}

	tokens, msg, err := a.api.SignUp(ctx, req)
	if err != nil {
		return err
	}
	return a.keep(ctx, req.Email, tokens, msg)
}

func (a *App) SignIn(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := a.secret("Enter password")
	if err != nil {
		return err
	}

	tokens, msg, err := a.api.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	return a.keep(ctx, email, tokens, msg)
}

func (a *App) Refresh(ctx context.Context) error {
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	if _, err := a.rotate(ctx, sess); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Token refreshed")
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	sess, err := a.freshSession(ctx)
	if err != nil {
		return err
	}

	password, err := a.secret("Enter new password")
	if err != nil {
		return err
	}
	confirmation, err := a.secret("Confirm new password")
	if err != nil {
		return err
	}

	tokens, msg, err := a.api.ChangePassword(ctx, sess.Tokens.AccessToken, password, confirmation)
	if err != nil {
		return a.dropIfUnauthorized(ctx, err)
	}
	return a.keep(ctx, sess.Email, tokens, msg)
}

func (a *App) Delete(ctx context.Context) error {
	sess, err := a.freshSession(ctx)
	if err != nil {
		return err
	}

	answer, err := a.prompt(fmt.Sprintf("Deactivate %s? Type yes to confirm", sess.Email))
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}

	msg, err := a.api.Delete(ctx, sess.Tokens.AccessToken)
	if err != nil {
		return a.dropIfUnauthorized(ctx, err)
	}
	if err := a.store.DeleteSession(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Status(ctx context.Context) error {
	sess, err := a.store.GetSession(ctx)
	switch {
	case errors.Is(err, storage.ErrNoSession):
		fmt.Fprintln(a.out, "Not signed in")
	case err != nil:
		return err
	default:
		state := "valid"
		if sess.Tokens.Expired(a.now()) {
			state = "expired"
		}
		fmt.Fprintf(a.out, "Signed in as %s, access token %s (expires %s)\n",
			sess.Email, state, sess.Tokens.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}

	if err := a.api.Health(ctx); err != nil {
		fmt.Fprintf(a.out, "Server: unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintln(a.out, "Server: ok")
	return nil
}

func (a *App) keep(ctx context.Context, email string, tokens *api.Tokens, msg string) error {
	if err := a.store.SaveSession(ctx, &storage.Session{Email: email, Tokens: *tokens}); err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) session(ctx context.Context) (*storage.Session, error) {
	sess, err := a.store.GetSession(ctx)
	if errors.Is(err, storage.ErrNoSession) {
		return nil, ErrNotSignedIn
	}
	return sess, err
}

// freshSession returns the stored session, rotating tokens first when the
// access token has expired.
func (a *App) freshSession(ctx context.Context) (*storage.Session, error) {
	sess, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.Tokens.Expired(a.now()) {
		return sess, nil
	}
	return a.rotate(ctx, sess)
}

func (a *App) rotate(ctx context.Context, sess *storage.Session) (*storage.Session, error) {
	tokens, _, err := a.api.Refresh(ctx, sess.Tokens.RefreshToken)
	if err != nil {
		return nil, a.dropIfUnauthorized(ctx, err)
	}
	next := &storage.Session{Email: sess.Email, Tokens: *tokens}
	if err := a.store.SaveSession(ctx, next); err != nil {
		return nil, fmt.Errorf("error saving session: %w", err)
	}
	return next, nil
}

// dropIfUnauthorized forgets the stored session when the server no longer
// accepts it.
func (a *App) dropIfUnauthorized(ctx context.Context, err error) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		if derr := a.store.DeleteSession(ctx); derr != nil {
			return errors.Join(err, derr)
		}
		return fmt.Errorf("%w: %w", ErrNotSignedIn, err)
	}
	return err
}
