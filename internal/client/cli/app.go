// Package cli is the stagepass command-line client. Each invocation runs one
// subcommand against the account API and keeps the resulting tokens in a
// local bbolt file, so later commands act as the signed-in user.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/client/api"
	"github.com/dmitrijs2005/stagepass/internal/client/config"
	"github.com/dmitrijs2005/stagepass/internal/client/storage"
	"github.com/dmitrijs2005/stagepass/internal/client/storage/boltdb"
	"github.com/dmitrijs2005/stagepass/internal/filex"
	"github.com/dmitrijs2005/stagepass/internal/flagx"
)

// ErrUnknownCommand is returned for anything not listed in usage.
var ErrUnknownCommand = errors.New("unknown command")

const sessionFile = "session.db"

// API is the part of *api.Client the commands use.
type API interface {
	SignUp(ctx context.Context, req api.SignUpRequest) (*api.Tokens, string, error)
	SignIn(ctx context.Context, email, password string) (*api.Tokens, string, error)
	Refresh(ctx context.Context, refreshToken string) (*api.Tokens, string, error)
	ChangePassword(ctx context.Context, accessToken, password, confirmation string) (*api.Tokens, string, error)
	Delete(ctx context.Context, accessToken string) (string, error)
	Health(ctx context.Context) error
}

type App struct {
	api    API
	store  storage.SessionStore
	reader *bufio.Reader
	out    io.Writer
	now    func() time.Time
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	dir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return nil, err
	}

	store, err := boltdb.New(ctx, filepath.Join(dir, sessionFile))
	if err != nil {
		return nil, fmt.Errorf("error opening session store: %w", err)
	}

	return &App{
		api:    api.NewClient(c.ServerURL, c.RequestTimeout),
		store:  store,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		now:    time.Now,
	}, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

type command struct {
	help string
	run  func(a *App, ctx context.Context) error
}

var commands = map[string]command{
	"signup":  {"create an account and sign in", (*App).SignUp},
	"signin":  {"sign in with email and password", (*App).SignIn},
	"refresh": {"exchange the stored refresh token for a new pair", (*App).Refresh},
	"passwd":  {"change the password; other sessions are signed out", (*App).ChangePassword},
	"delete":  {"deactivate the account", (*App).Delete},
	"status":  {"show the stored session and server health", (*App).Status},
}

// Run dispatches the first positional argument in args.
func (a *App) Run(ctx context.Context, args []string) error {
	name, _ := flagx.SplitCommand(args)
	if name == "" || name == "help" {
		a.usage()
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		a.usage()
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return cmd.run(a, ctx)
}

func (a *App) usage() {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintln(a.out, "usage: client [-a url] [-d dir] [-t seconds] [-c config.json] <command>")
	fmt.Fprintln(a.out)
	for _, n := range names {
		fmt.Fprintf(a.out, "  %-8s %s\n", n, commands[n].help)
	}
}
