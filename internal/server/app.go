// Package server wires configuration, storage, services and the HTTP and
// gRPC health endpoints together and runs them until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/dbx"
	"github.com/dmitrijs2005/stagepass/internal/logging"
	"github.com/dmitrijs2005/stagepass/internal/server/auth"
	"github.com/dmitrijs2005/stagepass/internal/server/config"
	"github.com/dmitrijs2005/stagepass/internal/server/passwords"
	"github.com/dmitrijs2005/stagepass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/stagepass/internal/server/services"

	gs "github.com/dmitrijs2005/stagepass/internal/server/grpc"
	hs "github.com/dmitrijs2005/stagepass/internal/server/http"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	userService *services.UserService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	hasher, err := passwords.New(c.PasswordHasher, c.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher init error: %w", err)
	}

	issuer, err := auth.NewIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration, c.TokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("token issuer init error: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	us := services.NewUserService(dbx.NewSQLTransactor(db, uint64(c.TxMaxRetries)), rm, hasher, issuer, c, logger)

	return &App{config: c, logger: logger, db: db, userService: us}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := hs.NewServer(app.config.EndpointAddrHTTP, app.userService, app.db, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHealthServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.db, app.config.HealthCheckInterval, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

type expiredTokenSweeper interface {
	SweepExpiredTokens(ctx context.Context) (int64, error)
}

// runSweeper deletes expired refresh tokens every interval until ctx ends.
func runSweeper(ctx context.Context, s expiredTokenSweeper, interval time.Duration, logger logging.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpiredTokens(ctx)
			if err != nil {
				logger.Warn(ctx, "expired token sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info(ctx, "expired refresh tokens removed", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHealthServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		runSweeper(ctx, app.userService, app.config.SweepInterval, app.logger.With("module", "sweeper"))
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
