// Package server wires the auth core to PostgreSQL, NATS and the gRPC
// transport, and runs them until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/TimShare/TaskFlow/internal/cryptox"
	"github.com/TimShare/TaskFlow/internal/events"
	"github.com/TimShare/TaskFlow/internal/logging"
	"github.com/TimShare/TaskFlow/internal/server/auth"
	"github.com/TimShare/TaskFlow/internal/server/config"
	"github.com/TimShare/TaskFlow/internal/server/metrics"
	"github.com/TimShare/TaskFlow/internal/server/repositories/repomanager"
	"github.com/TimShare/TaskFlow/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/TimShare/TaskFlow/internal/server/grpc"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	publisher   events.Publisher
	userService *services.UserService
	sessions    *services.SessionManager
	registry    *prometheus.Registry
}

// Components are the collaborators NewApp assembles. OpenDB exposes them to
// the admin CLI without starting any listener.
type Components struct {
	DB       *sql.DB
	Repos    repomanager.RepositoryManager
	Users    *services.UserService
	Sessions *services.SessionManager
	Hasher   *cryptox.Argon2idHasher
}

// OpenDB connects to PostgreSQL and applies pending migrations.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, repomanager.RepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations error: %w", err)
	}
	return db, m, nil
}

// NewComponents builds the services on top of an open database.
func NewComponents(cfg *config.Config, db *sql.DB, m repomanager.RepositoryManager, p events.Publisher, l logging.Logger) (*Components, error) {
	codec, err := auth.NewCodec([]byte(cfg.JWTSecret), cfg.JWTAlgorithm)
	if err != nil {
		return nil, err
	}
	hasher := cryptox.NewArgon2idHasher(cfg.HasherParams())

	us := services.NewUserService(db, m, hasher, p, l)
	sm := services.NewSessionManager(us, m.RefreshTokens(db), codec, hasher, services.SessionConfig{
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, l)

	return &Components{DB: db, Repos: m, Users: us, Sessions: sm, Hasher: hasher}, nil
}

// NewPublisher picks NATS when a URL is configured.
func NewPublisher(cfg *config.Config, l logging.Logger) events.Publisher {
	if cfg.NATSURL == "" {
		return events.NopPublisher{}
	}
	return events.NewNATSPublisher(cfg.NATSURL, cfg.EventSubjectPrefix, l)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, m, err := OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	publisher := NewPublisher(c, logger)

	comps, err := NewComponents(c, db, m, publisher, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		publisher:   publisher,
		userService: comps.Users,
		sessions:    comps.Sessions,
		registry:    reg,
	}, nil
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	gm, err := metrics.NewGRPCMetrics(app.registry)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.sessions, app.userService, gm.UnaryServerInterceptor())

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if app.config.MetricsAddr == "" {
		return
	}

	srv := metrics.NewServer(app.config.MetricsAddr, app.registry)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until SIGINT, SIGTERM or SIGQUIT, or until a listener fails.
func (app *App) Run(ctx context.Context) error {

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.publisher.Start(ctx); err != nil {
		return fmt.Errorf("event publisher: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "Stopping app...")
	return app.close()
}

func (app *App) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(app.publisher.Stop(ctx), app.db.Close())
}
