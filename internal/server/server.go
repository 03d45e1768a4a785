// Package server orchestrates the plugin host: NATS client, optional trace
// database, host adapter subscription and HTTP health endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/record-plugins/internal/config"
	"github.com/morezero/record-plugins/pkg/commsutil"
	"github.com/morezero/record-plugins/pkg/db"
	"github.com/morezero/record-plugins/pkg/events"
	"github.com/morezero/record-plugins/pkg/host"
	"github.com/morezero/record-plugins/pkg/plugin"
	"github.com/morezero/record-plugins/pkg/registration"
)

const logPrefix = "server:server"

// Builder constructs the plugin served by the host from its configuration.
type Builder func(cfg plugin.Configuration, opts ...plugin.Option) plugin.Invoker

// Server holds the running components the HTTP handlers report on.
type Server struct {
	cfg        *config.Config
	reg        *registration.Registration
	subject    string
	connected  func() bool
	db         pinger
	httpServer *http.Server
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ParseLogLevel maps LOG_LEVEL onto a slog level; unknown values mean info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogging installs the process-wide slog text handler on stdout.
func SetupLogging(level string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLogLevel(level)})))
}

// Run starts the host, blocks until shutdown signal, then cleans up.
func Run(build Builder) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	SetupLogging(cfg.LogLevel)
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Load registration
	reg, err := registration.Load(cfg.RegistrationFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load registration: %w", logPrefix, err)
	}
	subject, err := cfg.Subject(reg.Name, reg.Version)
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%s - Starting plugin host for %s %s on %s", logPrefix, reg.Name, reg.Version, subject))

	pluginCfg := cfg.PluginConfiguration()
	if reg.UnsecureConfiguration != "" && cfg.UnsecureConfig == "" {
		pluginCfg = plugin.NewConfiguration(reg.UnsecureConfiguration, pluginCfg.Secure())
	}
	if reg.SecureConfiguration != "" && cfg.SecureConfig == "" {
		pluginCfg = plugin.NewConfiguration(pluginCfg.Unsecure(), reg.SecureConfiguration)
	}

	s := &Server{cfg: cfg, reg: reg, subject: subject}

	// Step 2: Connect to NATS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	s.connected = func() bool { return commsutil.IsConnected(nc) }

	// Step 3: Optional trace database
	var pool *pgxpool.Pool
	var traces host.TraceStore
	if cfg.TraceEnabled() {
		pool, err = openTraceDB(ctx, cfg)
		if err != nil {
			nc.Close()
			return err
		}
		s.db = pool
		traces = db.NewTraceLogRepository(pool)
	} else {
		slog.Info(fmt.Sprintf("%s - DATABASE_URL not set, trace persistence disabled", logPrefix))
	}
	closePool := func() {
		if pool != nil {
			pool.Close()
		}
	}

	// Step 4: Host adapter
	handler := host.NewHandler(host.NewHandlerParams{
		Plugin:       build(pluginCfg, cfg.PluginOptions()...),
		Registration: registration.Resolve(reg),
		Publisher:    events.NewCommsPublisher(nc, &events.CommsPublisherOpts{GlobalSubject: cfg.ExecutionEventSubject}),
		Traces:       traces,
	})
	sub, err := host.Subscribe(ctx, nc, subject, handler, cfg.RequestTimeout)
	if err != nil {
		closePool()
		nc.Close()
		return err
	}

	// Step 5: HTTP health server
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.routes()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Plugin host is ready", logPrefix))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	sub.Unsubscribe()
	s.httpServer.Shutdown(ctx)
	cancel()
	nc.Drain()
	closePool()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

func openTraceDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	if !cfg.RunMigrations {
		return pool, nil
	}

	migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
	}
	if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
	}
	return pool, nil
}

var _ pinger = (*pgxpool.Pool)(nil)
