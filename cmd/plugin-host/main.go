// Package main is the entrypoint for the plugin host serving the record guard plugin.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/record-plugins/internal/config"
	"github.com/morezero/record-plugins/internal/guard"
	"github.com/morezero/record-plugins/internal/server"
	"github.com/morezero/record-plugins/pkg/commsutil"
	"github.com/morezero/record-plugins/pkg/db"
	"github.com/morezero/record-plugins/pkg/host"
	"github.com/morezero/record-plugins/pkg/plugin"
	"github.com/morezero/record-plugins/pkg/registration"
)

const usage = `Usage: plugin-host [command]
       plugin-host serve                     Start the host (NATS subscription, HTTP health).
       plugin-host migrate up                Create the trace log schema.
       plugin-host migrate down              Explain how to roll back (migrations are forward-only).
       plugin-host migrate status            Show migration status.
       plugin-host ensure-db [name]          Create database if missing (default name: plugins_test). Uses DATABASE_URL host/user.
       plugin-host clear-trace               Truncate the trace log; schema is preserved.
       plugin-host invoke <message> [entity] Send one invocation to a running host and print the response.

Commands:
  serve            (default) Start the plugin host.
  migrate up       Run database migrations only.
  migrate down     Forward-only notice.
  migrate status   Show current migration status.
  ensure-db [name] Create database (e.g. plugins_test) on the same host as DATABASE_URL.
  clear-trace      Truncate plugin_trace_log.
  invoke           Request/reply smoke test against PLUGIN_SUBJECT (or the derived subject).

Environment: COMMS_URL, PLUGIN_REGISTRATION_FILE, PLUGIN_UNSECURE_CONFIG, PLUGIN_SECURE_CONFIG,
DATABASE_URL (optional for serve; required for migrate, ensure-db, clear-trace), MIGRATION_PATH, HTTP_PORT, LOG_LEVEL.
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n%s", err, usage)
			os.Exit(1)
		}
		log.Fatalf("plugin-host: %v", err)
	}
}

func buildGuard(cfg plugin.Configuration, opts ...plugin.Option) plugin.Invoker {
	return guard.New(cfg, opts...)
}

func run(args []string, stdout io.Writer) error {
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "serve", "":
		return server.Run(buildGuard)
	case "migrate":
		if len(args) < 2 {
			return fmt.Errorf("%w: migrate requires a subcommand (up, down, status)", errUsage)
		}
		switch args[1] {
		case "up":
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
				if err != nil {
					return fmt.Errorf("load migrations: %w", err)
				}
				return db.RunMigrations(ctx, pool, migrationSQL)
			})
		case "status":
			return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
				return db.MigrationStatus(ctx, pool, cfg.MigrationPath, stdout)
			})
		case "down":
			return db.MigrationDown(context.Background(), nil, stdout)
		default:
			return fmt.Errorf("%w: unknown migrate subcommand %q (use up, down, status)", errUsage, args[1])
		}
	case "clear-trace":
		return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
			return db.ClearTraceLog(ctx, pool)
		})
	case "ensure-db":
		name := "plugins_test"
		if len(args) > 1 && args[1] != "" {
			name = args[1]
		}
		return runEnsureDB(name, stdout)
	case "invoke":
		if len(args) < 2 {
			return fmt.Errorf("%w: invoke requires a message name", errUsage)
		}
		entity := ""
		if len(args) > 2 {
			entity = args[2]
		}
		return runInvoke(args[1], entity, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// withPool loads config, requires DATABASE_URL and runs fn with an open pool.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	server.SetupLogging(cfg.LogLevel)
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func runEnsureDB(name string, stdout io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	targetURL, err := db.WithDatabase(cfg.DatabaseURL, name)
	if err != nil {
		return err
	}
	if err := db.EnsureDatabase(context.Background(), targetURL); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Database %q is ready.\n", name)
	return nil
}

func runInvoke(message, entity string, stdout io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	reg, err := registration.Load(cfg.RegistrationFile)
	if err != nil {
		return err
	}
	subject, err := cfg.Subject(reg.Name, reg.Version)
	if err != nil {
		return err
	}

	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-cli")
	if err != nil {
		return err
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+5*time.Second)
	defer cancel()
	resp, err := host.Call(ctx, nc, subject, &host.InvocationRequest{MessageName: message, PrimaryEntityName: entity})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
