// Команда migrate управляет схемой PostgreSQL магазина: up, down и status.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/dailygoods/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

type config struct {
	direction string
	steps     int
	dsn       string
}

type schemaStore interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	SchemaStatus(ctx context.Context) (postgres.SchemaStatus, error)
	Close() error
}

var openSchemaStore = func(ctx context.Context, dsn string) (schemaStore, error) {
	return postgres.Open(ctx, dsn)
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		fail("%v", err)
	}
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.direction, "direction", "up", "migration direction: up|down|status")
	fs.IntVar(&cfg.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: POSTGRES_DSN)")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg.direction = strings.ToLower(strings.TrimSpace(cfg.direction))
	switch cfg.direction {
	case "up", "down", "status":
	default:
		return config{}, fmt.Errorf("unsupported direction: %s (use up|down|status)", cfg.direction)
	}

	cfg.dsn = strings.TrimSpace(cfg.dsn)
	if cfg.dsn == "" {
		cfg.dsn = strings.TrimSpace(getenv("POSTGRES_DSN"))
	}
	if cfg.dsn == "" {
		return config{}, errors.New("POSTGRES_DSN (or -dsn) is required")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config, out io.Writer) error {
	store, err := openSchemaStore(ctx, cfg.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	switch cfg.direction {
	case "up":
		if err := store.MigrateUp(ctx, cfg.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		if err := store.MigrateDown(ctx, cfg.steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	}

	status, err := store.SchemaStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	printStatus(out, cfg.direction, status)
	return nil
}

func printStatus(out io.Writer, direction string, status postgres.SchemaStatus) {
	prefix := "migration status"
	if direction != "status" {
		prefix = "migrate " + direction + " ok"
	}
	_, _ = fmt.Fprintf(out, "%s: version=%d applied=%d latest=%d pending=%d\n",
		prefix, status.Version, status.Applied, status.Latest, status.Pending)
	if direction == "status" && !status.UpToDate() {
		_, _ = fmt.Fprintf(out, "schema is behind: run -direction=up to apply %d migration(s)\n", status.Pending)
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
