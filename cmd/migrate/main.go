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

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/restaurant/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "RESTAURANT_POSTGRES_DSN"
)

var errDSNRequired = errors.New(envPostgresDSN + " (or -dsn) is required")

type options struct {
	direction string
	steps     int
	dsn       string
}

func main() {
	_ = godotenv.Load()

	if err := run(os.Args[1:], os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	switch opts.direction {
	case "up":
		if err := store.MigrateUp(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		if err := store.MigrateDown(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	}

	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	printState(stdout, opts.direction, state)
	return nil
}

func parseOptions(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.direction, "direction", "up", "migration direction: up|down|status")
	fs.IntVar(&opts.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.direction = strings.ToLower(strings.TrimSpace(opts.direction))
	switch opts.direction {
	case "up", "down", "status":
	default:
		return options{}, fmt.Errorf("unsupported direction: %s (use up|down|status)", opts.direction)
	}

	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" {
		opts.dsn = strings.TrimSpace(os.Getenv(envPostgresDSN))
	}
	if opts.dsn == "" {
		return options{}, errDSNRequired
	}
	return opts, nil
}

func printState(w io.Writer, direction string, state postgres.MigrationState) {
	prefix := "migration status"
	if direction != "status" {
		prefix = "migrate " + direction + " ok"
	}
	_, _ = fmt.Fprintf(w, "%s: version=%d applied=%d pending=%d\n", prefix, state.Version, state.Applied, len(state.Pending))
	for _, name := range state.Pending {
		_, _ = fmt.Fprintf(w, "  pending %s\n", name)
	}
}
