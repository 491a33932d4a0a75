package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prudhvinik1/smsledger/internal/database"
	"github.com/prudhvinik1/smsledger/internal/logger"
)

// dbOptions are shared by every command that talks to Postgres.
type dbOptions struct {
	databaseURL string
	timezone    string
	logLevel    string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &dbOptions{}

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the SMS transaction ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	rootCmd.PersistentFlags().StringVar(&opts.timezone, "timezone", envOr("LEDGER_TIMEZONE", "UTC"), "reference time zone for monthly queries")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level")

	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newMigrateCommand(opts))
	rootCmd.AddCommand(newStatsCommand(opts))
	rootCmd.AddCommand(newDevicesCommand(opts))

	return rootCmd
}

func (o *dbOptions) logger(w io.Writer) zerolog.Logger {
	return logger.NewWithWriter(w).Level(logger.ParseLevel(o.logLevel))
}

func (o *dbOptions) location() (*time.Location, error) {
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", o.timezone, err)
	}
	return loc, nil
}

func (o *dbOptions) connect(ctx context.Context, log zerolog.Logger) (*pgxpool.Pool, error) {
	if o.databaseURL == "" {
		return nil, errors.New("--database-url or DATABASE_URL is required")
	}
	pool, err := database.NewPostgresPool(ctx, o.databaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return pool, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
