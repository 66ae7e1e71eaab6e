package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"expenses/internal/backend"
	"expenses/internal/config"
	applog "expenses/internal/log"
)

// Layouts accepted for dates typed on the command line.
const (
	DateTimeLayout = "2006-01-02 15:04"
	DateLayout     = "2006-01-02"
)

// rootOptions is shared by every subcommand; PersistentPreRunE fills the
// config and logger before any of them runs.
type rootOptions struct {
	envFile  string
	backend  string
	logLevel string

	cfg    *config.Config
	logger *applog.Logger
}

// NewRootCommand builds the expenses command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "expenses",
		Short: "Record, categorize and forecast personal expenses",
		Long: `expenses keeps a personal expense log in memory, in a JSON file or in a
SQL database. Expenses without a category are categorized from keyword rules,
and near-identical entries within an hour of each other are rejected.`,
		SilenceUsage:      true,
		PersistentPreRunE: opts.setup,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load environment from this file (default config.env, .env)")
	cmd.PersistentFlags().StringVarP(&opts.backend, "backend", "b", "", "storage backend: memory, json or relational (default DATA_BACKEND); memory is emptied when the command exits")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default LOG_LEVEL)")

	cmd.AddCommand(
		newAddCommand(opts),
		newUpdateCommand(opts),
		newDeleteCommand(opts),
		newListCommand(opts),
		newForecastCommand(opts),
		newCategoriesCommand(opts),
		newBackendsCommand(opts),
		newEventsCommand(opts),
	)

	return cmd
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *rootOptions) setup(cmd *cobra.Command, _ []string) error {
	if err := LoadEnvFile(o.envFile); err != nil {
		return err
	}

	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	logger, err := SetupLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	o.cfg = cfg
	o.logger = logger
	return nil
}

// selectedBackend is the --backend override, or empty for the configured one.
func (o *rootOptions) selectedBackend() (backend.BackendType, error) {
	if o.backend == "" {
		return "", nil
	}
	return backend.ParseBackendType(o.backend)
}

// open builds the app for the selected backend. Callers must Close it.
func (o *rootOptions) open(ctx context.Context) (*App, error) {
	bt, err := o.selectedBackend()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, o.cfg, o.logger, bt)
}

func (o *rootOptions) location() *time.Location {
	loc, err := o.cfg.Location()
	if err != nil {
		return time.Local
	}
	return loc
}

// parseWhen reads a date-time or a date (midnight) in the configured zone.
// Empty means now, truncated to the minute.
func (o *rootOptions) parseWhen(s string) (time.Time, error) {
	loc := o.location()
	if s == "" {
		return time.Now().In(loc).Truncate(time.Minute), nil
	}
	for _, layout := range []string{DateTimeLayout, DateLayout} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use %q or %q", s, DateTimeLayout, DateLayout)
}
