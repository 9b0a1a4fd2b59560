package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/coach/internal/config"
	"github.com/JonMunkholm/coach/internal/core"
	"github.com/JonMunkholm/coach/internal/logging"
	"github.com/JonMunkholm/coach/internal/store"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitPartial = 2 // import finished but skipped some records
)

// errPartial is returned by import commands when FailedRows is non-empty.
// The result has already been printed.
var errPartial = errors.New("import completed with skipped records")

// app holds state shared by every subcommand of one invocation.
type app struct {
	cfg       *config.Config
	format    OutputFormat
	flagFmt   string
	openStore func(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error)
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(store.Open)
}

func newRootCmd(open func(context.Context, config.DatabaseConfig) (store.Store, error)) *cobra.Command {
	a := &app{openStore: open}

	cmd := &cobra.Command{
		Use:   "coach",
		Short: "Import swim meet entries and results",
		Long: `Import vendor CSV entry exports and HTML results reports into the coach
database, and inspect the import ledger.

Configuration is read from the environment; see DB_DRIVER, DATABASE_URL,
SQLITE_PATH and RESULTS_URL.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	cmd.PersistentFlags().StringVar(&a.flagFmt, "format", "text", "Output format: text or json")

	cmd.AddCommand(
		newImportCmd(a),
		newHistoryCmd(a),
		newMeetCmd(a),
		newMigrateCmd(a),
	)
	return cmd
}

// setup loads configuration and logging before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.format = OutputFormat(strings.ToLower(a.flagFmt))
	if a.format != FormatText && a.format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", a.flagFmt)
	}

	// A missing .env is normal; real env vars win over the file.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

// open connects to the configured database and ensures the schema exists.
func (a *app) open(ctx context.Context) (store.Store, error) {
	st, err := a.openStore(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := st.CreateSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// service builds the import service over st from configuration.
func (a *app) service(st store.Store) *core.Service {
	var fetcher *core.ResultsFetcher
	if a.cfg.Results.URL != "" {
		fetcher = core.NewResultsFetcher(a.cfg.Results.URL, a.cfg.Results.UserAgent, a.cfg.Results.FetchTimeout)
	}
	return core.NewService(st, core.Options{
		MaxFileSize:   a.cfg.Import.MaxFileSize,
		MaxConcurrent: a.cfg.Import.MaxConcurrent,
		MaxWait:       a.cfg.Import.MaxWaitTime,
		ImportTimeout: a.cfg.Import.Timeout,
		NameCacheTTL:  a.cfg.Import.NameCacheTTL,
		Fetcher:       fetcher,
	})
}

// Execute runs the CLI and returns the process exit code. SIGINT and SIGTERM
// cancel the running import between files.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, NewRootCmd(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errPartial):
		return ExitPartial
	}

	msg := err.Error()
	if core.IsUserFacing(err) {
		msg = core.FormatUserError(err) + "\n  " + err.Error()
	}
	fmt.Fprintf(stderr, "Error: %s\n", msg)
	return ExitError
}
