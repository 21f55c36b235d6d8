package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"elibrary/config"
	"elibrary/library"
)

// cliOptions carries the persistent flags shared by every subcommand.
type cliOptions struct {
	configPath string
	dataDir    string
	user       string
	verbose    bool
	asJSON     bool

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "elibrary",
		Short: "E-Library management system",
		Long: `elibrary keeps a small book catalog, its users and their borrow history
in flat comma-delimited files (or a SQLite database).

Run without arguments to start the interactive shell.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runShell(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to YAML config (default ./elibrary.yaml or $"+config.PathEnv+")")
	pf.StringVar(&opts.dataDir, "data-dir", "", "directory holding the library data (overrides config)")
	pf.StringVarP(&opts.user, "user", "u", "", "username to log in as for one-shot commands")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newShellCmd(opts),
		newInitCmd(opts),
		newRegisterCmd(opts),
		newBooksCmd(opts),
		newBorrowCmd(opts, library.ActionBorrowed),
		newBorrowCmd(opts, library.ActionReturned),
		newMyBooksCmd(opts),
		newRecordsCmd(opts),
		newBorrowedCmd(opts),
		newConfigCmd(opts),
	)
	return rootCmd
}

// setup loads configuration and builds the logger.
func (o *cliOptions) setup() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.dataDir != "" {
		cfg.Storage.DataDir = o.dataDir
	}
	o.cfg = cfg

	logger, err := newLogger(cfg.Log.Level, o.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.logger = logger
	return nil
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// openManager opens the configured store and makes sure it is seeded.
func (o *cliOptions) openManager() (*library.LibraryManager, error) {
	mgr, err := library.NewLibraryManager(*o.cfg, o.logger)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	if err := mgr.Bootstrap(); err != nil {
		mgr.Close()
		return nil, fmt.Errorf("bootstrap library: %w", err)
	}
	return mgr, nil
}
