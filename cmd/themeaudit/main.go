// Command themeaudit finds duplicated theme mappings in a consultation
// database and reports the ones that need a human to look at them.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"themeaudit/internal/config"
	"themeaudit/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&cli{})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// cli carries what every subcommand needs once the root has initialised.
type cli struct {
	verbose    bool
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd(c *cli) *cobra.Command {
	auditOpts := &runOptions{format: "text"}

	root := &cobra.Command{
		Use:   "themeaudit",
		Short: "Find concerning duplicate theme mappings in a consultation",
		Long: `themeaudit inspects the theme mappings of a consultation's free-text
questions, groups mappings that attach the same theme to the same answer more
than once, and lists the ones whose audit state, stance or history looks wrong.

Run without a subcommand to audit the latest consultation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAudit(cmd, auditOpts)
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (default: THEMEAUDIT_CONFIG)")
	addRunFlags(root, auditOpts)

	root.AddCommand(
		newRunCmd(c),
		newQuestionCmd(c),
		newMigrateCmd(c),
		newHistoryCmd(c),
		newSearchCmd(c),
	)
	return root
}

func (c *cli) setup() error {
	path := c.configPath
	if path == "" {
		path = os.Getenv("THEMEAUDIT_CONFIG")
	}
	if path == "" {
		c.cfg = config.Load()
	} else {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		c.cfg = cfg
	}

	if c.logger != nil {
		return nil
	}

	zapCfg := zap.NewProductionConfig()
	if level, err := zapcore.ParseLevel(c.cfg.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	if c.verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.logger = logger
	return nil
}

func (c *cli) openStore(ctx context.Context) (*sql.DB, *store.SQLStore, error) {
	db, err := store.Open(ctx, c.cfg.DatabaseDriver, c.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	c.logger.Debug("database connected", zap.String("driver", c.cfg.DatabaseDriver))
	return db, store.NewSQLStore(db), nil
}
