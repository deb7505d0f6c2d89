// Package cmd defines the etym-crawler command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/etym-crawler/internal/app"
	"github.com/JakeFAU/etym-crawler/internal/config"
	"github.com/JakeFAU/etym-crawler/internal/logging"
)

// envKeyType is the key for storing the command environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// Harvester is the part of *app.App that commands use. Tests swap in fakes
// through newApp.
type Harvester interface {
	Run(ctx context.Context) error
	Close()
}

// env carries what PersistentPreRunE prepared for subcommands.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	fs     afero.Fs
}

// Factories are variables so tests can replace them.
var (
	loadConfig = config.Load
	newLogger  = logging.New
	newFs      = afero.NewOsFs
	newApp     = func(cfg config.Config, logger *zap.Logger, fs afero.Fs) (Harvester, error) {
		return app.New(cfg, logger, app.Options{Fs: fs})
	}
)

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "etym-crawler",
		Short: "Harvest etymology entries into a local cache.",
		Long: `etym-crawler walks the letter-indexed search listings of an etymology
dictionary, fetches every word page they link to, and stores the extracted
term and text in batch files under a local cache directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger, fs: newFs()})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok && e != nil {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./etym-crawler.yaml)")
	cmd.AddCommand(newFetchCmd(), newStatsCmd())
	return cmd
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("command environment not initialized")
	}
	return e, nil
}

// execute runs the command tree with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Failure: %v\n", err)
		return 1
	}
	return 0
}

// Execute is the main entry point.
func Execute() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
