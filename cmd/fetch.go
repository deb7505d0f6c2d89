package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newFetchCmd creates the 'fetch' subcommand, which runs one full harvest.
func newFetchCmd() *cobra.Command {
	var (
		cacheDir string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Harvest every bucket into the cache directory",
		Long: `Indexes every configured letter bucket, then fetches all listing pages
and word pages with a worker pool. The cache directory is wiped once indexing
succeeds and refilled with fresh batch files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg := e.cfg
			if cacheDir != "" {
				cfg.Cache.Dir = cacheDir
			}

			if err := checkCacheTarget(e.fs, cfg.Cache.Dir, force); err != nil {
				return err
			}

			h, err := newApp(cfg, e.logger, e.fs)
			if err != nil {
				return fmt.Errorf("initialize harvester: %w", err)
			}
			defer h.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := h.Run(ctx); err != nil {
				return err
			}
			e.logger.Info("fetch command finished", zap.String("cache_dir", cfg.Cache.Dir))
			fmt.Fprintln(cmd.OutOrStdout(), "Success!")
			return nil
		},
	}
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "cache directory (overrides cache.dir)")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing cache directory")
	return cmd
}

// checkCacheTarget refuses any existing path without force, and never lets
// force replace something that is not a directory.
func checkCacheTarget(fsys afero.Fs, dir string, force bool) error {
	info, err := fsys.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect cache dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cache path %s exists and is not a directory", dir)
	}
	if !force {
		return fmt.Errorf("cache directory %s already exists; rerun with --force to replace it", dir)
	}
	return nil
}
