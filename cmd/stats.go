package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/etym-crawler/internal/cache"
)

// newStatsCmd creates the 'stats' subcommand, which summarizes a cache.
func newStatsCmd() *cobra.Command {
	var cacheDir string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the contents of a cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			dir := e.cfg.Cache.Dir
			if cacheDir != "" {
				dir = cacheDir
			}
			exists, err := afero.DirExists(e.fs, dir)
			if err != nil {
				return fmt.Errorf("inspect cache dir: %w", err)
			}
			if !exists {
				return fmt.Errorf("cache directory %s does not exist", dir)
			}

			files, err := cache.ReadAll(e.fs, dir)
			if err != nil {
				return err
			}
			records := 0
			terms := make(map[string]struct{})
			for _, f := range files {
				records += len(f.Records)
				for _, r := range f.Records {
					terms[r.Term] = struct{}{}
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "directory: %s\n", dir)
			fmt.Fprintf(out, "files:     %d\n", len(files))
			fmt.Fprintf(out, "records:   %d\n", records)
			fmt.Fprintf(out, "terms:     %d\n", len(terms))
			return nil
		},
	}
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "cache directory (overrides cache.dir)")
	return cmd
}
