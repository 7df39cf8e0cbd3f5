package cli

import (
	"fmt"

	"github.com/ppiankov/decadal/internal/cache"
	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the download cache for remote inputs",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached download",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		removed, err := cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL).Clear()
		if err != nil {
			return fmt.Errorf("clear cache %s: %w", cfg.Cache.Dir, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d cached download(s) from %s\n", removed, cfg.Cache.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
