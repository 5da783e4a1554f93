package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/iwacpipe/internal/cache"
	"github.com/ppiankov/iwacpipe/internal/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the API page cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached API page",
	Long: `Remove the pages stored by the configured cache backend.

The backend is chosen from cache.redis_url and cache.dir as for a run,
whether or not cache.enabled is set. Only iwacpipe keys are removed
from Redis.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		return clearCache(cmd.Context(), cfg.Cache, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

// clearCache empties the backend cfg points at. A memory-only cache
// holds nothing between runs, so there is nothing to clear.
func clearCache(ctx context.Context, cfg model.CacheConfig, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.RedisURL == "" && cfg.Dir == "" {
		fmt.Fprintln(w, "No persistent cache configured (set cache.dir or cache.redis_url)")
		return nil
	}

	cfg.Enabled = true
	c, closeCache, err := cache.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Warn().Err(err).Msg("Failed to close page cache")
		}
	}()

	if err := c.Clear(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	if cfg.RedisURL != "" {
		fmt.Fprintln(w, "Cleared cached pages in Redis")
	} else {
		fmt.Fprintf(w, "Cleared cached pages in %s\n", cfg.Dir)
	}
	return nil
}
