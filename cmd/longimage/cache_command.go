package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"longimage/internal/cache"
	"longimage/internal/config"
	"longimage/internal/services"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the conversion cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func openCacheStore(ctx *commandContext) (*cache.Store, *config.Config, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Cache.Enabled {
		return nil, nil, errors.New("the cache is disabled in the configuration")
	}
	store, err := cache.Open(cfg.Cache.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	return store, cfg, nil
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry count and disk usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openCacheStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Metric", "Value"},
				[][]string{
					{"Directory", cfg.Cache.Dir},
					{"Entries", strconv.Itoa(stats.Entries)},
					{"Disk usage", humanBytes(stats.TotalBytes)},
					{"Size limit", fmt.Sprintf("%d GiB", cfg.Cache.MaxGiB)},
					{"Max entry age", fmt.Sprintf("%d days", cfg.Cache.MaxAgeDays)},
				},
				2,
			))
			return nil
		},
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Evict stale and excess cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openCacheStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			maxAge := time.Duration(cfg.Cache.MaxAgeDays) * 24 * time.Hour
			maxBytes := int64(cfg.Cache.MaxGiB) << 30
			result, err := store.Prune(cmd.Context(), maxAge, maxBytes)
			if err != nil {
				if errors.Is(err, services.ErrBusy) {
					return errors.New("another process is maintaining the cache; try again later")
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries, reclaimed %s\n",
				result.Removed, humanBytes(result.ReclaimedBytes))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openCacheStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.Clear(cmd.Context())
			if err != nil {
				if errors.Is(err, services.ErrBusy) {
					return errors.New("another process is maintaining the cache; try again later")
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries, reclaimed %s\n",
				result.Removed, humanBytes(result.ReclaimedBytes))
			return nil
		},
	}
}
