package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"longimage/internal/workspace"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAgeHours int

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover job workspaces",
		Long: `Clean sweeps the work directory for workspaces left behind by
interrupted runs and removes those older than the age threshold.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.buildLogger(false)
			if err != nil {
				return err
			}

			maxAge := time.Duration(maxAgeHours) * time.Hour
			result := workspace.CleanStale(cfg.Paths.WorkDir, maxAge, logger)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d stale workspace(s)\n", len(result.Removed))
			for _, failure := range result.Errors {
				fmt.Fprintf(out, "failed to remove %s: %v\n", failure.Path, failure.Error)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAgeHours, "max-age", 24, "Age threshold in hours")
	return cmd
}
