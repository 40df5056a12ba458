package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	cleanupThreshold time.Duration
	cleanupDead      bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale or dead instance records",
	Long: `Remove instance records whose heartbeat is older than the threshold.
With --dead, also remove instances whose process no longer exists.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupThreshold, "threshold", 0, "heartbeat age before an instance is stale (default from config)")
	cleanupCmd.Flags().BoolVar(&cleanupDead, "dead", false, "also remove instances with dead processes")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctl, cfg, cleanup, err := openController()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireInitialized(ctl); err != nil {
		return err
	}

	threshold := cleanupThreshold
	if !cmd.Flags().Changed("threshold") {
		threshold = cfg.Cleanup.StaleThreshold()
	}

	stale, err := ctl.Registry().CleanupStale(threshold)
	if err != nil {
		return fmt.Errorf("failed to clean up stale instances: %w", err)
	}
	fmt.Printf("Removed %d stale instance(s)\n", len(stale))

	if cleanupDead || cfg.Cleanup.ReapDead {
		dead, err := ctl.Registry().CleanupDead()
		if err != nil {
			return fmt.Errorf("failed to clean up dead instances: %w", err)
		}
		fmt.Printf("Removed %d dead instance(s)\n", len(dead))
	}

	return nil
}
