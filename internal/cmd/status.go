package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current bus status",
	Long:  `Display instance counts and queue depths for the bus at the configured root.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctl, _, cleanup, err := openController()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireInitialized(ctl); err != nil {
		return err
	}

	manifest, err := ctl.ReadManifest()
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	summary, err := ctl.StatusSummary()
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	fmt.Printf("Bus root: %s\n", ctl.Root())
	if manifest != nil {
		fmt.Printf("Created: %s\n", manifest.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Controller PID: %d\n\n", manifest.ControllerPID)
	}

	total := 0
	for _, n := range summary.Instances {
		total += n
	}
	fmt.Printf("Instances: %d\n", total)

	statuses := make([]string, 0, len(summary.Instances))
	for status := range summary.Instances {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Printf("  %s: %d\n", status, summary.Instances[status])
	}

	fmt.Printf("\nPending work: %d\n", summary.PendingWork)
	fmt.Printf("Claimed work: %d\n", summary.ClaimedWork)
	fmt.Printf("Results: %d\n", summary.Results)
	fmt.Printf("Pending requests: %d\n", summary.PendingRequests)

	return nil
}
