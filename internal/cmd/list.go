package cmd

import (
	"fmt"

	"github.com/mirabel-ai/icarus/internal/workqueue"
	"github.com/spf13/cobra"
)

var listClaimed bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List work items in the queue",
	Long:  `List pending work items, or claimed items with --claimed.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listClaimed, "claimed", false, "list claimed items instead of pending")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctl, _, cleanup, err := openController()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireInitialized(ctl); err != nil {
		return err
	}

	var items []workqueue.WorkItem
	if listClaimed {
		items, err = ctl.WorkQueue().ListClaimed()
	} else {
		items, err = ctl.WorkQueue().ListPending()
	}
	if err != nil {
		return fmt.Errorf("failed to list work: %w", err)
	}

	if len(items) == 0 {
		if listClaimed {
			fmt.Println("No claimed work")
		} else {
			fmt.Println("No pending work")
		}
		return nil
	}

	for i, item := range items {
		fmt.Printf("[%d] %s (%s, priority %d)\n", i+1, item.ID, item.Status, item.Priority)
		fmt.Printf("    Type: %s\n", item.Type)
		fmt.Printf("    Task: %s\n", item.Description)
		if item.ClaimedBy != "" {
			fmt.Printf("    Claimed by: %s\n", item.ClaimedBy)
		}
		fmt.Println()
	}

	return nil
}
