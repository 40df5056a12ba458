package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List pending escalation requests",
	Long:  `List escalation requests from workers that are waiting for a response.`,
	RunE:  runRequests,
}

func init() {
	rootCmd.AddCommand(requestsCmd)
}

func runRequests(cmd *cobra.Command, args []string) error {
	ctl, _, cleanup, err := openController()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireInitialized(ctl); err != nil {
		return err
	}

	requests, err := ctl.Escalation().ListPending()
	if err != nil {
		return fmt.Errorf("failed to list requests: %w", err)
	}

	if len(requests) == 0 {
		fmt.Println("No pending requests")
		return nil
	}

	for i, req := range requests {
		fmt.Printf("[%d] %s (%s)\n", i+1, req.ID, req.Type)
		fmt.Printf("    From: %s\n", req.InstanceID)
		if req.WorkID != "" {
			fmt.Printf("    Work: %s\n", req.WorkID)
		}
		fmt.Printf("    Message: %s\n", req.Message)
		fmt.Printf("    Opened: %s\n", req.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}

	return nil
}
