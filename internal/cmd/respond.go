package cmd

import (
	"fmt"

	"github.com/mirabel-ai/icarus/internal/errors"
	"github.com/mirabel-ai/icarus/internal/escalation"
	"github.com/spf13/cobra"
)

var respondMessage string

var respondCmd = &cobra.Command{
	Use:   "respond [request-id] [decision]",
	Short: "Respond to an escalation request",
	Long: `Answer a pending escalation request. The decision is free-form,
e.g. "approve", "deny", or an instruction for the worker.`,
	Args: cobra.ExactArgs(2),
	RunE: runRespond,
}

func init() {
	respondCmd.Flags().StringVarP(&respondMessage, "message", "m", "", "additional explanation for the worker")
	rootCmd.AddCommand(respondCmd)
}

func runRespond(cmd *cobra.Command, args []string) error {
	ctl, _, cleanup, err := openController()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireInitialized(ctl); err != nil {
		return err
	}

	requestID, decision := args[0], args[1]
	err = ctl.Escalation().Respond(requestID, escalation.Response{
		Decision: decision,
		Message:  respondMessage,
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("no such request: %s", requestID)
		}
		return fmt.Errorf("failed to respond: %w", err)
	}

	fmt.Printf("Responded to %s: %s\n", requestID, decision)
	return nil
}
