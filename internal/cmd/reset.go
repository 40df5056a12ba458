package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all bus state",
	Long: `Remove every work item, instance record, result, stream log, and
escalation request from the bus, leaving it initialized and empty.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "skip confirmation")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctl, _, cleanup, err := openController()
	if err != nil {
		return err
	}
	defer cleanup()

	if !resetForce {
		fmt.Printf("This will erase all bus state under %s. Continue? [y/N] ", ctl.Root())
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := ctl.Reset(); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}

	fmt.Println("Bus reset")
	return nil
}
