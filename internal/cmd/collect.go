package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var collectClear bool

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect submitted results",
	Long: `Print all submitted results in completion order.
With --clear, results are removed from the bus after printing.`,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().BoolVar(&collectClear, "clear", false, "remove results after collecting")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctl, _, cleanup, err := openController()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireInitialized(ctl); err != nil {
		return err
	}

	records, err := ctl.Results().Collect(collectClear)
	if err != nil {
		return fmt.Errorf("failed to collect results: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No results")
		return nil
	}

	for i, rec := range records {
		fmt.Printf("[%d] %s (by %s at %s)\n", i+1, rec.WorkID, rec.InstanceID, rec.CompletedAt.Format("2006-01-02 15:04:05"))
		payload, err := json.MarshalIndent(rec.Result, "    ", "  ")
		if err == nil {
			fmt.Printf("    %s\n", payload)
		}
		fmt.Println()
	}

	return nil
}
