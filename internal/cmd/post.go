package cmd

import (
	"fmt"

	"github.com/mirabel-ai/icarus/internal/workqueue"
	"github.com/spf13/cobra"
)

var (
	postType     string
	postPriority int
	postInputs   map[string]string
)

var postCmd = &cobra.Command{
	Use:   "post [description]",
	Short: "Post a work item to the queue",
	Long: `Post a new work item to the pending queue.
Any idle worker attached to the bus can claim it.`,
	Args: cobra.ExactArgs(1),
	RunE: runPost,
}

func init() {
	postCmd.Flags().StringVarP(&postType, "type", "t", "task", "work item type")
	postCmd.Flags().IntVarP(&postPriority, "priority", "p", workqueue.PriorityDefault, "priority (1 highest, 10 lowest)")
	postCmd.Flags().StringToStringVarP(&postInputs, "input", "i", nil, "input key=value pairs")
	rootCmd.AddCommand(postCmd)
}

func runPost(cmd *cobra.Command, args []string) error {
	ctl, _, cleanup, err := openController()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireInitialized(ctl); err != nil {
		return err
	}

	inputs := make(map[string]any, len(postInputs))
	for k, v := range postInputs {
		inputs[k] = v
	}

	id, err := ctl.WorkQueue().Post(workqueue.WorkItem{
		Type:        postType,
		Description: args[0],
		Priority:    postPriority,
		Inputs:      inputs,
		CreatedBy:   "icarusctl",
	})
	if err != nil {
		return fmt.Errorf("failed to post work: %w", err)
	}

	fmt.Printf("Posted work item %s\n", id)
	return nil
}
