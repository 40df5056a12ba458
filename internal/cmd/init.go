package cmd

import (
	"fmt"

	"github.com/mirabel-ai/icarus/internal/errors"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the bus root directory",
	Long: `Create the bus directory layout and write the manifest.
Worker processes can attach once the bus is initialized.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctl, _, cleanup, err := openController()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := ctl.Initialize(); err != nil {
		if errors.Is(err, errors.ErrAlreadyInitialized) {
			return fmt.Errorf("bus already initialized at %s", ctl.Root())
		}
		return fmt.Errorf("failed to initialize: %w", err)
	}

	fmt.Println("Icarus bus initialized successfully!")
	fmt.Printf("Bus root: %s\n", ctl.Root())
	return nil
}
