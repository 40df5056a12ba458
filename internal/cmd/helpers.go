package cmd

import (
	"fmt"
	"os"

	"github.com/mirabel-ai/icarus/internal/bus"
	"github.com/mirabel-ai/icarus/internal/config"
	"github.com/mirabel-ai/icarus/internal/logging"
)

// openController builds a bus controller from the loaded configuration.
// The returned cleanup function closes the logger and must be called
// before the command exits.
func openController() (*bus.Controller, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	logger := logging.Nop()
	cleanup := func() {}
	if cfg.Logging.Enabled {
		logger, err = logging.New(cfg.Logging.File, cfg.Logging.Level)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to set up logging: %w", err)
		}
		cleanup = func() { _ = logger.Close() }
	}

	ctl := bus.NewController(cfg.Bus.ResolveRoot(cwd), bus.WithLogger(logger))
	return ctl, cfg, cleanup, nil
}

// requireInitialized returns an error if the bus root has no manifest.
func requireInitialized(ctl *bus.Controller) error {
	if !ctl.IsInitialized() {
		return fmt.Errorf("bus not initialized at %s. Run 'icarusctl init' first", ctl.Root())
	}
	return nil
}
