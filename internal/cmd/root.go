package cmd

import (
	"strings"

	"github.com/mirabel-ai/icarus/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "icarusctl",
	Short: "Filesystem-mediated work coordination bus",
	Long: `Icarus coordinates one controller process and many worker processes
through a shared directory tree. Work items, instance records, results,
and escalation requests all live as JSON files under the bus root, so
any process that can see the directory can participate.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/icarus/config.yaml)")
	rootCmd.PersistentFlags().StringP("root", "r", "", "bus root directory (default is .icarus/bus)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("bus.root", rootCmd.PersistentFlags().Lookup("root"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ICARUS")
	// Replace dots with underscores for nested keys in env vars
	// e.g., ICARUS_POLLING_INTERVAL_MS for polling.interval_ms
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
