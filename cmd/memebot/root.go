package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/memebot/core/cmd"
	"github.com/m3rciful/memebot/core/config"
)

const defaultConfigPath = "config.yaml"

var rootCmd = &cobra.Command{
	Use:           "memebot",
	Short:         "Telegram bot that walks users through creating memes",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (overrides $CONFIG_PATH)")
}

func configPath(cmd *cobra.Command) string {
	flag, _ := cmd.Flags().GetString("config")
	return corecmd.ResolveConfigPath(flag, corecmd.DefaultConfigEnv, defaultConfigPath)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configPath(cmd))
}
