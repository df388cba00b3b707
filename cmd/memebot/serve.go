package main

import (
	"context"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/memebot/core/cmd"
	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/meme/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot (webhook or long polling, per bot.run_mode)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return corecmd.Run(cmd.Context(), corecmd.Options{
			ConfigPath: configPath(cmd),
			Bootstrap: func(ctx context.Context, cfg *config.Config) (corecmd.TelegramApp, error) {
				return app.New(ctx, cfg, app.Options{})
			},
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
