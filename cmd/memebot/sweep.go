package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/meme/staging"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete stale files from the staging directory once",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		maxAge, _ := cmd.Flags().GetDuration("max-age")

		n, err := staging.New(config.StagingConfig{Dir: dir, MaxAge: maxAge}, nil).Sweep(time.Now())
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d file(s) from %s\n", n, dir)
		return err
	},
}

func init() {
	sweepCmd.Flags().String("dir", "./images", "Staging directory")
	sweepCmd.Flags().Duration("max-age", 5*time.Minute, "Remove files older than this")
	rootCmd.AddCommand(sweepCmd)
}
