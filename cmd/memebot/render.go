package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/meme/render"
)

var renderCmd = &cobra.Command{
	Use:   "render <src> <dst>",
	Short: "Caption an image file the way the bot does",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		top, _ := flags.GetString("top")
		bottom, _ := flags.GetString("bottom")
		font, _ := flags.GetString("font")
		margin, _ := flags.GetFloat64("bottom-margin")

		r, err := render.New(config.RenderConfig{FontPath: font, BottomMargin: margin})
		if err != nil {
			return err
		}
		if err := r.RenderFile(args[0], args[1], top, bottom); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
		return nil
	},
}

func init() {
	renderCmd.Flags().String("top", "", "Header caption")
	renderCmd.Flags().String("bottom", "", "Footer caption")
	renderCmd.Flags().String("font", "", "TTF/OTF font file (default: embedded Go Bold)")
	renderCmd.Flags().Float64("bottom-margin", 30, "Footer distance from the bottom edge in pixels")
	rootCmd.AddCommand(renderCmd)
}
