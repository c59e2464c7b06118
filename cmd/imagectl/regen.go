package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var regenCmd = &cobra.Command{
	Use:   "regen-thumbnail <id>...",
	Short: "Generate thumbnails again",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRegen,
}

func runRegen(cmd *cobra.Command, args []string) error {
	ctx := getContext(cmd)

	for _, id := range args {
		img, err := images.RegenerateThumbnail(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", img.ID, img.ThumbnailPath)
	}
	return nil
}
