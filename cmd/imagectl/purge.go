package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var purgeYes bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every image",
	Long: `Delete every image record together with its file and thumbnail.

The first file that cannot be deleted stops the purge. Records are only
removed when every file was deleted.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "confirm deletion of all images")
}

func runPurge(cmd *cobra.Command, args []string) error {
	if !purgeYes {
		return errors.New("refusing to delete all images without --yes")
	}

	result, err := images.DeleteAllImages(getContext(cmd))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Message)
	return nil
}
