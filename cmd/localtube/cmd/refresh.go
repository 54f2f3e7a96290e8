package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-probe duration and size for every video in the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return err
		}
		if err := cat.RefreshMetadata(context.Background()); err != nil {
			return err
		}
		fmt.Printf("Refreshed metadata for %d video(s)\n", len(cat.List()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
