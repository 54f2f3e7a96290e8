package cmd

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-localtube/internal/catalog"
)

var renameCmd = &cobra.Command{
	Use:   "rename <id> <new title>",
	Short: "Rename a video, moving its file to match",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, newTitle := args[0], args[1]

		cat, err := openCatalog()
		if err != nil {
			return err
		}

		if err := cat.Rename(id, newTitle); err != nil {
			switch {
			case errors.Is(err, catalog.ErrNotFound):
				return fmt.Errorf("no result available: no video with id %s", id)
			case errors.Is(err, catalog.ErrNameCollision):
				return fmt.Errorf("invalid input: a file with that name already exists, pick another title")
			default:
				return err
			}
		}

		rec, err := cat.Get(id)
		if err == nil {
			if idxErr := updateSearchIndex(rec); idxErr != nil {
				log.WithError(idxErr).Warn("Could not update search index")
			}
		}

		fmt.Printf("Renamed %s to %q\n", id, newTitle)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renameCmd)
}
