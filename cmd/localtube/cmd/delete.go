package cmd

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-localtube/index"
	"go-localtube/internal/catalog"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a video and its file from the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		cat, err := openCatalog()
		if err != nil {
			return err
		}

		if err := cat.Delete(id); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return fmt.Errorf("no result available: no video with id %s", id)
			}
			return err
		}

		// Derived state: cached thumbnail and search entry go with the record.
		newThumbCache().Remove(id)
		if idx, idxErr := index.OpenOrCreateIndex(globalConfig.BleveIndexPath); idxErr == nil {
			if delErr := index.DeleteItem(idx, id); delErr != nil {
				log.WithError(delErr).Warn("Could not remove video from search index")
			}
			idx.Close()
		}

		fmt.Printf("Deleted %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
