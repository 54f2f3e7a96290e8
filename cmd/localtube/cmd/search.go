package cmd

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-localtube/index"
)

var rebuildIndexFlag bool

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Full-text search over the library",
	Long: `Searches the bleve index built from catalog records. Fields are
queryable by their lowercase names, e.g. '+title:interview'. Use --rebuild
to re-derive the whole index from the catalog file first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		if rebuildIndexFlag {
			if err := rebuildSearchIndex(); err != nil {
				return err
			}
		}

		idx, err := index.OpenOrCreateIndex(globalConfig.BleveIndexPath)
		if err != nil {
			return fmt.Errorf("opening search index: %w", err)
		}
		defer idx.Close()

		results, err := index.SearchIndex(idx, query)
		if err != nil {
			return fmt.Errorf("searching index: %w", err)
		}

		if results.Total == 0 {
			fmt.Println("No results.")
			return nil
		}
		fmt.Printf("%d result(s):\n", results.Total)
		for _, hit := range results.Hits {
			title, _ := hit.Fields["title"].(string)
			fileName, _ := hit.Fields["fileName"].(string)
			fmt.Printf("  %s  %q (%s)  score %.3f\n", hit.ID, title, fileName, hit.Score)
		}
		return nil
	},
}

// rebuildSearchIndex drops the index and re-indexes every catalog record.
func rebuildSearchIndex() error {
	cat, err := openCatalog()
	if err != nil {
		return err
	}
	if err := index.DeleteIndex(globalConfig.BleveIndexPath); err != nil {
		return fmt.Errorf("removing old index: %w", err)
	}
	idx, err := index.OpenOrCreateIndex(globalConfig.BleveIndexPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	count := 0
	for _, rec := range cat.List() {
		if err := index.IndexItem(idx, index.FromRecord(rec)); err != nil {
			log.WithError(err).Warnf("Failed to index %s", rec.ID)
			continue
		}
		count++
	}
	log.Infof("Rebuilt search index with %d record(s)", count)
	return nil
}

func init() {
	searchCmd.Flags().BoolVar(&rebuildIndexFlag, "rebuild", false, "Rebuild the index from the catalog before searching")
	rootCmd.AddCommand(searchCmd)
}
