package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-localtube/internal/catalog"
	"go-localtube/internal/helpers"
	"go-localtube/internal/models"
)

var (
	listSortFlag    string
	listGroupedFlag bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the videos in the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog()
		if err != nil {
			return err
		}

		if listGroupedFlag {
			for _, group := range cat.GroupedByDay() {
				fmt.Printf("%s\n", group.Label)
				printRecords(group.Videos)
				fmt.Println()
			}
			return nil
		}

		var by catalog.SortOption
		switch listSortFlag {
		case "title":
			by = catalog.SortTitle
		case "date", "":
			by = catalog.SortDate
		default:
			return fmt.Errorf("invalid input: unknown sort %q (want date or title)", listSortFlag)
		}
		printRecords(cat.Sorted(by))
		return nil
	},
}

func printRecords(recs []models.VideoRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, rec := range recs {
		size := "-"
		if rec.FileSizeBytes != nil {
			size = helpers.BytesToSize(uint64(*rec.FileSizeBytes))
		}
		duration := "-"
		if rec.DurationSeconds != nil {
			duration = fmt.Sprintf("%.0fs", *rec.DurationSeconds)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.Title, rec.DownloadedAt.Format("2006-01-02 15:04"), duration, size)
	}
	w.Flush()
}

func init() {
	listCmd.Flags().StringVar(&listSortFlag, "sort", "date", "Sort order: date (newest first) or title")
	listCmd.Flags().BoolVar(&listGroupedFlag, "grouped", false, "Group output by download day")
	rootCmd.AddCommand(listCmd)
}
