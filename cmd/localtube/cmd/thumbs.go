package cmd

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-localtube/internal/models"
)

var pruneThumbsFlag bool

var thumbsCmd = &cobra.Command{
	Use:   "thumbs",
	Short: "Warm the thumbnail cache for every library video",
	Long: `Generates missing thumbnails for all videos in the catalog, several at
a time. With --prune, cached thumbnails whose video was deleted in an
earlier run are removed first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = 4
		}

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		cache := newThumbCache()
		recs := cat.List()

		if pruneThumbsFlag {
			keep := make(map[string]bool, len(recs))
			for _, rec := range recs {
				keep[rec.ID] = true
			}
			if removed := cache.Prune(keep); removed > 0 {
				log.Infof("Pruned %d stale thumbnail(s)", removed)
			}
		}

		jobs := make(chan models.VideoRecord, concurrency)
		var wg sync.WaitGroup
		var generated, missing atomic.Int64

		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for rec := range jobs {
					if _, ok := cache.Get(context.Background(), rec.ID, cat.FilePath(rec)); ok {
						generated.Add(1)
					} else {
						missing.Add(1)
					}
				}
			}()
		}
		for _, rec := range recs {
			jobs <- rec
		}
		close(jobs)
		wg.Wait()

		fmt.Printf("Thumbnails ready for %d video(s), %d could not be generated\n",
			generated.Load(), missing.Load())
		return nil
	},
}

func init() {
	thumbsCmd.Flags().BoolVar(&pruneThumbsFlag, "prune", false, "Remove cached thumbnails for videos no longer in the catalog")
	thumbsCmd.Flags().Int("concurrency", 4, "Number of parallel thumbnail workers")
	rootCmd.AddCommand(thumbsCmd)
}
