package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-localtube/index"
	"go-localtube/internal/api"
	"go-localtube/internal/catalog"
	"go-localtube/internal/downloader"
	"go-localtube/internal/helpers"
	"go-localtube/internal/models"
	"go-localtube/internal/queue"
)

var qualityFlag string

var downloadCmd = &cobra.Command{
	Use:   "download <url> [url...]",
	Short: "Resolve and download videos into the library",
	Long: `Resolves each source URL into its available stream variants, downloads
the selected quality into the storage directory with live progress, and adds
the resulting record to the catalog and search index. Ctrl-C cancels the
in-flight download and removes any partial file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, raw := range args {
			if _, err := url.ParseRequestURI(raw); err != nil {
				return fmt.Errorf("invalid input: %q is not a valid URL", raw)
			}
		}

		cat, err := openCatalog()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		backend := newBackendClient()
		// The stream transfer client carries no overall timeout; long
		// downloads are bounded by ctx cancellation instead.
		streamClient := &http.Client{Transport: globalHttpTransport}
		orch := downloader.New(backend, streamClient, globalConfig.StoragePath)

		pending := queue.New()
		for _, sourceURL := range args {
			pending.Enqueue(queue.Item{ID: sourceURL, SourceURL: sourceURL})
		}

		var failures int
		for _, item := range pending.Items() {
			if ctx.Err() != nil {
				break
			}
			if err := downloadOne(ctx, orch, cat, item.SourceURL); err != nil {
				if errors.Is(err, downloader.ErrCancelled) {
					fmt.Fprintln(os.Stderr, "Download cancelled.")
					failures++
					break
				}
				fmt.Fprintf(os.Stderr, "%s: %s\n", item.SourceURL, userMessage(err))
				failures++
				continue
			}
			pending.DequeueOnCompletion(item.ID)
		}

		if remaining := pending.Len(); remaining > 0 {
			log.Infof("%d queued item(s) not completed", remaining)
		}
		if failures > 0 {
			return fmt.Errorf("%d download(s) failed", failures)
		}
		return nil
	},
}

func downloadOne(ctx context.Context, orch *downloader.Orchestrator, cat *catalog.Catalog, sourceURL string) error {
	streams, err := orch.ResolveStreams(ctx, sourceURL)
	if err != nil {
		return err
	}

	stream, err := selectStream(streams, qualityFlag)
	if err != nil {
		return err
	}
	log.Infof("Selected stream %s (%s)", stream.DisplayName(), helpers.BytesToSize(uint64(stream.SizeInBytes)))

	// Inline progress rendering, overwritten in place.
	writer := uilive.New()
	writer.Start()
	onProgress := func(frac float64) {
		fmt.Fprintf(writer, "Downloading %s... %.1f%%\n", stream.DisplayName(), frac*100)
	}

	rec, err := orch.Download(ctx, stream, sourceURL, onProgress)
	writer.Stop()
	if err != nil {
		return err
	}

	if err := cat.Add(rec); err != nil {
		// Keep the storage root consistent: a record that could not be
		// persisted must not leave its file behind.
		if removeErr := os.Remove(cat.FilePath(rec)); removeErr != nil {
			log.WithError(removeErr).Errorf("Failed to remove %s after catalog write failure", rec.FileName)
		}
		return err
	}

	if !viper.GetBool("download.skip_index") {
		if err := updateSearchIndex(rec); err != nil {
			log.WithError(err).Warn("Could not update search index")
		}
	}

	fmt.Printf("Added %q to the library (%s)\n", rec.Title, rec.FileName)
	return nil
}

// selectStream picks the variant to download: the first offered one unless
// a quality label was requested.
func selectStream(streams []models.StreamOption, quality string) (models.StreamOption, error) {
	if quality == "" {
		return streams[0], nil
	}
	for _, s := range streams {
		if strings.EqualFold(s.QualityLabel, quality) {
			return s, nil
		}
	}
	return models.StreamOption{}, fmt.Errorf("no result available: no stream with quality %q", quality)
}

func updateSearchIndex(rec models.VideoRecord) error {
	idx, err := index.OpenOrCreateIndex(globalConfig.BleveIndexPath)
	if err != nil {
		return err
	}
	defer idx.Close()
	return index.IndexItem(idx, index.FromRecord(rec))
}

// userMessage maps internal error kinds onto the three user-facing failure
// categories: invalid input, network/service failure, no result available.
func userMessage(err error) string {
	switch {
	case errors.Is(err, api.ErrNoStreams):
		return "no result available: " + api.ErrNoStreams.Error()
	case errors.Is(err, api.ErrInvalidResponse), errors.Is(err, api.ErrDecode):
		return "network/service failure: " + err.Error()
	case errors.Is(err, downloader.ErrDownloadFailed), errors.Is(err, downloader.ErrChecksumMismatch):
		return "network/service failure: " + err.Error()
	default:
		return err.Error()
	}
}

func init() {
	downloadCmd.Flags().StringVarP(&qualityFlag, "quality", "q", "", "Quality label to download (e.g. 720p); defaults to the first offered stream")
	downloadCmd.Flags().Bool("skip-index", false, "Do not update the search index after downloading")
	if err := viper.BindPFlag("download.skip_index", downloadCmd.Flags().Lookup("skip-index")); err != nil {
		log.WithError(err).Error("Failed to bind skip-index flag")
	}
	rootCmd.AddCommand(downloadCmd)
}
