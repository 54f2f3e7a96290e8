package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-localtube/internal/models"
)

var (
	torrentVideoIDs   []string
	announceURLs      []string
	torrentOutputDir  string
	overwriteTorrents bool
	generateMagnets   bool
)

// torrentJob carries one video file to the torrent workers.
type torrentJob struct {
	Record models.VideoRecord
	Source string
}

var torrentCmd = &cobra.Command{
	Use:   "torrent",
	Short: "Generate .torrent files for library videos",
	Long: `Generates BitTorrent metainfo (.torrent) files for videos in the
library so they can be shared. You must specify tracker announce URLs.
Without --id, every video in the catalog is processed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(announceURLs) == 0 {
			return errors.New("at least one --announce URL is required")
		}

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			log.Warnf("Invalid concurrency value %d, defaulting to 4", concurrency)
			concurrency = 4
		}

		cat, err := openCatalog()
		if err != nil {
			return err
		}

		wanted := make(map[string]struct{}, len(torrentVideoIDs))
		for _, id := range torrentVideoIDs {
			wanted[id] = struct{}{}
		}

		jobs := make(chan torrentJob, concurrency)
		var wg sync.WaitGroup
		var successCounter, failureCounter atomic.Int64

		for i := 1; i <= concurrency; i++ {
			wg.Add(1)
			go torrentWorker(i, jobs, &wg, &successCounter, &failureCounter)
		}

		queued := 0
		for _, rec := range cat.List() {
			if len(wanted) > 0 {
				if _, ok := wanted[rec.ID]; !ok {
					continue
				}
			}
			jobs <- torrentJob{Record: rec, Source: cat.FilePath(rec)}
			queued++
		}
		close(jobs)

		if queued == 0 {
			log.Warn("No matching videos found in the catalog.")
			wg.Wait()
			return nil
		}

		log.Infof("Queued %d torrent job(s), waiting for workers...", queued)
		wg.Wait()

		success, failed := successCounter.Load(), failureCounter.Load()
		log.Infof("Torrent generation complete. Success: %d, Failed: %d", success, failed)
		if failed > 0 {
			return fmt.Errorf("%d torrents failed to generate", failed)
		}
		return nil
	},
}

func torrentWorker(id int, jobs <-chan torrentJob, wg *sync.WaitGroup, successCounter, failureCounter *atomic.Int64) {
	defer wg.Done()
	for job := range jobs {
		err := generateTorrentFile(job.Source, announceURLs, torrentOutputDir, overwriteTorrents, generateMagnets)
		if err != nil {
			log.WithError(err).Errorf("Worker %d: failed to generate torrent for %s", id, job.Record.FileName)
			failureCounter.Add(1)
		} else {
			log.Infof("Worker %d: generated torrent for %s", id, job.Record.FileName)
			successCounter.Add(1)
		}
	}
}

// generateTorrentFile creates a .torrent file for the given video file.
// It can optionally also create a text file containing the magnet link.
func generateTorrentFile(sourcePath string, trackers []string, outputDir string, overwrite bool, magnet bool) error {
	if _, err := os.Stat(sourcePath); err != nil {
		return fmt.Errorf("stating source path %s: %w", sourcePath, err)
	}

	torrentFileName := fmt.Sprintf("%s.torrent", filepath.Base(sourcePath))
	var outPath string
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("creating output directory %s: %w", outputDir, err)
		}
		outPath = filepath.Join(outputDir, torrentFileName)
	} else {
		outPath = filepath.Join(filepath.Dir(sourcePath), torrentFileName)
	}

	if !overwrite {
		if _, err := os.Stat(outPath); err == nil {
			log.WithField("path", outPath).Info("Skipping existing torrent file (use --overwrite to replace)")
			return nil
		}
	}

	mi := metainfo.MetaInfo{
		AnnounceList: make([][]string, len(trackers)),
	}
	for i, tracker := range trackers {
		mi.AnnounceList[i] = []string{tracker}
	}
	mi.Announce = trackers[0]
	mi.CreatedBy = "go-localtube"

	const pieceLength = 512 * 1024
	info := metainfo.Info{PieceLength: pieceLength}
	if err := info.BuildFromFilePath(sourcePath); err != nil {
		return fmt.Errorf("building torrent info from %s: %w", sourcePath, err)
	}

	var err error
	mi.InfoBytes, err = bencode.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshaling torrent info: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating torrent file %s: %w", outPath, err)
	}
	defer f.Close()
	if err := mi.Write(f); err != nil {
		return fmt.Errorf("writing torrent file %s: %w", outPath, err)
	}

	if magnet {
		magnetLink := fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s",
			mi.HashInfoBytes().HexString(), url.QueryEscape(info.Name))
		for _, tracker := range trackers {
			magnetLink += "&tr=" + url.QueryEscape(tracker)
		}
		magnetPath := outPath + ".magnet"
		if err := os.WriteFile(magnetPath, []byte(magnetLink+"\n"), 0644); err != nil {
			return fmt.Errorf("writing magnet link file %s: %w", magnetPath, err)
		}
	}
	return nil
}

func init() {
	torrentCmd.Flags().StringSliceVar(&torrentVideoIDs, "id", nil, "Only generate torrents for these video ids")
	torrentCmd.Flags().StringSliceVar(&announceURLs, "announce", nil, "Tracker announce URL (repeatable, required)")
	torrentCmd.Flags().StringVar(&torrentOutputDir, "output-dir", "", "Directory for .torrent files (defaults next to the video)")
	torrentCmd.Flags().BoolVar(&overwriteTorrents, "overwrite", false, "Overwrite existing .torrent files")
	torrentCmd.Flags().BoolVar(&generateMagnets, "magnet", false, "Also write a magnet link file per torrent")
	torrentCmd.Flags().Int("concurrency", 4, "Number of parallel torrent workers")
	rootCmd.AddCommand(torrentCmd)
}
