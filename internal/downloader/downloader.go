package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go-localtube/internal/api"
	"go-localtube/internal/helpers"
	"go-localtube/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Custom Downloader Errors
var (
	ErrDownloadFailed   = errors.New("download failed")
	ErrCancelled        = errors.New("download cancelled")
	ErrFileSystem       = errors.New("filesystem error")
	ErrChecksumMismatch = errors.New("downloaded file checksum mismatch")
)

// Orchestrator drives one resolve-then-download attempt at a time. It owns
// no persistent state: it resolves stream options, streams a chosen variant
// into the storage root with progress reporting, and returns a VideoRecord
// for the caller to insert into the catalog.
type Orchestrator struct {
	backend     *api.Client
	client      *http.Client
	storageRoot string
}

// New creates an Orchestrator. The httpClient is used for the byte-stream
// transfer and may carry a longer timeout than the backend client.
func New(backend *api.Client, httpClient *http.Client, storageRoot string) *Orchestrator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Minute}
	}
	return &Orchestrator{
		backend:     backend,
		client:      httpClient,
		storageRoot: storageRoot,
	}
}

// ResolveStreams resolves sourceURL into its downloadable variants. Zero
// variants surface as api.ErrNoStreams; no download is attempted.
func (o *Orchestrator) ResolveStreams(ctx context.Context, sourceURL string) ([]models.StreamOption, error) {
	return o.backend.ResolveStreams(ctx, sourceURL)
}

// Download fetches metadata for sourceURL, then streams the selected variant
// to a uniquely named file under the storage root. onProgress receives
// monotonically non-decreasing values in [0,1]. Cancelling ctx aborts the
// transfer, removes the partial file and returns ErrCancelled; any other
// mid-transfer failure also leaves no partial file behind.
//
// The returned record is not inserted into any catalog; that is the
// caller's step.
func (o *Orchestrator) Download(ctx context.Context, stream models.StreamOption, sourceURL string, onProgress func(float64)) (models.VideoRecord, error) {
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	// Metadata first: failing here aborts before any file exists.
	meta, err := o.backend.FetchMetadata(ctx, sourceURL)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return models.VideoRecord{}, fmt.Errorf("%w: metadata fetch: %v", ErrCancelled, err)
		}
		return models.VideoRecord{}, err
	}

	id := uuid.NewString()
	fileName := fmt.Sprintf("download-%s.mp4", id)
	finalPath := filepath.Join(o.storageRoot, fileName)

	if !helpers.CheckAndMakeDir(o.storageRoot) {
		return models.VideoRecord{}, fmt.Errorf("%w: failed to create storage root %s", ErrFileSystem, o.storageRoot)
	}

	onProgress(0)

	written, err := o.streamToFile(ctx, stream, finalPath, onProgress)
	if err != nil {
		return models.VideoRecord{}, err
	}

	onProgress(1)

	rec := models.VideoRecord{
		ID:            id,
		Title:         meta.Title,
		FileName:      fileName,
		DownloadedAt:  time.Now(),
		FileSizeBytes: &written,
	}
	if meta.Duration > 0 {
		d := meta.Duration
		rec.DurationSeconds = &d
	}
	log.WithField("id", id).Infof("Downloaded %q (%s)", meta.Title, helpers.BytesToSize(uint64(written)))
	return rec, nil
}

// streamToFile transfers the stream body into finalPath via a temp file in
// the same directory, so a failed or cancelled transfer never leaves a
// partial file at the final path.
func (o *Orchestrator) streamToFile(ctx context.Context, stream models.StreamOption, finalPath string, onProgress func(float64)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stream.DownloadURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: creating request for %s: %v", ErrDownloadFailed, stream.DownloadURL, err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return 0, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return 0, fmt.Errorf("%w: performing request: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: received status %d from %s", ErrDownloadFailed, resp.StatusCode, stream.DownloadURL)
	}

	tempFile, err := os.CreateTemp(o.storageRoot, filepath.Base(finalPath)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("%w: creating temporary file: %v", ErrFileSystem, err)
	}
	shouldCleanupTemp := true
	defer func() {
		if shouldCleanupTemp {
			log.Debugf("Cleaning up temporary file %s", tempFile.Name())
			if removeErr := os.Remove(tempFile.Name()); removeErr != nil && !os.IsNotExist(removeErr) {
				log.WithError(removeErr).Warnf("Failed to remove temporary file %s", tempFile.Name())
			}
		}
	}()

	total := resp.ContentLength
	if total <= 0 {
		// Fall back to the resolve service's estimate; chunked progress
		// degrades to start/finish reporting when both are unknown.
		total = stream.SizeInBytes
	}
	counter := &helpers.CounterWriter{
		Writer:     tempFile,
		Total:      total,
		OnProgress: onProgress,
	}

	log.Infof("Downloading %s to %s (%s)...", stream.DisplayName(), finalPath, helpers.BytesToSize(uint64(total)))
	written, err := io.Copy(counter, resp.Body)
	if err != nil {
		tempFile.Close()
		if errors.Is(ctx.Err(), context.Canceled) {
			return 0, fmt.Errorf("%w: after %s", ErrCancelled, helpers.BytesToSize(uint64(written)))
		}
		return 0, fmt.Errorf("%w: writing stream: %v", ErrDownloadFailed, err)
	}
	if err := tempFile.Close(); err != nil {
		return 0, fmt.Errorf("%w: closing temp file: %v", ErrFileSystem, err)
	}

	hashesProvided := stream.Hashes.SHA256 != "" || stream.Hashes.BLAKE3 != ""
	if hashesProvided && !helpers.CheckHash(tempFile.Name(), stream.Hashes) {
		log.Errorf("Checksum mismatch for %s", tempFile.Name())
		return 0, ErrChecksumMismatch
	}

	if err := os.Rename(tempFile.Name(), finalPath); err != nil {
		return 0, fmt.Errorf("%w: renaming temp file to %s: %v", ErrFileSystem, finalPath, err)
	}
	shouldCleanupTemp = false
	return written, nil
}
