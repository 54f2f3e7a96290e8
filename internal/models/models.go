package models

import (
	"fmt"
	"time"
)

type (
	Config struct {
		// Connection
		BackendURL          string `toml:"BackendURL"`
		ApiClientTimeoutSec int    `toml:"ApiClientTimeoutSec"`

		// Paths
		StoragePath    string `toml:"StoragePath"`
		CatalogPath    string `toml:"CatalogPath"`
		ThumbCachePath string `toml:"ThumbCachePath"`
		BleveIndexPath string `toml:"BleveIndexPath"`

		// Thumbnail cache behavior
		ThumbMemCapacity int     `toml:"ThumbMemCapacity"`
		ThumbProbeOffset float64 `toml:"ThumbProbeOffset"`

		// Other
		LogApiRequests bool `toml:"LogApiRequests"`
	}

	// VideoRecord is the canonical catalog entity for one downloaded video.
	// FileName is relative to Config.StoragePath and must refer to an
	// existing file for as long as the record exists.
	VideoRecord struct {
		ID              string    `json:"id"`
		Title           string    `json:"title"`
		FileName        string    `json:"fileName"`
		DownloadedAt    time.Time `json:"downloadedAt"`
		DurationSeconds *float64  `json:"durationSeconds,omitempty"`
		FileSizeBytes   *int64    `json:"fileSizeBytes,omitempty"`
	}

	// StreamOption is one downloadable variant offered by the resolve
	// service. Ephemeral: consumed by a single download attempt, never
	// persisted.
	StreamOption struct {
		Resolution   string `json:"resolution"`
		QualityLabel string `json:"qualityLabel"`
		SizeInBytes  int64  `json:"sizeInBytes"`
		DownloadURL  string `json:"downloadUrl"`
		// Optional content checksums; verified after download when set.
		Hashes Hashes `json:"hashes,omitempty"`
	}

	Hashes struct {
		SHA256 string `json:"SHA256,omitempty"`
		BLAKE3 string `json:"BLAKE3,omitempty"`
	}

	// VideoMetadata is the metadata service's view of a source URL.
	VideoMetadata struct {
		Title        string  `json:"title"`
		ThumbnailURL string  `json:"thumbnailURL,omitempty"`
		Duration     float64 `json:"duration"`
	}

	// Backend request/response payloads.
	ResolveRequest struct {
		URL string `json:"url"`
	}

	ResolveResponse struct {
		Streams []StreamOption `json:"streams"`
	}

	MetadataRequest struct {
		URL string `json:"url"`
	}
)

// DisplayName renders a stream option the way the UI labels it,
// e.g. "720p • 1280x720".
func (s StreamOption) DisplayName() string {
	return fmt.Sprintf("%s • %s", s.QualityLabel, s.Resolution)
}
