package index

import (
	"log"
	"os"
	"time"

	"go-localtube/internal/models"

	"github.com/blevesearch/bleve/v2"
)

const defaultIndexPath = "localtube.bleve"

// Item is the searchable view of one catalog record. All fields are indexed
// under their lowercase JSON tag names (e.g. query '+title:interview').
// The index is derived data: the catalog file stays canonical and the index
// can always be rebuilt from it.
type Item struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	FileName        string    `json:"fileName"`
	DownloadedAt    time.Time `json:"downloadedAt"`
	DurationSeconds float64   `json:"durationSeconds,omitempty"`
	FileSizeBytes   float64   `json:"fileSizeBytes,omitempty"`
}

// FromRecord converts a catalog record into its indexable form.
func FromRecord(rec models.VideoRecord) Item {
	item := Item{
		ID:           rec.ID,
		Title:        rec.Title,
		FileName:     rec.FileName,
		DownloadedAt: rec.DownloadedAt,
	}
	if rec.DurationSeconds != nil {
		item.DurationSeconds = *rec.DurationSeconds
	}
	if rec.FileSizeBytes != nil {
		item.FileSizeBytes = float64(*rec.FileSizeBytes)
	}
	return item
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one if it
// doesn't exist.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	idx, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.Printf("Creating new index at: %s", indexPath)
		mapping := bleve.NewIndexMapping()
		idx, err = bleve.New(indexPath, mapping)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return idx, nil
}

// IndexItem adds or updates an item in the index.
func IndexItem(idx bleve.Index, item Item) error {
	return idx.Index(item.ID, item)
}

// DeleteItem removes an item from the index by id.
func DeleteItem(idx bleve.Index, id string) error {
	return idx.Delete(id)
}

// SearchIndex performs a query-string search against the index.
func SearchIndex(idx bleve.Index, query string) (*bleve.SearchResult, error) {
	searchQuery := bleve.NewQueryStringQuery(query)
	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Fields = []string{"*"}
	return idx.Search(searchRequest)
}

// DeleteIndex removes the index directory. Use with caution!
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	return os.RemoveAll(indexPath)
}
