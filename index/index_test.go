package index

import (
	"path/filepath"
	"testing"
	"time"

	"go-localtube/internal/models"
)

func TestIndexAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bleve")
	idx, err := OpenOrCreateIndex(path)
	if err != nil {
		t.Fatalf("OpenOrCreateIndex failed: %v", err)
	}
	defer idx.Close()

	d := 120.0
	items := []Item{
		FromRecord(models.VideoRecord{
			ID: "v1", Title: "Deep Sea Documentary", FileName: "deep-sea.mp4",
			DownloadedAt: time.Now(), DurationSeconds: &d,
		}),
		FromRecord(models.VideoRecord{
			ID: "v2", Title: "Cooking Basics", FileName: "cooking.mp4",
			DownloadedAt: time.Now(),
		}),
	}
	for _, item := range items {
		if err := IndexItem(idx, item); err != nil {
			t.Fatalf("IndexItem(%s) failed: %v", item.ID, err)
		}
	}

	result, err := SearchIndex(idx, "documentary")
	if err != nil {
		t.Fatalf("SearchIndex failed: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("search for 'documentary' returned %d hits, want 1", result.Total)
	}
	if result.Hits[0].ID != "v1" {
		t.Errorf("hit ID = %s, want v1", result.Hits[0].ID)
	}

	result, err = SearchIndex(idx, "+title:cooking")
	if err != nil {
		t.Fatalf("field search failed: %v", err)
	}
	if result.Total != 1 || result.Hits[0].ID != "v2" {
		t.Errorf("field search returned %+v, want single hit v2", result.Hits)
	}
}

func TestDeleteItem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bleve")
	idx, err := OpenOrCreateIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	item := FromRecord(models.VideoRecord{ID: "v1", Title: "Ephemeral", FileName: "e.mp4", DownloadedAt: time.Now()})
	if err := IndexItem(idx, item); err != nil {
		t.Fatal(err)
	}
	if err := DeleteItem(idx, "v1"); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}

	result, err := SearchIndex(idx, "ephemeral")
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 0 {
		t.Errorf("deleted item still searchable, %d hits", result.Total)
	}
}

func TestOpenExistingIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bleve")
	idx, err := OpenOrCreateIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	item := FromRecord(models.VideoRecord{ID: "v1", Title: "Persistent", FileName: "p.mp4", DownloadedAt: time.Now()})
	if err := IndexItem(idx, item); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenOrCreateIndex(path)
	if err != nil {
		t.Fatalf("reopening index failed: %v", err)
	}
	defer reopened.Close()

	result, err := SearchIndex(reopened, "persistent")
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 1 {
		t.Errorf("reopened index lost data, %d hits", result.Total)
	}
}

func TestFromRecord(t *testing.T) {
	d := 61.5
	s := int64(4096)
	rec := models.VideoRecord{
		ID: "v1", Title: "t", FileName: "t.mp4",
		DownloadedAt:    time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
		DurationSeconds: &d,
		FileSizeBytes:   &s,
	}
	item := FromRecord(rec)
	if item.DurationSeconds != 61.5 || item.FileSizeBytes != 4096 {
		t.Errorf("derived fields not carried over: %+v", item)
	}

	rec.DurationSeconds = nil
	rec.FileSizeBytes = nil
	item = FromRecord(rec)
	if item.DurationSeconds != 0 || item.FileSizeBytes != 0 {
		t.Errorf("nil derived fields should map to zero: %+v", item)
	}
}
