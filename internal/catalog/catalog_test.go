package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"go-localtube/internal/models"
	"go-localtube/internal/probe"
)

// fakeProber satisfies probe.Prober with a fixed duration and a call count.
type fakeProber struct {
	mu         sync.Mutex
	probeCalls int
	duration   float64
	fail       bool
}

func (f *fakeProber) Probe(ctx context.Context, path string) (probe.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	if f.fail {
		return probe.Result{}, errors.New("no readable container")
	}
	return probe.Result{DurationSeconds: f.duration, Valid: true}, nil
}

func (f *fakeProber) ExtractFrame(ctx context.Context, path string, atSeconds float64) ([]byte, error) {
	return nil, errors.New("not supported")
}

func (f *fakeProber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeCalls
}

func newTestCatalog(t *testing.T) (*Catalog, string, string, *fakeProber) {
	t.Helper()
	base := t.TempDir()
	storage := filepath.Join(base, "videos")
	catalogPath := filepath.Join(base, "store", "library.json")
	prober := &fakeProber{duration: 42.5}
	cat, err := Open(storage, catalogPath, prober)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return cat, storage, catalogPath, prober
}

// breakPersistence makes every subsequent catalog write fail by replacing
// the catalog file's parent directory with a regular file.
func breakPersistence(t *testing.T, catalogPath string) {
	t.Helper()
	dir := filepath.Dir(catalogPath)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("in the way"), 0644); err != nil {
		t.Fatal(err)
	}
}

// addVideo creates a backing file and inserts a record for it.
func addVideo(t *testing.T, cat *Catalog, storage, id, title, fileName string, at time.Time) models.VideoRecord {
	t.Helper()
	if err := os.WriteFile(filepath.Join(storage, fileName), []byte("video-bytes-"+id), 0644); err != nil {
		t.Fatalf("creating backing file: %v", err)
	}
	rec := models.VideoRecord{
		ID:           id,
		Title:        title,
		FileName:     fileName,
		DownloadedAt: at,
	}
	if err := cat.Add(rec); err != nil {
		t.Fatalf("Add(%s) failed: %v", id, err)
	}
	return rec
}

func TestPersistenceRoundTrip(t *testing.T) {
	cat, storage, catalogPath, prober := newTestCatalog(t)

	d1 := 12.5
	s1 := int64(17)
	rec1 := models.VideoRecord{
		ID:              "id-1",
		Title:           "First",
		FileName:        "first.mp4",
		DownloadedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		DurationSeconds: &d1,
		FileSizeBytes:   &s1,
	}
	if err := os.WriteFile(filepath.Join(storage, rec1.FileName), []byte("aaaaaaaaaaaaaaaaa"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := cat.Add(rec1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	addVideo(t, cat, storage, "id-2", "Second", "second.mp4",
		time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC))

	reopened, err := Open(storage, catalogPath, prober)
	if err != nil {
		t.Fatalf("reopening catalog: %v", err)
	}
	if !reflect.DeepEqual(cat.List(), reopened.List()) {
		t.Errorf("round-trip mismatch:\n before %+v\n after  %+v", cat.List(), reopened.List())
	}
}

func TestMissingCatalogFileYieldsEmpty(t *testing.T) {
	cat, _, _, _ := newTestCatalog(t)
	if got := len(cat.List()); got != 0 {
		t.Errorf("expected empty catalog, got %d records", got)
	}
}

func TestCorruptCatalogFileYieldsEmpty(t *testing.T) {
	base := t.TempDir()
	catalogPath := filepath.Join(base, "library.json")
	if err := os.WriteFile(catalogPath, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	cat, err := Open(filepath.Join(base, "videos"), catalogPath, nil)
	if err != nil {
		t.Fatalf("Open on corrupt file should not fail: %v", err)
	}
	if got := len(cat.List()); got != 0 {
		t.Errorf("expected empty catalog after corrupt load, got %d records", got)
	}
}

func TestSortedByDate(t *testing.T) {
	cat, storage, _, _ := newTestCatalog(t)
	d3 := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	d1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	addVideo(t, cat, storage, "b", "b", "b.mp4", d2)
	addVideo(t, cat, storage, "a", "a", "a.mp4", d1)
	addVideo(t, cat, storage, "c", "c", "c.mp4", d3)

	got := cat.Sorted(SortDate)
	wantOrder := []string{"c", "b", "a"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("Sorted(date)[%d].ID = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestSortedByTitle(t *testing.T) {
	cat, storage, _, _ := newTestCatalog(t)
	now := time.Now().UTC()
	addVideo(t, cat, storage, "1", "banana", "banana.mp4", now)
	addVideo(t, cat, storage, "2", "Apple", "apple.mp4", now)
	addVideo(t, cat, storage, "3", "cherry", "cherry.mp4", now)

	got := cat.Sorted(SortTitle)
	wantTitles := []string{"Apple", "banana", "cherry"}
	for i, title := range wantTitles {
		if got[i].Title != title {
			t.Fatalf("Sorted(title)[%d].Title = %s, want %s", i, got[i].Title, title)
		}
	}
}

func TestGroupedByDay(t *testing.T) {
	cat, storage, _, _ := newTestCatalog(t)
	day2 := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	day1a := time.Date(2026, 5, 1, 22, 0, 0, 0, time.UTC)
	day1b := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	addVideo(t, cat, storage, "old-a", "old a", "olda.mp4", day1a)
	addVideo(t, cat, storage, "new", "new", "new.mp4", day2)
	addVideo(t, cat, storage, "old-b", "old b", "oldb.mp4", day1b)

	groups := cat.GroupedByDay()
	if len(groups) != 2 {
		t.Fatalf("expected 2 day groups, got %d", len(groups))
	}
	if groups[0].Label != "May 2, 2026" || groups[1].Label != "May 1, 2026" {
		t.Errorf("unexpected labels: %q, %q", groups[0].Label, groups[1].Label)
	}
	if groups[0].DayKey <= groups[1].DayKey {
		t.Errorf("groups not ordered by descending day key: %d, %d", groups[0].DayKey, groups[1].DayKey)
	}
	if len(groups[0].Videos) != 1 || groups[0].Videos[0].ID != "new" {
		t.Errorf("newest group should hold only 'new', got %+v", groups[0].Videos)
	}
	if len(groups[1].Videos) != 2 {
		t.Errorf("older group should hold 2 videos, got %d", len(groups[1].Videos))
	}
}

func TestAddRequiresBackingFile(t *testing.T) {
	cat, _, _, _ := newTestCatalog(t)
	err := cat.Add(models.VideoRecord{ID: "x", Title: "x", FileName: "missing.mp4", DownloadedAt: time.Now()})
	if !errors.Is(err, ErrFileSystem) {
		t.Errorf("Add without backing file = %v, want ErrFileSystem", err)
	}
}

func TestRenameMovesFile(t *testing.T) {
	cat, storage, _, _ := newTestCatalog(t)
	addVideo(t, cat, storage, "v1", "original", "download-v1.mp4", time.Now().UTC())

	if err := cat.Rename("v1", "My: Great/Video"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	rec, err := cat.Get("v1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Title != "My: Great/Video" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.FileName != "My- Great-Video.mp4" {
		t.Errorf("FileName = %q, want sanitized name", rec.FileName)
	}
	if _, err := os.Stat(filepath.Join(storage, "My- Great-Video.mp4")); err != nil {
		t.Errorf("moved file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(storage, "download-v1.mp4")); !os.IsNotExist(err) {
		t.Errorf("old file should be gone, stat err = %v", err)
	}
}

func TestRenameNotFound(t *testing.T) {
	cat, _, _, _ := newTestCatalog(t)
	if err := cat.Rename("nope", "title"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rename unknown id = %v, want ErrNotFound", err)
	}
}

func TestRenameCollisionRejected(t *testing.T) {
	cat, storage, _, _ := newTestCatalog(t)
	addVideo(t, cat, storage, "v1", "one", "one.mp4", time.Now().UTC())
	addVideo(t, cat, storage, "v2", "two", "two.mp4", time.Now().UTC())

	err := cat.Rename("v1", "two")
	if !errors.Is(err, ErrNameCollision) {
		t.Fatalf("Rename onto existing file = %v, want ErrNameCollision", err)
	}

	// Nothing moved, nothing overwritten.
	rec, _ := cat.Get("v1")
	if rec.FileName != "one.mp4" || rec.Title != "one" {
		t.Errorf("record changed after rejected rename: %+v", rec)
	}
	data, err := os.ReadFile(filepath.Join(storage, "two.mp4"))
	if err != nil || string(data) != "video-bytes-v2" {
		t.Errorf("collision target was touched: %q, %v", data, err)
	}
}

func TestDeleteRemovesFileAndRecord(t *testing.T) {
	cat, storage, _, _ := newTestCatalog(t)
	addVideo(t, cat, storage, "v1", "one", "one.mp4", time.Now().UTC())

	if err := cat.Delete("v1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := cat.Get("v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("record still present after delete")
	}
	if _, err := os.Stat(filepath.Join(storage, "one.mp4")); !os.IsNotExist(err) {
		t.Errorf("file still present after delete, stat err = %v", err)
	}
}

func TestDeleteToleratesMissingFile(t *testing.T) {
	cat, storage, _, _ := newTestCatalog(t)
	addVideo(t, cat, storage, "v1", "one", "one.mp4", time.Now().UTC())
	if err := os.Remove(filepath.Join(storage, "one.mp4")); err != nil {
		t.Fatal(err)
	}
	if err := cat.Delete("v1"); err != nil {
		t.Errorf("Delete with missing file = %v, want nil", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	cat, _, _, _ := newTestCatalog(t)
	if err := cat.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete unknown id = %v, want ErrNotFound", err)
	}
}

func TestRefreshMetadataIdempotent(t *testing.T) {
	cat, storage, _, prober := newTestCatalog(t)
	addVideo(t, cat, storage, "v1", "one", "one.mp4", time.Now().UTC())

	if err := cat.RefreshMetadata(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	rec, _ := cat.Get("v1")
	if rec.FileSizeBytes == nil || *rec.FileSizeBytes != int64(len("video-bytes-v1")) {
		t.Errorf("FileSizeBytes = %v", rec.FileSizeBytes)
	}
	if rec.DurationSeconds == nil || *rec.DurationSeconds != 42.5 {
		t.Errorf("DurationSeconds = %v", rec.DurationSeconds)
	}
	firstCalls := prober.calls()

	if err := cat.RefreshMetadata(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	again, _ := cat.Get("v1")
	if !reflect.DeepEqual(rec, again) {
		t.Errorf("second refresh changed fields: %+v vs %+v", rec, again)
	}
	if prober.calls() != firstCalls {
		t.Errorf("second refresh re-probed unchanged file: %d -> %d calls", firstCalls, prober.calls())
	}
}

func TestRefreshMetadataDetectsChangedFile(t *testing.T) {
	cat, storage, _, prober := newTestCatalog(t)
	addVideo(t, cat, storage, "v1", "one", "one.mp4", time.Now().UTC())
	if err := cat.RefreshMetadata(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := prober.calls()

	if err := os.WriteFile(filepath.Join(storage, "one.mp4"), []byte("rewritten much longer contents"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := cat.RefreshMetadata(context.Background()); err != nil {
		t.Fatal(err)
	}
	if prober.calls() != before+1 {
		t.Errorf("changed file should be re-probed once, calls %d -> %d", before, prober.calls())
	}
	rec, _ := cat.Get("v1")
	if rec.FileSizeBytes == nil || *rec.FileSizeBytes != int64(len("rewritten much longer contents")) {
		t.Errorf("size not refreshed: %v", rec.FileSizeBytes)
	}
}

func TestRefreshMetadataSkipsWriteWhenNothingChanged(t *testing.T) {
	cat, storage, catalogPath, prober := newTestCatalog(t)
	prober.fail = true
	addVideo(t, cat, storage, "v1", "one", "one.mp4", time.Now().UTC())

	// First pass records the size; the duration probe keeps failing.
	if err := cat.RefreshMetadata(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	rec, _ := cat.Get("v1")
	if rec.FileSizeBytes == nil || rec.DurationSeconds != nil {
		t.Fatalf("unexpected fields after first refresh: %+v", rec)
	}

	// With no field left to change, a second pass must not touch the
	// catalog file at all. Broken persistence makes any write visible.
	breakPersistence(t, catalogPath)
	if err := cat.RefreshMetadata(context.Background()); err != nil {
		t.Errorf("refresh with no changes wrote the catalog: %v", err)
	}
	again, _ := cat.Get("v1")
	if !reflect.DeepEqual(rec, again) {
		t.Errorf("no-op refresh changed fields: %+v vs %+v", rec, again)
	}
}

func TestAddRollbackOnPersistFailure(t *testing.T) {
	cat, storage, catalogPath, _ := newTestCatalog(t)
	addVideo(t, cat, storage, "v1", "one", "one.mp4", time.Now().UTC())
	breakPersistence(t, catalogPath)

	if err := os.WriteFile(filepath.Join(storage, "two.mp4"), []byte("video-bytes-v2"), 0644); err != nil {
		t.Fatal(err)
	}
	err := cat.Add(models.VideoRecord{ID: "v2", Title: "two", FileName: "two.mp4", DownloadedAt: time.Now().UTC()})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Add with broken persistence = %v, want ErrPersistence", err)
	}

	if _, err := cat.Get("v2"); !errors.Is(err, ErrNotFound) {
		t.Error("unpersisted record survived in memory")
	}
	if got := len(cat.List()); got != 1 {
		t.Errorf("catalog holds %d records after rolled-back add, want 1", got)
	}
}

func TestRenameRollbackOnPersistFailure(t *testing.T) {
	cat, storage, catalogPath, _ := newTestCatalog(t)
	addVideo(t, cat, storage, "v1", "one", "one.mp4", time.Now().UTC())
	breakPersistence(t, catalogPath)

	err := cat.Rename("v1", "renamed")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Rename with broken persistence = %v, want ErrPersistence", err)
	}

	rec, err := cat.Get("v1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Title != "one" || rec.FileName != "one.mp4" {
		t.Errorf("record not rolled back: %+v", rec)
	}
	if _, err := os.Stat(filepath.Join(storage, "one.mp4")); err != nil {
		t.Errorf("original file not moved back: %v", err)
	}
	if _, err := os.Stat(filepath.Join(storage, "renamed.mp4")); !os.IsNotExist(err) {
		t.Errorf("renamed file left behind, stat err = %v", err)
	}
}

func TestDeleteRollbackOnPersistFailure(t *testing.T) {
	cat, storage, catalogPath, _ := newTestCatalog(t)
	addVideo(t, cat, storage, "v1", "one", "one.mp4", time.Now().UTC())
	breakPersistence(t, catalogPath)

	err := cat.Delete("v1")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Delete with broken persistence = %v, want ErrPersistence", err)
	}
	// The file removal cannot be undone, but the record must survive so the
	// persisted catalog and memory stay in sync.
	if _, err := cat.Get("v1"); err != nil {
		t.Errorf("record not restored after failed delete: %v", err)
	}
}

// After an arbitrary mutation sequence every surviving record must have a
// backing file, and the storage root must hold no files the catalog does
// not reference.
func TestStorageConsistencyInvariant(t *testing.T) {
	cat, storage, _, _ := newTestCatalog(t)
	now := time.Now().UTC()
	addVideo(t, cat, storage, "a", "alpha", "alpha.mp4", now)
	addVideo(t, cat, storage, "b", "beta", "beta.mp4", now)
	addVideo(t, cat, storage, "c", "gamma", "gamma.mp4", now)

	if err := cat.Rename("a", "renamed alpha"); err != nil {
		t.Fatal(err)
	}
	if err := cat.Delete("b"); err != nil {
		t.Fatal(err)
	}

	referenced := make(map[string]bool)
	for _, rec := range cat.List() {
		if _, err := os.Stat(cat.FilePath(rec)); err != nil {
			t.Errorf("record %s has no backing file: %v", rec.ID, err)
		}
		referenced[rec.FileName] = true
	}

	entries, err := os.ReadDir(storage)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if !referenced[e.Name()] {
			t.Errorf("orphaned file in storage root: %s", e.Name())
		}
	}
}
