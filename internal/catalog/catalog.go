package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go-localtube/internal/helpers"
	"go-localtube/internal/models"
	"go-localtube/internal/probe"

	log "github.com/sirupsen/logrus"
)

// Custom Catalog Errors
var (
	ErrNotFound      = errors.New("video record not found")
	ErrPersistence   = errors.New("catalog persistence failure")
	ErrFileSystem    = errors.New("filesystem error")
	ErrNameCollision = errors.New("target file name already in use")
)

// SortOption selects the ordering of Sorted views.
type SortOption string

const (
	SortDate  SortOption = "date"
	SortTitle SortOption = "title"
)

// DayGroup is one calendar day of downloads. DayKey is the UTC epoch day
// number and is the value groups are ordered by; Label is display-only.
type DayGroup struct {
	DayKey int64
	Label  string
	Videos []models.VideoRecord
}

// Catalog is the canonical, persistent collection of video records. It owns
// the storage root: every rename/delete of a managed video file goes through
// it, and mutating operations are serialized so file moves never interleave
// with persistence writes.
type Catalog struct {
	mu          sync.RWMutex
	storageRoot string
	catalogPath string
	prober      probe.Prober
	videos      []models.VideoRecord
}

// Open loads the catalog from catalogPath. A missing file yields an empty
// catalog; a corrupt file also yields an empty catalog, logged but not fatal.
func Open(storageRoot, catalogPath string, prober probe.Prober) (*Catalog, error) {
	if !helpers.CheckAndMakeDir(storageRoot) {
		return nil, fmt.Errorf("%w: failed to create storage root %s", ErrFileSystem, storageRoot)
	}

	c := &Catalog{
		storageRoot: storageRoot,
		catalogPath: catalogPath,
		prober:      prober,
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("No catalog file at %s, starting empty", catalogPath)
			return c, nil
		}
		return nil, fmt.Errorf("%w: reading catalog file %s: %v", ErrPersistence, catalogPath, err)
	}

	if err := json.Unmarshal(data, &c.videos); err != nil {
		log.WithError(err).Warnf("Catalog file %s is corrupt, starting with an empty catalog", catalogPath)
		c.videos = nil
	}
	return c, nil
}

// FilePath returns the absolute path of a record's backing file.
func (c *Catalog) FilePath(rec models.VideoRecord) string {
	return filepath.Join(c.storageRoot, rec.FileName)
}

// StorageRoot returns the directory whose video files this catalog manages.
func (c *Catalog) StorageRoot() string {
	return c.storageRoot
}

// List returns a read-only snapshot of the records in insertion order.
func (c *Catalog) List() []models.VideoRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.VideoRecord(nil), c.videos...)
}

// Sorted returns the records ordered by the given option: date is newest
// first, title is case-insensitive ascending.
func (c *Catalog) Sorted(by SortOption) []models.VideoRecord {
	out := c.List()
	switch by {
	case SortTitle:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].DownloadedAt.After(out[j].DownloadedAt)
		})
	}
	return out
}

// epochDay converts a record to its UTC calendar-day number.
func epochDay(rec models.VideoRecord) int64 {
	return rec.DownloadedAt.UTC().Unix() / 86400
}

// GroupedByDay groups records by the calendar day they were downloaded,
// newest day first. Records inside a group keep the date ordering.
func (c *Catalog) GroupedByDay() []DayGroup {
	byDay := make(map[int64]*DayGroup)
	for _, rec := range c.Sorted(SortDate) {
		day := epochDay(rec)
		g, ok := byDay[day]
		if !ok {
			g = &DayGroup{
				DayKey: day,
				Label:  rec.DownloadedAt.UTC().Format("Jan 2, 2006"),
			}
			byDay[day] = g
		}
		g.Videos = append(g.Videos, rec)
	}

	groups := make([]DayGroup, 0, len(byDay))
	for _, g := range byDay {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].DayKey > groups[j].DayKey
	})
	return groups
}

// Get returns the record with the given id.
func (c *Catalog) Get(id string) (models.VideoRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.videos[i], nil
	}
	return models.VideoRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Add appends a record and persists the catalog. The record's backing file
// must already exist under the storage root. On a persistence failure the
// in-memory state is rolled back to the last persisted snapshot.
func (c *Catalog) Add(rec models.VideoRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.FilePath(rec)); err != nil {
		return fmt.Errorf("%w: backing file for %q: %v", ErrFileSystem, rec.Title, err)
	}

	snapshot := c.videos
	c.videos = append(append([]models.VideoRecord(nil), c.videos...), rec)
	if err := c.save(); err != nil {
		c.videos = snapshot
		return err
	}
	log.WithField("id", rec.ID).Infof("Added %q to catalog", rec.Title)
	return nil
}

// Rename updates a record's title and moves its backing file to a name
// derived from the new title. If the sanitized target name is already taken
// by a different file the rename is rejected with ErrNameCollision; on any
// failure both record and file are left as they were.
func (c *Catalog) Rename(id, newTitle string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	old := c.videos[i]

	newFileName := helpers.SafeFileName(newTitle, old.FileName)
	oldPath := c.FilePath(old)
	newPath := filepath.Join(c.storageRoot, newFileName)

	moved := false
	if oldPath != newPath {
		if _, err := os.Stat(newPath); err == nil {
			return fmt.Errorf("%w: %s", ErrNameCollision, newFileName)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("%w: stating %s: %v", ErrFileSystem, newPath, err)
		}
		if err := os.Rename(oldPath, newPath); err != nil {
			log.WithError(err).Errorf("Error moving %s to %s, rename aborted", oldPath, newPath)
			return fmt.Errorf("%w: moving %s: %v", ErrFileSystem, oldPath, err)
		}
		moved = true
	}

	snapshot := c.videos
	updated := append([]models.VideoRecord(nil), c.videos...)
	updated[i].Title = newTitle
	updated[i].FileName = newFileName
	c.videos = updated

	if err := c.save(); err != nil {
		c.videos = snapshot
		if moved {
			if undoErr := os.Rename(newPath, oldPath); undoErr != nil {
				log.WithError(undoErr).Errorf("Failed to move %s back to %s after persistence failure", newPath, oldPath)
			}
		}
		return err
	}
	log.WithField("id", id).Infof("Renamed to %q (%s)", newTitle, newFileName)
	return nil
}

// UpdateFileName reconciles a record whose backing file was moved by an
// external actor. It changes the record only, never the file.
func (c *Catalog) UpdateFileName(id, newFileName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	snapshot := c.videos
	updated := append([]models.VideoRecord(nil), c.videos...)
	updated[i].FileName = newFileName
	c.videos = updated

	if err := c.save(); err != nil {
		c.videos = snapshot
		return err
	}
	return nil
}

// Delete removes the record's backing file and the record itself, then
// persists. A file that is already missing is not an error; any other
// removal failure aborts before the record is touched.
func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec := c.videos[i]

	path := c.FilePath(rec)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: removing %s: %v", ErrFileSystem, path, err)
	}

	snapshot := c.videos
	updated := append([]models.VideoRecord(nil), c.videos[:i]...)
	updated = append(updated, c.videos[i+1:]...)
	c.videos = updated

	if err := c.save(); err != nil {
		c.videos = snapshot
		log.WithField("id", id).Error("Catalog write failed after file removal; record restored but its file is gone")
		return err
	}
	log.WithField("id", id).Infof("Deleted %q", rec.Title)
	return nil
}

// RefreshMetadata re-probes duration and size for every record whose derived
// fields are unset or whose file size no longer matches the recorded one.
// The catalog is persisted once at the end, not per record, and only when
// a field actually changed.
func (c *Catalog) RefreshMetadata(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := c.videos
	updated := append([]models.VideoRecord(nil), c.videos...)
	changed := false

	for i, rec := range updated {
		info, err := os.Stat(c.FilePath(rec))
		if err != nil {
			log.WithError(err).Warnf("Cannot stat %s during metadata refresh", rec.FileName)
			continue
		}
		size := info.Size()

		sizeStale := rec.FileSizeBytes == nil || *rec.FileSizeBytes != size
		if !sizeStale && rec.DurationSeconds != nil {
			continue
		}

		if sizeStale {
			updated[i].FileSizeBytes = &size
			changed = true
		}
		if c.prober != nil {
			result, err := c.prober.Probe(ctx, c.FilePath(rec))
			if err != nil {
				log.WithError(err).Warnf("Probe failed for %s", rec.FileName)
			} else if result.Valid {
				d := result.DurationSeconds
				if rec.DurationSeconds == nil || *rec.DurationSeconds != d {
					updated[i].DurationSeconds = &d
					changed = true
				}
			}
		}
	}

	if !changed {
		return nil
	}

	c.videos = updated
	if err := c.save(); err != nil {
		c.videos = snapshot
		return err
	}
	return nil
}

// indexOf must be called with the mutex held.
func (c *Catalog) indexOf(id string) int {
	for i, rec := range c.videos {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

// save writes the full collection to the catalog path atomically: the JSON
// is written to a temp file in the same directory and renamed over the
// target. Must be called with the write lock held.
func (c *Catalog) save() error {
	data, err := json.Marshal(c.videos)
	if err != nil {
		return fmt.Errorf("%w: marshalling catalog: %v", ErrPersistence, err)
	}

	dir := filepath.Dir(c.catalogPath)
	if dir != "." && !helpers.CheckAndMakeDir(dir) {
		return fmt.Errorf("%w: creating catalog directory %s", ErrPersistence, dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.catalogPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp catalog file: %v", ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing temp catalog file: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing temp catalog file: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmpName, c.catalogPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing catalog file: %v", ErrPersistence, err)
	}
	return nil
}
