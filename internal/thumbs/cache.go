package thumbs

import (
	"container/list"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go-localtube/internal/helpers"
	"go-localtube/internal/probe"

	log "github.com/sirupsen/logrus"
)

// Cache is a two-tier thumbnail cache keyed by video id: a bounded
// least-recently-used memory tier over a per-id PNG file disk tier.
// On a full miss it generates a thumbnail by extracting a frame from the
// video file at a fixed offset. Generation failure is silent; callers
// fall back to a placeholder.
//
// Safe for concurrent use; generation and disk writes for the same id are
// serialized, distinct ids proceed in parallel.
type Cache struct {
	dir      string
	prober   probe.Prober
	offset   float64
	capacity int

	mu      sync.Mutex
	order   *list.List // front = most recently used, element values are ids
	entries map[string]*memEntry

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

type memEntry struct {
	elem *list.Element
	data []byte
}

// New creates a Cache storing disk-tier files under dir (created lazily)
// and holding at most capacity images in memory.
func New(dir string, prober probe.Prober, offsetSeconds float64, capacity int) *Cache {
	if capacity <= 0 {
		capacity = 64
	}
	return &Cache{
		dir:      dir,
		prober:   prober,
		offset:   offsetSeconds,
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*memEntry),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Get returns the PNG thumbnail for videoID, or (nil, false) if none could
// be produced. Lookup order: memory tier, disk tier, then frame extraction
// from filePath; a generated image populates both tiers.
func (c *Cache) Get(ctx context.Context, videoID, filePath string) ([]byte, bool) {
	if data, ok := c.fromMemory(videoID); ok {
		return data, true
	}

	// One generation/disk read per id at a time.
	lock := c.idLock(videoID)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have filled the memory tier while we waited.
	if data, ok := c.fromMemory(videoID); ok {
		return data, true
	}

	if data, err := os.ReadFile(c.diskPath(videoID)); err == nil {
		c.toMemory(videoID, data)
		return data, true
	}

	data, err := c.prober.ExtractFrame(ctx, filePath, c.offset)
	if err != nil {
		log.WithError(err).Debugf("Thumbnail generation failed for %s", videoID)
		return nil, false
	}

	c.toMemory(videoID, data)
	c.writeDisk(videoID, data)
	return data, true
}

// Remove drops the id's entry from both tiers. Used when its video is
// deleted from the catalog.
func (c *Cache) Remove(videoID string) {
	c.mu.Lock()
	if e, ok := c.entries[videoID]; ok {
		c.order.Remove(e.elem)
		delete(c.entries, videoID)
	}
	c.mu.Unlock()

	// The per-id lock is only needed while the id can still be requested.
	c.lockMu.Lock()
	delete(c.locks, videoID)
	c.lockMu.Unlock()

	if err := os.Remove(c.diskPath(videoID)); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warnf("Failed to remove cached thumbnail for %s", videoID)
	}
}

// EvictMemory clears the memory tier only; the disk tier is untouched.
func (c *Cache) EvictMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*memEntry)
}

// Prune removes disk-tier files whose id is not in keep. Returns the number
// of files removed.
func (c *Cache) Prune(keep map[string]bool) int {
	dirents, err := os.ReadDir(c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warnf("Cannot read thumbnail cache directory %s", c.dir)
		}
		return 0
	}

	removed := 0
	for _, d := range dirents {
		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, ".png") {
			continue
		}
		id := strings.TrimSuffix(name, ".png")
		if keep[id] {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			log.WithError(err).Warnf("Failed to prune thumbnail %s", name)
			continue
		}
		removed++
	}
	return removed
}

func (c *Cache) diskPath(videoID string) string {
	return filepath.Join(c.dir, videoID+".png")
}

func (c *Cache) fromMemory(videoID string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[videoID]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(e.elem)
	return e.data, true
}

func (c *Cache) toMemory(videoID string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[videoID]; ok {
		e.data = data
		c.order.MoveToFront(e.elem)
		return
	}

	c.entries[videoID] = &memEntry{
		elem: c.order.PushFront(videoID),
		data: data,
	}
	for len(c.entries) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(string))
	}
}

// writeDisk persists a generated thumbnail, temp file then rename so a
// concurrent reader never sees a partial image. Failure is non-fatal.
func (c *Cache) writeDisk(videoID string, data []byte) {
	if !helpers.CheckAndMakeDir(c.dir) {
		return
	}
	tmp, err := os.CreateTemp(c.dir, videoID+".*.tmp")
	if err != nil {
		log.WithError(err).Warnf("Cannot create temp thumbnail file for %s", videoID)
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		log.WithError(err).Warnf("Cannot write thumbnail for %s", videoID)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return
	}
	if err := os.Rename(tmpName, c.diskPath(videoID)); err != nil {
		os.Remove(tmpName)
		log.WithError(err).Warnf("Cannot store thumbnail for %s", videoID)
	}
}

func (c *Cache) idLock(videoID string) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	m, ok := c.locks[videoID]
	if !ok {
		m = &sync.Mutex{}
		c.locks[videoID] = m
	}
	return m
}
