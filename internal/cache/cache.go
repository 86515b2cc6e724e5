// Package cache implements the on-disk extraction cache from
// SPEC_FULL.md ADD 4.1.1: a content-hash keyed store of unit.File
// extraction results, so re-running on an unchanged tree skips re-reading
// and re-matching every file. Adapted from the teacher's
// internal/indexer/cache.go factsCache, repointed at unit.File instead of
// extractor.FileFacts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-vhdeps/vhdeps/internal/unit"
	"github.com/go-vhdeps/vhdeps/internal/vherr"
)

const indexVersion = 1

// ExtractorVersion is bumped whenever the extraction patterns or semantics
// in internal/unit change in a way that would invalidate cached results.
const ExtractorVersion = "1"

type entry struct {
	ContentHash      string `json:"content_hash"`
	FilePath         string `json:"file_path"`
	ExtractorVersion string `json:"extractor_version"`
}

type index struct {
	Version int              `json:"version"`
	Entries map[string]entry `json:"entries"`
}

// Cache is a directory-backed store of extracted unit.File values, keyed
// by the source file's canonical path and content hash.
type Cache struct {
	dir string
	mu  sync.Mutex
	idx index
}

// New returns a Cache rooted at dir. dir is created lazily by Load/Put.
func New(dir string) *Cache {
	return &Cache{
		dir: dir,
		idx: index{Version: indexVersion, Entries: make(map[string]entry)},
	}
}

func (c *Cache) indexPath() string { return filepath.Join(c.dir, "index.json") }

func (c *Cache) unitsDir() string { return filepath.Join(c.dir, "units") }

func (c *Cache) unitPath(sourcePath string) string {
	h := sha256.Sum256([]byte(sourcePath))
	return filepath.Join(c.unitsDir(), hex.EncodeToString(h[:])+".json")
}

// Load reads the on-disk index, if any. A missing directory or index is
// not an error; the cache simply starts empty.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return vherr.Wrap(vherr.KindIO, err, "read cache index")
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return vherr.Wrap(vherr.KindIO, err, "parse cache index")
	}
	if idx.Version != indexVersion || idx.Entries == nil {
		idx = index{Version: indexVersion, Entries: make(map[string]entry)}
	}
	c.idx = idx
	return nil
}

// Save persists the index to disk.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeJSONAtomic(c.indexPath(), c.idx)
}

// Get returns the cached File for sourcePath if its content hash still
// matches what was cached and the extractor version hasn't changed.
func (c *Cache) Get(sourcePath, contentHash string) (*unit.File, bool, error) {
	c.mu.Lock()
	e, ok := c.idx.Entries[sourcePath]
	c.mu.Unlock()
	if !ok || e.ContentHash != contentHash || e.ExtractorVersion != ExtractorVersion {
		return nil, false, nil
	}

	data, err := os.ReadFile(c.unitPath(sourcePath))
	if err != nil {
		return nil, false, nil // stale/missing cache entry, treat as a miss
	}
	var f unit.File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, false, vherr.Wrap(vherr.KindIO, err, "parse cached unit for %s", sourcePath)
	}
	return &f, true, nil
}

// Put stores f's extraction result for sourcePath under contentHash.
func (c *Cache) Put(sourcePath, contentHash string, f *unit.File) error {
	path := c.unitPath(sourcePath)
	if err := writeJSONAtomic(path, f); err != nil {
		return err
	}
	c.mu.Lock()
	c.idx.Entries[sourcePath] = entry{ContentHash: contentHash, FilePath: path, ExtractorVersion: ExtractorVersion}
	c.mu.Unlock()
	return nil
}

// HashFile returns the sha256 content hash of path, used as the cache key
// alongside the canonical path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", vherr.Wrap(vherr.KindIO, err, "open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", vherr.Wrap(vherr.KindIO, err, "hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return vherr.Wrap(vherr.KindIO, err, "marshal cache json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return vherr.Wrap(vherr.KindIO, err, "mkdir cache dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return vherr.Wrap(vherr.KindIO, err, "create temp cache file")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return vherr.Wrap(vherr.KindIO, err, "write cache file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return vherr.Wrap(vherr.KindIO, err, "close cache file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return vherr.Wrap(vherr.KindIO, err, "rename cache file")
	}
	return nil
}
