package toolchain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
)

// Bump when ProbePayload changes shape.
const probeCacheSchemaVersion uint16 = 1

// Cache stores llc probe results on disk, keyed by the llc binary.
// Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// ProbeKey identifies one llc binary build.
type ProbeKey struct {
	Path    string
	Size    int64
	ModTime int64
}

// keyForBinary stats path to build its ProbeKey.
func keyForBinary(path string) (ProbeKey, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ProbeKey{}, err
	}
	return ProbeKey{Path: path, Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
}

func (k ProbeKey) digest() string {
	sum := sha256.Sum256([]byte(k.Path + "\x00" + strconv.FormatInt(k.Size, 10) + "\x00" + strconv.FormatInt(k.ModTime, 10)))
	return hex.EncodeToString(sum[:])
}

// ProbePayload is the cached result of probing one llc binary.
type ProbePayload struct {
	Schema        uint16
	Key           ProbeKey
	Version       string
	DefaultTriple string
	HostCPU       string
	TargetCount   uint32
	Targets       []TargetInfo
}

// OpenCache opens (creating if needed) the cache for app under
// $XDG_CACHE_HOME or ~/.cache.
func OpenCache(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenCacheDir(filepath.Join(base, app))
}

// OpenCacheDir opens a cache rooted at dir.
func OpenCacheDir(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Cache) pathFor(key ProbeKey) string {
	return filepath.Join(c.dir, "probes", key.digest()+".mp")
}

// Put writes the payload for key, replacing any previous entry atomically.
func (c *Cache) Put(key ProbeKey, info llcInfo) error {
	if c == nil {
		return nil
	}
	count, err := safecast.Conv[uint32](len(info.Targets))
	if err != nil {
		return fmt.Errorf("probe cache: %w", err)
	}
	payload := ProbePayload{
		Schema:        probeCacheSchemaVersion,
		Key:           key,
		Version:       info.Version,
		DefaultTriple: info.DefaultTriple,
		HostCPU:       info.HostCPU,
		TargetCount:   count,
		Targets:       info.Targets,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer func() {
		// already renamed on success
		_ = os.Remove(tmpName)
	}()
	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, p)
}

// Get loads the payload for key. A missing, stale or corrupt entry is a
// miss, not an error.
func (c *Cache) Get(key ProbeKey) (llcInfo, bool, error) {
	if c == nil {
		return llcInfo{}, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	// #nosec G304 -- path is derived from the cache dir and a digest
	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return llcInfo{}, false, nil
		}
		return llcInfo{}, false, err
	}
	defer f.Close()

	var payload ProbePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return llcInfo{}, false, nil
	}
	if payload.Schema != probeCacheSchemaVersion || payload.Key != key {
		return llcInfo{}, false, nil
	}
	if n, err := safecast.Conv[int](payload.TargetCount); err != nil || n != len(payload.Targets) {
		return llcInfo{}, false, nil
	}
	return llcInfo{
		Version:       payload.Version,
		DefaultTriple: payload.DefaultTriple,
		HostCPU:       payload.HostCPU,
		Targets:       payload.Targets,
	}, true, nil
}

// DropAll removes every cached entry.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o750)
}
