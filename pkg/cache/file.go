package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/shelfmark/pkg/observability"
)

// entryHeader is the size of the expiry prefix on every entry file: a
// big-endian Unix nanosecond timestamp, zero for entries that never expire.
const entryHeader = 8

// FileCache keeps one file per key under dir, fanned out by the first two
// hex digits of the key's hash. Entries are the expiry header followed by
// the raw value, so multi-megabyte snapshots are stored without re-encoding.
// Pointing several machines at one network mount makes it a shared store.
type FileCache struct {
	dir string
}

// NewFileCache opens (and creates) a file cache rooted at dir.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) Dir() string { return c.dir }

// Get returns the value for key. Expired and truncated entries are removed
// and reported as misses.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		observability.Cache().OnCacheMiss(ctx, "file")
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}

	if len(raw) < entryHeader || expired(raw[:entryHeader], time.Now()) {
		os.Remove(path)
		observability.Cache().OnCacheMiss(ctx, "file")
		return nil, false, nil
	}
	observability.Cache().OnCacheHit(ctx, "file")
	return raw[entryHeader:], true, nil
}

// Set writes data under key. The file is written beside its final name and
// renamed into place, so concurrent readers see the old or the new entry.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	buf := make([]byte, entryHeader+len(data))
	if ttl > 0 {
		binary.BigEndian.PutUint64(buf, uint64(time.Now().Add(ttl).UnixNano()))
	}
	copy(buf[entryHeader:], data)

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := replaceFile(path, buf); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, "file", len(data))
	return nil
}

// Has reads only the entry header. Expired and truncated entries report
// false and are left for Get to remove.
func (c *FileCache) Has(_ context.Context, key string) (bool, error) {
	f, err := os.Open(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	var header [entryHeader]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return false, nil
	}
	return !expired(header[:], time.Now()), nil
}

func (c *FileCache) Delete(_ context.Context, key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (c *FileCache) Close() error { return nil }

func (c *FileCache) path(key string) string {
	h := Hash([]byte(key))
	return filepath.Join(c.dir, h[:2], h[2:]+".entry")
}

func expired(header []byte, now time.Time) bool {
	at := binary.BigEndian.Uint64(header)
	return at != 0 && now.UnixNano() >= int64(at)
}

func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var (
	_ Cache   = (*FileCache)(nil)
	_ Checker = (*FileCache)(nil)
)
