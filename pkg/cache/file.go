package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/vmihailenco/msgpack/v5"
)

// Artifact envelope identity. Entries with a different format or version
// are treated as misses.
const (
	EnvelopeFormat  = "bgfc"
	EnvelopeVersion = 1

	fileExt = ".bgfc"
)

// FileCache stores entries as files below a directory of a billy
// filesystem. Writes go to a temporary file that is renamed into place.
type FileCache struct {
	fs     billy.Filesystem
	dir    string
	logger *log.Logger
	now    func() time.Time
}

// NewFileCache creates a file cache in the given directory of the host
// filesystem. The directory will be created if it doesn't exist.
func NewFileCache(dir string) (*FileCache, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	c := NewFileCacheFS(osfs.New("/"), abs)
	if err := c.fs.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return c, nil
}

// NewFileCacheFS creates a file cache rooted at dir on fs. Directories are
// created on the first Set.
func NewFileCacheFS(fs billy.Filesystem, dir string) *FileCache {
	return &FileCache{fs: fs, dir: dir, now: time.Now}
}

// WithLogger sets the logger used to report discarded entries.
func (c *FileCache) WithLogger(l *log.Logger) *FileCache {
	c.logger = l
	return c
}

// envelope wraps cached data with metadata.
type envelope struct {
	Format    string    `msgpack:"format"`
	Version   int       `msgpack:"version"`
	Checksum  string    `msgpack:"checksum"`
	ExpiresAt time.Time `msgpack:"expires_at"`
	Data      []byte    `msgpack:"data"`
}

func (e *envelope) check(now time.Time) error {
	switch {
	case e.Format != EnvelopeFormat:
		return fmt.Errorf("format %q, want %q", e.Format, EnvelopeFormat)
	case e.Version != EnvelopeVersion:
		return fmt.Errorf("version %d, want %d", e.Version, EnvelopeVersion)
	case e.Checksum != Hash(e.Data):
		return fmt.Errorf("checksum mismatch")
	case !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt):
		return fmt.Errorf("expired at %s", e.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// Get retrieves a value from the cache. Undecodable, mismatched or expired
// entries are removed and reported as a miss.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	p := c.Path(key)

	f, err := c.fs.Open(p)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	raw, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return nil, false, err
	}

	var entry envelope
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		c.discard(p, fmt.Errorf("decode envelope: %w", err))
		return nil, false, nil
	}
	if err := entry.check(c.now()); err != nil {
		c.discard(p, err)
		return nil, false, nil
	}
	return entry.Data, true, nil
}

func (c *FileCache) discard(p string, reason error) {
	if c.logger != nil {
		c.logger.Warn("discarding cache entry", "path", p, "reason", reason)
	}
	_ = c.fs.Remove(p)
}

// Set stores a value in the cache. The entry is written to a temporary
// file in the target directory and renamed over the final path; concurrent
// writers race benignly and the last rename wins.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	entry := envelope{
		Format:   EnvelopeFormat,
		Version:  EnvelopeVersion,
		Checksum: Hash(data),
		Data:     data,
	}
	if ttl > 0 {
		entry.ExpiresAt = c.now().Add(ttl)
	}
	raw, err := msgpack.Marshal(&entry)
	if err != nil {
		return err
	}

	p := c.Path(key)
	dir := path.Dir(p)
	if err := c.fs.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := util.TempFile(c.fs, dir, ".tmp-"+path.Base(p))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		c.fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		c.fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := c.fs.Rename(tmpName, p); err != nil {
		c.fs.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Delete removes a value from the cache.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := c.fs.Remove(c.Path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Clear removes every entry and the cache directory itself.
func (c *FileCache) Clear() error {
	return util.RemoveAll(c.fs, c.dir)
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Close does nothing for file cache.
func (c *FileCache) Close() error {
	return nil
}

// Path converts a cache key to a file path.
// Uses a simple hash-based directory structure to avoid too many files in one dir.
func (c *FileCache) Path(key string) string {
	hash := Hash([]byte(key))
	// Use first 2 chars as subdirectory for distribution
	return path.Join(c.dir, hash[:2], hash[2:]+fileExt)
}

// Ensure FileCache implements Cache.
var _ Cache = (*FileCache)(nil)
