package cache

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/vmihailenco/msgpack/v5"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ = c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()
	base := ArtifactKeyOpts{ByteOrder: "little", PointerWidth: 8, Format: EnvelopeFormat, Version: 1}

	key := k.ArtifactKey("MUTAG.bgf", base)
	if !strings.HasPrefix(key, "artifact:") {
		t.Errorf("ArtifactKey should be prefixed: %s", key)
	}
	if key != k.ArtifactKey("MUTAG.bgf", base) {
		t.Error("ArtifactKey should be deterministic")
	}

	variants := []struct {
		name   string
		source string
		opts   ArtifactKeyOpts
	}{
		{"source", "PTC.bgf", base},
		{"byte order", "MUTAG.bgf", ArtifactKeyOpts{ByteOrder: "big", PointerWidth: 8, Format: EnvelopeFormat, Version: 1}},
		{"pointer width", "MUTAG.bgf", ArtifactKeyOpts{ByteOrder: "little", PointerWidth: 4, Format: EnvelopeFormat, Version: 1}},
		{"version", "MUTAG.bgf", ArtifactKeyOpts{ByteOrder: "little", PointerWidth: 8, Format: EnvelopeFormat, Version: 2}},
	}
	for _, v := range variants {
		if k.ArtifactKey(v.source, v.opts) == key {
			t.Errorf("changing %s should change the key", v.name)
		}
	}
}

func newMemCache(t *testing.T) (*FileCache, billy.Filesystem) {
	t.Helper()
	fs := memfs.New()
	return NewFileCacheFS(fs, "/data/processed"), fs
}

func TestFileCacheGetSetDelete(t *testing.T) {
	ctx := context.Background()
	c, fs := newMemCache(t)

	if _, hit, err := c.Get(ctx, "k"); err != nil || hit {
		t.Fatalf("Get on empty cache = hit %v, err %v", hit, err)
	}

	if err := c.Set(ctx, "k", []byte("payload"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "payload" {
		t.Fatalf("Get = %q, %v, %v; want payload hit", data, hit, err)
	}

	p := c.Path("k")
	if !strings.HasPrefix(p, "/data/processed/") || !strings.HasSuffix(p, ".bgfc") {
		t.Errorf("Path(k) = %s", p)
	}
	if _, err := fs.Stat(p); err != nil {
		t.Errorf("artifact not at Path(k): %v", err)
	}

	// No temp files are left behind.
	matches, err := util.Glob(fs, "/data/processed/*/.tmp-*")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("Get after Delete should miss")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, fs := newMemCache(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "k"); !hit {
		t.Fatal("entry should be live before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry should miss")
	}
	if _, err := fs.Stat(c.Path("k")); !os.IsNotExist(err) {
		t.Errorf("expired entry should be removed, stat err = %v", err)
	}
}

func writeRaw(t *testing.T, fs billy.Filesystem, p string, raw []byte) {
	t.Helper()
	if err := util.WriteFile(fs, p, raw, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFileCacheInvalidEntries(t *testing.T) {
	mustMarshal := func(e envelope) []byte {
		raw, err := msgpack.Marshal(&e)
		if err != nil {
			t.Fatal(err)
		}
		return raw
	}
	data := []byte("columns")

	tests := []struct {
		name string
		raw  []byte
	}{
		{"garbage", []byte("definitely not msgpack")},
		{"truncated", mustMarshal(envelope{Format: EnvelopeFormat, Version: EnvelopeVersion, Checksum: Hash(data), Data: data})[:10]},
		{"wrong format", mustMarshal(envelope{Format: "json", Version: EnvelopeVersion, Checksum: Hash(data), Data: data})},
		{"wrong version", mustMarshal(envelope{Format: EnvelopeFormat, Version: 99, Checksum: Hash(data), Data: data})},
		{"bad checksum", mustMarshal(envelope{Format: EnvelopeFormat, Version: EnvelopeVersion, Checksum: Hash([]byte("other")), Data: data})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c, fs := newMemCache(t)
			p := c.Path("k")
			writeRaw(t, fs, p, tt.raw)

			_, hit, err := c.Get(ctx, "k")
			if err != nil || hit {
				t.Fatalf("Get = hit %v, err %v; want miss without error", hit, err)
			}
			if _, err := fs.Stat(p); !os.IsNotExist(err) {
				t.Errorf("invalid entry should be removed, stat err = %v", err)
			}
		})
	}
}

func TestFileCacheOverwrite(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}

	for _, v := range []string{"first", "second"} {
		if err := c.Set(ctx, "k", []byte(v), 0); err != nil {
			t.Fatalf("Set(%s): %v", v, err)
		}
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "second" {
		t.Errorf("Get = %q, %v, %v; want second", data, hit, err)
	}
}

func TestFileCacheConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewFileCacheFS(osfs.New(dir), "/cache")
	payload := []byte(strings.Repeat("x", 1<<16))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Set(ctx, "k", payload, 0); err != nil {
				t.Errorf("Set: %v", err)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Readers never see a partial entry.
			if data, hit, err := c.Get(ctx, "k"); err != nil || (hit && len(data) != len(payload)) {
				t.Errorf("Get = %d bytes, hit %v, err %v", len(data), hit, err)
			}
		}()
	}
	wg.Wait()

	data, hit, _ := c.Get(ctx, "k")
	if !hit || len(data) != len(payload) {
		t.Errorf("final Get = %d bytes, hit %v", len(data), hit)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, fs := newMemCache(t)
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := fs.Stat(c.Dir()); !os.IsNotExist(err) {
		t.Errorf("cache dir should be gone, stat err = %v", err)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("Get after Clear should miss")
	}
}

func TestFileCacheReadError(t *testing.T) {
	c := NewFileCacheFS(failingFS{memfs.New()}, "/cache")
	if _, _, err := c.Get(context.Background(), "k"); err == nil {
		t.Error("Get should surface filesystem errors other than not-exist")
	}
}

// failingFS fails every Open with a permission error.
type failingFS struct {
	billy.Filesystem
}

func (failingFS) Open(string) (billy.File, error) { return nil, os.ErrPermission }
