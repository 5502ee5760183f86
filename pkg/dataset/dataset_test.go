package dataset

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/bgf/pkg/bgf"
	"github.com/matzehuels/bgf/pkg/cache"
	"github.com/matzehuels/bgf/pkg/collection"
	"github.com/matzehuels/bgf/pkg/errors"
)

const source = "/data/MUTAG/MUTAG_edit_paths.bgf"

// countingFS counts every access to one path.
type countingFS struct {
	billy.Filesystem
	path     string
	accesses atomic.Int32
}

func (c *countingFS) note(name string) {
	if filepath.Clean(name) == filepath.Clean(c.path) {
		c.accesses.Add(1)
	}
}

func (c *countingFS) Open(name string) (billy.File, error) {
	c.note(name)
	return c.Filesystem.Open(name)
}

func (c *countingFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	c.note(name)
	return c.Filesystem.OpenFile(name, flag, perm)
}

func (c *countingFS) Stat(name string) (os.FileInfo, error) {
	c.note(name)
	return c.Filesystem.Stat(name)
}

func testRecords(t *testing.T, n int) []*bgf.Record {
	t.Helper()
	records := make([]*bgf.Record, n)
	for i := range records {
		nodes := i%4 + 2
		x := bgf.NewMatrix(nodes, 2)
		for j := range x.Data {
			x.Data[j] = float64(i) + float64(j)/10
		}
		ei := bgf.NewEdgeIndex(nodes - 1)
		ea := bgf.NewMatrix(nodes-1, 1)
		for j := 0; j < nodes-1; j++ {
			ei.Src[j], ei.Dst[j] = uint64(j), uint64(j+1)
			ea.Data[j] = float64(j % 3)
		}
		h := bgf.Header{
			Name:             fmt.Sprintf("MUTAG_%d_%d_%d", i/3, i/3+1, i%3),
			NodeCount:        uint64(nodes),
			NodeFeatureCount: 2,
			NodeFeatureNames: []string{"label", "charge"},
			EdgeCount:        uint64(nodes - 1),
			EdgeFeatureCount: 1,
			EdgeFeatureNames: []string{"bond"},
		}
		r, err := bgf.NewRecord(h, 1, x, ei, ea)
		if err != nil {
			t.Fatal(err)
		}
		records[i] = r
	}
	return records
}

func writeSource(t *testing.T, fs billy.Filesystem, path string, records []*bgf.Record, width int) {
	t.Helper()
	enc, err := bgf.NewEncoder(binary.LittleEndian, width)
	if err != nil {
		t.Fatal(err)
	}
	data, err := enc.EncodeBytes(1, records)
	if err != nil {
		t.Fatal(err)
	}
	if err := util.WriteFile(fs, path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestDataset(t *testing.T, fs billy.Filesystem, path string) *Dataset {
	t.Helper()
	d, err := New(path, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.Logger = log.New(io.Discard)
	d.Cache = cache.NewFileCacheFS(fs, d.ProcessedDir()).WithLogger(d.Logger)
	return d
}

func records(t *testing.T, c *collection.Collection) []*bgf.Record {
	t.Helper()
	rs, err := c.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	return rs
}

func TestMaterializeIdempotent(t *testing.T) {
	ctx := context.Background()
	want := testRecords(t, 12)
	fs := &countingFS{Filesystem: memfs.New(), path: source}
	writeSource(t, fs.Filesystem, source, want, 8)

	first, info, err := newTestDataset(t, fs, source).MaterializeWithInfo(ctx)
	if err != nil {
		t.Fatalf("first Materialize: %v", err)
	}
	if info.CacheHit {
		t.Error("first call should decode the source")
	}
	if info.Graphs != 12 {
		t.Errorf("Info.Graphs = %d, want 12", info.Graphs)
	}
	if !strings.HasPrefix(info.ArtifactPath, "/data/MUTAG/processed/") {
		t.Errorf("ArtifactPath = %s, want below /data/MUTAG/processed/", info.ArtifactPath)
	}
	if _, err := fs.Filesystem.Stat(info.ArtifactPath); err != nil {
		t.Errorf("artifact not written: %v", err)
	}

	before := fs.accesses.Load()
	if before == 0 {
		t.Fatal("decode should have read the source")
	}

	second, info, err := newTestDataset(t, fs, source).MaterializeWithInfo(ctx)
	if err != nil {
		t.Fatalf("second Materialize: %v", err)
	}
	if !info.CacheHit {
		t.Error("second call should restore from the artifact")
	}
	if got := fs.accesses.Load(); got != before {
		t.Errorf("cache hit touched the source %d times", got-before)
	}

	if diff := cmp.Diff(want, records(t, first)); diff != "" {
		t.Errorf("decoded records mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(records(t, first), records(t, second)); diff != "" {
		t.Errorf("restored records mismatch (-first +second):\n%s", diff)
	}

	a, _ := collection.Marshal(first)
	b, _ := collection.Marshal(second)
	if string(a) != string(b) {
		t.Error("repeated materialization should be bit-identical")
	}
}

func TestMaterializeWithoutSourceAfterCaching(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	writeSource(t, fs, source, testRecords(t, 3), 8)

	if _, err := newTestDataset(t, fs, source).Materialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err := fs.Remove(source); err != nil {
		t.Fatal(err)
	}
	c, info, err := newTestDataset(t, fs, source).MaterializeWithInfo(ctx)
	if err != nil {
		t.Fatalf("Materialize without source: %v", err)
	}
	if !info.CacheHit || c.Len() != 3 {
		t.Errorf("got hit=%v len=%d, want hit with 3 graphs", info.CacheHit, c.Len())
	}
}

func TestSourceNotFound(t *testing.T) {
	_, err := newTestDataset(t, memfs.New(), source).Materialize(context.Background())
	if !errors.Is(err, errors.ErrCodeSourceNotFound) {
		t.Errorf("error = %v, want SOURCE_NOT_FOUND", err)
	}
}

func TestDecodeErrorsPropagate(t *testing.T) {
	fs := memfs.New()
	if err := util.WriteFile(fs, source, []byte{1, 0, 0, 0, 0xff, 0xff, 0xff, 0x7f}, 0644); err != nil {
		t.Fatal(err)
	}
	d := newTestDataset(t, fs, source)
	if _, err := d.Materialize(context.Background()); !errors.Is(err, errors.ErrCodeCorruptContainer) {
		t.Errorf("error = %v, want CORRUPT_CONTAINER", err)
	}
	if _, err := fs.Stat(d.ArtifactPath()); !os.IsNotExist(err) {
		t.Errorf("no artifact should be written for a failed decode, stat err = %v", err)
	}
}

func TestCorruptArtifactIsRecomputed(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(t *testing.T, fs billy.Filesystem, d *Dataset)
	}{
		{"garbage file", func(t *testing.T, fs billy.Filesystem, d *Dataset) {
			if err := util.WriteFile(fs, d.ArtifactPath(), []byte("garbage"), 0644); err != nil {
				t.Fatal(err)
			}
		}},
		{"truncated file", func(t *testing.T, fs billy.Filesystem, d *Dataset) {
			f, err := fs.OpenFile(d.ArtifactPath(), os.O_RDWR, 0)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.Truncate(40); err != nil {
				t.Fatal(err)
			}
			f.Close()
		}},
		{"invalid columns", func(t *testing.T, fs billy.Filesystem, d *Dataset) {
			if err := d.Cache.Set(context.Background(), d.ArtifactKey(), []byte{0x80}, 0); err != nil {
				t.Fatal(err)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			want := testRecords(t, 5)
			fs := memfs.New()
			writeSource(t, fs, source, want, 8)

			d := newTestDataset(t, fs, source)
			if _, err := d.Materialize(ctx); err != nil {
				t.Fatal(err)
			}
			tt.corrupt(t, fs, d)

			c, info, err := newTestDataset(t, fs, source).MaterializeWithInfo(ctx)
			if err != nil {
				t.Fatalf("Materialize over corrupt artifact: %v", err)
			}
			if info.CacheHit {
				t.Error("corrupt artifact should be treated as absent")
			}
			if diff := cmp.Diff(want, records(t, c)); diff != "" {
				t.Errorf("records mismatch (-want +got):\n%s", diff)
			}

			_, info, err = newTestDataset(t, fs, source).MaterializeWithInfo(ctx)
			if err != nil || !info.CacheHit {
				t.Errorf("artifact should be rewritten: hit=%v err=%v", info.CacheHit, err)
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	fs := &countingFS{Filesystem: memfs.New(), path: source}
	writeSource(t, fs.Filesystem, source, testRecords(t, 4), 8)

	if _, err := newTestDataset(t, fs, source).Materialize(ctx); err != nil {
		t.Fatal(err)
	}
	before := fs.accesses.Load()

	// The source changed, and the caller asks for a rebuild.
	writeSource(t, fs.Filesystem, source, testRecords(t, 6), 8)
	d := newTestDataset(t, fs, source)
	d.Refresh = true
	c, info, err := d.MaterializeWithInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.CacheHit || fs.accesses.Load() == before {
		t.Error("Refresh should decode the source")
	}
	if c.Len() != 6 {
		t.Errorf("Len() = %d, want 6", c.Len())
	}

	c, info, err = newTestDataset(t, fs, source).MaterializeWithInfo(ctx)
	if err != nil || !info.CacheHit || c.Len() != 6 {
		t.Errorf("refreshed artifact should be cached: hit=%v len=%d err=%v", info.CacheHit, c.Len(), err)
	}
}

func TestFilterTransform(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	writeSource(t, fs, source, testRecords(t, 9), 8)

	d := newTestDataset(t, fs, source)
	d.Variant = "step0-typed"
	d.Filter = func(r *bgf.Record) bool { return r.EditPathStep == "0" }
	d.Transform = func(r *bgf.Record) (*bgf.Record, error) {
		h := r.Header
		h.GraphType = 7
		return bgf.NewRecord(h, r.FormatVersion, r.NodeFeatures, r.EdgeIndex, r.EdgeFeatures)
	}

	c, err := d.Materialize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	for _, r := range records(t, c) {
		if r.EditPathStep != "0" || r.Header.GraphType != 7 {
			t.Errorf("record %s: step %s type %d", r.Name(), r.EditPathStep, r.Header.GraphType)
		}
	}

	// The plain dataset does not share the hooked artifact.
	plain := newTestDataset(t, fs, source)
	if plain.ArtifactPath() == d.ArtifactPath() {
		t.Fatal("variants should use distinct artifacts")
	}
	c, info, err := plain.MaterializeWithInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.CacheHit || c.Len() != 9 {
		t.Errorf("plain dataset: hit=%v len=%d, want miss with 9 graphs", info.CacheHit, c.Len())
	}

	d.Transform = func(r *bgf.Record) (*bgf.Record, error) { return nil, fmt.Errorf("boom") }
	d.Refresh = true
	if _, err := d.Materialize(ctx); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("transform error = %v, want boom", err)
	}
}

func TestDecodeSettingsSelectArtifact(t *testing.T) {
	fs := memfs.New()
	a := newTestDataset(t, fs, source)
	b := newTestDataset(t, fs, source)
	b.Options.PointerWidth = 4
	c := newTestDataset(t, fs, source)
	c.Options.ByteOrder = binary.BigEndian

	paths := map[string]bool{a.ArtifactPath(): true, b.ArtifactPath(): true, c.ArtifactPath(): true}
	if len(paths) != 3 {
		t.Errorf("decode settings should map to distinct artifacts: %v", paths)
	}
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	fs := &countingFS{Filesystem: memfs.New(), path: source}
	writeSource(t, fs.Filesystem, source, testRecords(t, 2), 8)

	d := newTestDataset(t, fs, source)
	d.Cache = cache.NewNullCache()
	if d.ArtifactPath() != "" {
		t.Errorf("ArtifactPath() = %q, want empty", d.ArtifactPath())
	}
	for i := 0; i < 2; i++ {
		if _, info, err := d.MaterializeWithInfo(ctx); err != nil || info.CacheHit {
			t.Fatalf("call %d: hit=%v err=%v", i, info.CacheHit, err)
		}
	}
}

func TestHostFilesystem(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "PTC_edit_paths.bgf")
	want := testRecords(t, 20)
	writeSource(t, osfs.New("/"), filepath.ToSlash(src), want, 4)

	d, err := New(src, nil)
	if err != nil {
		t.Fatal(err)
	}
	d.Logger = log.New(io.Discard)
	d.Options.PointerWidth = 4
	d.Options.Workers = 4

	c, info, err := d.MaterializeWithInfo(ctx)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if diff := cmp.Diff(want, records(t, c)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if filepath.Dir(filepath.Dir(filepath.FromSlash(info.ArtifactPath))) != filepath.Join(dir, ProcessedDirName) {
		t.Errorf("ArtifactPath = %s, want below %s", info.ArtifactPath, filepath.Join(dir, ProcessedDirName))
	}
	if _, err := os.Stat(filepath.FromSlash(info.ArtifactPath)); err != nil {
		t.Errorf("artifact missing on disk: %v", err)
	}

	if err := d.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(filepath.FromSlash(info.ArtifactPath)); !os.IsNotExist(err) {
		t.Errorf("artifact should be removed, stat err = %v", err)
	}
}

func TestConcurrentMaterialize(t *testing.T) {
	ctx := context.Background()
	dir := filepath.ToSlash(t.TempDir())
	fs := osfs.New("/")
	src := dir + "/MUTAG_edit_paths.bgf"
	writeSource(t, fs, src, testRecords(t, 30), 8)
	d := newTestDataset(t, fs, src)

	var wg sync.WaitGroup
	lens := make([]int, 16)
	for i := range lens {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := d.Materialize(ctx)
			if err != nil {
				t.Errorf("Materialize: %v", err)
				return
			}
			lens[i] = c.Len()
		}()
	}
	wg.Wait()

	for i, n := range lens {
		if n != 30 {
			t.Errorf("caller %d got %d graphs, want 30", i, n)
		}
	}
	if _, info, err := newTestDataset(t, fs, src).MaterializeWithInfo(ctx); err != nil || !info.CacheHit {
		t.Errorf("artifact should be valid after concurrent writers: hit=%v err=%v", info.CacheHit, err)
	}
}

func TestNewRejectsBadSource(t *testing.T) {
	for _, src := range []string{"", "bad\x00path"} {
		if _, err := New(src, memfs.New()); !errors.Is(err, errors.ErrCodeInvalidConfig) {
			t.Errorf("New(%q) error = %v, want INVALID_CONFIG", src, err)
		}
	}
}
