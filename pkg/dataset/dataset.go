// Package dataset turns a BGF source file into a cached [collection.Collection].
//
// The first [Dataset.Materialize] decodes the source, collates the records
// and stores the columnar form in a processed/ directory next to the
// source. Later calls restore the collection from that artifact without
// opening the source at all.
package dataset

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
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/bgf/pkg/bgf"
	"github.com/matzehuels/bgf/pkg/cache"
	"github.com/matzehuels/bgf/pkg/collection"
	"github.com/matzehuels/bgf/pkg/errors"
	"github.com/matzehuels/bgf/pkg/observability"
)

// keyType labels artifact events reported to observability hooks.
const keyType = "artifact"

// ProcessedDirName is the sibling directory of a source that holds its
// processed artifacts.
const ProcessedDirName = "processed"

// Dataset binds a BGF source to its processed artifact.
//
// Fields may be set after New and before the first Materialize. A Dataset
// is safe for concurrent use; concurrent Materialize calls share a single
// decode.
type Dataset struct {
	// Source is the BGF path on FS.
	Source string
	// Options describe how the source was written.
	Options bgf.Options

	FS     billy.Filesystem
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Refresh forces a decode even when a valid artifact exists. The
	// fresh artifact replaces the old one.
	Refresh bool
	// TTL bounds the artifact lifetime. Zero means no expiry.
	TTL time.Duration

	// Filter drops records for which it returns false. It runs on the
	// decode path only; the artifact holds the filtered collection.
	Filter func(*bgf.Record) bool
	// Transform rewrites each kept record before collation.
	Transform func(*bgf.Record) (*bgf.Record, error)
	// Variant names the Filter/Transform combination so artifacts built
	// with different hooks do not collide.
	Variant string

	group singleflight.Group
}

// Info describes how a collection was obtained.
type Info struct {
	CacheHit     bool
	ArtifactPath string
	Graphs       int
	DecodeTime   time.Duration
	CollateTime  time.Duration
}

// New creates a dataset for source. A nil fs selects the host filesystem,
// in which case a relative source is resolved against the working
// directory. The artifact cache defaults to a FileCache in the source's
// processed/ directory.
func New(source string, fs billy.Filesystem) (*Dataset, error) {
	if err := errors.ValidateSourcePath(source); err != nil {
		return nil, err
	}
	if fs == nil {
		abs, err := filepath.Abs(source)
		if err != nil {
			return nil, fmt.Errorf("resolve source: %w", err)
		}
		source = filepath.ToSlash(abs)
		fs = osfs.New("/")
	}

	d := &Dataset{
		Source:  source,
		Options: bgf.DefaultOptions(),
		FS:      fs,
		Keyer:   cache.NewDefaultKeyer(),
		Logger:  log.Default(),
	}
	d.Cache = cache.NewFileCacheFS(fs, d.ProcessedDir()).WithLogger(d.Logger)
	return d, nil
}

// ProcessedDir returns the directory holding the source's artifacts.
func (d *Dataset) ProcessedDir() string {
	return path.Join(path.Dir(d.Source), ProcessedDirName)
}

// ArtifactKey returns the cache key for the current source and settings.
func (d *Dataset) ArtifactKey() string {
	return d.Keyer.ArtifactKey(path.Base(d.Source), cache.ArtifactKeyOpts{
		ByteOrder:    bgf.ByteOrderName(d.Options.ByteOrder),
		PointerWidth: pointerWidth(d.Options),
		Format:       cache.EnvelopeFormat,
		Version:      cache.EnvelopeVersion,
		Variant:      d.Variant,
	})
}

func pointerWidth(opts bgf.Options) int {
	if opts.PointerWidth == 0 {
		return bgf.DefaultPointerWidth
	}
	return opts.PointerWidth
}

// ArtifactPath returns the artifact location, or "" when the cache is not
// file backed.
func (d *Dataset) ArtifactPath() string {
	if fc, ok := d.Cache.(*cache.FileCache); ok {
		return fc.Path(d.ArtifactKey())
	}
	return ""
}

// Materialize returns the dataset's collection, from the artifact when a
// valid one exists and by decoding the source otherwise.
func (d *Dataset) Materialize(ctx context.Context) (*collection.Collection, error) {
	c, _, err := d.MaterializeWithInfo(ctx)
	return c, err
}

type outcome struct {
	coll *collection.Collection
	info Info
}

// MaterializeWithInfo is Materialize plus a description of where the
// collection came from.
func (d *Dataset) MaterializeWithInfo(ctx context.Context) (*collection.Collection, Info, error) {
	key := d.ArtifactKey()
	v, err, _ := d.group.Do(key, func() (any, error) {
		return d.materialize(ctx, key)
	})
	if err != nil {
		return nil, Info{}, err
	}
	out := v.(*outcome)
	return out.coll, out.info, nil
}

func (d *Dataset) materialize(ctx context.Context, key string) (*outcome, error) {
	info := Info{ArtifactPath: d.ArtifactPath()}
	logger := d.logger()

	if !d.Refresh {
		if coll, ok := d.restore(ctx, key, logger); ok {
			info.CacheHit = true
			info.Graphs = coll.Len()
			logger.Info("restored collection", "graphs", coll.Len(), "artifact", info.ArtifactPath)
			return &outcome{coll: coll, info: info}, nil
		}
	}

	hooks := observability.Dataset()
	hooks.OnDecodeStart(ctx, d.Source)
	decodeStart := time.Now()
	records, err := d.decode(ctx)
	info.DecodeTime = time.Since(decodeStart)
	hooks.OnDecodeComplete(ctx, d.Source, len(records), info.DecodeTime, err)
	if err != nil {
		return nil, err
	}
	logger.Info("decoded source", "source", d.Source, "graphs", len(records), "duration", info.DecodeTime)

	records, err = d.process(records)
	if err != nil {
		return nil, err
	}

	collateStart := time.Now()
	coll, err := collection.New(records)
	if err != nil {
		return nil, err
	}
	data, err := collection.Marshal(coll)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	info.CollateTime = time.Since(collateStart)
	info.Graphs = coll.Len()
	hooks.OnCollateComplete(ctx, coll.Len(), len(data), info.CollateTime)

	if err := d.cache().Set(ctx, key, data, d.TTL); err != nil {
		logger.Warn("failed to store artifact", "artifact", info.ArtifactPath, "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, keyType, len(data))
		logger.Debug("stored artifact", "artifact", info.ArtifactPath, "bytes", len(data), "duration", info.CollateTime)
	}
	return &outcome{coll: coll, info: info}, nil
}

// restore loads the artifact for key. Corrupt artifacts are removed.
func (d *Dataset) restore(ctx context.Context, key string, logger *log.Logger) (*collection.Collection, bool) {
	data, hit, err := d.cache().Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "err", err)
		return nil, false
	}
	hooks := observability.Cache()
	if !hit {
		hooks.OnCacheMiss(ctx, keyType)
		logger.Debug("cache miss", "key", key)
		return nil, false
	}
	coll, err := collection.Unmarshal(data)
	if err != nil {
		hooks.OnCacheDiscard(ctx, keyType, err)
		logger.Warn("discarding corrupt artifact", "artifact", d.ArtifactPath(), "err", err)
		_ = d.cache().Delete(ctx, key)
		return nil, false
	}
	hooks.OnCacheHit(ctx, keyType)
	logger.Debug("cache hit", "key", key)
	return coll, true
}

func (d *Dataset) decode(ctx context.Context) ([]*bgf.Record, error) {
	fi, err := d.FS.Stat(d.Source)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeSourceNotFound, err,
			"BGF source %s does not exist and no valid artifact was found", d.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	f, err := d.FS.Open(d.Source)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	res, err := bgf.Decode(ctx, f, fi.Size(), d.Options)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

func (d *Dataset) process(records []*bgf.Record) ([]*bgf.Record, error) {
	if d.Filter == nil && d.Transform == nil {
		return records, nil
	}
	out := records[:0:0]
	for _, r := range records {
		if d.Filter != nil && !d.Filter(r) {
			continue
		}
		if d.Transform != nil {
			t, err := d.Transform(r)
			if err != nil {
				return nil, fmt.Errorf("transform %s: %w", r.Name(), err)
			}
			r = t
		}
		out = append(out, r)
	}
	d.logger().Debug("processed records", "kept", len(out), "dropped", len(records)-len(out))
	return out, nil
}

// Clear removes the dataset's artifact.
func (d *Dataset) Clear(ctx context.Context) error {
	return d.cache().Delete(ctx, d.ArtifactKey())
}

func (d *Dataset) cache() cache.Cache {
	if d.Cache == nil {
		return cache.NewNullCache()
	}
	return d.Cache
}

func (d *Dataset) logger() *log.Logger {
	if d.Logger == nil {
		return log.New(io.Discard)
	}
	return d.Logger
}
