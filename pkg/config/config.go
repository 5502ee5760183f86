// Package config loads decode and cache settings from TOML.
//
// Every field is optional; missing values fall back to [Default]:
//
//	[decode]
//	byte_order = "little"   # little | big | < | >
//	pointer_width = 8       # 4 | 8
//	workers = 1
//
//	[cache]
//	dir = ""                # empty: <source dir>/processed
//	disabled = false
//	ttl = ""                # Go duration, empty: no expiry
//
//	[server]
//	addr = ":8080"
package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/bgf/pkg/bgf"
	"github.com/matzehuels/bgf/pkg/errors"
)

// DefaultAddr is the listen address of the HTTP view.
const DefaultAddr = ":8080"

// Config is the complete configuration file.
type Config struct {
	Decode DecodeConfig `toml:"decode"`
	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
}

// DecodeConfig describes how containers were written.
type DecodeConfig struct {
	ByteOrder    string `toml:"byte_order"`
	PointerWidth int    `toml:"pointer_width"`
	Workers      int    `toml:"workers"`
}

// CacheConfig controls processed artifacts.
type CacheConfig struct {
	Dir      string `toml:"dir"`
	Disabled bool   `toml:"disabled"`
	TTL      string `toml:"ttl"`
}

// ServerConfig controls the HTTP view.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Default returns little-endian, 8-byte size_t, sequential decoding with
// caching enabled.
func Default() *Config {
	return &Config{
		Decode: DecodeConfig{
			ByteOrder:    bgf.LittleEndian,
			PointerWidth: bgf.DefaultPointerWidth,
			Workers:      bgf.DefaultWorkers,
		},
		Server: ServerConfig{Addr: DefaultAddr},
	}
}

// Load reads path over the defaults. Unknown keys are rejected so that a
// misspelled setting does not silently fall back to its default.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config file %s does not exist", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if _, err := bgf.ParseByteOrder(c.Decode.ByteOrder); err != nil {
		return err
	}
	if err := errors.ValidatePointerWidth(c.Decode.PointerWidth); err != nil {
		return err
	}
	if c.Decode.Workers < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "workers must be at least 1, got %d", c.Decode.Workers)
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	return nil
}

// DecodeOptions converts the decode section into decoder options.
func (c *Config) DecodeOptions() (bgf.Options, error) {
	order, err := bgf.ParseByteOrder(c.Decode.ByteOrder)
	if err != nil {
		return bgf.Options{}, err
	}
	if err := errors.ValidatePointerWidth(c.Decode.PointerWidth); err != nil {
		return bgf.Options{}, err
	}
	return bgf.Options{
		ByteOrder:    order,
		PointerWidth: c.Decode.PointerWidth,
		Workers:      max(c.Decode.Workers, 1),
	}, nil
}

// CacheTTL parses the cache ttl. An empty value means no expiry.
func (c *Config) CacheTTL() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid cache ttl %q", c.Cache.TTL)
	}
	if d < 0 {
		return 0, errors.New(errors.ErrCodeInvalidConfig, "cache ttl must not be negative")
	}
	return d, nil
}
