// Package cli implements the bgf command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/bgf/pkg/cache"
	"github.com/matzehuels/bgf/pkg/config"
	"github.com/matzehuels/bgf/pkg/dataset"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "bgf"

	// configFileName is the file looked up in the config directory when
	// --config is not given.
	configFileName = "config.toml"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Decode Flags
// =============================================================================

// decodeFlags are the flags shared by every command that reads a source.
// Explicit flags override the config file.
type decodeFlags struct {
	configPath   string
	byteOrder    string
	pointerWidth int
	workers      int
	refresh      bool
	noCache      bool
}

func (f *decodeFlags) register(cmd *cobra.Command) {
	def := config.Default()
	cmd.Flags().StringVar(&f.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/bgf/config.toml if present)")
	cmd.Flags().StringVar(&f.byteOrder, "byte-order", def.Decode.ByteOrder, "byte order of the writer: little, big")
	cmd.Flags().IntVar(&f.pointerWidth, "pointer-width", def.Decode.PointerWidth, "size_t width of the writer in bytes: 4, 8")
	cmd.Flags().IntVar(&f.workers, "workers", def.Decode.Workers, "parallel graph decoders")
}

// registerCache adds the artifact flags for commands that materialize.
func (f *decodeFlags) registerCache(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "decode the source even if a valid artifact exists")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "neither read nor write processed artifacts")
}

// resolve loads the config file and applies the flags the user set.
func (f *decodeFlags) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("byte-order") {
		cfg.Decode.ByteOrder = f.byteOrder
	}
	if flags.Changed("pointer-width") {
		cfg.Decode.PointerWidth = f.pointerWidth
	}
	if flags.Changed("workers") {
		cfg.Decode.Workers = f.workers
	}
	if f.noCache {
		cfg.Cache.Disabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfig reads path, or the default config file when path is empty.
// A missing default file yields the built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	dir, err := configDir()
	if err != nil {
		return config.Default(), nil
	}
	def := filepath.Join(dir, configFileName)
	if _, err := os.Stat(def); err != nil {
		return config.Default(), nil
	}
	return config.Load(def)
}

// =============================================================================
// Dataset Factory
// =============================================================================

// newDataset creates a dataset for source configured by flags.
func (c *CLI) newDataset(cmd *cobra.Command, source string, f *decodeFlags) (*dataset.Dataset, error) {
	cfg, err := f.resolve(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.DecodeOptions()
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, err
	}

	ds, err := dataset.New(source, nil)
	if err != nil {
		return nil, err
	}
	ds.Options = opts
	ds.TTL = ttl
	ds.Refresh = f.refresh
	ds.Logger = c.Logger

	switch {
	case cfg.Cache.Disabled:
		ds.Cache = cache.NewNullCache()
	case cfg.Cache.Dir != "":
		fc, err := cache.NewFileCache(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		ds.Cache = fc.WithLogger(c.Logger)
	default:
		ds.Cache = cache.NewFileCacheFS(ds.FS, ds.ProcessedDir()).WithLogger(c.Logger)
	}
	return ds, nil
}

// =============================================================================
// Paths
// =============================================================================

// configDir returns the config directory using XDG standard (~/.config/bgf/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}
