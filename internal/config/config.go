package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	pcierrors "github.com/standardbeagle/pci/internal/errors"
)

// DefaultConfigFile is the project-local configuration file name
const DefaultConfigFile = ".pci.toml"

type Config struct {
	Version int     `toml:"version"`
	Project Project `toml:"project"`
	Scan    Scan    `toml:"scan"`
	Cache   Cache   `toml:"cache"`
	Watch   Watch   `toml:"watch"`
}

type Project struct {
	Root string `toml:"root"`
	Name string `toml:"name"`
}

type Scan struct {
	// DefaultPath is scanned when a request omits path
	DefaultPath string `toml:"default_path"`
	// VendorDir marks dependency code: excluded by default, cached when included
	VendorDir  string   `toml:"vendor_dir"`
	Extensions []string `toml:"extensions"`
	Exclude    []string `toml:"exclude"`
	// Workers bounds per-file scan parallelism; 0 = NumCPU
	Workers      int `toml:"workers"`
	DefaultLimit int `toml:"default_limit"`
	// MaxFileSize skips pathological files (bytes)
	MaxFileSize int64 `toml:"max_file_size"`
}

type Cache struct {
	Enabled    bool `toml:"enabled"`
	TTLHours   int  `toml:"ttl_hours"`
	MaxEntries int  `toml:"max_entries"`
}

type Watch struct {
	// Enabled turns on vendor-file watching in serve mode so cached
	// results are dropped ahead of TTL expiry
	Enabled    bool `toml:"enabled"`
	DebounceMs int  `toml:"debounce_ms"`
}

// Default returns the built-in configuration
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	return &Config{
		Version: 1,
		Project: Project{
			Root: cwd,
		},
		Scan: Scan{
			DefaultPath: "app",
			VendorDir:   "vendor",
			Extensions:  []string{".php"},
			Exclude: []string{
				"**/.git/**",
				"**/.*/**",
				"**/node_modules/**",
				"**/storage/**",
				"**/bootstrap/cache/**",
				"**/public/**",
				"**/*.blade.php",
			},
			Workers:      runtime.NumCPU(),
			DefaultLimit: 100,
			MaxFileSize:  2 << 20, // 2 MB
		},
		Cache: Cache{
			Enabled:    true,
			TTLHours:   24,
			MaxEntries: 2000,
		},
		Watch: Watch{
			Enabled:    true,
			DebounceMs: 300,
		},
	}
}

// Load reads configuration from path, layered over the defaults. A missing
// file is not an error: the defaults apply unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, pcierrors.NewConfigError("file", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, pcierrors.NewConfigError("file", path, err)
	}

	cfg.applyFallbacks()
	return cfg, nil
}

// LoadWithRoot loads configuration for a project root: the config file is
// searched in the root directory and the root recorded in the result.
func LoadWithRoot(root string) (*Config, error) {
	if root == "" {
		return Load(DefaultConfigFile)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, pcierrors.NewConfigError("root", root, err)
	}
	cfg, err := Load(filepath.Join(absRoot, DefaultConfigFile))
	if err != nil {
		return nil, err
	}
	cfg.Project.Root = absRoot
	return cfg, nil
}

// applyFallbacks repairs zero values a sparse config file may leave behind
func (c *Config) applyFallbacks() {
	d := Default()
	if c.Scan.DefaultPath == "" {
		c.Scan.DefaultPath = d.Scan.DefaultPath
	}
	if c.Scan.VendorDir == "" {
		c.Scan.VendorDir = d.Scan.VendorDir
	}
	if len(c.Scan.Extensions) == 0 {
		c.Scan.Extensions = d.Scan.Extensions
	}
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = d.Scan.Workers
	}
	if c.Scan.DefaultLimit <= 0 {
		c.Scan.DefaultLimit = d.Scan.DefaultLimit
	}
	if c.Scan.MaxFileSize <= 0 {
		c.Scan.MaxFileSize = d.Scan.MaxFileSize
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = d.Cache.TTLHours
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = d.Cache.MaxEntries
	}
	if c.Watch.DebounceMs <= 0 {
		c.Watch.DebounceMs = d.Watch.DebounceMs
	}
}

// VendorRoot returns the absolute path of the dependency directory
func (c *Config) VendorRoot() string {
	if filepath.IsAbs(c.Scan.VendorDir) {
		return c.Scan.VendorDir
	}
	return filepath.Join(c.Project.Root, c.Scan.VendorDir)
}

// SourceExtension reports whether the file name carries a scannable extension
func (c *Config) SourceExtension(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range c.Scan.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
