package driver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tarvlad/yapvm-sub000/pkg/gc"
	"github.com/tarvlad/yapvm-sub000/pkg/interpreter"
	"github.com/tarvlad/yapvm-sub000/pkg/kvstore"
)

// ConfigFileName is the file the CLI looks for in the working directory.
const ConfigFileName = "yapvm.yaml"

// Config models the yapvm.yaml contents.
type Config struct {
	Path  string
	GC    GCConfig
	Store StoreConfig
	Trace TraceConfig
}

// GCConfig tunes the collector.
type GCConfig struct {
	CacheLimit int
	MaxHeap    int
	Enabled    bool
}

// StoreConfig holds the load-factor thresholds of every scope table, in
// percent of capacity.
type StoreConfig struct {
	GrowPercent      int
	ShrinkPercent    int
	TombstonePercent int
}

// TraceConfig selects tracers and their level.
type TraceConfig struct {
	Level       string
	Selectors   []string
	Destination string
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		GC: GCConfig{
			CacheLimit: gc.DefaultCacheLimit,
			Enabled:    true,
		},
		Store: StoreConfig{
			GrowPercent:      kvstore.DefaultGrowPercent,
			ShrinkPercent:    kvstore.DefaultShrinkPercent,
			TombstonePercent: kvstore.DefaultTombstonePercent,
		},
		Trace: TraceConfig{
			Level:     "Error",
			Selectors: append([]string(nil), KnownSelectors...),
		},
	}
}

// Load parses a config file from disk. Missing sections keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", abs, err)
	}
	cfg.Path = abs
	return cfg, nil
}

// Decode reads a config document from r on top of the defaults. Unknown keys
// are rejected.
func Decode(r io.Reader) (*Config, error) {
	raw := Default().toDisk()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	cfg := raw.toConfig()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode writes cfg as YAML.
func (c *Config) Encode(w io.Writer) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c.toDisk()); err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("config: encoder close: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Validate rejects settings the runtime cannot honour.
func (c *Config) Validate() error {
	if c.GC.CacheLimit <= 0 {
		return fmt.Errorf("config: gc.cache_limit must be positive, got %d", c.GC.CacheLimit)
	}
	if c.GC.MaxHeap < 0 {
		return fmt.Errorf("config: gc.max_heap must not be negative, got %d", c.GC.MaxHeap)
	}
	s := c.Store
	for _, p := range []struct {
		name  string
		value int
	}{
		{"store.grow_percent", s.GrowPercent},
		{"store.shrink_percent", s.ShrinkPercent},
		{"store.tombstone_percent", s.TombstonePercent},
	} {
		if p.value <= 0 || p.value >= 100 {
			return fmt.Errorf("config: %s must be between 1 and 99, got %d", p.name, p.value)
		}
	}
	if err := kvstore.CheckThresholds(s.GrowPercent, s.ShrinkPercent); err != nil {
		return fmt.Errorf("config: store.grow_percent/store.shrink_percent: %w", err)
	}
	switch strings.ToLower(c.Trace.Level) {
	case "error", "info", "debug":
	default:
		return fmt.Errorf("config: unknown trace.level %q (expected Error, Info or Debug)", c.Trace.Level)
	}
	return nil
}

// InterpreterConfig translates c into interpreter settings.
func (c *Config) InterpreterConfig(stdout io.Writer) interpreter.Config {
	return interpreter.Config{
		GC: gc.Config{
			CacheLimit: c.GC.CacheLimit,
			MaxHeap:    c.GC.MaxHeap,
		},
		DisableGC: !c.GC.Enabled,
		Store: kvstore.Options[string]{
			GrowPercent:      c.Store.GrowPercent,
			ShrinkPercent:    c.Store.ShrinkPercent,
			TombstonePercent: c.Store.TombstonePercent,
			Hash:             kvstore.StringHash,
		},
		Stdout: stdout,
	}
}

func (c *Config) normalize() {
	c.Trace.Level = strings.TrimSpace(c.Trace.Level)
	c.Trace.Destination = strings.TrimSpace(c.Trace.Destination)
	selectors := make([]string, 0, len(c.Trace.Selectors))
	for _, sel := range c.Trace.Selectors {
		if sel = strings.TrimSpace(sel); sel != "" {
			selectors = append(selectors, sel)
		}
	}
	c.Trace.Selectors = selectors
}

type configDisk struct {
	GC    gcDisk    `yaml:"gc"`
	Store storeDisk `yaml:"store"`
	Trace traceDisk `yaml:"trace"`
}

type gcDisk struct {
	CacheLimit int  `yaml:"cache_limit"`
	MaxHeap    int  `yaml:"max_heap"`
	Enabled    bool `yaml:"enabled"`
}

type storeDisk struct {
	GrowPercent      int `yaml:"grow_percent"`
	ShrinkPercent    int `yaml:"shrink_percent"`
	TombstonePercent int `yaml:"tombstone_percent"`
}

type traceDisk struct {
	Level       string   `yaml:"level"`
	Selectors   []string `yaml:"selectors,flow"`
	Destination string   `yaml:"destination,omitempty"`
}

func (c *Config) toDisk() configDisk {
	return configDisk{
		GC: gcDisk{
			CacheLimit: c.GC.CacheLimit,
			MaxHeap:    c.GC.MaxHeap,
			Enabled:    c.GC.Enabled,
		},
		Store: storeDisk{
			GrowPercent:      c.Store.GrowPercent,
			ShrinkPercent:    c.Store.ShrinkPercent,
			TombstonePercent: c.Store.TombstonePercent,
		},
		Trace: traceDisk{
			Level:       c.Trace.Level,
			Selectors:   append([]string(nil), c.Trace.Selectors...),
			Destination: c.Trace.Destination,
		},
	}
}

func (d configDisk) toConfig() *Config {
	return &Config{
		GC: GCConfig{
			CacheLimit: d.GC.CacheLimit,
			MaxHeap:    d.GC.MaxHeap,
			Enabled:    d.GC.Enabled,
		},
		Store: StoreConfig{
			GrowPercent:      d.Store.GrowPercent,
			ShrinkPercent:    d.Store.ShrinkPercent,
			TombstonePercent: d.Store.TombstonePercent,
		},
		Trace: TraceConfig{
			Level:       d.Trace.Level,
			Selectors:   d.Trace.Selectors,
			Destination: d.Trace.Destination,
		},
	}
}
