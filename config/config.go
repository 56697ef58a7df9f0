// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config holds engine configuration and loads it from TOML or YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config captures storage location, query limits, ingestion and reindex settings.
type Config struct {
	DBPath    string          `toml:"db_path" yaml:"db_path"`
	InMemory  bool            `toml:"in_memory" yaml:"in_memory"`
	Search    SearchConfig    `toml:"search" yaml:"search"`
	Ingestion IngestionConfig `toml:"ingestion" yaml:"ingestion"`
	Reindex   ReindexConfig   `toml:"reindex" yaml:"reindex"`
}

// SearchConfig controls result size limits.
type SearchConfig struct {
	DefaultLimit int `toml:"default_limit" yaml:"default_limit"`
	MaxLimit     int `toml:"max_limit" yaml:"max_limit"`
	// Unbounded removes the MaxLimit cap.
	Unbounded bool `toml:"unbounded" yaml:"unbounded"`
}

// IngestionConfig controls bulk ingestion.
type IngestionConfig struct {
	PoolSize  int `toml:"pool_size" yaml:"pool_size"`
	BatchSize int `toml:"batch_size" yaml:"batch_size"`
}

// ReindexConfig controls index rebuilds.
type ReindexConfig struct {
	BatchSize      int      `toml:"batch_size" yaml:"batch_size"`
	ReportInterval int      `toml:"report_interval" yaml:"report_interval"`
	MaxRetries     int      `toml:"max_retries" yaml:"max_retries"`
	RetryDelay     Duration `toml:"retry_delay" yaml:"retry_delay"`
}

// Duration is a time.Duration written as a string such as "250ms" in config files.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// DefaultConfig returns the baseline configuration used when no file is supplied.
func DefaultConfig() Config {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	return Config{
		DBPath: "sift.db",
		Search: SearchConfig{
			DefaultLimit: 100,
			MaxLimit:     5000,
		},
		Ingestion: IngestionConfig{
			PoolSize:  poolSize,
			BatchSize: 256,
		},
		Reindex: ReindexConfig{
			BatchSize:      100,
			ReportInterval: 1000,
			MaxRetries:     3,
			RetryDelay:     Duration{100 * time.Millisecond},
		},
	}
}

// Option configures a Config.
type Option func(*Config)

// WithDBPath sets the database directory.
func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithInMemory keeps all data in memory.
func WithInMemory(inMemory bool) Option {
	return func(c *Config) {
		c.InMemory = inMemory
	}
}

// WithDefaultLimit sets the result limit used when a query does not give one.
func WithDefaultLimit(limit int) Option {
	return func(c *Config) {
		c.Search.DefaultLimit = limit
	}
}

// WithMaxLimit sets the largest limit a query may ask for. Zero removes the cap.
func WithMaxLimit(limit int) Option {
	return func(c *Config) {
		c.Search.MaxLimit = limit
		c.Search.Unbounded = limit == 0
	}
}

// WithPoolSize sets the ingestion worker pool size.
func WithPoolSize(size int) Option {
	return func(c *Config) {
		c.Ingestion.PoolSize = size
	}
}

// WithBatchSize sets the number of documents per bulk ingestion transaction.
func WithBatchSize(size int) Option {
	return func(c *Config) {
		c.Ingestion.BatchSize = size
	}
}

// New returns the default configuration with opts applied.
func New(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// EffectiveMaxLimit returns the search cap, zero when unbounded.
func (c *Config) EffectiveMaxLimit() int {
	if c.Search.Unbounded {
		return 0
	}
	return c.Search.MaxLimit
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	var problems []string
	if !c.InMemory && c.DBPath == "" {
		problems = append(problems, "db_path is required unless in_memory is set")
	}
	if c.Search.DefaultLimit < 1 {
		problems = append(problems, "search.default_limit must be positive")
	}
	if !c.Search.Unbounded {
		if c.Search.MaxLimit < 1 {
			problems = append(problems, "search.max_limit must be positive unless search.unbounded is set")
		} else if c.Search.DefaultLimit > c.Search.MaxLimit {
			problems = append(problems, "search.default_limit exceeds search.max_limit")
		}
	}
	if c.Ingestion.PoolSize < 1 {
		problems = append(problems, "ingestion.pool_size must be positive")
	}
	if c.Ingestion.BatchSize < 1 {
		problems = append(problems, "ingestion.batch_size must be positive")
	}
	if c.Reindex.BatchSize < 1 {
		problems = append(problems, "reindex.batch_size must be positive")
	}
	if c.Reindex.ReportInterval < 1 {
		problems = append(problems, "reindex.report_interval must be positive")
	}
	if c.Reindex.MaxRetries < 1 {
		problems = append(problems, "reindex.max_retries must be positive")
	}
	if c.Reindex.RetryDelay.Duration < 0 {
		problems = append(problems, "reindex.retry_delay must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Load reads the provided config path, merging it onto the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return &cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var fileCfg Config
	switch ext {
	case ".toml":
		if err := toml.Unmarshal(content, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, errors.New("config file must be .toml, .yaml, or .yml")
	}

	merged := mergeConfig(cfg, fileCfg)
	return &merged, nil
}

func mergeConfig(base, override Config) Config {
	if override.DBPath != "" {
		base.DBPath = override.DBPath
	}
	if override.InMemory {
		base.InMemory = true
	}

	if override.Search.DefaultLimit != 0 {
		base.Search.DefaultLimit = override.Search.DefaultLimit
	}
	if override.Search.MaxLimit != 0 {
		base.Search.MaxLimit = override.Search.MaxLimit
	}
	if override.Search.Unbounded {
		base.Search.Unbounded = true
	}

	if override.Ingestion.PoolSize != 0 {
		base.Ingestion.PoolSize = override.Ingestion.PoolSize
	}
	if override.Ingestion.BatchSize != 0 {
		base.Ingestion.BatchSize = override.Ingestion.BatchSize
	}

	if override.Reindex.BatchSize != 0 {
		base.Reindex.BatchSize = override.Reindex.BatchSize
	}
	if override.Reindex.ReportInterval != 0 {
		base.Reindex.ReportInterval = override.Reindex.ReportInterval
	}
	if override.Reindex.MaxRetries != 0 {
		base.Reindex.MaxRetries = override.Reindex.MaxRetries
	}
	if override.Reindex.RetryDelay.Duration != 0 {
		base.Reindex.RetryDelay = override.Reindex.RetryDelay
	}

	return base
}
