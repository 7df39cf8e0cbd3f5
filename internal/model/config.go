package model

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
	"unicode/utf8"
)

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds the complete decadal configuration
type Config struct {
	Input        InputConfig        `yaml:"input" mapstructure:"input"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Timeout      time.Duration      `yaml:"timeout" mapstructure:"timeout"` // Whole-run timeout
	Verbose      bool               `yaml:"verbose" mapstructure:"verbose"`
}

// InputConfig controls how the tabular source is read
type InputConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`           // Local file or http(s) URL
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"` // Single character
	Encoding  string `yaml:"encoding" mapstructure:"encoding"`   // Charset label, e.g. utf-8, windows-1252
	Trim      bool   `yaml:"trim" mapstructure:"trim"`           // Trim surrounding whitespace from values
}

// OutputConfig controls artifact emission
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Format  string `yaml:"format" mapstructure:"format"` // json or yaml
	Indent  int    `yaml:"indent" mapstructure:"indent"` // JSON indent width, 0 = compact
	Atomic  bool   `yaml:"atomic" mapstructure:"atomic"` // Write via temp file + rename
	Workers int    `yaml:"workers" mapstructure:"workers"`
}

// HTTPConfig applies when the input is a URL
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// RateLimitingConfig throttles requests per host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig controls caching of fetched remote inputs
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// DefaultConfig returns the defaults, which reproduce the fixed
// data.csv -> ./<bucket>.json behaviour
func DefaultConfig() *Config {
	cacheDir := ".decadal-cache"
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".decadal", "cache")
	}

	return &Config{
		Input: InputConfig{
			Path:      "data.csv",
			Delimiter: ",",
			Encoding:  "utf-8",
		},
		Output: OutputConfig{
			Dir:     ".",
			Format:  FormatJSON,
			Atomic:  true,
			Workers: runtime.NumCPU(),
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "decadal/0.1 (+https://github.com/ppiankov/decadal)",
			MaxBodyBytes:  64 << 20,
			RespectRobots: true,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       cacheDir,
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Timeout: 5 * time.Minute,
	}
}

// Validate checks the configuration for values the pipeline cannot honour
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return fmt.Errorf("input path is empty")
	}
	if utf8.RuneCountInString(c.Input.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Input.Delimiter)
	}
	switch c.Input.Delimiter {
	case "\"", "\r", "\n":
		return fmt.Errorf("invalid delimiter %q", c.Input.Delimiter)
	}
	switch c.Output.Format {
	case FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", c.Output.Format)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output dir is empty")
	}
	if c.Output.Indent < 0 {
		return fmt.Errorf("indent must be >= 0, got %d", c.Output.Indent)
	}
	if c.Output.Workers <= 0 {
		return fmt.Errorf("workers must be > 0, got %d", c.Output.Workers)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	return nil
}

// DelimiterRune returns the configured delimiter as a rune
func (c *Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Input.Delimiter)
	return r
}
