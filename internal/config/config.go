package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents nxscollect configuration options
type Config struct {
	// Backend names the hierarchical-file backend (only "sqlite" is built in)
	Backend string `yaml:"backend"`

	// Compression is the slab codec for new frames: none, snappy or zstd
	Compression string `yaml:"compression"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory of the rotating run log; empty disables it
	LogDir string `yaml:"log_dir"`

	// LogMaxSize is the log size in megabytes before rotation
	LogMaxSize int `yaml:"log_max_size"`

	// LogMaxAge is the number of days rotated logs are kept
	LogMaxAge int `yaml:"log_max_age"`

	// SkipMissing reports absent files as skipped instead of failed
	SkipMissing bool `yaml:"skip_missing"`

	// KeepOld keeps the master file backup after an execute run
	KeepOld bool `yaml:"keep_old"`

	// Lock takes an advisory lock on the master file during a run
	Lock bool `yaml:"lock"`

	// SearchDirs are extra directories searched for relative file names
	SearchDirs []string `yaml:"search_dirs"`

	// PlaceholderName is the name of placeholder fields
	PlaceholderName string `yaml:"placeholder_name"`

	// CollectionClass is the NeXus class of the group holding placeholders
	CollectionClass string `yaml:"collection_class"`

	// TargetName is the name of the populated dataset
	TargetName string `yaml:"target_name"`

	// DatasetName is the field read from nested hierarchical source files
	DatasetName string `yaml:"dataset_name"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Backend:         "sqlite",
		Compression:     "none",
		LogLevel:        "info",
		LogDir:          "",
		LogMaxSize:      10,
		LogMaxAge:       30,
		SkipMissing:     false,
		KeepOld:         false,
		Lock:            true,
		PlaceholderName: "postrun",
		CollectionClass: "NXcollection",
		TargetName:      "data",
		DatasetName:     "data",
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlCfg Config
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Booleans defaulting to true need the raw map to tell "false" from "absent"
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.Backend != "" {
		cfg.Backend = yamlCfg.Backend
	}
	if yamlCfg.Compression != "" {
		cfg.Compression = yamlCfg.Compression
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = expandHome(yamlCfg.LogDir)
	}
	if _, exists := rawMap["log_max_size"]; exists {
		cfg.LogMaxSize = yamlCfg.LogMaxSize
	}
	if _, exists := rawMap["log_max_age"]; exists {
		cfg.LogMaxAge = yamlCfg.LogMaxAge
	}
	if yamlCfg.SkipMissing {
		cfg.SkipMissing = true
	}
	if yamlCfg.KeepOld {
		cfg.KeepOld = true
	}
	if _, exists := rawMap["lock"]; exists {
		cfg.Lock = yamlCfg.Lock
	}
	for _, dir := range yamlCfg.SearchDirs {
		cfg.SearchDirs = append(cfg.SearchDirs, expandHome(dir))
	}
	if yamlCfg.PlaceholderName != "" {
		cfg.PlaceholderName = yamlCfg.PlaceholderName
	}
	if yamlCfg.CollectionClass != "" {
		cfg.CollectionClass = yamlCfg.CollectionClass
	}
	if yamlCfg.TargetName != "" {
		cfg.TargetName = yamlCfg.TargetName
	}
	if yamlCfg.DatasetName != "" {
		cfg.DatasetName = yamlCfg.DatasetName
	}

	return cfg, nil
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(logLevel *string, logDir *string, skipMissing *bool, keepOld *bool) {
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if skipMissing != nil {
		c.SkipMissing = *skipMissing
	}
	if keepOld != nil {
		c.KeepOld = *keepOld
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.Backend != "sqlite" {
		return fmt.Errorf("invalid backend %q, must be: sqlite", c.Backend)
	}

	switch strings.ToLower(c.Compression) {
	case "", "none", "snappy", "zstd":
	default:
		return fmt.Errorf("invalid compression %q, must be one of: none, snappy, zstd", c.Compression)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.LogMaxSize < 0 {
		return fmt.Errorf("log_max_size must be >= 0, got %d", c.LogMaxSize)
	}
	if c.LogMaxAge < 0 {
		return fmt.Errorf("log_max_age must be >= 0, got %d", c.LogMaxAge)
	}

	for name, value := range map[string]string{
		"placeholder_name": c.PlaceholderName,
		"collection_class": c.CollectionClass,
		"target_name":      c.TargetName,
		"dataset_name":     c.DatasetName,
	} {
		if value == "" || strings.Contains(value, "/") {
			return fmt.Errorf("%s must be a plain node name, got %q", name, value)
		}
	}

	return nil
}
