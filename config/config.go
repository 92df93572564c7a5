// Package config loads the YAML configuration shared by the trainer and the
// predictor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the whole YAML document.
type Config struct {
	Dataset struct {
		Path     string `yaml:"path"`
		Encoding string `yaml:"encoding"`
	} `yaml:"dataset"`
	Model struct {
		Path           string  `yaml:"path"`
		Trees          int     `yaml:"trees"`
		Seed           int64   `yaml:"seed"`
		MaxDepth       int     `yaml:"max_depth"`
		MinSamplesLeaf int     `yaml:"min_samples_leaf"`
		TestRatio      float64 `yaml:"test_ratio"`
	} `yaml:"model"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http struct {
		Port         int           `yaml:"port"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxBodyBytes int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Log   LogConfig `yaml:"log"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
}

// LogConfig controls the zap logger and its optional rotated file sink.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Dataset.Path = "traffic_data.csv"
	cfg.Dataset.Encoding = "utf-8"
	cfg.Model.Path = "traffic_volume_model.bin"
	cfg.Model.Trees = 100
	cfg.Model.Seed = 42
	cfg.Model.MinSamplesLeaf = 1
	cfg.Model.TestRatio = 0.2
	cfg.Http.Port = 8501
	cfg.Http.Timeout = 30 * time.Second
	cfg.Http.MaxBodyBytes = 1 << 20
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Log.MaxSizeMB = 100
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28
	cfg.Cache.Size = 1024
	return cfg
}

// Load reads path over the defaults. A missing file is not an error; a
// malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.Dataset.Path == "" {
		return errors.New("dataset.path is required")
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.Model.Trees <= 0 {
		return fmt.Errorf("model.trees must be positive, got %d", c.Model.Trees)
	}
	if c.Model.MaxDepth < 0 {
		return fmt.Errorf("model.max_depth must not be negative, got %d", c.Model.MaxDepth)
	}
	if c.Model.MinSamplesLeaf <= 0 {
		return fmt.Errorf("model.min_samples_leaf must be positive, got %d", c.Model.MinSamplesLeaf)
	}
	if c.Model.TestRatio <= 0 || c.Model.TestRatio >= 1 {
		return fmt.Errorf("model.test_ratio must be in (0, 1), got %v", c.Model.TestRatio)
	}
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.Http.Port)
	}
	if c.Http.Timeout <= 0 {
		return errors.New("http.timeout must be positive")
	}
	if c.Http.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must not be negative, got %d", c.Http.MaxBodyBytes)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size)
	}
	return nil
}

// resolvePaths makes relative file paths relative to the config file, so the
// binaries behave the same whether run from the repo root or from cmd/.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Dataset.Path, &c.Model.Path, &c.Database.Path, &c.Log.File} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}
