// Package config provides unified configuration for the epitome CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for a one-shot aggregation run.
type Config struct {
	// Input is the input path: a local file or an s3:// URL
	Input string `json:"input" yaml:"input"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Aggregation parameters
	Aggregation AggregationConfig `json:"aggregation" yaml:"aggregation"`

	// Storage configuration for s3:// inputs and outputs
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// OutputConfig holds output configuration.
type OutputConfig struct {
	// Dir is the directory (or s3:// prefix) for the two output tables
	Dir string `json:"dir" yaml:"dir"`

	// Format is the output format: csv, epit, sqlite
	Format string `json:"format" yaml:"format"`
}

// AggregationConfig holds the aggregation engine parameters.
type AggregationConfig struct {
	// MinRows is the row count below which no aggregation is done
	MinRows int `json:"min_rows" yaml:"min_rows"`

	// NBins is the bin count for 1-D continuous aggregation
	NBins int `json:"n_bins" yaml:"n_bins"`

	// NXBins is the x-axis bin count for 2-D aggregation
	NXBins int `json:"nx_bins" yaml:"nx_bins"`

	// NYBins is the y-axis bin count for 2-D aggregation
	NYBins int `json:"ny_bins" yaml:"ny_bins"`

	// NDMaxBins is the target upper bound on exemplars in the N-D path
	NDMaxBins int `json:"nd_max_bins" yaml:"nd_max_bins"`

	// MaxDimensions caps the clustering dimensionality; more numeric
	// columns than this triggers random projection
	MaxDimensions int `json:"max_dimensions" yaml:"max_dimensions"`

	// Seed is the random seed; 0 draws one from OS entropy
	Seed uint32 `json:"seed" yaml:"seed"`

	// NThreads is the worker count; 0 uses the number of CPUs
	NThreads int `json:"nthreads" yaml:"nthreads"`

	// Precision is the floating point width for distance math: 32 or 64
	Precision int `json:"precision" yaml:"precision"`
}

// StorageConfig holds blob storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage base path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration. The aggregation
// defaults match the engine's conventional visualization-oriented values.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:    "./out",
			Format: "csv",
		},
		Aggregation: AggregationConfig{
			MinRows:       500,
			NBins:         500,
			NXBins:        50,
			NYBins:        50,
			NDMaxBins:     500,
			MaxDimensions: 50,
			Seed:          0,
			NThreads:      0,
			Precision:     64,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input is required")
	}

	switch c.Output.Format {
	case "csv", "epit", "sqlite":
		// Valid formats
	default:
		return fmt.Errorf("invalid output format: %s (must be csv, epit, or sqlite)", c.Output.Format)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	a := c.Aggregation
	for _, p := range []struct {
		name  string
		value int
	}{
		{"n_bins", a.NBins},
		{"nx_bins", a.NXBins},
		{"ny_bins", a.NYBins},
		{"nd_max_bins", a.NDMaxBins},
		{"max_dimensions", a.MaxDimensions},
	} {
		if p.value <= 0 {
			return fmt.Errorf("aggregation.%s must be positive, got %d", p.name, p.value)
		}
	}
	if a.MinRows < 0 {
		return fmt.Errorf("aggregation.min_rows must be non-negative, got %d", a.MinRows)
	}
	if a.NThreads < 0 {
		return fmt.Errorf("aggregation.nthreads must be non-negative, got %d", a.NThreads)
	}
	if a.Precision != 32 && a.Precision != 64 {
		return fmt.Errorf("aggregation.precision must be 32 or 64, got %d", a.Precision)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the EPITOME_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("EPITOME_INPUT"); v != "" {
		cfg.Input = v
	}
	if v := os.Getenv("EPITOME_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("EPITOME_OUTPUT_FORMAT"); v != "" {
		cfg.Output.Format = v
	}

	// Aggregation parameters
	if v := os.Getenv("EPITOME_MIN_ROWS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Aggregation.MinRows)
	}
	if v := os.Getenv("EPITOME_N_BINS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Aggregation.NBins)
	}
	if v := os.Getenv("EPITOME_NX_BINS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Aggregation.NXBins)
	}
	if v := os.Getenv("EPITOME_NY_BINS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Aggregation.NYBins)
	}
	if v := os.Getenv("EPITOME_ND_MAX_BINS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Aggregation.NDMaxBins)
	}
	if v := os.Getenv("EPITOME_MAX_DIMENSIONS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Aggregation.MaxDimensions)
	}
	if v := os.Getenv("EPITOME_SEED"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Aggregation.Seed)
	}
	if v := os.Getenv("EPITOME_NTHREADS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Aggregation.NThreads)
	}
	if v := os.Getenv("EPITOME_PRECISION"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Aggregation.Precision)
	}

	// Storage configuration
	if v := os.Getenv("EPITOME_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("EPITOME_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("EPITOME_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("EPITOME_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("EPITOME_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureOutputDir creates the local output directory when needed.
func (c *Config) EnsureOutputDir() error {
	if c.Output.Dir == "" || strings.HasPrefix(c.Output.Dir, "s3://") {
		return nil
	}
	if err := os.MkdirAll(c.Output.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", c.Output.Dir, err)
	}
	return nil
}
