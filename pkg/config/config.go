// Package config provides configuration loading and management for lymphseg.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ziqiangxu/medical-image-viewer/pkg/segmentation"
)

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("invalid configuration")

// ErrNoThreshold is returned when a threshold algorithm has no threshold yet.
var ErrNoThreshold = segmentation.ErrNoThreshold

// Config represents the application configuration loaded from YAML
type Config struct {
	Segmentation Segmentation `yaml:"segmentation"`
	Estimator    Estimator    `yaml:"estimator"`
	PostProcess  PostProcess  `yaml:"postProcess"`
	Preview      Preview      `yaml:"preview"`
	Output       Output       `yaml:"output"`
}

// Segmentation holds the growth parameters
type Segmentation struct {
	// Algorithm is "by_threshold" or "grow_every_slice"
	Algorithm string `yaml:"algorithm"`

	// Threshold is used by by_threshold; nil means estimate it from the seed
	Threshold *float64 `yaml:"threshold,omitempty"`

	// Strictness is "volumetric", "slice_propagation" or "single_slice"
	Strictness string `yaml:"strictness"`

	// Ratio is the std multiplier of grow_every_slice
	Ratio float64 `yaml:"ratio"`

	// MinIter is the number of consecutive degenerate slices that ends propagation
	MinIter int `yaml:"minIter"`

	// MinRegionSize is the voxel count below which a slice region is ignored
	MinRegionSize int `yaml:"minRegionSize"`

	// MaxRefine caps the threshold refinement passes on the seed slice
	MaxRefine int `yaml:"maxRefine"`

	// Polarity is "brighter" or "darker"
	Polarity string `yaml:"polarity"`
}

// Estimator holds the threshold estimation parameters
type Estimator struct {
	// K places the threshold K standard deviations from the region mean
	K float64 `yaml:"k"`

	// Ratio and MinIter drive the first-pass growth
	Ratio   float64 `yaml:"ratio"`
	MinIter int     `yaml:"minIter"`
}

// PostProcess holds the cleanup parameters
type PostProcess struct {
	// MinObjectSize removes connected objects of at most this many voxels; 0 disables it
	MinObjectSize int `yaml:"minObjectSize"`

	// FineTuneK is the std multiplier of adaptive ROI fine tuning
	FineTuneK float64 `yaml:"fineTuneK"`
}

// Preview holds the slice export parameters
type Preview struct {
	// Opacity of the overlay tint, 0-255
	Opacity int `yaml:"opacity"`

	// Scale is the integer upsampling factor of exported slices
	Scale int `yaml:"scale"`

	// Format is "png" or "jpg"
	Format string `yaml:"format"`
}

// Output holds reporting parameters
type Output struct {
	// Dir receives preview images
	Dir string `yaml:"dir"`

	// SaveMarkedSlices exports every slice holding segmented voxels
	SaveMarkedSlices bool `yaml:"saveMarkedSlices"`

	// Verbose controls the level of logging output
	Verbose bool `yaml:"verbose"`

	// LogFile, when set, also receives every log event as JSON lines
	LogFile string `yaml:"logFile,omitempty"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Segmentation.Algorithm = segmentation.NameGrowEverySlice
	cfg.Segmentation.Strictness = segmentation.Volumetric.String()
	cfg.Segmentation.Ratio = 3
	cfg.Segmentation.MinIter = segmentation.DefaultMinIter
	cfg.Segmentation.MinRegionSize = segmentation.DefaultMinRegionSize
	cfg.Segmentation.MaxRefine = segmentation.DefaultMaxRefine
	cfg.Segmentation.Polarity = segmentation.Brighter.String()

	cfg.Estimator.K = 1.5
	cfg.Estimator.Ratio = 3
	cfg.Estimator.MinIter = segmentation.DefaultMinIter

	cfg.PostProcess.MinObjectSize = 0
	cfg.PostProcess.FineTuneK = 1.5

	cfg.Preview.Opacity = 50
	cfg.Preview.Scale = 1
	cfg.Preview.Format = "png"

	cfg.Output.Dir = "preview"
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks names and ranges.
func (c *Config) Validate() error {
	if _, err := segmentation.ParseAlgorithmName(c.Segmentation.Algorithm); err != nil {
		return err
	}
	if _, err := segmentation.ParseStrictness(c.Segmentation.Strictness); err != nil {
		return err
	}
	if _, err := segmentation.ParsePolarity(c.Segmentation.Polarity); err != nil {
		return err
	}

	switch {
	case c.Segmentation.Ratio < 0:
		return fmt.Errorf("segmentation.ratio %g: %w", c.Segmentation.Ratio, ErrInvalid)
	case c.Segmentation.MinIter < 1:
		return fmt.Errorf("segmentation.minIter %d: %w", c.Segmentation.MinIter, ErrInvalid)
	case c.Segmentation.MinRegionSize < 1:
		return fmt.Errorf("segmentation.minRegionSize %d: %w", c.Segmentation.MinRegionSize, ErrInvalid)
	case c.Segmentation.MaxRefine < 0:
		return fmt.Errorf("segmentation.maxRefine %d: %w", c.Segmentation.MaxRefine, ErrInvalid)
	case c.Estimator.K < 0:
		return fmt.Errorf("estimator.k %g: %w", c.Estimator.K, ErrInvalid)
	case c.Estimator.MinIter < 1:
		return fmt.Errorf("estimator.minIter %d: %w", c.Estimator.MinIter, ErrInvalid)
	case c.PostProcess.MinObjectSize < 0:
		return fmt.Errorf("postProcess.minObjectSize %d: %w", c.PostProcess.MinObjectSize, ErrInvalid)
	case c.Preview.Opacity < 0 || c.Preview.Opacity > 255:
		return fmt.Errorf("preview.opacity %d: %w", c.Preview.Opacity, ErrInvalid)
	case c.Preview.Scale < 1:
		return fmt.Errorf("preview.scale %d: %w", c.Preview.Scale, ErrInvalid)
	}

	switch c.Preview.Format {
	case "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("preview.format %q: %w", c.Preview.Format, ErrInvalid)
	}
	return nil
}

// Variant translates the configured names into an algorithm variant.
func (s Segmentation) Variant() (segmentation.Algorithm, error) {
	name, err := segmentation.ParseAlgorithmName(s.Algorithm)
	if err != nil {
		return nil, err
	}

	if name == segmentation.NameGrowEverySlice {
		return segmentation.GrowEverySlice{Ratio: s.Ratio, MinIter: s.MinIter}, nil
	}

	strictness, err := segmentation.ParseStrictness(s.Strictness)
	if err != nil {
		return nil, err
	}
	if s.Threshold == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNoThreshold)
	}
	return segmentation.ByThreshold{Threshold: *s.Threshold, Strictness: strictness}, nil
}

// SetThreshold fixes the by_threshold threshold.
func (s *Segmentation) SetThreshold(t float64) {
	s.Threshold = &t
}

// Options returns the shared growth options logging to logger.
func (s Segmentation) Options(logger zerolog.Logger) (segmentation.Options, error) {
	polarity, err := segmentation.ParsePolarity(s.Polarity)
	if err != nil {
		return segmentation.Options{}, err
	}
	return segmentation.Options{
		Polarity:      polarity,
		MinRegionSize: s.MinRegionSize,
		MaxRefine:     s.MaxRefine,
		MinIter:       s.MinIter,
		Logger:        logger,
	}, nil
}

// EstimatorOptions combines the estimator section with the growth limits.
func (c *Config) EstimatorOptions(logger zerolog.Logger) (segmentation.EstimatorOptions, error) {
	polarity, err := segmentation.ParsePolarity(c.Segmentation.Polarity)
	if err != nil {
		return segmentation.EstimatorOptions{}, err
	}
	return segmentation.EstimatorOptions{
		K:             c.Estimator.K,
		Ratio:         c.Estimator.Ratio,
		MinIter:       c.Estimator.MinIter,
		MinRegionSize: c.Segmentation.MinRegionSize,
		MaxRefine:     c.Segmentation.MaxRefine,
		Polarity:      polarity,
		Logger:        logger,
	}, nil
}
