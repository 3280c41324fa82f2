// Package config holds the depth processing settings applied to a device session.
package config

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Default processing settings.
const (
	DefaultMinDepth              float32 = 0.5
	DefaultMaxDepth              float32 = 4.5
	DefaultEnableBilateralFilter         = true
	DefaultEnableEdgeAwareFilter         = true
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the depth processing configuration. It is a value type: applying it to a session
// stores a copy, so later changes to the caller's value have no effect until applied again.
type Config struct {
	minDepth              float32
	maxDepth              float32
	enableBilateralFilter bool
	enableEdgeAwareFilter bool
}

// New returns the library defaults.
func New() Config {
	return Config{
		minDepth:              DefaultMinDepth,
		maxDepth:              DefaultMaxDepth,
		enableBilateralFilter: DefaultEnableBilateralFilter,
		enableEdgeAwareFilter: DefaultEnableEdgeAwareFilter,
	}
}

// MinDepth is the closest distance in meters that is kept.
func (c Config) MinDepth() float32 { return c.minDepth }

// MaxDepth is the furthest distance in meters that is kept.
func (c Config) MaxDepth() float32 { return c.maxDepth }

// EnableBilateralFilter reports whether the bilateral noise filter runs.
func (c Config) EnableBilateralFilter() bool { return c.enableBilateralFilter }

// EnableEdgeAwareFilter reports whether pixels on noisy depth edges are removed.
func (c Config) EnableEdgeAwareFilter() bool { return c.enableEdgeAwareFilter }

// SetMinDepth sets the minimum depth. It must be positive and less than the maximum depth.
func (c *Config) SetMinDepth(minDepth float32) error {
	if !(minDepth > 0) || math.IsInf(float64(minDepth), 0) {
		return errors.Wrapf(ErrInvalidConfig, "min depth must be greater than 0, got %v", minDepth)
	}
	if minDepth >= c.maxDepth {
		return errors.Wrapf(ErrInvalidConfig, "min depth %v must be less than max depth %v", minDepth, c.maxDepth)
	}
	c.minDepth = minDepth
	return nil
}

// SetMaxDepth sets the maximum depth. It must be greater than the minimum depth.
func (c *Config) SetMaxDepth(maxDepth float32) error {
	if !(maxDepth > c.minDepth) {
		return errors.Wrapf(ErrInvalidConfig, "max depth %v must be greater than min depth %v", maxDepth, c.minDepth)
	}
	c.maxDepth = maxDepth
	return nil
}

// SetEnableBilateralFilter toggles the bilateral filter.
func (c *Config) SetEnableBilateralFilter(enable bool) {
	c.enableBilateralFilter = enable
}

// SetEnableEdgeAwareFilter toggles the edge aware filter.
func (c *Config) SetEnableEdgeAwareFilter(enable bool) {
	c.enableEdgeAwareFilter = enable
}

// Validate checks the depth range. Configs built through the setters are always valid; this
// catches hand-decoded values.
func (c Config) Validate() error {
	if !(c.minDepth > 0) {
		return errors.Wrapf(ErrInvalidConfig, "min depth must be greater than 0, got %v", c.minDepth)
	}
	if !(c.maxDepth > c.minDepth) || math.IsInf(float64(c.maxDepth), 0) {
		return errors.Wrapf(ErrInvalidConfig, "max depth %v must be greater than min depth %v", c.maxDepth, c.minDepth)
	}
	return nil
}

type jsonConfig struct {
	MinDepth              *float32 `json:"min_depth,omitempty"`
	MaxDepth              *float32 `json:"max_depth,omitempty"`
	EnableBilateralFilter *bool    `json:"enable_bilateral_filter,omitempty"`
	EnableEdgeAwareFilter *bool    `json:"enable_edge_aware_filter,omitempty"`
}

// MarshalJSON encodes every field.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonConfig{
		MinDepth:              &c.minDepth,
		MaxDepth:              &c.maxDepth,
		EnableBilateralFilter: &c.enableBilateralFilter,
		EnableEdgeAwareFilter: &c.enableEdgeAwareFilter,
	})
}

// UnmarshalJSON decodes a config. Missing fields keep their defaults and the result is validated.
func (c *Config) UnmarshalJSON(data []byte) error {
	var raw jsonConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded := New()
	if raw.MinDepth != nil {
		decoded.minDepth = *raw.MinDepth
	}
	if raw.MaxDepth != nil {
		decoded.maxDepth = *raw.MaxDepth
	}
	if raw.EnableBilateralFilter != nil {
		decoded.enableBilateralFilter = *raw.EnableBilateralFilter
	}
	if raw.EnableEdgeAwareFilter != nil {
		decoded.enableEdgeAwareFilter = *raw.EnableEdgeAwareFilter
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*c = decoded
	return nil
}

// FromJSONFile reads a config from a JSON file.
func FromJSONFile(jsonPath string) (Config, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return Config{}, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)

	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return Config{}, errors.Wrap(err, "error reading JSON data")
	}
	cfg := New()
	if err := json.Unmarshal(byteValue, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "error parsing JSON string")
	}
	return cfg, nil
}
