// Package fire - This file contains the tunables of the fire-region detection pipeline.
package fire

import (
	"github.com/pkg/errors"
)

const (
	// DefaultMinContourArea is the noise floor below which contours are never classified.
	DefaultMinContourArea = 100.0
	// DefaultFireAreaThreshold is the contour area a region must exceed to count as fire.
	DefaultFireAreaThreshold = 500.0
	// DefaultFireIntensityThreshold is the mean bbox intensity a region must exceed to count as fire.
	DefaultFireIntensityThreshold = 100.0
	// DefaultKernelSize is the side of the square all-ones structuring element.
	DefaultKernelSize = 5
)

// ErrInvalidConfig is returned when a Config cannot drive a Detector.
var ErrInvalidConfig = errors.New("invalid fire detection config")

// HSVBand is an inclusive (hue, saturation, value) range. Hue follows the OpenCV
// 8-bit convention of [0, 180].
type HSVBand struct {
	// Name is used in logs only.
	Name  string     `json:"name" yaml:"name"`
	Lower [3]float64 `json:"lower" yaml:"lower"`
	Upper [3]float64 `json:"upper" yaml:"upper"`
}

// DefaultBands returns the red, wrap-around red and orange bands.
func DefaultBands() []HSVBand {
	return []HSVBand{
		{Name: "red_low", Lower: [3]float64{0, 100, 100}, Upper: [3]float64{10, 255, 255}},
		{Name: "red_high", Lower: [3]float64{160, 100, 100}, Upper: [3]float64{180, 255, 255}},
		{Name: "orange", Lower: [3]float64{10, 100, 100}, Upper: [3]float64{25, 255, 255}},
	}
}

// Config contains configuration parameters for fire detection.
type Config struct {
	// Bands are OR-ed together into the color mask.
	Bands []HSVBand `json:"bands" yaml:"bands"`
	// KernelSize is the side length of the closing/opening structuring element.
	KernelSize int `json:"kernel_size" yaml:"kernel_size"`
	// MinContourArea discards contours whose area is at or below it.
	MinContourArea float64 `json:"min_contour_area" yaml:"min_contour_area"`
	// FireAreaThreshold is the strict lower bound on a fire region's area.
	FireAreaThreshold float64 `json:"fire_area_threshold" yaml:"fire_area_threshold"`
	// FireIntensityThreshold is the strict lower bound on a fire region's mean intensity.
	FireIntensityThreshold float64 `json:"fire_intensity_threshold" yaml:"fire_intensity_threshold"`
}

// DefaultConfig returns the reference configuration.
//
// Returns:
//   - Config: Configuration with the default bands and thresholds
//
// @example
// cfg := fire.DefaultConfig()
// cfg.FireAreaThreshold = 800
// detector, err := fire.NewDetector(cfg)
func DefaultConfig() Config {
	return Config{
		Bands:                  DefaultBands(),
		KernelSize:             DefaultKernelSize,
		MinContourArea:         DefaultMinContourArea,
		FireAreaThreshold:      DefaultFireAreaThreshold,
		FireIntensityThreshold: DefaultFireIntensityThreshold,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.KernelSize < 1 {
		return errors.Wrapf(ErrInvalidConfig, "kernel size must be positive, got %d", c.KernelSize)
	}
	if c.MinContourArea < 0 {
		return errors.Wrapf(ErrInvalidConfig, "min contour area must not be negative, got %v", c.MinContourArea)
	}
	if c.FireAreaThreshold < 0 {
		return errors.Wrapf(ErrInvalidConfig, "fire area threshold must not be negative, got %v", c.FireAreaThreshold)
	}
	if c.FireIntensityThreshold < 0 || c.FireIntensityThreshold > 255 {
		return errors.Wrapf(ErrInvalidConfig, "fire intensity threshold must be within [0, 255], got %v", c.FireIntensityThreshold)
	}
	for _, b := range c.Bands {
		for i := 0; i < 3; i++ {
			if b.Lower[i] > b.Upper[i] {
				return errors.Wrapf(ErrInvalidConfig, "band %q has lower bound above upper bound", b.Name)
			}
		}
	}
	return nil
}
