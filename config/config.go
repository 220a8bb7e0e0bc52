// Package config loads the YAML configuration for a single camera HAL
// instance: which V4L2 device node to bind, a buffer count, and the faked
// physical parameters reported when V4L2 cannot
// describe them (spec.md §4.4 item 4).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Physical holds the faked lens/sensor parameters reported in static
// characteristics when the V4L2 device has no way to report them. These
// are informative only and do not affect capture behavior (spec.md §9,
// open question (c): they do affect framework field-of-view math, which
// is out of scope for this core).
type Physical struct {
	ApertureFNumber float64 `yaml:"aperture_f_number"`
	FocalLengthMM   float64 `yaml:"focal_length_mm"`
	SensorWidthMM   float64 `yaml:"sensor_width_mm"`
	SensorHeightMM  float64 `yaml:"sensor_height_mm"`
}

// DefaultPhysical matches commonly-seen fixed-focus USB webcam optics; a
// reasonable stand-in absent any way to query real values from V4L2.
var DefaultPhysical = Physical{
	ApertureFNumber: 2.4,
	FocalLengthMM:   3.6,
	SensorWidthMM:   3.68,
	SensorHeightMM:  2.76,
}

// CameraConfig describes one camera HAL instance.
type CameraConfig struct {
	// Name identifies this camera for logging and metrics labels.
	Name string `yaml:"name"`
	// DevicePath is the V4L2 character device node, e.g. /dev/video0.
	DevicePath string `yaml:"device_path"`
	// ResourceCost is reported verbatim in the info table (spec.md §6).
	ResourceCost int `yaml:"resource_cost"`
	// BufferCount is the configured number of userptr buffer slots. The
	// capture pipeline always requests one buffer via REQBUFS; cmd/halsim
	// logs a warning for any other value and otherwise ignores it.
	BufferCount uint32 `yaml:"buffer_count"`
	// Physical carries the faked lens/sensor parameters for this camera.
	Physical Physical `yaml:"physical"`
}

// setDefaults fills in zero-valued fields with this core's defaults.
func (c *CameraConfig) setDefaults() {
	if c.ResourceCost == 0 {
		c.ResourceCost = 100
	}
	if c.BufferCount == 0 {
		c.BufferCount = 1
	}
	if c.Physical == (Physical{}) {
		c.Physical = DefaultPhysical
	}
}

// Validate checks that required fields are present.
func (c CameraConfig) Validate() error {
	if c.DevicePath == "" {
		return fmt.Errorf("config: camera %q: device_path is required", c.Name)
	}
	return nil
}

// Config is the top-level HAL configuration: one or more cameras.
type Config struct {
	Cameras []CameraConfig `yaml:"cameras"`
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	for i := range cfg.Cameras {
		cfg.Cameras[i].setDefaults()
		if err := cfg.Cameras[i].Validate(); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}
