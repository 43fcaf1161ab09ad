// Package config loads and validates viewer settings. Files may be JSON,
// YAML or TOML; the format is chosen by extension.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"stackview/internal/logging"
	"stackview/internal/stack"
	"stackview/internal/viewport"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds every user-tunable option.
type Config struct {
	AspectRatioMode  viewport.AspectMode `json:"aspect_ratio_mode" yaml:"aspect_ratio_mode" toml:"aspect_ratio_mode"`
	RegionZoomButton viewport.Button     `json:"region_zoom_button" yaml:"region_zoom_button" toml:"region_zoom_button"`
	ZoomOutButton    viewport.Button     `json:"zoom_out_button" yaml:"zoom_out_button" toml:"zoom_out_button"`
	PanButton        viewport.Button     `json:"pan_button" yaml:"pan_button" toml:"pan_button"`

	WheelZoomFactor   float64 `json:"wheel_zoom_factor" yaml:"wheel_zoom_factor" toml:"wheel_zoom_factor"`
	DisableWheelZoom  bool    `json:"disable_wheel_zoom" yaml:"disable_wheel_zoom" toml:"disable_wheel_zoom"`
	CoalesceWheelZoom bool    `json:"coalesce_wheel_zoom" yaml:"coalesce_wheel_zoom" toml:"coalesce_wheel_zoom"`
	// WheelScrollsFrame routes the wheel to frame stepping instead of zoom.
	WheelScrollsFrame bool `json:"wheel_scrolls_frame" yaml:"wheel_scrolls_frame" toml:"wheel_scrolls_frame"`

	MinZoomAreaPixels float64 `json:"min_zoom_area_pixels" yaml:"min_zoom_area_pixels" toml:"min_zoom_area_pixels"`
	MinZoomSidePixels float64 `json:"min_zoom_side_pixels" yaml:"min_zoom_side_pixels" toml:"min_zoom_side_pixels"`

	CacheFrameBound  int  `json:"cache_frame_bound" yaml:"cache_frame_bound" toml:"cache_frame_bound"`
	SeparateChannels bool `json:"separate_channels" yaml:"separate_channels" toml:"separate_channels"`

	FlipHorizontal bool `json:"flip_horizontal" yaml:"flip_horizontal" toml:"flip_horizontal"`
	FlipVertical   bool `json:"flip_vertical" yaml:"flip_vertical" toml:"flip_vertical"`

	PlaybackFPS float64 `json:"playback_fps" yaml:"playback_fps" toml:"playback_fps"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	vo := viewport.DefaultOptions()
	return &Config{
		AspectRatioMode:   vo.Aspect,
		RegionZoomButton:  vo.RegionZoomButton,
		ZoomOutButton:     vo.ZoomOutButton,
		PanButton:         vo.PanButton,
		WheelZoomFactor:   vo.WheelZoomFactor,
		CoalesceWheelZoom: vo.CoalesceWheel,
		MinZoomAreaPixels: vo.MinZoomAreaPixels,
		MinZoomSidePixels: vo.MinZoomSidePixels,
		CacheFrameBound:   stack.DefaultCacheBound,
		SeparateChannels:  true,
		PlaybackFPS:       10,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Viewport returns the viewport engine options.
func (c *Config) Viewport() viewport.Options {
	return viewport.Options{
		Aspect:            c.AspectRatioMode,
		RegionZoomButton:  c.RegionZoomButton,
		ZoomOutButton:     c.ZoomOutButton,
		PanButton:         c.PanButton,
		WheelZoomFactor:   c.WheelZoomFactor,
		DisableWheelZoom:  c.DisableWheelZoom,
		CoalesceWheel:     c.CoalesceWheelZoom,
		MinZoomAreaPixels: c.MinZoomAreaPixels,
		MinZoomSidePixels: c.MinZoomSidePixels,
		FlipHorizontal:    c.FlipHorizontal,
		FlipVertical:      c.FlipVertical,
	}
}

// Validate reports the first option that is out of range.
func (c *Config) Validate() error {
	if err := c.Viewport().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.CacheFrameBound < 1 {
		return fmt.Errorf("%w: cache_frame_bound %d must be at least 1", ErrInvalid, c.CacheFrameBound)
	}
	if !(c.PlaybackFPS > 0) {
		return fmt.Errorf("%w: playback_fps %g must be positive", ErrInvalid, c.PlaybackFPS)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

type format int

const (
	formatJSON format = iota
	formatYAML
	formatTOML
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	default:
		return 0, fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
	}
}

// Load reads path over the defaults. A missing file yields DefaultConfig().
// Invalid values are rejected rather than clamped.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := cfg.decode(f, data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(f format, data []byte) error {
	switch f {
	case formatYAML:
		return yaml.Unmarshal(data, c)
	case formatTOML:
		_, err := toml.Decode(string(data), c)
		return err
	default:
		return json.Unmarshal(data, c)
	}
}

// Save writes the configuration to path in the format its extension names.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := formatOf(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch f {
	case formatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	case formatTOML:
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return err
		}
	default:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
