// Package config loads the service configuration. Values come from an
// optional JSON, YAML or TOML file and PRESENCE_* environment variables;
// every field is a pointer so unset values fall back to the defaults in the
// Get* accessors.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/banshee-data/presence.report/internal/editor"
	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/ld2450"
	"github.com/banshee-data/presence.report/internal/live"
	"github.com/banshee-data/presence.report/internal/units"
	"github.com/banshee-data/presence.report/internal/viewport"
)

// EnvPrefix prefixes every environment override, e.g. PRESENCE_LISTEN_ADDR.
const EnvPrefix = "PRESENCE"

const (
	DefaultListenAddr      = ":8080"
	DefaultGRPCAddr        = ":50051"
	DefaultGRPCMaxClients  = 8
	DefaultRecorderDB      = "presence.db"
	DefaultDetectionRange  = editor.DefaultDetectionRange
	DefaultMinZoneSize     = 100.0
	DefaultDeleteAnimation = 250 * time.Millisecond

	maxFileSize = 1 * 1024 * 1024
)

// Config is the root configuration.
type Config struct {
	ListenAddr     *string `json:"listen_addr,omitempty" mapstructure:"listen_addr"`
	GRPCAddr       *string `json:"grpc_addr,omitempty" mapstructure:"grpc_addr"`
	GRPCMaxClients *int    `json:"grpc_max_clients,omitempty" mapstructure:"grpc_max_clients"`

	// Home Assistant. An empty URL means the add-on supervisor proxy.
	HassURL   *string `json:"hass_url,omitempty" mapstructure:"hass_url"`
	HassToken *string `json:"hass_token,omitempty" mapstructure:"hass_token"`

	// Editor
	DetectionRange  *float64 `json:"detection_range,omitempty" mapstructure:"detection_range"`
	MinZoneSize     *float64 `json:"min_zone_size,omitempty" mapstructure:"min_zone_size"`
	SnapMM          *float64 `json:"snap_mm,omitempty" mapstructure:"snap_mm"`
	ZoomStep        *float64 `json:"zoom_step,omitempty" mapstructure:"zoom_step"`
	CanvasScale     *float64 `json:"canvas_scale,omitempty" mapstructure:"canvas_scale"`
	DeleteAnimation *string  `json:"delete_animation,omitempty" mapstructure:"delete_animation"` // duration string like "250ms"

	// Presentation only. Zones are always stored and pushed in mm.
	DisplayUnit *string `json:"display_unit,omitempty" mapstructure:"display_unit"`
	SpeedUnit   *string `json:"speed_unit,omitempty" mapstructure:"speed_unit"`

	ReconnectBackoff *string `json:"reconnect_backoff,omitempty" mapstructure:"reconnect_backoff"` // duration string like "3s"

	RecorderDB *string `json:"recorder_db,omitempty" mapstructure:"recorder_db"`

	SerialPort *string             `json:"serial_port,omitempty" mapstructure:"serial_port"`
	Serial     *ld2450.PortOptions `json:"serial,omitempty" mapstructure:"serial"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("grpc_addr", DefaultGRPCAddr)
	v.SetDefault("grpc_max_clients", DefaultGRPCMaxClients)
	v.SetDefault("hass_url", "")
	v.SetDefault("hass_token", "")
	v.SetDefault("detection_range", DefaultDetectionRange)
	v.SetDefault("min_zone_size", DefaultMinZoneSize)
	v.SetDefault("snap_mm", 0.0)
	v.SetDefault("zoom_step", viewport.DefaultZoomStep)
	v.SetDefault("canvas_scale", viewport.DefaultScale)
	v.SetDefault("delete_animation", DefaultDeleteAnimation.String())
	v.SetDefault("display_unit", units.MM)
	v.SetDefault("speed_unit", units.MPS)
	v.SetDefault("reconnect_backoff", live.ReconnectBackoff.String())
	v.SetDefault("recorder_db", DefaultRecorderDB)
	v.SetDefault("serial_port", "")
	v.SetDefault("serial.baud_rate", ld2450.DefaultBaudRate)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "N")
}

// Load reads the configuration. An empty path uses defaults and the
// environment only. Inside a Home Assistant add-on the SUPERVISOR_TOKEN
// variable is accepted as the access token.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("hass_token", EnvPrefix+"_HASS_TOKEN", "SUPERVISOR_TOKEN"); err != nil {
		return nil, err
	}

	if path != "" {
		cleanPath := filepath.Clean(path)
		switch ext := filepath.Ext(cleanPath); ext {
		case ".json", ".yaml", ".yml", ".toml":
		default:
			return nil, fmt.Errorf("config file must be .json, .yaml or .toml, got %q", ext)
		}
		fileInfo, err := os.Stat(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if fileInfo.Size() > maxFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
		}
		v.SetConfigFile(cleanPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.DetectionRange != nil && *c.DetectionRange <= 0 {
		return fmt.Errorf("detection_range must be positive, got %f", *c.DetectionRange)
	}
	if c.MinZoneSize != nil && *c.MinZoneSize <= 0 {
		return fmt.Errorf("min_zone_size must be positive, got %f", *c.MinZoneSize)
	}
	if c.MinZoneSize != nil && *c.MinZoneSize > 2*c.GetDetectionRange() {
		return fmt.Errorf("min_zone_size %f does not fit in detection_range %f", *c.MinZoneSize, c.GetDetectionRange())
	}
	if c.SnapMM != nil && *c.SnapMM < 0 {
		return fmt.Errorf("snap_mm must be non-negative, got %f", *c.SnapMM)
	}
	if c.ZoomStep != nil && (*c.ZoomStep <= 0 || *c.ZoomStep > viewport.MaxZoom) {
		return fmt.Errorf("zoom_step must be in (0, %g], got %f", viewport.MaxZoom, *c.ZoomStep)
	}
	if c.CanvasScale != nil && *c.CanvasScale <= 0 {
		return fmt.Errorf("canvas_scale must be positive, got %f", *c.CanvasScale)
	}
	if c.DisplayUnit != nil && *c.DisplayUnit != "" && !units.IsValid(*c.DisplayUnit) {
		return fmt.Errorf("invalid display_unit '%s': must be one of: %s", *c.DisplayUnit, units.GetValidUnitsString())
	}
	if c.SpeedUnit != nil && *c.SpeedUnit != "" && !units.IsValidSpeed(*c.SpeedUnit) {
		return fmt.Errorf("invalid speed_unit '%s'", *c.SpeedUnit)
	}
	if c.GRPCMaxClients != nil && *c.GRPCMaxClients < 0 {
		return fmt.Errorf("grpc_max_clients must be non-negative, got %d", *c.GRPCMaxClients)
	}
	for name, d := range map[string]*string{"delete_animation": c.DeleteAnimation, "reconnect_backoff": c.ReconnectBackoff} {
		if d == nil || *d == "" {
			continue
		}
		if _, err := time.ParseDuration(*d); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
	}
	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	return nil
}

func str(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func duration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetDisplayUnit returns the length unit used for presentation.
func (c *Config) GetDisplayUnit() string { return str(c.DisplayUnit, units.MM) }

// GetSpeedUnit returns the speed unit used for presentation.
func (c *Config) GetSpeedUnit() string { return str(c.SpeedUnit, units.MPS) }

// GetListenAddr returns the HTTP listen address.
func (c *Config) GetListenAddr() string { return str(c.ListenAddr, DefaultListenAddr) }

// GetGRPCAddr returns the snapshot stream listen address.
func (c *Config) GetGRPCAddr() string { return str(c.GRPCAddr, DefaultGRPCAddr) }

// GetGRPCMaxClients returns the stream client limit; 0 means unlimited.
func (c *Config) GetGRPCMaxClients() int {
	if c.GRPCMaxClients == nil {
		return DefaultGRPCMaxClients
	}
	return *c.GRPCMaxClients
}

// GetHassURL returns the Home Assistant base URL, or the supervisor proxy
// when none is configured.
func (c *Config) GetHassURL() string { return str(c.HassURL, hass.SupervisorURL) }

// GetHassToken returns the Home Assistant access token.
func (c *Config) GetHassToken() string { return str(c.HassToken, "") }

// GetDetectionRange returns the editor bound radius in mm.
func (c *Config) GetDetectionRange() float64 {
	if c.DetectionRange == nil {
		return DefaultDetectionRange
	}
	return *c.DetectionRange
}

// GetMinZoneSize returns the smallest zone side in mm.
func (c *Config) GetMinZoneSize() float64 {
	if c.MinZoneSize == nil {
		return DefaultMinZoneSize
	}
	return *c.MinZoneSize
}

// GetSnapMM returns the snap grid in mm; 0 disables snapping.
func (c *Config) GetSnapMM() float64 {
	if c.SnapMM == nil {
		return 0
	}
	return *c.SnapMM
}

// GetZoomStep returns the zoom change per wheel step.
func (c *Config) GetZoomStep() float64 {
	if c.ZoomStep == nil {
		return viewport.DefaultZoomStep
	}
	return *c.ZoomStep
}

// GetCanvasScale returns the pixels per mm at zoom 1.
func (c *Config) GetCanvasScale() float64 {
	if c.CanvasScale == nil {
		return viewport.DefaultScale
	}
	return *c.CanvasScale
}

// GetDeleteAnimation returns how long a deleted zone keeps fading out.
func (c *Config) GetDeleteAnimation() time.Duration {
	return duration(c.DeleteAnimation, DefaultDeleteAnimation)
}

// GetReconnectBackoff returns the delay before a dropped live connection
// is retried.
func (c *Config) GetReconnectBackoff() time.Duration {
	return duration(c.ReconnectBackoff, live.ReconnectBackoff)
}

// GetRecorderDB returns the sqlite path of the signal recorder.
func (c *Config) GetRecorderDB() string { return str(c.RecorderDB, DefaultRecorderDB) }

// GetSerialPort returns the LD2450 UART path; empty disables the source.
func (c *Config) GetSerialPort() string { return str(c.SerialPort, "") }

// GetSerial returns the normalised serial options.
func (c *Config) GetSerial() ld2450.PortOptions {
	var o ld2450.PortOptions
	if c.Serial != nil {
		o = *c.Serial
	}
	n, err := o.Normalize()
	if err != nil {
		return ld2450.PortOptions{BaudRate: ld2450.DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}
	}
	return n
}

// Editor builds the editor configuration.
func (c *Config) Editor() editor.Config {
	cfg := editor.DefaultConfig()
	cfg.Bounds = geometry.RangeBounds(c.GetDetectionRange())
	cfg.MinZoneSize = c.GetMinZoneSize()
	cfg.SnapMM = c.GetSnapMM()
	cfg.ZoomStep = c.GetZoomStep()
	cfg.DeleteAnimation = c.GetDeleteAnimation()
	return cfg
}

// Viewport returns an empty canvas using the configured scale.
func (c *Config) Viewport(width, height float64) viewport.Viewport {
	v := viewport.New(width, height)
	v.Scale = c.GetCanvasScale()
	return v
}
