package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/ld2450"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := &Config{}

	assert.Equal(t, ":8080", cfg.GetListenAddr())
	assert.Equal(t, ":50051", cfg.GetGRPCAddr())
	assert.Equal(t, 8, cfg.GetGRPCMaxClients())
	assert.Equal(t, hass.SupervisorURL, cfg.GetHassURL())
	assert.Equal(t, 6000.0, cfg.GetDetectionRange())
	assert.Equal(t, 100.0, cfg.GetMinZoneSize())
	assert.Equal(t, 0.1, cfg.GetZoomStep())
	assert.Equal(t, 0.05, cfg.GetCanvasScale())
	assert.Equal(t, 250*time.Millisecond, cfg.GetDeleteAnimation())
	assert.Equal(t, 3*time.Second, cfg.GetReconnectBackoff())
	assert.Equal(t, "presence.db", cfg.GetRecorderDB())
	assert.Equal(t, "mm", cfg.GetDisplayUnit())
	assert.Equal(t, "m/s", cfg.GetSpeedUnit())
	assert.Equal(t, ld2450.PortOptions{BaudRate: 256000, DataBits: 8, StopBits: 1, Parity: "N"}, cfg.GetSerial())
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("PRESENCE_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("PRESENCE_SERIAL_BAUD_RATE", "115200")
	t.Setenv("SUPERVISOR_TOKEN", "supervisor-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.GetListenAddr())
	assert.Equal(t, "supervisor-secret", cfg.GetHassToken())
	assert.Equal(t, 115200, cfg.GetSerial().BaudRate)
	require.NotNil(t, cfg.DetectionRange)
	assert.Equal(t, 6000.0, *cfg.DetectionRange)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "presence.json", `{
  "hass_url": "http://homeassistant.local:8123",
  "hass_token": "abc",
  "detection_range": 8000,
  "snap_mm": 50,
  "delete_animation": "400ms",
  "reconnect_backoff": "10s",
  "serial_port": "/dev/ttyUSB0",
  "serial": {"baud_rate": 115200, "parity": "even"}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://homeassistant.local:8123", cfg.GetHassURL())
	assert.Equal(t, "abc", cfg.GetHassToken())
	assert.Equal(t, "/dev/ttyUSB0", cfg.GetSerialPort())
	assert.Equal(t, ld2450.PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "E"}, cfg.GetSerial())
	assert.Equal(t, 10*time.Second, cfg.GetReconnectBackoff())

	ed := cfg.Editor()
	assert.Equal(t, geometry.RangeBounds(8000), ed.Bounds)
	assert.Equal(t, 50.0, ed.SnapMM)
	assert.Equal(t, 400*time.Millisecond, ed.DeleteAnimation)
	assert.Equal(t, 100.0, ed.MinZoneSize)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := writeConfig(t, "presence.yaml", "grpc_addr: \":6000\"\nmin_zone_size: 200\n")
	t.Setenv("PRESENCE_GRPC_ADDR", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.GetGRPCAddr())
	assert.Equal(t, 200.0, cfg.GetMinZoneSize())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"extension", "presence.txt", "{}"},
		{"syntax", "presence.json", "{"},
		{"negative range", "presence.json", `{"detection_range": -1}`},
		{"bad duration", "presence.json", `{"reconnect_backoff": "soon"}`},
		{"bad parity", "presence.json", `{"serial": {"parity": "mark"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, false},
		{"zero min zone", Config{MinZoneSize: ptrFloat64(0)}, true},
		{"zone larger than range", Config{DetectionRange: ptrFloat64(100), MinZoneSize: ptrFloat64(500)}, true},
		{"negative snap", Config{SnapMM: ptrFloat64(-5)}, true},
		{"zoom step too large", Config{ZoomStep: ptrFloat64(10)}, true},
		{"zero scale", Config{CanvasScale: ptrFloat64(0)}, true},
		{"negative clients", Config{GRPCMaxClients: ptrInt(-1)}, true},
		{"bad animation", Config{DeleteAnimation: ptrString("fast")}, true},
		{"bad display unit", Config{DisplayUnit: ptrString("yards")}, true},
		{"bad speed unit", Config{SpeedUnit: ptrString("knots")}, true},
		{"imperial", Config{DisplayUnit: ptrString("ft"), SpeedUnit: ptrString("mph")}, false},
		{"valid", Config{DetectionRange: ptrFloat64(4000), SnapMM: ptrFloat64(10), DeleteAnimation: ptrString("1s")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseErrorFallsBackToDefault(t *testing.T) {
	cfg := &Config{ReconnectBackoff: ptrString("never")}
	assert.Equal(t, 3*time.Second, cfg.GetReconnectBackoff())
}

func TestViewportUsesScale(t *testing.T) {
	cfg := &Config{CanvasScale: ptrFloat64(0.1)}
	v := cfg.Viewport(800, 600)
	assert.Equal(t, 0.1, v.Scale)
	assert.Equal(t, 1.0, v.Zoom)
}
