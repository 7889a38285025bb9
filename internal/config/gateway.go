// Package config loads the gateway's JSON configuration file. All fields are
// pointers so a partial config file overrides only what it names; the Get*
// accessors supply defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// GatewayConfig represents the root configuration of the sensor gateway.
type GatewayConfig struct {
	// Serial device params
	SerialPort             *string `json:"serial_port,omitempty"`
	BaudRate               *int    `json:"baud_rate,omitempty"`
	CaptureIntervalSeconds *int    `json:"capture_interval_seconds,omitempty"`

	// Storage params
	StoreBackend *string `json:"store_backend,omitempty"` // "csv" or "sqlite"
	DataFile     *string `json:"data_file,omitempty"`
	SQLitePath   *string `json:"sqlite_path,omitempty"`

	// Analysis params
	CacheTTL         *string `json:"cache_ttl,omitempty"` // duration string like "300s"
	MaxScatterPoints *int    `json:"max_scatter_points,omitempty"`

	// HTTP params
	ListenAddr *string `json:"listen_addr,omitempty"`

	// Optional cloud mirror (disabled when URL is empty)
	InfluxURL    *string `json:"influx_url,omitempty"`
	InfluxToken  *string `json:"influx_token,omitempty"`
	InfluxOrg    *string `json:"influx_org,omitempty"`
	InfluxBucket *string `json:"influx_bucket,omitempty"`
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyGatewayConfig returns a GatewayConfig with all fields set to nil.
func EmptyGatewayConfig() *GatewayConfig {
	return &GatewayConfig{}
}

// LoadGatewayConfig loads a GatewayConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadGatewayConfig(path string) (*GatewayConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyGatewayConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *GatewayConfig) Validate() error {
	if c.StoreBackend != nil {
		switch *c.StoreBackend {
		case "csv", "sqlite":
		default:
			return fmt.Errorf("store_backend must be csv or sqlite, got %q", *c.StoreBackend)
		}
	}

	if c.CaptureIntervalSeconds != nil && *c.CaptureIntervalSeconds < 1 {
		return fmt.Errorf("capture_interval_seconds must be at least 1, got %d", *c.CaptureIntervalSeconds)
	}

	if c.CacheTTL != nil && *c.CacheTTL != "" {
		if _, err := time.ParseDuration(*c.CacheTTL); err != nil {
			return fmt.Errorf("invalid cache_ttl '%s': %w", *c.CacheTTL, err)
		}
	}

	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	if c.MaxScatterPoints != nil && *c.MaxScatterPoints < 1 {
		return fmt.Errorf("max_scatter_points must be at least 1, got %d", *c.MaxScatterPoints)
	}

	return nil
}

// GetSerialPort returns the serial device path or the default.
func (c *GatewayConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyACM0" // default
	}
	return *c.SerialPort
}

// GetBaudRate returns the serial baud rate or the default.
func (c *GatewayConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200 // default
	}
	return *c.BaudRate
}

// GetCaptureIntervalSeconds returns the device reporting interval or the default.
func (c *GatewayConfig) GetCaptureIntervalSeconds() int {
	if c.CaptureIntervalSeconds == nil {
		return 10 // default
	}
	return *c.CaptureIntervalSeconds
}

// GetStoreBackend returns the storage backend name or the default.
func (c *GatewayConfig) GetStoreBackend() string {
	if c.StoreBackend == nil || *c.StoreBackend == "" {
		return "csv" // default
	}
	return *c.StoreBackend
}

// GetDataFile returns the CSV log path or the default.
func (c *GatewayConfig) GetDataFile() string {
	if c.DataFile == nil || *c.DataFile == "" {
		return "sensor_readings.csv" // default
	}
	return *c.DataFile
}

// GetSQLitePath returns the SQLite database path or the default.
func (c *GatewayConfig) GetSQLitePath() string {
	if c.SQLitePath == nil || *c.SQLitePath == "" {
		return "sensor_readings.db" // default
	}
	return *c.SQLitePath
}

// GetCacheTTL parses and returns the analysis cache TTL as a time.Duration.
func (c *GatewayConfig) GetCacheTTL() time.Duration {
	if c.CacheTTL == nil || *c.CacheTTL == "" {
		return 300 * time.Second // default
	}
	d, err := time.ParseDuration(*c.CacheTTL)
	if err != nil {
		return 300 * time.Second // default on parse error
	}
	return d
}

// GetMaxScatterPoints returns the scatter downsampling bound or the default.
func (c *GatewayConfig) GetMaxScatterPoints() int {
	if c.MaxScatterPoints == nil {
		return 1000 // default
	}
	return *c.MaxScatterPoints
}

// GetListenAddr returns the HTTP listen address or the default.
func (c *GatewayConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8080" // default
	}
	return *c.ListenAddr
}

// InfluxEnabled reports whether a cloud mirror is configured.
func (c *GatewayConfig) InfluxEnabled() bool {
	return c.InfluxURL != nil && *c.InfluxURL != ""
}

// GetInfluxURL returns the Influx server URL, empty when disabled.
func (c *GatewayConfig) GetInfluxURL() string {
	if c.InfluxURL == nil {
		return ""
	}
	return *c.InfluxURL
}

// GetInfluxToken returns the Influx API token.
func (c *GatewayConfig) GetInfluxToken() string {
	if c.InfluxToken == nil {
		return ""
	}
	return *c.InfluxToken
}

// GetInfluxOrg returns the Influx organization name.
func (c *GatewayConfig) GetInfluxOrg() string {
	if c.InfluxOrg == nil {
		return ""
	}
	return *c.InfluxOrg
}

// GetInfluxBucket returns the Influx bucket name.
func (c *GatewayConfig) GetInfluxBucket() string {
	if c.InfluxBucket == nil {
		return ""
	}
	return *c.InfluxBucket
}
