package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmptyGatewayConfigDefaults(t *testing.T) {
	cfg := EmptyGatewayConfig()

	if cfg.GetSerialPort() != "/dev/ttyACM0" {
		t.Errorf("GetSerialPort() = %q, want /dev/ttyACM0", cfg.GetSerialPort())
	}
	if cfg.GetBaudRate() != 115200 {
		t.Errorf("GetBaudRate() = %d, want 115200", cfg.GetBaudRate())
	}
	if cfg.GetCaptureIntervalSeconds() != 10 {
		t.Errorf("GetCaptureIntervalSeconds() = %d, want 10", cfg.GetCaptureIntervalSeconds())
	}
	if cfg.GetStoreBackend() != "csv" {
		t.Errorf("GetStoreBackend() = %q, want csv", cfg.GetStoreBackend())
	}
	if cfg.GetDataFile() != "sensor_readings.csv" {
		t.Errorf("GetDataFile() = %q, want sensor_readings.csv", cfg.GetDataFile())
	}
	if cfg.GetSQLitePath() != "sensor_readings.db" {
		t.Errorf("GetSQLitePath() = %q, want sensor_readings.db", cfg.GetSQLitePath())
	}
	if cfg.GetCacheTTL() != 300*time.Second {
		t.Errorf("GetCacheTTL() = %v, want 5m0s", cfg.GetCacheTTL())
	}
	if cfg.GetMaxScatterPoints() != 1000 {
		t.Errorf("GetMaxScatterPoints() = %d, want 1000", cfg.GetMaxScatterPoints())
	}
	if cfg.GetListenAddr() != ":8080" {
		t.Errorf("GetListenAddr() = %q, want :8080", cfg.GetListenAddr())
	}
	if cfg.InfluxEnabled() {
		t.Error("InfluxEnabled() should be false for empty config")
	}
}

func TestLoadGatewayConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "gateway_config.json")

	testJSON := `{
  "serial_port": "/dev/ttyUSB1",
  "baud_rate": 9600,
  "capture_interval_seconds": 30,
  "store_backend": "sqlite",
  "sqlite_path": "/var/lib/gateway/readings.db",
  "cache_ttl": "120s",
  "max_scatter_points": 500,
  "listen_addr": ":9090",
  "influx_url": "http://influx.example.net:8086",
  "influx_token": "secret",
  "influx_org": "home",
  "influx_bucket": "ambient"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadGatewayConfig(configPath)
	if err != nil {
		t.Fatalf("LoadGatewayConfig failed: %v", err)
	}

	if cfg.GetSerialPort() != "/dev/ttyUSB1" {
		t.Errorf("GetSerialPort() = %q, want /dev/ttyUSB1", cfg.GetSerialPort())
	}
	if cfg.GetBaudRate() != 9600 {
		t.Errorf("GetBaudRate() = %d, want 9600", cfg.GetBaudRate())
	}
	if cfg.GetCaptureIntervalSeconds() != 30 {
		t.Errorf("GetCaptureIntervalSeconds() = %d, want 30", cfg.GetCaptureIntervalSeconds())
	}
	if cfg.GetStoreBackend() != "sqlite" {
		t.Errorf("GetStoreBackend() = %q, want sqlite", cfg.GetStoreBackend())
	}
	if cfg.GetSQLitePath() != "/var/lib/gateway/readings.db" {
		t.Errorf("GetSQLitePath() = %q", cfg.GetSQLitePath())
	}
	if cfg.GetCacheTTL() != 2*time.Minute {
		t.Errorf("GetCacheTTL() = %v, want 2m0s", cfg.GetCacheTTL())
	}
	if cfg.GetMaxScatterPoints() != 500 {
		t.Errorf("GetMaxScatterPoints() = %d, want 500", cfg.GetMaxScatterPoints())
	}
	if cfg.GetListenAddr() != ":9090" {
		t.Errorf("GetListenAddr() = %q, want :9090", cfg.GetListenAddr())
	}
	if !cfg.InfluxEnabled() {
		t.Error("InfluxEnabled() should be true when influx_url is set")
	}
	if cfg.GetInfluxOrg() != "home" || cfg.GetInfluxBucket() != "ambient" {
		t.Errorf("Influx org/bucket = %q/%q", cfg.GetInfluxOrg(), cfg.GetInfluxBucket())
	}

	// The data file default is untouched by a partial config
	if cfg.GetDataFile() != "sensor_readings.csv" {
		t.Errorf("GetDataFile() = %q, want default", cfg.GetDataFile())
	}
}

func TestLoadGatewayConfig_PartialFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	if err := os.WriteFile(configPath, []byte(`{"capture_interval_seconds": 60}`), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadGatewayConfig(configPath)
	if err != nil {
		t.Fatalf("LoadGatewayConfig failed: %v", err)
	}

	if cfg.GetCaptureIntervalSeconds() != 60 {
		t.Errorf("GetCaptureIntervalSeconds() = %d, want 60", cfg.GetCaptureIntervalSeconds())
	}
	// Everything else falls back to defaults
	if cfg.GetSerialPort() != "/dev/ttyACM0" {
		t.Errorf("GetSerialPort() = %q, want default", cfg.GetSerialPort())
	}
	if cfg.GetStoreBackend() != "csv" {
		t.Errorf("GetStoreBackend() = %q, want default", cfg.GetStoreBackend())
	}
}

func TestLoadGatewayConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadGatewayConfig(filepath.Join(tmpDir, "nope.json"))
		if err == nil {
			t.Error("Expected error for missing file")
		}
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadGatewayConfig(path)
		if err == nil {
			t.Error("Expected error for non-JSON extension")
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		path := filepath.Join(tmpDir, "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadGatewayConfig(path)
		if err == nil {
			t.Error("Expected error for malformed JSON")
		}
	})
}

func TestGatewayConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     GatewayConfig
		wantErr bool
	}{
		{"empty config valid", GatewayConfig{}, false},
		{"csv backend", GatewayConfig{StoreBackend: ptrString("csv")}, false},
		{"sqlite backend", GatewayConfig{StoreBackend: ptrString("sqlite")}, false},
		{"unknown backend", GatewayConfig{StoreBackend: ptrString("postgres")}, true},
		{"zero capture interval", GatewayConfig{CaptureIntervalSeconds: ptrInt(0)}, true},
		{"negative baud rate", GatewayConfig{BaudRate: ptrInt(-1)}, true},
		{"bad cache ttl", GatewayConfig{CacheTTL: ptrString("five minutes")}, true},
		{"good cache ttl", GatewayConfig{CacheTTL: ptrString("45s")}, false},
		{"zero scatter points", GatewayConfig{MaxScatterPoints: ptrInt(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestGetCacheTTL_ParseErrorFallsBack(t *testing.T) {
	cfg := GatewayConfig{CacheTTL: ptrString("not-a-duration")}
	if cfg.GetCacheTTL() != 300*time.Second {
		t.Errorf("GetCacheTTL() = %v, want 5m0s fallback", cfg.GetCacheTTL())
	}
}
