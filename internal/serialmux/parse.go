package serialmux

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/ambient.report/internal/sensorlog"
)

const (
	LineTypeReading = "reading"
	LineTypeAck     = "command_ok"
	LineTypeError   = "command_err"
	LineTypeInfo    = "info"
)

// ClassifyLine inspects one line from the device and returns a simple type
// token. The firmware emits JSON readings, COMMAND OK/ERR acknowledgements,
// and free-form status prints at boot.
func ClassifyLine(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "COMMAND OK"):
		return LineTypeAck
	case strings.HasPrefix(trimmed, "COMMAND ERR"):
		return LineTypeError
	case strings.HasPrefix(trimmed, "{"):
		return LineTypeReading
	default:
		return LineTypeInfo
	}
}

// deviceReading mirrors the JSON object the sensor firmware prints once per
// capture interval. Every field is optional: a sensor that failed to read is
// simply absent from the line, and timestamp_iso is null until the device RTC
// has been set.
type deviceReading struct {
	TimestampISO *string  `json:"timestamp_iso"`
	Monotonic    *float64 `json:"timestamp_monotonic"`
	Temperature  *float64 `json:"temperature_sht"`
	Humidity     *float64 `json:"humidity"`
	Pressure     *float64 `json:"pressure"`
	Light        *float64 `json:"light"`
	SoundLevel   *float64 `json:"sound_level"`
	ColorHex     *string  `json:"color_hex"`
}

// ParseReading parses one JSON line from the device into a Reading. When the
// device RTC is unset (timestamp_iso null or absent) the reading is stamped
// with fallback, the gateway's own receive time.
func ParseReading(line string, fallback time.Time) (sensorlog.Reading, error) {
	var d deviceReading
	if err := json.Unmarshal([]byte(line), &d); err != nil {
		return sensorlog.Reading{}, fmt.Errorf("failed to parse sensor line: %w", err)
	}

	r := sensorlog.Reading{
		Timestamp:   fallback.UTC(),
		Temperature: d.Temperature,
		Humidity:    d.Humidity,
		Pressure:    d.Pressure,
		Light:       d.Light,
		SoundLevel:  d.SoundLevel,
		Color:       d.ColorHex,
	}
	if d.TimestampISO != nil {
		if ts, err := time.Parse(time.RFC3339, *d.TimestampISO); err == nil {
			r.Timestamp = ts.UTC()
		}
	}

	if r.Temperature == nil && r.Humidity == nil && r.Pressure == nil &&
		r.Light == nil && r.SoundLevel == nil && r.Color == nil {
		return sensorlog.Reading{}, fmt.Errorf("sensor line carries no channels: %s", line)
	}
	return r, nil
}

// deviceCommand is the JSON command envelope the firmware accepts.
type deviceCommand struct {
	Command string      `json:"command"`
	Value   interface{} `json:"value,omitempty"`
}

// IntervalCommand encodes a set_interval command for the given capture
// interval in seconds.
func IntervalCommand(seconds int) (string, error) {
	if seconds < 1 {
		return "", fmt.Errorf("invalid capture interval %d: must be at least 1 second", seconds)
	}
	b, err := json.Marshal(deviceCommand{Command: "set_interval", Value: seconds})
	if err != nil {
		return "", fmt.Errorf("failed to encode command: %w", err)
	}
	return string(b), nil
}
