// Package sensorlog implements the append-only store of environmental sensor
// readings. Two backends are provided behind the same interface: a flat CSV
// file and a SQLite database.
package sensorlog

import (
	"time"

	"github.com/banshee-data/ambient.report/internal/sensors"
)

// Reading is one timestamped observation from the device. Numeric fields are
// pointers so a sensor that failed to report is stored as absence, not zero.
// Duplicate timestamps are permitted.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
	Pressure    *float64  `json:"pressure"`
	Light       *float64  `json:"light"`
	SoundLevel  *float64  `json:"sound_level"`
	Color       *string   `json:"color"`
}

// Value returns the numeric value for the named sensor channel and whether it
// is present. Color always reports absent; use the Color field directly.
func (r *Reading) Value(kind sensors.Kind) (float64, bool) {
	var p *float64
	switch kind {
	case sensors.Temperature:
		p = r.Temperature
	case sensors.Humidity:
		p = r.Humidity
	case sensors.Pressure:
		p = r.Pressure
	case sensors.Light:
		p = r.Light
	case sensors.SoundLevel:
		p = r.SoundLevel
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// SetValue stores a numeric value for the named sensor channel.
func (r *Reading) SetValue(kind sensors.Kind, v float64) {
	switch kind {
	case sensors.Temperature:
		r.Temperature = &v
	case sensors.Humidity:
		r.Humidity = &v
	case sensors.Pressure:
		r.Pressure = &v
	case sensors.Light:
		r.Light = &v
	case sensors.SoundLevel:
		r.SoundLevel = &v
	}
}

// Store is the append-only reading log. Appends come from the serial ingest
// loop; reads come from the analysis engine's loader. Implementations must
// keep ReadAll consistent under concurrent Append.
type Store interface {
	// Append writes one reading to the end of the log.
	Append(r Reading) error

	// ReadAll returns every reading in the log in append order.
	ReadAll() ([]Reading, error)

	// Close releases the underlying file or database handle.
	Close() error
}
