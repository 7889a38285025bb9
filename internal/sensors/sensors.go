// Package sensors defines the closed vocabulary of sensor channels the
// gateway records and analyses. Adding a channel is a single table entry.
package sensors

import "strings"

// Kind identifies one sensor channel.
type Kind string

const (
	Temperature Kind = "temperature"
	Humidity    Kind = "humidity"
	Pressure    Kind = "pressure"
	Light       Kind = "light"
	SoundLevel  Kind = "sound_level"
	Color       Kind = "color"
)

// Info describes one sensor channel: the backing-store column it is stored
// under, a display label, the measurement unit, and whether the channel
// carries numeric values (color is a #RRGGBB string and is excluded from
// numeric analysis).
type Info struct {
	Kind    Kind
	Column  string
	Label   string
	Unit    string
	Numeric bool
}

// table is the single source of truth for the sensor vocabulary. Order is
// the canonical ordering used for correlation labels and CSV columns.
var table = []Info{
	{Temperature, "temperature", "Temperature", "°C", true},
	{Humidity, "humidity", "Humidity", "%", true},
	{Pressure, "pressure", "Pressure", "hPa", true},
	{Light, "light", "Light", "lux", true},
	{SoundLevel, "sound_level", "Sound Level", "dB", true},
	{Color, "color", "Color", "", false},
}

var byKind = func() map[Kind]Info {
	m := make(map[Kind]Info, len(table))
	for _, info := range table {
		m[info.Kind] = info
	}
	return m
}()

// All returns every sensor channel in canonical order.
func All() []Kind {
	kinds := make([]Kind, len(table))
	for i, info := range table {
		kinds[i] = info.Kind
	}
	return kinds
}

// Numeric returns the numeric sensor channels in canonical order.
func Numeric() []Kind {
	var kinds []Kind
	for _, info := range table {
		if info.Numeric {
			kinds = append(kinds, info.Kind)
		}
	}
	return kinds
}

// Lookup returns the Info for a sensor name. The name is matched
// case-insensitively against the Kind identifiers.
func Lookup(name string) (Info, bool) {
	info, ok := byKind[Kind(strings.ToLower(name))]
	return info, ok
}

// IsValid reports whether name identifies a known sensor channel.
func IsValid(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// IsNumeric reports whether name identifies a numeric sensor channel.
func IsNumeric(name string) bool {
	info, ok := Lookup(name)
	return ok && info.Numeric
}

// ValidNamesString returns a comma-separated list of valid sensor names for
// error messages.
func ValidNamesString() string {
	names := make([]string, len(table))
	for i, info := range table {
		names[i] = string(info.Kind)
	}
	return strings.Join(names, ", ")
}
