// Package analysis implements the time-windowed analysis engine over the
// accumulated sensor history: descriptive statistics, correlation, anomaly
// detection, pattern aggregation, period comparison, and rule-based insight
// generation. All results are plain JSON-serializable structures; all
// failures are typed errors from errors.go.
package analysis

import (
	"time"

	"github.com/banshee-data/ambient.report/internal/sensorlog"
	"github.com/banshee-data/ambient.report/internal/sensors"
	"github.com/banshee-data/ambient.report/internal/timeutil"
)

// Engine answers bounded analytical queries over the reading log. One engine
// instance owns one cache; queries are safe for concurrent use but the
// design assumption is one logical caller at a time per instance.
type Engine struct {
	store sensorlog.Store
	clock timeutil.Clock
	cache *cache
}

// NewEngine creates an engine over the given store with the real clock and
// default cache TTL.
func NewEngine(store sensorlog.Store) *Engine {
	return NewEngineWithClock(store, timeutil.RealClock{}, defaultCacheTTL)
}

// NewEngineWithClock creates an engine with an injected clock and cache TTL.
// Tests use a MockClock to control relative-range resolution and cache aging.
func NewEngineWithClock(store sensorlog.Store, clock timeutil.Clock, cacheTTL time.Duration) *Engine {
	return &Engine{
		store: store,
		clock: clock,
		cache: newCache(clock, cacheTTL),
	}
}

// InvalidateCache drops all cached results. The ingest loop calls this on
// every accepted reading so queries always see the newest data.
func (e *Engine) InvalidateCache() {
	e.cache.purge()
}

// numericSensor validates that name identifies a numeric sensor channel.
func numericSensor(name string) (sensors.Kind, error) {
	info, ok := sensors.Lookup(name)
	if !ok {
		return "", &UnknownSensorError{Sensor: name, Reason: "valid sensors: " + sensors.ValidNamesString()}
	}
	if !info.Numeric {
		return "", &UnknownSensorError{Sensor: name, Reason: "sensor is not numeric"}
	}
	return info.Kind, nil
}

// DataSummary describes the whole accumulated history: row count, per-sensor
// non-missing counts, and the covered date range.
type DataSummary struct {
	TotalRecords int            `json:"total_records"`
	Start        string         `json:"start,omitempty"`
	End          string         `json:"end,omitempty"`
	Days         int            `json:"days"`
	Sensors      map[string]int `json:"sensors"`
}

// GetDataSummary reports the overall shape of the available data.
func (e *Engine) GetDataSummary() (*DataSummary, error) {
	ds, err := e.load(RangeToken("all"))
	if err != nil {
		return nil, err
	}

	summary := &DataSummary{
		TotalRecords: ds.Len(),
		Sensors:      make(map[string]int, len(sensors.All())),
	}
	for _, kind := range sensors.Numeric() {
		summary.Sensors[string(kind)] = ds.Len() - ds.Missing(kind)
	}
	colorCount := 0
	for _, c := range ds.Colors() {
		if c != "" {
			colorCount++
		}
	}
	summary.Sensors[string(sensors.Color)] = colorCount

	if ds.Len() > 0 {
		first := ds.Times()[0]
		last := ds.Times()[ds.Len()-1]
		summary.Start = first.UTC().Format(time.RFC3339)
		summary.End = last.UTC().Format(time.RFC3339)
		summary.Days = int(last.Sub(first).Hours() / 24)
	}
	return summary, nil
}
