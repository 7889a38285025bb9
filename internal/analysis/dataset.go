package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/banshee-data/ambient.report/internal/sensorlog"
	"github.com/banshee-data/ambient.report/internal/sensors"
)

// Dataset is an immutable columnar view of readings within one resolved
// window: one timestamp column plus one float64 column per numeric sensor,
// with NaN marking a missing cell, and a string column for color. Rows are
// ordered by timestamp ascending; duplicate timestamps keep their append
// order (the sort is stable).
type Dataset struct {
	times  []time.Time
	values map[sensors.Kind][]float64
	colors []string
}

// Len returns the number of rows in the window.
func (d *Dataset) Len() int { return len(d.times) }

// Times returns the timestamp column.
func (d *Dataset) Times() []time.Time { return d.times }

// Column returns the raw value column for a numeric sensor, NaN for missing
// cells. The slice is owned by the Dataset and must not be modified.
func (d *Dataset) Column(kind sensors.Kind) []float64 { return d.values[kind] }

// Colors returns the color column, "" for missing cells.
func (d *Dataset) Colors() []string { return d.colors }

// Series returns the non-missing values of a sensor together with their
// timestamps, preserving time order.
func (d *Dataset) Series(kind sensors.Kind) (times []time.Time, vals []float64) {
	col := d.values[kind]
	for i, v := range col {
		if math.IsNaN(v) {
			continue
		}
		times = append(times, d.times[i])
		vals = append(vals, v)
	}
	return times, vals
}

// Values returns the non-missing values of a sensor in time order.
func (d *Dataset) Values(kind sensors.Kind) []float64 {
	_, vals := d.Series(kind)
	return vals
}

// Missing returns the number of rows where the sensor has no value.
func (d *Dataset) Missing(kind sensors.Kind) int {
	missing := 0
	for _, v := range d.values[kind] {
		if math.IsNaN(v) {
			missing++
		}
	}
	return missing
}

// newDataset builds a Dataset from readings already filtered to the window.
// Readings are stably sorted by timestamp; the input slice is not retained.
func newDataset(readings []sensorlog.Reading) *Dataset {
	rows := make([]sensorlog.Reading, len(readings))
	copy(rows, readings)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})

	d := &Dataset{
		times:  make([]time.Time, len(rows)),
		values: make(map[sensors.Kind][]float64, len(sensors.Numeric())),
		colors: make([]string, len(rows)),
	}
	for _, kind := range sensors.Numeric() {
		d.values[kind] = make([]float64, len(rows))
	}

	for i, r := range rows {
		d.times[i] = r.Timestamp
		for _, kind := range sensors.Numeric() {
			if v, ok := r.Value(kind); ok {
				d.values[kind][i] = v
			} else {
				d.values[kind][i] = math.NaN()
			}
		}
		if r.Color != nil {
			d.colors[i] = *r.Color
		}
	}
	return d
}

// load reads the backing store, applies the resolved window filter, and
// returns a fresh Dataset. A window that matches zero rows yields an empty
// Dataset, not an error: callers must be able to distinguish "no data in
// window" from "no source at all" (DataUnavailableError).
func (e *Engine) load(tr TimeRange) (*Dataset, error) {
	start, end, err := tr.Resolve(e.clock)
	if err != nil {
		return nil, err
	}

	key := "load|" + tr.cacheKey(e.clock, e.cache.ttl)
	v, err := e.cache.getOrCompute(key, func() (interface{}, error) {
		readings, err := e.store.ReadAll()
		if err != nil {
			return nil, &DataUnavailableError{Err: err}
		}

		filtered := readings[:0:0]
		for _, r := range readings {
			if start != nil && r.Timestamp.Before(*start) {
				continue
			}
			if end != nil && !r.Timestamp.Before(*end) {
				continue
			}
			filtered = append(filtered, r)
		}
		return newDataset(filtered), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}
