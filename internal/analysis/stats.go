package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ambient.report/internal/sensors"
)

// Stats is the descriptive summary of one sensor over one window.
//
// The standard deviation is the population deviation (ddof=0); the same
// convention is used by the anomaly detector and the comparator so their
// figures stay mutually consistent. Percentiles use linear interpolation
// between closest ranks.
type Stats struct {
	Sensor       string  `json:"sensor"`
	Range        string  `json:"time_range"`
	Count        int     `json:"count"`
	MissingCount int     `json:"missing_count"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	MinAt        string  `json:"min_at"`
	MaxAt        string  `json:"max_at"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	StdDev       float64 `json:"std_dev"`
	Percentile25 float64 `json:"percentile_25"`
	Percentile75 float64 `json:"percentile_75"`
	Percentile95 float64 `json:"percentile_95"`
	SpanHours    float64 `json:"span_hours"`
}

// GetStatistics computes the descriptive summary for a sensor over a window.
func (e *Engine) GetStatistics(sensor string, tr TimeRange) (*Stats, error) {
	kind, err := numericSensor(sensor)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("stats|%s|%s", kind, tr.cacheKey(e.clock, e.cache.ttl))
	v, err := e.cache.getOrCompute(key, func() (interface{}, error) {
		ds, err := e.load(tr)
		if err != nil {
			return nil, err
		}
		return computeStats(ds, kind, tr, e)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Stats), nil
}

func computeStats(ds *Dataset, kind sensors.Kind, tr TimeRange, e *Engine) (*Stats, error) {
	times, vals := ds.Series(kind)
	if len(vals) == 0 {
		return nil, &EmptyWindowError{Sensor: string(kind), Range: tr.String()}
	}

	s := &Stats{
		Sensor:       string(kind),
		Range:        tr.String(),
		Count:        len(vals),
		MissingCount: ds.Len() - len(vals),
	}

	// First occurrence wins on ties for both extremes.
	minIdx, maxIdx := 0, 0
	for i, v := range vals {
		if v < vals[minIdx] {
			minIdx = i
		}
		if v > vals[maxIdx] {
			maxIdx = i
		}
	}
	s.Min = vals[minIdx]
	s.Max = vals[maxIdx]
	s.MinAt = times[minIdx].UTC().Format(time.RFC3339)
	s.MaxAt = times[maxIdx].UTC().Format(time.RFC3339)

	s.Mean = stat.Mean(vals, nil)
	s.StdDev = stat.PopStdDev(vals, nil)

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	s.Median = percentile(0.50, sorted)
	s.Percentile25 = percentile(0.25, sorted)
	s.Percentile75 = percentile(0.75, sorted)
	s.Percentile95 = percentile(0.95, sorted)

	s.SpanHours = windowSpanHours(ds, tr, e)
	return s, nil
}

// percentile interpolates linearly between the closest ranks of the sorted
// sample: idx = p*(n-1), the convention dataframes and spreadsheets use.
// gonum's Quantile estimators weight ranks differently and disagree on small
// samples, so the median of [38 44 45] must be 44, not 41.
func percentile(p float64, sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := p * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (idx-float64(lo))*(sorted[hi]-sorted[lo])
}

// windowSpanHours is the wall-clock span of the window in hours. Unbounded
// sides fall back to the data extremes.
func windowSpanHours(ds *Dataset, tr TimeRange, e *Engine) float64 {
	start, end, err := tr.Resolve(e.clock)
	if err != nil {
		return 0
	}
	if start == nil || end == nil {
		if ds.Len() == 0 {
			return 0
		}
		if start == nil {
			first := ds.Times()[0]
			start = &first
		}
		if end == nil {
			last := ds.Times()[ds.Len()-1]
			end = &last
		}
	}
	span := end.Sub(*start).Hours()
	if span < 0 {
		return 0
	}
	return span
}
