package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ambient.report/internal/sensors"
)

const (
	// anomalyMinSamples is the smallest window an anomaly scan will score.
	// Sensors with fewer non-missing values are silently skipped.
	anomalyMinSamples = 3

	// Severity bands are fixed, not configurable per call.
	severitySevereZ   = 3.0
	severityModerateZ = 2.5

	// contextNormalZ classifies other sensors' readings around an anomaly.
	contextNormalZ = 2.0
)

// Anomaly is one flagged outlier. Expected is the mean of the rest of the
// window (the point under test excluded), and ExpectedLow/High bracket it at
// two standard deviations.
type Anomaly struct {
	Timestamp    string  `json:"timestamp"`
	Sensor       string  `json:"sensor"`
	Value        float64 `json:"value"`
	Expected     float64 `json:"expected"`
	ExpectedLow  float64 `json:"expected_low"`
	ExpectedHigh float64 `json:"expected_high"`
	ZScore       float64 `json:"z_score"`
	Severity     string  `json:"severity"`
}

// AnomalyScan is the result of one outlier scan, newest anomalies first.
type AnomalyScan struct {
	Sensor     string    `json:"sensor"`
	Threshold  float64   `json:"threshold"`
	Range      string    `json:"time_range"`
	TotalCount int       `json:"total_count"`
	Anomalies  []Anomaly `json:"anomalies"`
}

// DetectAnomalies scans one sensor (or "all" numeric sensors) for outliers
// whose |z| meets the threshold. Each point is scored against the mean and
// population deviation of the other points in the window, computed from
// one pass of running sums; this keeps a lone extreme value in a small
// window detectable instead of letting it drag the baseline toward itself.
func (e *Engine) DetectAnomalies(sensor string, threshold float64, tr TimeRange) (*AnomalyScan, error) {
	if threshold <= 0 {
		threshold = severityModerateZ
	}

	var kinds []sensors.Kind
	if sensor == "all" || sensor == "" {
		kinds = sensors.Numeric()
		sensor = "all"
	} else {
		kind, err := numericSensor(sensor)
		if err != nil {
			return nil, err
		}
		kinds = []sensors.Kind{kind}
		sensor = string(kind)
	}

	key := fmt.Sprintf("anomalies|%s|%g|%s", sensor, threshold, tr.cacheKey(e.clock, e.cache.ttl))
	v, err := e.cache.getOrCompute(key, func() (interface{}, error) {
		ds, err := e.load(tr)
		if err != nil {
			return nil, err
		}

		var anomalies []Anomaly
		for _, kind := range kinds {
			anomalies = append(anomalies, scanSensor(ds, kind, threshold)...)
		}
		sort.SliceStable(anomalies, func(i, j int) bool {
			return anomalies[i].Timestamp > anomalies[j].Timestamp
		})
		return &AnomalyScan{
			Sensor:     sensor,
			Threshold:  threshold,
			Range:      tr.String(),
			TotalCount: len(anomalies),
			Anomalies:  anomalies,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AnomalyScan), nil
}

func scanSensor(ds *Dataset, kind sensors.Kind, threshold float64) []Anomaly {
	times, vals := ds.Series(kind)
	n := len(vals)
	if n < anomalyMinSamples {
		// Statistically meaningless, not an error.
		return nil
	}

	var s1, s2 float64
	for _, v := range vals {
		s1 += v
		s2 += v * v
	}

	var anomalies []Anomaly
	rest := float64(n - 1)
	for i, v := range vals {
		mean := (s1 - v) / rest
		variance := (s2-v*v)/rest - mean*mean
		if variance < 0 {
			variance = 0
		}
		sigma := math.Sqrt(variance)
		if sigma == 0 {
			// The rest of the window has no variance; no finite z exists.
			continue
		}
		z := (v - mean) / sigma
		if math.Abs(z) < threshold {
			continue
		}
		anomalies = append(anomalies, Anomaly{
			Timestamp:    times[i].UTC().Format(time.RFC3339),
			Sensor:       string(kind),
			Value:        v,
			Expected:     mean,
			ExpectedLow:  mean - 2*sigma,
			ExpectedHigh: mean + 2*sigma,
			ZScore:       z,
			Severity:     severityFor(z),
		})
	}
	return anomalies
}

func severityFor(z float64) string {
	switch abs := math.Abs(z); {
	case abs >= severitySevereZ:
		return "severe"
	case abs >= severityModerateZ:
		return "moderate"
	default:
		return "minor"
	}
}

// ContextPoint is one raw observation within an anomaly's surrounding
// sub-window.
type ContextPoint struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// SensorSnapshot classifies another sensor's reading at the moment of an
// anomaly relative to that sensor's own full-history distribution.
type SensorSnapshot struct {
	Sensor string   `json:"sensor"`
	Value  *float64 `json:"value"`
	ZScore *float64 `json:"z_score"`
	Status string   `json:"status"` // normal, unusual, or missing
}

// AnomalyContext is the cross-sensor explanation for one anomaly: the raw
// sub-series around it, the sensor's global distribution, and what every
// other sensor looked like at the nearest timestamp.
type AnomalyContext struct {
	Sensor       string           `json:"sensor"`
	Timestamp    string           `json:"timestamp"`
	Series       []ContextPoint   `json:"series"`
	GlobalMean   float64          `json:"global_mean"`
	GlobalStdDev float64          `json:"global_std_dev"`
	OtherSensors []SensorSnapshot `json:"other_sensors"`
}

// GetAnomalyContext returns the surrounding sub-window for an anomaly at ts
// plus a normal/unusual classification of every other sensor's reading at
// the nearest timestamp.
func (e *Engine) GetAnomalyContext(sensor string, ts time.Time, hoursBefore, hoursAfter int) (*AnomalyContext, error) {
	kind, err := numericSensor(sensor)
	if err != nil {
		return nil, err
	}
	if hoursBefore <= 0 {
		hoursBefore = 2
	}
	if hoursAfter <= 0 {
		hoursAfter = 2
	}

	all, err := e.load(RangeToken("all"))
	if err != nil {
		return nil, err
	}
	globalVals := all.Values(kind)
	if len(globalVals) == 0 {
		return nil, &EmptyWindowError{Sensor: string(kind), Range: "all"}
	}

	ctx := &AnomalyContext{
		Sensor:       string(kind),
		Timestamp:    ts.UTC().Format(time.RFC3339),
		GlobalMean:   stat.Mean(globalVals, nil),
		GlobalStdDev: stat.PopStdDev(globalVals, nil),
	}

	start := ts.Add(-time.Duration(hoursBefore) * time.Hour)
	end := ts.Add(time.Duration(hoursAfter) * time.Hour)
	sub, err := e.load(RangeBetween(start, end))
	if err != nil {
		return nil, err
	}
	subTimes, subVals := sub.Series(kind)
	for i := range subVals {
		ctx.Series = append(ctx.Series, ContextPoint{
			Timestamp: subTimes[i].UTC().Format(time.RFC3339),
			Value:     subVals[i],
		})
	}

	nearest := nearestRow(all.Times(), ts)
	if nearest < 0 {
		return ctx, nil
	}
	for _, other := range sensors.Numeric() {
		if other == kind {
			continue
		}
		snapshot := SensorSnapshot{Sensor: string(other), Status: "missing"}
		v := all.Column(other)[nearest]
		if !math.IsNaN(v) {
			value := v
			snapshot.Value = &value
			vals := all.Values(other)
			mean := stat.Mean(vals, nil)
			sigma := stat.PopStdDev(vals, nil)
			if sigma > 0 {
				z := (v - mean) / sigma
				snapshot.ZScore = &z
				if math.Abs(z) < contextNormalZ {
					snapshot.Status = "normal"
				} else {
					snapshot.Status = "unusual"
				}
			} else {
				snapshot.Status = "normal"
			}
		}
		ctx.OtherSensors = append(ctx.OtherSensors, snapshot)
	}
	return ctx, nil
}

// nearestRow returns the index of the timestamp closest to ts, or -1 for an
// empty column. Times are sorted ascending.
func nearestRow(times []time.Time, ts time.Time) int {
	if len(times) == 0 {
		return -1
	}
	i := sort.Search(len(times), func(i int) bool { return !times[i].Before(ts) })
	if i == 0 {
		return 0
	}
	if i == len(times) {
		return len(times) - 1
	}
	if times[i].Sub(ts) < ts.Sub(times[i-1]) {
		return i
	}
	return i - 1
}
