package analysis

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ambient.report/internal/sensors"
)

// scatterSampleSeed is the fixed seed for scatter downsampling. It is part
// of the API contract: repeated calls over unchanged data return identical
// point sets.
const scatterSampleSeed = 42

// CorrelationMatrix is the pairwise Pearson correlation of the numeric
// sensors over a window. Each cell uses only rows where both participating
// sensors are present (pairwise-complete); a cell with fewer than two such
// rows, or with a zero-variance side, is null. The matrix is symmetric and
// the diagonal is exactly 1.0 by construction.
type CorrelationMatrix struct {
	Range  string       `json:"time_range"`
	Labels []string     `json:"labels"`
	Matrix [][]*float64 `json:"matrix"`
}

// ComputeCorrelationMatrix computes the sensor correlation matrix for a
// window. Color is excluded as non-numeric.
func (e *Engine) ComputeCorrelationMatrix(tr TimeRange) (*CorrelationMatrix, error) {
	key := "corr|" + tr.cacheKey(e.clock, e.cache.ttl)
	v, err := e.cache.getOrCompute(key, func() (interface{}, error) {
		ds, err := e.load(tr)
		if err != nil {
			return nil, err
		}
		if ds.Len() == 0 {
			return nil, &EmptyWindowError{Range: tr.String()}
		}
		return correlationMatrix(ds, tr), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CorrelationMatrix), nil
}

func correlationMatrix(ds *Dataset, tr TimeRange) *CorrelationMatrix {
	kinds := sensors.Numeric()
	result := &CorrelationMatrix{
		Range:  tr.String(),
		Labels: make([]string, len(kinds)),
		Matrix: make([][]*float64, len(kinds)),
	}
	for i, kind := range kinds {
		result.Labels[i] = string(kind)
		result.Matrix[i] = make([]*float64, len(kinds))
	}

	one := 1.0
	for i := range kinds {
		result.Matrix[i][i] = &one
		for j := i + 1; j < len(kinds); j++ {
			r := pairwiseCorrelation(ds.Column(kinds[i]), ds.Column(kinds[j]))
			result.Matrix[i][j] = r
			result.Matrix[j][i] = r
		}
	}
	return result
}

// pairwiseCorrelation computes Pearson correlation over the rows where both
// columns are present. Returns nil when fewer than two complete pairs exist
// or either side has no variance.
func pairwiseCorrelation(xs, ys []float64) *float64 {
	var px, py []float64
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		px = append(px, xs[i])
		py = append(py, ys[i])
	}
	if len(px) < 2 {
		return nil
	}
	r := stat.Correlation(px, py, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return &r
}

// ScatterPoint is one (x, y) sample for a sensor pair.
type ScatterPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScatterData is a bounded sample of complete (x, y) pairs for two sensors.
type ScatterData struct {
	SensorX string         `json:"sensor_x"`
	SensorY string         `json:"sensor_y"`
	Range   string         `json:"time_range"`
	Count   int            `json:"count"`
	Points  []ScatterPoint `json:"points"`
}

// GetScatterData extracts (x, y) pairs for two sensors, dropping rows where
// either is missing. When more than maxPoints pairs remain, a fixed-seed
// random sample keeps the result reproducible while staying representative;
// sampled points preserve time order.
func (e *Engine) GetScatterData(sensorX, sensorY string, tr TimeRange, maxPoints int) (*ScatterData, error) {
	kx, err := numericSensor(sensorX)
	if err != nil {
		return nil, err
	}
	ky, err := numericSensor(sensorY)
	if err != nil {
		return nil, err
	}
	if maxPoints <= 0 {
		maxPoints = 1000
	}

	key := fmt.Sprintf("scatter|%s|%s|%d|%s", kx, ky, maxPoints, tr.cacheKey(e.clock, e.cache.ttl))
	v, err := e.cache.getOrCompute(key, func() (interface{}, error) {
		ds, err := e.load(tr)
		if err != nil {
			return nil, err
		}

		xs := ds.Column(kx)
		ys := ds.Column(ky)
		var points []ScatterPoint
		for i := range xs {
			if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
				continue
			}
			points = append(points, ScatterPoint{X: xs[i], Y: ys[i]})
		}
		if len(points) == 0 {
			return nil, &EmptyWindowError{Sensor: string(kx) + "/" + string(ky), Range: tr.String()}
		}

		if len(points) > maxPoints {
			points = samplePoints(points, maxPoints)
		}
		return &ScatterData{
			SensorX: string(kx),
			SensorY: string(ky),
			Range:   tr.String(),
			Count:   len(points),
			Points:  points,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ScatterData), nil
}

// samplePoints picks n points with a deterministic partial Fisher-Yates
// shuffle seeded with scatterSampleSeed, then restores time order.
func samplePoints(points []ScatterPoint, n int) []ScatterPoint {
	rng := rand.New(rand.NewSource(scatterSampleSeed))
	indices := make([]int, len(points))
	for i := range indices {
		indices[i] = i
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(indices)-i)
		indices[i], indices[j] = indices[j], indices[i]
	}
	picked := indices[:n]
	sort.Ints(picked)

	sampled := make([]ScatterPoint, n)
	for i, idx := range picked {
		sampled[i] = points[idx]
	}
	return sampled
}
