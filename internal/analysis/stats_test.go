package analysis

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ambient.report/internal/sensorlog"
)

func TestGetStatisticsKnownValues(t *testing.T) {
	// humidity 45, 44, 38 over three hours
	readings := []sensorlog.Reading{
		reading(baseTime, f(72.0), f(45), f(1013), f(500), f(100)),
		reading(baseTime.Add(time.Hour), f(74.0), f(44), f(1012), f(520), f(110)),
		reading(baseTime.Add(2*time.Hour), f(85.3), f(38), f(1013), f(3800), f(95)),
	}
	engine, _, _ := newTestEngine(readings)

	stats, err := engine.GetStatistics("humidity", RangeToken("all"))
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 0, stats.MissingCount)
	assert.Equal(t, 38.0, stats.Min)
	assert.Equal(t, 45.0, stats.Max)
	assert.InDelta(t, 42.3333, stats.Mean, 1e-3)
	assert.Equal(t, 44.0, stats.Median)
	assert.Equal(t, baseTime.Add(2*time.Hour).Format(time.RFC3339), stats.MinAt)
	assert.Equal(t, baseTime.Format(time.RFC3339), stats.MaxAt)
	assert.InDelta(t, 2.0, stats.SpanHours, 1e-9)
}

func TestPercentileClosestRanks(t *testing.T) {
	// idx = p*(n-1) over the sorted sample, interpolating between ranks.
	sorted := []float64{38, 44, 45}
	assert.InDelta(t, 44.0, percentile(0.50, sorted), 1e-12)
	assert.InDelta(t, 41.0, percentile(0.25, sorted), 1e-12)
	assert.InDelta(t, 44.5, percentile(0.75, sorted), 1e-12)
	assert.InDelta(t, 44.9, percentile(0.95, sorted), 1e-12)

	even := []float64{1, 2, 3, 4}
	assert.InDelta(t, 2.5, percentile(0.50, even), 1e-12)
	assert.InDelta(t, 1.75, percentile(0.25, even), 1e-12)

	assert.Equal(t, 7.0, percentile(0.50, []float64{7}))
	assert.True(t, math.IsNaN(percentile(0.50, nil)))
}

func TestGetStatisticsPopulationStdDev(t *testing.T) {
	// values 2, 4, 4, 4, 5, 5, 7, 9 have population stddev exactly 2
	vals := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	var readings []sensorlog.Reading
	for i, v := range vals {
		readings = append(readings, reading(baseTime.Add(time.Duration(i)*time.Minute), f(v), nil, nil, nil, nil))
	}
	engine, _, _ := newTestEngine(readings)

	stats, err := engine.GetStatistics("temperature", RangeToken("all"))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, stats.StdDev, 1e-12)
}

func TestPercentileOrderingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var readings []sensorlog.Reading
	for i := 0; i < 500; i++ {
		readings = append(readings, reading(
			baseTime.Add(time.Duration(i)*time.Minute),
			f(rng.NormFloat64()*10+20), nil, nil, nil, nil))
	}
	engine, _, _ := newTestEngine(readings)

	s, err := engine.GetStatistics("temperature", RangeToken("all"))
	require.NoError(t, err)

	assert.LessOrEqual(t, s.Min, s.Percentile25)
	assert.LessOrEqual(t, s.Percentile25, s.Median)
	assert.LessOrEqual(t, s.Median, s.Percentile75)
	assert.LessOrEqual(t, s.Percentile75, s.Percentile95)
	assert.LessOrEqual(t, s.Percentile95, s.Max)
}

func TestGetStatisticsUnknownSensor(t *testing.T) {
	engine, _, _ := newTestEngine([]sensorlog.Reading{fullReading(baseTime, 10)})

	_, err := engine.GetStatistics("radon", RangeToken("all"))
	var unknown *UnknownSensorError
	require.ErrorAs(t, err, &unknown)

	// color is recognized but not numeric
	_, err = engine.GetStatistics("color", RangeToken("all"))
	require.ErrorAs(t, err, &unknown)
}

func TestGetStatisticsEmptyWindow(t *testing.T) {
	engine, _, _ := newTestEngine([]sensorlog.Reading{fullReading(baseTime, 10)})

	future := baseTime.Add(1000 * time.Hour)
	_, err := engine.GetStatistics("temperature", RangeBetween(future, future.Add(time.Hour)))
	var empty *EmptyWindowError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "temperature", empty.Sensor)
}

func TestGetStatisticsCountsMissing(t *testing.T) {
	readings := []sensorlog.Reading{
		reading(baseTime, f(20), f(45), nil, nil, nil),
		reading(baseTime.Add(time.Hour), nil, f(44), nil, nil, nil),
		reading(baseTime.Add(2*time.Hour), f(22), nil, nil, nil, nil),
	}
	engine, _, _ := newTestEngine(readings)

	stats, err := engine.GetStatistics("temperature", RangeToken("all"))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1, stats.MissingCount)
}
