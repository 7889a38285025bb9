package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ambient.report/internal/sensorlog"
)

func TestDetectAnomaliesSmallWindowSpike(t *testing.T) {
	// Two stable readings and one jump. Scored against the rest of the
	// window, the jump is far outside the baseline.
	readings := []sensorlog.Reading{
		reading(baseTime, f(72.0), f(45), nil, nil, nil),
		reading(baseTime.Add(time.Hour), f(74.0), f(44), nil, nil, nil),
		reading(baseTime.Add(2*time.Hour), f(85.3), f(38), nil, nil, nil),
	}
	engine, _, _ := newTestEngine(readings)

	scan, err := engine.DetectAnomalies("temperature", 2.5, RangeToken("all"))
	require.NoError(t, err)

	require.NotEmpty(t, scan.Anomalies)
	spike := scan.Anomalies[0]
	assert.Equal(t, 85.3, spike.Value)
	assert.Equal(t, baseTime.Add(2*time.Hour).Format(time.RFC3339), spike.Timestamp)
	assert.Greater(t, spike.ZScore, 2.5)
	assert.Equal(t, "severe", spike.Severity)
	assert.InDelta(t, 73.0, spike.Expected, 1e-9)
}

func TestDetectAnomaliesInjectedOutlier(t *testing.T) {
	// Flat-ish series with one value pushed 4 sigma above the baseline mean.
	var readings []sensorlog.Reading
	base := []float64{20, 21, 20, 19, 20, 21, 20, 19, 20, 21, 20, 19, 20, 21, 20, 19, 20, 21, 20, 19}
	var sum, sq float64
	for _, v := range base {
		sum += v
		sq += v * v
	}
	mean := sum / float64(len(base))
	sigma := math.Sqrt(sq/float64(len(base)) - mean*mean)
	outlier := mean + 4*sigma

	for i, v := range base {
		readings = append(readings, reading(baseTime.Add(time.Duration(i)*time.Minute), f(v), nil, nil, nil, nil))
	}
	outlierAt := baseTime.Add(time.Duration(len(base)) * time.Minute)
	readings = append(readings, reading(outlierAt, f(outlier), nil, nil, nil, nil))

	engine, _, _ := newTestEngine(readings)
	scan, err := engine.DetectAnomalies("temperature", 2.5, RangeToken("all"))
	require.NoError(t, err)

	require.Len(t, scan.Anomalies, 1)
	a := scan.Anomalies[0]
	assert.Equal(t, outlierAt.Format(time.RFC3339), a.Timestamp)
	assert.InDelta(t, outlier, a.Value, 1e-9)
	assert.GreaterOrEqual(t, math.Abs(a.ZScore), severitySevereZ)
	assert.Equal(t, "severe", a.Severity)
	assert.Less(t, a.ExpectedLow, a.Expected)
	assert.Greater(t, a.ExpectedHigh, a.Expected)
}

func TestDetectAnomaliesNewestFirst(t *testing.T) {
	var readings []sensorlog.Reading
	for i := 0; i < 30; i++ {
		readings = append(readings, reading(baseTime.Add(time.Duration(i)*time.Minute), f(20), f(50), nil, nil, nil))
	}
	// two spikes at different times, slightly jittered base so sigma > 0
	readings[3].Temperature = f(19.9)
	readings[7].Temperature = f(20.1)
	readings[5].Temperature = f(60)
	readings[25].Temperature = f(60)

	engine, _, _ := newTestEngine(readings)
	scan, err := engine.DetectAnomalies("temperature", 2.5, RangeToken("all"))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(scan.Anomalies), 2)
	for i := 1; i < len(scan.Anomalies); i++ {
		assert.GreaterOrEqual(t, scan.Anomalies[i-1].Timestamp, scan.Anomalies[i].Timestamp)
	}
	assert.Equal(t, scan.TotalCount, len(scan.Anomalies))
}

func TestDetectAnomaliesAllSensors(t *testing.T) {
	var readings []sensorlog.Reading
	for i := 0; i < 20; i++ {
		readings = append(readings, fullReading(baseTime.Add(time.Duration(i)*time.Minute), float64(i%3)))
	}
	readings[10].Humidity = f(500)

	engine, _, _ := newTestEngine(readings)
	scan, err := engine.DetectAnomalies("all", 2.5, RangeToken("all"))
	require.NoError(t, err)

	assert.Equal(t, "all", scan.Sensor)
	found := false
	for _, a := range scan.Anomalies {
		if a.Sensor == "humidity" && a.Value == 500 {
			found = true
		}
	}
	assert.True(t, found, "spike on humidity should be flagged in an all-sensor scan")
}

func TestDetectAnomaliesSkipsShortSeries(t *testing.T) {
	readings := []sensorlog.Reading{
		reading(baseTime, f(20), nil, nil, nil, nil),
		reading(baseTime.Add(time.Minute), f(90), nil, nil, nil, nil),
	}
	engine, _, _ := newTestEngine(readings)

	scan, err := engine.DetectAnomalies("temperature", 2.5, RangeToken("all"))
	require.NoError(t, err)
	assert.Empty(t, scan.Anomalies, "fewer samples than the minimum must not be scored")
	assert.Equal(t, 0, scan.TotalCount)
}

func TestDetectAnomaliesConstantSeries(t *testing.T) {
	var readings []sensorlog.Reading
	for i := 0; i < 10; i++ {
		readings = append(readings, reading(baseTime.Add(time.Duration(i)*time.Minute), f(20), nil, nil, nil, nil))
	}
	engine, _, _ := newTestEngine(readings)

	scan, err := engine.DetectAnomalies("temperature", 2.5, RangeToken("all"))
	require.NoError(t, err)
	assert.Empty(t, scan.Anomalies)
}

func TestDetectAnomaliesDefaultThreshold(t *testing.T) {
	engine, _, _ := newTestEngine([]sensorlog.Reading{
		fullReading(baseTime, 10), fullReading(baseTime.Add(time.Minute), 11), fullReading(baseTime.Add(2*time.Minute), 12),
	})

	scan, err := engine.DetectAnomalies("temperature", 0, RangeToken("all"))
	require.NoError(t, err)
	assert.Equal(t, 2.5, scan.Threshold)
}

func TestDetectAnomaliesUnknownSensor(t *testing.T) {
	engine, _, _ := newTestEngine([]sensorlog.Reading{fullReading(baseTime, 10)})

	var unknown *UnknownSensorError
	_, err := engine.DetectAnomalies("color", 2.5, RangeToken("all"))
	require.ErrorAs(t, err, &unknown)
}

func TestGetAnomalyContext(t *testing.T) {
	var readings []sensorlog.Reading
	for i := 0; i < 12; i++ {
		ts := baseTime.Add(time.Duration(i) * time.Hour)
		r := reading(ts, f(20+float64(i%2)), f(50), f(1013), nil, nil)
		readings = append(readings, r)
	}
	anomalyAt := baseTime.Add(6 * time.Hour)
	readings[6].Temperature = f(45)
	readings[6].Pressure = f(900) // pressure is also off at that moment

	engine, _, _ := newTestEngine(readings)
	ctx, err := engine.GetAnomalyContext("temperature", anomalyAt, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, "temperature", ctx.Sensor)
	assert.Equal(t, anomalyAt.Format(time.RFC3339), ctx.Timestamp)

	// half-open sub-window: hours 4, 5, 6, 7 but not 8
	require.Len(t, ctx.Series, 4)
	assert.Equal(t, anomalyAt.Add(-2*time.Hour).Format(time.RFC3339), ctx.Series[0].Timestamp)
	assert.Equal(t, 45.0, ctx.Series[2].Value)

	assert.Greater(t, ctx.GlobalStdDev, 0.0)

	byName := map[string]SensorSnapshot{}
	for _, s := range ctx.OtherSensors {
		byName[s.Sensor] = s
	}
	require.Contains(t, byName, "humidity")
	require.Contains(t, byName, "pressure")
	assert.Equal(t, "normal", byName["humidity"].Status, "constant humidity is unremarkable")
	assert.Equal(t, "unusual", byName["pressure"].Status)
	require.NotNil(t, byName["pressure"].Value)
	assert.Equal(t, 900.0, *byName["pressure"].Value)
	assert.Equal(t, "missing", byName["light"].Status)
	assert.Nil(t, byName["light"].Value)
}

func TestGetAnomalyContextEmptyHistory(t *testing.T) {
	engine, _, _ := newTestEngine(nil)

	var empty *EmptyWindowError
	_, err := engine.GetAnomalyContext("temperature", baseTime, 2, 2)
	require.ErrorAs(t, err, &empty)
}
