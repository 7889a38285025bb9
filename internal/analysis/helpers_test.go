package analysis

import (
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/ambient.report/internal/sensorlog"
	"github.com/banshee-data/ambient.report/internal/timeutil"
)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	mu       sync.Mutex
	readings []sensorlog.Reading
	readErr  error
	reads    int
}

func (m *memStore) Append(r sensorlog.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, r)
	return nil
}

func (m *memStore) ReadAll() ([]sensorlog.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]sensorlog.Reading, len(m.readings))
	copy(out, m.readings)
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) readCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

var errStoreGone = errors.New("store gone")

// baseTime is a fixed Monday so weekday-dependent tests are stable.
var baseTime = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) // Monday

func f(v float64) *float64 { return &v }

func reading(ts time.Time, temp, hum, pres, light, sound *float64) sensorlog.Reading {
	return sensorlog.Reading{
		Timestamp:   ts,
		Temperature: temp,
		Humidity:    hum,
		Pressure:    pres,
		Light:       light,
		SoundLevel:  sound,
	}
}

// fullReading populates every numeric sensor with the same value offset per
// channel, which is enough for shape-oriented tests.
func fullReading(ts time.Time, v float64) sensorlog.Reading {
	return reading(ts, f(v), f(v+1), f(v+2), f(v+3), f(v+4))
}

// newTestEngine wires an engine over the given readings with a mock clock
// set just after the last reading.
func newTestEngine(readings []sensorlog.Reading) (*Engine, *memStore, *timeutil.MockClock) {
	store := &memStore{readings: readings}
	now := baseTime
	if len(readings) > 0 {
		now = readings[len(readings)-1].Timestamp.Add(time.Minute)
	}
	clock := timeutil.NewMockClock(now)
	return NewEngineWithClock(store, clock, defaultCacheTTL), store, clock
}
