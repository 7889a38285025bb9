package analysis

import "fmt"

// The engine's failure taxonomy. Every public operation returns one of these
// typed errors (or nil); the HTTP bridge converts them into {error: ...}
// envelopes so nothing non-serializable crosses the API boundary.

// DataUnavailableError reports that the backing store is missing or
// unreadable. An empty window is not DataUnavailable; see EmptyWindowError.
type DataUnavailableError struct {
	Err error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("sensor data unavailable: %v", e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// UnknownSensorError reports a sensor name outside the recognized vocabulary,
// or a non-numeric sensor passed to a numeric operation.
type UnknownSensorError struct {
	Sensor string
	Reason string
}

func (e *UnknownSensorError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid sensor %q: %s", e.Sensor, e.Reason)
	}
	return fmt.Sprintf("invalid sensor %q", e.Sensor)
}

// EmptyWindowError reports that the resolved window contains zero usable
// values for the operation. Sensor and Range are kept for caller context.
type EmptyWindowError struct {
	Sensor string
	Range  string
}

func (e *EmptyWindowError) Error() string {
	if e.Sensor != "" {
		return fmt.Sprintf("no data for sensor %q in range %s", e.Sensor, e.Range)
	}
	return fmt.Sprintf("no data in range %s", e.Range)
}

// InvalidRangeError reports a malformed time range: an unknown relative
// token, an unparseable instant, or start after end.
type InvalidRangeError struct {
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid time range: %s", e.Reason)
}
