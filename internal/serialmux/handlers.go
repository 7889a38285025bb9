package serialmux

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/banshee-data/ambient.report/internal/sensorlog"
	"github.com/banshee-data/ambient.report/internal/timeutil"
)

// deviceState holds the latest acknowledgement and status lines received
// from the device so admin routes and tests can inspect them.
var (
	deviceStateMu sync.Mutex
	deviceState   = map[string]string{}
)

// DeviceState returns a copy of the recorded device state.
func DeviceState() map[string]string {
	deviceStateMu.Lock()
	defer deviceStateMu.Unlock()
	state := make(map[string]string, len(deviceState))
	for k, v := range deviceState {
		state[k] = v
	}
	return state
}

func recordDeviceState(key, value string) {
	deviceStateMu.Lock()
	defer deviceStateMu.Unlock()
	deviceState[key] = value
}

// HandleLine routes one line from the device: readings are appended to the
// store, command acknowledgements update the device state, and anything else
// is logged and dropped. Persistence failures are returned so the ingest
// loop can surface them; parse failures are not errors, the device also
// prints free-form diagnostics.
func HandleLine(store sensorlog.Store, clock timeutil.Clock, line string) error {
	switch ClassifyLine(line) {
	case LineTypeReading:
		reading, err := ParseReading(line, clock.Now())
		if err != nil {
			log.Printf("Dropped unparseable sensor line: %v", err)
			return nil
		}
		if err := store.Append(reading); err != nil {
			return fmt.Errorf("failed to record reading: %w", err)
		}
		return nil

	case LineTypeAck:
		recordDeviceState("last_ack", strings.TrimSpace(line))
		log.Printf("Device ack: %s", strings.TrimSpace(line))
		return nil

	case LineTypeError:
		recordDeviceState("last_error", strings.TrimSpace(line))
		log.Printf("Device command error: %s", strings.TrimSpace(line))
		return nil

	default:
		log.Printf("Device: %s", strings.TrimSpace(line))
		return nil
	}
}
