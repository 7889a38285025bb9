package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/ambient.report/internal/httputil"
	"github.com/banshee-data/ambient.report/internal/sensorlog"
	"github.com/banshee-data/ambient.report/internal/sensors"
	"github.com/banshee-data/ambient.report/internal/timeutil"
)

// exportReadings streams a windowed slice of the reading log as a CSV (or
// JSON) download. Each export run gets a uuid, reported in the X-Export-ID
// header and embedded in the suggested filename so repeated downloads do not
// collide.
func (s *Server) exportReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	tr, err := rangeFromQuery(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	start, end, err := tr.Resolve(timeutil.RealClock{})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	readings, err := s.store.ReadAll()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var window []sensorlog.Reading
	for _, reading := range readings {
		if start != nil && reading.Timestamp.Before(*start) {
			continue
		}
		if end != nil && !reading.Timestamp.Before(*end) {
			continue
		}
		window = append(window, reading)
	}

	exportID := uuid.NewString()
	w.Header().Set("X-Export-ID", exportID)

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	switch format {
	case "json":
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=readings-%s.json", exportID))
		httputil.WriteJSONOK(w, window)
	case "csv":
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=readings-%s.csv", exportID))
		writeCSVExport(w, window)
	default:
		httputil.BadRequest(w, fmt.Sprintf("unsupported format %q: expected csv or json", format))
	}
}

func writeCSVExport(w http.ResponseWriter, window []sensorlog.Reading) {
	w.Header().Set("Content-Type", "text/csv")

	writer := csv.NewWriter(w)
	header := []string{"timestamp"}
	for _, kind := range sensors.All() {
		info, _ := sensors.Lookup(string(kind))
		header = append(header, info.Column)
	}
	writer.Write(header)

	for _, reading := range window {
		record := []string{reading.Timestamp.UTC().Format(time.RFC3339)}
		for _, kind := range sensors.All() {
			if kind == sensors.Color {
				if reading.Color != nil {
					record = append(record, *reading.Color)
				} else {
					record = append(record, "")
				}
				continue
			}
			if v, ok := reading.Value(kind); ok {
				record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		writer.Write(record)
	}
	writer.Flush()
}
