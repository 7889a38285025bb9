package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/ambient.report/internal/analysis"
	"github.com/banshee-data/ambient.report/internal/httputil"
	"github.com/banshee-data/ambient.report/internal/version"
)

// writeEngineError maps the analysis error taxonomy onto HTTP status codes:
// bad input is 400, an empty window is 404, a missing backing store is 503.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		unknown     *analysis.UnknownSensorError
		invalid     *analysis.InvalidRangeError
		empty       *analysis.EmptyWindowError
		unavailable *analysis.DataUnavailableError
	)
	switch {
	case errors.As(err, &unknown), errors.As(err, &invalid):
		httputil.BadRequest(w, err.Error())
	case errors.As(err, &empty):
		httputil.NotFound(w, err.Error())
	case errors.As(err, &unavailable):
		httputil.ServiceUnavailable(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

// rangeFromQuery builds a TimeRange from either a relative token (?range=24h)
// or an explicit instant pair (?start=...&end=...).
func rangeFromQuery(r *http.Request) (analysis.TimeRange, error) {
	q := r.URL.Query()
	return analysis.ParseTimeRange(q.Get("range"), q.Get("start"), q.Get("end"))
}

func (s *Server) showStatistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	tr, err := rangeFromQuery(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	stats, err := s.engine.GetStatistics(r.URL.Query().Get("sensor"), tr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, stats)
}

func (s *Server) showCorrelationMatrix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	tr, err := rangeFromQuery(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	matrix, err := s.engine.ComputeCorrelationMatrix(tr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, matrix)
}

func (s *Server) showScatterData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	tr, err := rangeFromQuery(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	maxPoints := s.cfg.GetMaxScatterPoints()
	if mp := q.Get("max_points"); mp != "" {
		parsed, err := strconv.Atoi(mp)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'max_points' parameter")
			return
		}
		maxPoints = parsed
	}

	scatter, err := s.engine.GetScatterData(q.Get("x"), q.Get("y"), tr, maxPoints)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, scatter)
}

func (s *Server) showAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	tr, err := rangeFromQuery(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	threshold := 0.0
	if t := q.Get("threshold"); t != "" {
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil || parsed <= 0 {
			httputil.BadRequest(w, "invalid 'threshold' parameter")
			return
		}
		threshold = parsed
	}

	scan, err := s.engine.DetectAnomalies(q.Get("sensor"), threshold, tr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, scan)
}

func (s *Server) showAnomalyContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()

	ts, err := time.Parse(time.RFC3339, q.Get("timestamp"))
	if err != nil {
		httputil.BadRequest(w, "invalid 'timestamp' parameter: expected RFC 3339")
		return
	}

	hoursBefore, hoursAfter := 0, 0
	if h := q.Get("hours_before"); h != "" {
		if hoursBefore, err = strconv.Atoi(h); err != nil || hoursBefore < 1 {
			httputil.BadRequest(w, "invalid 'hours_before' parameter")
			return
		}
	}
	if h := q.Get("hours_after"); h != "" {
		if hoursAfter, err = strconv.Atoi(h); err != nil || hoursAfter < 1 {
			httputil.BadRequest(w, "invalid 'hours_after' parameter")
			return
		}
	}

	ctx, err := s.engine.GetAnomalyContext(q.Get("sensor"), ts, hoursBefore, hoursAfter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, ctx)
}

func (s *Server) showWeeklyPattern(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	tr, err := rangeFromQuery(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	pattern, err := s.engine.ComputeWeeklyPattern(r.URL.Query().Get("sensor"), tr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, pattern)
}

func (s *Server) showCalendarData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		httputil.BadRequest(w, "invalid 'year' parameter")
		return
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		httputil.BadRequest(w, "invalid 'month' parameter")
		return
	}
	cal, err := s.engine.GetCalendarData(q.Get("sensor"), year, month)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, cal)
}

func (s *Server) showDayHourlyData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	date, err := time.Parse("2006-01-02", q.Get("date"))
	if err != nil {
		httputil.BadRequest(w, "invalid 'date' parameter: expected YYYY-MM-DD")
		return
	}
	day, err := s.engine.GetDayHourlyData(q.Get("sensor"), date)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, day)
}

func (s *Server) showDailyAggregates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	date, err := time.Parse("2006-01-02", q.Get("date"))
	if err != nil {
		httputil.BadRequest(w, "invalid 'date' parameter: expected YYYY-MM-DD")
		return
	}
	agg, err := s.engine.ComputeDailyAggregates(q.Get("sensor"), date)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, agg)
}

func (s *Server) comparePeriods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	rangeA, err := analysis.ParseTimeRange(q.Get("range1"), q.Get("start1"), q.Get("end1"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rangeB, err := analysis.ParseTimeRange(q.Get("range2"), q.Get("start2"), q.Get("end2"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	comparison, err := s.engine.ComparePeriods(q.Get("sensor"), rangeA, rangeB)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, comparison)
}

func (s *Server) showInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	tr, err := rangeFromQuery(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	report, err := s.engine.GenerateInsights(tr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, report)
}

func (s *Server) showDataSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	summary, err := s.engine.GetDataSummary()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSONOK(w, summary)
}

// listRecentReadings returns the newest readings for a dashboard chart,
// most recent last, capped by the 'limit' parameter.
func (s *Server) listRecentReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	readings, err := s.store.ReadAll()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to read sensor log: %v", err))
		return
	}
	if len(readings) > limit {
		readings = readings[len(readings)-limit:]
	}
	httputil.WriteJSONOK(w, readings)
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		httputil.BadRequest(w, "missing 'command' parameter")
		return
	}

	if err := s.m.SendCommand(command); err != nil {
		httputil.InternalServerError(w, "failed to send command")
		return
	}
	io.WriteString(w, "Command sent successfully")
}

// setCaptureInterval pushes a new reporting interval to the device.
func (s *Server) setCaptureInterval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	seconds, err := strconv.Atoi(r.FormValue("seconds"))
	if err != nil || seconds < 1 {
		httputil.BadRequest(w, "invalid 'seconds' parameter")
		return
	}

	if err := s.m.SetCaptureInterval(seconds); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to set capture interval: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]int{"capture_interval_seconds": seconds})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"serial_port":              s.cfg.GetSerialPort(),
		"baud_rate":                s.cfg.GetBaudRate(),
		"capture_interval_seconds": s.cfg.GetCaptureIntervalSeconds(),
		"store_backend":            s.cfg.GetStoreBackend(),
		"cache_ttl_seconds":        int(s.cfg.GetCacheTTL().Seconds()),
		"max_scatter_points":       s.cfg.GetMaxScatterPoints(),
		"influx_enabled":           s.cfg.InfluxEnabled(),
		"version":                  version.Version,
	})
}
