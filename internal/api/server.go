// Package api implements the gateway's HTTP surface: one route per analysis
// engine operation plus ingest utilities (live readings, export, device
// commands).
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/ambient.report/internal/analysis"
	"github.com/banshee-data/ambient.report/internal/config"
	"github.com/banshee-data/ambient.report/internal/sensorlog"
	"github.com/banshee-data/ambient.report/internal/serialmux"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	m      serialmux.SerialMuxInterface
	store  sensorlog.Store
	engine *analysis.Engine
	cfg    *config.GatewayConfig
}

func NewServer(m serialmux.SerialMuxInterface, store sensorlog.Store, engine *analysis.Engine, cfg *config.GatewayConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyGatewayConfig()
	}
	return &Server{
		m:      m,
		store:  store,
		engine: engine,
		cfg:    cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.listRecentReadings)
	mux.HandleFunc("/command", s.sendCommandHandler)
	mux.HandleFunc("/api/statistics", s.showStatistics)
	mux.HandleFunc("/api/correlation", s.showCorrelationMatrix)
	mux.HandleFunc("/api/scatter", s.showScatterData)
	mux.HandleFunc("/api/anomalies", s.showAnomalies)
	mux.HandleFunc("/api/anomalies/context", s.showAnomalyContext)
	mux.HandleFunc("/api/patterns/weekly", s.showWeeklyPattern)
	mux.HandleFunc("/api/patterns/calendar", s.showCalendarData)
	mux.HandleFunc("/api/patterns/day", s.showDayHourlyData)
	mux.HandleFunc("/api/patterns/hourly", s.showDailyAggregates)
	mux.HandleFunc("/api/compare", s.comparePeriods)
	mux.HandleFunc("/api/insights", s.showInsights)
	mux.HandleFunc("/api/summary", s.showDataSummary)
	mux.HandleFunc("/api/export", s.exportReadings)
	mux.HandleFunc("/api/interval", s.setCaptureInterval)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}
