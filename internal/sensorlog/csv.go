package sensorlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/ambient.report/internal/monitoring"
	"github.com/banshee-data/ambient.report/internal/sensors"
)

// csvHeader is the column layout of the flat-file log: the gateway timestamp
// followed by one column per sensor channel in canonical order.
var csvHeader = func() []string {
	header := []string{"timestamp"}
	for _, kind := range sensors.All() {
		info, _ := sensors.Lookup(string(kind))
		header = append(header, info.Column)
	}
	return header
}()

// CSVStore persists readings to a flat CSV file, one row per reading. The
// file is opened for append and held for the lifetime of the store; reads
// open a fresh handle so they observe everything flushed so far.
type CSVStore struct {
	path string

	mu     sync.Mutex
	writer *csv.Writer
	file   *os.File
}

// OpenCSV opens (or creates) a CSV reading log at path. The header row is
// written when the file is new or empty.
func OpenCSV(path string) (*CSVStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open sensor log %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat sensor log: %w", err)
	}

	s := &CSVStore{path: path, file: f, writer: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.writer.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write sensor log header: %w", err)
		}
		s.writer.Flush()
		if err := s.writer.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to flush sensor log header: %w", err)
		}
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *CSVStore) Path() string { return s.path }

// Append writes one reading and flushes it to disk.
func (s *CSVStore) Append(r Reading) error {
	record := make([]string, 0, len(csvHeader))
	record = append(record, r.Timestamp.UTC().Format(time.RFC3339))
	for _, kind := range sensors.All() {
		if kind == sensors.Color {
			if r.Color != nil {
				record = append(record, *r.Color)
			} else {
				record = append(record, "")
			}
			continue
		}
		if v, ok := r.Value(kind); ok {
			record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
		} else {
			record = append(record, "")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Write(record); err != nil {
		return fmt.Errorf("failed to append reading: %w", err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush reading: %w", err)
	}
	return nil
}

// ReadAll parses the whole log. A row with an unparseable timestamp is
// skipped; an unparseable numeric cell nulls that cell only. Neither aborts
// the load.
func (s *CSVStore) ReadAll() ([]Reading, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sensor log %s: %w", s.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sensor log header: %w", err)
	}

	// Column positions come from the header so older logs with reordered or
	// extra columns still load.
	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[name] = i
	}
	tsCol, ok := colIndex["timestamp"]
	if !ok {
		return nil, fmt.Errorf("sensor log %s has no timestamp column", s.path)
	}

	var readings []Reading
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row; keep going.
			skipped++
			continue
		}
		if tsCol >= len(record) {
			skipped++
			continue
		}

		ts, err := parseTimestamp(record[tsCol])
		if err != nil {
			skipped++
			continue
		}

		r := Reading{Timestamp: ts}
		for _, kind := range sensors.All() {
			info, _ := sensors.Lookup(string(kind))
			idx, ok := colIndex[info.Column]
			if !ok || idx >= len(record) || record[idx] == "" {
				continue
			}
			if kind == sensors.Color {
				c := record[idx]
				r.Color = &c
				continue
			}
			if v, err := strconv.ParseFloat(record[idx], 64); err == nil {
				r.SetValue(kind, v)
			}
		}
		readings = append(readings, r)
	}

	if skipped > 0 {
		monitoring.Logf("sensorlog: skipped %d malformed rows in %s", skipped, s.path)
	}
	return readings, nil
}

// Close flushes pending writes and closes the file.
func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// parseTimestamp accepts RFC3339 timestamps with or without a timezone
// designator. Naive timestamps are normalized to UTC.
func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return ts.UTC(), nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
