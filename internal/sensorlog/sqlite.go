package sensorlog

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/ambient.report/internal/monitoring"
)

// SQLiteStore persists readings to a SQLite database. It implements the same
// append-only Store contract as the CSV backend and additionally offers live
// SQL debugging routes.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) a SQLite reading log at path and ensures the
// baseline schema exists. Use MigrateUp for schema changes beyond baseline.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sensor database %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			timestamp         TIMESTAMP NOT NULL,
			temperature       DOUBLE,
			humidity          DOUBLE,
			pressure          DOUBLE,
			light             DOUBLE,
			sound_level       DOUBLE,
			color             TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings (timestamp);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create readings schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the location of the backing database file.
func (s *SQLiteStore) Path() string { return s.path }

// Append inserts one reading.
func (s *SQLiteStore) Append(r Reading) error {
	_, err := s.db.Exec(
		`INSERT INTO readings (timestamp, temperature, humidity, pressure, light, sound_level, color)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Temperature, r.Humidity, r.Pressure, r.Light, r.SoundLevel, r.Color,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// ReadAll returns every reading in insertion order. Rows with unparseable
// timestamps are skipped rather than aborting the load.
func (s *SQLiteStore) ReadAll() ([]Reading, error) {
	rows, err := s.db.Query(
		`SELECT timestamp, temperature, humidity, pressure, light, sound_level, color
		 FROM readings ORDER BY rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	skipped := 0
	for rows.Next() {
		var (
			ts    string
			r     Reading
			color sql.NullString
		)
		if err := rows.Scan(&ts, &r.Temperature, &r.Humidity, &r.Pressure, &r.Light, &r.SoundLevel, &color); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		parsed, err := parseTimestamp(ts)
		if err != nil {
			skipped++
			continue
		}
		r.Timestamp = parsed
		if color.Valid {
			c := color.String
			r.Color = &c
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read readings: %w", err)
	}
	if skipped > 0 {
		monitoring.Logf("sensorlog: skipped %d rows with bad timestamps in %s", skipped, s.path)
	}
	return readings, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AttachAdminRoutes mounts live SQL debugging and backup endpoints on the
// given mux under /debug/. These routes are for localhost use only.
func (s *SQLiteStore) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		monitoring.Logf("failed to create tailsql server: %v", err)
		return
	}
	tsql.SetDB("sqlite://"+s.path, s.db, &tailsql.DBOptions{
		Label: "Sensor DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a database backup", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := s.db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		http.ServeFile(w, r, backupPath)
	}))
}
