package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/ambient.report/internal/analysis"
	"github.com/banshee-data/ambient.report/internal/api"
	"github.com/banshee-data/ambient.report/internal/cloud"
	"github.com/banshee-data/ambient.report/internal/config"
	"github.com/banshee-data/ambient.report/internal/sensorlog"
	"github.com/banshee-data/ambient.report/internal/serialmux"
	"github.com/banshee-data/ambient.report/internal/timeutil"
	"github.com/banshee-data/ambient.report/internal/version"
)

var (
	configPath    = flag.String("config", "", "Path to gateway config JSON file")
	devMode       = flag.Bool("dev", false, "Run in dev mode with a mock serial device fed from fixtures.txt")
	disableSensor = flag.Bool("disable-sensor", false, "Run without sensor hardware (analysis and API only)")
	listen        = flag.String("listen", "", "Listen address (overrides config)")
	serialPort    = flag.String("port", "", "Serial port to use (overrides config)")
	migrationsDir = flag.String("migrations", "", "Directory of SQL migrations to apply to the sqlite store on startup")
)

// mirroredStore tees appended readings to the cloud mirror after they are
// persisted locally. Mirror publishing is best-effort and never fails the
// append.
type mirroredStore struct {
	sensorlog.Store
	mirror *cloud.Mirror
}

func (s *mirroredStore) Append(r sensorlog.Reading) error {
	if err := s.Store.Append(r); err != nil {
		return err
	}
	s.mirror.Publish(r)
	return nil
}

func openStore(cfg *config.GatewayConfig) (sensorlog.Store, error) {
	if cfg.GetStoreBackend() == "sqlite" {
		return sensorlog.OpenSQLite(cfg.GetSQLitePath())
	}
	return sensorlog.OpenCSV(cfg.GetDataFile())
}

func openSerialMux(cfg *config.GatewayConfig) (serialmux.SerialMuxInterface, error) {
	if *disableSensor {
		return serialmux.NewDisabledSerialMux(), nil
	}
	if *devMode {
		data, err := os.ReadFile("fixtures.txt")
		if err != nil {
			return nil, err
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		return serialmux.NewMockSerialMux([]byte(lines[0] + "\n")), nil
	}

	path := cfg.GetSerialPort()
	if *serialPort != "" {
		path = *serialPort
	}
	return serialmux.NewRealSerialMux(path, serialmux.PortOptions{BaudRate: cfg.GetBaudRate()})
}

func main() {
	flag.Parse()
	log.Printf("ambient gateway %s", version.String())

	cfg := config.EmptyGatewayConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadGatewayConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	addr := cfg.GetListenAddr()
	if *listen != "" {
		addr = *listen
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.GetStoreBackend(), err)
	}
	defer store.Close()

	if *migrationsDir != "" {
		s, ok := store.(*sensorlog.SQLiteStore)
		if !ok {
			log.Fatalf("-migrations requires the sqlite store backend, have %s", cfg.GetStoreBackend())
		}
		if err := s.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("failed to migrate sensor database: %v", err)
		}
	}

	// Optional cloud mirror: readings are teed to InfluxDB after local
	// persistence when configured.
	ingestStore := store
	if cfg.InfluxEnabled() {
		hostname, _ := os.Hostname()
		mirror, err := cloud.NewMirror(cfg, hostname)
		if err != nil {
			log.Printf("cloud mirror unavailable, continuing without: %v", err)
		} else {
			defer mirror.Close()
			ingestStore = &mirroredStore{Store: store, mirror: mirror}
		}
	}

	sensorSerial, err := openSerialMux(cfg)
	if err != nil {
		log.Fatalf("failed to open sensor serial port: %v", err)
	}
	defer sensorSerial.Close()

	if err := sensorSerial.SetCaptureInterval(cfg.GetCaptureIntervalSeconds()); err != nil {
		log.Printf("failed to set capture interval: %v", err)
	} else {
		log.Printf("device reporting every %d seconds", cfg.GetCaptureIntervalSeconds())
	}

	clock := timeutil.RealClock{}
	engine := analysis.NewEngineWithClock(store, clock, cfg.GetCacheTTL())

	// Create a wait group for the HTTP server, serial monitor, and line handler routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sensorSerial.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to the serial port lines and pass them to the line handler.
	// New readings invalidate the analysis cache so queries see them.
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := sensorSerial.Subscribe()
		defer sensorSerial.Unsubscribe(id)
		for {
			select {
			case line := <-c:
				if err := serialmux.HandleLine(ingestStore, clock, line); err != nil {
					log.Printf("error handling sensor line: %v", err)
				} else if serialmux.ClassifyLine(line) == serialmux.LineTypeReading {
					engine.InvalidateCache()
				}
			case <-ctx.Done():
				log.Printf("subscribe routine terminated")
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(sensorSerial, store, engine, cfg).ServeMux()

		sensorSerial.AttachAdminRoutes(mux)
		if s, ok := store.(*sensorlog.SQLiteStore); ok {
			s.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    addr,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
