// Package cloud mirrors accepted readings to an InfluxDB v2 instance. The
// mirror is best-effort: the local store is the source of truth and upload
// failures never block ingest.
package cloud

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/banshee-data/ambient.report/internal/config"
	"github.com/banshee-data/ambient.report/internal/monitoring"
	"github.com/banshee-data/ambient.report/internal/sensorlog"
	"github.com/banshee-data/ambient.report/internal/sensors"
)

const measurement = "ambient_reading"

// Mirror forwards readings to InfluxDB using the client's buffered async
// write API.
type Mirror struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	gateway  string
}

// NewMirror initializes the InfluxDB v2 client and verifies connectivity.
// The gateway tag distinguishes multiple gateways writing into one bucket.
func NewMirror(cfg *config.GatewayConfig, gateway string) (*Mirror, error) {
	client := influxdb2.NewClient(cfg.GetInfluxURL(), cfg.GetInfluxToken())

	if _, err := client.Health(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	writeAPI := client.WriteAPI(cfg.GetInfluxOrg(), cfg.GetInfluxBucket())

	// async write errors surface on a channel, not per call
	go func() {
		for err := range writeAPI.Errors() {
			monitoring.Logf("cloud: influx write failed: %v", err)
		}
	}()

	return &Mirror{client: client, writeAPI: writeAPI, gateway: gateway}, nil
}

// pointFields flattens a reading into Influx field values. Missing channels
// are omitted rather than written as zeros.
func pointFields(r sensorlog.Reading) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, kind := range sensors.Numeric() {
		if v, ok := r.Value(kind); ok {
			fields[string(kind)] = v
		}
	}
	if r.Color != nil {
		fields["color"] = *r.Color
	}
	return fields
}

// Publish queues one reading for upload.
func (m *Mirror) Publish(r sensorlog.Reading) {
	fields := pointFields(r)
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		measurement,
		map[string]string{"gateway": m.gateway},
		fields,
		r.Timestamp,
	)
	m.writeAPI.WritePoint(point)
}

// Close flushes buffered points and closes the client.
func (m *Mirror) Close() {
	m.writeAPI.Flush()
	m.client.Close()
}
