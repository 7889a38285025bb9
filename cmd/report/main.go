// Command report renders a static HTML report of the collected sensor data:
// a weekly pattern heatmap, the sensor correlation matrix, and the hourly
// profile of the most recent day. The output is self-contained and can be
// opened directly in a browser.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/ambient.report/internal/analysis"
	"github.com/banshee-data/ambient.report/internal/config"
	"github.com/banshee-data/ambient.report/internal/sensorlog"
)

var (
	configPath = flag.String("config", "", "Path to gateway config JSON file")
	sensor     = flag.String("sensor", "temperature", "Sensor to chart in the pattern sections")
	rangeSpec  = flag.String("range", "7d", "Time range token (1h, 6h, 24h, 7d, 30d, all)")
	outPath    = flag.String("out", "ambient_report.html", "Output HTML file")
)

func openStore(cfg *config.GatewayConfig) (sensorlog.Store, error) {
	if cfg.GetStoreBackend() == "sqlite" {
		return sensorlog.OpenSQLite(cfg.GetSQLitePath())
	}
	return sensorlog.OpenCSV(cfg.GetDataFile())
}

func weeklyHeatmap(pattern *analysis.WeeklyPattern) *charts.HeatMap {
	hours := make([]string, 24)
	for h := 0; h < 24; h++ {
		hours[h] = fmt.Sprintf("%02d:00", h)
	}

	data := make([]opts.HeatMapData, 0, 7*24)
	minVal, maxVal := 0.0, 1.0
	first := true
	for day := 0; day < 7; day++ {
		for hour := 0; hour < 24; hour++ {
			v := pattern.Values[day][hour]
			if v == nil {
				continue
			}
			if first || *v < minVal {
				minVal = *v
			}
			if first || *v > maxVal {
				maxVal = *v
			}
			first = false
			data = append(data, opts.HeatMapData{Value: [3]interface{}{hour, day, *v}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Weekly pattern: %s", pattern.Sensor),
			Subtitle: fmt.Sprintf("range=%s", pattern.Range),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: hours}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: pattern.Days[:]}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(minVal),
			Max:        float32(maxVal),
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	hm.SetXAxis(hours).AddSeries("mean", data)
	return hm
}

func correlationHeatmap(matrix *analysis.CorrelationMatrix) *charts.HeatMap {
	data := make([]opts.HeatMapData, 0, len(matrix.Labels)*len(matrix.Labels))
	for i := range matrix.Matrix {
		for j, r := range matrix.Matrix[i] {
			if r == nil {
				continue
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, *r}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Sensor correlations",
			Subtitle: fmt.Sprintf("range=%s", matrix.Range),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: matrix.Labels}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: matrix.Labels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        -1,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: []string{"#313695", "#ffffff", "#a50026"}},
		}),
	)
	hm.SetXAxis(matrix.Labels).AddSeries("r", data)
	return hm
}

func hourlyBar(agg *analysis.DailyAggregates) *charts.Bar {
	hours := make([]string, 24)
	data := make([]opts.BarData, 24)
	for h, bucket := range agg.Aggregates {
		hours[h] = fmt.Sprintf("%02d", h)
		if bucket.Mean != nil {
			data[h] = opts.BarData{Value: *bucket.Mean}
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Hourly means: %s", agg.Sensor),
			Subtitle: agg.Date,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(hours).AddSeries(agg.Sensor, data)
	return bar
}

func main() {
	flag.Parse()

	cfg := config.EmptyGatewayConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadGatewayConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.GetStoreBackend(), err)
	}
	defer store.Close()

	engine := analysis.NewEngine(store)

	tr, err := analysis.ParseTimeRange(*rangeSpec, "", "")
	if err != nil {
		log.Fatalf("invalid range %q: %v", *rangeSpec, err)
	}

	summary, err := engine.GetDataSummary()
	if err != nil {
		log.Fatalf("failed to summarize data: %v", err)
	}
	if summary.TotalRecords == 0 {
		log.Fatal("no readings recorded yet, nothing to report")
	}

	page := components.NewPage()
	page.PageTitle = "Ambient report"

	if pattern, err := engine.ComputeWeeklyPattern(*sensor, tr); err != nil {
		log.Printf("skipping weekly pattern: %v", err)
	} else {
		page.AddCharts(weeklyHeatmap(pattern))
	}

	if matrix, err := engine.ComputeCorrelationMatrix(tr); err != nil {
		log.Printf("skipping correlation matrix: %v", err)
	} else {
		page.AddCharts(correlationHeatmap(matrix))
	}

	// Chart the most recent day with data.
	if lastDay, err := time.Parse(time.RFC3339, summary.End); err == nil {
		if agg, err := engine.ComputeDailyAggregates(*sensor, lastDay); err != nil {
			log.Printf("skipping hourly profile: %v", err)
		} else {
			page.AddCharts(hourlyBar(agg))
		}
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		log.Fatalf("failed to render report: %v", err)
	}
	log.Printf("wrote report for %d readings to %s", summary.TotalRecords, *outPath)
}
