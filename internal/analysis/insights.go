package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ambient.report/internal/sensors"
)

// Insight policy constants. These thresholds are the whole contract of the
// generator: identical inputs always produce identical findings in the same
// order.
const (
	// trend: regression slope converted to a per-day rate, as a percent of
	// the window mean. Below Min the trend is noise; above High it is urgent.
	trendMinDailyChangePct  = 1.0
	trendHighDailyChangePct = 5.0

	// pattern: weekday-vs-weekend relative mean difference.
	patternMinWeekendDiffPct = 10.0

	// correlation: minimum |r| worth surfacing.
	correlationMinMagnitude = 0.7

	// milestones on accumulated data volume and monitoring span.
	milestonePointsLow    = 1_000
	milestonePointsMedium = 10_000
	milestonePointsHigh   = 100_000
	milestoneDaysLow      = 7
	milestoneDaysMedium   = 30
	milestoneDaysHigh     = 365

	// minimum non-missing samples before a trend or pattern rule fires.
	insightMinSamples = 24
)

// Insight is one generated finding.
type Insight struct {
	Category string `json:"category"` // trend, pattern, anomaly, correlation, or milestone
	Priority string `json:"priority"` // high, medium, or low
	Sensor   string `json:"sensor,omitempty"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
}

// InsightReport is the ordered list of findings for one window, sorted
// high priority first with a stable rule-order tiebreak.
type InsightReport struct {
	Range    string    `json:"time_range"`
	Insights []Insight `json:"insights"`
}

var priorityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

// GenerateInsights synthesizes findings from the other modules: per-sensor
// trends, weekday/weekend patterns, the most recent high-severity anomaly,
// the strongest correlation, and data-volume milestones.
func (e *Engine) GenerateInsights(tr TimeRange) (*InsightReport, error) {
	key := "insights|" + tr.cacheKey(e.clock, e.cache.ttl)
	v, err := e.cache.getOrCompute(key, func() (interface{}, error) {
		ds, err := e.load(tr)
		if err != nil {
			return nil, err
		}
		if ds.Len() == 0 {
			return nil, &EmptyWindowError{Range: tr.String()}
		}

		var insights []Insight
		insights = append(insights, e.trendInsights(ds)...)
		insights = append(insights, e.patternInsights(ds)...)
		insights = append(insights, e.anomalyInsight(tr)...)
		insights = append(insights, correlationInsight(ds)...)
		insights = append(insights, milestoneInsights(ds)...)

		sort.SliceStable(insights, func(i, j int) bool {
			return priorityRank[insights[i].Priority] < priorityRank[insights[j].Priority]
		})
		return &InsightReport{Range: tr.String(), Insights: insights}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*InsightReport), nil
}

// trendInsights fits a least-squares line per sensor and surfaces slopes
// whose per-day rate is significant relative to the window mean.
func (e *Engine) trendInsights(ds *Dataset) []Insight {
	var insights []Insight
	for _, kind := range sensors.Numeric() {
		times, vals := ds.Series(kind)
		if len(vals) < insightMinSamples {
			continue
		}
		mean := stat.Mean(vals, nil)
		if mean == 0 {
			continue
		}

		hours := make([]float64, len(times))
		for i, t := range times {
			hours[i] = t.Sub(times[0]).Hours()
		}
		_, slope := stat.LinearRegression(hours, vals, nil, false)
		if math.IsNaN(slope) || math.IsInf(slope, 0) {
			continue
		}

		dailyChange := slope * 24
		pct := math.Abs(dailyChange / mean * 100)
		if pct < trendMinDailyChangePct {
			continue
		}

		direction := "rising"
		if dailyChange < 0 {
			direction = "falling"
		}
		priority := "medium"
		if pct >= trendHighDailyChangePct {
			priority = "high"
		}
		info, _ := sensors.Lookup(string(kind))
		insights = append(insights, Insight{
			Category: "trend",
			Priority: priority,
			Sensor:   string(kind),
			Title:    fmt.Sprintf("%s is %s", info.Label, direction),
			Detail: fmt.Sprintf("%s is %s by %.2f%s per day (%.1f%% of its average)",
				info.Label, direction, math.Abs(dailyChange), info.Unit, pct),
		})
	}
	return insights
}

// patternInsights compares weekday and weekend means per sensor.
func (e *Engine) patternInsights(ds *Dataset) []Insight {
	var insights []Insight
	for _, kind := range sensors.Numeric() {
		times, vals := ds.Series(kind)
		if len(vals) < insightMinSamples {
			continue
		}

		var weekday, weekend []float64
		for i, v := range vals {
			if wd := times[i].UTC().Weekday(); wd == time.Saturday || wd == time.Sunday {
				weekend = append(weekend, v)
			} else {
				weekday = append(weekday, v)
			}
		}
		if len(weekday) == 0 || len(weekend) == 0 {
			continue
		}
		wdMean := stat.Mean(weekday, nil)
		weMean := stat.Mean(weekend, nil)
		if wdMean == 0 {
			continue
		}
		pct := (weMean - wdMean) / math.Abs(wdMean) * 100
		if math.Abs(pct) < patternMinWeekendDiffPct {
			continue
		}

		relation := "higher"
		if pct < 0 {
			relation = "lower"
		}
		info, _ := sensors.Lookup(string(kind))
		insights = append(insights, Insight{
			Category: "pattern",
			Priority: "medium",
			Sensor:   string(kind),
			Title:    fmt.Sprintf("%s differs on weekends", info.Label),
			Detail: fmt.Sprintf("%s averages %.1f%% %s on weekends (%.2f%s) than on weekdays (%.2f%s)",
				info.Label, math.Abs(pct), relation, weMean, info.Unit, wdMean, info.Unit),
		})
	}
	return insights
}

// anomalyInsight surfaces the most recent severe anomaly in the window, if
// any. The scan list is already newest first.
func (e *Engine) anomalyInsight(tr TimeRange) []Insight {
	scan, err := e.DetectAnomalies("all", severityModerateZ, tr)
	if err != nil {
		return nil
	}
	for _, a := range scan.Anomalies {
		if a.Severity != "severe" {
			continue
		}
		info, _ := sensors.Lookup(a.Sensor)
		return []Insight{{
			Category: "anomaly",
			Priority: "high",
			Sensor:   a.Sensor,
			Title:    fmt.Sprintf("Severe %s anomaly", info.Label),
			Detail: fmt.Sprintf("%s read %.2f%s at %s, %.1f standard deviations from the expected %.2f%s",
				info.Label, a.Value, info.Unit, a.Timestamp, math.Abs(a.ZScore), a.Expected, info.Unit),
		}}
	}
	return nil
}

// correlationInsight surfaces the single strongest pairwise correlation at
// or above the minimum magnitude. Ties keep the first pair in canonical
// sensor order.
func correlationInsight(ds *Dataset) []Insight {
	kinds := sensors.Numeric()
	var (
		best     float64
		bestPair [2]sensors.Kind
		found    bool
	)
	for i := range kinds {
		for j := i + 1; j < len(kinds); j++ {
			r := pairwiseCorrelation(ds.Column(kinds[i]), ds.Column(kinds[j]))
			if r == nil {
				continue
			}
			if math.Abs(*r) >= correlationMinMagnitude && math.Abs(*r) > math.Abs(best) {
				best = *r
				bestPair = [2]sensors.Kind{kinds[i], kinds[j]}
				found = true
			}
		}
	}
	if !found {
		return nil
	}

	relation := "rise and fall together"
	if best < 0 {
		relation = "move in opposite directions"
	}
	infoA, _ := sensors.Lookup(string(bestPair[0]))
	infoB, _ := sensors.Lookup(string(bestPair[1]))
	return []Insight{{
		Category: "correlation",
		Priority: "medium",
		Title:    fmt.Sprintf("%s and %s are strongly linked", infoA.Label, infoB.Label),
		Detail: fmt.Sprintf("%s and %s %s (r = %.2f)",
			infoA.Label, infoB.Label, relation, best),
	}}
}

// milestoneInsights celebrates data-volume and monitoring-span milestones.
func milestoneInsights(ds *Dataset) []Insight {
	var insights []Insight

	points := ds.Len()
	switch {
	case points >= milestonePointsHigh:
		insights = append(insights, milestone("Over 100,000 readings collected", points))
	case points >= milestonePointsMedium:
		insights = append(insights, milestone("Over 10,000 readings collected", points))
	case points >= milestonePointsLow:
		insights = append(insights, milestone("Over 1,000 readings collected", points))
	}

	if ds.Len() > 0 {
		days := int(ds.Times()[ds.Len()-1].Sub(ds.Times()[0]).Hours() / 24)
		var title string
		switch {
		case days >= milestoneDaysHigh:
			title = "A full year of monitoring"
		case days >= milestoneDaysMedium:
			title = "A month of continuous monitoring"
		case days >= milestoneDaysLow:
			title = "A week of continuous monitoring"
		}
		if title != "" {
			insights = append(insights, Insight{
				Category: "milestone",
				Priority: "low",
				Title:    title,
				Detail:   fmt.Sprintf("The gateway has been monitoring for %d days", days),
			})
		}
	}
	return insights
}

func milestone(title string, points int) Insight {
	return Insight{
		Category: "milestone",
		Priority: "low",
		Title:    title,
		Detail:   fmt.Sprintf("%d readings collected so far", points),
	}
}
