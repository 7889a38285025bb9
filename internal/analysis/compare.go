package analysis

import "fmt"

// Differences holds signed diffs between the two compared windows, always
// computed as period1 minus period2. Percent fields are relative to period2
// and are null when period2's figure is exactly zero.
type Differences struct {
	MeanDiff        float64  `json:"mean_diff"`
	MeanPctChange   *float64 `json:"mean_pct_change"`
	MedianDiff      float64  `json:"median_diff"`
	MinDiff         float64  `json:"min_diff"`
	MaxDiff         float64  `json:"max_diff"`
	StdDevDiff      float64  `json:"std_dev_diff"`
	StdDevPctChange *float64 `json:"std_dev_pct_change"`
	CountDiff       int      `json:"count_diff"`
}

// PeriodComparison is the statistical diff between two arbitrary windows.
// The windows need not be equal in length, sample count, or overlap.
type PeriodComparison struct {
	Sensor      string      `json:"sensor"`
	Period1     *Stats      `json:"period1"`
	Period2     *Stats      `json:"period2"`
	Differences Differences `json:"differences"`
}

// ComparePeriods computes statistics independently for two windows of one
// sensor and derives their differences. Either window being empty is an
// error: there is nothing to compare against.
func (e *Engine) ComparePeriods(sensor string, rangeA, rangeB TimeRange) (*PeriodComparison, error) {
	statsA, err := e.GetStatistics(sensor, rangeA)
	if err != nil {
		return nil, fmt.Errorf("period1: %w", err)
	}
	statsB, err := e.GetStatistics(sensor, rangeB)
	if err != nil {
		return nil, fmt.Errorf("period2: %w", err)
	}

	return &PeriodComparison{
		Sensor:  statsA.Sensor,
		Period1: statsA,
		Period2: statsB,
		Differences: Differences{
			MeanDiff:        statsA.Mean - statsB.Mean,
			MeanPctChange:   pctChange(statsA.Mean, statsB.Mean),
			MedianDiff:      statsA.Median - statsB.Median,
			MinDiff:         statsA.Min - statsB.Min,
			MaxDiff:         statsA.Max - statsB.Max,
			StdDevDiff:      statsA.StdDev - statsB.StdDev,
			StdDevPctChange: pctChange(statsA.StdDev, statsB.StdDev),
			CountDiff:       statsA.Count - statsB.Count,
		},
	}, nil
}

// pctChange returns (a-b)/b as a percentage, or nil when b is exactly zero.
func pctChange(a, b float64) *float64 {
	if b == 0 {
		return nil
	}
	pct := (a - b) / b * 100
	return &pct
}
