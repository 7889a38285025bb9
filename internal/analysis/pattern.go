package analysis

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// dayNames index matches the weekly pattern row order: Monday = 0.
var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// mondayIndexed converts Go's Sunday-first weekday to Monday = 0.
func mondayIndexed(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// WeeklyPattern is the hour-of-day by day-of-week aggregation of one sensor.
// Values[day][hour] is the bucket mean, or null when the bucket holds no
// observations: an unmeasured condition is distinct from measured-and-low.
type WeeklyPattern struct {
	Sensor string          `json:"sensor"`
	Range  string          `json:"time_range"`
	Days   [7]string       `json:"days"`
	Values [7][24]*float64 `json:"values"`
	Counts [7][24]int      `json:"counts"`
}

// ComputeWeeklyPattern buckets all in-window readings by (day-of-week,
// hour-of-day) and averages within each bucket. Rows are Monday-first.
func (e *Engine) ComputeWeeklyPattern(sensor string, tr TimeRange) (*WeeklyPattern, error) {
	kind, err := numericSensor(sensor)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("weekly|%s|%s", kind, tr.cacheKey(e.clock, e.cache.ttl))
	v, err := e.cache.getOrCompute(key, func() (interface{}, error) {
		ds, err := e.load(tr)
		if err != nil {
			return nil, err
		}

		var sums, counts [7][24]float64
		times, vals := ds.Series(kind)
		for i, v := range vals {
			t := times[i].UTC()
			day := mondayIndexed(t.Weekday())
			hour := t.Hour()
			sums[day][hour] += v
			counts[day][hour]++
		}

		pattern := &WeeklyPattern{Sensor: string(kind), Range: tr.String(), Days: dayNames}
		for day := 0; day < 7; day++ {
			for hour := 0; hour < 24; hour++ {
				n := int(counts[day][hour])
				pattern.Counts[day][hour] = n
				if n > 0 {
					mean := sums[day][hour] / counts[day][hour]
					pattern.Values[day][hour] = &mean
				}
			}
		}
		return pattern, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*WeeklyPattern), nil
}

// DayStats is the per-day aggregate cell of a calendar month.
type DayStats struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
	Count  int     `json:"count"`
}

// CalendarData is the per-day rollup of one sensor across one calendar
// month. Min and Max are the extremes of the day means across the month so
// callers can scale a color ramp; days with no observations are absent from
// the map.
type CalendarData struct {
	Sensor string              `json:"sensor"`
	Year   int                 `json:"year"`
	Month  int                 `json:"month"`
	Min    *float64            `json:"min"`
	Max    *float64            `json:"max"`
	Days   map[string]DayStats `json:"days"`
}

// GetCalendarData computes per-day statistics for a named month.
func (e *Engine) GetCalendarData(sensor string, year, month int) (*CalendarData, error) {
	kind, err := numericSensor(sensor)
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, &InvalidRangeError{Reason: fmt.Sprintf("month %d out of range", month)}
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	tr := RangeBetween(start, end)

	key := fmt.Sprintf("calendar|%s|%04d-%02d", kind, year, month)
	v, err := e.cache.getOrCompute(key, func() (interface{}, error) {
		ds, err := e.load(tr)
		if err != nil {
			return nil, err
		}

		byDay := make(map[int][]float64)
		times, vals := ds.Series(kind)
		for i, v := range vals {
			byDay[times[i].UTC().Day()] = append(byDay[times[i].UTC().Day()], v)
		}

		cal := &CalendarData{
			Sensor: string(kind),
			Year:   year,
			Month:  month,
			Days:   make(map[string]DayStats, len(byDay)),
		}
		for day, dayVals := range byDay {
			ds := DayStats{
				Mean:   stat.Mean(dayVals, nil),
				Min:    dayVals[0],
				Max:    dayVals[0],
				StdDev: stat.PopStdDev(dayVals, nil),
				Count:  len(dayVals),
			}
			for _, v := range dayVals {
				ds.Min = math.Min(ds.Min, v)
				ds.Max = math.Max(ds.Max, v)
			}
			cal.Days[fmt.Sprintf("%d", day)] = ds

			if cal.Min == nil || ds.Mean < *cal.Min {
				mean := ds.Mean
				cal.Min = &mean
			}
			if cal.Max == nil || ds.Mean > *cal.Max {
				mean := ds.Mean
				cal.Max = &mean
			}
		}
		return cal, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CalendarData), nil
}

// DayHourlyData is one mean per hour of a single day, null for empty hours.
type DayHourlyData struct {
	Sensor       string       `json:"sensor"`
	Date         string       `json:"date"`
	HourlyValues [24]*float64 `json:"hourly_values"`
}

// GetDayHourlyData returns the 24 hourly means for one calendar day.
func (e *Engine) GetDayHourlyData(sensor string, date time.Time) (*DayHourlyData, error) {
	kind, err := numericSensor(sensor)
	if err != nil {
		return nil, err
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	tr := RangeBetween(day, day.AddDate(0, 0, 1))

	key := fmt.Sprintf("dayhourly|%s|%s", kind, day.Format("2006-01-02"))
	v, err := e.cache.getOrCompute(key, func() (interface{}, error) {
		ds, err := e.load(tr)
		if err != nil {
			return nil, err
		}

		var sums, counts [24]float64
		times, vals := ds.Series(kind)
		for i, v := range vals {
			h := times[i].UTC().Hour()
			sums[h] += v
			counts[h]++
		}

		result := &DayHourlyData{Sensor: string(kind), Date: day.Format("2006-01-02")}
		for h := 0; h < 24; h++ {
			if counts[h] > 0 {
				mean := sums[h] / counts[h]
				result.HourlyValues[h] = &mean
			}
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DayHourlyData), nil
}

// HourBucket is one hourly aggregate of a single day. Mean, Min, and Max are
// null when the hour holds no observations.
type HourBucket struct {
	Hour  int      `json:"hour"`
	Mean  *float64 `json:"mean"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Count int      `json:"count"`
}

// DailyAggregates is the 24 hourly buckets of one sensor on one day.
type DailyAggregates struct {
	Sensor     string       `json:"sensor"`
	Date       string       `json:"date"`
	Aggregates []HourBucket `json:"aggregates"`
}

// ComputeDailyAggregates aggregates a sensor by hour across one day,
// returning all 24 buckets with explicit empty markers.
func (e *Engine) ComputeDailyAggregates(sensor string, date time.Time) (*DailyAggregates, error) {
	kind, err := numericSensor(sensor)
	if err != nil {
		return nil, err
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	tr := RangeBetween(day, day.AddDate(0, 0, 1))

	key := fmt.Sprintf("dailyagg|%s|%s", kind, day.Format("2006-01-02"))
	v, err := e.cache.getOrCompute(key, func() (interface{}, error) {
		ds, err := e.load(tr)
		if err != nil {
			return nil, err
		}

		var sums [24]float64
		var mins, maxs [24]float64
		var counts [24]int
		times, vals := ds.Series(kind)
		for i, v := range vals {
			h := times[i].UTC().Hour()
			if counts[h] == 0 {
				mins[h], maxs[h] = v, v
			} else {
				mins[h] = math.Min(mins[h], v)
				maxs[h] = math.Max(maxs[h], v)
			}
			sums[h] += v
			counts[h]++
		}

		result := &DailyAggregates{
			Sensor:     string(kind),
			Date:       day.Format("2006-01-02"),
			Aggregates: make([]HourBucket, 24),
		}
		for h := 0; h < 24; h++ {
			bucket := HourBucket{Hour: h, Count: counts[h]}
			if counts[h] > 0 {
				mean := sums[h] / float64(counts[h])
				lo, hi := mins[h], maxs[h]
				bucket.Mean, bucket.Min, bucket.Max = &mean, &lo, &hi
			}
			result.Aggregates[h] = bucket
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DailyAggregates), nil
}
