package analysis

import (
	"fmt"
	"time"

	"github.com/banshee-data/ambient.report/internal/timeutil"
)

// TimeRange is a tagged window specification: either a named relative token
// ("1h", "6h", "24h", "7d", "30d", "all") or an explicit [start, end) instant
// pair. Relative tokens resolve against "now" at query time, so repeated
// queries with the same token cover different absolute windows.
type TimeRange struct {
	Token string
	Start *time.Time
	End   *time.Time
}

// relativeWindows maps the accepted relative tokens to their durations.
// "all" is the special unbounded case.
var relativeWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// RangeToken returns a relative TimeRange for a named token. The empty token
// is treated as "all".
func RangeToken(token string) TimeRange {
	if token == "" {
		token = "all"
	}
	return TimeRange{Token: token}
}

// RangeBetween returns an explicit [start, end) TimeRange.
func RangeBetween(start, end time.Time) TimeRange {
	return TimeRange{Start: &start, End: &end}
}

// ParseTimeRange builds a TimeRange from raw request values: a relative
// token, or ISO-8601 start/end instants (either may be empty for an open
// side). Naive instants are normalized to UTC.
func ParseTimeRange(token, start, end string) (TimeRange, error) {
	if start == "" && end == "" {
		tr := RangeToken(token)
		if err := tr.validate(); err != nil {
			return TimeRange{}, err
		}
		return tr, nil
	}

	var tr TimeRange
	if start != "" {
		ts, err := parseInstant(start)
		if err != nil {
			return TimeRange{}, &InvalidRangeError{Reason: fmt.Sprintf("bad start instant %q", start)}
		}
		tr.Start = &ts
	}
	if end != "" {
		ts, err := parseInstant(end)
		if err != nil {
			return TimeRange{}, &InvalidRangeError{Reason: fmt.Sprintf("bad end instant %q", end)}
		}
		tr.End = &ts
	}
	if err := tr.validate(); err != nil {
		return TimeRange{}, err
	}
	return tr, nil
}

func parseInstant(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return ts.UTC(), nil
	}
	return time.Parse("2006-01-02", value)
}

func (tr TimeRange) validate() error {
	if tr.explicit() {
		if tr.Start != nil && tr.End != nil && tr.Start.After(*tr.End) {
			return &InvalidRangeError{Reason: "start is after end"}
		}
		return nil
	}
	if tr.Token == "all" {
		return nil
	}
	if _, ok := relativeWindows[tr.Token]; !ok {
		return &InvalidRangeError{Reason: fmt.Sprintf("unknown range token %q", tr.Token)}
	}
	return nil
}

func (tr TimeRange) explicit() bool {
	return tr.Start != nil || tr.End != nil
}

// Resolve converts the range into concrete window bounds against the given
// clock. Either returned bound may be nil for an unbounded side. The window
// is half-open: [start, end).
func (tr TimeRange) Resolve(clock timeutil.Clock) (start, end *time.Time, err error) {
	if err := tr.validate(); err != nil {
		return nil, nil, err
	}
	if tr.explicit() {
		return tr.Start, tr.End, nil
	}
	if tr.Token == "all" || tr.Token == "" {
		return nil, nil, nil
	}
	now := clock.Now().UTC()
	s := now.Add(-relativeWindows[tr.Token])
	return &s, &now, nil
}

// String renders the range for result context fields and log lines.
func (tr TimeRange) String() string {
	if !tr.explicit() {
		if tr.Token == "" {
			return "all"
		}
		return tr.Token
	}
	s, e := "", ""
	if tr.Start != nil {
		s = tr.Start.UTC().Format(time.RFC3339)
	}
	if tr.End != nil {
		e = tr.End.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("[%s,%s)", s, e)
}

// cacheKey renders a deterministic key fragment for this range. Relative
// tokens incorporate a coarse freshness bucket so a cached window is reused
// only while it is still fresh relative to "now".
func (tr TimeRange) cacheKey(clock timeutil.Clock, ttl time.Duration) string {
	if tr.explicit() {
		return tr.String()
	}
	if tr.Token == "all" || tr.Token == "" {
		return "all"
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	bucket := clock.Now().UTC().Truncate(ttl).Unix()
	return fmt.Sprintf("%s@%d", tr.Token, bucket)
}
