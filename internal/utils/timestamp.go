package utils

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Layouts accepted for string timestamps, tried in order after the numeric forms.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Accepted timestamps lie in [MinTimestamp, MaxTimestamp]; anything else
// is treated as unparseable.
var (
	MinTimestamp = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxTimestamp = time.Date(9999, 12, 31, 23, 59, 59, 999_000_000, time.UTC)
)

// ParseTimestamp accepts epoch milliseconds or ISO-8601. An empty,
// unparseable or out-of-range value yields now; ok reports whether raw was understood.
func ParseTimestamp(raw string, now time.Time) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now, false
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return inRange(ms, now)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < float64(MinTimestamp.UnixMilli()) || f > float64(MaxTimestamp.UnixMilli()) {
			return now, false
		}
		return inRange(int64(f), now)
	}

	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			if parsed.Before(MinTimestamp) || parsed.After(MaxTimestamp) {
				return now, false
			}
			return parsed.UTC(), true
		}
	}
	return now, false
}

func inRange(ms int64, now time.Time) (time.Time, bool) {
	if ms < MinTimestamp.UnixMilli() || ms > MaxTimestamp.UnixMilli() {
		return now, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// MonthBounds returns [start, end) of the calendar month in loc.
func MonthBounds(loc *time.Location, year int, month time.Month) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}
