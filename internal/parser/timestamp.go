package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"datalogger-plots/internal/series"
)

// Day-first layouts. Single-digit layout elements also accept two digits.
var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2006-1-2",
}

// Fractional seconds are accepted after "05" without being spelled out.
var timeLayouts = []string{
	"15:04:05",
	"15:04",
}

// ParseTimestamp combines a Date and an Heure cell, reading the date day
// first. Timestamps are naive and returned in UTC.
func ParseTimestamp(date, clock string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, false
	}

	for _, dl := range dateLayouts {
		d, err := time.Parse(dl, date)
		if err != nil {
			continue
		}
		for _, tl := range timeLayouts {
			c, err := time.Parse(tl, clock)
			if err != nil {
				continue
			}
			return time.Date(d.Year(), d.Month(), d.Day(),
				c.Hour(), c.Minute(), c.Second(), c.Nanosecond(), time.UTC), true
		}
		return time.Time{}, false
	}
	return time.Time{}, false
}

// ParseValue reads a numeric cell. Empty or unreadable cells, NaN and
// infinities come back as NaN. A lone decimal comma is accepted.
func ParseValue(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nan
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := cast.ToFloat64E(s)
	if err != nil || series.IsMissing(v) {
		return nan
	}
	return v
}

var boundLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseBound reads a user supplied time range bound, YYYY-MM-DD[THH:MM[:SS]]
// or day first. An empty string is the zero time.
func ParseBound(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range boundLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse time %q using supported formats", s)
}
