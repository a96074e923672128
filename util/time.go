package util

import (
	"fmt"
	"strconv"
	"time"
)

const ISO8601 = "2006-01-02T15:04:05.000Z"

const ISO8601_micro = "2006-01-02T15:04:05.000000Z"

const ISO8601_numtz = "2006-01-02T15:04:05.000-07:00"

const ISO8601_sec = "2006-01-02T15:04:05Z"

const ISO8601_numtz_sec = "2006-01-02T15:04:05-07:00"

const DateOnly = "2006-01-02"

var timestampLayouts = []string{
	ISO8601,
	ISO8601_micro,
	ISO8601_numtz,
	ISO8601_sec,
	ISO8601_numtz_sec,
	time.RFC3339Nano,
	DateOnly,
}

// Parses operator-supplied instants: the ISO 8601 variants collectors emit,
// plain dates (midnight UTC), or integer unix seconds.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("failed to parse %q as timestamp", s)
}
