package utils

import (
	"time"
)

// TimeNowUTC returns the current time truncated to second precision in UTC.
// All persisted timestamps in the pipeline carry second precision.
func TimeNowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// FormatRFC3339 renders a timestamp as UTC RFC3339 with a trailing Z.
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseRFC3339 parses an RFC3339 timestamp and normalizes it to UTC.
func ParseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
