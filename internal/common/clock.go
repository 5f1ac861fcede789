package common

import (
	"time"
)

// TimestampLayout is the wire format for session timestamps: UTC ISO 8601
// with microsecond resolution. Lexicographic order matches chronological
// order, which ListSessions relies on when sorting by started_at.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// NowUTC returns the current time formatted with TimestampLayout.
func NowUTC() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a TimestampLayout string back into a time.Time.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}
