package clock

import (
	"fmt"
	"strings"
	"time"
)

const (
	naiveLayout      = "2006-01-02T15:04:05"
	naiveMicroLayout = "2006-01-02T15:04:05.000000"
	offsetLayout     = "-07:00"
)

var awareLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Naive converts t to the wall clock of loc and strips the zone.
func Naive(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}

// NowNaive returns the current wall clock of c's zone without zone information.
func NowNaive(c Clock) time.Time {
	return Naive(c.Now(), c.Location())
}

// NowAware returns the current instant expressed in c's zone.
func NowAware(c Clock) time.Time {
	return c.Now().In(c.Location())
}

// NaiveString formats the current naive time as ISO-8601 without offset.
func NaiveString(c Clock) string {
	return FormatNaive(NowNaive(c))
}

// AwareString formats the current time as ISO-8601 with the zone offset.
func AwareString(c Clock) string {
	now := NowAware(c)
	return formatWall(now) + now.Format(offsetLayout)
}

// FormatNaive renders t's wall clock as ISO-8601 without offset.
// Microseconds are printed only when non-zero.
func FormatNaive(t time.Time) string {
	return formatWall(t)
}

func formatWall(t time.Time) string {
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format(naiveLayout)
	}
	return t.Format(naiveMicroLayout)
}

// ParseISO parses an ISO-8601 timestamp or date. Values carrying an offset
// are converted to loc's wall clock; values without one are taken as naive
// already. The result is always naive.
func ParseISO(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("clock: empty timestamp")
	}
	for _, layout := range awareLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Naive(t, loc), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("clock: unsupported timestamp %q", s)
}
