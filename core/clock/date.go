package clock

import (
	"strings"
	"time"
)

var flexibleDateLayouts = []string{
	"2006-01-02 15:04",
	"2006-1-2 15:04",
	"2006-01-02",
	"2006-1-2",
	"02.01.2006 15:04",
	"2.1.2006 15:04",
	"02.01.2006",
	"2.1.2006",
}

// ParseDate tries the date formats users type into chats and the ISO forms
// the backend returns. The result is naive.
func ParseDate(input string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := ParseISO(s, loc); err == nil {
		return t, true
	}
	for _, layout := range flexibleDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// WholeYears returns floor(days(now-since)/365). It is intentionally not
// calendar aware: leap days shift the boundary by a few days.
func WholeYears(since, now time.Time) int {
	days := floorDiv(int64(now.Sub(since)/time.Second), 86400)
	return int(floorDiv(days, 365))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
