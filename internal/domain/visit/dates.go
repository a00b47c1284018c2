// Package visit reconciles the loosely formatted visit and receipt data the
// backend returns into sortable, display-ready projections, and owns the
// add-prescription flow.
package visit

import (
	"strconv"
	"strings"
	"time"
)

// NormalizeDigits maps Arabic-Indic digits (U+0660..U+0669) and their
// extended variants (U+06F0..U+06F9) to ASCII. Times entered on Arabic
// keyboards arrive with these.
func NormalizeDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 0x0660 && r <= 0x0669:
			b.WriteRune('0' + (r - 0x0660))
		case r >= 0x06F0 && r <= 0x06F9:
			b.WriteRune('0' + (r - 0x06F0))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dateLayouts are the date shapes observed in stored visits, most common
// first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"02-01-2006",
	"2/1/2006",
}

// combinedLayouts cover strings that carry both a date and a clock time.
var combinedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-01-02T15:04:05",
}

// clockTime is a parsed wall-clock time of day.
type clockTime struct {
	hour, minute, second int
}

// parseClockTime interprets a time-of-day string after digit normalization.
// Accepted shapes: H:mm, HH:mm, HH:mm:ss, and the colon-less HHmm.
func parseClockTime(s string) (clockTime, bool) {
	s = strings.TrimSpace(NormalizeDigits(s))
	if s == "" {
		return clockTime{}, false
	}

	if !strings.Contains(s, ":") {
		if len(s) != 4 {
			return clockTime{}, false
		}
		h, err1 := strconv.Atoi(s[:2])
		m, err2 := strconv.Atoi(s[2:])
		if err1 != nil || err2 != nil {
			return clockTime{}, false
		}
		return validClock(h, m, 0)
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return clockTime{}, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return clockTime{}, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return clockTime{}, false
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil {
			return clockTime{}, false
		}
	}
	return validClock(h, m, sec)
}

func validClock(h, m, s int) (clockTime, bool) {
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return clockTime{}, false
	}
	return clockTime{hour: h, minute: m, second: s}, true
}

// ParseInstant turns a visit's date and optional time strings into a
// sortable instant. Precedence, decided here once instead of the historical
// ad hoc fallback chain:
//
//  1. combined date+time parsing of the date string;
//  2. date-only parsing composed with the separately parsed time;
//  3. date-only parsing at midnight;
//  4. unparsable date: zero instant, ok=false; the time string alone never
//     yields an instant, the date governs.
func ParseInstant(dateStr, timeStr string, loc *time.Location) (time.Time, bool) {
	dateStr = strings.TrimSpace(NormalizeDigits(dateStr))
	if dateStr == "" {
		return time.Time{}, false
	}

	for _, layout := range combinedLayouts {
		if t, err := time.ParseInLocation(layout, dateStr, loc); err == nil {
			return t, true
		}
	}

	var day time.Time
	parsed := false
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, dateStr, loc); err == nil {
			day = t
			parsed = true
			break
		}
	}
	if !parsed {
		return time.Time{}, false
	}

	if ct, ok := parseClockTime(timeStr); ok {
		return time.Date(day.Year(), day.Month(), day.Day(),
			ct.hour, ct.minute, ct.second, 0, loc), true
	}
	return day, true
}

// LocalDate renders t as the clinic-local yyyy-M-d string used as the
// waiting-list day key. No zero padding, matching the historical path
// convention.
func LocalDate(t time.Time, loc *time.Location) string {
	t = t.In(loc)
	return strconv.Itoa(t.Year()) + "-" +
		strconv.Itoa(int(t.Month())) + "-" +
		strconv.Itoa(t.Day())
}

// SameLocalDay reports whether two instants fall on the same clinic-local
// calendar day.
func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
