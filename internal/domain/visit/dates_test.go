package visit

import (
	"testing"
	"time"
)

var cairo = mustLoadLocation("Africa/Cairo")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func TestNormalizeDigits(t *testing.T) {
	tests := []struct{ in, want string }{
		{"٢٠٢٤-٠٦-٠١", "2024-06-01"},
		{"۱۲:۳۰", "12:30"},
		{"10:30", "10:30"},
		{"مساءً ٨", "مساءً 8"},
	}
	for _, tt := range tests {
		if got := NormalizeDigits(tt.in); got != tt.want {
			t.Errorf("NormalizeDigits(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseInstant(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		time     string
		wantOK   bool
		wantTime time.Time
	}{
		{
			"iso date with separate time",
			"2024-06-01", "08:30",
			true, time.Date(2024, 6, 1, 8, 30, 0, 0, cairo),
		},
		{
			"unpadded date",
			"2024-6-1", "8:30",
			true, time.Date(2024, 6, 1, 8, 30, 0, 0, cairo),
		},
		{
			"arabic indic digits",
			"٢٠٢٤-٠٦-٠١", "٠٨:٣٠",
			true, time.Date(2024, 6, 1, 8, 30, 0, 0, cairo),
		},
		{
			"combined date and time",
			"2024-06-01 08:30", "",
			true, time.Date(2024, 6, 1, 8, 30, 0, 0, cairo),
		},
		{
			"date only defaults to midnight",
			"2024-06-01", "",
			true, time.Date(2024, 6, 1, 0, 0, 0, 0, cairo),
		},
		{
			"colon-less time",
			"2024-06-01", "0830",
			true, time.Date(2024, 6, 1, 8, 30, 0, 0, cairo),
		},
		{
			"unparsable time falls back to midnight",
			"2024-06-01", "late morning",
			true, time.Date(2024, 6, 1, 0, 0, 0, 0, cairo),
		},
		{
			"unparsable date yields nothing even with valid time",
			"sometime last week", "08:30",
			false, time.Time{},
		},
		{
			"empty date yields nothing",
			"", "08:30",
			false, time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInstant(tt.date, tt.time, cairo)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.wantTime) {
				t.Errorf("instant = %v, want %v", got, tt.wantTime)
			}
		})
	}
}

func TestParseClockTime_Bounds(t *testing.T) {
	if _, ok := parseClockTime("24:00"); ok {
		t.Error("24:00 accepted")
	}
	if _, ok := parseClockTime("12:60"); ok {
		t.Error("12:60 accepted")
	}
	if ct, ok := parseClockTime("23:59:59"); !ok || ct.hour != 23 || ct.second != 59 {
		t.Errorf("23:59:59 = %+v ok=%v", ct, ok)
	}
}

func TestLocalDate_NoZeroPadding(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, cairo)
	if got := LocalDate(at, cairo); got != "2024-6-1" {
		t.Errorf("LocalDate = %q, want 2024-6-1", got)
	}
}

func TestSameLocalDay_AcrossTimezones(t *testing.T) {
	// 23:30 UTC on May 31 is already June 1 in Cairo (UTC+3 in summer).
	utcLate := time.Date(2024, 5, 31, 23, 30, 0, 0, time.UTC)
	cairoMorning := time.Date(2024, 6, 1, 9, 0, 0, 0, cairo)
	if !SameLocalDay(utcLate, cairoMorning, cairo) {
		t.Error("expected same clinic-local day")
	}
}
