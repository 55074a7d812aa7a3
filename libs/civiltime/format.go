package civiltime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrInvalidTime = errors.New("invalid time of day")
)

var (
	dateLayouts  = []string{"02/01/2006", "2006-01-02"}
	clockLayouts = []string{"15:04", "15:04:05"}
)

// Format renders t in business time as DD/MM/YYYY HH:MM, optionally
// followed by the zone abbreviation.
func (c *Converter) Format(t time.Time, withZone bool) string {
	local := t.In(c.loc)
	out := local.Format("02/01/2006 15:04")
	if withZone {
		abbr, _ := local.Zone()
		out += " (" + abbr + ")"
	}
	return out
}

// Parse reads a date in DD/MM/YYYY or YYYY-MM-DD form and an optional
// HH:MM[:SS] time of day, and returns the instant in the business zone.
// An empty tod means midnight.
func (c *Converter) Parse(date, tod string) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	var clock civil.Time
	if strings.TrimSpace(tod) != "" {
		clock, err = ParseClock(tod)
		if err != nil {
			return time.Time{}, err
		}
	}
	return c.Combine(d, clock), nil
}

// ParseDate accepts DD/MM/YYYY or YYYY-MM-DD.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseClock accepts HH:MM or HH:MM:SS.
func ParseClock(s string) (civil.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.TimeOf(t), nil
		}
	}
	return civil.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

// FormatClock renders a time of day as HH:MM, adding seconds only when set.
func FormatClock(t civil.Time) string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MinutesToClock converts a minute of the day (0..1439) to a time of day.
func MinutesToClock(m int) (civil.Time, error) {
	if m < 0 || m >= 24*60 {
		return civil.Time{}, fmt.Errorf("%w: minute %d out of range", ErrInvalidTime, m)
	}
	return civil.Time{Hour: m / 60, Minute: m % 60}, nil
}

// ClockToMinutes converts a time of day to whole minutes since midnight.
// Seconds are truncated.
func ClockToMinutes(t civil.Time) int {
	return t.Hour*60 + t.Minute
}

// CompareClock orders two times of day.
func CompareClock(a, b civil.Time) int {
	na, nb := clockNanos(a), clockNanos(b)
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}

func clockNanos(t civil.Time) int64 {
	return int64(t.Hour)*int64(time.Hour) +
		int64(t.Minute)*int64(time.Minute) +
		int64(t.Second)*int64(time.Second) +
		int64(t.Nanosecond)
}
