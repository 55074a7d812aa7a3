// Package civiltime converts between absolute instants and the wall-clock
// time of a single business time zone.
//
// Civil values (dates, times of day, date-times without a zone) are
// represented with cloud.google.com/go/civil. Instants are time.Time and are
// returned in UTC unless stated otherwise.
package civiltime

import (
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
)

// DefaultZone is used when a business has no zone configured or its zone
// cannot be resolved.
const DefaultZone = "America/Argentina/Buenos_Aires"

// Clock returns the current instant.
type Clock func() time.Time

// Option configures a Converter.
type Option func(*Converter)

// WithClock replaces the system clock. Tests use it to pin "now".
func WithClock(clock Clock) Option {
	return func(c *Converter) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger used for zone fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Converter is bound to one time zone and is immutable after New returns.
// It is safe for concurrent use.
type Converter struct {
	zone   string
	loc    *time.Location
	clock  Clock
	logger *slog.Logger
}

// New builds a Converter for zone. It never fails: an empty or unknown zone
// is replaced by DefaultZone, and the substitution is logged.
func New(zone string, opts ...Option) *Converter {
	c := &Converter{
		clock:  time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.zone, c.loc = c.resolve(zone)
	return c
}

func (c *Converter) resolve(zone string) (string, *time.Location) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err == nil {
		return zone, loc
	}
	c.logger.Warn("timezone initialization failed",
		"timezone", zone,
		"fallback", DefaultZone,
		"err", err,
	)
	if loc, derr := time.LoadLocation(DefaultZone); derr == nil {
		return DefaultZone, loc
	}
	c.logger.Error("default timezone unavailable, using UTC", "timezone", DefaultZone)
	return "UTC", time.UTC
}

// Zone returns the IANA identifier the converter is bound to.
func (c *Converter) Zone() string { return c.zone }

// Location returns the resolved location.
func (c *Converter) Location() *time.Location { return c.loc }

// Now returns the current instant expressed in business time.
func (c *Converter) Now() time.Time {
	return c.clock().In(c.loc)
}

// ToBusinessTime expresses t in the business zone. The instant is unchanged.
// Values created without an explicit location (time.Date with time.UTC, or
// parsed without an offset) are UTC, so they are converted as UTC.
func (c *Converter) ToBusinessTime(t time.Time) time.Time {
	return t.In(c.loc)
}

// ToUTCInstant normalises an instant that already carries its zone.
func (c *Converter) ToUTCInstant(t time.Time) time.Time {
	return t.UTC()
}

// ToUTC interprets dt as wall-clock time in the business zone and returns
// the matching instant in UTC.
//
// Around DST transitions the result is resolved as follows:
//   - a repeated wall clock (fold) maps to the earlier instant;
//   - a skipped wall clock (gap) maps to the instant the transition happens.
//
// Both rules keep ToUTC non-decreasing, so a later civil value never yields
// an earlier instant.
func (c *Converter) ToUTC(dt civil.DateTime) time.Time {
	wall := time.Date(dt.Date.Year, dt.Date.Month, dt.Date.Day,
		dt.Time.Hour, dt.Time.Minute, dt.Time.Second, dt.Time.Nanosecond, time.UTC)

	var best time.Time
	found := false
	for _, probe := range []time.Time{wall.Add(-24 * time.Hour), wall.Add(24 * time.Hour)} {
		offset := c.offsetAt(probe)
		inst := wall.Add(-offset)
		if c.offsetAt(inst) != offset {
			continue
		}
		if !found || inst.Before(best) {
			best, found = inst, true
		}
	}
	if found {
		return best.UTC()
	}

	// Gap: neither neighbouring offset produces this wall clock.
	guess := wall.Add(-c.offsetAt(wall.Add(-24 * time.Hour)))
	start, _ := guess.In(c.loc).ZoneBounds()
	if start.IsZero() {
		return guess.UTC()
	}
	return start.UTC()
}

func (c *Converter) offsetAt(t time.Time) time.Duration {
	_, secs := t.In(c.loc).Zone()
	return time.Duration(secs) * time.Second
}

// Combine joins a calendar date and a time of day in the business zone.
func (c *Converter) Combine(date civil.Date, tod civil.Time) time.Time {
	return c.ToUTC(civil.DateTime{Date: date, Time: tod})
}

// WeekdayOf returns the business-time weekday of t.
func (c *Converter) WeekdayOf(t time.Time) Weekday {
	return weekdayTable[t.In(c.loc).Weekday()]
}

// IsSameCivilDay reports whether a and b fall on the same business-time date.
func (c *Converter) IsSameCivilDay(a, b time.Time) bool {
	return c.DateOf(a) == c.DateOf(b)
}

// DateOf returns the business-time calendar date of t.
func (c *Converter) DateOf(t time.Time) civil.Date {
	return civil.DateOf(t.In(c.loc))
}

// TimeOfDay returns the business-time wall clock of t.
func (c *Converter) TimeOfDay(t time.Time) civil.Time {
	return civil.TimeOf(t.In(c.loc))
}

// EndTime adds minutes of elapsed time to start and returns the result in
// business time.
func (c *Converter) EndTime(start time.Time, minutes int) time.Time {
	return start.Add(time.Duration(minutes) * time.Minute).In(c.loc)
}

// IsInFuture reports whether t is no earlier than now minus buffer.
func (c *Converter) IsInFuture(t time.Time, buffer time.Duration) bool {
	return !t.Before(c.clock().Add(-buffer))
}
