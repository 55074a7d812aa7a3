// Package availability decides whether an appointment fits a business's
// hours and an employee's schedule, and lists the free start times of a day.
//
// Every weekday and time-of-day comparison goes through the engine's
// civiltime.Converter, so results are always in the business's civil time.
package availability

import (
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"github.com/md-rashed-zaman/iris/libs/civiltime"
)

// Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	conv   *civiltime.Converter
	logger *slog.Logger
}

func New(conv *civiltime.Converter, logger *slog.Logger) *Engine {
	if conv == nil {
		conv = civiltime.New("")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{conv: conv, logger: logger}
}

func (e *Engine) Converter() *civiltime.Converter { return e.conv }

// IsWithinBusinessHours reports whether t falls inside the business window
// for its weekday. Both bounds are inclusive.
func (e *Engine) IsWithinBusinessHours(t time.Time, hours BusinessHours) bool {
	day := e.conv.WeekdayOf(t)
	entry, ok := hours[day]
	switch {
	case !ok:
		e.logger.Warn("no business hours defined", "day_of_week", int(day), "business_time", e.conv.ToBusinessTime(t))
		return false
	case entry.IsClosed:
		e.logger.Info("business closed on day", "day_of_week", int(day), "business_time", e.conv.ToBusinessTime(t))
		return false
	case entry.Open == nil || entry.Close == nil:
		e.logger.Warn("incomplete business hours", "day_of_week", int(day))
		return false
	}
	within := e.withinClock(t, *entry.Open, *entry.Close)
	e.logger.Debug("business hours validation",
		"day_of_week", int(day),
		"business_time", e.conv.ToBusinessTime(t),
		"open_time", civiltime.FormatClock(*entry.Open),
		"close_time", civiltime.FormatClock(*entry.Close),
		"is_within", within,
	)
	return within
}

// IsEmployeeWorking reports whether t falls inside the employee's working
// window for its weekday. Both bounds are inclusive.
func (e *Engine) IsEmployeeWorking(t time.Time, hours EmployeeHours) bool {
	day := e.conv.WeekdayOf(t)
	entry, ok := hours[day]
	switch {
	case !ok:
		e.logger.Warn("no employee hours defined", "day_of_week", int(day), "business_time", e.conv.ToBusinessTime(t))
		return false
	case !entry.IsWorking:
		e.logger.Info("employee not working on day", "day_of_week", int(day), "business_time", e.conv.ToBusinessTime(t))
		return false
	case entry.Start == nil || entry.End == nil:
		e.logger.Warn("incomplete employee hours", "day_of_week", int(day))
		return false
	}
	working := e.withinClock(t, *entry.Start, *entry.End)
	e.logger.Debug("employee hours validation",
		"day_of_week", int(day),
		"business_time", e.conv.ToBusinessTime(t),
		"start_time", civiltime.FormatClock(*entry.Start),
		"end_time", civiltime.FormatClock(*entry.End),
		"is_working", working,
	)
	return working
}

func (e *Engine) withinClock(t time.Time, lo, hi civil.Time) bool {
	tod := e.conv.TimeOfDay(t)
	return civiltime.CompareClock(lo, tod) <= 0 && civiltime.CompareClock(tod, hi) <= 0
}
