package availability

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/md-rashed-zaman/iris/libs/civiltime"
)

var (
	ErrDuplicateWeekday = errors.New("duplicate weekday")
	ErrInvalidHours     = errors.New("opening time must be before closing time")
)

// DayHours is a business's window for one weekday. A nil bound means the
// row exists but is incomplete.
type DayHours struct {
	Weekday  civiltime.Weekday
	Open     *civil.Time
	Close    *civil.Time
	IsClosed bool
}

// EmployeeDayHours is one employee's working window for one weekday.
type EmployeeDayHours struct {
	Weekday   civiltime.Weekday
	Start     *civil.Time
	End       *civil.Time
	IsWorking bool
}

type BusinessHours map[civiltime.Weekday]DayHours

type EmployeeHours map[civiltime.Weekday]EmployeeDayHours

// NewBusinessHours indexes days by weekday, rejecting duplicates and open
// days whose bounds are out of order.
func NewBusinessHours(days ...DayHours) (BusinessHours, error) {
	out := make(BusinessHours, len(days))
	for _, d := range days {
		if !d.Weekday.Valid() {
			return nil, fmt.Errorf("business hours: %w", civiltime.ErrInvalidWeekday)
		}
		if _, dup := out[d.Weekday]; dup {
			return nil, fmt.Errorf("business hours %s: %w", d.Weekday, ErrDuplicateWeekday)
		}
		if !d.IsClosed && !ordered(d.Open, d.Close) {
			return nil, fmt.Errorf("business hours %s: %w", d.Weekday, ErrInvalidHours)
		}
		out[d.Weekday] = d
	}
	return out, nil
}

// NewEmployeeHours is NewBusinessHours for an employee schedule.
func NewEmployeeHours(days ...EmployeeDayHours) (EmployeeHours, error) {
	out := make(EmployeeHours, len(days))
	for _, d := range days {
		if !d.Weekday.Valid() {
			return nil, fmt.Errorf("employee hours: %w", civiltime.ErrInvalidWeekday)
		}
		if _, dup := out[d.Weekday]; dup {
			return nil, fmt.Errorf("employee hours %s: %w", d.Weekday, ErrDuplicateWeekday)
		}
		if d.IsWorking && !ordered(d.Start, d.End) {
			return nil, fmt.Errorf("employee hours %s: %w", d.Weekday, ErrInvalidHours)
		}
		out[d.Weekday] = d
	}
	return out, nil
}

// Incomplete rows are accepted here and treated as unavailable later.
func ordered(lo, hi *civil.Time) bool {
	if lo == nil || hi == nil {
		return true
	}
	return civiltime.CompareClock(*lo, *hi) < 0
}

// Clock returns a pointer to a time of day, for building hours literals.
func Clock(hour, minute int) *civil.Time {
	return &civil.Time{Hour: hour, Minute: minute}
}
