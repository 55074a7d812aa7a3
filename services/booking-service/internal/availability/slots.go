package availability

import (
	"slices"
	"time"

	"cloud.google.com/go/civil"

	"github.com/md-rashed-zaman/iris/libs/civiltime"
)

// DefaultSlotStep is used when the caller passes a non-positive step.
const DefaultSlotStep = 15

var (
	startOfDay = civil.Time{}
	endOfDay   = civil.Time{Hour: 23, Minute: 59}
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps treats both intervals as half-open, so intervals that only touch
// at a boundary do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// GetAvailableSlots lists the start times on date where an appointment of
// durationMinutes fits inside both the business and employee windows without
// overlapping any existing interval. Slots are stepMinutes apart, start at the
// opening of the shared window and are returned in business time.
func (e *Engine) GetAvailableSlots(date civil.Date, durationMinutes int, bh BusinessHours, eh EmployeeHours, existing []Interval, stepMinutes int) []time.Time {
	if stepMinutes <= 0 {
		stepMinutes = DefaultSlotStep
	}
	if durationMinutes <= 0 {
		return nil
	}

	// Noon is never inside a DST transition.
	day := e.conv.WeekdayOf(e.conv.Combine(date, civil.Time{Hour: 12}))

	biz, ok := bh[day]
	if !ok || biz.IsClosed {
		e.logger.Info("business closed, no slots", "date", date.String(), "day_of_week", int(day))
		return nil
	}
	emp, ok := eh[day]
	if !ok || !emp.IsWorking {
		e.logger.Info("employee not working, no slots", "date", date.String(), "day_of_week", int(day))
		return nil
	}

	workStart := laterOf(orDefault(biz.Open, startOfDay), orDefault(emp.Start, startOfDay))
	workEnd := earlierOf(orDefault(biz.Close, endOfDay), orDefault(emp.End, endOfDay))
	if civiltime.CompareClock(workStart, workEnd) >= 0 {
		e.logger.Warn("invalid work window",
			"date", date.String(),
			"work_start", civiltime.FormatClock(workStart),
			"work_end", civiltime.FormatClock(workEnd),
		)
		return nil
	}

	windowStart := e.conv.Combine(date, workStart)
	windowEnd := e.conv.Combine(date, workEnd)
	duration := time.Duration(durationMinutes) * time.Minute
	step := time.Duration(stepMinutes) * time.Minute

	busy := sortedByStart(existing)
	lo := 0
	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		candidate := Interval{Start: t, End: t.Add(duration)}
		// Candidates only move forward, so anything already finished can be skipped for good.
		for lo < len(busy) && !busy[lo].End.After(candidate.Start) {
			lo++
		}
		if !overlapsAny(candidate, busy[lo:]) {
			slots = append(slots, e.conv.ToBusinessTime(t))
		}
	}

	e.logger.Info("available slots calculated",
		"date", date.String(),
		"duration_minutes", durationMinutes,
		"total_slots", len(slots),
		"work_start", civiltime.FormatClock(workStart),
		"work_end", civiltime.FormatClock(workEnd),
	)
	return slots
}

// FilterPast drops slots that start before now.
func FilterPast(slots []time.Time, now time.Time) []time.Time {
	out := slots[:0:0]
	for _, s := range slots {
		if !s.Before(now) {
			out = append(out, s)
		}
	}
	return out
}

// busy must be sorted by Start.
func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if !b.Start.Before(candidate.End) {
			return false
		}
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

func sortedByStart(in []Interval) []Interval {
	out := slices.Clone(in)
	slices.SortFunc(out, func(a, b Interval) int { return a.Start.Compare(b.Start) })
	return out
}

func orDefault(t *civil.Time, def civil.Time) civil.Time {
	if t == nil {
		return def
	}
	return *t
}

func laterOf(a, b civil.Time) civil.Time {
	if civiltime.CompareClock(a, b) >= 0 {
		return a
	}
	return b
}

func earlierOf(a, b civil.Time) civil.Time {
	if civiltime.CompareClock(a, b) <= 0 {
		return a
	}
	return b
}
