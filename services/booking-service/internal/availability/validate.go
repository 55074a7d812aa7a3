package availability

import (
	"time"
)

// Reason identifies one failed timing check. Violations are always reported
// in the order the constants are declared.
type Reason string

const (
	ReasonInPast                    Reason = "in_past"
	ReasonStartOutsideBusinessHours Reason = "start_outside_business_hours"
	ReasonEndOutsideBusinessHours   Reason = "end_outside_business_hours"
	ReasonEmployeeNotWorkingAtStart Reason = "employee_not_working_at_start"
	ReasonEmployeeNotWorkingAtEnd   Reason = "employee_not_working_at_end"
	ReasonCrossesMidnight           Reason = "crosses_midnight"
)

var reasonMessages = map[Reason]string{
	ReasonInPast:                    "appointment must be in the future",
	ReasonStartOutsideBusinessHours: "start time is outside business hours",
	ReasonEndOutsideBusinessHours:   "end time is outside business hours",
	ReasonEmployeeNotWorkingAtStart: "employee is not working at the start time",
	ReasonEmployeeNotWorkingAtEnd:   "employee is not working at the end time",
	ReasonCrossesMidnight:           "appointment cannot extend into another day",
}

type Violation struct {
	Code    Reason `json:"code"`
	Message string `json:"message"`
}

type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// Messages returns the human-readable text of each violation, in order.
func (r ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Message)
	}
	return out
}

// Has reports whether the result contains reason.
func (r ValidationResult) Has(reason Reason) bool {
	for _, v := range r.Violations {
		if v.Code == reason {
			return true
		}
	}
	return false
}

type ValidateOptions struct {
	CheckFuture bool
	// PastBuffer lets a start that has just passed still count as future.
	PastBuffer time.Duration
}

func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{CheckFuture: true, PastBuffer: 15 * time.Minute}
}

// ValidateAppointmentTiming runs every timing check for an appointment
// starting at start and lasting durationMinutes. All checks run; the result
// lists every failure.
func (e *Engine) ValidateAppointmentTiming(start time.Time, durationMinutes int, bh BusinessHours, eh EmployeeHours, opts ValidateOptions) ValidationResult {
	end := e.conv.EndTime(start, durationMinutes)

	var violations []Violation
	fail := func(r Reason) {
		violations = append(violations, Violation{Code: r, Message: reasonMessages[r]})
	}

	if opts.CheckFuture {
		buffer := opts.PastBuffer
		if buffer < 0 {
			buffer = 0
		}
		if !e.conv.IsInFuture(start, buffer) {
			fail(ReasonInPast)
		}
	}
	if !e.IsWithinBusinessHours(start, bh) {
		fail(ReasonStartOutsideBusinessHours)
	}
	if !e.IsWithinBusinessHours(end, bh) {
		fail(ReasonEndOutsideBusinessHours)
	}
	if !e.IsEmployeeWorking(start, eh) {
		fail(ReasonEmployeeNotWorkingAtStart)
	}
	if !e.IsEmployeeWorking(end, eh) {
		fail(ReasonEmployeeNotWorkingAtEnd)
	}
	if !e.conv.IsSameCivilDay(start, end) {
		fail(ReasonCrossesMidnight)
	}

	res := ValidationResult{Valid: len(violations) == 0, Violations: violations}
	e.logger.Info("appointment timing validation",
		"start", e.conv.ToBusinessTime(start),
		"end", end,
		"duration_minutes", durationMinutes,
		"is_valid", res.Valid,
		"errors", res.Messages(),
	)
	return res
}

// IsValidAppointment is ValidateAppointmentTiming with default options,
// reduced to a yes or no.
func (e *Engine) IsValidAppointment(start time.Time, durationMinutes int, bh BusinessHours, eh EmployeeHours) bool {
	return e.ValidateAppointmentTiming(start, durationMinutes, bh, eh, DefaultValidateOptions()).Valid
}
