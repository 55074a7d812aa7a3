package model

import "time"

// Appointment statuses. Only booked appointments occupy staff time.
const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// Appointment is a booked or cancelled visit. Times are UTC instants; the
// business zone is applied only when presenting them.
type Appointment struct {
	ID            string
	BusinessID    string
	ServiceID     string
	StaffID       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	StartTime     time.Time
	EndTime       time.Time
	Status        string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
}

func (a Appointment) Duration() time.Duration { return a.EndTime.Sub(a.StartTime) }

// Cancelled reports a completed cancellation.
func (a Appointment) Cancelled() bool {
	return a.Status == StatusCancelled && a.CancelledAt != nil
}

// Cancellable reports whether Cancel may move a to StatusCancelled.
func (a Appointment) Cancellable() bool { return a.Status == StatusBooked }
