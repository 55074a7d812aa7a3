package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/iris/libs/db"
	"github.com/md-rashed-zaman/iris/libs/outbox"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/model"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrSlotTaken        = errors.New("time slot already booked")
	ErrNotCancellable   = errors.New("appointment cannot be cancelled")
	ErrStaffNotBookable = errors.New("staff member is not bookable")
)

const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventScheduleChanged      = "business.schedule.changed.v1"
)

type BookingRepository struct {
	conn   db.Conn
	outbox *outbox.Repository
}

func NewBookingRepository(conn db.Conn, outboxRepo *outbox.Repository) *BookingRepository {
	if outboxRepo == nil {
		outboxRepo = outbox.NewRepository()
	}
	return &BookingRepository{conn: conn, outbox: outboxRepo}
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

type BookResult struct {
	AppointmentID string
	// Replayed is set when the idempotency key matched an earlier booking.
	Replayed bool
}

// Book inserts appt if its interval is still free for the staff member.
// Concurrent bookings for the same staff member are serialized on the staff
// row; the exclusion constraint on appointments is the last guard.
func (r *BookingRepository) Book(ctx context.Context, appt *model.Appointment, idempotencyKey string) (BookResult, error) {
	var res BookResult
	err := db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		if idempotencyKey != "" {
			prior, err := r.lockIdempotencyKey(ctx, tx, appt.BusinessID, idempotencyKey)
			if err != nil {
				return err
			}
			if prior != "" {
				res = BookResult{AppointmentID: prior, Replayed: true}
				return nil
			}
		}

		var active bool
		err := tx.QueryRow(ctx, `
			SELECT is_active FROM staff
			WHERE id = $1 AND business_id = $2
			FOR UPDATE
		`, appt.StaffID, appt.BusinessID).Scan(&active)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !active {
			return ErrStaffNotBookable
		}

		busy, err := listBusy(ctx, tx, appt.BusinessID, appt.StaffID, appt.StartTime, appt.EndTime)
		if err != nil {
			return err
		}
		if len(busy) > 0 {
			return ErrSlotTaken
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO appointments
				(business_id, service_id, staff_id, customer_name, customer_email, customer_phone, start_time, end_time, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id::text
		`, appt.BusinessID, nullIfEmpty(appt.ServiceID), appt.StaffID, appt.CustomerName, appt.CustomerEmail, appt.CustomerPhone,
			appt.StartTime, appt.EndTime, model.StatusBooked).Scan(&appt.ID); err != nil {
			if IsConflict(err) {
				return ErrSlotTaken
			}
			return err
		}
		appt.Status = model.StatusBooked

		evt, err := outbox.NewEvent(EventAppointmentBooked, "appointment", appt.ID, appt.BusinessID, appointmentEvent(*appt))
		if err != nil {
			return err
		}
		if err := r.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}

		if idempotencyKey != "" {
			if _, err := tx.Exec(ctx, `
				UPDATE booking_idempotency_keys
				SET appointment_id = $3, updated_at = now()
				WHERE business_id = $1 AND idempotency_key = $2
			`, appt.BusinessID, idempotencyKey, appt.ID); err != nil {
				return err
			}
		}
		res = BookResult{AppointmentID: appt.ID}
		return nil
	})
	return res, err
}

// lockIdempotencyKey returns the appointment booked under key, or "" after
// claiming the key for this transaction.
func (r *BookingRepository) lockIdempotencyKey(ctx context.Context, tx pgx.Tx, businessID, key string) (string, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (business_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (business_id, idempotency_key) DO NOTHING
	`, businessID, key); err != nil {
		return "", err
	}
	var appointmentID string
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, '')
		FROM booking_idempotency_keys
		WHERE business_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, businessID, key).Scan(&appointmentID)
	return appointmentID, err
}

// Cancel marks a booked appointment cancelled. Cancelling twice returns the
// first cancellation unchanged.
func (r *BookingRepository) Cancel(ctx context.Context, businessID, appointmentID, reason string) (model.Appointment, error) {
	var appt model.Appointment
	err := db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		var err error
		appt, err = getForUpdate(ctx, tx, businessID, appointmentID)
		if err != nil {
			return err
		}
		if appt.Cancelled() {
			return nil
		}
		if !appt.Cancellable() {
			return ErrNotCancellable
		}

		var cancelledAt time.Time
		if err := tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = 'cancelled',
				cancelled_at = now(),
				cancellation_reason = $3
			WHERE id = $1 AND business_id = $2
			RETURNING cancelled_at
		`, appt.ID, businessID, reason).Scan(&cancelledAt); err != nil {
			return err
		}
		appt.Status = model.StatusCancelled
		appt.CancelledAt = &cancelledAt
		appt.CancelReason = reason

		evt, err := outbox.NewEvent(EventAppointmentCancelled, "appointment", appt.ID, appt.BusinessID, appointmentEvent(appt))
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	return appt, err
}

const appointmentColumns = `id::text, business_id::text, COALESCE(service_id::text, ''), staff_id::text, customer_name, customer_email, customer_phone,
	start_time, end_time, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.BusinessID,
		&appt.ServiceID,
		&appt.StaffID,
		&appt.CustomerName,
		&appt.CustomerEmail,
		&appt.CustomerPhone,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&appt.CancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	return appt, err
}

func getForUpdate(ctx context.Context, tx pgx.Tx, businessID, appointmentID string) (model.Appointment, error) {
	appt, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND business_id = $2
		FOR UPDATE
	`, appointmentID, businessID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	return appt, err
}

func (r *BookingRepository) ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.conn.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

// ListBusyIntervals returns booked appointments and time off of a staff
// member that intersect [from, to), ordered by start.
func (r *BookingRepository) ListBusyIntervals(ctx context.Context, businessID, staffID string, from, to time.Time) ([]availability.Interval, error) {
	return listBusy(ctx, r.conn, businessID, staffID, from, to)
}

func listBusy(ctx context.Context, q db.Querier, businessID, staffID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := q.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE business_id = $1
			AND staff_id = $2
			AND status = 'booked'
			AND start_time < $4
			AND end_time > $3
		UNION ALL
		SELECT t.start_time, t.end_time
		FROM staff_time_off t
		JOIN staff s ON s.id = t.staff_id
		WHERE s.business_id = $1
			AND t.staff_id = $2
			AND t.start_time < $4
			AND t.end_time > $3
		ORDER BY 1
	`, businessID, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (r *BookingRepository) ServiceDuration(ctx context.Context, businessID, serviceID string) (int, error) {
	var mins int
	err := r.conn.QueryRow(ctx, `
		SELECT duration_minutes
		FROM business_services
		WHERE business_id = $1 AND id = $2
	`, businessID, serviceID).Scan(&mins)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return mins, err
}

type appointmentPayload struct {
	AppointmentID string `json:"appointment_id"`
	BusinessID    string `json:"business_id"`
	StaffID       string `json:"staff_id"`
	ServiceID     string `json:"service_id,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Minutes       int    `json:"duration_minutes"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func appointmentEvent(a model.Appointment) appointmentPayload {
	p := appointmentPayload{
		AppointmentID: a.ID,
		BusinessID:    a.BusinessID,
		StaffID:       a.StaffID,
		ServiceID:     a.ServiceID,
		CustomerName:  a.CustomerName,
		CustomerEmail: a.CustomerEmail,
		CustomerPhone: a.CustomerPhone,
		StartTime:     a.StartTime.UTC().Format(time.RFC3339),
		EndTime:       a.EndTime.UTC().Format(time.RFC3339),
		Minutes:       int(a.Duration().Minutes()),
		Status:        a.Status,
		Reason:        a.CancelReason,
	}
	if a.CancelledAt != nil {
		p.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return p
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
