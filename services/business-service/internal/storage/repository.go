package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/iris/libs/db"
	"github.com/md-rashed-zaman/iris/libs/outbox"
)

var ErrNotFound = errors.New("not found")

// ScheduleChangedEvent is published whenever anything that feeds slot
// computation changes.
const ScheduleChangedEvent = "business.schedule.changed.v1"

type Repository struct {
	conn   db.Conn
	outbox *outbox.Repository
}

func NewRepository(conn db.Conn, outboxRepo *outbox.Repository) *Repository {
	if outboxRepo == nil {
		outboxRepo = outbox.NewRepository()
	}
	return &Repository{conn: conn, outbox: outboxRepo}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

type ScheduleChange struct {
	BusinessID string    `json:"business_id"`
	StaffID    string    `json:"staff_id,omitempty"`
	Change     string    `json:"change"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (r *Repository) scheduleChanged(ctx context.Context, tx pgx.Tx, businessID, staffID, change string) error {
	evt, err := outbox.NewEvent(ScheduleChangedEvent, "business", businessID, businessID, ScheduleChange{
		BusinessID: businessID,
		StaffID:    staffID,
		Change:     change,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, evt)
}

type BusinessProfile struct {
	BusinessID string `json:"business_id"`
	Name       string `json:"name"`
	Timezone   string `json:"timezone"`
}

// GetOrCreateProfile seeds a profile in defaultZone the first time a
// business is seen.
func (r *Repository) GetOrCreateProfile(ctx context.Context, businessID, defaultZone string) (BusinessProfile, error) {
	if _, err := r.conn.Exec(ctx, `
		INSERT INTO business_profiles (business_id, timezone)
		VALUES ($1, $2)
		ON CONFLICT (business_id) DO NOTHING
	`, businessID, defaultZone); err != nil {
		return BusinessProfile{}, err
	}

	var p BusinessProfile
	err := r.conn.QueryRow(ctx, `
		SELECT business_id::text, name, timezone
		FROM business_profiles
		WHERE business_id = $1
	`, businessID).Scan(&p.BusinessID, &p.Name, &p.Timezone)
	return p, err
}

func (r *Repository) UpdateProfile(ctx context.Context, p BusinessProfile) error {
	return db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO business_profiles (business_id, name, timezone)
			VALUES ($1, $2, $3)
			ON CONFLICT (business_id) DO UPDATE
			SET name = EXCLUDED.name,
				timezone = EXCLUDED.timezone,
				updated_at = now()
		`, p.BusinessID, p.Name, p.Timezone); err != nil {
			return err
		}
		return r.scheduleChanged(ctx, tx, p.BusinessID, "", "profile")
	})
}

// BusinessDay is one row of business_hours. Minutes count from midnight in
// the business timezone; nil means the bound was never set.
type BusinessDay struct {
	Weekday     int
	IsClosed    bool
	OpenMinute  *int
	CloseMinute *int
}

func (r *Repository) ListBusinessHours(ctx context.Context, businessID string) ([]BusinessDay, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT weekday, is_closed, open_minute, close_minute
		FROM business_hours
		WHERE business_id = $1
		ORDER BY weekday ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BusinessDay
	for rows.Next() {
		var d BusinessDay
		if err := rows.Scan(&d.Weekday, &d.IsClosed, &d.OpenMinute, &d.CloseMinute); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ReplaceBusinessHours swaps the whole weekly table in one transaction.
func (r *Repository) ReplaceBusinessHours(ctx context.Context, businessID string, days []BusinessDay) error {
	return db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM business_hours WHERE business_id = $1`, businessID); err != nil {
			return err
		}
		for _, d := range days {
			if _, err := tx.Exec(ctx, `
				INSERT INTO business_hours (business_id, weekday, is_closed, open_minute, close_minute)
				VALUES ($1, $2, $3, $4, $5)
			`, businessID, d.Weekday, d.IsClosed, d.OpenMinute, d.CloseMinute); err != nil {
				return err
			}
		}
		return r.scheduleChanged(ctx, tx, businessID, "", "business_hours")
	})
}

type BusinessService struct {
	ID           string    `json:"id"`
	BusinessID   string    `json:"business_id"`
	Name         string    `json:"name"`
	DurationMins int       `json:"duration_minutes"`
	Price        string    `json:"price"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *Repository) CreateService(ctx context.Context, businessID, name string, durationMinutes int, price string, description string) (string, error) {
	id := uuid.NewString()
	_, err := r.conn.Exec(ctx, `
		INSERT INTO business_services (id, business_id, name, duration_minutes, price, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, businessID, name, durationMinutes, price, description)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListServices(ctx context.Context, businessID string, limit int) ([]BusinessService, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.conn.Query(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, price::text, description, created_at
		FROM business_services
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BusinessService
	for rows.Next() {
		var s BusinessService
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMins, &s.Price, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type Staff struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
	Name       string `json:"name"`
	IsActive   bool   `json:"is_active"`
}

// Default schedule for new staff: Monday to Friday, 09:00-17:00.
const (
	defaultShiftStart = 9 * 60
	defaultShiftEnd   = 17 * 60
)

func (r *Repository) CreateStaff(ctx context.Context, businessID, name string, isActive bool) (string, error) {
	var id string
	err := db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO staff (business_id, name, is_active)
			VALUES ($1, $2, $3)
			RETURNING id::text
		`, businessID, name, isActive).Scan(&id); err != nil {
			return err
		}

		for wd := 0; wd <= 6; wd++ {
			isWorking := wd >= 1 && wd <= 5
			var start, end *int
			if isWorking {
				start, end = intPtr(defaultShiftStart), intPtr(defaultShiftEnd)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO staff_working_hours (staff_id, weekday, is_working, start_minute, end_minute)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (staff_id, weekday) DO NOTHING
			`, id, wd, isWorking, start, end); err != nil {
				return err
			}
		}
		return r.scheduleChanged(ctx, tx, businessID, id, "staff_created")
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListStaff(ctx context.Context, businessID string, limit int) ([]Staff, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.conn.Query(ctx, `
		SELECT id::text, business_id::text, name, is_active
		FROM staff
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Staff
	for rows.Next() {
		var s Staff
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type WorkingHours struct {
	StaffID     string
	Weekday     int
	IsWorking   bool
	StartMinute *int
	EndMinute   *int
}

func (r *Repository) ListWorkingHours(ctx context.Context, businessID, staffID string) ([]WorkingHours, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT h.staff_id::text, h.weekday, h.is_working, h.start_minute, h.end_minute
		FROM staff_working_hours h
		JOIN staff s ON s.id = h.staff_id
		WHERE s.business_id = $1 AND h.staff_id = $2
		ORDER BY h.weekday ASC
	`, businessID, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorkingHours
	for rows.Next() {
		var wh WorkingHours
		if err := rows.Scan(&wh.StaffID, &wh.Weekday, &wh.IsWorking, &wh.StartMinute, &wh.EndMinute); err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertWorkingHours(ctx context.Context, businessID string, wh WorkingHours) error {
	return db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		if err := staffExists(ctx, tx, businessID, wh.StaffID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_working_hours (staff_id, weekday, is_working, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (staff_id, weekday) DO UPDATE
			SET is_working = EXCLUDED.is_working,
				start_minute = EXCLUDED.start_minute,
				end_minute = EXCLUDED.end_minute
		`, wh.StaffID, wh.Weekday, wh.IsWorking, wh.StartMinute, wh.EndMinute); err != nil {
			return err
		}
		return r.scheduleChanged(ctx, tx, businessID, wh.StaffID, "working_hours")
	})
}

type TimeOff struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staff_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *Repository) CreateTimeOff(ctx context.Context, businessID, staffID string, startTime, endTime time.Time, reason string) (string, error) {
	id := uuid.NewString()
	err := db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		if err := staffExists(ctx, tx, businessID, staffID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_time_off (id, staff_id, start_time, end_time, reason)
			VALUES ($1, $2, $3, $4, $5)
		`, id, staffID, startTime, endTime, reason); err != nil {
			return err
		}
		return r.scheduleChanged(ctx, tx, businessID, staffID, "time_off")
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListTimeOff(ctx context.Context, businessID, staffID string, from, to time.Time, limit int) ([]TimeOff, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.conn.Query(ctx, `
		SELECT t.id::text, t.staff_id::text, t.start_time, t.end_time, t.reason, t.created_at
		FROM staff_time_off t
		JOIN staff s ON s.id = t.staff_id
		WHERE s.business_id = $1
			AND t.staff_id = $2
			AND t.end_time > $3
			AND t.start_time < $4
		ORDER BY t.start_time ASC
		LIMIT $5
	`, businessID, staffID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimeOff
	for rows.Next() {
		var t TimeOff
		if err := rows.Scan(&t.ID, &t.StaffID, &t.StartTime, &t.EndTime, &t.Reason, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteTimeOff(ctx context.Context, businessID, timeOffID string) error {
	return db.WithTx(ctx, r.conn, func(tx pgx.Tx) error {
		var staffID string
		err := tx.QueryRow(ctx, `
			DELETE FROM staff_time_off t
			USING staff s
			WHERE t.staff_id = s.id
			  AND s.business_id = $1
			  AND t.id = $2
			RETURNING t.staff_id::text
		`, businessID, timeOffID).Scan(&staffID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return r.scheduleChanged(ctx, tx, businessID, staffID, "time_off")
	})
}

func staffExists(ctx context.Context, q db.Querier, businessID, staffID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM staff WHERE id = $1 AND business_id = $2
		)
	`, staffID, businessID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func intPtr(v int) *int { return &v }
