package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/iris/services/booking-service/internal/model"
)

// LoadSchedule reads the business profile zone, the business week and the
// staff member's week. A business without a profile gets an empty zone,
// which the converter resolves to the default.
func (r *BookingRepository) LoadSchedule(ctx context.Context, businessID, staffID string) (model.ScheduleSnapshot, error) {
	snap := model.ScheduleSnapshot{BusinessID: businessID, StaffID: staffID}

	var active bool
	err := r.conn.QueryRow(ctx, `
		SELECT is_active FROM staff WHERE id = $1 AND business_id = $2
	`, staffID, businessID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, err
	}
	if !active {
		return snap, ErrStaffNotBookable
	}

	err = r.conn.QueryRow(ctx, `
		SELECT timezone FROM business_profiles WHERE business_id = $1
	`, businessID).Scan(&snap.Timezone)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return snap, err
	}

	rows, err := r.conn.Query(ctx, `
		SELECT weekday, is_closed, open_minute, close_minute
		FROM business_hours
		WHERE business_id = $1
		ORDER BY weekday
	`, businessID)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var d model.BusinessDay
		if err := rows.Scan(&d.Weekday, &d.IsClosed, &d.OpenMinute, &d.CloseMinute); err != nil {
			rows.Close()
			return snap, err
		}
		snap.Business = append(snap.Business, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = r.conn.Query(ctx, `
		SELECT weekday, is_working, start_minute, end_minute
		FROM staff_working_hours
		WHERE staff_id = $1
		ORDER BY weekday
	`, staffID)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	for rows.Next() {
		var d model.StaffDay
		if err := rows.Scan(&d.Weekday, &d.IsWorking, &d.StartMinute, &d.EndMinute); err != nil {
			return snap, err
		}
		snap.Staff = append(snap.Staff, d)
	}
	return snap, rows.Err()
}
