// Package schedule loads the hours a slot computation needs and caches
// them in Redis, keyed per business and staff member.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/iris/libs/civiltime"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/model"
)

const keyPrefix = "schedule:"

type Source interface {
	LoadSchedule(ctx context.Context, businessID, staffID string) (model.ScheduleSnapshot, error)
}

// Schedule is a snapshot resolved into engine types.
type Schedule struct {
	Snapshot model.ScheduleSnapshot
	Engine   *availability.Engine
	Business availability.BusinessHours
	Employee availability.EmployeeHours
}

type Loader struct {
	source Source
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
	opts   []civiltime.Option
}

// NewLoader caches through rdb when it is non-nil. opts are applied to
// every converter the loader builds.
func NewLoader(source Source, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger, opts ...civiltime.Option) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Loader{source: source, rdb: rdb, ttl: ttl, logger: logger, opts: opts}
}

func cacheKey(businessID, staffID string) string {
	return keyPrefix + businessID + ":" + staffID
}

// Load returns the schedule for one staff member. Cache errors are logged
// and never fail the call.
func (l *Loader) Load(ctx context.Context, businessID, staffID string) (Schedule, error) {
	snap, hit := l.cached(ctx, businessID, staffID)
	if !hit {
		var err error
		snap, err = l.source.LoadSchedule(ctx, businessID, staffID)
		if err != nil {
			return Schedule{}, err
		}
		l.store(ctx, snap)
	}
	return l.Build(snap)
}

func (l *Loader) cached(ctx context.Context, businessID, staffID string) (model.ScheduleSnapshot, bool) {
	if l.rdb == nil {
		return model.ScheduleSnapshot{}, false
	}
	raw, err := l.rdb.Get(ctx, cacheKey(businessID, staffID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.logger.Warn("schedule cache read failed", "business_id", businessID, "err", err)
		}
		return model.ScheduleSnapshot{}, false
	}
	var snap model.ScheduleSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		l.logger.Warn("schedule cache entry corrupt", "business_id", businessID, "err", err)
		return model.ScheduleSnapshot{}, false
	}
	return snap, true
}

func (l *Loader) store(ctx context.Context, snap model.ScheduleSnapshot) {
	if l.rdb == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := l.rdb.Set(ctx, cacheKey(snap.BusinessID, snap.StaffID), raw, l.ttl).Err(); err != nil {
		l.logger.Warn("schedule cache write failed", "business_id", snap.BusinessID, "err", err)
	}
}

// Invalidate drops every cached schedule of a business and reports how many
// keys were removed.
func (l *Loader) Invalidate(ctx context.Context, businessID string) (int, error) {
	if l.rdb == nil {
		return 0, nil
	}
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := l.rdb.Scan(ctx, cursor, keyPrefix+businessID+":*", 100).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := l.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// Build resolves a snapshot into engine types.
func (l *Loader) Build(snap model.ScheduleSnapshot) (Schedule, error) {
	opts := append([]civiltime.Option{civiltime.WithLogger(l.logger)}, l.opts...)
	conv := civiltime.New(snap.Timezone, opts...)

	businessDays := make([]availability.DayHours, 0, len(snap.Business))
	for _, d := range snap.Business {
		open, err := clockPtr(d.OpenMinute)
		if err != nil {
			return Schedule{}, fmt.Errorf("business weekday %d: %w", d.Weekday, err)
		}
		closeAt, err := clockPtr(d.CloseMinute)
		if err != nil {
			return Schedule{}, fmt.Errorf("business weekday %d: %w", d.Weekday, err)
		}
		businessDays = append(businessDays, availability.DayHours{
			Weekday:  civiltime.Weekday(d.Weekday),
			Open:     open,
			Close:    closeAt,
			IsClosed: d.IsClosed,
		})
	}
	bh, err := availability.NewBusinessHours(businessDays...)
	if err != nil {
		return Schedule{}, err
	}

	staffDays := make([]availability.EmployeeDayHours, 0, len(snap.Staff))
	for _, d := range snap.Staff {
		start, err := clockPtr(d.StartMinute)
		if err != nil {
			return Schedule{}, fmt.Errorf("staff weekday %d: %w", d.Weekday, err)
		}
		end, err := clockPtr(d.EndMinute)
		if err != nil {
			return Schedule{}, fmt.Errorf("staff weekday %d: %w", d.Weekday, err)
		}
		staffDays = append(staffDays, availability.EmployeeDayHours{
			Weekday:   civiltime.Weekday(d.Weekday),
			Start:     start,
			End:       end,
			IsWorking: d.IsWorking,
		})
	}
	eh, err := availability.NewEmployeeHours(staffDays...)
	if err != nil {
		return Schedule{}, err
	}

	return Schedule{
		Snapshot: snap,
		Engine:   availability.New(conv, l.logger),
		Business: bh,
		Employee: eh,
	}, nil
}

func clockPtr(m *int) (*civil.Time, error) {
	if m == nil {
		return nil, nil
	}
	t, err := civiltime.MinutesToClock(*m)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
