package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"cloud.google.com/go/civil"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/iris/libs/civiltime"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/model"
)

type countingSource struct {
	calls int
	snap  model.ScheduleSnapshot
	err   error
}

func (s *countingSource) LoadSchedule(_ context.Context, businessID, staffID string) (model.ScheduleSnapshot, error) {
	s.calls++
	if s.err != nil {
		return model.ScheduleSnapshot{}, s.err
	}
	snap := s.snap
	snap.BusinessID, snap.StaffID = businessID, staffID
	return snap, nil
}

func minutes(v int) *int { return &v }

func weekdaySnapshot() model.ScheduleSnapshot {
	return model.ScheduleSnapshot{
		Timezone: "America/Argentina/Buenos_Aires",
		Business: []model.BusinessDay{
			{Weekday: 1, OpenMinute: minutes(9 * 60), CloseMinute: minutes(18 * 60)},
			{Weekday: 0, IsClosed: true},
		},
		Staff: []model.StaffDay{
			{Weekday: 1, IsWorking: true, StartMinute: minutes(10 * 60), EndMinute: minutes(14 * 60)},
		},
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLoad_CachesSnapshot(t *testing.T) {
	mr, rdb := newRedis(t)
	src := &countingSource{snap: weekdaySnapshot()}
	l := NewLoader(src, rdb, time.Minute, nil)

	for i := 0; i < 2; i++ {
		s, err := l.Load(context.Background(), "b1", "s1")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if s.Engine.Converter().Zone() != "America/Argentina/Buenos_Aires" {
			t.Fatalf("unexpected zone %q", s.Engine.Converter().Zone())
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected one source load, got %d", src.calls)
	}
	if ttl := mr.TTL("schedule:b1:s1"); ttl != time.Minute {
		t.Fatalf("expected cache ttl of a minute, got %v", ttl)
	}
}

func TestLoad_BuildsEngineTypes(t *testing.T) {
	now := time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC)
	l := NewLoader(&countingSource{snap: weekdaySnapshot()}, nil, 0, nil, civiltime.WithClock(func() time.Time { return now }))

	s, err := l.Load(context.Background(), "b1", "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Business[civiltime.Sunday].IsClosed || civiltime.FormatClock(*s.Business[civiltime.Monday].Open) != "09:00" {
		t.Fatalf("unexpected business hours %+v", s.Business)
	}
	slots := s.Engine.GetAvailableSlots(civil.Date{Year: 2024, Month: time.January, Day: 15}, 60, s.Business, s.Employee, nil, 30)
	if len(slots) != 7 || civiltime.FormatClock(civil.TimeOf(slots[0])) != "10:00" {
		t.Fatalf("expected 7 hourly slots from 10:00, got %v", slots)
	}
}

func TestLoad_SourceErrorAndBadRows(t *testing.T) {
	boom := errors.New("db down")
	if _, err := NewLoader(&countingSource{err: boom}, nil, 0, nil).Load(context.Background(), "b1", "s1"); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}

	bad := weekdaySnapshot()
	bad.Staff[0].EndMinute = minutes(24 * 60)
	if _, err := NewLoader(&countingSource{snap: bad}, nil, 0, nil).Load(context.Background(), "b1", "s1"); !errors.Is(err, civiltime.ErrInvalidTime) {
		t.Fatalf("expected invalid time, got %v", err)
	}
}

func TestLoad_RedisDownFallsBackToSource(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	src := &countingSource{snap: weekdaySnapshot()}
	if _, err := NewLoader(src, rdb, time.Minute, nil).Load(context.Background(), "b1", "s1"); err != nil {
		t.Fatalf("expected load without cache, got %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected source to be used, got %d calls", src.calls)
	}
}

func TestInvalidate_RemovesOnlyThatBusiness(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewLoader(&countingSource{snap: weekdaySnapshot()}, rdb, time.Minute, nil)
	ctx := context.Background()
	for _, k := range [][2]string{{"b1", "s1"}, {"b1", "s2"}, {"b2", "s1"}} {
		if _, err := l.Load(ctx, k[0], k[1]); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}

	n, err := l.Invalidate(ctx, "b1")
	if err != nil || n != 2 {
		t.Fatalf("Invalidate: n=%d err=%v", n, err)
	}
	if mr.Exists("schedule:b1:s1") || !mr.Exists("schedule:b2:s1") {
		t.Fatalf("unexpected keys left: %v", mr.Keys())
	}
}
