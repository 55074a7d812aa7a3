package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/iris/libs/civiltime"
	"github.com/md-rashed-zaman/iris/libs/httpx"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/storage"
)

type fakeStore struct {
	busy      []availability.Interval
	durations map[string]int
	booked    []model.Appointment
	bookErr   error
	cancelErr error
}

func (f *fakeStore) Book(_ context.Context, appt *model.Appointment, _ string) (storage.BookResult, error) {
	if f.bookErr != nil {
		return storage.BookResult{}, f.bookErr
	}
	appt.ID = "appt-1"
	f.booked = append(f.booked, *appt)
	return storage.BookResult{AppointmentID: appt.ID}, nil
}

func (f *fakeStore) Cancel(_ context.Context, businessID, appointmentID, _ string) (model.Appointment, error) {
	if f.cancelErr != nil {
		return model.Appointment{}, f.cancelErr
	}
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	return model.Appointment{ID: appointmentID, BusinessID: businessID, Status: model.StatusCancelled, CancelledAt: &now}, nil
}

func (f *fakeStore) ListByBusiness(context.Context, string, int) ([]model.Appointment, error) {
	return f.booked, nil
}

func (f *fakeStore) ListBusyIntervals(context.Context, string, string, time.Time, time.Time) ([]availability.Interval, error) {
	return f.busy, nil
}

func (f *fakeStore) ServiceDuration(_ context.Context, _, serviceID string) (int, error) {
	if d, ok := f.durations[serviceID]; ok {
		return d, nil
	}
	return 0, storage.ErrNotFound
}

type staticSource struct{}

func minutes(v int) *int { return &v }

func (staticSource) LoadSchedule(_ context.Context, businessID, staffID string) (model.ScheduleSnapshot, error) {
	if staffID != "s1" {
		return model.ScheduleSnapshot{}, storage.ErrNotFound
	}
	return model.ScheduleSnapshot{
		BusinessID: businessID,
		StaffID:    staffID,
		Timezone:   "America/Argentina/Buenos_Aires",
		Business:   []model.BusinessDay{{Weekday: 1, OpenMinute: minutes(9 * 60), CloseMinute: minutes(18 * 60)}},
		Staff:      []model.StaffDay{{Weekday: 1, IsWorking: true, StartMinute: minutes(10 * 60), EndMinute: minutes(14 * 60)}},
	}, nil
}

// 09:00 in Buenos Aires on Monday 2024-01-15.
var fixedNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func newMux(store *fakeStore) *http.ServeMux {
	loader := schedule.NewLoader(staticSource{}, nil, 0, nil, civiltime.WithClock(func() time.Time { return fixedNow }))
	mux := http.NewServeMux()
	NewBookingHandler(store, loader, nil, Options{SlotStepMinutes: 60, PastBuffer: 15 * time.Minute}).Register(mux)
	return mux
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSlots_SkipsBusyIntervals(t *testing.T) {
	store := &fakeStore{busy: []availability.Interval{{
		Start: time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC),
	}}}
	rec := serve(newMux(store), httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?business_id=b1&staff_id=s1&date=2024-01-15&duration_minutes=60", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var slots []slotItem
	if err := json.NewDecoder(rec.Body).Decode(&slots); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"2024-01-15T10:00:00-03:00", "2024-01-15T12:00:00-03:00", "2024-01-15T13:00:00-03:00"}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %+v", want, slots)
	}
	for i, s := range slots {
		if s.StartTime != want[i] {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], s.StartTime)
		}
	}
	if slots[2].EndTime != "2024-01-15T14:00:00-03:00" {
		t.Fatalf("unexpected end %s", slots[2].EndTime)
	}
}

func TestSlots_Errors(t *testing.T) {
	mux := newMux(&fakeStore{})
	for target, want := range map[string]int{
		"/api/v1/public/slots?business_id=b1&staff_id=s1":                                     http.StatusBadRequest,
		"/api/v1/public/slots?business_id=b1&staff_id=s1&date=15-01-2024":                     http.StatusBadRequest,
		"/api/v1/public/slots?business_id=b1&staff_id=s1&date=2024-01-15":                     http.StatusBadRequest,
		"/api/v1/public/slots?business_id=b1&staff_id=s1&date=2024-01-15&service_id=x":        http.StatusNotFound,
		"/api/v1/public/slots?business_id=b1&staff_id=s9&date=15/01/2024&duration_minutes=30": http.StatusNotFound,
	} {
		if rec := serve(mux, httptest.NewRequest(http.MethodGet, target, nil)); rec.Code != want {
			t.Fatalf("%s: expected %d, got %d", target, want, rec.Code)
		}
	}
}

func TestValidate_ReportsCodes(t *testing.T) {
	body := `{"business_id":"b1","staff_id":"s1","duration_minutes":30,"start_time":"2024-01-15T08:00:00-03:00"}`
	rec := serve(newMux(&fakeStore{}), httptest.NewRequest(http.MethodPost, "/api/v1/public/validate", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp validateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Valid || resp.BusinessTime != "15/01/2024 08:00 (-03)" {
		t.Fatalf("unexpected response %+v", resp)
	}
	want := []availability.Reason{
		availability.ReasonInPast,
		availability.ReasonStartOutsideBusinessHours,
		availability.ReasonEndOutsideBusinessHours,
		availability.ReasonEmployeeNotWorkingAtStart,
		availability.ReasonEmployeeNotWorkingAtEnd,
	}
	if len(resp.Codes) != len(want) {
		t.Fatalf("expected %v, got %v", want, resp.Codes)
	}
	for i := range want {
		if resp.Codes[i] != want[i] {
			t.Fatalf("code %d: expected %s, got %s", i, want[i], resp.Codes[i])
		}
	}
}

func TestCreate(t *testing.T) {
	store := &fakeStore{durations: map[string]int{"cut": 45}}
	mux := newMux(store)

	body := `{"business_id":"b1","staff_id":"s1","service_id":"cut","customer_name":"Lucia","start_time":"2024-01-15T10:30:00-03:00"}`
	rec := serve(mux, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	if len(store.booked) != 1 {
		t.Fatalf("expected one booking")
	}
	got := store.booked[0]
	if !got.StartTime.Equal(time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC)) || got.EndTime.Sub(got.StartTime) != 45*time.Minute || got.StartTime.Location() != time.UTC {
		t.Fatalf("unexpected stored interval %v - %v", got.StartTime, got.EndTime)
	}

	late := `{"business_id":"b1","staff_id":"s1","duration_minutes":60,"customer_name":"Lucia","start_time":"2024-01-15T13:30:00-03:00"}`
	rec = serve(mux, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(late)))
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "employee_not_working_at_end") {
		t.Fatalf("expected 422 naming the end check, got %d %s", rec.Code, rec.Body.String())
	}

	store.bookErr = storage.ErrSlotTaken
	rec = serve(mux, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCancelAndList(t *testing.T) {
	store := &fakeStore{}
	mux := newMux(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(`{"appointment_id":"a1"}`))
	req.Header.Set(httpx.BusinessIDHeader, "b1")
	rec := serve(mux, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"cancelled"`) {
		t.Fatalf("unexpected cancel response %d %s", rec.Code, rec.Body.String())
	}

	store.cancelErr = storage.ErrNotCancellable
	rec = serve(mux, httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(`{"business_id":"b1","appointment_id":"a1"}`)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	if rec := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without business header, got %d", rec.Code)
	}
}
