package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/iris/libs/httpx"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/storage"
)

type Store interface {
	Book(ctx context.Context, appt *model.Appointment, idempotencyKey string) (storage.BookResult, error)
	Cancel(ctx context.Context, businessID, appointmentID, reason string) (model.Appointment, error)
	ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.Appointment, error)
	ListBusyIntervals(ctx context.Context, businessID, staffID string, from, to time.Time) ([]availability.Interval, error)
	ServiceDuration(ctx context.Context, businessID, serviceID string) (int, error)
}

type ScheduleLoader interface {
	Load(ctx context.Context, businessID, staffID string) (schedule.Schedule, error)
}

type Options struct {
	SlotStepMinutes int
	PastBuffer      time.Duration
}

type BookingHandler struct {
	repo      Store
	schedules ScheduleLoader
	logger    *slog.Logger
	opts      Options
}

func NewBookingHandler(repo Store, schedules ScheduleLoader, logger *slog.Logger, opts Options) *BookingHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.SlotStepMinutes <= 0 {
		opts.SlotStepMinutes = availability.DefaultSlotStep
	}
	if opts.PastBuffer < 0 {
		opts.PastBuffer = 0
	}
	return &BookingHandler{repo: repo, schedules: schedules, logger: logger, opts: opts}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", httpx.Methods(map[string]http.HandlerFunc{http.MethodGet: h.Slots}))
	mux.HandleFunc("/api/v1/public/validate", httpx.Methods(map[string]http.HandlerFunc{http.MethodPost: h.Validate}))
	mux.HandleFunc("/api/v1/public/book", httpx.Methods(map[string]http.HandlerFunc{http.MethodPost: h.Create}))
	mux.HandleFunc("/api/v1/appointments", httpx.Methods(map[string]http.HandlerFunc{http.MethodGet: h.List}))
	mux.HandleFunc("/api/v1/appointments/cancel", httpx.Methods(map[string]http.HandlerFunc{http.MethodPost: h.Cancel}))
}

const maxDurationMinutes = 24*60 - 1

// resolveDuration prefers the service's configured duration over an explicit
// one.
func (h *BookingHandler) resolveDuration(ctx context.Context, businessID, serviceID string, explicit int) (int, int, string) {
	if serviceID != "" {
		mins, err := h.repo.ServiceDuration(ctx, businessID, serviceID)
		switch {
		case storage.IsNotFound(err):
			return 0, http.StatusNotFound, "service not found"
		case err != nil:
			h.logger.Error("service duration lookup failed", "business_id", businessID, "service_id", serviceID, "err", err)
			return 0, http.StatusInternalServerError, "failed to load service"
		}
		return mins, 0, ""
	}
	if explicit <= 0 || explicit > maxDurationMinutes {
		return 0, http.StatusBadRequest, "service_id or duration_minutes (1-1439) required"
	}
	return explicit, 0, ""
}

// loadSchedule maps loader failures to HTTP errors. ok is false once a
// response has been written.
func (h *BookingHandler) loadSchedule(w http.ResponseWriter, r *http.Request, businessID, staffID string) (schedule.Schedule, bool) {
	s, err := h.schedules.Load(r.Context(), businessID, staffID)
	switch {
	case err == nil:
		return s, true
	case storage.IsNotFound(err):
		http.Error(w, "staff not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrStaffNotBookable):
		http.Error(w, storage.ErrStaffNotBookable.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("schedule load failed", "business_id", businessID, "staff_id", staffID, "err", err)
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
	}
	return schedule.Schedule{}, false
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// scheduleView is a loaded schedule plus the resolved appointment length.
type scheduleView struct {
	schedule.Schedule
	Duration int
}
