package handlers

import (
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/md-rashed-zaman/iris/libs/civiltime"
	"github.com/md-rashed-zaman/iris/libs/httpx"
	otelx "github.com/md-rashed-zaman/iris/libs/otel"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/availability"
)

var tracer = otelx.Tracer("booking-service/handlers")

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	businessID := strings.TrimSpace(q.Get("business_id"))
	staffID := strings.TrimSpace(q.Get("staff_id"))
	dateStr := strings.TrimSpace(q.Get("date"))
	if businessID == "" || staffID == "" || dateStr == "" {
		http.Error(w, "business_id, staff_id and date are required", http.StatusBadRequest)
		return
	}
	date, err := civiltime.ParseDate(dateStr)
	if err != nil {
		http.Error(w, "invalid date (YYYY-MM-DD or DD/MM/YYYY)", http.StatusBadRequest)
		return
	}
	explicit, err := queryInt(r, "duration_minutes")
	if err != nil {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return
	}
	step, err := queryInt(r, "slot_step_minutes")
	if err != nil || step < 0 || step > 240 {
		http.Error(w, "invalid slot_step_minutes", http.StatusBadRequest)
		return
	}
	if step == 0 {
		step = h.opts.SlotStepMinutes
	}

	ctx, span := tracer.Start(r.Context(), "availability.slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("business_id", businessID),
		attribute.String("staff_id", staffID),
		attribute.String("date", date.String()),
	)

	duration, status, msg := h.resolveDuration(ctx, businessID, strings.TrimSpace(q.Get("service_id")), explicit)
	if status != 0 {
		http.Error(w, msg, status)
		return
	}
	sched, ok := h.loadSchedule(w, r.WithContext(ctx), businessID, staffID)
	if !ok {
		return
	}
	conv := sched.Engine.Converter()

	dayStart := conv.Combine(date, civil.Time{})
	dayEnd := conv.Combine(date.AddDays(1), civil.Time{})
	busy, err := h.repo.ListBusyIntervals(ctx, businessID, staffID, dayStart, dayEnd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "busy intervals")
		h.logger.Error("busy interval lookup failed", "business_id", businessID, "staff_id", staffID, "err", err)
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	slots := sched.Engine.GetAvailableSlots(date, duration, sched.Business, sched.Employee, busy, step)
	slots = availability.FilterPast(slots, conv.Now())
	span.SetAttributes(attribute.Int("slots", len(slots)), attribute.String("timezone", conv.Zone()))

	out := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotItem{
			StartTime: s.Format(time.RFC3339),
			EndTime:   conv.EndTime(s, duration).Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type validateRequest struct {
	BusinessID      string `json:"business_id"`
	StaffID         string `json:"staff_id"`
	ServiceID       string `json:"service_id"`
	DurationMinutes int    `json:"duration_minutes"`
	StartTime       string `json:"start_time"`
	CheckFuture     *bool  `json:"check_future"`
}

type validateResponse struct {
	Valid        bool                  `json:"valid"`
	Errors       []string              `json:"errors"`
	Codes        []availability.Reason `json:"codes"`
	BusinessTime string                `json:"business_time"`
	Timezone     string                `json:"timezone"`
}

func (h *BookingHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	checkFuture := true
	if req.CheckFuture != nil {
		checkFuture = *req.CheckFuture
	}
	res, sched, start, ok := h.validateTiming(w, r, req, checkFuture)
	if !ok {
		return
	}
	conv := sched.Engine.Converter()
	httpx.WriteJSON(w, http.StatusOK, validateResponse{
		Valid:        res.Valid,
		Errors:       res.Messages(),
		Codes:        reasonCodes(res),
		BusinessTime: conv.Format(start, true),
		Timezone:     conv.Zone(),
	})
}

// validateTiming resolves duration and schedule for req and runs the timing
// checks. ok is false once an error response has been written.
func (h *BookingHandler) validateTiming(w http.ResponseWriter, r *http.Request, req validateRequest, checkFuture bool) (availability.ValidationResult, scheduleView, time.Time, bool) {
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.BusinessID == "" || req.StaffID == "" {
		http.Error(w, "business_id and staff_id are required", http.StatusBadRequest)
		return availability.ValidationResult{}, scheduleView{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time (RFC3339)", http.StatusBadRequest)
		return availability.ValidationResult{}, scheduleView{}, time.Time{}, false
	}

	ctx, span := tracer.Start(r.Context(), "availability.validate")
	defer span.End()

	duration, status, msg := h.resolveDuration(ctx, req.BusinessID, strings.TrimSpace(req.ServiceID), req.DurationMinutes)
	if status != 0 {
		http.Error(w, msg, status)
		return availability.ValidationResult{}, scheduleView{}, time.Time{}, false
	}
	sched, ok := h.loadSchedule(w, r.WithContext(ctx), req.BusinessID, req.StaffID)
	if !ok {
		return availability.ValidationResult{}, scheduleView{}, time.Time{}, false
	}

	res := sched.Engine.ValidateAppointmentTiming(start, duration, sched.Business, sched.Employee, availability.ValidateOptions{
		CheckFuture: checkFuture,
		PastBuffer:  h.opts.PastBuffer,
	})
	span.SetAttributes(attribute.Bool("valid", res.Valid), attribute.Int("duration_minutes", duration))
	return res, scheduleView{Schedule: sched, Duration: duration}, start, true
}

func reasonCodes(res availability.ValidationResult) []availability.Reason {
	out := make([]availability.Reason, 0, len(res.Violations))
	for _, v := range res.Violations {
		out = append(out, v.Code)
	}
	return out
}
