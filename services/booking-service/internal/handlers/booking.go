package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/iris/libs/httpx"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/storage"
)

type createBookingRequest struct {
	BusinessID      string `json:"business_id"`
	ServiceID       string `json:"service_id"`
	StaffID         string `json:"staff_id"`
	DurationMinutes int    `json:"duration_minutes"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	StartTime       string `json:"start_time"`
}

type createBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	BusinessTime  string `json:"business_time,omitempty"`
}

type rejectedBookingResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors"`
	Codes  []string `json:"codes"`
}

type cancelBookingRequest struct {
	BusinessID    string `json:"business_id"`
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type cancelBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

type listAppointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
	ServiceID     string `json:"service_id,omitempty"`
	CustomerName  string `json:"customer_name"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Minutes       int    `json:"duration_minutes"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		http.Error(w, "customer_name is required", http.StatusBadRequest)
		return
	}

	res, sched, start, ok := h.validateTiming(w, r, validateRequest{
		BusinessID:      req.BusinessID,
		StaffID:         req.StaffID,
		ServiceID:       req.ServiceID,
		DurationMinutes: req.DurationMinutes,
		StartTime:       req.StartTime,
	}, true)
	if !ok {
		return
	}
	if !res.Valid {
		codes := make([]string, 0, len(res.Violations))
		for _, v := range res.Violations {
			codes = append(codes, string(v.Code))
		}
		httpx.WriteJSON(w, http.StatusUnprocessableEntity, rejectedBookingResponse{
			Error:  "requested time is outside availability",
			Errors: res.Messages(),
			Codes:  codes,
		})
		return
	}

	conv := sched.Engine.Converter()
	appt := &model.Appointment{
		BusinessID:    strings.TrimSpace(req.BusinessID),
		ServiceID:     strings.TrimSpace(req.ServiceID),
		StaffID:       strings.TrimSpace(req.StaffID),
		CustomerName:  req.CustomerName,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		StartTime:     conv.ToUTCInstant(start),
		EndTime:       conv.ToUTCInstant(conv.EndTime(start, sched.Duration)),
	}

	result, err := h.repo.Book(r.Context(), appt, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	switch {
	case errors.Is(err, storage.ErrSlotTaken):
		http.Error(w, storage.ErrSlotTaken.Error(), http.StatusConflict)
		return
	case errors.Is(err, storage.ErrStaffNotBookable):
		http.Error(w, storage.ErrStaffNotBookable.Error(), http.StatusUnprocessableEntity)
		return
	case storage.IsNotFound(err):
		http.Error(w, "staff not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("booking failed", "business_id", appt.BusinessID, "staff_id", appt.StaffID, "err", err)
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	if result.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		httpx.WriteJSON(w, http.StatusCreated, createBookingResponse{AppointmentID: result.AppointmentID})
		return
	}
	h.logger.Info("appointment booked",
		"business_id", appt.BusinessID,
		"staff_id", appt.StaffID,
		"appointment_id", result.AppointmentID,
		"business_time", conv.Format(start, true),
	)
	httpx.WriteJSON(w, http.StatusCreated, createBookingResponse{
		AppointmentID: result.AppointmentID,
		StartTime:     conv.ToBusinessTime(appt.StartTime).Format(time.RFC3339),
		EndTime:       conv.ToBusinessTime(appt.EndTime).Format(time.RFC3339),
		BusinessTime:  conv.Format(start, true),
	})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	businessID := httpx.BusinessIDFromRequest(r)
	if businessID == "" {
		businessID = strings.TrimSpace(req.BusinessID)
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if businessID == "" || req.AppointmentID == "" {
		http.Error(w, "business_id and appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.repo.Cancel(r.Context(), businessID, req.AppointmentID, strings.TrimSpace(req.Reason))
	switch {
	case storage.IsNotFound(err):
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	case errors.Is(err, storage.ErrNotCancellable):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("cancel failed", "business_id", businessID, "appointment_id", req.AppointmentID, "err", err)
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	resp := cancelBookingResponse{AppointmentID: appt.ID, Status: appt.Status}
	if appt.CancelledAt != nil {
		resp.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID := httpx.BusinessIDFromRequest(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.repo.ListByBusiness(r.Context(), businessID, limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]listAppointmentItem, 0, len(appts))
	for _, appt := range appts {
		item := listAppointmentItem{
			AppointmentID: appt.ID,
			StaffID:       appt.StaffID,
			ServiceID:     appt.ServiceID,
			CustomerName:  appt.CustomerName,
			StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
			EndTime:       appt.EndTime.UTC().Format(time.RFC3339),
			Minutes:       int(appt.Duration().Minutes()),
			Status:        appt.Status,
			CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
		}
		if appt.CancelledAt != nil {
			item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}
