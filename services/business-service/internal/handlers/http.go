package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/iris/libs/civiltime"
	"github.com/md-rashed-zaman/iris/libs/httpx"
	"github.com/md-rashed-zaman/iris/services/business-service/internal/storage"
)

// Store is the persistence the handlers need.
type Store interface {
	GetOrCreateProfile(ctx context.Context, businessID, defaultZone string) (storage.BusinessProfile, error)
	UpdateProfile(ctx context.Context, p storage.BusinessProfile) error
	ListBusinessHours(ctx context.Context, businessID string) ([]storage.BusinessDay, error)
	ReplaceBusinessHours(ctx context.Context, businessID string, days []storage.BusinessDay) error
	CreateService(ctx context.Context, businessID, name string, durationMinutes int, price, description string) (string, error)
	ListServices(ctx context.Context, businessID string, limit int) ([]storage.BusinessService, error)
	CreateStaff(ctx context.Context, businessID, name string, isActive bool) (string, error)
	ListStaff(ctx context.Context, businessID string, limit int) ([]storage.Staff, error)
	ListWorkingHours(ctx context.Context, businessID, staffID string) ([]storage.WorkingHours, error)
	UpsertWorkingHours(ctx context.Context, businessID string, wh storage.WorkingHours) error
	CreateTimeOff(ctx context.Context, businessID, staffID string, start, end time.Time, reason string) (string, error)
	ListTimeOff(ctx context.Context, businessID, staffID string, from, to time.Time, limit int) ([]storage.TimeOff, error)
	DeleteTimeOff(ctx context.Context, businessID, timeOffID string) error
}

type Handler struct {
	repo        Store
	logger      *slog.Logger
	defaultZone string
}

func New(repo Store, logger *slog.Logger, defaultZone string) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if strings.TrimSpace(defaultZone) == "" {
		defaultZone = civiltime.DefaultZone
	}
	return &Handler{repo: repo, logger: logger, defaultZone: defaultZone}
}

// Register mounts every business route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/business/profile", httpx.Methods(map[string]http.HandlerFunc{
		http.MethodGet: h.GetProfile,
		http.MethodPut: h.UpdateProfile,
	}))
	mux.HandleFunc("/api/v1/business/hours", httpx.Methods(map[string]http.HandlerFunc{
		http.MethodGet: h.GetHours,
		http.MethodPut: h.UpdateHours,
	}))
	mux.HandleFunc("/api/v1/business/services", httpx.Methods(map[string]http.HandlerFunc{
		http.MethodGet:  h.ListServices,
		http.MethodPost: h.CreateService,
	}))
	mux.HandleFunc("/api/v1/business/staff", httpx.Methods(map[string]http.HandlerFunc{
		http.MethodGet:  h.ListStaff,
		http.MethodPost: h.CreateStaff,
	}))
	mux.HandleFunc("/api/v1/business/staff/working-hours", httpx.Methods(map[string]http.HandlerFunc{
		http.MethodGet: h.ListWorkingHours,
		http.MethodPut: h.UpsertWorkingHours,
	}))
	mux.HandleFunc("/api/v1/business/staff/time-off", httpx.Methods(map[string]http.HandlerFunc{
		http.MethodGet:    h.ListTimeOff,
		http.MethodPost:   h.CreateTimeOff,
		http.MethodDelete: h.DeleteTimeOff,
	}))
	mux.HandleFunc("/api/v1/business/timezones", httpx.Methods(map[string]http.HandlerFunc{
		http.MethodGet: h.ListTimezones,
	}))
	mux.HandleFunc("/api/v1/business/timezones/province", httpx.Methods(map[string]http.HandlerFunc{
		http.MethodGet: h.ProvinceTimezone,
	}))
}

func requireBusiness(w http.ResponseWriter, r *http.Request) (string, bool) {
	businessID := httpx.BusinessIDFromRequest(r)
	if businessID == "" {
		http.Error(w, "missing X-Business-Id", http.StatusBadRequest)
		return "", false
	}
	return businessID, true
}

func requireStaff(w http.ResponseWriter, r *http.Request) (string, bool) {
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	if staffID == "" {
		http.Error(w, "staff_id is required", http.StatusBadRequest)
		return "", false
	}
	return staffID, true
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	p, err := h.repo.GetOrCreateProfile(r.Context(), businessID, h.defaultZone)
	if err != nil {
		h.logger.Error("load profile failed", "business_id", businessID, "err", err)
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}

	var req struct {
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		req.Timezone = h.defaultZone
	}
	supported, err := civiltime.ValidateZone(req.Timezone)
	if err != nil {
		http.Error(w, "invalid timezone", http.StatusBadRequest)
		return
	}
	if !supported {
		h.logger.Warn("timezone outside supported catalogue", "business_id", businessID, "timezone", req.Timezone)
	}

	if err := h.repo.UpdateProfile(r.Context(), storage.BusinessProfile{BusinessID: businessID, Name: req.Name, Timezone: req.Timezone}); err != nil {
		h.logger.Error("update profile failed", "business_id", businessID, "err", err)
		http.Error(w, "failed to update profile", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dayHoursJSON struct {
	Weekday  int    `json:"weekday"`
	Open     string `json:"open,omitempty"`
	Close    string `json:"close,omitempty"`
	IsClosed bool   `json:"is_closed"`
}

func (h *Handler) GetHours(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	days, err := h.repo.ListBusinessHours(r.Context(), businessID)
	if err != nil {
		h.logger.Error("load business hours failed", "business_id", businessID, "err", err)
		http.Error(w, "failed to load business hours", http.StatusInternalServerError)
		return
	}
	out := make([]dayHoursJSON, 0, len(days))
	for _, d := range days {
		out = append(out, dayHoursJSON{
			Weekday:  d.Weekday,
			Open:     minutesJSON(d.OpenMinute),
			Close:    minutesJSON(d.CloseMinute),
			IsClosed: d.IsClosed,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateHours(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	var req []dayHoursJSON
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	seen := make(map[int]bool, len(req))
	days := make([]storage.BusinessDay, 0, len(req))
	for _, d := range req {
		if _, err := civiltime.ParseWeekday(d.Weekday); err != nil {
			http.Error(w, "weekday must be between 0 and 6", http.StatusBadRequest)
			return
		}
		if seen[d.Weekday] {
			http.Error(w, "duplicate weekday", http.StatusBadRequest)
			return
		}
		seen[d.Weekday] = true

		day := storage.BusinessDay{Weekday: d.Weekday, IsClosed: d.IsClosed}
		if !d.IsClosed {
			open, closeAt, err := parseWindow(d.Open, d.Close)
			if err != nil {
				http.Error(w, "invalid open/close for weekday "+strconv.Itoa(d.Weekday), http.StatusBadRequest)
				return
			}
			day.OpenMinute, day.CloseMinute = &open, &closeAt
		}
		days = append(days, day)
	}

	if err := h.repo.ReplaceBusinessHours(r.Context(), businessID, days); err != nil {
		h.logger.Error("replace business hours failed", "business_id", businessID, "err", err)
		http.Error(w, "failed to update business hours", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}

	var req struct {
		Name         string  `json:"name"`
		DurationMins int     `json:"duration_minutes"`
		Price        float64 `json:"price"`
		Description  string  `json:"description"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.DurationMins <= 0 || req.DurationMins >= 24*60 {
		http.Error(w, "name and duration_minutes required", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateService(r.Context(), businessID, req.Name, req.DurationMins, strconv.FormatFloat(req.Price, 'f', 2, 64), req.Description)
	if err != nil {
		h.logger.Error("create service failed", "business_id", businessID, "err", err)
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	services, err := h.repo.ListServices(r.Context(), businessID, 100)
	if err != nil {
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, nonNil(services))
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}

	var req struct {
		Name     string `json:"name"`
		IsActive *bool  `json:"is_active"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	id, err := h.repo.CreateStaff(r.Context(), businessID, req.Name, isActive)
	if err != nil {
		h.logger.Error("create staff failed", "business_id", businessID, "err", err)
		http.Error(w, "failed to create staff", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	staff, err := h.repo.ListStaff(r.Context(), businessID, 100)
	if err != nil {
		http.Error(w, "failed to list staff", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, nonNil(staff))
}

type workingHoursJSON struct {
	StaffID   string `json:"staff_id,omitempty"`
	Weekday   int    `json:"weekday"`
	IsWorking bool   `json:"is_working"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

func (h *Handler) ListWorkingHours(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	staffID, ok := requireStaff(w, r)
	if !ok {
		return
	}

	rows, err := h.repo.ListWorkingHours(r.Context(), businessID, staffID)
	if err != nil {
		http.Error(w, "failed to list working hours", http.StatusInternalServerError)
		return
	}
	out := make([]workingHoursJSON, 0, len(rows))
	for _, wh := range rows {
		out = append(out, workingHoursJSON{
			StaffID:   wh.StaffID,
			Weekday:   wh.Weekday,
			IsWorking: wh.IsWorking,
			Start:     minutesJSON(wh.StartMinute),
			End:       minutesJSON(wh.EndMinute),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) UpsertWorkingHours(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	staffID, ok := requireStaff(w, r)
	if !ok {
		return
	}

	var req workingHoursJSON
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if _, err := civiltime.ParseWeekday(req.Weekday); err != nil {
		http.Error(w, "weekday must be between 0 and 6", http.StatusBadRequest)
		return
	}

	wh := storage.WorkingHours{StaffID: staffID, Weekday: req.Weekday, IsWorking: req.IsWorking}
	if req.IsWorking {
		start, end, err := parseWindow(req.Start, req.End)
		if err != nil {
			http.Error(w, "invalid start/end", http.StatusBadRequest)
			return
		}
		wh.StartMinute, wh.EndMinute = &start, &end
	}

	if err := h.repo.UpsertWorkingHours(r.Context(), businessID, wh); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "staff not found", http.StatusNotFound)
			return
		}
		h.logger.Error("upsert working hours failed", "business_id", businessID, "staff_id", staffID, "err", err)
		http.Error(w, "failed to upsert working hours", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateTimeOff(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	staffID, ok := requireStaff(w, r)
	if !ok {
		return
	}

	var req struct {
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Reason    string `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, end, err := parseRange(req.StartTime, req.EndTime)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateTimeOff(r.Context(), businessID, staffID, start, end, strings.TrimSpace(req.Reason))
	switch {
	case storage.IsNotFound(err):
		http.Error(w, "staff not found", http.StatusNotFound)
		return
	case storage.IsConflict(err):
		http.Error(w, "time off overlaps existing entry", http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("create time off failed", "business_id", businessID, "staff_id", staffID, "err", err)
		http.Error(w, "failed to create time off", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) ListTimeOff(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	staffID, ok := requireStaff(w, r)
	if !ok {
		return
	}

	from, to, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	items, err := h.repo.ListTimeOff(r.Context(), businessID, staffID, from, to, 100)
	if err != nil {
		http.Error(w, "failed to list time off", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, nonNil(items))
}

func (h *Handler) DeleteTimeOff(w http.ResponseWriter, r *http.Request) {
	businessID, ok := requireBusiness(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := h.repo.DeleteTimeOff(r.Context(), businessID, id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "time off not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete time off", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListTimezones(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, civiltime.SupportedZones())
}

func (h *Handler) ProvinceTimezone(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"province": name, "timezone": civiltime.ZoneForProvince(name)})
}

// parseWindow parses an HH:MM pair into minutes, requiring open < close.
func parseWindow(open, closeAt string) (int, int, error) {
	lo, err := civiltime.ParseClock(open)
	if err != nil {
		return 0, 0, err
	}
	hi, err := civiltime.ParseClock(closeAt)
	if err != nil {
		return 0, 0, err
	}
	if civiltime.CompareClock(lo, hi) >= 0 {
		return 0, 0, errors.New("open must be before close")
	}
	return civiltime.ClockToMinutes(lo), civiltime.ClockToMinutes(hi), nil
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, strings.TrimSpace(fromRaw))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid start (RFC3339)")
	}
	to, err := time.Parse(time.RFC3339, strings.TrimSpace(toRaw))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid end (RFC3339)")
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("end must be after start")
	}
	return from.UTC(), to.UTC(), nil
}

func minutesJSON(m *int) string {
	if m == nil {
		return ""
	}
	t, err := civiltime.MinutesToClock(*m)
	if err != nil {
		return ""
	}
	return civiltime.FormatClock(t)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
