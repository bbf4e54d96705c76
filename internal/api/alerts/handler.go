// Package alerts implements the alert REST endpoints.
package alerts

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/alerting"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/models"
	"github.com/jonavoidd/smart-coral-diagnostics-server/internal/storage"
)

// Response helpers
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeConflict         = "CONFLICT"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// Response types
type AlertResponse struct {
	ID               string  `json:"id"`
	AreaKey          string  `json:"area_key"`
	AreaName         string  `json:"area_name"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	BleachingCount   int     `json:"bleaching_count"`
	Threshold        int     `json:"threshold"`
	SeverityLevel    string  `json:"severity_level"`
	AffectedRadiusKm float64 `json:"affected_radius_km"`
	Description      string  `json:"description,omitempty"`
	IsActive         bool    `json:"is_active"`
	CreatedAt        string  `json:"created_at"`
	LastUpdated      string  `json:"last_updated"`
}

type HistoryEntryResponse struct {
	ID          string `json:"id"`
	AlertID     string `json:"alert_id"`
	ChangeType  string `json:"change_type"`
	OldValue    string `json:"old_value,omitempty"`
	NewValue    string `json:"new_value,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type ListResponse struct {
	Items   []*AlertResponse `json:"items"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

type HistoryListResponse struct {
	Items   []*HistoryEntryResponse `json:"items"`
	Total   int64                   `json:"total"`
	Page    int                     `json:"page"`
	PerPage int                     `json:"per_page"`
}

type SummaryResponse struct {
	TotalActive int64            `json:"total_active"`
	BySeverity  map[string]int64 `json:"by_severity"`
}

// Handler handles alert endpoints.
type Handler struct {
	storage storage.Storage
	engine  *alerting.Engine
	// onOutcome is invoked for every alert change made through the admin
	// endpoints. May be nil.
	onOutcome func(*alerting.Outcome)
}

// NewHandler creates an alert handler.
func NewHandler(store storage.Storage, engine *alerting.Engine, onOutcome func(*alerting.Outcome)) *Handler {
	return &Handler{storage: store, engine: engine, onOutcome: onOutcome}
}

// List returns alerts, filtered by active state and severity.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	activeOnly, err := parseActiveFilter(r.URL.Query().Get("active"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	var severity models.Severity
	if raw := r.URL.Query().Get("severity"); raw != "" {
		severity, err = ValidateSeverity(raw)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
	}

	page, perPage := parsePagination(r)

	items, total, err := h.storage.Alerts().List(ctx, storage.AlertFilter{
		ActiveOnly: activeOnly,
		Severity:   severity,
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	})
	if err != nil {
		log.Printf("list alerts error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := ListResponse{
		Items:   make([]*AlertResponse, len(items)),
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}
	for i, a := range items {
		resp.Items[i] = alertToResponse(a)
	}
	jsonOK(w, resp)
}

// Summary returns active alert counts grouped by severity.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	counts, err := h.storage.Alerts().CountActiveBySeverity(r.Context())
	if err != nil {
		log.Printf("alert summary error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := SummaryResponse{BySeverity: make(map[string]int64, len(counts))}
	for severity, count := range counts {
		resp.BySeverity[string(severity)] = count
		resp.TotalActive += count
	}
	jsonOK(w, resp)
}

// GetByID returns an alert by ID.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	alert, err := h.storage.Alerts().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("get alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	jsonOK(w, alertToResponse(alert))
}

// History returns the audit trail for an alert, oldest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	ctx := r.Context()
	alert, err := h.storage.Alerts().GetByID(ctx, id)
	if err != nil {
		log.Printf("get alert history error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return
	}

	page, perPage := parsePagination(r)

	entries, total, err := h.storage.AlertHistory().ListByAlert(ctx, id, perPage, (page-1)*perPage)
	if err != nil {
		log.Printf("list alert history error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := HistoryListResponse{
		Items:   make([]*HistoryEntryResponse, len(entries)),
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}
	for i, entry := range entries {
		resp.Items[i] = historyToResponse(entry)
	}
	jsonOK(w, resp)
}

// Request types
type AdminCreateRequest struct {
	AreaID         string  `json:"area_id"`
	AreaName       string  `json:"area_name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	BleachingCount int     `json:"bleaching_count"`
	Threshold      int     `json:"threshold,omitempty"`
	Description    string  `json:"description,omitempty"`
}

type AdminUpdateRequest struct {
	AreaName       *string `json:"area_name,omitempty"`
	Description    *string `json:"description,omitempty"`
	BleachingCount *int    `json:"bleaching_count,omitempty"`
}

type AdminDeactivateRequest struct {
	Reason string `json:"reason,omitempty"`
}

// AdminCreate creates an alert directly.
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	var req AdminCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	out, err := h.engine.AdminCreate(r.Context(), alerting.AdminCreateRequest{
		AreaID:         req.AreaID,
		AreaName:       req.AreaName,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		BleachingCount: req.BleachingCount,
		Threshold:      req.Threshold,
		Description:    req.Description,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.notify(out)
	log.Printf("alert created by admin: %s (%s)", out.Alert.AreaName, out.Alert.ID)
	jsonCreated(w, alertToResponse(out.Alert))
}

// AdminUpdate edits an alert's name, description, or case count.
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	var req AdminUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if exists, ok := h.requireAlert(w, r, id); !ok || !exists {
		return
	}

	out, err := h.engine.AdminUpdate(r.Context(), id, alerting.AdminUpdateRequest{
		AreaName:       req.AreaName,
		Description:    req.Description,
		BleachingCount: req.BleachingCount,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.notify(out)
	jsonOK(w, alertToResponse(out.Alert))
}

// AdminDeactivate closes an alert.
func (h *Handler) AdminDeactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	var req AdminDeactivateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
			return
		}
	}

	if exists, ok := h.requireAlert(w, r, id); !ok || !exists {
		return
	}

	out, err := h.engine.AdminDeactivate(r.Context(), id, req.Reason)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.notify(out)
	log.Printf("alert deactivated by admin: %s", id)
	jsonOK(w, alertToResponse(out.Alert))
}

// AdminReactivate reopens a deactivated alert.
func (h *Handler) AdminReactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id required")
		return
	}

	if exists, ok := h.requireAlert(w, r, id); !ok || !exists {
		return
	}

	out, err := h.engine.AdminReactivate(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.notify(out)
	log.Printf("alert reactivated by admin: %s", id)
	jsonOK(w, alertToResponse(out.Alert))
}

// requireAlert writes a 404 when the alert does not exist. The second return
// value is false when a response has already been written for an error.
func (h *Handler) requireAlert(w http.ResponseWriter, r *http.Request, id string) (exists, ok bool) {
	alert, err := h.storage.Alerts().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("get alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return false, false
	}
	if alert == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found")
		return false, true
	}
	return true, true
}

// writeEngineError maps engine error types to HTTP responses.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case alerting.IsValidation(err):
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
	case alerting.IsInvariantViolation(err):
		log.Printf("invariant violation: %v", err)
		jsonError(w, http.StatusConflict, errCodeConflict, err.Error())
	default:
		log.Printf("engine error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
	}
}

func (h *Handler) notify(out *alerting.Outcome) {
	if h.onOutcome != nil && out != nil && out.Changed() {
		h.onOutcome(out)
	}
}

func alertToResponse(a *models.Alert) *AlertResponse {
	return &AlertResponse{
		ID:               a.ID,
		AreaKey:          a.AreaKey,
		AreaName:         a.AreaName,
		Latitude:         a.Latitude,
		Longitude:        a.Longitude,
		BleachingCount:   a.BleachingCount,
		Threshold:        a.Threshold,
		SeverityLevel:    string(a.SeverityLevel),
		AffectedRadiusKm: a.AffectedRadiusKm,
		Description:      a.Description,
		IsActive:         a.IsActive,
		CreatedAt:        a.CreatedAt.UTC().Format(time.RFC3339),
		LastUpdated:      a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func historyToResponse(e *models.AlertHistoryEntry) *HistoryEntryResponse {
	return &HistoryEntryResponse{
		ID:          e.ID,
		AlertID:     e.AlertID,
		ChangeType:  string(e.ChangeType),
		OldValue:    e.OldValue,
		NewValue:    e.NewValue,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
