package reports

import (
	"errors"
	"net/http"

	"github.com/crmsnjhn/bughaw-api/internal/common"
)

// Handler exposes reporting endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Summary handles GET /api/sales/summary?period=daily|weekly|monthly.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "daily"
	}
	summary, err := h.service.Summary(r.Context(), period)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

// InactiveCustomers handles GET /api/reports/inactive-customers?days=N.
func (h *Handler) InactiveCustomers(w http.ResponseWriter, r *http.Request) {
	days := common.AtoiDefault(r.URL.Query().Get("days"), 30)
	rows, err := h.service.InactiveCustomers(r.Context(), days)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// SalesComparison handles GET /api/reports/sales-comparison?monthA=&monthB=.
func (h *Handler) SalesComparison(w http.ResponseWriter, r *http.Request) {
	monthA := r.URL.Query().Get("monthA")
	monthB := r.URL.Query().Get("monthB")
	if monthA == "" || monthB == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "monthA and monthB are required", nil)
		return
	}
	cmp, err := h.service.CompareMonths(r.Context(), monthA, monthB)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cmp})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
