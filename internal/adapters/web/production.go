package web

import (
	"net/http"

	"costing-service/internal/app"

	"github.com/shopspring/decimal"
)

// apiListOrders handles GET /api/companies/{code}/production-orders.
func (h *Handler) apiListOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListProductionOrders(r.Context(), companyCode(r), statusFilter(r))
	if err != nil {
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// apiCreateOrder handles POST /api/companies/{code}/production-orders.
func (h *Handler) apiCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Style       string `json:"style"`
		CostSheetID *int   `json:"cost_sheet_id"`
		PlannedQty  int64  `json:"planned_qty"`
		StartDate   string `json:"start_date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.CreateProductionOrder(r.Context(), app.CreateOrderRequest{
		CompanyCode: companyCode(r),
		Style:       req.Style,
		CostSheetID: req.CostSheetID,
		PlannedQty:  req.PlannedQty,
		StartDate:   req.StartDate,
	})
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiGetOrder handles GET /api/companies/{code}/production-orders/{id}.
func (h *Handler) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetProductionOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, result)
}

// apiStartOrder handles POST /api/companies/{code}/production-orders/{id}/start.
func (h *Handler) apiStartOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.StartProductionOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
		return
	}
	writeJSON(w, result)
}

// apiRecordActualCost handles POST /api/companies/{code}/production-orders/{id}/actual-costs.
func (h *Handler) apiRecordActualCost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Section         string          `json:"section"`
		Description     string          `json:"description"`
		ActualTotalCost decimal.Decimal `json:"actual_total_cost"`
		EntryDate       string          `json:"entry_date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.RecordActualCost(r.Context(), id, app.ActualCostRequest{
		Section:         req.Section,
		Description:     req.Description,
		ActualTotalCost: req.ActualTotalCost,
		EntryDate:       req.EntryDate,
	})
	if err != nil {
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiCompleteOrder handles POST /api/companies/{code}/production-orders/{id}/complete.
func (h *Handler) apiCompleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		ProducedQty int64 `json:"produced_qty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.CompleteProductionOrder(r.Context(), id, req.ProducedQty)
	if err != nil {
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
		return
	}
	writeJSON(w, result)
}

// apiVariance handles GET /api/companies/{code}/production-orders/{id}/variance.
func (h *Handler) apiVariance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetVariance(r.Context(), id)
	if err != nil {
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
		return
	}
	writeJSON(w, result)
}

// apiStyleSummary handles GET /api/companies/{code}/reports/style-summary.
func (h *Handler) apiStyleSummary(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStyleCostSummary(r.Context(), companyCode(r))
	if err != nil {
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// apiActualSpend handles GET /api/companies/{code}/reports/actual-spend?from=&to=.
func (h *Handler) apiActualSpend(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetActualSpend(r.Context(), companyCode(r),
		r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, report)
}
