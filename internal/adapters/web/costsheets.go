package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"costing-service/internal/app"
	"costing-service/internal/costing"

	"github.com/shopspring/decimal"
)

// sheetHeaderRequest is the JSON body for sheet create/update header fields.
// Decimal fields accept both JSON numbers and strings.
type sheetHeaderRequest struct {
	Style               string          `json:"style"`
	Description         string          `json:"description"`
	TargetQuantity      int64           `json:"target_quantity"`
	OverheadMethod      string          `json:"overhead_method"`
	TargetMarginPercent decimal.Decimal `json:"target_margin_percent"`
	QuotePricePerPiece  decimal.Decimal `json:"quote_price_per_piece"`
	Currency            string          `json:"currency"`
}

type sheetLineRequest struct {
	Section             string          `json:"section"`
	Name                string          `json:"name"`
	ConsumptionPerPiece decimal.Decimal `json:"consumption_per_piece"`
	Unit                string          `json:"unit"`
	WastePercent        decimal.Decimal `json:"waste_percent"`
	Rate                decimal.Decimal `json:"rate"`
	SetupCost           decimal.Decimal `json:"setup_cost"`
}

func (req sheetHeaderRequest) toInput() app.SheetHeaderInput {
	return app.SheetHeaderInput{
		Style:               req.Style,
		Description:         req.Description,
		TargetQuantity:      req.TargetQuantity,
		OverheadMethod:      req.OverheadMethod,
		TargetMarginPercent: req.TargetMarginPercent,
		QuotePricePerPiece:  req.QuotePricePerPiece,
		Currency:            req.Currency,
	}
}

func (req sheetLineRequest) toInput() app.SheetLineInput {
	return app.SheetLineInput{
		Section:             req.Section,
		Name:                req.Name,
		ConsumptionPerPiece: req.ConsumptionPerPiece,
		Unit:                req.Unit,
		WastePercent:        req.WastePercent,
		Rate:                req.Rate,
		SetupCost:           req.SetupCost,
	}
}

// sheetResponse is the JSON shape for a sheet with its costing result.
type sheetResponse struct {
	Sheet   *costing.CostSheet     `json:"sheet"`
	Lines   []costing.CostLineItem `json:"lines"`
	Costing costing.Result         `json:"costing"`
}

func writeSheet(w http.ResponseWriter, res *app.SheetResult) {
	writeJSON(w, sheetResponse{Sheet: res.Sheet, Lines: res.Lines, Costing: res.Costing})
}

func writeSheetStatus(w http.ResponseWriter, status int, res *app.SheetResult) {
	writeJSONStatus(w, status, sheetResponse{Sheet: res.Sheet, Lines: res.Lines, Costing: res.Costing})
}

// apiListSheets handles GET /api/companies/{code}/cost-sheets.
func (h *Handler) apiListSheets(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListCostSheets(r.Context(), companyCode(r), statusFilter(r))
	if err != nil {
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// apiCreateSheet handles POST /api/companies/{code}/cost-sheets.
func (h *Handler) apiCreateSheet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		sheetHeaderRequest
		Lines []sheetLineRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	lines := make([]app.SheetLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = l.toInput()
	}
	result, err := h.svc.CreateCostSheet(r.Context(), app.CreateSheetRequest{
		CompanyCode: companyCode(r),
		Header:      req.toInput(),
		Lines:       lines,
	})
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	writeSheetStatus(w, http.StatusCreated, result)
}

// apiGetSheet handles GET /api/companies/{code}/cost-sheets/{id}.
func (h *Handler) apiGetSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetCostSheet(r.Context(), id)
	if err != nil {
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeSheet(w, result)
}

// apiUpdateSheetHeader handles PUT /api/companies/{code}/cost-sheets/{id}.
func (h *Handler) apiUpdateSheetHeader(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req sheetHeaderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateCostSheetHeader(r.Context(), id, req.toInput())
	if err != nil {
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
		return
	}
	writeSheet(w, result)
}

// apiAddLine handles POST /api/companies/{code}/cost-sheets/{id}/lines.
func (h *Handler) apiAddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req sheetLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.AddCostLine(r.Context(), id, req.toInput())
	if err != nil {
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
		return
	}
	writeSheetStatus(w, http.StatusCreated, result)
}

// apiUpdateLine handles PUT /api/companies/{code}/cost-sheets/{id}/lines/{lineID}.
func (h *Handler) apiUpdateLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	var req sheetLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateCostLine(r.Context(), id, lineID, req.toInput())
	if err != nil {
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
		return
	}
	writeSheet(w, result)
}

// apiDeleteLine handles DELETE /api/companies/{code}/cost-sheets/{id}/lines/{lineID}.
func (h *Handler) apiDeleteLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	result, err := h.svc.DeleteCostLine(r.Context(), id, lineID)
	if err != nil {
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
		return
	}
	writeSheet(w, result)
}

// apiApproveSheet handles POST /api/companies/{code}/cost-sheets/{id}/approve.
func (h *Handler) apiApproveSheet(w http.ResponseWriter, r *http.Request) {
	h.sheetLifecycle(w, r, h.svc.ApproveCostSheet)
}

// apiLockSheet handles POST /api/companies/{code}/cost-sheets/{id}/lock.
func (h *Handler) apiLockSheet(w http.ResponseWriter, r *http.Request) {
	h.sheetLifecycle(w, r, h.svc.LockCostSheet)
}

// apiNewVersion handles POST /api/companies/{code}/cost-sheets/{id}/versions.
func (h *Handler) apiNewVersion(w http.ResponseWriter, r *http.Request) {
	h.sheetLifecycle(w, r, h.svc.NewSheetVersion)
}

func (h *Handler) sheetLifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, sheetID int) (*app.SheetResult, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := op(r.Context(), id)
	if err != nil {
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
		return
	}
	writeSheet(w, result)
}

// apiCalculation handles GET /api/companies/{code}/cost-sheets/{id}/calculation?qty=N.
// Without qty the sheet is costed at its own target quantity.
func (h *Handler) apiCalculation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var qty int64
	if raw := r.URL.Query().Get("qty"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, r, "qty must be a non-negative integer", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		qty = parsed
	}

	result, err := h.svc.CalculateCostSheet(r.Context(), id, qty)
	if err != nil {
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeSheet(w, result)
}

// parseScenarioQuantities parses a comma-separated quantity list. Zero,
// negative, and duplicate values are dropped rather than rejected; an empty
// result means the caller should fall back to the sheet's own target
// quantity. Non-numeric tokens are still an error.
func parseScenarioQuantities(raw string) ([]int64, error) {
	var quantities []int64
	seen := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		q, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("quantities must be integers, got %q", part)
		}
		if q <= 0 || seen[q] {
			continue
		}
		seen[q] = true
		quantities = append(quantities, q)
	}
	return quantities, nil
}

// apiScenarios handles GET /api/companies/{code}/cost-sheets/{id}/scenarios?quantities=50,100,500.
// Without usable quantities the sheet is costed at its own target quantity.
func (h *Handler) apiScenarios(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	quantities, err := parseScenarioQuantities(r.URL.Query().Get("quantities"))
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.RunScenarios(r.Context(), id, quantities)
	if err != nil {
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, result)
}

// apiExportSheet handles GET /api/companies/{code}/cost-sheets/{id}/export.
func (h *Handler) apiExportSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	data, filename, err := h.svc.ExportCostSheet(r.Context(), id)
	if err != nil {
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(data)
}
