package web

import (
	"net/http"

	"costing-service/internal/core"
)

// apiInterpretSheet handles POST /api/companies/{code}/cost-sheets/interpret.
// The agent returns either a full sheet proposal or a clarification request;
// nothing is persisted until the proposal is committed.
func (h *Handler) apiInterpretSheet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, r, "text is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.InterpretCostSheet(r.Context(), req.Text, companyCode(r))
	if err != nil {
		writeError(w, r, err.Error(), "AI_ERROR", http.StatusBadGateway)
		return
	}
	writeJSON(w, result)
}

// apiCommitProposal handles POST /api/companies/{code}/cost-sheets/proposals/commit.
// The client echoes back the (possibly user-edited) proposal after approval.
func (h *Handler) apiCommitProposal(w http.ResponseWriter, r *http.Request) {
	var proposal core.SheetProposal
	if !decodeJSON(w, r, &proposal) {
		return
	}
	proposal.CompanyCode = companyCode(r)

	result, err := h.svc.CommitProposal(r.Context(), proposal)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	writeSheetStatus(w, http.StatusCreated, result)
}

// apiValidateProposal handles POST /api/companies/{code}/cost-sheets/proposals/validate.
func (h *Handler) apiValidateProposal(w http.ResponseWriter, r *http.Request) {
	var proposal core.SheetProposal
	if !decodeJSON(w, r, &proposal) {
		return
	}
	proposal.CompanyCode = companyCode(r)

	if err := h.svc.ValidateProposal(r.Context(), proposal); err != nil {
		writeError(w, r, err.Error(), "INVALID_PROPOSAL", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, map[string]bool{"valid": true})
}
