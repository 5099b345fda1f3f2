package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"costing-service/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Auth (public) ─────────────────────────────────────────────────────────
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// Auth
		r.Get("/api/auth/me", h.me)

		// ── Cost sheets ───────────────────────────────────────────────────────
		r.Get("/api/companies/{code}/cost-sheets", h.apiListSheets)
		r.Post("/api/companies/{code}/cost-sheets", h.apiCreateSheet)
		r.Get("/api/companies/{code}/cost-sheets/{id}", h.apiGetSheet)
		r.Put("/api/companies/{code}/cost-sheets/{id}", h.apiUpdateSheetHeader)
		r.Post("/api/companies/{code}/cost-sheets/{id}/lines", h.apiAddLine)
		r.Put("/api/companies/{code}/cost-sheets/{id}/lines/{lineID}", h.apiUpdateLine)
		r.Delete("/api/companies/{code}/cost-sheets/{id}/lines/{lineID}", h.apiDeleteLine)
		r.Post("/api/companies/{code}/cost-sheets/{id}/approve", h.apiApproveSheet)
		r.Post("/api/companies/{code}/cost-sheets/{id}/lock", h.apiLockSheet)
		r.Post("/api/companies/{code}/cost-sheets/{id}/versions", h.apiNewVersion)
		r.Get("/api/companies/{code}/cost-sheets/{id}/calculation", h.apiCalculation)
		r.Get("/api/companies/{code}/cost-sheets/{id}/scenarios", h.apiScenarios)
		r.Get("/api/companies/{code}/cost-sheets/{id}/export", h.apiExportSheet)

		// ── Production orders ─────────────────────────────────────────────────
		r.Get("/api/companies/{code}/production-orders", h.apiListOrders)
		r.Post("/api/companies/{code}/production-orders", h.apiCreateOrder)
		r.Get("/api/companies/{code}/production-orders/{id}", h.apiGetOrder)
		r.Post("/api/companies/{code}/production-orders/{id}/start", h.apiStartOrder)
		r.Post("/api/companies/{code}/production-orders/{id}/actual-costs", h.apiRecordActualCost)
		r.Post("/api/companies/{code}/production-orders/{id}/complete", h.apiCompleteOrder)
		r.Get("/api/companies/{code}/production-orders/{id}/variance", h.apiVariance)

		// ── Reports ───────────────────────────────────────────────────────────
		r.Get("/api/companies/{code}/reports/style-summary", h.apiStyleSummary)
		r.Get("/api/companies/{code}/reports/actual-spend", h.apiActualSpend)

		// ── AI ────────────────────────────────────────────────────────────────
		r.Post("/api/companies/{code}/cost-sheets/interpret", h.apiInterpretSheet)
		r.Post("/api/companies/{code}/cost-sheets/proposals/commit", h.apiCommitProposal)
		r.Post("/api/companies/{code}/cost-sheets/proposals/validate", h.apiValidateProposal)
	})

	h.router = r
	return r
}

// health handles GET /api/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// companyCode extracts the {code} URL parameter.
func companyCode(r *http.Request) string {
	return chi.URLParam(r, "code")
}

// pathID extracts a numeric URL parameter; ok is false after an error has
// been written.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFilter returns the optional ?status= query parameter.
func statusFilter(r *http.Request) *string {
	if s := r.URL.Query().Get("status"); s != "" {
		return &s
	}
	return nil
}
