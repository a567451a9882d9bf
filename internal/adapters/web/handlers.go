package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Marcoscjr/temporipro2-sub000/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	jsonBodyLimit     = 1 << 20  // 1 MB
	documentBodyLimit = 20 << 20 // 20 MB; CAD exports of large projects
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
	logger *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		svc:    svc,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(allowedOrigins))

	// ── Health and metrics ────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	// Vendor documents are posted raw and may be large.
	r.With(RequestBodyLimit(documentBodyLimit)).Post("/api/drafts/{id}/import", h.importDocument)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(jsonBodyLimit))

		// ── Drafts ────────────────────────────────────────────────────────────
		r.Post("/api/drafts", h.createDraft)
		r.Get("/api/drafts/{id}", h.getDraft)
		r.Delete("/api/drafts/{id}", h.discardDraft)

		r.Post("/api/drafts/{id}/environments", h.addEnvironment)
		r.Delete("/api/drafts/{id}/environments/{lineID}", h.removeEnvironment)
		r.Post("/api/drafts/{id}/environments/{lineID}/selected", h.setSelected)
		r.Get("/api/drafts/{id}/environments/{lineID}/items", h.getDetail)
		r.Post("/api/drafts/{id}/environments/{lineID}/items/sort", h.sortDetail)
		r.Post("/api/drafts/{id}/environments/{lineID}/items", h.addItem)
		r.Delete("/api/drafts/{id}/environments/{lineID}/items/{index}", h.removeItem)

		r.Post("/api/drafts/{id}/referral", h.setReferral)
		r.Post("/api/drafts/{id}/discount", h.setDiscount)
		r.Post("/api/drafts/{id}/interest-rate", h.setInterestRate)

		// ── Payment schedule ──────────────────────────────────────────────────
		r.Post("/api/drafts/{id}/payments", h.addPayment)
		r.Delete("/api/drafts/{id}/payments/{installmentID}", h.removeInstallment)
		r.Post("/api/drafts/{id}/apply-remainder", h.applyRemainder)
		r.Post("/api/drafts/{id}/payment-plan", h.interpretPaymentPlan)
		r.Post("/api/drafts/{id}/payment-plan/apply", h.applyPaymentPlan)

		// ── Finalization and export ───────────────────────────────────────────
		r.Post("/api/drafts/{id}/finalize", h.finalize)
		r.Get("/api/drafts/{id}/export.xlsx", h.exportWorkbook)

		// ── Contracts ─────────────────────────────────────────────────────────
		r.Get("/api/companies/{code}/contracts", h.listContracts)
		r.Get("/api/companies/{code}/contracts/{number}", h.getContract)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// draftID extracts the {id} URL parameter.
func draftID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
