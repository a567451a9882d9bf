package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Marcoscjr/temporipro2-sub000/internal/app"
	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// createDraft handles POST /api/drafts. The body is optional.
func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CompanyCode string `json:"company_code"`
		OperatorID  string `json:"operator_id"`
		ClientID    string `json:"client_id"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.CreateDraft(r.Context(), app.CreateDraftRequest{
		CompanyCode: body.CompanyCode,
		OperatorID:  body.OperatorID,
		ClientID:    body.ClientID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// getDraft handles GET /api/drafts/{id}.
func (h *Handler) getDraft(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetDraft(r.Context(), draftID(r))
	h.respond(w, r, result, err)
}

// discardDraft handles DELETE /api/drafts/{id}.
func (h *Handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DiscardDraft(r.Context(), draftID(r)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// importDocument handles POST /api/drafts/{id}/import. The vendor document is
// either the raw request body or the "file" field of a multipart form.
func (h *Handler) importDocument(w http.ResponseWriter, r *http.Request) {
	var (
		document []byte
		err      error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		document, err = readFormFile(r, "file")
	} else {
		document, err = io.ReadAll(r.Body)
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "document too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, r, "could not read document: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if len(document) == 0 {
		writeError(w, r, "document is empty", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ImportDocument(r.Context(), draftID(r), document)
	h.respond(w, r, result, err)
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// ── Environments and items ──────────────────────────────────────────────────

// addEnvironment handles POST /api/drafts/{id}/environments.
func (h *Handler) addEnvironment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.AddEnvironment(r.Context(), draftID(r), body.Name)
	h.respond(w, r, result, err)
}

// removeEnvironment handles DELETE /api/drafts/{id}/environments/{lineID}.
func (h *Handler) removeEnvironment(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RemoveEnvironment(r.Context(), draftID(r), chi.URLParam(r, "lineID"))
	h.respond(w, r, result, err)
}

// setSelected handles POST /api/drafts/{id}/environments/{lineID}/selected.
func (h *Handler) setSelected(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Selected *bool `json:"selected"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Selected == nil {
		writeError(w, r, "selected is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.SetSelected(r.Context(), draftID(r), chi.URLParam(r, "lineID"), *body.Selected)
	h.respond(w, r, result, err)
}

// getDetail handles GET /api/drafts/{id}/environments/{lineID}/items.
func (h *Handler) getDetail(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetDetail(r.Context(), draftID(r), chi.URLParam(r, "lineID"))
	h.respond(w, r, result, err)
}

// sortDetail handles POST /api/drafts/{id}/environments/{lineID}/items/sort.
// Sorting by the same key twice in a row flips the direction.
func (h *Handler) sortDetail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key core.SortKey `json:"key"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Key == "" {
		body.Key = core.SortByDescription
	}
	result, err := h.svc.SortDetail(r.Context(), draftID(r), chi.URLParam(r, "lineID"), body.Key)
	h.respond(w, r, result, err)
}

// addItem handles POST /api/drafts/{id}/environments/{lineID}/items.
func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Description string `json:"description"`
		Category    string `json:"category"`
		Quantity    string `json:"quantity"`
		UnitPrice   string `json:"unit_price"`
		TotalPrice  string `json:"total_price"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	qty, ok := parseDecimal(w, r, "quantity", body.Quantity, false)
	if !ok {
		return
	}
	unit, ok := parseDecimal(w, r, "unit_price", body.UnitPrice, true)
	if !ok {
		return
	}
	total, ok := parseDecimal(w, r, "total_price", body.TotalPrice, true)
	if !ok {
		return
	}

	result, err := h.svc.AddItem(r.Context(), app.AddItemRequest{
		DraftID:     draftID(r),
		LineID:      chi.URLParam(r, "lineID"),
		Description: body.Description,
		Category:    body.Category,
		Quantity:    qty,
		UnitPrice:   unit,
		TotalPrice:  total,
	})
	h.respond(w, r, result, err)
}

// removeItem handles DELETE /api/drafts/{id}/environments/{lineID}/items/{index}.
func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, "index must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.RemoveItem(r.Context(), draftID(r), chi.URLParam(r, "lineID"), index)
	h.respond(w, r, result, err)
}

// ── Referral, discount and rate ─────────────────────────────────────────────

// setReferral handles POST /api/drafts/{id}/referral.
func (h *Handler) setReferral(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PartyID string `json:"party_id"`
		Percent string `json:"percent"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	pct, ok := parseDecimal(w, r, "percent", body.Percent, false)
	if !ok {
		return
	}
	result, err := h.svc.SetReferral(r.Context(), app.SetReferralRequest{DraftID: draftID(r), PartyID: body.PartyID, Percent: pct})
	h.respond(w, r, result, err)
}

// setDiscount handles POST /api/drafts/{id}/discount with exactly one of
// "percent" or "value".
func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Percent string `json:"percent"`
		Value   string `json:"value"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	req := app.SetDiscountRequest{DraftID: draftID(r)}
	var raw, field string
	switch {
	case body.Percent != "" && body.Value != "":
		writeError(w, r, "send either percent or value, not both", "BAD_REQUEST", http.StatusBadRequest)
		return
	case body.Value != "":
		req.Source, raw, field = core.DiscountByValue, body.Value, "value"
	default:
		req.Source, raw, field = core.DiscountByPercent, body.Percent, "percent"
	}
	amount, ok := parseDecimal(w, r, field, raw, false)
	if !ok {
		return
	}
	req.Amount = amount

	result, err := h.svc.SetDiscount(r.Context(), req)
	h.respond(w, r, result, err)
}

// setInterestRate handles POST /api/drafts/{id}/interest-rate.
func (h *Handler) setInterestRate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RatePercent string `json:"rate_percent"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	rate, ok := parseDecimal(w, r, "rate_percent", body.RatePercent, false)
	if !ok {
		return
	}
	result, err := h.svc.SetInterestRate(r.Context(), draftID(r), rate)
	h.respond(w, r, result, err)
}

// ── Payment schedule ────────────────────────────────────────────────────────

// addPayment handles POST /api/drafts/{id}/payments.
func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Method       string `json:"method"`
		Amount       string `json:"amount"`
		Installments int    `json:"installments"`
		FirstDueDate string `json:"first_due_date"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	amount, ok := parseDecimal(w, r, "amount", body.Amount, false)
	if !ok {
		return
	}
	if body.Installments == 0 {
		body.Installments = 1
	}
	var due time.Time
	if body.FirstDueDate != "" {
		var err error
		if due, err = time.Parse(dateLayout, body.FirstDueDate); err != nil {
			writeError(w, r, "first_due_date must be YYYY-MM-DD", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	}

	result, err := h.svc.AddPayment(r.Context(), app.AddPaymentRequest{
		DraftID:      draftID(r),
		Method:       core.PaymentMethod(strings.ToUpper(strings.TrimSpace(body.Method))),
		Amount:       amount,
		Installments: body.Installments,
		FirstDue:     due,
	})
	h.respond(w, r, result, err)
}

// removeInstallment handles DELETE /api/drafts/{id}/payments/{installmentID}.
func (h *Handler) removeInstallment(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RemoveInstallment(r.Context(), draftID(r), chi.URLParam(r, "installmentID"))
	h.respond(w, r, result, err)
}

// applyRemainder handles POST /api/drafts/{id}/apply-remainder.
func (h *Handler) applyRemainder(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ApplyRemainder(r.Context(), draftID(r))
	h.respond(w, r, result, err)
}

// interpretPaymentPlan handles POST /api/drafts/{id}/payment-plan. The plan is
// returned for confirmation and is not applied.
func (h *Handler) interpretPaymentPlan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.InterpretPaymentPlan(r.Context(), draftID(r), body.Text)
	h.respond(w, r, result, err)
}

// applyPaymentPlan handles POST /api/drafts/{id}/payment-plan/apply with the
// confirmed entries.
func (h *Handler) applyPaymentPlan(w http.ResponseWriter, r *http.Request) {
	var plan core.PaymentPlan
	if !decodeJSON(w, r, &plan) {
		return
	}
	plan.Normalize()
	payments, err := plan.Validate()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	result, err := h.svc.ApplyPaymentPlan(r.Context(), draftID(r), payments)
	h.respond(w, r, result, err)
}

// ── Finalization and export ─────────────────────────────────────────────────

// finalize handles POST /api/drafts/{id}/finalize.
func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClientID string `json:"client_id"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.Finalize(r.Context(), app.FinalizeRequest{DraftID: draftID(r), ClientID: body.ClientID})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// exportWorkbook handles GET /api/drafts/{id}/export.xlsx.
func (h *Handler) exportWorkbook(w http.ResponseWriter, r *http.Request) {
	id := draftID(r)
	data, err := h.svc.ExportWorkbook(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="proposta-%s.xlsx"`, id))
	_, _ = w.Write(data)
}

// ── Contracts ───────────────────────────────────────────────────────────────

// listContracts handles GET /api/companies/{code}/contracts.
func (h *Handler) listContracts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListContracts(r.Context(), chi.URLParam(r, "code"))
	h.respond(w, r, result, err)
}

// getContract handles GET /api/companies/{code}/contracts/{number}.
func (h *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetContract(r.Context(), chi.URLParam(r, "code"), chi.URLParam(r, "number"))
	h.respond(w, r, result, err)
}

// respond writes result as JSON, or the mapped error.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, result any, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// parseDecimal parses a decimal request field. Blank values are zero when
// optional and rejected otherwise.
func parseDecimal(w http.ResponseWriter, r *http.Request, field, raw string, optional bool) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if optional {
			return decimal.Zero, true
		}
		writeError(w, r, field+" is required", "BAD_REQUEST", http.StatusBadRequest)
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		writeError(w, r, fmt.Sprintf("%s: invalid decimal %q", field, raw), "BAD_REQUEST", http.StatusBadRequest)
		return decimal.Zero, false
	}
	return v, true
}
