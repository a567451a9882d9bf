package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Marcoscjr/temporipro2-sub000/internal/app"
	"github.com/Marcoscjr/temporipro2-sub000/internal/core"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps an ApplicationService error to its HTTP status and code.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, r, err.Error(), code, status)
}

func classifyError(err error) (int, string) {
	var importErr *core.ImportError
	switch {
	case errors.As(err, &importErr):
		if errors.Is(err, core.ErrNoPriceableItemsFound) {
			return http.StatusUnprocessableEntity, "NO_PRICEABLE_ITEMS"
		}
		return http.StatusUnprocessableEntity, "MALFORMED_DOCUMENT"
	case core.IsConfigurationError(err):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, core.ErrInvalidInstallment):
		return http.StatusBadRequest, "INVALID_INSTALLMENT"
	case errors.Is(err, core.ErrReconciliationBlocked):
		return http.StatusConflict, "RECONCILIATION_BLOCKED"
	case errors.Is(err, core.ErrNoPositiveRemainder):
		return http.StatusConflict, "NO_POSITIVE_REMAINDER"
	case errors.Is(err, core.ErrEmptyProposal):
		return http.StatusConflict, "EMPTY_PROPOSAL"
	case errors.Is(err, app.ErrDraftFinalized):
		return http.StatusConflict, "DRAFT_FINALIZED"
	case errors.Is(err, app.ErrDraftNotFound),
		errors.Is(err, core.ErrEnvironmentNotFound),
		errors.Is(err, core.ErrItemNotFound),
		errors.Is(err, core.ErrInstallmentNotFound),
		errors.Is(err, core.ErrContractNotFound),
		errors.Is(err, core.ErrCompanyNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, app.ErrContractsDisabled), errors.Is(err, app.ErrAIDisabled):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
