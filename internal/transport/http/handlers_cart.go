package httptransport

import (
	"encoding/json"
	"net/http"

	"labgate/internal/cart"
	"labgate/internal/platform/middleware"
	"labgate/internal/transport/httputil"
	dErrors "labgate/pkg/domain-errors"
)

type cartValidateRequest struct {
	Items    []cart.Item `json:"items"`
	BenCount int         `json:"benCount"`
}

func (h *Handler) handleCartValidate(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFrom(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "not authenticated"))
		return
	}

	var req cartValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	validated, err := h.cart.ValidateAndAdjustCart(r.Context(), adminID, middleware.GetClientIP(r.Context()), req.Items, req.BenCount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, validated)
}

type cartDuplicatesRequest struct {
	Items     []cart.Item `json:"items"`
	Candidate cart.Item   `json:"candidate"`
}

func (h *Handler) handleCartDuplicates(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFrom(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "not authenticated"))
		return
	}

	var req cartDuplicatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	report, err := h.cart.CheckDuplicates(r.Context(), adminID, middleware.GetClientIP(r.Context()), req.Items, req.Candidate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
