package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"labgate/internal/platform/middleware"
	"labgate/internal/provider"
	"labgate/internal/transport/httputil"
	dErrors "labgate/pkg/domain-errors"
)

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFrom(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "not authenticated"))
		return
	}

	productType := r.URL.Query().Get("type")
	if productType == "" {
		productType = "ALL"
	}

	resp, err := h.prov.Products(r.Context(), adminID, middleware.GetClientIP(r.Context()), productType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"products": resp.Master})
}

func (h *Handler) handlePincode(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFrom(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "not authenticated"))
		return
	}

	pincode := chi.URLParam(r, "pincode")
	if len(pincode) != 6 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "pincode must be 6 digits"))
		return
	}

	resp, err := h.prov.PincodeAvailability(r.Context(), adminID, middleware.GetClientIP(r.Context()), pincode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"pincode":     pincode,
		"serviceable": resp.Status == "Y",
	})
}

type slotsRequest struct {
	Pincode  string `json:"pincode"`
	Date     string `json:"date"`
	BenCount int    `json:"benCount"`
}

func (h *Handler) handleSlots(w http.ResponseWriter, r *http.Request) {
	adminID, ok := adminFrom(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "not authenticated"))
		return
	}

	var req slotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Pincode == "" || req.Date == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "pincode and date are required"))
		return
	}
	if req.BenCount < 1 {
		req.BenCount = 1
	}

	resp, err := h.prov.AppointmentSlots(r.Context(), adminID, middleware.GetClientIP(r.Context()), provider.SlotsRequest{
		Pincode:  req.Pincode,
		Date:     req.Date,
		BenCount: req.BenCount,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"slots": resp.Slots})
}
