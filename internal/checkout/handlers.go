package checkout

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

// Handler exposes POST /api/v1/checkout.
type Handler struct {
	Svc *Service
}

// Checkout places an order from the caller's cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload Input
	if err := common.Decode(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.Create(r.Context(), userID, common.Email(r.Context()), payload)
	if err != nil {
		mapped := MapError(err)
		if !common.IsAppError(mapped) {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("checkout_failed")
		}
		common.WriteError(w, mapped)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}
