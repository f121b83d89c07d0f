package cart

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

type createRequest struct {
	AnonID string `json:"anonId" validate:"omitempty,max=64"`
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=99"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0,lte=99"`
}

// Create returns the caller's active cart, creating one when needed. Anonymous
// callers get a generated anonId unless they supply one.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &payload); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	userID, _ := common.UserID(r.Context())
	anonID := strings.TrimSpace(payload.AnonID)
	if userID == "" && anonID == "" {
		anonID = uuid.NewString()
	}
	c, err := h.Svc.Ensure(r.Context(), userID, anonID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, r, http.StatusCreated, c.ID)
}

// Get handles GET /api/v1/carts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, cartID)
}

// AddItem handles POST /api/v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var payload addItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	productID, err := uuid.Parse(payload.ProductID)
	if err != nil {
		appErr := common.BadRequest("invalid productId", err)
		appErr.Details = map[string]any{"field": "productId"}
		h.writeError(w, r, appErr)
		return
	}
	if err := h.Svc.AddItem(r.Context(), caller(r), cartID, productID, payload.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, cartID)
}

// UpdateItem handles PATCH /api/v1/carts/{id}/items/{itemId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathID(w, r, "itemId")
	if !ok {
		return
	}
	var payload updateItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), caller(r), cartID, itemID, payload.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, cartID)
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{itemId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathID(w, r, "itemId")
	if !ok {
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), caller(r), cartID, itemID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, cartID)
}

// Merge handles POST /api/v1/carts/{id}/merge, folding a guest cart into the
// authenticated user's cart.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	guestID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	c, err := h.Svc.Merge(r.Context(), userID, guestID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, c.ID)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, cartID uuid.UUID) {
	view, err := h.Svc.View(r.Context(), caller(r), cartID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, status, map[string]any{"data": view})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		appErr := common.BadRequest("invalid "+param, err)
		appErr.Details = map[string]any{"field": param}
		common.WriteError(w, appErr)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := MapError(err)
	if !common.IsAppError(mapped) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("cart_request_failed")
	}
	common.WriteError(w, mapped)
}

func caller(r *http.Request) string {
	id, _ := common.UserID(r.Context())
	return id
}
