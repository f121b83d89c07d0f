package discount

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

// Handler exposes admin discount endpoints.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/admin/products/{productId}/discounts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}
	recs, err := h.Svc.ListByProduct(r.Context(), productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": recs})
}

// Create handles POST /api/v1/admin/products/{productId}/discounts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.pathID(w, r, "productId")
	if !ok {
		return
	}
	var in Input
	if err := common.Decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.Svc.Create(r.Context(), productID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rec})
}

// Update handles PATCH /api/v1/admin/discounts/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var patch Patch
	if err := common.Decode(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.Svc.Update(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Deactivate handles DELETE /api/v1/admin/discounts/{id}.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.Svc.Deactivate(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Preview handles POST /api/v1/admin/discounts/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var in PreviewInput
	if err := common.Decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	quote, err := h.Svc.Preview(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
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
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("discount_request_failed")
	}
	common.WriteError(w, mapped)
}
