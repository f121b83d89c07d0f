package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

// Handler exposes catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Products handles GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	params, err := h.service.ParseListParams(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.service.List(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)},
	})
}

// ProductDetail handles GET /api/v1/products/{slug}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// CreateProduct handles POST /api/v1/admin/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := common.Decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// UpdateProduct handles PATCH /api/v1/admin/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, fieldError("id", "invalid product id", err))
		return
	}
	var patch ProductPatch
	if err := common.Decode(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := MapError(err)
	if !common.IsAppError(mapped) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("catalog_request_failed")
	}
	common.WriteError(w, mapped)
}
