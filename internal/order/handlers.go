package order

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sneakers/internal/common"
	"github.com/noah-isme/backend-sneakers/internal/pricing"
	"github.com/noah-isme/backend-sneakers/internal/rbac"
)

// Handler exposes order endpoints.
type Handler struct {
	Svc *Service
}

type currencyView struct {
	Symbol     string `json:"symbol"`
	MinorUnits int64  `json:"minorUnits"`
}

type itemView struct {
	ID            string            `json:"id"`
	Position      int               `json:"position"`
	ProductID     string            `json:"productId"`
	Name          string            `json:"name"`
	Slug          string            `json:"slug"`
	UnitBasePrice pricing.Money     `json:"unitBasePrice"`
	Quantity      int               `json:"quantity"`
	Discount      *pricing.Discount `json:"discount"`
	pricing.PriceBreakdown
}

type orderView struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Status    Status          `json:"status"`
	Currency  currencyView    `json:"currency"`
	Totals    pricing.Totals  `json:"totals"`
	Summary   pricing.Summary `json:"summary"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Items     []itemView      `json:"items,omitempty"`
}

func toView(o Order) orderView {
	v := orderView{
		ID:        o.ID.String(),
		UserID:    o.UserID,
		Status:    o.Status,
		Currency:  currencyView{Symbol: o.Currency.Symbol, MinorUnits: o.Currency.MinorUnits},
		Totals:    o.Totals,
		Summary:   o.Summary,
		Notes:     o.Notes,
		CreatedAt: o.CreatedAt,
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, itemView{
			ID:             it.ID.String(),
			Position:       it.Position,
			ProductID:      it.ProductID.String(),
			Name:           it.ProductName,
			Slug:           it.ProductSlug,
			UnitBasePrice:  it.UnitBasePrice,
			Quantity:       it.Quantity,
			Discount:       it.Discount,
			PriceBreakdown: it.Breakdown,
		})
	}
	return v
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	orders, total, err := h.Svc.ListOwn(r.Context(), principal.UserID, perPage, common.Offset(page, perPage))
	if err != nil {
		writeError(w, r, err)
		return
	}
	renderList(w, orders, total, page, perPage)
}

// Get handles GET /api/v1/orders/{orderId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	o, err := h.Svc.Get(r.Context(), principal, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toView(o)})
}

// Confirmation handles GET /api/v1/orders/{orderId}/confirmation.
func (h *Handler) Confirmation(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.Confirmation(r.Context(), principal, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// Cancel handles POST /api/v1/orders/{orderId}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Cancel(r.Context(), principal.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": StatusCanceled}})
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (rbac.Principal, uuid.UUID, bool) {
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return rbac.Principal{}, uuid.Nil, false
	}
	id, ok := pathID(w, r)
	return principal, id, ok
}

func renderList(w http.ResponseWriter, orders []Order, total, page, perPage int) {
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toView(o))
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       views,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	mapped := MapError(err)
	if !common.IsAppError(mapped) {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("order_request_failed")
	}
	common.WriteError(w, mapped)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", map[string]any{"field": "orderId"})
		return uuid.Nil, false
	}
	return id, true
}

func parseStatus(raw string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(raw)))
}
