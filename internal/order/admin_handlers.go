package order

import (
	"net/http"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

// AdminHandler provides back-office order endpoints. Routes are guarded by
// the orders read/manage permissions.
type AdminHandler struct {
	Svc *Service
}

type patchStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// List handles GET /api/v1/admin/orders?status=.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20, 100)
	status := parseStatus(r.URL.Query().Get("status"))
	orders, total, err := h.Svc.ListAll(r.Context(), status, perPage, common.Offset(page, perPage))
	if err != nil {
		writeError(w, r, err)
		return
	}
	renderList(w, orders, total, page, perPage)
}

// PatchStatus handles PATCH /api/v1/admin/orders/{orderId}/status.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req patchStatusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.Advance(r.Context(), id, parseStatus(req.Status)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
