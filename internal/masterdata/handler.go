package masterdata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/procura-erp/procura-erp/internal/platform/httpx"
	"github.com/procura-erp/procura-erp/internal/shared"
)

// Handler exposes the master-data JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers master-data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cost-centers/tree", h.costCenterTree)
	r.Post("/cost-centers", h.createCostCenter)
	r.Put("/cost-centers/{id}", h.updateCostCenter)
	r.Get("/chart-accounts/tree", h.chartAccountTree)
	r.Post("/chart-accounts", h.createChartAccount)
	r.Put("/chart-accounts/{id}", h.updateChartAccount)
	r.Get("/suppliers", h.listSuppliers)
	r.Post("/suppliers", h.createSupplier)
	r.Get("/suppliers/{id}", h.getSupplier)
	r.Put("/suppliers/{id}", h.updateSupplier)
}

func (h *Handler) costCenterTree(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.CostCenterTree(r.Context())
	if err != nil {
		h.respondError(w, "cost center tree", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) chartAccountTree(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ChartAccountTree(r.Context())
	if err != nil {
		h.respondError(w, "chart account tree", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) createCostCenter(w http.ResponseWriter, r *http.Request) {
	var payload CostCenter
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	created, err := h.service.CreateCostCenter(r.Context(), payload)
	if err != nil {
		h.respondError(w, "create cost center", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateCostCenter(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload CostCenter
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	payload.ID = id
	if err := h.service.UpdateCostCenter(r.Context(), payload); err != nil {
		h.respondError(w, "update cost center", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) createChartAccount(w http.ResponseWriter, r *http.Request) {
	var payload ChartAccount
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	created, err := h.service.CreateChartAccount(r.Context(), payload)
	if err != nil {
		h.respondError(w, "create chart account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateChartAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload ChartAccount
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	payload.ID = id
	if err := h.service.UpdateChartAccount(r.Context(), payload); err != nil {
		h.respondError(w, "update chart account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	filter := SupplierFilter{
		Search:     r.URL.Query().Get("search"),
		OnlyActive: r.URL.Query().Get("active") == "true",
	}
	items, total, err := h.service.ListSuppliers(r.Context(), filter, limit, offset)
	if err != nil {
		h.respondError(w, "list suppliers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.PaginationFromOffset(limit, offset, total),
	})
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	sup, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		h.respondError(w, "get supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var payload Supplier
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	created, err := h.service.CreateSupplier(r.Context(), payload)
	if err != nil {
		h.respondError(w, "create supplier", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload Supplier
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	payload.ID = id
	if err := h.service.UpdateSupplier(r.Context(), payload); err != nil {
		h.respondError(w, "update supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
