package requisition

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/procura-erp/procura-erp/internal/allocation"
	"github.com/procura-erp/procura-erp/internal/platform/httpx"
	"github.com/procura-erp/procura-erp/internal/shared"
)

// Handler exposes the requisition JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers requisition routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/submit", h.submit)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/convert", h.convert)
}

type lineDTO struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
	Note        string  `json:"note"`
}

type createDTO struct {
	Number      string           `json:"number"`
	RequesterID int64            `json:"requester_id"`
	SupplierID  int64            `json:"supplier_id"`
	Note        string           `json:"note"`
	NeedBy      string           `json:"need_by"`
	Lines       []lineDTO        `json:"lines"`
	Allocations []allocation.Row `json:"allocations"`
}

type actionDTO struct {
	ActorID int64  `json:"actor_id"`
	Note    string `json:"note"`
}

type convertDTO struct {
	Number       string             `json:"number"`
	SupplierID   int64              `json:"supplier_id"`
	LinePrices   map[string]float64 `json:"line_prices"`
	ExpectedDate string             `json:"expected_date"`
	Note         string             `json:"note"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	supplierID, _ := strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	filters := ListFilters{
		Status:     r.URL.Query().Get("status"),
		SupplierID: supplierID,
		Search:     r.URL.Query().Get("search"),
	}
	items, total, err := h.service.List(r.Context(), limit, offset, filters)
	if err != nil {
		h.respondError(w, "list requisitions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.PaginationFromOffset(limit, offset, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	input := CreateInput{
		Number:      payload.Number,
		RequesterID: payload.RequesterID,
		SupplierID:  payload.SupplierID,
		Note:        payload.Note,
		Allocations: payload.Allocations,
	}
	if payload.NeedBy != "" {
		needBy, err := time.Parse("2006-01-02", payload.NeedBy)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "need_by must be YYYY-MM-DD")
			return
		}
		input.NeedBy = needBy
	}
	for _, line := range payload.Lines {
		input.Lines = append(input.Lines, LineInput(line))
	}
	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, "create requisition", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	req, lines, rows, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get requisition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requisition": req, "lines": lines, "allocations": rows})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload createDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	var lines []LineInput
	for _, line := range payload.Lines {
		lines = append(lines, LineInput(line))
	}
	if err := h.service.UpdateDraft(r.Context(), id, lines, payload.Allocations); err != nil {
		h.respondError(w, "update requisition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit requisition", h.service.Submit)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve requisition", h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload actionDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.service.Reject(r.Context(), id, payload.ActorID, payload.Note); err != nil {
		h.respondError(w, "reject requisition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": StatusRejected})
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload convertDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	input := ConvertInput{
		RequisitionID: id,
		Number:        payload.Number,
		SupplierID:    payload.SupplierID,
		LinePrices:    payload.LinePrices,
		Note:          payload.Note,
	}
	if payload.ExpectedDate != "" {
		expected, err := time.Parse("2006-01-02", payload.ExpectedDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected_date must be YYYY-MM-DD")
			return
		}
		input.ExpectedDate = expected
	}
	order, err := h.service.ConvertToOrder(r.Context(), input)
	if err != nil {
		h.respondError(w, "convert requisition", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, int64, int64) error) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload actionDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := fn(r.Context(), id, payload.ActorID); err != nil {
		h.respondError(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, ErrValidation), errors.Is(err, ErrAllocation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
