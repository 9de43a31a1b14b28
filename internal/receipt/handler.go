package receipt

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/procura-erp/procura-erp/internal/allocation"
	"github.com/procura-erp/procura-erp/internal/platform/httpx"
	"github.com/procura-erp/procura-erp/internal/receipt/matching"
	"github.com/procura-erp/procura-erp/internal/requisition"
	"github.com/procura-erp/procura-erp/internal/shared"
)

// Handler exposes the receipt JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers receipt routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listByOrder)
	r.Post("/", h.create)
	r.Post("/import-preview", h.importPreview)
	r.Get("/{id}", h.get)
	r.Put("/{id}/allocations", h.setAllocations)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/rescore", h.rescore)
}

type createDTO struct {
	Number     string              `json:"number"`
	OrderID    int64               `json:"order_id"`
	Total      float64             `json:"total"`
	IssuedAt   string              `json:"issued_at"`
	ReceivedAt string              `json:"received_at"`
	Note       string              `json:"note"`
	Lines      []matching.LineItem `json:"lines"`
}

type allocationsDTO struct {
	Rows []allocation.Row `json:"rows"`
}

type confirmDTO struct {
	ActorID int64 `json:"actor_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	input := CreateInput{
		Number:  payload.Number,
		OrderID: payload.OrderID,
		Total:   payload.Total,
		Note:    payload.Note,
		Lines:   payload.Lines,
	}
	if payload.IssuedAt != "" {
		issued, err := time.Parse("2006-01-02", payload.IssuedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "issued_at must be YYYY-MM-DD")
			return
		}
		input.IssuedAt = issued
	}
	if payload.ReceivedAt != "" {
		received, err := time.Parse("2006-01-02", payload.ReceivedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "received_at must be YYYY-MM-DD")
			return
		}
		input.ReceivedAt = received
	}
	rec, matches, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, "create receipt", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"receipt": rec, "matches": matches})
}

// importPreview parses an uploaded invoice XML and returns the parsed
// lines without persisting anything.
func (h *Handler) importPreview(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()
	preview, err := ParseInvoiceXML(r.Body)
	if err != nil {
		h.respondError(w, "import preview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	rec, lines, rows, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get receipt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipt": rec, "lines": lines, "allocations": rows})
}

func (h *Handler) setAllocations(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload allocationsDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	filled, err := h.service.SetAllocations(r.Context(), id, payload.Rows)
	if err != nil {
		h.respondError(w, "set allocations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": filled})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload confirmDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.service.Confirm(r.Context(), id, payload.ActorID); err != nil {
		h.respondError(w, "confirm receipt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": StatusConfirmed})
}

func (h *Handler) listByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "order_id query parameter required")
		return
	}
	receipts, err := h.service.ListByOrder(r.Context(), orderID)
	if err != nil {
		h.respondError(w, "list receipts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": receipts})
}

func (h *Handler) rescore(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.RequestRescore(r.Context(), id); err != nil {
		h.respondError(w, "rescore receipt", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"id": id, "queued": true})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, requisition.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, ErrValidation), errors.Is(err, ErrAllocation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
