package rfq

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/procura-erp/procura-erp/internal/platform/httpx"
	"github.com/procura-erp/procura-erp/internal/requisition"
	"github.com/procura-erp/procura-erp/internal/shared"
)

// Handler exposes the RFQ JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers RFQ routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/quotes", h.recordQuote)
	r.Get("/{id}/comparison", h.comparison)
	r.Post("/{id}/award", h.award)
	r.Post("/{id}/cancel", h.cancel)
}

type createDTO struct {
	RequisitionID int64  `json:"requisition_id"`
	Number        string `json:"number"`
	Deadline      string `json:"deadline"`
	Note          string `json:"note"`
}

type quoteDTO struct {
	SupplierID int64              `json:"supplier_id"`
	Note       string             `json:"note"`
	Prices     map[string]float64 `json:"prices"`
}

type awardDTO struct {
	SupplierID int64 `json:"supplier_id"`
	ActorID    int64 `json:"actor_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	input := CreateInput{RequisitionID: payload.RequisitionID, Number: payload.Number, Note: payload.Note}
	if payload.Deadline != "" {
		deadline, err := time.Parse("2006-01-02", payload.Deadline)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "deadline must be YYYY-MM-DD")
			return
		}
		input.Deadline = deadline
	}
	created, err := h.service.CreateFromRequisition(r.Context(), input)
	if err != nil {
		h.respondError(w, "create rfq", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	rfq, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get rfq", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rfq": rfq, "items": items})
}

func (h *Handler) recordQuote(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload quoteDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	prices := make(map[int64]float64, len(payload.Prices))
	for key, price := range payload.Prices {
		itemID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "price keys must be item ids")
			return
		}
		prices[itemID] = price
	}
	err := h.service.RecordQuote(r.Context(), QuoteInput{
		RFQID:      id,
		SupplierID: payload.SupplierID,
		Note:       payload.Note,
		Prices:     prices,
	})
	if err != nil {
		h.respondError(w, "record quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"rfq_id": id, "supplier_id": payload.SupplierID})
}

func (h *Handler) comparison(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	cmp, err := h.service.CompareQuotes(r.Context(), id)
	if err != nil {
		h.respondError(w, "compare quotes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cmp)
}

func (h *Handler) award(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload awardDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.service.Award(r.Context(), id, payload.SupplierID, payload.ActorID); err != nil {
		h.respondError(w, "award rfq", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": StatusAwarded})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var payload awardDTO
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.service.Cancel(r.Context(), id, payload.ActorID); err != nil {
		h.respondError(w, "cancel rfq", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": StatusCancelled})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, requisition.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
