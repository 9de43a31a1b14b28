package finance

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/procura-erp/procura-erp/internal/platform/httpx"
	"github.com/procura-erp/procura-erp/internal/shared"
)

// Handler exposes journal lookups.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/journals/receipt/{id}", h.journalForReceipt)
}

func (h *Handler) journalForReceipt(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	journal, err := h.service.JournalForReceipt(r.Context(), id)
	if err != nil {
		h.logger.Error("journal for receipt", slog.Any("error", err))
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
			return
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, journal)
}
