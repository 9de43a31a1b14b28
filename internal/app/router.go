package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/procura-erp/procura-erp/internal/finance"
	"github.com/procura-erp/procura-erp/internal/masterdata"
	"github.com/procura-erp/procura-erp/internal/observability"
	"github.com/procura-erp/procura-erp/internal/receipt"
	"github.com/procura-erp/procura-erp/internal/requisition"
	"github.com/procura-erp/procura-erp/internal/rfq"
	"github.com/procura-erp/procura-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	MasterDataHandler  *masterdata.Handler
	RequisitionHandler *requisition.Handler
	RFQHandler         *rfq.Handler
	ReceiptHandler     *receipt.Handler
	FinanceHandler     *finance.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Procura defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.MasterDataHandler != nil {
			r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
		}
		if params.RequisitionHandler != nil {
			r.Route("/requisitions", params.RequisitionHandler.MountRoutes)
		}
		if params.RFQHandler != nil {
			r.Route("/rfqs", params.RFQHandler.MountRoutes)
		}
		if params.ReceiptHandler != nil {
			r.Route("/receipts", params.ReceiptHandler.MountRoutes)
		}
		if params.FinanceHandler != nil {
			r.Route("/finance", params.FinanceHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
