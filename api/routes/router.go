package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-ledger/api/controllers"
	"github.com/angelmondragon/packfinderz-ledger/api/middleware"
	"github.com/angelmondragon/packfinderz-ledger/internal/ledger"
	"github.com/angelmondragon/packfinderz-ledger/internal/reconcile"
	"github.com/angelmondragon/packfinderz-ledger/pkg/config"
	"github.com/angelmondragon/packfinderz-ledger/pkg/db"
	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	reconcileService reconcile.Service,
	ledgerService ledger.Service,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/reconcile", func(r chi.Router) {
			r.Get("/verify", controllers.AdminReconcileVerify(reconcileService, logg))
			r.Post("/heal", controllers.AdminReconcileHeal(reconcileService, logg))
			r.Post("/cold-start", controllers.AdminReconcileColdStart(reconcileService, logg))
		})
		r.Post("/reclaim", controllers.AdminReclaim(reconcileService, logg))
		r.Get("/ledger/{entityType}/{entityId}", controllers.AdminLedgerHistory(ledgerService, logg))
	})

	return r
}
