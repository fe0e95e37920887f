package rest

import (
	"net/http"
	"time"

	"recharge-service/internal/domain"
	"recharge-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Sale    *SaleHandler
	Receipt *ReceiptHandler
	Admin   *AdminHandler
	Catalog *CatalogHandler
	Agents  *usecase.AgentUsecase
}

// NewRouter wires the full HTTP surface. The public receipt route and the
// health/metrics endpoints sit outside the actor middleware; everything
// else requires a resolved caller.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public, token-authenticated receipt lookup.
	r.Get("/receipt/{token}", h.Receipt.Get)

	r.Route("/api", func(r chi.Router) {
		r.Use(ActorMiddleware(h.Agents))

		r.Get("/catalog/companies", h.Catalog.ListCompanies)
		r.Get("/catalog/companies/{id}/denominations", h.Catalog.ListDenominations)

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", h.Sale.Sell)
			r.Get("/", h.Sale.List)
			r.Post("/{id}/confirm", h.Sale.Confirm)
			r.Post("/{id}/reissue", h.Sale.Reissue)
			r.Post("/{id}/reprint", h.Sale.Reprint)
		})

		r.Get("/balance", h.Sale.Balance)

		r.Route("/admin", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(func(c *domain.AdminCapabilities) bool { return c.CanAddAgents }))
				r.Post("/agents", h.Admin.CreateAgent)
			})
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(func(c *domain.AdminCapabilities) bool { return c.CanEditAgents }))
				r.Post("/agents/{id}/suspend", h.Admin.SuspendAgent)
				r.Post("/agents/{id}/activate", h.Admin.ActivateAgent)
				r.Post("/agents/{id}/balance/adjust", h.Admin.AdjustBalance)
			})
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(func(c *domain.AdminCapabilities) bool { return c.CanViewAgents }))
				r.Get("/agents/{id}/balance", h.Admin.GetAgentBalance)
			})
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(func(c *domain.AdminCapabilities) bool { return c.CanEditCommissions }))
				r.Post("/commission-rules", h.Admin.UpsertCommissionRule)
			})
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(func(c *domain.AdminCapabilities) bool { return c.CanViewCommissions }))
				r.Get("/commission-rules", h.Admin.ListCommissionRules)
			})
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(func(c *domain.AdminCapabilities) bool { return c.CanViewAuditLogs }))
				r.Get("/audit", h.Admin.ListAudit)
				r.Get("/transactions/{id}/receipt/verify", h.Admin.VerifyReceipt)
			})
		})
	})

	return r
}
