package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hisabdesk/api/internal/config"
	"github.com/hisabdesk/api/internal/handler"
	"github.com/hisabdesk/api/internal/ledger"
	mw "github.com/hisabdesk/api/internal/middleware"
	"github.com/hisabdesk/api/internal/store"
	"github.com/hisabdesk/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *store.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"https://app.hisabdesk.com",
			"https://stg-app.hisabdesk.com",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orgs/{org}/postings", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Ledger engine shared by the handlers below
	keys := ledger.NewKeyAccountResolver(queries)
	bal := ledger.NewCalculator(queries)
	links := ledger.NewLinkResolver(queries, keys)
	poster := ledger.NewPoster(pool, func(db store.DBTX) ledger.PostingStore {
		return store.New(db)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Chart of accounts, balances, key-account lookups
		accountsHandler := handler.NewAccountsHandler(queries, keys, bal)
		accountsHandler.RegisterRoutes(r)

		// Dashboard KPIs
		dashboardHandler := handler.NewDashboardHandler(ledger.NewAggregator(keys, bal))
		dashboardHandler.RegisterRoutes(r)

		// Payments
		paymentHandler := handler.NewPaymentHandler(
			queries,
			pool,
			func(db store.DBTX) handler.PaymentStore {
				return store.New(db)
			},
			poster,
			links,
			keys,
			hub,
		)
		r.Route("/payments", paymentHandler.RegisterRoutes)

		// Bank accounts
		bankAccountHandler := handler.NewBankAccountHandler(queries, links)
		r.Route("/bank-accounts", bankAccountHandler.RegisterRoutes)

		// Journals
		journalHandler := handler.NewJournalHandler(queries, poster)
		r.Route("/journals", func(r chi.Router) {
			journalHandler.RegisterRoutes(r)

			// Manual postings and key-account mapping are bookkeeping
			// surgery, kept away from STAFF.
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole("OWNER", "ACCOUNTANT"))
				journalHandler.RegisterAdminRoutes(r)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole("OWNER", "ACCOUNTANT"))
			accountsHandler.RegisterAdminRoutes(r)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
