package router

import (
	"time"

	"ledger-service/internal/handler"
	"ledger-service/internal/metrics"
	"ledger-service/shared/auth/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options configures the router. A nil RateCounter disables rate limiting on /api/v1.
type Options struct {
	AllowedOrigins []string
	RateCounter    middleware.Counter
	RateLimit      int
	RateWindow     time.Duration
}

func New(h *handler.Handler, opts Options) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// ---- Global Middleware ----
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.DefaultIdentityHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	// ============================================================
	// User Endpoints
	// ============================================================
	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/accounts", h.CreateAccount)

		api.Group(func(pr chi.Router) {
			pr.Use(middleware.RequireIdentity(middleware.DefaultIdentityHeader))
			if opts.RateCounter != nil {
				limit, window := opts.RateLimit, opts.RateWindow
				if limit <= 0 {
					limit = 120
				}
				if window <= 0 {
					window = time.Minute
				}
				pr.Use(middleware.RateLimiter(opts.RateCounter, limit, window, "rl:api"))
			}

			pr.Get("/accounts/me", h.GetMe)

			pr.Post("/trades", h.SettleTrade)
			pr.Get("/trades", h.ListTrades)

			pr.Post("/deposits", h.SubmitDeposit)
			pr.Post("/withdrawals", h.SubmitWithdrawal)

			pr.Route("/verifications", func(v chi.Router) {
				v.Post("/primary", h.SubmitPrimaryVerification)
				v.Post("/advanced", h.SubmitAdvancedVerification)
				v.Get("/status", h.VerificationStatus)
			})

			pr.Get("/uploads/{owner}/{name}", h.ServeOwnUpload)

			pr.Get("/ws/balance", h.BalanceWS)
		})
	})

	// ============================================================
	// Operator Endpoints
	// ============================================================
	// TODO: gate /admin behind operator authentication once an operator identity source exists.
	r.Route("/admin", func(ad chi.Router) {
		ad.Get("/favored-side", h.GetFavoredSide)
		ad.Post("/favored-side", h.SetFavoredSide)

		ad.Post("/{recordType}/{id}/status", h.SetStatus)

		ad.Get("/accounts", h.ListAccounts)
		ad.Post("/accounts/{username}/adjust", h.AdjustBalance)

		ad.Get("/requests", h.ListFundRequests)
		ad.Get("/verifications", h.ListVerifications)
		ad.Get("/reports/summary", h.Summary)
		ad.Get("/uploads/{owner}/{name}", h.ServeUpload)
	})

	return r
}
