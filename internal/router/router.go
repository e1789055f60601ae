package router

import (
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	appLogger "github.com/FACorreiaa/onelink-market/app/logger"
	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/api/auth"
	"github.com/FACorreiaa/onelink-market/internal/api/authz"
	"github.com/FACorreiaa/onelink-market/internal/api/documents"
	"github.com/FACorreiaa/onelink-market/internal/api/freeze"
	"github.com/FACorreiaa/onelink-market/internal/api/health"
	"github.com/FACorreiaa/onelink-market/internal/api/onboarding"
	"github.com/FACorreiaa/onelink-market/internal/api/products"
	"github.com/FACorreiaa/onelink-market/internal/api/profiles"
	"github.com/FACorreiaa/onelink-market/internal/api/shops"
	"github.com/FACorreiaa/onelink-market/internal/api/verification"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

// Config contains everything SetupRouter mounts.
type Config struct {
	Logger      *slog.Logger
	CorsOrigins []string
	Timeout     time.Duration
	PagesDir    string

	AuthHandler         *auth.AuthHandler
	VerificationHandler *verification.VerificationHandler
	OnboardingHandler   *onboarding.OnboardingHandler
	DocumentHandler     *documents.DocumentHandler
	ProfileHandler      *profiles.ProfileHandler
	ProductHandler      *products.ProductHandler
	ShopHandler         *shops.ShopHandler
	HealthHandler       *health.HealthHandler

	Guard  *authz.Guard
	Freeze freeze.Source

	// Authenticate rejects requests without a valid session; Identify only
	// attaches one when present.
	Authenticate func(http.Handler) http.Handler
	Identify     func(http.Handler) http.Handler
	// AuthRateLimit throttles the public auth endpoints. Optional.
	AuthRateLimit func(http.Handler) http.Handler

	MetricsHandler http.Handler
}

func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if cfg.Timeout > 0 {
		r.Use(middleware.Timeout(cfg.Timeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	coreGate := freeze.CoreWriteGate(cfg.Freeze, cfg.Logger)
	shopsGate := freeze.ShopsWriteGate(cfg.Freeze, cfg.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", cfg.HealthHandler.Health)

		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimit != nil {
				r.Use(cfg.AuthRateLimit)
			}
			r.Post("/sign-up", cfg.AuthHandler.SignUp)
			r.Post("/sign-in", cfg.AuthHandler.SignIn)
			r.Post("/sign-out", cfg.AuthHandler.SignOut)
			r.Post("/reset", cfg.AuthHandler.RequestReset)
			r.Post("/reset/confirm", cfg.AuthHandler.ConfirmReset)

			r.Group(func(r chi.Router) {
				r.Use(cfg.Authenticate)
				r.Post("/send-verification", cfg.VerificationHandler.SendVerification)
				r.Post("/verify-email", cfg.VerificationHandler.VerifyEmail)
				r.Get("/verification-status", cfg.VerificationHandler.VerificationStatus)
			})

			r.Get("/{provider}", cfg.AuthHandler.BeginOAuth)
			r.Get("/{provider}/callback", cfg.AuthHandler.OAuthCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)

			r.Get("/me", cfg.ProfileHandler.Me)

			r.Route("/onboarding", func(r chi.Router) {
				r.Get("/progress", cfg.OnboardingHandler.GetProgress)
				r.Post("/progress", cfg.OnboardingHandler.SubmitStep)
				r.Post("/submit", cfg.OnboardingHandler.Submit)
				r.Post("/check-handle", cfg.OnboardingHandler.CheckHandle)
				r.Get("/docs", cfg.DocumentHandler.List)
				r.Post("/docs", cfg.DocumentHandler.Upload)
				r.With(cfg.Guard.RequireRole(types.RoleSupplier)).Post("/brand", cfg.OnboardingHandler.SaveBrandDetails)
				r.With(cfg.Guard.RequireRole(types.RoleInfluencer)).Post("/influencer", cfg.OnboardingHandler.SavePayoutDetails)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(cfg.Guard.RequireRole(types.RoleAdmin))
				r.Use(coreGate)
				r.Get("/users", cfg.ProfileHandler.ListUsers)
				r.Put("/users/{id}/verify", cfg.ProfileHandler.SetVerified)
				r.Put("/users/{id}/role", cfg.ProfileHandler.SetRole)
				r.Get("/stats", cfg.ProfileHandler.Stats)
				r.Post("/verification/{requestId}/review", cfg.DocumentHandler.Review)
			})

			r.Route("/influencer/shop", func(r chi.Router) {
				r.Use(shopsGate)
				r.Use(cfg.Guard.RequireRole(types.RoleInfluencer))
				r.Get("/", cfg.ShopHandler.List)
				r.Post("/", cfg.ShopHandler.Add)
				r.Put("/{productId}", cfg.ShopHandler.Update)
				r.Delete("/{productId}", cfg.ShopHandler.Remove)
			})
		})

		r.Get("/shop/{handle}", cfg.ShopHandler.Storefront)

		r.Route("/products", func(r chi.Router) {
			r.Use(shopsGate)
			r.Get("/", cfg.ProductHandler.List)
			r.Get("/{id}", cfg.ProductHandler.Get)
			r.Group(func(r chi.Router) {
				r.Use(cfg.Authenticate)
				r.Use(cfg.Guard.RequireRole(types.RoleSupplier, types.RoleAdmin))
				r.Post("/", cfg.ProductHandler.Create)
				r.Put("/{id}", cfg.ProductHandler.Update)
				r.Delete("/{id}", cfg.ProductHandler.Delete)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(cfg.Identify)
		r.Get("/auth/continue", cfg.Guard.Continue)

		pages := pageHandler(cfg.PagesDir)
		for prefix, role := range map[string]types.Role{
			"/admin":                types.RoleAdmin,
			"/dashboard/supplier":   types.RoleSupplier,
			"/dashboard/influencer": types.RoleInfluencer,
		} {
			guarded := cfg.Guard.RequirePage(role)(pages)
			r.Method(http.MethodGet, prefix, guarded)
			r.Method(http.MethodGet, prefix+"/*", guarded)
		}
	})

	return r
}

// pageHandler serves the built dashboard from dir. Without a directory it
// answers with the page and role so deployments behind a separate frontend
// can still check the guard.
func pageHandler(dir string) http.HandlerFunc {
	if dir != "" {
		fs := http.FileServer(http.Dir(dir))
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			fs.ServeHTTP(w, r)
		}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		role := ""
		if p, ok := authz.ProfileFrom(r.Context()); ok {
			role = string(p.Role)
		}
		w.Header().Set("Cache-Control", "no-store")
		api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{
			"page": path.Clean(r.URL.Path),
			"role": role,
		})
	}
}
