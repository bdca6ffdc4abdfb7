package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/example/pricelist/internal/api/middleware"
	"github.com/example/pricelist/internal/api/problem"
	"github.com/example/pricelist/internal/auth"
)

// RouterConfig holds the dependencies for the router
type RouterConfig struct {
	Handlers       *Handlers
	AuthHandlers   *AuthHandlers
	JWTService     *auth.JWTService
	Production     bool
	LoginRateLimit int
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r.Use(
		chimw.RealIP,
		chimw.RequestID,
		chimw.Recoverer,
		withLogging,
		securityHeaders(cfg.Production),
		chimw.Timeout(timeout),
		middleware.OptionalAuthMiddleware(cfg.JWTService),
	)

	h := cfg.Handlers
	admin := middleware.RequireAdmin

	// Auth
	loginLimit := cfg.LoginRateLimit
	if loginLimit <= 0 {
		loginLimit = 5
	}
	r.With(httprate.Limit(loginLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem.Write(w, http.StatusTooManyRequests, "Too many requests", "login attempts exceeded, retry later")
		}),
	)).Post("/auth/login", cfg.AuthHandlers.Login)
	r.Post("/auth/logout", cfg.AuthHandlers.Logout)
	r.With(admin).Get("/auth/me", cfg.AuthHandlers.Me)

	// Products
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/categories", h.ListCategories)
		r.Get("/low-stock", h.LowStock)
		r.Get("/analytics", h.Analytics)
		r.Get("/export.csv", h.ExportPriceList)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Put("/{id}", h.UpdateProduct)
			r.Patch("/{id}", h.PatchProduct)
			r.Delete("/{id}", h.DeleteProduct)
			r.Post("/{id}/images", h.AddImage)
			r.Delete("/{id}/images/{index}", h.RemoveImage)
		})
	})

	// Draft
	r.Route("/draft", func(r chi.Router) {
		r.Get("/", h.GetDraft)
		r.Delete("/", h.ClearDraft)
		r.Put("/{model}", h.SetDraftQuantity)
		r.Post("/summary", h.SummarizeDraft)
	})

	// Orders
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.PlaceOrder)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
			r.Get("/{id}/export.csv", h.ExportOrder)
			r.Post("/{id}/processed", h.MarkProcessed)
			r.Put("/{id}/payment", h.SetPayment)
			r.Delete("/{id}", h.DeleteOrder)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func securityHeaders(production bool) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})
	return sec.Handler
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Printf("[API] %s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

func logf(format string, args ...any) {
	log.Printf("[API] "+format, args...)
}
