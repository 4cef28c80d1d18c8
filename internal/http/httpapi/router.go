package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"storyforge/internal/http/handlers"
	"storyforge/internal/middleware"
)

// RouterOptions carries the cross-cutting wiring the router needs beyond
// the handler app itself.
type RouterOptions struct {
	JWTSecret       string
	AllowedOrigins  []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
	DefaultLocale   string
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/v1/healthz", app.Health)

	// Public gallery needs no identity.
	r.Get("/v1/gallery", app.Gallery)

	// Vendor proxies: permissive CORS, identity still required so usage is
	// attributable.
	r.Route("/v1/proxy", func(r chi.Router) {
		r.Use(middleware.PermissiveCORS)
		r.Use(middleware.Identity(opts.JWTSecret))
		r.Post("/{vendor}", app.ProxyVendorCall)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity(opts.JWTSecret))

		r.Get("/v1/credits", app.Credits)
		r.Get("/v1/credits/catalog", app.CreditsCatalog)
		r.Post("/v1/credits/purchase", app.CreditsPurchase)
		r.Post("/v1/credits/limits", app.CreditsSetLimits)

		r.Post("/v1/stories", app.CreateStory)
		r.Post("/v1/shorts", app.CreateShort)
		r.Get("/v1/jobs/{jobID}", app.GetJob)
		r.Get("/v1/jobs/{jobID}/bundle", app.JobBundle)

		r.Get("/v1/history", app.History)
	})

	return r
}
