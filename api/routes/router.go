package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-cart/api/controllers"
	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/internal/checkout"
	"github.com/angelmondragon/storefront-cart/internal/reconciler"
	"github.com/angelmondragon/storefront-cart/internal/views"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-cart/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	mirrorPinger controllers.Pinger,
	redisClient *pkgredis.Client,
	metricsHandler http.Handler,
	cartService *reconciler.Service,
	cartPage *views.Page,
	dropdown *views.Dropdown,
	floating *views.FloatingButton,
	badge *views.Badge,
	checkoutService checkout.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	// A nil *Client must not reach the middleware as a non-nil interface.
	var (
		idempotencyStore pkgredis.IdempotencyStore
		limiterStore     middleware.RateLimiterStore
		redisPinger      controllers.Pinger
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		limiterStore = redisClient
		redisPinger = redisClient
	}

	loginPolicy := middleware.NewRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"mirror": mirrorPinger,
			"redis":  redisPinger,
		}))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(logg))
		r.Use(middleware.Identity(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartPage(cartPage, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Get("/dropdown", controllers.CartDropdown(dropdown, logg))
			r.Get("/floating", controllers.CartFloating(floating, logg))
			r.Get("/badge", controllers.CartBadge(badge, logg))
			r.Post("/badge/refresh", controllers.CartBadgeRefresh(badge, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(cartService, logg))
		})

		r.Route("/session", func(r chi.Router) {
			r.With(
				middleware.RateLimit(loginPolicy, limiterStore, logg),
				middleware.RequireIdentity(logg),
			).Post("/login", controllers.SessionLogin(cartService, logg))
			r.Post("/logout", controllers.SessionLogout(cartService, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", controllers.CheckoutSummary(checkoutService, logg))
			r.Post("/coupon", controllers.CheckoutApplyCoupon(checkoutService, logg))
			r.Delete("/coupon", controllers.CheckoutRemoveCoupon(checkoutService, logg))
			r.With(middleware.Idempotency(idempotencyStore, cfg.Checkout.IdempotencyTTL, logg)).
				Post("/orders", controllers.CheckoutPlaceOrder(checkoutService, logg))
			r.Get("/orders/last", controllers.CheckoutLastOrder(checkoutService, logg))
		})
	})

	return r
}
