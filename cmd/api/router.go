package api

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	authhandler "github.com/FACorreiaa/storelink-api/internal/domain/auth/handler"
	paymenthandler "github.com/FACorreiaa/storelink-api/internal/domain/payment/handler"
	referralhandler "github.com/FACorreiaa/storelink-api/internal/domain/referral/handler"
	subscriptionhandler "github.com/FACorreiaa/storelink-api/internal/domain/subscription/handler"
	"github.com/FACorreiaa/storelink-api/pkg/api"
	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
)

const requestIDHeader = "X-Request-ID"

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(interceptors.RequestIDMiddleware(requestIDHeader))
	r.Use(deps.Metrics.Middleware)
	r.Use(authhandler.IdentityMiddleware(deps.AuthService))

	// These report a missing identity in their response body.
	publicProcedures := []string{
		subscriptionhandler.SubscriptionServiceCheckStatusProcedure,
		subscriptionhandler.SubscriptionServiceUpgradeProcedure,
		subscriptionhandler.SubscriptionServiceCancelProcedure,
		paymenthandler.PaymentServiceCreateOrderProcedure,
		paymenthandler.PaymentServiceVerifyPaymentProcedure,
		referralhandler.ReferralServiceRedeemProcedure,
	}

	tracer := otel.GetTracerProvider().Tracer("storelink/api")

	chain := []connect.Interceptor{
		interceptors.NewRequestIDInterceptor(requestIDHeader),
		interceptors.NewTracingInterceptor(tracer),
	}
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		chain = append(chain, interceptors.NewRateLimitInterceptor(limiter))
	}
	chain = append(chain,
		interceptors.NewRecoveryInterceptor(deps.Logger),
		interceptors.NewLoggingInterceptor(deps.Logger),
		interceptors.NewAuthInterceptor(publicProcedures...),
		deps.Metrics.NewMetricsInterceptor(),
	)

	opts := []connect.HandlerOption{
		connect.WithCodec(api.JSONCodec{}),
		connect.WithInterceptors(chain...),
	}

	registerConnectRoutes(r, deps, opts...)
	registerAPIRoutes(r, deps)
	registerUtilityRoutes(r, deps)
	registerPageRoutes(r, deps)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   append(connectcors.AllowedMethods(), http.MethodDelete),
		AllowedHeaders:   append(connectcors.AllowedHeaders(), "Authorization", requestIDHeader),
		ExposedHeaders:   append(connectcors.ExposedHeaders(), requestIDHeader),
		AllowCredentials: true,
	})

	return otelhttp.NewHandler(corsHandler.Handler(r), "storelink")
}

// registerConnectRoutes mounts the Connect procedures
func registerConnectRoutes(r chi.Router, deps *Dependencies, opts ...connect.HandlerOption) {
	mount := func(path string, h http.Handler) {
		r.Handle(path+"*", h)
		deps.Logger.Info("registered Connect RPC service", "path", path)
	}

	mount(subscriptionhandler.NewSubscriptionServiceHandler(deps.SubscriptionHandler, opts...))
	mount(referralhandler.NewReferralServiceHandler(deps.ReferralHandler, opts...))
	mount(paymenthandler.NewPaymentServiceHandler(deps.PaymentHandler, opts...))

	deps.Logger.Info("Connect RPC routes configured")
}

// registerAPIRoutes registers the JSON endpoints used by the web app
func registerAPIRoutes(r chi.Router, deps *Dependencies) {
	r.Route("/auth/session", func(r chi.Router) {
		r.Post("/", deps.AuthHandler.StartSession)
		r.Delete("/", deps.AuthHandler.EndSession)
		r.Get("/", deps.AuthHandler.GetSession)
	})

	// Storefront reads and buyer checkout are public.
	r.Get("/api/storefront/{slug}", deps.StoreHandler.GetStorefront)
	r.Post("/api/storefront/{slug}/orders", deps.OrderHandler.PlaceOrder)

	r.Group(func(r chi.Router) {
		r.Use(authhandler.RequireIdentity)

		r.Get("/api/profile", deps.ProfileHandler.GetProfile)
		r.Get("/api/dashboard", deps.DashboardHandler.GetDashboard)

		r.Post("/api/stores", deps.StoreHandler.CreateStore)
		r.Get("/api/stores", deps.StoreHandler.ListStores)
		r.Get("/api/stores/{storeID}/products", deps.StoreHandler.ListProducts)

		r.Post("/api/products", deps.StoreHandler.CreateProduct)
		r.Delete("/api/products/{productID}", deps.StoreHandler.DeleteProduct)

		r.Get("/api/orders", deps.OrderHandler.ListOrders)
	})

	deps.Logger.Info("API routes configured")
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(r chi.Router, deps *Dependencies) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	deps.Logger.Info("registered health check", "path", "/health")

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}

// registerPageRoutes sends every remaining path through the route guard and on to the
// web app, either proxied to a dev server or served from a build directory.
func registerPageRoutes(r chi.Router, deps *Dependencies) {
	pages, err := pageHandler(deps.Config.Server.FrontendURL, deps.Config.Server.StaticDir)
	if err != nil {
		deps.Logger.Error("invalid frontend url, page routes disabled", "error", err)
		return
	}
	r.With(deps.Guard.Middleware).Handle("/*", pages)
}

func pageHandler(frontendURL, staticDir string) (http.Handler, error) {
	if frontendURL != "" {
		target, err := url.Parse(frontendURL)
		if err != nil {
			return nil, err
		}
		return httputil.NewSingleHostReverseProxy(target), nil
	}
	if staticDir == "" {
		return http.NotFoundHandler(), nil
	}

	files := http.FileServer(http.Dir(staticDir))
	index := filepath.Join(staticDir, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Client-side routes have no file on disk; serve the app shell for them.
		if _, err := os.Stat(filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))); err != nil {
			http.ServeFile(w, r, index)
			return
		}
		files.ServeHTTP(w, r)
	}), nil
}
