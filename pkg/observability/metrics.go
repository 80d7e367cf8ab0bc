package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors exported on /metrics.
type Metrics struct {
	rpcRequests   *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	subscriptions *prometheus.CounterVec
	redemptions   *prometheus.CounterVec
	paymentOrders *prometheus.CounterVec
	guardRedirect *prometheus.CounterVec
	buyerOrders   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		rpcRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storelink",
			Name:      "rpc_requests_total",
			Help:      "Connect RPC calls by procedure and result code.",
		}, []string{"procedure", "code"}),
		rpcDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storelink",
			Name:      "rpc_duration_seconds",
			Help:      "Connect RPC latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storelink",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storelink",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		subscriptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storelink",
			Name:      "subscription_changes_total",
			Help:      "Subscription upgrades and cancellations.",
		}, []string{"action", "plan"}),
		redemptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storelink",
			Name:      "referral_redemptions_total",
			Help:      "Referral redemption attempts by outcome.",
		}, []string{"outcome"}),
		paymentOrders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storelink",
			Name:      "payment_orders_total",
			Help:      "Payment order creation and verification by outcome.",
		}, []string{"stage", "outcome"}),
		guardRedirect: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storelink",
			Name:      "route_guard_redirects_total",
			Help:      "Route guard redirects by target.",
		}, []string{"target"}),
		buyerOrders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storelink",
			Name:      "buyer_orders_total",
			Help:      "Storefront orders placed by outcome.",
		}, []string{"outcome"}),
	}
}

// NewMetricsInterceptor records count and latency for each RPC.
func (m *Metrics) NewMetricsInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			procedure := req.Spec().Procedure
			m.rpcRequests.WithLabelValues(procedure, code).Inc()
			m.rpcDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records HTTP metrics labelled by the matched chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Domain counters are no-ops on a nil *Metrics so services can run without them.
func (m *Metrics) SubscriptionChanged(action, plan string) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(action, plan).Inc()
}

func (m *Metrics) RedemptionAttempt(outcome string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PaymentOrder(stage, outcome string) {
	if m == nil {
		return
	}
	m.paymentOrders.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) GuardRedirect(target string) {
	if m == nil {
		return
	}
	m.guardRedirect.WithLabelValues(target).Inc()
}

func (m *Metrics) BuyerOrder(outcome string) {
	if m == nil {
		return
	}
	m.buyerOrders.WithLabelValues(outcome).Inc()
}
