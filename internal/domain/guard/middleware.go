package guard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/FACorreiaa/storelink-api/pkg/interceptors"
	"github.com/FACorreiaa/storelink-api/pkg/observability"
)

// StoreChecker reports whether a seller owns at least one store.
type StoreChecker interface {
	HasStore(ctx context.Context, ownerID uuid.UUID) (bool, error)
}

type Guard struct {
	stores  StoreChecker
	metrics *observability.Metrics
	logger  *slog.Logger
}

func New(stores StoreChecker, metrics *observability.Metrics, logger *slog.Logger) *Guard {
	return &Guard{stores: stores, metrics: metrics, logger: logger}
}

// Middleware applies Decide to every request. It expects the identity middleware to run first.
// GET and HEAD are redirected with 307, other methods with 303 so the target is fetched with GET.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, ok := interceptors.IdentityFromContext(ctx)

		decision, err := Decide(ok, r.URL.Path, func() (bool, error) {
			return g.stores.HasStore(ctx, id.UserID)
		})
		if err != nil {
			g.logger.WarnContext(ctx, "Store lookup failed, letting request through",
				slog.String("method", "GuardMiddleware"),
				slog.String("path", r.URL.Path),
				slog.Any("error", err))
		}
		if decision.Allow {
			next.ServeHTTP(w, r)
			return
		}

		g.metrics.GuardRedirect(decision.Target)
		status := http.StatusSeeOther
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			status = http.StatusTemporaryRedirect
		}
		http.Redirect(w, r, decision.Target, status)
	})
}
