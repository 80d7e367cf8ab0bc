package interceptors

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

// NewRequestIDInterceptor propagates or generates a request id for each RPC.
func NewRequestIDInterceptor(header string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			requestID, ok := RequestIDFromContext(ctx)
			if !ok || requestID == "" {
				requestID = req.Header().Get(header)
			}
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx = WithRequestID(ctx, requestID)

			resp, err := next(ctx, req)
			if resp != nil {
				resp.Header().Set(header, requestID)
			}
			return resp, err
		}
	}
}

// RequestIDMiddleware is the plain HTTP counterpart used by the page and REST routes.
func RequestIDMiddleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(header)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(header, requestID)
			next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
		})
	}
}
