package interceptors

import (
	"context"
	"errors"
	"slices"

	"connectrpc.com/connect"
)

// NewAuthInterceptor rejects calls without an authenticated identity, except for
// publicProcedures. The identity itself is resolved by the HTTP auth middleware.
func NewAuthInterceptor(publicProcedures ...string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if slices.Contains(publicProcedures, req.Spec().Procedure) {
				return next(ctx, req)
			}
			if _, ok := IdentityFromContext(ctx); !ok {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
			}
			return next(ctx, req)
		}
	}
}
