package api

import (
	"errors"
	"strings"

	"connectrpc.com/connect"

	"github.com/FACorreiaa/storelink-api/internal/types"
)

// ConnectError maps domain errors to connect error codes.
func ConnectError(err error) *connect.Error {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, types.ErrBadRequest):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, types.ErrUnauthenticated):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, types.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, types.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, types.ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, types.ErrLimitReached):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.Is(err, types.ErrUpstream):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}

// MsgNotAuthenticated is the error text of a structured result for anonymous callers.
const MsgNotAuthenticated = "User not authenticated."

// ResultError reports whether err belongs in a {success: false, error} response body rather
// than a connect error: a missing identity or invalid input. It returns the caller-facing text.
func ResultError(err error) (string, bool) {
	switch {
	case errors.Is(err, types.ErrUnauthenticated):
		return MsgNotAuthenticated, true
	case errors.Is(err, types.ErrBadRequest):
		sentinel := types.ErrBadRequest.Error()
		msg := strings.TrimSuffix(err.Error(), ": "+sentinel)
		msg = strings.TrimPrefix(msg, sentinel+": ")
		return msg, true
	}
	return "", false
}
