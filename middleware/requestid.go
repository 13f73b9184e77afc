package middleware

import (
	"context"
	"net/http"

	"github.com/broady/restproxy"
	"github.com/google/uuid"
)

// DefaultRequestIDHeader is the header RequestID sets when given an empty name.
const DefaultRequestIDHeader = "X-Request-Id"

// RequestID creates an interceptor that tags every request with a fresh
// UUID in the named header. A header already set by the method declaration
// or an earlier interceptor is left alone.
func RequestID(header string) restproxy.Interceptor {
	if header == "" {
		header = DefaultRequestIDHeader
	}
	header = http.CanonicalHeaderKey(header)
	return func(ctx context.Context, call *restproxy.CallInfo, req *restproxy.Request, next restproxy.RoundTripFunc) (*restproxy.Response, error) {
		if _, ok := req.Header.Get(header); ok {
			return next(ctx, req)
		}
		return next(ctx, req.WithHeader(header, uuid.NewString()))
	}
}
