// Package middleware provides interceptors for restproxy clients.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/broady/restproxy"
)

// Logging creates an interceptor that logs calls using slog.
// It logs the start and end of each call, including duration, status and
// error.
func Logging(logger *slog.Logger) restproxy.Interceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, call *restproxy.CallInfo, req *restproxy.Request, next restproxy.RoundTripFunc) (*restproxy.Response, error) {
		start := time.Now()

		logger.InfoContext(ctx, "request started",
			slog.String("endpoint", call.Endpoint()),
			slog.String("http_method", req.Method),
			slog.String("url", req.URL),
		)

		resp, err := next(ctx, req)
		duration := time.Since(start)

		if err != nil {
			logger.ErrorContext(ctx, "request failed",
				slog.String("endpoint", call.Endpoint()),
				slog.Duration("duration", duration),
				slog.Any("error", err),
			)
		} else {
			attrs := []any{
				slog.String("endpoint", call.Endpoint()),
				slog.Duration("duration", duration),
			}
			if resp != nil {
				attrs = append(attrs, slog.Int("status", resp.StatusCode))
			}
			logger.InfoContext(ctx, "request completed", attrs...)
		}

		return resp, err
	}
}
