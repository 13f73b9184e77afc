package restproxy

import (
	"context"
)

// RoundTripFunc represents the next step in an interceptor chain.
// It is passed to [Interceptor] functions to invoke the next interceptor
// or the transport.
type RoundTripFunc func(ctx context.Context, req *Request) (*Response, error)

// Interceptor is a hook that wraps the transport call of an invocation.
//
//	func timing(ctx context.Context, call *restproxy.CallInfo, req *restproxy.Request, next restproxy.RoundTripFunc) (*restproxy.Response, error) {
//	    start := time.Now()
//	    resp, err := next(ctx, req)
//	    log.Printf("%s took %v", call.Endpoint(), time.Since(start))
//	    return resp, err
//	}
//
// Interceptors can:
//   - Derive a new request (for example with Request.WithHeader) before calling next
//   - Inspect the response after calling next
//   - Short-circuit by returning without calling next
//
// Interceptor execution order:
//  1. Client interceptors (Client.WithInterceptor), in the order added
//  2. Method interceptors (MethodDef.WithInterceptor), in the order added
//  3. Transport
type Interceptor func(ctx context.Context, call *CallInfo, req *Request, next RoundTripFunc) (*Response, error)

// chainInterceptors wraps final with the interceptors.
// The first interceptor in the slice is the outer-most one (runs first).
func chainInterceptors(interceptors []Interceptor, call *CallInfo, final RoundTripFunc) RoundTripFunc {
	chain := final
	for i := len(interceptors) - 1; i >= 0; i-- {
		current := interceptors[i]
		next := chain
		chain = func(ctx context.Context, req *Request) (*Response, error) {
			return current(ctx, call, req, next)
		}
	}
	return chain
}
