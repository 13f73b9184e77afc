package restproxy

import "context"

type contextKey struct {
	name string
}

var callInfoKey = &contextKey{"call_info"}

// CallInfo describes the call in progress.
type CallInfo struct {
	Service    string
	Method     string
	Descriptor *MethodDescriptor
}

// Endpoint returns "Service.Method".
func (c *CallInfo) Endpoint() string {
	return c.Service + "." + c.Method
}

// CallFromContext returns the call info of the invocation the context belongs to.
func CallFromContext(ctx context.Context) (*CallInfo, bool) {
	info, ok := ctx.Value(callInfoKey).(*CallInfo)
	return info, ok
}

func newContext(ctx context.Context, info *CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey, info)
}
