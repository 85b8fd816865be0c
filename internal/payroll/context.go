package payroll

import "context"

type contextKey string

const (
	ctxKeyActor     contextKey = "payroll_actor"
	ctxKeyIPAddress contextKey = "payroll_ip"
)

// ContextWithActor records who triggered an operation, for import logs.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// ContextWithIPAddress records the client address of the request.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ActorFromContext returns the actor set by ContextWithActor, or "".
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyActor).(string); ok {
		return v
	}
	return ""
}

// IPAddressFromContext returns the address set by ContextWithIPAddress, or "".
func IPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}
