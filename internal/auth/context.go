package auth

import "context"

type payloadContextKey struct{}

// ContextWithPayload attaches verified token claims to the request context.
func ContextWithPayload(ctx context.Context, p Payload) context.Context {
	return context.WithValue(ctx, payloadContextKey{}, &p)
}

// PayloadFromContext extracts verified token claims from the context.
func PayloadFromContext(ctx context.Context) (Payload, bool) {
	if ctx == nil {
		return Payload{}, false
	}
	v, ok := ctx.Value(payloadContextKey{}).(*Payload)
	if !ok || v == nil {
		return Payload{}, false
	}
	return *v, true
}

// HasRequiredLevel reports whether claims carry at least the required role
// level. Absent claims never satisfy a threshold.
func HasRequiredLevel(p Payload, required int) bool {
	return p.UserID != "" && p.RoleLevel >= required
}
