package authz

import "context"

// roleCtxKey is an unexported type used as the context key for Role.
type roleCtxKey struct{}

// WithRole returns a new context carrying the caller role. Only the transport
// layer uses this; core operations take the role as an explicit argument.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleCtxKey{}, role)
}

// RoleFromContext retrieves the caller role from the context.
// Returns DefaultRole and false if none is set.
func RoleFromContext(ctx context.Context) (Role, bool) {
	r, ok := ctx.Value(roleCtxKey{}).(Role)
	if !ok {
		return DefaultRole, false
	}
	return r, true
}
