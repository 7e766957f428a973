package custody

import (
	"context"

	"github.com/xraph/custody/types"
)

type principalKey struct{}

// WithPrincipal returns a context carrying the calling principal.
func WithPrincipal(ctx context.Context, p types.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the calling principal from ctx.
func PrincipalFrom(ctx context.Context) (types.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(types.Principal)
	if !ok || p.IsZero() {
		return "", false
	}
	return p, true
}
