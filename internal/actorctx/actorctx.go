// Package actorctx carries request-scoped identity on a context.Context
// so code below the HTTP layer can read it without depending on gin.
package actorctx

import (
	"context"

	"github.com/zest/productapi/internal/auth"
)

type (
	principalKey struct{}
	requestIDKey struct{}
)

func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok && p.Username != ""
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
