package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-cart/internal/cart"
)

type contextKey string

const (
	ctxSessionID contextKey = "session_id"
	ctxUserID    contextKey = "user_id"
	ctxToken     contextKey = "bearer_token"
)

func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxSessionID)
}

func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUserID)
}

func TokenFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxToken)
}

// IdentityFromContext assembles the cart identity seeded by Session and Identity.
func IdentityFromContext(ctx context.Context) cart.Identity {
	return cart.Identity{
		SessionID: SessionIDFromContext(ctx),
		UserID:    UserIDFromContext(ctx),
		Token:     TokenFromContext(ctx),
	}
}

// WithSessionID injects the browser session identifier into the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

func withToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxToken, token)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
