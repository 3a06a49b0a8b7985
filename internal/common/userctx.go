package common

import (
	"context"
	"strings"

	"github.com/bobmcallan/folium/internal/models"
)

// DefaultUserID scopes requests that carry no user identity (single-tenant mode).
const DefaultUserID = "default"

// UserContext holds per-request user configuration injected via X-Folium-* headers.
// When absent (nil), the server operates in single-tenant mode using config values.
type UserContext struct {
	UserID            string
	ReferenceCurrency string
}

type contextKey int

const userContextKey contextKey = iota

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// ResolveUserID returns the UserID from context, or "default" when no user context is present.
func ResolveUserID(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil && uc.UserID != "" {
		return uc.UserID
	}
	return DefaultUserID
}

// ResolveReferenceCurrency returns the user-context currency when it is a
// 3-letter code, otherwise fallback.
func ResolveReferenceCurrency(ctx context.Context, fallback string) string {
	if uc := UserContextFromContext(ctx); uc != nil && uc.ReferenceCurrency != "" {
		rc := strings.ToUpper(strings.TrimSpace(uc.ReferenceCurrency))
		if models.IsCurrencyCode(rc) {
			return rc
		}
	}
	return fallback
}
