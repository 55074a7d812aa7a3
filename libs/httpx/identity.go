package httpx

import (
	"context"
	"net/http"
	"strings"
)

// Identity headers are set by the gateway after token verification.
// Services behind it trust them and nothing else.
const (
	UserIDHeader     = "X-User-Id"
	BusinessIDHeader = "X-Business-Id"
	RoleHeader       = "X-Role"
)

type Identity struct {
	UserID     string
	BusinessID string
	Role       string
}

// SetIdentity replaces any client-supplied identity headers.
func SetIdentity(h http.Header, id Identity) {
	h.Del(UserIDHeader)
	h.Del(BusinessIDHeader)
	h.Del(RoleHeader)
	h.Set(UserIDHeader, id.UserID)
	h.Set(BusinessIDHeader, id.BusinessID)
	h.Set(RoleHeader, id.Role)
}

func IdentityFromRequest(r *http.Request) Identity {
	return Identity{
		UserID:     strings.TrimSpace(r.Header.Get(UserIDHeader)),
		BusinessID: strings.TrimSpace(r.Header.Get(BusinessIDHeader)),
		Role:       strings.TrimSpace(r.Header.Get(RoleHeader)),
	}
}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok
}

// BusinessIDFromRequest returns the caller's business id, or "" when the
// gateway did not attach one.
func BusinessIDFromRequest(r *http.Request) string {
	return IdentityFromRequest(r).BusinessID
}
