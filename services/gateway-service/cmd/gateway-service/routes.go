package main

import (
	"embed"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/iris/libs/auth"
	"github.com/md-rashed-zaman/iris/libs/httpx"
)

//go:embed assets/gateway.v1.yaml
var openAPISpec embed.FS

type upstreams struct {
	Business *url.URL
	Booking  *url.URL
}

func newProxy(target *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	p := httputil.NewSingleHostReverseProxy(target)
	p.Transport = transport
	return p
}

func registerRoutes(mux *http.ServeMux, logger *slog.Logger, up upstreams, verifier *auth.Verifier, transport http.RoundTripper) {
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	businessProxy := newProxy(up.Business, transport)
	bookingProxy := newProxy(up.Booking, transport)

	// Slots, validation and booking are open to anonymous customers.
	registerProxy(mux, "/api/v1/public", stripIdentity(bookingProxy))
	registerProxy(mux, "/api/v1/business", requireAuth(logger, verifier, requireRole(auth.RoleOwner, businessProxy)))
	registerProxy(mux, "/api/v1/appointments", requireAuth(logger, verifier, requireRole(auth.RoleEmployee, bookingProxy)))

	mux.HandleFunc("/openapi", func(w http.ResponseWriter, _ *http.Request) {
		data, err := openAPISpec.ReadFile("assets/gateway.v1.yaml")
		if err != nil {
			http.Error(w, "openapi not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	mux.Handle(prefix, handler)
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix+"/", handler)
	}
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// stripIdentity drops identity headers on anonymous routes so upstreams
// never see client-supplied values.
func stripIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(httpx.UserIDHeader)
		r.Header.Del(httpx.BusinessIDHeader)
		r.Header.Del(httpx.RoleHeader)
		next.ServeHTTP(w, r)
	})
}

func requireAuth(logger *slog.Logger, verifier *auth.Verifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			logger.Debug("token rejected", "err", err, "path", r.URL.Path)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		id := httpx.Identity{
			UserID:     claims.UserID(),
			BusinessID: claims.BusinessID,
			Role:       claims.EffectiveRole(),
		}
		httpx.SetIdentity(r.Header, id)
		next.ServeHTTP(w, r.WithContext(httpx.ContextWithIdentity(r.Context(), id)))
	})
}

func requireRole(required string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := httpx.IdentityFromContext(r.Context())
		if !ok || !auth.RoleAtLeast(id.Role, required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if id.BusinessID == "" {
			http.Error(w, "token has no business", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
