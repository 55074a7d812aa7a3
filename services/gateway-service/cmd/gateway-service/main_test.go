package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/md-rashed-zaman/iris/libs/auth"
	"github.com/md-rashed-zaman/iris/libs/httpx"
)

const testSecret = "test-secret"

func signToken(t *testing.T, role, businessID string) string {
	t.Helper()
	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		BusinessID: businessID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}, testSecret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return token
}

// newGateway routes to two upstream test servers that echo the identity
// headers they received.
func newGateway(t *testing.T) http.Handler {
	t.Helper()
	echo := func(name string) *httptest.Server {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Upstream", name)
			w.Header().Set("X-Seen-Business", r.Header.Get(httpx.BusinessIDHeader))
			w.Header().Set("X-Seen-Role", r.Header.Get(httpx.RoleHeader))
			w.Header().Set("X-Seen-Path", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)
		return srv
	}
	business, booking := echo("business"), echo("booking")

	mux := http.NewServeMux()
	registerRoutes(mux, slog.New(slog.DiscardHandler), upstreams{
		Business: mustParseURL(business.URL),
		Booking:  mustParseURL(booking.URL),
	}, auth.NewVerifier(auth.VerifierConfig{HMACSecret: testSecret}), http.DefaultTransport)
	return mux
}

func TestPublicRoutesStripIdentity(t *testing.T) {
	gw := newGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?business_id=b1", nil)
	req.Header.Set(httpx.BusinessIDHeader, "spoofed")
	req.Header.Set(httpx.RoleHeader, auth.RoleOwner)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Header().Get("X-Upstream") != "booking" {
		t.Fatalf("expected booking upstream, got %d %q", rec.Code, rec.Header().Get("X-Upstream"))
	}
	if rec.Header().Get("X-Seen-Business") != "" || rec.Header().Get("X-Seen-Role") != "" {
		t.Fatalf("expected identity headers to be dropped")
	}
	if rec.Header().Get("X-Seen-Path") != "/api/v1/public/slots" {
		t.Fatalf("unexpected upstream path %q", rec.Header().Get("X-Seen-Path"))
	}
}

func TestBusinessRoutesRequireOwner(t *testing.T) {
	gw := newGateway(t)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{name: "no token", status: http.StatusUnauthorized},
		{name: "garbage", token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "customer", token: signToken(t, "", "b1"), status: http.StatusForbidden},
		{name: "employee", token: signToken(t, auth.RoleEmployee, "b1"), status: http.StatusForbidden},
		{name: "owner without business", token: signToken(t, auth.RoleOwner, ""), status: http.StatusForbidden},
		{name: "owner", token: signToken(t, auth.RoleOwner, "b1"), status: http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/business/hours", nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		rec := httptest.NewRecorder()
		gw.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
	}
}

func TestAuthenticatedRoutesSetTrustedIdentity(t *testing.T) {
	gw := newGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, auth.RoleEmployee, "b1"))
	req.Header.Set(httpx.BusinessIDHeader, "b2")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Header().Get("X-Upstream") != "booking" {
		t.Fatalf("expected booking upstream, got %d %q", rec.Code, rec.Header().Get("X-Upstream"))
	}
	if rec.Header().Get("X-Seen-Business") != "b1" || rec.Header().Get("X-Seen-Role") != auth.RoleEmployee {
		t.Fatalf("expected identity from token, got %q / %q", rec.Header().Get("X-Seen-Business"), rec.Header().Get("X-Seen-Role"))
	}
}

func TestOpenAPI(t *testing.T) {
	rec := httptest.NewRecorder()
	newGateway(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/yaml" || rec.Body.Len() == 0 {
		t.Fatalf("unexpected openapi response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}
