package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
// An AllowedOrigins entry is an exact origin, "*", or a subdomain wildcard
// such as "https://*.iris.app".
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type corsRules struct {
	methods string
	headers string
	exposed string
	maxAge  string
}

// WithCORS answers preflight requests itself and decorates actual responses
// for allowed origins. With no AllowedOrigins it is a no-op.
func WithCORS(cfg CORSPolicy) Middleware {
	cfg.AllowedOrigins = normalizeList(cfg.AllowedOrigins)
	if len(cfg.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	rules := corsRules{
		methods: strings.Join(normalizeList(cfg.AllowedMethods), ", "),
		headers: strings.Join(normalizeList(cfg.AllowedHeaders), ", "),
		exposed: strings.Join(normalizeList(cfg.ExposedHeaders), ", "),
	}
	if secs := int(cfg.MaxAge.Seconds()); secs > 0 {
		rules.maxAge = strconv.Itoa(secs)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")

			allowOrigin, ok := matchOrigin(origin, cfg.AllowedOrigins, cfg.AllowCredentials)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Origin", allowOrigin)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				rules.preflight(h)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if rules.exposed != "" {
				h.Set("Access-Control-Expose-Headers", rules.exposed)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c corsRules) preflight(h http.Header) {
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")
	if c.methods != "" {
		h.Set("Access-Control-Allow-Methods", c.methods)
	}
	if c.headers != "" {
		h.Set("Access-Control-Allow-Headers", c.headers)
	}
	if c.maxAge != "" {
		h.Set("Access-Control-Max-Age", c.maxAge)
	}
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// matchOrigin returns the value for Access-Control-Allow-Origin. A "*" entry
// echoes the origin when credentials are allowed, since browsers reject a
// literal "*" in that case.
func matchOrigin(origin string, allowed []string, allowCredentials bool) (string, bool) {
	lower := strings.ToLower(origin)
	for _, candidate := range allowed {
		switch {
		case candidate == "*":
			if allowCredentials {
				return origin, true
			}
			return "*", true
		case strings.EqualFold(candidate, origin):
			return origin, true
		}
		scheme, domain, ok := strings.Cut(strings.ToLower(candidate), "*.")
		if ok && scheme != "" && strings.HasPrefix(lower, scheme) && strings.HasSuffix(lower, "."+domain) {
			return origin, true
		}
	}
	return "", false
}
