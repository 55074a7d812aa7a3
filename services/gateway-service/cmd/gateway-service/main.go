package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/iris/libs/auth"
	"github.com/md-rashed-zaman/iris/libs/config"
	"github.com/md-rashed-zaman/iris/libs/grpcx"
	"github.com/md-rashed-zaman/iris/libs/httpx"
	otelx "github.com/md-rashed-zaman/iris/libs/otel"
	"github.com/md-rashed-zaman/iris/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	verifierCfg := auth.VerifierConfig{
		HMACSecret: config.String("JWT_SECRET", ""),
		Issuer:     config.String("JWT_ISSUER", ""),
		Audience:   config.String("JWT_AUDIENCE", ""),
		Leeway:     config.Seconds("JWT_LEEWAY_SECONDS", 30*time.Second),
	}
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		verifierCfg.Keys = auth.NewJWKSClient(jwksURL, config.Seconds("JWKS_CACHE_SECONDS", 5*time.Minute), nil)
	}
	if verifierCfg.HMACSecret == "" && verifierCfg.Keys == nil {
		panic("JWT_SECRET or JWKS_URL is required")
	}
	verifier := auth.NewVerifier(verifierCfg)

	up := upstreams{
		Business: mustParseURL(config.String("BUSINESS_URL", "http://business-service:8082")),
		Booking:  mustParseURL(config.String("BOOKING_URL", "http://booking-service:8083")),
	}

	var checks []runtime.ReadyCheck
	for name, addr := range map[string]string{
		"business": config.String("BUSINESS_GRPC_ADDR", "business-service:9092"),
		"booking":  config.String("BOOKING_GRPC_ADDR", "booking-service:9093"),
	} {
		if addr == "" {
			continue
		}
		conn, err := grpcx.Dial(addr, grpcx.DialOptions{UserAgent: service})
		if err != nil {
			logger.Error("grpc dial failed", "upstream", name, "addr", addr, "err", err)
			continue
		}
		defer func() { _ = conn.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: name, Check: grpcx.HealthCheck(conn, name)})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	registerRoutes(mux, logger, up, verifier, otelhttp.NewTransport(http.DefaultTransport))

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rateLimitMW = httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	allowedHeaders := config.List("CORS_ALLOWED_HEADERS")
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{"Authorization", "Content-Type", httpx.RequestIDHeader, "Idempotency-Key"}
	}
	allowedMethods := config.List("CORS_ALLOWED_METHODS")
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   allowedMethods,
			AllowedHeaders:   allowedHeaders,
			ExposedHeaders:   []string{httpx.RequestIDHeader, "Idempotent-Replayed"},
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Seconds("CORS_MAX_AGE_SECONDS", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)),
		rateLimitMW,
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "gateway"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	_ = runtime.ServeHTTP(ctx, logger, srv, 10*time.Second)
}
