package main

import (
	"context"
	"net/http"
	"time"
	_ "time/tzdata"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/iris/libs/civiltime"
	"github.com/md-rashed-zaman/iris/libs/config"
	"github.com/md-rashed-zaman/iris/libs/db"
	"github.com/md-rashed-zaman/iris/libs/grpcx"
	"github.com/md-rashed-zaman/iris/libs/httpx"
	"github.com/md-rashed-zaman/iris/libs/kafkax"
	otelx "github.com/md-rashed-zaman/iris/libs/otel"
	"github.com/md-rashed-zaman/iris/libs/outbox"
	"github.com/md-rashed-zaman/iris/libs/runtime"
	"github.com/md-rashed-zaman/iris/services/business-service/internal/handlers"
	"github.com/md-rashed-zaman/iris/services/business-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "business-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9092")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	brokers := config.String("KAFKA_BROKERS", "")
	outboxRepo := outbox.NewRepository()
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	defaultZone := config.String("DEFAULT_TIMEZONE", civiltime.DefaultZone)
	repo := storage.NewRepository(pool, outboxRepo)
	httpHandler := handlers.New(repo, logger, defaultZone)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	httpHandler.Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "business"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if _, err := grpcx.ServeHealth(ctx, logger, ":"+grpcPort, "business", db.ReadyCheck(pool), 10*time.Second); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	_ = runtime.ServeHTTP(ctx, logger, srv, 10*time.Second)
}
