package main

import (
	"context"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/iris/libs/config"
	"github.com/md-rashed-zaman/iris/libs/db"
	"github.com/md-rashed-zaman/iris/libs/grpcx"
	"github.com/md-rashed-zaman/iris/libs/httpx"
	"github.com/md-rashed-zaman/iris/libs/kafkax"
	otelx "github.com/md-rashed-zaman/iris/libs/otel"
	"github.com/md-rashed-zaman/iris/libs/outbox"
	"github.com/md-rashed-zaman/iris/libs/runtime"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/iris/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
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

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	outboxRepo := outbox.NewRepository()
	repo := storage.NewBookingRepository(pool, outboxRepo)

	var cache redis.Cmdable
	if rdb != nil {
		cache = rdb
	}
	loader := schedule.NewLoader(repo, cache, config.Seconds("SCHEDULE_CACHE_TTL_SECONDS", 5*time.Minute), logger)

	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})

		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		})
		go publisher.Run(ctx)

		scheduleEvents := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   config.String("KAFKA_CONSUME_TOPIC", storage.EventScheduleChanged),
		}, consumer.InvalidateSchedules(logger, loader))
		go scheduleEvents.Run(ctx)
	} else {
		logger.Warn("kafka disabled; schedule cache relies on ttl expiry")
	}

	bookingHandler := handlers.NewBookingHandler(repo, loader, logger, handlers.Options{
		SlotStepMinutes: config.Int("SLOT_STEP_MINUTES", 15),
		PastBuffer:      config.Minutes("PAST_BUFFER_MINUTES", 15*time.Minute),
	})

	mux := runtime.NewBaseMuxWithReady(checks...)
	bookingHandler.Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if _, err := grpcx.ServeHealth(ctx, logger, ":"+grpcPort, "booking", db.ReadyCheck(pool), 10*time.Second); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	_ = runtime.ServeHTTP(ctx, logger, srv, 10*time.Second)
}
