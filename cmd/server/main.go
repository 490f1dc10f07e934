package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"caretrail/internal/audit/classify"
	"caretrail/internal/audit/handler"
	auditmetrics "caretrail/internal/audit/metrics"
	auditmw "caretrail/internal/audit/middleware"
	"caretrail/internal/audit/models"
	"caretrail/internal/audit/service"
	"caretrail/internal/audit/sink"
	"caretrail/internal/audit/store"
	"caretrail/internal/audit/store/memory"
	"caretrail/internal/audit/store/postgres"
	"caretrail/internal/audit/store/retryqueue"
	"caretrail/internal/platform/config"
	"caretrail/internal/platform/httpserver"
	"caretrail/internal/platform/logger"
	"caretrail/internal/platform/middleware"
	platformredis "caretrail/internal/platform/redis"
	transporthttp "caretrail/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	metrics := auditmetrics.New()

	// Log store.
	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		pgStore := postgres.New(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		st = pgStore
		log.Info("audit store: postgres")
	} else {
		st = memory.NewInMemoryStore()
		log.Warn("audit store: in-memory, records will not survive restarts")
	}

	// Retry queue.
	var queue retryqueue.Queue
	if cfg.RedisURL != "" {
		redisClient, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		queue = retryqueue.NewRedisQueue(redisClient.Client, "", int64(cfg.RetryQueueSize))
		log.Info("retry queue: redis")
	} else {
		queue = retryqueue.NewInMemoryQueue(cfg.RetryQueueSize)
		log.Info("retry queue: in-memory")
	}

	g, ctx := errgroup.WithContext(ctx)

	// SIEM sink.
	var auditSink service.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient, err := sink.NewClient(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()
		if err := sink.EnsureTopic(ctx, kafkaClient, cfg.KafkaTopic, 3); err != nil {
			return err
		}

		kafkaSink := sink.NewKafkaSink(kafkaClient, cfg.KafkaTopic,
			sink.WithLogger(log),
			sink.WithMetrics(metrics),
		)
		g.Go(func() error { return kafkaSink.Run(ctx) })
		auditSink = kafkaSink
		log.Info("security sink: kafka", "topic", cfg.KafkaTopic)
	}

	engine := classify.New(classify.DefaultConfig(), st)
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics),
		service.WithRetryQueue(queue),
	}
	if auditSink != nil {
		opts = append(opts, service.WithSink(auditSink))
	}
	svc := service.New(st, engine, opts...)

	worker := service.NewRetryWorker(st, queue, log, metrics, cfg.RetryInterval)
	g.Go(func() error { return worker.Run(ctx) })

	recorder := auditmw.NewRecorder(svc, log, []auditmw.Route{
		{Prefix: "/api/patients", EntityType: models.EntityPatient},
		{Prefix: "/api/medical-records", EntityType: models.EntityMedicalRecord},
		{Prefix: "/api/prescriptions", EntityType: models.EntityPrescription},
		{Prefix: "/api/lab-results", EntityType: models.EntityLabResult},
		{Prefix: "/api/billing", EntityType: models.EntityBilling},
		{Prefix: "/api/insurance", EntityType: models.EntityInsurance},
		{Prefix: "/api/staff", EntityType: models.EntityStaff},
		{Prefix: "/api/inventory", EntityType: models.EntityInventory},
		{Prefix: "/api/appointments", EntityType: models.EntityAppointment},
		{Prefix: "/api/surgeries", EntityType: models.EntitySurgery},
	})

	router := transporthttp.NewRouter(transporthttp.RouterConfig{
		Logger:    log,
		Validator: middleware.NewHMACValidator(cfg.JWTSigningKey),
		Audit:     handler.New(svc, log),
		Recorder:  recorder,
	})

	server := httpserver.New(cfg.Addr, router)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
