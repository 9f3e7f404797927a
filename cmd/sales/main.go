// cmd/sales/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesnexus/internal/config"
	"salesnexus/internal/eventsink"
	"salesnexus/internal/platform/logger"
	"salesnexus/internal/platform/tracing"
	"salesnexus/internal/sales"
	"salesnexus/pkg/eventstore"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("sales service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "sales-service",
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		Stdout:      cfg.Tracing.Stdout,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	sinks := eventsink.FanOut{eventsink.NewLogSink(log)}
	if cfg.Kafka.Enabled() {
		kafkaSink := eventsink.NewKafkaSink(eventsink.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("publishing sale events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	var repo sales.Repository
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}

		pg := sales.NewPostgresRepository(db, eventstore.NewEventStore(db), sinks, log)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		repo = pg
		log.Info("using postgres sales store")
	} else {
		repo = sales.NewMemoryRepository(sinks, log)
		log.Warn("DATABASE_URL not set, sales are kept in memory")
	}

	svc := sales.NewService(repo, log)
	handler := sales.NewHandler(svc, log,
		sales.WithRateLimit(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
		sales.WithMetrics(prometheus.DefaultRegisterer),
	)

	router := handler.Routes()
	router.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, "sales-service"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting sales service", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down sales service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
