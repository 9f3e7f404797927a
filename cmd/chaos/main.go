// cmd/chaos/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"salesnexus/internal/chaos"
	"salesnexus/internal/eventsink"
	"salesnexus/internal/platform/logger"
	"salesnexus/internal/sales"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var (
		duration = pflag.Duration("duration", 30*time.Second, "observation window per experiment")
		interval = pflag.Duration("interval", time.Second, "metric sampling interval")
		pause    = pflag.Duration("pause", 5*time.Second, "wait between experiments")
		latency  = pflag.Duration("latency", 250*time.Millisecond, "latency injected into the sales store")
		timeout  = pflag.Duration("timeout", 2*time.Second, "deadline for each probe request")
		batch    = pflag.Int("batch", 10, "sales created per sample")
		logMode  = pflag.String("log-mode", "development", "logger mode: development or production")
	)
	pflag.Parse()

	log, err := logger.New(*logMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sink := chaos.NewFlakySink(eventsink.NewLogSink(log))
	repo := chaos.NewLatentRepository(sales.NewMemoryRepository(sink, log))
	svc := sales.NewService(repo, zap.NewNop())

	engine := chaos.NewEngine(log, chaos.WithSampleInterval(*interval), chaos.WithPause(*pause))
	engine.RegisterSalesExperiments(chaos.Targets{
		Probe:      chaos.NewProbe(svc, *batch, *timeout),
		Sink:       sink,
		Repository: repo,
	}, *duration, *latency)

	held, err := engine.ExecuteGameDay(ctx, chaos.GameDay{
		Name:      "Sales Resilience Game Day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
	})
	if err != nil {
		log.Fatal("chaos game day interrupted", zap.Error(err))
	}
	if !held {
		log.Error("at least one hypothesis was violated")
		log.Sync()
		os.Exit(1)
	}
}
