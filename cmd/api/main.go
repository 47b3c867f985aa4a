package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"call-intel-go/internal/api"
	"call-intel-go/internal/coaching"
	"call-intel-go/internal/config"
	"call-intel-go/internal/events"
	"call-intel-go/internal/logger"
	"call-intel-go/internal/metrics"
	"call-intel-go/internal/pipeline"
	"call-intel-go/internal/processor"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/storage"
	"call-intel-go/internal/transcription"
	"call-intel-go/internal/types"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.Info("starting service")

	cfgPath := envOr("CALLINTEL_CONFIG", "config.yaml")
	cfg, warnings, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	for _, w := range warnings {
		log.WithField("config_path", cfgPath).Warn(w)
	}

	catalog, err := rules.Load(cfg.RulesPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load rule catalog")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("failed to open analysis store")
	}
	defer store.Close()
	log.WithField("driver", store.Driver()).Info("analysis store ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	analyzer := pipeline.New(catalog, cfg.Analysis, pipeline.WithMetrics(m), pipeline.WithLogger(log))

	var handler api.EventHandler
	var proc *processor.Processor
	tr, err := transcription.FromConfig(cfg, log)
	if err != nil {
		log.WithError(err).Warn("event intake disabled")
	} else {
		trigger := coaching.NewTrigger(cfg.CoachingThreshold)
		log.WithField("coaching_threshold", trigger.Threshold()).Info("event intake enabled")
		proc = processor.New(store, analyzer, tr, trigger,
			processor.WithMetrics(m),
			processor.WithLogger(log),
			processor.WithRetry(cfg.ParsedRetryMaxElapsed()),
			processor.WithWorkers(cfg.Workers),
		)
		handler = proc
	}

	if proc != nil && cfg.AMQPURL != "" {
		consumer := events.NewConsumer(events.Config{URL: cfg.AMQPURL, Queue: cfg.AMQPQueue, Prefetch: cfg.Workers},
			func(ctx context.Context, ev types.RecordingEvent) error {
				_, err := proc.HandleEvent(ctx, ev)
				return err
			}, log)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.WithError(err).Error("event consumer stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewServer(store, handler, reg, log).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.ListenAddr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server terminated")
	}
	log.Info("shut down")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
