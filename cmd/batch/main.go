package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"call-intel-go/internal/coaching"
	"call-intel-go/internal/config"
	"call-intel-go/internal/dataset"
	"call-intel-go/internal/logger"
	"call-intel-go/internal/pipeline"
	"call-intel-go/internal/processor"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/storage"
	"call-intel-go/internal/transcription"
	"call-intel-go/internal/types"
)

func main() {
	_ = godotenv.Load()

	input := flag.String("input", os.Getenv("DATASET_PATH"), "xlsx workbook with call id, rep id and transcript or audio columns")
	output := flag.String("output", "call-report.xlsx", "where to write the xlsx report")
	cfgPath := flag.String("config", envOr("CALLINTEL_CONFIG", "config.yaml"), "config file")
	flag.Parse()

	log := logger.New()
	if *input == "" {
		log.Fatal("-input is required")
	}

	cfg, warnings, err := config.Load(*cfgPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	for _, w := range warnings {
		log.Warn(w)
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

	records, err := dataset.Load(*input, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load dataset")
	}

	tr, err := transcription.FromConfig(cfg, log)
	if err != nil {
		log.WithError(err).Warn("records without transcripts will fail")
		tr = transcription.Unavailable{}
	}
	analyzer := pipeline.New(catalog, cfg.Analysis, pipeline.WithLogger(log))
	trigger := coaching.NewTrigger(cfg.CoachingThreshold)
	log.WithFields(map[string]interface{}{"records": len(records), "coaching_threshold": trigger.Threshold()}).Info("processing dataset")
	proc := processor.New(store, analyzer, tr, trigger,
		processor.WithLogger(log),
		processor.WithRetry(cfg.ParsedRetryMaxElapsed()),
		processor.WithWorkers(cfg.Workers),
	)

	results, err := proc.ProcessBatch(ctx, records)
	if err != nil {
		log.WithError(err).Warn("batch interrupted")
	}

	var analyses []types.CallAnalysis
	failed, coached := 0, 0
	for _, r := range results {
		switch {
		case r.Analysis != nil:
			analyses = append(analyses, *r.Analysis)
			if r.Coaching != nil {
				coached++
			}
		case r.Error != "":
			failed++
		}
	}
	if err := dataset.WriteReport(*output, analyses); err != nil {
		log.WithError(err).Fatal("failed to write report")
	}
	log.WithFields(map[string]interface{}{
		"records":  len(records),
		"analyzed": len(analyses),
		"failed":   failed,
		"coaching": coached,
		"report":   *output,
	}).Info("batch complete")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
