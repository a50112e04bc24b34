package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"salesmart/internal/config"
	"salesmart/internal/metrics"
	"salesmart/internal/metrics/datadog"
	"salesmart/internal/pipeline"
	"salesmart/internal/storage"

	// register all warehouse backends with the storage factory.
	// config selects which one to use but support for all is built in.
	_ "salesmart/internal/storage/all"
)

// main is the entry point for the batch ETL binary. It loads the run config,
// optionally initializes a metrics backend, and executes one full pipeline
// run: load, dedupe, normalize, aggregate, build, replace-load.
func main() {
	var (
		cfgPath           string
		passphrase        string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/salesmart.yaml", "pipeline config YAML path (.enc for encrypted)")
	flag.StringVar(&passphrase, "config-passphrase", "", "passphrase for an encrypted config (overrides env CONFIG_PASSPHRASE)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none; empty falls back to env METRICS_BACKEND)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	if passphrase == "" {
		passphrase = os.Getenv("CONFIG_PASSPHRASE")
	}

	cfg, err := config.Load(cfgPath, passphrase)
	if err != nil {
		fatalf("load config: %v", err)
	}

	// If validate flag is set, Load already ran Validate; report and exit.
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	runID := uuid.NewString()

	backendName := resolveMetricsBackend(metricsBackendFlg, os.Getenv("METRICS_BACKEND"))
	switch backendName {
	case "datadog":
		// Datadog backend:
		//   - buffers counters and submits periodically
		//   - submits one final time at shutdown (Close())

		ddCtx := context.Background()

		// Prefer the configured job name for the "job:<name>" tag.
		// Fall back to a stable default so the tag always exists.
		jobName := cfg.Job
		if jobName == "" {
			jobName = "salesmart_etl"
		}

		// Optional extra tags provided via environment.
		// This complements the backend-enforced env:<...> tag.
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		extraTags = append(extraTags, "run:"+runID)

		// Create the backend. It starts its own periodic flush goroutine.
		b, err := datadog.NewBackend(ddCtx, datadog.Options{
			JobName:    jobName,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
			metrics.SetBackend(b)

			// Close() stops the periodic flush loop and then performs a
			// final Flush(). This is the clean shutdown path.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	repo, err := storage.New(ctx, storage.Config{Kind: cfg.Warehouse.Kind, DSN: cfg.Warehouse.DSN})
	if err != nil {
		fatalf("storage: %v", err)
	}
	defer repo.Close()

	log.Printf("run=%s job=%s warehouse=%s", runID, cfg.Job, cfg.Warehouse.Kind)

	p := &pipeline.Pipeline{
		Config:  cfg,
		Repo:    repo,
		Logger:  log.Default(),
		Verbose: *verbose,
	}
	if err := p.Run(ctx); err != nil {
		log.Fatalf("run=%s %v", runID, err)
	}

	log.Printf("run=%s completed in %s", runID, time.Since(start).Truncate(time.Millisecond))
}

// resolveMetricsBackend decides the metrics backend: flag first, then the
// METRICS_BACKEND environment variable. Empty means metrics stay disabled.
func resolveMetricsBackend(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envValue
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
