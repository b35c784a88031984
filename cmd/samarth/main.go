package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/samarth-org/samarth/config"
	"github.com/samarth-org/samarth/dataset"
	"github.com/samarth-org/samarth/engine"
	"github.com/samarth-org/samarth/orchestrator"
	"github.com/samarth-org/samarth/server"
	"github.com/samarth-org/samarth/translator"
)

// ============================================================================
// SAMARTH — Q&A service over integrated district agricultural data
// ============================================================================

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	question := flag.String("question", "", "Answer one question and exit (instead of serving)")
	addr := flag.String("addr", "", "Listen address override (default from config)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Samarth — question answering over district crop, rainfall and soil data

Usage:
  samarth --config config.yaml
  samarth --config config.yaml --question "What was the rice production in Pune in 2010?"

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment:
  SAMARTH_AI_API_KEY           Gemini API key (overrides ai.api_key)
  SAMARTH_DATASET_CROP_PATH    Crop production CSV
  SAMARTH_DATASET_RAINFALL_PATH Daily rainfall CSV
  SAMARTH_DATASET_SOIL_PATH    Daily soil moisture CSV
`)
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("samarth %s\n", version)
		os.Exit(0)
	}

	logger := newLogger(*verbose)
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(logger, "configuration failed", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	table, report, err := loadDataset(logger, cfg.Dataset)
	if err != nil {
		// A partially built table must never answer questions.
		fatal(logger, "dataset integration failed", err)
	}
	schema := dataset.Describe(table)
	logger.Info("dataset ready",
		"rows", report.Rows,
		"metrics", len(schema.Metrics),
		"accepted", report.Accepted,
		"dropped", report.Dropped)

	executor := engine.NewExecutor(engine.Config{
		Logger: logger,
		Table:  table,
		Schema: schema,
		Limits: engine.Limits{
			Timeout:   cfg.Sandbox.Timeout,
			MaxGroups: cfg.Sandbox.MaxGroups,
			MaxRows:   cfg.Sandbox.MaxRows,
		},
		Workers: cfg.Sandbox.Workers,
	})
	defer executor.Close()

	client := translator.NewGemini(translator.Config{
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		Endpoint:   cfg.AI.Endpoint,
		Timeout:    cfg.AI.Timeout,
		MaxRetries: cfg.AI.MaxRetries,
	}, logger)

	orch := orchestrator.New(orchestrator.Config{
		Logger:     logger,
		Client:     client,
		Executor:   executor,
		Schema:     schema,
		MaxRetries: cfg.Orchestrator.MaxRetries,
	})

	if *question != "" {
		askOnce(logger, orch, *question)
		return
	}

	serve(logger, cfg, orch, schema, report)
}

// ============================================================================
// MODES
// ============================================================================

func askOnce(logger *slog.Logger, orch *orchestrator.Orchestrator, question string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	record, err := orch.Ask(ctx, question)
	if err != nil {
		fatal(logger, "question failed", err)
	}

	fmt.Println(record.FinalAnswer)
	out, _ := json.MarshalIndent(record, "", "  ")
	fmt.Fprintln(os.Stderr, string(out))
}

func serve(logger *slog.Logger, cfg *config.Config, orch *orchestrator.Orchestrator, schema dataset.Schema, report *dataset.Report) {
	srv := server.New(server.Config{
		Logger:         logger,
		Asker:          orch,
		Schema:         schema,
		Report:         report,
		RequestTimeout: cfg.Server.RequestTimeout,
		CacheTTL:       cfg.Server.CacheTTL,
	})

	go func() {
		if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server failed", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

// ============================================================================
// WIRING
// ============================================================================

func loadDataset(logger *slog.Logger, cfg config.DatasetConfig) (*dataset.AnalyticTable, *dataset.Report, error) {
	crop, err := loadCSV(cfg.CropPath, dataset.LoadCropCSV)
	if err != nil {
		return nil, nil, fmt.Errorf("crop source: %w", err)
	}
	rain, err := loadCSV(cfg.RainfallPath, dataset.LoadRainfallCSV)
	if err != nil {
		return nil, nil, fmt.Errorf("rainfall source: %w", err)
	}
	soil, err := loadCSV(cfg.SoilPath, dataset.LoadSoilCSV)
	if err != nil {
		return nil, nil, fmt.Errorf("soil source: %w", err)
	}
	logger.Debug("sources loaded", "crop", len(crop), "rainfall", len(rain), "soil", len(soil))

	return dataset.Integrate(crop, rain, soil)
}

func loadCSV(path string, load func(r io.Reader) ([]dataset.RawRecord, error)) ([]dataset.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return load(f)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
