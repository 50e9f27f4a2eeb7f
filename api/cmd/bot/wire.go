package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"screen-bot/api/internal/capture"
	"screen-bot/api/internal/config"
	"screen-bot/api/internal/logger"
	"screen-bot/api/internal/metrics"
	"screen-bot/api/internal/ocr"
	"screen-bot/api/internal/ocr/gemini"
	"screen-bot/api/internal/ocr/openai"
	"screen-bot/api/internal/pipeline"
	"screen-bot/api/internal/session"
	"screen-bot/api/internal/store"
)

// app holds everything both commands share.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	capturer *capture.Adapter
	engines  ocr.Engines
	store    *session.Store
	pipeline *pipeline.Pipeline

	db   *sql.DB       // nil without DATABASE_URL
	runs *store.RunRepo // nil without DATABASE_URL
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	log := logger.New(logger.Config{Verbose: cfg.Verbose, Format: cfg.LogFormat})
	slog.SetDefault(log)

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	a.capturer = capture.New(capture.CommandGrabber{Args: cfg.CaptureCommand}, capture.Options{
		Dir:      cfg.CaptureDir,
		Quality:  cfg.ImageQuality,
		MaxWidth: cfg.ImageMaxWidth,
	})
	a.engines = ocr.NewEngines(
		gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
		openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL),
		cfg.OCREnabled, cfg.AnswerEnabled,
	)
	a.store = session.NewStore(session.Options{Logger: log})

	var rec pipeline.Recorder
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("db connected", "dsn", store.SafeDSNSummary(cfg.DatabaseURL))
		a.db = db
		a.runs = store.NewRunRepo(db)
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := a.runs.EnsureSchema(sctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		rec = a.runs
	}

	a.pipeline = pipeline.New(pipeline.Options{
		Store:    a.store,
		Engines:  a.engines,
		Logger:   log,
		Recorder: rec,
		Metrics:  a.metrics,
	})

	log.Info("engines ready",
		"ocr", a.engines.Extractor.Name(), "ocr_enabled", cfg.OCREnabled,
		"answer", a.engines.Answerer.Name(), "answer_enabled", cfg.AnswerEnabled)
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}
