// Package app wires configuration, storage, queueing, pricing, and HTTP
// transport into one process: New builds everything, Serve runs the HTTP
// listener until the context is cancelled, Close tears it down.
package app

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"travelguard/internal/config"
	"travelguard/internal/httpapi"
	"travelguard/internal/ingest"
	"travelguard/internal/issuance"
	"travelguard/internal/pricing"
	"travelguard/internal/queue"
	"travelguard/internal/store"
	"travelguard/internal/tariff"
)

type App struct {
	Config   config.Config
	Store    *store.Store
	Queue    *queue.Queue
	Catalog  tariff.Catalog
	Engine   pricing.Engine
	Issuance issuance.Stub
	Handler  httpapi.Handler
	Logger   zerolog.Logger
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := newLogger(cfg)

	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, st.DB()); err != nil {
		return nil, err
	}

	var q *queue.Queue
	if cfg.Redis.URL != "" {
		q, err = queue.New(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
	}

	cat, err := tariff.Load(cfg.Tariff.CSVPath, cfg.Tariff.RulesPath)
	if err != nil {
		return nil, err
	}
	engine := pricing.NewEngine(cat)

	controller := ingest.NewController(st, engine)
	controller.Queue = q

	stub := issuance.NewStub(cfg.Issuance.ScreenshotDir)

	handler := httpapi.Handler{
		Controller:    controller,
		Issuance:      stub,
		Store:         st,
		WebhookSecret: cfg.Webhook.Secret,
		Logger:        logger,
	}

	return &App{
		Config:   cfg,
		Store:    st,
		Queue:    q,
		Catalog:  cat,
		Engine:   engine,
		Issuance: stub,
		Handler:  handler,
		Logger:   logger,
	}, nil
}

func (a *App) Close() error {
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	return err
}

func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           a.Handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.Logger.Info().Str("addr", a.Config.HTTP.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// RunIssuanceWorker drains the async issuance queue, simulating policy
// artifacts for each case as it is popped. It blocks until ctx is
// cancelled; a nil Queue means async issuance isn't configured, so it
// returns immediately.
func (a *App) RunIssuanceWorker(ctx context.Context) error {
	if a.Queue == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		caseID, err := a.Queue.PopIssuanceJob(ctx, 5*time.Second)
		if err != nil {
			continue
		}
		if caseID == "" {
			continue
		}

		c, err := a.Store.GetCase(ctx, caseID)
		if err != nil {
			a.Logger.Error().Err(err).Str("case_id", caseID).Msg("issuance worker: case lookup failed")
			continue
		}

		result, err := a.Issuance.Simulate(ctx, issuance.CaseSnapshot{
			CaseID: c.ID,
			Plan:   c.Plan,
			Scope:  c.Scope,
			Days:   c.Days,
		})
		if err != nil {
			a.Logger.Error().Err(err).Str("case_id", caseID).Msg("issuance worker: simulation failed")
			continue
		}

		if err := a.Store.SetPolicyArtifacts(ctx, c.ID, result.ScreenshotPath, ""); err != nil {
			a.Logger.Error().Err(err).Str("case_id", caseID).Msg("issuance worker: failed to record artifacts")
		}
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Dev.Mode {
		w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
