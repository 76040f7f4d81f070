// Package app assembles the pipeline services from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/atlasdir/placepipe/internal/api"
	"github.com/atlasdir/placepipe/internal/checkpoint"
	"github.com/atlasdir/placepipe/internal/config"
	"github.com/atlasdir/placepipe/internal/content"
	"github.com/atlasdir/placepipe/internal/discovery"
	"github.com/atlasdir/placepipe/internal/enrich"
	"github.com/atlasdir/placepipe/internal/listing"
	"github.com/atlasdir/placepipe/internal/logging"
	"github.com/atlasdir/placepipe/internal/metrics"
	"github.com/atlasdir/placepipe/internal/pipeline"
	"github.com/atlasdir/placepipe/internal/provider"
	"github.com/atlasdir/placepipe/internal/provider/dataset"
	"github.com/atlasdir/placepipe/internal/provider/genai"
	"github.com/atlasdir/placepipe/internal/provider/search"
	"github.com/atlasdir/placepipe/internal/refdata"
	"github.com/atlasdir/placepipe/internal/repository"
)

// App holds every constructed service for one process lifetime.
type App struct {
	Cfg          config.Config
	Logger       *zap.Logger
	Repo         repository.RecordRepository
	Ckpt         *checkpoint.Store
	Catalog      *refdata.Catalog
	Discovery    *discovery.Engine
	Enrich       *enrich.Engine
	Content      *content.Engine
	Orchestrator *pipeline.Orchestrator

	pool      *pgxpool.Pool
	statusSrv *http.Server
}

// New loads configuration and wires up every service. The caller owns the
// returned App and must Close it.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	metrics.Init()

	ckpt, err := checkpoint.NewStore(cfg.Checkpoint.Dir)
	if err != nil {
		return nil, err
	}
	catalog, err := refdata.Load(cfg.Refdata.Dir)
	if err != nil {
		return nil, err
	}

	var (
		repo repository.RecordRepository
		pool *pgxpool.Pool
	)
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn not set, records will not survive this process")
		repo = repository.NewMemory()
	} else {
		poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse db dsn: %w", err)
		}
		poolCfg.MaxConns = cfg.DB.MaxConns
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		repo = repository.NewPostgres(pool, logger)
	}

	caller := provider.NewCaller(map[string]provider.Settings{
		search.ProviderName:  {Delay: cfg.Search.Delay, MaxRetries: cfg.Search.MaxRetries, BaseBackoff: cfg.Search.BaseBackoff},
		dataset.ProviderName: {Delay: cfg.Dataset.Delay, MaxRetries: cfg.Dataset.MaxRetries, BaseBackoff: cfg.Dataset.BaseBackoff},
		genai.ProviderName:   {Delay: cfg.Content.Delay, MaxRetries: cfg.Content.MaxRetries, BaseBackoff: cfg.Content.BaseBackoff},
	}, logger)

	searchClient := search.NewClient(cfg.Search.BaseURL, cfg.Search.APIKey, caller, logger)
	datasetClient := dataset.NewClient(dataset.Config{
		BaseURL:      cfg.Dataset.BaseURL,
		APIKey:       cfg.Dataset.APIKey,
		DatasetID:    cfg.Dataset.DatasetID,
		PollInterval: cfg.Dataset.PollInterval,
		PollBudget:   cfg.Dataset.PollBudget,
	}, caller, logger)
	genaiClient := genai.NewClient(cfg.Content.Endpoint, cfg.Content.Model, cfg.Content.APIKey, caller, logger)

	limits := listing.ReviewLimits{
		Max:      cfg.Reviews.Max,
		MaxChars: cfg.Reviews.MaxChars,
		MinChars: cfg.Reviews.MinChars,
	}

	d := discovery.New(searchClient, repo, ckpt, catalog, logger)
	e := enrich.New(datasetClient, repo, ckpt, catalog, limits, logger)
	c := content.New(genaiClient, repo, ckpt, catalog, limits, cfg.Content.MinDescChars, logger)
	orch := pipeline.New(d, e, c, repo, ckpt, catalog, cfg.Content.MinDescChars, logger)

	return &App{
		Cfg:          cfg,
		Logger:       logger,
		Repo:         repo,
		Ckpt:         ckpt,
		Catalog:      catalog,
		Discovery:    d,
		Enrich:       e,
		Content:      c,
		Orchestrator: orch,
		pool:         pool,
	}, nil
}

// StartStatusServer serves the read-only status API in the background.
func (a *App) StartStatusServer(listen string) {
	srv := &http.Server{
		Addr:              listen,
		Handler:           api.NewServer(a.Ckpt, a.Orchestrator, a.Logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.statusSrv = srv
	go func() {
		a.Logger.Info("status server listening", zap.String("addr", listen))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("status server failed", zap.Error(err))
		}
	}()
}

// Close releases every service. Safe to call once.
func (a *App) Close() {
	if a.statusSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.statusSrv.Shutdown(ctx); err != nil {
			a.Logger.Warn("status server shutdown", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.Logger.Sync()
}
