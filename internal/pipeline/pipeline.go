// Package pipeline sequences the discovery, dataset enrichment, and content
// generation stages and reports what remains to be done.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/atlasdir/placepipe/internal/checkpoint"
	"github.com/atlasdir/placepipe/internal/content"
	"github.com/atlasdir/placepipe/internal/discovery"
	"github.com/atlasdir/placepipe/internal/enrich"
	"github.com/atlasdir/placepipe/internal/listing"
	"github.com/atlasdir/placepipe/internal/metrics"
	"github.com/atlasdir/placepipe/internal/refdata"
	"github.com/atlasdir/placepipe/internal/repository"
)

// RunOptions scopes one full pipeline pass.
type RunOptions struct {
	Country string
	// Categories to discover; empty means every configured category.
	Categories []string
	OnlyCity   string
	Fresh      bool
	DryRun     bool

	SearchLimit  int
	DatasetBatch int
	ContentBatch int
	// Limit caps records per enrichment stage; 0 means all.
	Limit int
}

// Report is the read-only validation summary produced after a run.
type Report struct {
	Country           string
	Incomplete        repository.Incomplete
	ActiveCheckpoints []string
	// ResumeHints name the command that continues each unfinished scope.
	ResumeHints []string
	// Samples shows a handful of incomplete records, ones with a precise
	// correlation id first.
	Samples []listing.BusinessRecord
}

// Orchestrator wires the three stage engines together. It keeps no state of
// its own: every run reads its position from the checkpoint store.
type Orchestrator struct {
	discovery    *discovery.Engine
	enrich       *enrich.Engine
	content      *content.Engine
	repo         repository.RecordRepository
	ckpt         *checkpoint.Store
	catalog      *refdata.Catalog
	minDescChars int
	logger       *zap.Logger
}

// New builds an orchestrator.
func New(d *discovery.Engine, e *enrich.Engine, c *content.Engine, repo repository.RecordRepository, ckpt *checkpoint.Store, catalog *refdata.Catalog, minDescChars int, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		discovery:    d,
		enrich:       e,
		content:      c,
		repo:         repo,
		ckpt:         ckpt,
		catalog:      catalog,
		minDescChars: minDescChars,
		logger:       logger,
	}
}

// RunFull runs discovery for every requested category, then dataset
// enrichment, then content generation. A failing category or stage does not
// stop the later ones; all failures come back joined so the caller can exit
// non-zero.
func (o *Orchestrator) RunFull(ctx context.Context, opts RunOptions) error {
	categories := opts.Categories
	if len(categories) == 0 {
		categories = o.catalog.CategorySlugs()
		sort.Strings(categories)
	}

	var failures []error
	for _, slug := range categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := o.discovery.Run(ctx, discovery.Options{
			Country:     opts.Country,
			Category:    slug,
			OnlyCity:    opts.OnlyCity,
			Fresh:       opts.Fresh,
			DryRun:      opts.DryRun,
			ResultLimit: opts.SearchLimit,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			metrics.ObserveStageRun(string(checkpoint.StageDiscovery), "failed")
			failures = append(failures, fmt.Errorf("discovery %s/%s: %w", opts.Country, slug, err))
			o.logger.Error("discovery stage failed",
				zap.String("category", slug), zap.Error(err))
			continue
		}
		metrics.ObserveStageRun(string(checkpoint.StageDiscovery), "ok")
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := o.enrich.Run(ctx, enrich.Options{
		Country:   opts.Country,
		BatchSize: opts.DatasetBatch,
		Limit:     opts.Limit,
		Fresh:     opts.Fresh,
		DryRun:    opts.DryRun,
	}); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		metrics.ObserveStageRun(string(checkpoint.StageDataset), "failed")
		failures = append(failures, fmt.Errorf("dataset enrichment %s: %w", opts.Country, err))
		o.logger.Error("dataset enrichment stage failed", zap.Error(err))
	} else {
		metrics.ObserveStageRun(string(checkpoint.StageDataset), "ok")
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := o.content.Run(ctx, content.Options{
		Country:   opts.Country,
		BatchSize: opts.ContentBatch,
		Limit:     opts.Limit,
		Fresh:     opts.Fresh,
		DryRun:    opts.DryRun,
	}); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		metrics.ObserveStageRun(string(checkpoint.StageContent), "failed")
		failures = append(failures, fmt.Errorf("content generation %s: %w", opts.Country, err))
		o.logger.Error("content generation stage failed", zap.Error(err))
	} else {
		metrics.ObserveStageRun(string(checkpoint.StageContent), "ok")
	}

	report, err := o.Validate(ctx, opts.Country)
	if err != nil {
		failures = append(failures, err)
	} else {
		o.logReport(report)
	}

	return errors.Join(failures...)
}

// Validate builds a read-only gap report for a country. It writes nothing.
func (o *Orchestrator) Validate(ctx context.Context, countryCode string) (*Report, error) {
	if _, err := o.catalog.Country(countryCode); err != nil {
		return nil, err
	}

	incomplete, err := o.repo.CountIncomplete(ctx, countryCode, o.minDescChars)
	if err != nil {
		return nil, err
	}

	keys, err := o.ckpt.ListActive()
	if err != nil {
		return nil, err
	}

	samples, err := o.repo.SelectIncomplete(ctx, repository.Filter{
		Country:        countryCode,
		MissingContent: true,
		MinDescChars:   o.minDescChars,
		PreferPlaceRef: true,
	}, 0, 5)
	if err != nil {
		return nil, err
	}

	return &Report{
		Country:           countryCode,
		Incomplete:        incomplete,
		ActiveCheckpoints: keys,
		ResumeHints:       resumeHints(keys),
		Samples:           samples,
	}, nil
}

// resumeHints maps active checkpoint keys to the subcommand that continues
// them.
func resumeHints(keys []string) []string {
	commands := map[checkpoint.Stage]string{
		checkpoint.StageDiscovery: "discover",
		checkpoint.StageDataset:   "enrich",
		checkpoint.StageContent:   "generate",
	}
	var hints []string
	for _, key := range keys {
		stage, country, category, ok := checkpoint.ParseKey(key)
		if !ok {
			continue
		}
		cmd, known := commands[stage]
		if !known {
			continue
		}
		hint := fmt.Sprintf("placepipe %s --country %s", cmd, country)
		if category != "" {
			hint += " --category " + category
		}
		hints = append(hints, hint)
	}
	return hints
}

func (o *Orchestrator) logReport(r *Report) {
	o.logger.Info("pipeline validation report",
		zap.String("country", r.Country),
		zap.Int("records", r.Incomplete.Total),
		zap.Int("missing_phone", r.Incomplete.MissingPhone),
		zap.Int("missing_website", r.Incomplete.MissingWebsite),
		zap.Int("missing_content", r.Incomplete.MissingContent),
		zap.Strings("active_checkpoints", r.ActiveCheckpoints),
		zap.Strings("resume_hints", r.ResumeHints),
	)
}
