// Package content runs the generative enrichment stage: records whose
// description is missing or too thin get directory copy written for them.
package content

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/atlasdir/placepipe/internal/checkpoint"
	"github.com/atlasdir/placepipe/internal/listing"
	"github.com/atlasdir/placepipe/internal/metrics"
	"github.com/atlasdir/placepipe/internal/provider"
	"github.com/atlasdir/placepipe/internal/provider/genai"
	"github.com/atlasdir/placepipe/internal/refdata"
	"github.com/atlasdir/placepipe/internal/repository"
)

// Generator is the slice of the genai client the engine needs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*genai.Generated, error)
}

// Options scopes one content run.
type Options struct {
	Country   string
	BatchSize int
	// Limit caps records processed this run; 0 means all.
	Limit int
	// Fresh archives any existing checkpoint and restarts the cursor.
	Fresh bool
	// DryRun reports which records would be generated without model calls.
	DryRun bool
}

// Engine generates missing descriptions record by record. The checkpoint
// cursor advances on success and on failure, so one stubbornly failing
// record cannot stall the run; failed records come back in a fresh run.
type Engine struct {
	generator    Generator
	repo         repository.RecordRepository
	ckpt         *checkpoint.Store
	catalog      *refdata.Catalog
	limits       listing.ReviewLimits
	minDescChars int
	logger       *zap.Logger
}

// New builds a content engine.
func New(generator Generator, repo repository.RecordRepository, ckpt *checkpoint.Store, catalog *refdata.Catalog, limits listing.ReviewLimits, minDescChars int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		generator:    generator,
		repo:         repo,
		ckpt:         ckpt,
		catalog:      catalog,
		limits:       limits,
		minDescChars: minDescChars,
		logger:       logger,
	}
}

// Run generates content for one country until no incomplete records remain
// or the limit is hit.
func (e *Engine) Run(ctx context.Context, opts Options) (*checkpoint.Document, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0")
	}
	country, err := e.catalog.Country(opts.Country)
	if err != nil {
		return nil, err
	}

	doc, err := e.loadDocument(opts)
	if err != nil {
		return nil, err
	}

	e.logger.Info("content generation starting",
		zap.String("country", country.Code),
		zap.Int64("cursor", doc.LastProcessedID),
		zap.Bool("dry_run", opts.DryRun),
	)

	processed := 0
	exhausted := false
	for {
		if err := ctx.Err(); err != nil {
			return doc, err
		}
		size := opts.BatchSize
		if opts.Limit > 0 && opts.Limit-processed < size {
			size = opts.Limit - processed
		}
		if size <= 0 {
			break
		}

		batch, err := e.repo.SelectIncomplete(ctx, repository.Filter{
			Country:        opts.Country,
			MissingContent: true,
			MinDescChars:   e.minDescChars,
		}, doc.LastProcessedID, size)
		if err != nil {
			return doc, err
		}
		if len(batch) == 0 {
			exhausted = true
			break
		}

		for i := range batch {
			if err := ctx.Err(); err != nil {
				return doc, err
			}
			rec := &batch[i]
			if opts.DryRun {
				doc.Enrichment.ToProcess++
				doc.Advance(rec.ID)
				continue
			}
			if err := e.generateRecord(ctx, doc, country, rec); err != nil {
				// Aborted records are not counted; a retry reselects them.
				if saveErr := e.ckpt.Save(doc); saveErr != nil {
					return doc, saveErr
				}
				return doc, err
			}
			doc.Enrichment.ToProcess++
			// One checkpoint write per record: model calls are expensive
			// enough that losing even one finished record to a crash hurts.
			if err := e.ckpt.Save(doc); err != nil {
				return doc, err
			}
		}
		processed += len(batch)
	}

	if exhausted && !opts.DryRun && doc.Enrichment.Processed > 0 {
		if err := e.ckpt.Archive(checkpoint.StageContent, opts.Country, ""); err != nil {
			return doc, err
		}
	}

	e.logger.Info("content generation finished",
		zap.String("country", country.Code),
		zap.Int("processed", doc.Enrichment.Processed),
		zap.Int("enriched", doc.Enrichment.Enriched),
		zap.Int("failed", doc.Enrichment.Failed),
	)
	return doc, nil
}

func (e *Engine) loadDocument(opts Options) (*checkpoint.Document, error) {
	if opts.Fresh {
		if !opts.DryRun {
			if err := e.ckpt.Archive(checkpoint.StageContent, opts.Country, ""); err == nil {
				e.logger.Info("archived previous content checkpoint", zap.String("country", opts.Country))
			}
		}
		return checkpoint.NewEnrichment(checkpoint.StageContent, opts.Country), nil
	}

	doc, err := e.ckpt.Load(checkpoint.Key(checkpoint.StageContent, opts.Country, ""))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return checkpoint.NewEnrichment(checkpoint.StageContent, opts.Country), nil
	}
	e.logger.Info("resuming content generation from checkpoint",
		zap.String("country", opts.Country),
		zap.Int64("cursor", doc.LastProcessedID),
	)
	return doc, nil
}

// generateRecord handles one record. Generation failures are logged and the
// cursor advances past the record; only persistence failures abort the run.
func (e *Engine) generateRecord(ctx context.Context, doc *checkpoint.Document, country refdata.Country, rec *listing.BusinessRecord) error {
	doc.Enrichment.Processed++

	city, language := e.localize(country, rec.CityID)
	categoryName := rec.Category
	if cat, err := e.catalog.Category(rec.Category); err == nil {
		categoryName = cat.Name
	}

	generated, err := e.generator.Generate(ctx, buildPrompt(rec, categoryName, city, country.Name, language))
	if err != nil {
		var verr *provider.ValidationError
		var perr *provider.Error
		if !errors.As(err, &verr) && !errors.As(err, &perr) {
			return err
		}
		doc.Enrichment.Failed++
		doc.Advance(rec.ID)
		doc.LogError(checkpoint.ErrorEntry{
			RecordID:   rec.ID,
			RecordName: rec.Name,
			Message:    err.Error(),
		})
		metrics.ObserveRecord(string(checkpoint.StageContent), "failed")
		e.logger.Warn("generation failed",
			zap.Int64("record", rec.ID), zap.String("name", rec.Name), zap.Error(err))
		return nil
	}

	update := listing.Content{
		Description:     generated.Description,
		MetaDescription: generated.MetaDescription,
		Audience:        generated.Audience,
		Highlights:      generated.Highlights,
		Services:        generated.Services,
	}
	if err := e.repo.MergeContent(ctx, rec.ID, update, []string{listing.FlagContentGenerated}, e.limits); err != nil {
		return fmt.Errorf("merge generated content for record %d: %w", rec.ID, err)
	}

	doc.Enrichment.Enriched++
	doc.Advance(rec.ID)
	metrics.ObserveRecord(string(checkpoint.StageContent), "enriched")
	return nil
}

// localize resolves the record's city display name and the language copy
// should be written in. The first configured language wins.
func (e *Engine) localize(country refdata.Country, cityID string) (string, string) {
	cityName := cityID
	languages := country.Languages
	for _, c := range country.Cities {
		if c.ID == cityID {
			cityName = c.Name
			languages = refdata.CityLanguages(country, c)
			break
		}
	}
	if len(languages) == 0 {
		return cityName, "en"
	}
	return cityName, languages[0]
}
