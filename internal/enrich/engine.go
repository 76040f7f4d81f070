// Package enrich runs the asynchronous dataset enrichment stage: it submits
// batches of known businesses to the dataset provider, waits for collection
// to finish, and merges the results into the records.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/atlasdir/placepipe/internal/checkpoint"
	"github.com/atlasdir/placepipe/internal/listing"
	"github.com/atlasdir/placepipe/internal/metrics"
	"github.com/atlasdir/placepipe/internal/provider"
	"github.com/atlasdir/placepipe/internal/provider/dataset"
	"github.com/atlasdir/placepipe/internal/refdata"
	"github.com/atlasdir/placepipe/internal/repository"
)

// Collector is the slice of the dataset client the engine needs.
type Collector interface {
	Collect(ctx context.Context, inputs []dataset.Input) ([]dataset.Result, error)
}

// Options scopes one enrichment run.
type Options struct {
	Country   string
	BatchSize int
	// Limit caps the number of records processed this run; 0 means all.
	Limit int
	// Fresh archives any existing checkpoint and restarts the cursor.
	Fresh bool
	// DryRun reports what would be submitted without calling the provider.
	DryRun bool
}

// Engine drives checkpointed batch enrichment. The cursor in the progress
// document only moves forward, so a killed run resumes exactly after the
// last batch whose outcome was recorded.
type Engine struct {
	collector Collector
	repo      repository.RecordRepository
	ckpt      *checkpoint.Store
	catalog   *refdata.Catalog
	limits    listing.ReviewLimits
	logger    *zap.Logger
}

// New builds an enrichment engine.
func New(collector Collector, repo repository.RecordRepository, ckpt *checkpoint.Store, catalog *refdata.Catalog, limits listing.ReviewLimits, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{collector: collector, repo: repo, ckpt: ckpt, catalog: catalog, limits: limits, logger: logger}
}

// Run enriches records for one country until none remain, the limit is hit,
// or the provider times out. A timeout aborts the current batch with no
// partial writes and no cursor movement for it.
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

	e.logger.Info("dataset enrichment starting",
		zap.String("country", country.Code),
		zap.Int64("cursor", doc.LastProcessedID),
		zap.Int("batch_size", opts.BatchSize),
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
			MissingDataset: true,
		}, doc.LastProcessedID, size)
		if err != nil {
			return doc, err
		}
		if len(batch) == 0 {
			exhausted = true
			break
		}

		if opts.DryRun {
			doc.Enrichment.ToProcess += len(batch)
			for _, rec := range batch {
				doc.Advance(rec.ID)
			}
			processed += len(batch)
			continue
		}

		if err := e.processBatch(ctx, doc, country, batch); err != nil {
			// An aborted batch is not counted: the retry submits it again.
			if saveErr := e.ckpt.Save(doc); saveErr != nil {
				return doc, saveErr
			}
			return doc, err
		}
		doc.Enrichment.ToProcess += len(batch)
		if err := e.ckpt.Save(doc); err != nil {
			return doc, err
		}
		processed += len(batch)
	}

	if exhausted && !opts.DryRun && doc.Enrichment.Processed > 0 {
		if err := e.ckpt.Archive(checkpoint.StageDataset, opts.Country, ""); err != nil {
			return doc, err
		}
	}

	e.logger.Info("dataset enrichment finished",
		zap.String("country", country.Code),
		zap.Int("processed", doc.Enrichment.Processed),
		zap.Int("enriched", doc.Enrichment.Enriched),
		zap.Int("failed", doc.Enrichment.Failed),
		zap.Int("skipped", doc.Enrichment.Skipped),
	)
	return doc, nil
}

func (e *Engine) loadDocument(opts Options) (*checkpoint.Document, error) {
	if opts.Fresh {
		if !opts.DryRun {
			if err := e.ckpt.Archive(checkpoint.StageDataset, opts.Country, ""); err == nil {
				e.logger.Info("archived previous enrichment checkpoint", zap.String("country", opts.Country))
			}
		}
		return checkpoint.NewEnrichment(checkpoint.StageDataset, opts.Country), nil
	}

	doc, err := e.ckpt.Load(checkpoint.Key(checkpoint.StageDataset, opts.Country, ""))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return checkpoint.NewEnrichment(checkpoint.StageDataset, opts.Country), nil
	}
	e.logger.Info("resuming enrichment from checkpoint",
		zap.String("country", opts.Country),
		zap.Int64("cursor", doc.LastProcessedID),
	)
	return doc, nil
}

func (e *Engine) processBatch(ctx context.Context, doc *checkpoint.Document, country refdata.Country, batch []listing.BusinessRecord) error {
	results, err := e.collector.Collect(ctx, buildInputs(batch, country))
	if err != nil {
		var terr *provider.TimeoutError
		if errors.As(err, &terr) {
			return err
		}
		// A failed job or malformed payload leaves every record in the
		// batch untouched. The cursor still moves past them so one bad
		// batch cannot wedge the whole run; the records stay unflagged
		// and a fresh run picks them up again.
		for _, rec := range batch {
			doc.Enrichment.Processed++
			doc.Enrichment.Failed++
			doc.Advance(rec.ID)
			metrics.ObserveRecord(string(checkpoint.StageDataset), "failed")
		}
		doc.LogError(checkpoint.ErrorEntry{Message: fmt.Sprintf("batch collection failed: %v", err)})
		e.logger.Warn("batch collection failed", zap.Int("batch", len(batch)), zap.Error(err))
		return nil
	}

	matches := matchResults(batch, results)
	for i := range batch {
		rec := &batch[i]
		doc.Enrichment.Processed++
		res, ok := matches[rec.ID]
		if !ok {
			doc.Enrichment.Skipped++
			doc.Advance(rec.ID)
			doc.LogError(checkpoint.ErrorEntry{
				RecordID:   rec.ID,
				RecordName: rec.Name,
				Message:    "no dataset result matched",
			})
			metrics.ObserveRecord(string(checkpoint.StageDataset), "skipped")
			continue
		}
		if err := e.applyResult(ctx, rec, res); err != nil {
			return err
		}
		doc.Enrichment.Enriched++
		doc.Advance(rec.ID)
		metrics.ObserveRecord(string(checkpoint.StageDataset), "enriched")
	}
	return nil
}

// applyResult merges one dataset result into its record. Scalar fields use
// coalesce semantics so the result never nulls out existing data.
func (e *Engine) applyResult(ctx context.Context, rec *listing.BusinessRecord, res *dataset.Result) error {
	upd := listing.FieldUpdate{
		Address:     res.Address,
		Phone:       res.Phone,
		Rating:      res.Rating,
		ReviewCount: res.ReviewCount,
	}
	if res.DatasetRef != "" {
		upd.DatasetRef = &res.DatasetRef
	}
	if err := e.repo.UpdateFields(ctx, rec.ID, upd); err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}

	flags := []string{listing.FlagDatasetEnriched}
	if res.Rating != nil {
		flags = append(flags, listing.FlagRatingConfirmed)
	}
	content := listing.Content{
		ScrapedDesc: res.Description,
		Hours:       res.Hours,
		Reviews:     convertReviews(res.Reviews),
	}
	if err := e.repo.MergeContent(ctx, rec.ID, content, flags, e.limits); err != nil {
		return fmt.Errorf("merge content for record %d: %w", rec.ID, err)
	}
	return nil
}

// buildInputs derives one provider input per record, preferring the most
// precise correlation key available: place ref, then dataset ref, then a
// constructed name query.
func buildInputs(batch []listing.BusinessRecord, country refdata.Country) []dataset.Input {
	inputs := make([]dataset.Input, 0, len(batch))
	for _, rec := range batch {
		in := dataset.Input{RecordID: rec.ID}
		switch {
		case rec.PlaceRef != "":
			in.PlaceRef = rec.PlaceRef
		case rec.DatasetRef != "":
			in.DatasetRef = rec.DatasetRef
		default:
			in.Query = strings.Join([]string{rec.Name, rec.CityID, country.Name}, ", ")
		}
		inputs = append(inputs, in)
	}
	return inputs
}

func convertReviews(in []dataset.Review) []listing.Review {
	if len(in) == 0 {
		return nil
	}
	out := make([]listing.Review, 0, len(in))
	for _, rv := range in {
		out = append(out, listing.Review{Author: rv.Author, Text: rv.Text, Rating: rv.Rating})
	}
	return out
}
