// Package discovery finds businesses city by city through the search
// provider and creates their initial records.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlasdir/placepipe/internal/checkpoint"
	"github.com/atlasdir/placepipe/internal/listing"
	"github.com/atlasdir/placepipe/internal/metrics"
	"github.com/atlasdir/placepipe/internal/provider/search"
	"github.com/atlasdir/placepipe/internal/refdata"
	"github.com/atlasdir/placepipe/internal/repository"
)

// Searcher is the slice of the search client the engine needs.
type Searcher interface {
	Search(ctx context.Context, query, unitName, language string, limit int) ([]search.Result, error)
}

// Options scopes one discovery run.
type Options struct {
	Country  string
	Category string
	// OnlyCity restricts the run to a single city id or slug.
	OnlyCity string
	// Fresh archives any existing checkpoint and starts over.
	Fresh bool
	// DryRun counts what would be created without writing records.
	DryRun bool
	// ResultLimit is the per-query result cap passed to the provider.
	ResultLimit int
}

// Engine runs checkpointed city-by-city discovery for one country and
// category. Re-running a run is safe: completed cities are skipped via the
// checkpoint and records are deduplicated by (slug, city).
type Engine struct {
	searcher Searcher
	repo     repository.RecordRepository
	ckpt     *checkpoint.Store
	catalog  *refdata.Catalog
	logger   *zap.Logger
}

// New builds a discovery engine.
func New(searcher Searcher, repo repository.RecordRepository, ckpt *checkpoint.Store, catalog *refdata.Catalog, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{searcher: searcher, repo: repo, ckpt: ckpt, catalog: catalog, logger: logger}
}

// Run discovers businesses for one country and category. It returns the
// final progress document; per-item failures are logged into the document
// while checkpoint write failures abort the run.
func (e *Engine) Run(ctx context.Context, opts Options) (*checkpoint.Document, error) {
	country, err := e.catalog.Country(opts.Country)
	if err != nil {
		return nil, err
	}
	category, err := e.catalog.Category(opts.Category)
	if err != nil {
		return nil, err
	}

	cities := selectCities(country, opts.OnlyCity)
	if len(cities) == 0 {
		return nil, fmt.Errorf("no city %q in country %q", opts.OnlyCity, opts.Country)
	}

	doc, err := e.loadDocument(opts)
	if err != nil {
		return nil, err
	}
	doc.Discovery.UnitsTotal = len(cities)

	runID := uuid.NewString()
	e.logger.Info("discovery run starting",
		zap.String("country", country.Code),
		zap.String("category", category.Slug),
		zap.String("run_id", runID),
		zap.Int("cities", len(cities)),
		zap.Int("already_done", len(doc.CompletedUnits)),
		zap.Bool("dry_run", opts.DryRun),
	)

	seen := make(map[string]struct{})
	for _, city := range cities {
		if err := ctx.Err(); err != nil {
			return doc, err
		}
		if doc.UnitCompleted(city.ID) {
			e.logger.Debug("city already completed, skipping", zap.String("city", city.ID))
			continue
		}

		doc.CurrentUnit = city.ID
		e.discoverCity(ctx, doc, country, city, category, runID, opts, seen)
		doc.MarkUnitDone(city.ID)
		// Dry runs leave no trace: persisting their progress would make a
		// later real run skip cities it never actually wrote.
		if !opts.DryRun {
			if err := e.ckpt.Save(doc); err != nil {
				return doc, err
			}
		}
	}

	if opts.OnlyCity == "" && !opts.DryRun {
		if err := e.ckpt.Archive(checkpoint.StageDiscovery, opts.Country, opts.Category); err != nil {
			return doc, err
		}
	}

	e.logger.Info("discovery run finished",
		zap.String("country", country.Code),
		zap.String("category", category.Slug),
		zap.Int("found", doc.Discovery.Found),
		zap.Int("created", doc.Discovery.Created),
		zap.Int("skipped", doc.Discovery.Skipped),
		zap.Int("errors", doc.Discovery.Errors),
	)
	return doc, nil
}

func (e *Engine) loadDocument(opts Options) (*checkpoint.Document, error) {
	if opts.Fresh {
		// Keep history: a stale document is archived, never deleted.
		if !opts.DryRun {
			if err := e.ckpt.Archive(checkpoint.StageDiscovery, opts.Country, opts.Category); err == nil {
				e.logger.Info("archived previous discovery checkpoint",
					zap.String("country", opts.Country), zap.String("category", opts.Category))
			}
		}
		return checkpoint.NewDiscovery(opts.Country, opts.Category), nil
	}

	doc, err := e.ckpt.Load(checkpoint.Key(checkpoint.StageDiscovery, opts.Country, opts.Category))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return checkpoint.NewDiscovery(opts.Country, opts.Category), nil
	}
	e.logger.Info("resuming discovery from checkpoint",
		zap.String("country", opts.Country),
		zap.String("category", opts.Category),
		zap.Int("units_done", len(doc.CompletedUnits)),
	)
	return doc, nil
}

func (e *Engine) discoverCity(ctx context.Context, doc *checkpoint.Document, country refdata.Country, city refdata.City, category refdata.Category, runID string, opts Options, seen map[string]struct{}) {
	for _, lang := range refdata.CityLanguages(country, city) {
		query, ok := category.Queries[lang]
		if !ok || strings.TrimSpace(query) == "" {
			continue
		}

		results, err := e.searcher.Search(ctx, query, city.Name+", "+country.Name, lang, opts.ResultLimit)
		if err != nil {
			doc.Discovery.Errors++
			doc.LogError(checkpoint.ErrorEntry{
				Unit:    city.ID,
				Message: fmt.Sprintf("search %q (%s): %v", query, lang, err),
			})
			e.logger.Warn("search failed",
				zap.String("city", city.ID), zap.String("language", lang), zap.Error(err))
			continue
		}

		for _, res := range results {
			doc.Discovery.Found++
			if e.storeResult(ctx, doc, city, country, category, res, runID, opts, seen) {
				doc.Discovery.Created++
				metrics.ObserveRecord(string(checkpoint.StageDiscovery), "created")
			} else {
				doc.Discovery.Skipped++
				metrics.ObserveRecord(string(checkpoint.StageDiscovery), "skipped")
			}
		}
	}
}

// storeResult inserts one search result unless a record with the same
// (slug, city) already exists. First write wins.
func (e *Engine) storeResult(ctx context.Context, doc *checkpoint.Document, city refdata.City, country refdata.Country, category refdata.Category, res search.Result, runID string, opts Options, seen map[string]struct{}) bool {
	slug := listing.Slugify(res.Name)
	if slug == "" {
		return false
	}
	dedupKey := city.ID + "/" + slug
	if _, dup := seen[dedupKey]; dup {
		return false
	}

	_, err := e.repo.FindBySlugAndCity(ctx, slug, city.ID)
	if err == nil {
		seen[dedupKey] = struct{}{}
		return false
	}
	if !errors.Is(err, repository.ErrNotFound) {
		doc.Discovery.Errors++
		doc.LogError(checkpoint.ErrorEntry{Unit: city.ID, RecordName: res.Name, Message: err.Error()})
		return false
	}

	seen[dedupKey] = struct{}{}
	if opts.DryRun {
		return true
	}

	rec := &listing.BusinessRecord{
		Slug:        slug,
		CityID:      city.ID,
		CountryCode: country.Code,
		Category:    category.Slug,
		Name:        res.Name,
		Address:     optStr(res.Address),
		Phone:       optStr(res.Phone),
		Website:     optStr(res.Website),
		Lat:         optFloat(res.Lat),
		Lng:         optFloat(res.Lng),
		Rating:      optFloat(res.Rating),
		ReviewCount: optInt(res.ReviewCount),
		PlaceRef:    res.ExternalID,
		Source:      "search",
		RunID:       runID,
	}
	if _, err := e.repo.Insert(ctx, rec); err != nil {
		doc.Discovery.Errors++
		doc.LogError(checkpoint.ErrorEntry{Unit: city.ID, RecordName: res.Name, Message: err.Error()})
		e.logger.Warn("insert failed", zap.String("slug", slug), zap.Error(err))
		return false
	}
	return true
}

func selectCities(country refdata.Country, only string) []refdata.City {
	if only == "" {
		return country.Cities
	}
	for _, c := range country.Cities {
		if c.ID == only || c.Slug == only {
			return []refdata.City{c}
		}
	}
	return nil
}

func optStr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func optFloat(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}

func optInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}
