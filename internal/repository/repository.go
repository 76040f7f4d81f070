// Package repository declares and implements persistence for business
// records.
package repository

import (
	"context"
	"errors"

	"github.com/atlasdir/placepipe/internal/listing"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("business record not found")

// Filter selects records still needing work for an enrichment stage.
type Filter struct {
	Country string
	// MissingDataset selects records not yet flagged dataset_enriched.
	MissingDataset bool
	// MissingContent selects records whose generated description is absent
	// or shorter than MinDescChars.
	MissingContent bool
	MinDescChars   int
	// PreferPlaceRef orders records holding a precise correlation id before
	// those that will need fuzzy matching.
	PreferPlaceRef bool
}

// Incomplete summarizes gaps for the read-only validation pass.
type Incomplete struct {
	Total          int
	MissingPhone   int
	MissingWebsite int
	MissingContent int
}

// RecordRepository persists business records. UpdateFields has coalesce
// semantics (nil field pointers leave stored values untouched) and
// MergeContent is non-destructive, so every write path is safe to re-run.
type RecordRepository interface {
	// FindBySlugAndCity returns the record for a dedup key or ErrNotFound.
	FindBySlugAndCity(ctx context.Context, slug, cityID string) (*listing.BusinessRecord, error)
	// Insert creates a new record and returns its id.
	Insert(ctx context.Context, rec *listing.BusinessRecord) (int64, error)
	// UpdateFields applies a coalesce-style scalar update.
	UpdateFields(ctx context.Context, id int64, upd listing.FieldUpdate) error
	// MergeContent deep-merges content and unions flags for one record.
	MergeContent(ctx context.Context, id int64, content listing.Content, flags []string, lim listing.ReviewLimits) error
	// SelectIncomplete returns up to limit records with id > cursor matching
	// the filter, in cursor order (or correlation-id-preferred order).
	SelectIncomplete(ctx context.Context, f Filter, cursor int64, limit int) ([]listing.BusinessRecord, error)
	// CountIncomplete reports gap counts for a country.
	CountIncomplete(ctx context.Context, country string, minDescChars int) (Incomplete, error)
}
