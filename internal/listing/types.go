// Package listing defines the core business-record model shared by every
// pipeline stage, plus the slug and merge rules that keep repeated runs
// idempotent.
package listing

import "time"

// Quality flags attached to records as enrichment progresses. Flags are
// additive: stages union new flags in, they never replace the set.
const (
	FlagDatasetEnriched  = "dataset_enriched"
	FlagRatingConfirmed  = "rating_confirmed_dataset"
	FlagContentGenerated = "content_generated"
)

// BusinessRecord is a single directory listing. Discovery creates it with
// minimal fields; the enrichment engines fill gaps in place and must only
// touch fields they own.
type BusinessRecord struct {
	ID          int64
	Slug        string
	CityID      string
	CountryCode string
	Category    string

	Name    string
	Address *string
	Phone   *string
	Website *string
	Lat     *float64
	Lng     *float64

	Rating      *float64
	ReviewCount *int

	// PlaceRef is the search provider's correlation id; DatasetRef is the
	// dataset provider's id. Either may be empty, in which case matching
	// falls back to name comparison.
	PlaceRef   string
	DatasetRef string

	Content Content
	Flags   []string

	Source    string
	RunID     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Content is the free-form structured payload built up by the enrichment
// engines. Merging is non-destructive: see MergeContent.
type Content struct {
	Description     string            `json:"description,omitempty"`
	ScrapedDesc     string            `json:"scraped_desc,omitempty"`
	MetaDescription string            `json:"meta_description,omitempty"`
	Audience        string            `json:"audience,omitempty"`
	Highlights      []string          `json:"highlights,omitempty"`
	Services        []string          `json:"services,omitempty"`
	Hours           map[string]string `json:"hours,omitempty"`
	Reviews         []Review          `json:"reviews,omitempty"`
}

// Review is a third-party review carried inside the content blob.
type Review struct {
	Author string  `json:"author,omitempty"`
	Text   string  `json:"text"`
	Rating float64 `json:"rating,omitempty"`
}

// FieldUpdate carries scalar field values for a coalesce-style update: nil
// pointers leave the stored value untouched.
type FieldUpdate struct {
	Address     *string
	Phone       *string
	Website     *string
	Rating      *float64
	ReviewCount *int
	DatasetRef  *string
}

// Empty reports whether the update would change nothing.
func (u FieldUpdate) Empty() bool {
	return u.Address == nil && u.Phone == nil && u.Website == nil &&
		u.Rating == nil && u.ReviewCount == nil && u.DatasetRef == nil
}

// HasContent reports whether the record passes the content completeness
// predicate for the given minimum description length.
func (r *BusinessRecord) HasContent(minDescChars int) bool {
	return len(r.Content.Description) >= minDescChars
}
