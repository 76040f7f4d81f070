// Package checkpoint persists typed progress documents so multi-hour,
// rate-limited jobs can be killed and resumed without redoing or
// double-inserting work.
package checkpoint

import (
	"fmt"
	"strings"
	"time"
)

// Stage identifies which pipeline stage owns a progress document.
type Stage string

// Pipeline stages with their own checkpoints.
const (
	StageDiscovery Stage = "discovery"
	StageDataset   Stage = "enrichment"
	StageContent   Stage = "content"
)

// ErrorEntry is one append-only error log line inside a progress document.
type ErrorEntry struct {
	Unit       string    `json:"unit,omitempty"`
	RecordID   int64     `json:"record_id,omitempty"`
	RecordName string    `json:"record_name,omitempty"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}

// DiscoveryCounters aggregates discovery outcomes.
type DiscoveryCounters struct {
	UnitsTotal int `json:"units_total"`
	UnitsDone  int `json:"units_done"`
	Found      int `json:"found"`
	Created    int `json:"created"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

// EnrichmentCounters aggregates enrichment outcomes.
type EnrichmentCounters struct {
	ToProcess int `json:"to_process"`
	Processed int `json:"processed"`
	Enriched  int `json:"enriched"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Document is a progress checkpoint: a tagged union whose variant is
// selected by Stage. Discovery documents track completed geographic units;
// enrichment documents track a monotonic id cursor.
type Document struct {
	Stage    Stage  `json:"stage"`
	Country  string `json:"country"`
	Category string `json:"category,omitempty"`

	// Discovery variant.
	CompletedUnits []string           `json:"completed_units,omitempty"`
	CurrentUnit    string             `json:"current_unit,omitempty"`
	Discovery      *DiscoveryCounters `json:"discovery_counters,omitempty"`

	// Enrichment variant.
	LastProcessedID int64               `json:"last_processed_id,omitempty"`
	Enrichment      *EnrichmentCounters `json:"enrichment_counters,omitempty"`

	Errors    []ErrorEntry `json:"errors,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewDiscovery creates a fresh discovery progress document.
func NewDiscovery(country, category string) *Document {
	now := time.Now().UTC()
	return &Document{
		Stage:     StageDiscovery,
		Country:   country,
		Category:  category,
		Discovery: &DiscoveryCounters{},
		StartedAt: now,
		UpdatedAt: now,
	}
}

// NewEnrichment creates a fresh enrichment progress document for the dataset
// or content stage.
func NewEnrichment(stage Stage, country string) *Document {
	now := time.Now().UTC()
	return &Document{
		Stage:      stage,
		Country:    country,
		Enrichment: &EnrichmentCounters{},
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// Key derives the unique checkpoint address for a scope. Derivation is pure:
// the same (stage, country, category) always renders the same key, and the
// underscore separator cannot appear inside the slug inputs.
func Key(stage Stage, country, category string) string {
	if category == "" {
		return fmt.Sprintf("%s_%s", stage, country)
	}
	return fmt.Sprintf("%s_%s_%s", stage, country, category)
}

// Key returns the document's own checkpoint address.
func (d *Document) Key() string {
	return Key(d.Stage, d.Country, d.Category)
}

// ParseKey is the inverse of Key. It reports ok=false for keys that do not
// start with a known stage.
func ParseKey(key string) (stage Stage, country, category string, ok bool) {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) < 2 {
		return "", "", "", false
	}
	switch Stage(parts[0]) {
	case StageDiscovery, StageDataset, StageContent:
		stage = Stage(parts[0])
	default:
		return "", "", "", false
	}
	if len(parts) == 3 {
		return stage, parts[1], parts[2], true
	}
	return stage, parts[1], "", true
}

// UnitCompleted reports whether a geographic unit is already done.
func (d *Document) UnitCompleted(unitID string) bool {
	for _, u := range d.CompletedUnits {
		if u == unitID {
			return true
		}
	}
	return false
}

// MarkUnitDone records a completed geographic unit exactly once.
func (d *Document) MarkUnitDone(unitID string) {
	if d.UnitCompleted(unitID) {
		return
	}
	d.CompletedUnits = append(d.CompletedUnits, unitID)
	d.CurrentUnit = ""
	if d.Discovery != nil {
		d.Discovery.UnitsDone = len(d.CompletedUnits)
	}
}

// Advance moves the enrichment cursor forward. The cursor is monotonic: an
// id at or below the current cursor is ignored.
func (d *Document) Advance(recordID int64) {
	if recordID > d.LastProcessedID {
		d.LastProcessedID = recordID
	}
}

// LogError appends to the error log, stamping the entry time if unset.
func (d *Document) LogError(entry ErrorEntry) {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	d.Errors = append(d.Errors, entry)
}
