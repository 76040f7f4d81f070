package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/atlasdir/placepipe/internal/listing"
)

// Memory is an in-process RecordRepository for tests and dry runs.
type Memory struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*listing.BusinessRecord
}

// NewMemory builds an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{nextID: 1, records: make(map[int64]*listing.BusinessRecord)}
}

func (m *Memory) FindBySlugAndCity(_ context.Context, slug, cityID string) (*listing.BusinessRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if rec.Slug == slug && rec.CityID == cityID {
			return cloneRecord(rec), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Insert(_ context.Context, rec *listing.BusinessRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cloneRecord(rec)
	stored.ID = m.nextID
	m.nextID++
	m.records[stored.ID] = stored
	return stored.ID, nil
}

func (m *Memory) UpdateFields(_ context.Context, id int64, upd listing.FieldUpdate) error {
	if upd.Empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Address = listing.Coalesce(rec.Address, upd.Address)
	rec.Phone = listing.Coalesce(rec.Phone, upd.Phone)
	rec.Website = listing.Coalesce(rec.Website, upd.Website)
	rec.Rating = listing.Coalesce(rec.Rating, upd.Rating)
	rec.ReviewCount = listing.Coalesce(rec.ReviewCount, upd.ReviewCount)
	if upd.DatasetRef != nil {
		rec.DatasetRef = *upd.DatasetRef
	}
	return nil
}

func (m *Memory) MergeContent(_ context.Context, id int64, content listing.Content, flags []string, lim listing.ReviewLimits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Content = listing.MergeContent(rec.Content, content, lim)
	rec.Flags = listing.UnionFlags(rec.Flags, flags)
	return nil
}

func (m *Memory) SelectIncomplete(_ context.Context, f Filter, cursor int64, limit int) ([]listing.BusinessRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []listing.BusinessRecord
	for _, rec := range m.records {
		if rec.ID <= cursor || rec.CountryCode != f.Country {
			continue
		}
		if f.MissingDataset && hasFlag(rec.Flags, listing.FlagDatasetEnriched) {
			continue
		}
		if f.MissingContent && rec.HasContent(f.MinDescChars) {
			continue
		}
		out = append(out, *cloneRecord(rec))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.PreferPlaceRef {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].PlaceRef != "" && out[j].PlaceRef == ""
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CountIncomplete(_ context.Context, country string, minDescChars int) (Incomplete, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var inc Incomplete
	for _, rec := range m.records {
		if rec.CountryCode != country {
			continue
		}
		inc.Total++
		if rec.Phone == nil {
			inc.MissingPhone++
		}
		if rec.Website == nil {
			inc.MissingWebsite++
		}
		if !rec.HasContent(minDescChars) {
			inc.MissingContent++
		}
	}
	return inc, nil
}

// Get returns a copy of one record, for test assertions.
func (m *Memory) Get(id int64) (*listing.BusinessRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, false
	}
	return cloneRecord(rec), true
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

func cloneRecord(rec *listing.BusinessRecord) *listing.BusinessRecord {
	out := *rec
	out.Flags = append([]string(nil), rec.Flags...)
	out.Content.Highlights = append([]string(nil), rec.Content.Highlights...)
	out.Content.Services = append([]string(nil), rec.Content.Services...)
	out.Content.Reviews = append([]listing.Review(nil), rec.Content.Reviews...)
	if rec.Content.Hours != nil {
		out.Content.Hours = make(map[string]string, len(rec.Content.Hours))
		for k, v := range rec.Content.Hours {
			out.Content.Hours[k] = v
		}
	}
	return &out
}
