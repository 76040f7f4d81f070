package enrich

import (
	"strings"

	"github.com/atlasdir/placepipe/internal/listing"
	"github.com/atlasdir/placepipe/internal/provider/dataset"
)

// minContainmentChars guards substring matching: very short normalized
// names ("spa", "bar") appear inside unrelated business names far too
// often to be trusted.
const minContainmentChars = 8

// matchResults correlates dataset results back to the batch records.
// Precedence per record: place ref equality, then dataset ref equality,
// then exact normalized name, then substring containment either way.
// Each result is claimed at most once; the first record to match wins.
func matchResults(records []listing.BusinessRecord, results []dataset.Result) map[int64]*dataset.Result {
	claimed := make([]bool, len(results))
	out := make(map[int64]*dataset.Result, len(records))

	for pass := 0; pass < 4; pass++ {
		for ri := range records {
			rec := &records[ri]
			if _, done := out[rec.ID]; done {
				continue
			}
			for i := range results {
				if claimed[i] {
					continue
				}
				if matchesAt(pass, rec, &results[i]) {
					out[rec.ID] = &results[i]
					claimed[i] = true
					break
				}
			}
		}
	}
	return out
}

func matchesAt(pass int, rec *listing.BusinessRecord, res *dataset.Result) bool {
	switch pass {
	case 0:
		return rec.PlaceRef != "" && rec.PlaceRef == res.PlaceRef
	case 1:
		return rec.DatasetRef != "" && rec.DatasetRef == res.DatasetRef
	case 2:
		a, b := listing.NormalizeName(rec.Name), listing.NormalizeName(res.Name)
		return a != "" && a == b
	case 3:
		a, b := listing.NormalizeName(rec.Name), listing.NormalizeName(res.Name)
		if len(a) < minContainmentChars || len(b) < minContainmentChars {
			return false
		}
		return strings.Contains(a, b) || strings.Contains(b, a)
	}
	return false
}
