package search

import "strings"

// Result is the canonical search result shape after normalization.
type Result struct {
	Name        string
	Address     string
	Phone       string
	Website     string
	Category    string
	ExternalID  string
	Rating      float64
	ReviewCount int
	Lat         float64
	Lng         float64
}

// Normalize maps the provider's heterogeneous field naming onto the
// canonical Result. The provider is inconsistent across verticals and
// regions, so each field probes a list of known aliases in preference
// order. Results missing a name are discarded.
func Normalize(raw []map[string]any) []Result {
	out := make([]Result, 0, len(raw))
	for _, item := range raw {
		name := strings.TrimSpace(firstString(item, "name", "title", "business_name"))
		if name == "" {
			continue
		}
		r := Result{
			Name:        name,
			Address:     firstString(item, "address", "full_address", "formatted_address"),
			Phone:       firstString(item, "phone", "phone_number", "international_phone_number"),
			Website:     firstString(item, "website", "site", "url"),
			Category:    firstString(item, "category", "type", "main_category"),
			ExternalID:  firstString(item, "place_id", "cid", "data_id"),
			Rating:      firstFloat(item, "rating", "stars"),
			ReviewCount: int(firstFloat(item, "reviews", "review_count", "user_ratings_total")),
		}
		r.Lat, r.Lng = coordinates(item)
		out = append(out, r)
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return 0
}

func coordinates(m map[string]any) (float64, float64) {
	if gps, ok := m["gps_coordinates"].(map[string]any); ok {
		return firstFloat(gps, "latitude", "lat"), firstFloat(gps, "longitude", "lng")
	}
	return firstFloat(m, "latitude", "lat"), firstFloat(m, "longitude", "lng")
}
