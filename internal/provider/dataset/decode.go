package dataset

import "encoding/json"

// Kind discriminates the decoded payload shape.
type Kind int

// Payload shapes. Callers must switch on Kind; a Malformed payload carries
// no results and must not be treated as an empty success.
const (
	KindMalformed Kind = iota
	KindEmpty
	KindList
)

// Decoded is the typed sum produced from a raw result payload.
type Decoded struct {
	Kind    Kind
	Results []Result
}

// Review is a third-party review inside a dataset result.
type Review struct {
	Author string  `json:"author"`
	Text   string  `json:"text"`
	Rating float64 `json:"rating"`
}

// Result is one enrichment payload row.
type Result struct {
	PlaceRef    string            `json:"place_id"`
	DatasetRef  string            `json:"input_id"`
	Name        string            `json:"name"`
	Address     *string           `json:"address"`
	Phone       *string           `json:"phone"`
	Rating      *float64          `json:"rating"`
	ReviewCount *int              `json:"reviews_count"`
	Description string            `json:"description"`
	Hours       map[string]string `json:"open_hours"`
	Reviews     []Review          `json:"reviews"`
}

// Decode normalizes the provider's three observed payload shapes (a bare
// array, an object wrapping an array, or a single object) into the typed
// sum. Anything else is Malformed.
func Decode(body []byte) Decoded {
	var asList []Result
	if err := json.Unmarshal(body, &asList); err == nil {
		if len(asList) == 0 {
			return Decoded{Kind: KindEmpty}
		}
		return Decoded{Kind: KindList, Results: asList}
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(body, &asObject); err != nil {
		return Decoded{Kind: KindMalformed}
	}
	for _, key := range []string{"results", "items", "data"} {
		raw, ok := asObject[key]
		if !ok {
			continue
		}
		var list []Result
		if err := json.Unmarshal(raw, &list); err != nil {
			return Decoded{Kind: KindMalformed}
		}
		if len(list) == 0 {
			return Decoded{Kind: KindEmpty}
		}
		return Decoded{Kind: KindList, Results: list}
	}

	// Rarely the provider returns the single result object itself.
	var single Result
	if err := json.Unmarshal(body, &single); err == nil && single.Name != "" {
		return Decoded{Kind: KindList, Results: []Result{single}}
	}
	return Decoded{Kind: KindMalformed}
}
