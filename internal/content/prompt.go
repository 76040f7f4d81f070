package content

import (
	"fmt"
	"strings"

	"github.com/atlasdir/placepipe/internal/listing"
)

// Prompt inputs are bounded so one record with a huge scraped blob cannot
// blow the model context.
const (
	maxPromptDescChars = 500
	maxPromptItems     = 6
)

// buildPrompt renders the generation prompt for one record. Only data the
// pipeline actually holds goes in; the model is told the target language
// and gets the scraped description as grounding material when present.
func buildPrompt(rec *listing.BusinessRecord, categoryName, cityName, countryName, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write directory copy in language %q for this business.\n", language)
	fmt.Fprintf(&b, "Name: %s\n", rec.Name)
	if categoryName != "" {
		fmt.Fprintf(&b, "Category: %s\n", categoryName)
	}
	fmt.Fprintf(&b, "Location: %s, %s\n", cityName, countryName)
	if rec.Address != nil {
		fmt.Fprintf(&b, "Address: %s\n", *rec.Address)
	}
	if rec.Website != nil {
		fmt.Fprintf(&b, "Website: %s\n", *rec.Website)
	}
	if rec.Rating != nil && rec.ReviewCount != nil {
		fmt.Fprintf(&b, "Rating: %.1f from %d reviews\n", *rec.Rating, *rec.ReviewCount)
	}
	if desc := truncateRunes(strings.TrimSpace(rec.Content.ScrapedDesc), maxPromptDescChars); desc != "" {
		fmt.Fprintf(&b, "Existing description: %s\n", desc)
	}
	if items := capItems(rec.Content.Services); len(items) > 0 {
		fmt.Fprintf(&b, "Known services: %s\n", strings.Join(items, "; "))
	}
	if items := capItems(rec.Content.Highlights); len(items) > 0 {
		fmt.Fprintf(&b, "Known highlights: %s\n", strings.Join(items, "; "))
	}
	if len(rec.Content.Hours) > 0 {
		fmt.Fprintf(&b, "Opening hours are known.\n")
	}
	return b.String()
}

func capItems(items []string) []string {
	if len(items) <= maxPromptItems {
		return items
	}
	return items[:maxPromptItems]
}

func truncateRunes(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
