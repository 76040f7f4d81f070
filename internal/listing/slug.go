package listing

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSlugLen bounds slug length so dedup keys stay index-friendly.
const maxSlugLen = 80

// Case folding expands letters with no combining-mark decomposition, like
// the sharp s, before the ASCII filter sees them. The chain is stateful, so
// each call builds its own.
func deaccent() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
}

// Slugify derives the deterministic dedup slug for a business name:
// lowercase, diacritics stripped, runs of non-alphanumerics collapsed to a
// single hyphen, truncated to maxSlugLen. Two results are duplicates within
// a geographic unit iff their slugs are equal.
func Slugify(name string) string {
	folded, _, err := transform.String(deaccent(), name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	lastHyphen := true // suppress leading hyphen
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

// NormalizeName folds a name for matching: the slug alphabet with spaces
// instead of hyphens, so equality and containment checks ignore case,
// accents and punctuation.
func NormalizeName(name string) string {
	return strings.ReplaceAll(Slugify(name), "-", " ")
}
