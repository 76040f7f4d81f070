package listing

import (
	"strings"
	"unicode/utf8"
)

// ReviewLimits bounds review retention during a content merge.
type ReviewLimits struct {
	Max      int
	MaxChars int
	MinChars int
}

// Coalesce returns incoming when it carries a value, otherwise existing.
// This is the only write discipline the enrichment engines are allowed to
// use for scalar fields: re-running a merge can never null out good data.
func Coalesce[T any](existing, incoming *T) *T {
	if incoming != nil {
		return incoming
	}
	return existing
}

// UnionFlags appends the incoming flags not already present, preserving the
// existing order. Never removes a flag.
func UnionFlags(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, f := range existing {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	for _, f := range incoming {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// MergeContent deep-merges src into dst non-destructively: string fields are
// filled only when dst's field is empty or src explicitly provides a value
// the run owns, new hours keys are added without touching existing ones, and
// reviews are unioned then clamped by lim. dst is not mutated.
func MergeContent(dst, src Content, lim ReviewLimits) Content {
	out := dst

	if src.Description != "" {
		out.Description = src.Description
	}
	if src.ScrapedDesc != "" && out.ScrapedDesc == "" {
		out.ScrapedDesc = src.ScrapedDesc
	}
	if src.MetaDescription != "" {
		out.MetaDescription = src.MetaDescription
	}
	if src.Audience != "" {
		out.Audience = src.Audience
	}
	if len(src.Highlights) > 0 {
		out.Highlights = unionStrings(dst.Highlights, src.Highlights)
	}
	if len(src.Services) > 0 {
		out.Services = unionStrings(dst.Services, src.Services)
	}
	if len(src.Hours) > 0 {
		merged := make(map[string]string, len(dst.Hours)+len(src.Hours))
		for k, v := range dst.Hours {
			merged[k] = v
		}
		for k, v := range src.Hours {
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}
		out.Hours = merged
	}
	out.Reviews = ClampReviews(append(append([]Review(nil), dst.Reviews...), src.Reviews...), lim)

	return out
}

// ClampReviews enforces the retention rules: reviews shorter than MinChars
// are dropped, text is truncated to MaxChars at a rune boundary, duplicates
// (by truncated text) are removed, and at most Max reviews survive in input
// order. Running it twice is a no-op.
func ClampReviews(reviews []Review, lim ReviewLimits) []Review {
	if len(reviews) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(reviews))
	out := make([]Review, 0, min(len(reviews), lim.Max))
	for _, rv := range reviews {
		text := strings.TrimSpace(rv.Text)
		// MinChars and MaxChars both count runes, not bytes.
		if utf8.RuneCountInString(text) < lim.MinChars {
			continue
		}
		text = truncateRunes(text, lim.MaxChars)
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		rv.Text = text
		out = append(out, rv)
		if len(out) == lim.Max {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func unionStrings(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, s := range existing {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range incoming {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func truncateRunes(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
