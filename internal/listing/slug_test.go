package listing

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Blue Bottle Coffee", "blue-bottle-coffee"},
		{"diacritics", "Café Über Straße", "cafe-uber-strasse"},
		{"punctuation", "Joe's Pizza & Grill!!", "joe-s-pizza-grill"},
		{"collapsed separators", "A  --  B", "a-b"},
		{"leading trailing junk", "  ***Salon*** ", "salon"},
		{"numbers kept", "24/7 Gym", "24-7-gym"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Slugify(tc.in); got != tc.want {
				t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSlugifyDeterministicAndBounded(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("patisserie ", 30)
	first := Slugify(long)
	if len(first) > maxSlugLen {
		t.Fatalf("slug length %d exceeds %d", len(first), maxSlugLen)
	}
	if strings.HasSuffix(first, "-") {
		t.Fatalf("slug %q has trailing hyphen", first)
	}
	if second := Slugify(long); second != first {
		t.Fatalf("slug not deterministic: %q vs %q", first, second)
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	if got := NormalizeName("Chez  Léon!"); got != "chez leon" {
		t.Errorf("NormalizeName = %q, want %q", got, "chez leon")
	}
}
