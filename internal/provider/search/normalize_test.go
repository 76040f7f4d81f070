package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeFieldAliases(t *testing.T) {
	t.Parallel()

	raw := []map[string]any{
		{
			"title":          "Kapsalon Jansen",
			"full_address":   "Damrak 1, Amsterdam",
			"phone_number":   "+31 20 123 4567",
			"site":           "https://jansen.example",
			"stars":          4.5,
			"review_count":   float64(120),
			"cid":            "cid-123",
			"main_category":  "Barber",
			"gps_coordinates": map[string]any{"latitude": 52.37, "longitude": 4.89},
		},
		{
			"name":    "Plain Name Shop",
			"address": "Coolsingel 2",
			"rating":  3.9,
			"lat":     51.92,
			"lng":     4.48,
		},
	}

	got := Normalize(raw)
	require.Len(t, got, 2)

	first := got[0]
	require.Equal(t, "Kapsalon Jansen", first.Name)
	require.Equal(t, "Damrak 1, Amsterdam", first.Address)
	require.Equal(t, "+31 20 123 4567", first.Phone)
	require.Equal(t, "https://jansen.example", first.Website)
	require.Equal(t, "cid-123", first.ExternalID)
	require.Equal(t, 4.5, first.Rating)
	require.Equal(t, 120, first.ReviewCount)
	require.Equal(t, 52.37, first.Lat)

	second := got[1]
	require.Equal(t, "Plain Name Shop", second.Name)
	require.Equal(t, 51.92, second.Lat)
}

func TestNormalizeDropsNameless(t *testing.T) {
	t.Parallel()

	raw := []map[string]any{
		{"address": "somewhere"},
		{"name": "  "},
		{"name": "Kept"},
	}
	got := Normalize(raw)
	require.Len(t, got, 1)
	require.Equal(t, "Kept", got[0].Name)
}

func TestDecodeEnvelopeVariants(t *testing.T) {
	t.Parallel()

	bare, err := decodeEnvelope([]byte(`[{"name":"a"}]`))
	require.NoError(t, err)
	require.Len(t, bare, 1)

	wrapped, err := decodeEnvelope([]byte(`{"local_results":[{"name":"a"},{"name":"b"}]}`))
	require.NoError(t, err)
	require.Len(t, wrapped, 2)

	empty, err := decodeEnvelope([]byte(`{"search_metadata":{}}`))
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = decodeEnvelope([]byte(`"just a string"`))
	require.Error(t, err)
}
