package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlasdir/placepipe/internal/listing"
)

func seedMemory(t *testing.T, m *Memory, recs ...listing.BusinessRecord) {
	t.Helper()
	for i := range recs {
		_, err := m.Insert(context.Background(), &recs[i])
		require.NoError(t, err)
	}
}

func TestMemorySelectIncompleteCursorAndFilter(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	seedMemory(t, m,
		listing.BusinessRecord{CountryCode: "nl", Slug: "a", CityID: "ams"},
		listing.BusinessRecord{CountryCode: "nl", Slug: "b", CityID: "ams", Flags: []string{listing.FlagDatasetEnriched}},
		listing.BusinessRecord{CountryCode: "be", Slug: "c", CityID: "bru"},
		listing.BusinessRecord{CountryCode: "nl", Slug: "d", CityID: "utr"},
	)

	got, err := m.SelectIncomplete(context.Background(), Filter{Country: "nl", MissingDataset: true}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Slug)
	require.Equal(t, "d", got[1].Slug)

	// Resume past the first id.
	got, err = m.SelectIncomplete(context.Background(), Filter{Country: "nl", MissingDataset: true}, got[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "d", got[0].Slug)
}

func TestMemorySelectIncompletePrefersPlaceRef(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	seedMemory(t, m,
		listing.BusinessRecord{CountryCode: "nl", Slug: "no-ref", CityID: "ams"},
		listing.BusinessRecord{CountryCode: "nl", Slug: "with-ref", CityID: "ams", PlaceRef: "cid-9"},
	)

	got, err := m.SelectIncomplete(context.Background(), Filter{Country: "nl", PreferPlaceRef: true}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "with-ref", got[0].Slug)
}

func TestMemoryUpdateFieldsDoesNotNullOut(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	phone := "+31 20 555"
	seedMemory(t, m, listing.BusinessRecord{CountryCode: "nl", Slug: "a", CityID: "ams", Phone: &phone})

	site := "https://example.nl"
	require.NoError(t, m.UpdateFields(context.Background(), 1, listing.FieldUpdate{Website: &site}))

	rec, ok := m.Get(1)
	require.True(t, ok)
	require.NotNil(t, rec.Phone)
	require.Equal(t, "+31 20 555", *rec.Phone)
	require.Equal(t, "https://example.nl", *rec.Website)
}

func TestMemoryMergeContentUnionsFlags(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	seedMemory(t, m, listing.BusinessRecord{
		CountryCode: "nl", Slug: "a", CityID: "ams",
		Content: listing.Content{Highlights: []string{"parking"}},
		Flags:   []string{listing.FlagDatasetEnriched},
	})

	err := m.MergeContent(context.Background(), 1,
		listing.Content{Description: "Fresh copy about the shop.", Highlights: []string{"wifi"}},
		[]string{listing.FlagContentGenerated},
		listing.ReviewLimits{Max: 5, MaxChars: 600, MinChars: 20})
	require.NoError(t, err)

	rec, ok := m.Get(1)
	require.True(t, ok)
	require.Equal(t, []string{"parking", "wifi"}, rec.Content.Highlights)
	require.Equal(t, []string{listing.FlagDatasetEnriched, listing.FlagContentGenerated}, rec.Flags)
}

func TestMemoryCountIncomplete(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	phone := "+31 20 555"
	seedMemory(t, m,
		listing.BusinessRecord{CountryCode: "nl", Slug: "a", CityID: "ams", Phone: &phone},
		listing.BusinessRecord{CountryCode: "nl", Slug: "b", CityID: "ams"},
	)

	inc, err := m.CountIncomplete(context.Background(), "nl", 80)
	require.NoError(t, err)
	require.Equal(t, Incomplete{Total: 2, MissingPhone: 1, MissingWebsite: 2, MissingContent: 2}, inc)
}
