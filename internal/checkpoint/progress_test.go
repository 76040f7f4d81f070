package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		stage    Stage
		country  string
		category string
		key      string
	}{
		{StageDiscovery, "nl", "barbers", "discovery_nl_barbers"},
		{StageDiscovery, "nl", "nail-salons", "discovery_nl_nail-salons"},
		{StageDataset, "nl", "", "enrichment_nl"},
		{StageContent, "be", "", "content_be"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			require.Equal(t, tc.key, Key(tc.stage, tc.country, tc.category))

			stage, country, category, ok := ParseKey(tc.key)
			require.True(t, ok)
			require.Equal(t, tc.stage, stage)
			require.Equal(t, tc.country, country)
			require.Equal(t, tc.category, category)
		})
	}
}

func TestParseKeyRejectsUnknown(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"", "discovery", "bogus_nl", "nl_barbers"} {
		_, _, _, ok := ParseKey(key)
		require.False(t, ok, key)
	}
}

func TestMarkUnitDoneIsIdempotent(t *testing.T) {
	t.Parallel()

	doc := NewDiscovery("nl", "barbers")
	doc.MarkUnitDone("amsterdam")
	doc.MarkUnitDone("amsterdam")
	require.Equal(t, []string{"amsterdam"}, doc.CompletedUnits)
	require.Equal(t, 1, doc.Discovery.UnitsDone)
	require.True(t, doc.UnitCompleted("amsterdam"))
	require.False(t, doc.UnitCompleted("utrecht"))
}

func TestAdvanceIsMonotonic(t *testing.T) {
	t.Parallel()

	doc := NewEnrichment(StageDataset, "nl")
	doc.Advance(10)
	doc.Advance(4)
	require.Equal(t, int64(10), doc.LastProcessedID)
	doc.Advance(11)
	require.Equal(t, int64(11), doc.LastProcessedID)
}

func TestLogErrorStampsTime(t *testing.T) {
	t.Parallel()

	doc := NewDiscovery("nl", "barbers")
	doc.LogError(ErrorEntry{Message: "boom"})
	require.Len(t, doc.Errors, 1)
	require.False(t, doc.Errors[0].At.IsZero())
}
