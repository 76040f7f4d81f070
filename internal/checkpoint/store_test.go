package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	doc := NewDiscovery("nl", "barbershop")
	doc.Discovery.UnitsTotal = 3
	doc.MarkUnitDone("ams")
	doc.LogError(ErrorEntry{Unit: "rtm", Message: "provider unreachable"})
	require.NoError(t, store.Save(doc))

	loaded, err := store.Load(Key(StageDiscovery, "nl", "barbershop"))
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, []string{"ams"}, loaded.CompletedUnits)
	require.Equal(t, 1, loaded.Discovery.UnitsDone)
	require.Len(t, loaded.Errors, 1)
	require.False(t, loaded.Errors[0].At.IsZero())
	require.False(t, loaded.UpdatedAt.IsZero())
}

func TestLoadAbsentIsNotAnError(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	doc, err := store.Load(Key(StageContent, "nl", ""))
	require.NoError(t, err)
	require.Nil(t, doc)
}

func TestArchivePreservesContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	doc := NewEnrichment(StageDataset, "nl")
	doc.Advance(42)
	require.NoError(t, store.Save(doc))
	require.NoError(t, store.Archive(StageDataset, "nl", ""))

	// Gone from the active namespace.
	live, err := store.Load(Key(StageDataset, "nl", ""))
	require.NoError(t, err)
	require.Nil(t, live)

	// Present in the archive with content intact.
	archived, err := filepath.Glob(filepath.Join(dir, "archive", "enrichment_nl_*.json"))
	require.NoError(t, err)
	require.Len(t, archived, 1)
	data, err := os.ReadFile(archived[0])
	require.NoError(t, err)
	require.Contains(t, string(data), `"last_processed_id": 42`)
}

func TestArchiveMissingDocumentFails(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	err = store.Archive(StageDiscovery, "nl", "florist")
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
}

func TestListActiveSorted(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(NewEnrichment(StageContent, "nl")))
	require.NoError(t, store.Save(NewDiscovery("nl", "barbershop")))

	keys, err := store.ListActive()
	require.NoError(t, err)
	require.Equal(t, []string{"content_nl", "discovery_nl_barbershop"}, keys)

	// Every listed key resolves to its document.
	for _, key := range keys {
		doc, err := store.Load(key)
		require.NoError(t, err)
		require.NotNil(t, doc)
		require.Equal(t, key, doc.Key())
	}
}

func TestCursorMonotonic(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	doc := NewEnrichment(StageContent, "nl")
	last := int64(0)
	for _, id := range []int64{10, 25, 17, 25, 40} {
		doc.Advance(id)
		require.GreaterOrEqual(t, doc.LastProcessedID, last)
		last = doc.LastProcessedID
		require.NoError(t, store.Save(doc))

		// Simulated restart: reload and keep advancing.
		doc, err = store.Load(Key(StageContent, "nl", ""))
		require.NoError(t, err)
	}
	require.Equal(t, int64(40), doc.LastProcessedID)
}

func TestSaveStampsUpdatedAt(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	doc := NewDiscovery("nl", "florist")
	doc.UpdatedAt = time.Time{}
	require.NoError(t, store.Save(doc))
	require.False(t, doc.UpdatedAt.IsZero())
}
