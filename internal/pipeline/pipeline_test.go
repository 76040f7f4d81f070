package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlasdir/placepipe/internal/checkpoint"
	"github.com/atlasdir/placepipe/internal/content"
	"github.com/atlasdir/placepipe/internal/discovery"
	"github.com/atlasdir/placepipe/internal/enrich"
	"github.com/atlasdir/placepipe/internal/listing"
	"github.com/atlasdir/placepipe/internal/provider/dataset"
	"github.com/atlasdir/placepipe/internal/provider/genai"
	"github.com/atlasdir/placepipe/internal/provider/search"
	"github.com/atlasdir/placepipe/internal/refdata"
	"github.com/atlasdir/placepipe/internal/repository"
)

type stubSearcher struct {
	results []search.Result
}

func (s *stubSearcher) Search(_ context.Context, _, _, _ string, _ int) ([]search.Result, error) {
	return s.results, nil
}

type stubCollector struct {
	calls int
}

func (s *stubCollector) Collect(_ context.Context, inputs []dataset.Input) ([]dataset.Result, error) {
	s.calls++
	phone := "+31 20 123"
	out := make([]dataset.Result, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, dataset.Result{PlaceRef: in.PlaceRef, Name: "Kapsalon Jansen", Phone: &phone})
	}
	return out, nil
}

type stubGenerator struct {
	calls int
}

func (s *stubGenerator) Generate(_ context.Context, _ string) (*genai.Generated, error) {
	s.calls++
	return &genai.Generated{
		Description: strings.Repeat("Welcoming barbershop in the heart of the city. ", 3),
	}, nil
}

func testCatalog(t *testing.T) *refdata.Catalog {
	t.Helper()
	dir := t.TempDir()
	countries := `countries:
  - code: nl
    name: Netherlands
    languages: [nl]
    cities:
      - id: amsterdam
        name: Amsterdam
        slug: amsterdam
`
	categories := `categories:
  - slug: barbers
    name: Barbers
    queries:
      nl: kapper
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "countries.yaml"), []byte(countries), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "categories.yaml"), []byte(categories), 0o600))
	catalog, err := refdata.Load(dir)
	require.NoError(t, err)
	return catalog
}

const minDesc = 80

func newTestOrchestrator(t *testing.T) (*Orchestrator, *repository.Memory, *checkpoint.Store, *stubCollector, *stubGenerator) {
	t.Helper()
	store, err := checkpoint.NewStore(t.TempDir())
	require.NoError(t, err)
	repo := repository.NewMemory()
	catalog := testCatalog(t)
	limits := listing.ReviewLimits{Max: 5, MaxChars: 600, MinChars: 20}

	searcher := &stubSearcher{results: []search.Result{
		{Name: "Kapsalon Jansen", ExternalID: "cid-1"},
	}}
	collector := &stubCollector{}
	generator := &stubGenerator{}

	d := discovery.New(searcher, repo, store, catalog, nil)
	e := enrich.New(collector, repo, store, catalog, limits, nil)
	c := content.New(generator, repo, store, catalog, limits, minDesc, nil)
	return New(d, e, c, repo, store, catalog, minDesc, nil), repo, store, collector, generator
}

func TestRunFullEndToEnd(t *testing.T) {
	t.Parallel()

	orch, repo, store, collector, generator := newTestOrchestrator(t)

	err := orch.RunFull(context.Background(), RunOptions{
		Country:      "nl",
		SearchLimit:  20,
		DatasetBatch: 25,
		ContentBatch: 50,
	})
	require.NoError(t, err)
	require.Equal(t, 1, repo.Len())
	require.Equal(t, 1, collector.calls)
	require.Equal(t, 1, generator.calls)

	rec, ok := repo.Get(1)
	require.True(t, ok)
	require.NotNil(t, rec.Phone)
	require.True(t, rec.HasContent(minDesc))
	require.Contains(t, rec.Flags, listing.FlagDatasetEnriched)
	require.Contains(t, rec.Flags, listing.FlagContentGenerated)

	// Every stage completed, so nothing is left to resume.
	keys, err := store.ListActive()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestRunFullContinuesPastFailedCategory(t *testing.T) {
	t.Parallel()

	orch, repo, _, _, _ := newTestOrchestrator(t)

	err := orch.RunFull(context.Background(), RunOptions{
		Country:      "nl",
		Categories:   []string{"nonexistent", "barbers"},
		SearchLimit:  20,
		DatasetBatch: 25,
		ContentBatch: 50,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "nonexistent")
	// The good category still ran end to end.
	require.Equal(t, 1, repo.Len())
}

func TestRunFullIsIdempotent(t *testing.T) {
	t.Parallel()

	orch, repo, _, collector, generator := newTestOrchestrator(t)
	opts := RunOptions{Country: "nl", SearchLimit: 20, DatasetBatch: 25, ContentBatch: 50}

	require.NoError(t, orch.RunFull(context.Background(), opts))
	require.NoError(t, orch.RunFull(context.Background(), opts))

	require.Equal(t, 1, repo.Len())
	require.Equal(t, 1, collector.calls)
	require.Equal(t, 1, generator.calls)
}

func TestValidateReportsGapsAndHints(t *testing.T) {
	t.Parallel()

	orch, repo, store, _, _ := newTestOrchestrator(t)
	_, err := repo.Insert(context.Background(), &listing.BusinessRecord{
		CountryCode: "nl", CityID: "amsterdam", Slug: "kapsalon-jansen",
		Name: "Kapsalon Jansen", PlaceRef: "cid-1",
	})
	require.NoError(t, err)
	_, err = repo.Insert(context.Background(), &listing.BusinessRecord{
		CountryCode: "nl", CityID: "amsterdam", Slug: "no-ref", Name: "No Ref",
	})
	require.NoError(t, err)

	require.NoError(t, store.Save(checkpoint.NewEnrichment(checkpoint.StageDataset, "nl")))
	require.NoError(t, store.Save(checkpoint.NewDiscovery("nl", "barbers")))

	report, err := orch.Validate(context.Background(), "nl")
	require.NoError(t, err)
	require.Equal(t, 2, report.Incomplete.Total)
	require.Equal(t, 2, report.Incomplete.MissingContent)
	require.Equal(t, []string{"discovery_nl_barbers", "enrichment_nl"}, report.ActiveCheckpoints)
	require.Equal(t, []string{
		"placepipe discover --country nl --category barbers",
		"placepipe enrich --country nl",
	}, report.ResumeHints)
	// Records holding a correlation id come first in the sample.
	require.Equal(t, "kapsalon-jansen", report.Samples[0].Slug)
}

func TestValidateUnknownCountry(t *testing.T) {
	t.Parallel()

	orch, _, _, _, _ := newTestOrchestrator(t)
	_, err := orch.Validate(context.Background(), "xx")
	require.Error(t, err)
}
