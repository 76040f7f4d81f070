package dataset

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atlasdir/placepipe/internal/provider"
)

func newFakeServer(t *testing.T, status string, payload any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/trigger"):
			require.Equal(t, "biz-profiles", r.URL.Query().Get("dataset_id"))
			json.NewEncoder(w).Encode(map[string]string{"snapshot_id": "snap-1"})
		case strings.HasPrefix(r.URL.Path, "/progress/"):
			json.NewEncoder(w).Encode(map[string]string{"status": status})
		case strings.HasPrefix(r.URL.Path, "/snapshot/"):
			json.NewEncoder(w).Encode(payload)
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestClient(baseURL string) *Client {
	caller := provider.NewCaller(map[string]provider.Settings{
		ProviderName: {MaxRetries: 0},
	}, nil)
	c := NewClient(Config{
		BaseURL:      baseURL,
		APIKey:       "key",
		DatasetID:    "biz-profiles",
		PollInterval: 2 * time.Millisecond,
		PollBudget:   40 * time.Millisecond,
	}, caller, nil)
	return c
}

func TestCollectReady(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, "ready", []map[string]any{
		{"name": "Kapsalon Jansen", "place_id": "cid-1", "phone": "+3120"},
	})
	defer srv.Close()

	got, err := newTestClient(srv.URL).Collect(context.Background(), []Input{{RecordID: 1, PlaceRef: "cid-1"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Kapsalon Jansen", got[0].Name)
	require.Equal(t, "cid-1", got[0].PlaceRef)
}

func TestCollectFailedJobAborts(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, "failed", nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL).Collect(context.Background(), []Input{{RecordID: 1, Query: "x"}})
	var perr *provider.Error
	require.ErrorAs(t, err, &perr)
}

func TestCollectPollBudgetExhausted(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, "running", nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL).Collect(context.Background(), []Input{{RecordID: 1, Query: "x"}})
	var terr *provider.TimeoutError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, ProviderName, terr.Provider)
}

func TestCollectEmptyBatchRejected(t *testing.T) {
	t.Parallel()

	_, err := newTestClient("http://unused.invalid").Collect(context.Background(), nil)
	require.Error(t, err)
}

func TestDecodeShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		body     string
		kind     Kind
		expected int
	}{
		{"bare array", `[{"name":"a"},{"name":"b"}]`, KindList, 2},
		{"wrapped object", `{"results":[{"name":"a"}]}`, KindList, 1},
		{"single object", `{"name":"solo","place_id":"p1"}`, KindList, 1},
		{"empty array", `[]`, KindEmpty, 0},
		{"empty wrapped", `{"items":[]}`, KindEmpty, 0},
		{"garbage", `"nope"`, KindMalformed, 0},
		{"unknown object", `{"foo":"bar"}`, KindMalformed, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decode([]byte(tc.body))
			require.Equal(t, tc.kind, got.Kind)
			require.Len(t, got.Results, tc.expected)
		})
	}
}
