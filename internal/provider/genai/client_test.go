package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlasdir/placepipe/internal/provider"
)

func chatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req["model"])
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": reply}},
			},
		})
	}))
}

func newTestClient(url string) *Client {
	caller := provider.NewCaller(map[string]provider.Settings{
		ProviderName: {MaxRetries: 0},
	}, nil)
	return NewClient(url, "test-model", "key", caller, nil)
}

func TestGenerateParsesStructuredReply(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, `{"description":"A cozy barbershop in the old center.",`+
		`"highlights":["walk-ins welcome"],"services":["fade"],`+
		`"audience":"locals","meta_description":"Barbershop in Amsterdam."}`)
	defer srv.Close()

	got, err := newTestClient(srv.URL).Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "A cozy barbershop in the old center.", got.Description)
	require.Equal(t, []string{"walk-ins welcome"}, got.Highlights)
	require.Equal(t, "locals", got.Audience)
}

func TestGenerateToleratesCodeFences(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "```json\n{\"description\":\"Fenced but fine, long enough.\"}\n```")
	defer srv.Close()

	got, err := newTestClient(srv.URL).Generate(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "Fenced but fine, long enough.", got.Description)
}

func TestGenerateRejectsUnstructuredReply(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "Sorry, I cannot help with that.")
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt")
	var verr *provider.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestGenerateRejectsMissingDescription(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, `{"highlights":["but no description"]}`)
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "prompt")
	var verr *provider.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestGenerateMisconfigured(t *testing.T) {
	t.Parallel()

	caller := provider.NewCaller(nil, nil)
	c := NewClient("", "", "", caller, nil)
	_, err := c.Generate(context.Background(), "prompt")
	require.Error(t, err)
}
