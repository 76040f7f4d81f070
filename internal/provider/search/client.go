// Package search wraps the external local-search API used by discovery.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlasdir/placepipe/internal/provider"
)

// ProviderName keys the pacer/retry settings for this provider.
const ProviderName = "search"

// Client issues local-search queries through the shared retrying caller.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	caller  *provider.Caller
	logger  *zap.Logger
}

// NewClient builds a search client.
func NewClient(baseURL, apiKey string, caller *provider.Caller, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		caller:  caller,
		logger:  logger,
	}
}

// Search runs one query against the provider for a geographic unit and
// language and returns normalized results. Results without a name are
// discarded during normalization.
func (c *Client) Search(ctx context.Context, query, unitName, language string, limit int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query+" "+unitName)
	params.Set("hl", language)
	params.Set("num", strconv.Itoa(limit))

	var raw []map[string]any
	err := c.caller.Do(ctx, ProviderName, func(ctx context.Context) error {
		body, err := c.get(ctx, params)
		if err != nil {
			return err
		}
		raw, err = decodeEnvelope(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	results := Normalize(raw)
	c.logger.Debug("search results",
		zap.String("query", query),
		zap.String("unit", unitName),
		zap.String("language", language),
		zap.Int("raw", len(raw)),
		zap.Int("normalized", len(results)),
	)
	return results, nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	return body, nil
}

// decodeEnvelope tolerates the provider's envelope variants: a bare array,
// or an object wrapping the array under one of several keys.
func decodeEnvelope(body []byte) ([]map[string]any, error) {
	var asArray []map[string]any
	if err := json.Unmarshal(body, &asArray); err == nil {
		return asArray, nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(body, &asObject); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	for _, key := range []string{"results", "local_results", "places", "data"} {
		rawList, ok := asObject[key]
		if !ok {
			continue
		}
		var list []map[string]any
		if err := json.Unmarshal(rawList, &list); err != nil {
			return nil, fmt.Errorf("decode search %s: %w", key, err)
		}
		return list, nil
	}
	return nil, nil
}
