// Package genai wraps an OpenAI-compatible chat completion endpoint used to
// generate listing narratives.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlasdir/placepipe/internal/provider"
)

// ProviderName keys the pacer/retry settings for this provider.
const ProviderName = "genai"

const systemPrompt = "You write factual, welcoming local-business directory copy. " +
	"Respond with a single JSON object with the keys: description, highlights " +
	"(array of strings), services (array of strings), audience, meta_description. " +
	"Do not invent facts that contradict the provided data."

// Generated is the structured payload expected back from the model.
type Generated struct {
	Description     string   `json:"description"`
	Highlights      []string `json:"highlights"`
	Services        []string `json:"services"`
	Audience        string   `json:"audience"`
	MetaDescription string   `json:"meta_description"`
}

// Client calls the chat completion API through the shared retrying caller.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	httpc    *http.Client
	caller   *provider.Caller
	logger   *zap.Logger
}

// NewClient builds a generation client.
func NewClient(endpoint, model, apiKey string, caller *provider.Caller, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		httpc:    &http.Client{Timeout: 60 * time.Second},
		caller:   caller,
		logger:   logger,
	}
}

// Generate sends the prompt and parses the model's JSON reply. A reply that
// is not valid JSON, or that lacks a description, is a ValidationError so
// the caller can skip the record without burning retries.
func (c *Client) Generate(ctx context.Context, prompt string) (*Generated, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("genai client misconfigured")
	}

	var content string
	err := c.caller.Do(ctx, ProviderName, func(ctx context.Context) error {
		var err error
		content, err = c.complete(ctx, prompt)
		return err
	})
	if err != nil {
		return nil, err
	}

	var out Generated
	if err := json.Unmarshal([]byte(extractJSON(content)), &out); err != nil {
		return nil, &provider.ValidationError{Reason: fmt.Sprintf("model reply is not valid JSON: %v", err)}
	}
	if strings.TrimSpace(out.Description) == "" {
		return nil, &provider.ValidationError{Reason: "model reply missing description"}
	}
	return &out, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// extractJSON tolerates models that wrap the JSON object in prose or code
// fences by slicing from the first '{' to the last '}'.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}
