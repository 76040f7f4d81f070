// Package dataset wraps the asynchronous batch dataset-collection API: one
// submit, a bounded poll loop, one fetch.
package dataset

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
const ProviderName = "dataset"

// Status is a collection job's reported state.
type Status string

// Job states returned by the provider.
const (
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// Input is one addressable request inside a collection job: the best
// available identifier for one business record.
type Input struct {
	RecordID   int64  `json:"-"`
	PlaceRef   string `json:"place_id,omitempty"`
	DatasetRef string `json:"dataset_id,omitempty"`
	Query      string `json:"query,omitempty"`
}

// Config parameterizes the client.
type Config struct {
	BaseURL      string
	APIKey       string
	DatasetID    string
	PollInterval time.Duration
	PollBudget   time.Duration
}

// Client drives the submit/poll/fetch protocol.
type Client struct {
	cfg    Config
	httpc  *http.Client
	caller *provider.Caller
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewClient builds a dataset client.
func NewClient(cfg Config, caller *provider.Caller, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 60 * time.Second},
		caller: caller,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Submit sends the whole batch in a single request and returns the job id.
func (c *Client) Submit(ctx context.Context, inputs []Input) (string, error) {
	if len(inputs) == 0 {
		return "", fmt.Errorf("dataset submit: empty batch")
	}
	payload, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("marshal dataset inputs: %w", err)
	}

	var jobID string
	err = c.caller.Do(ctx, ProviderName, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/trigger?dataset_id=%s", c.cfg.BaseURL, c.cfg.DatasetID)
		body, err := c.request(ctx, http.MethodPost, url, payload)
		if err != nil {
			return err
		}
		var resp struct {
			SnapshotID string `json:"snapshot_id"`
			JobID      string `json:"job_id"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode submit response: %w", err)
		}
		jobID = resp.SnapshotID
		if jobID == "" {
			jobID = resp.JobID
		}
		if jobID == "" {
			return fmt.Errorf("submit response missing job id")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	c.logger.Info("dataset batch submitted", zap.String("job_id", jobID), zap.Int("inputs", len(inputs)))
	return jobID, nil
}

// PollStatus asks the provider for the job state once.
func (c *Client) PollStatus(ctx context.Context, jobID string) (Status, error) {
	var status Status
	err := c.caller.Do(ctx, ProviderName, func(ctx context.Context) error {
		body, err := c.request(ctx, http.MethodGet, c.cfg.BaseURL+"/progress/"+jobID, nil)
		if err != nil {
			return err
		}
		var resp struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode progress response: %w", err)
		}
		switch strings.ToLower(resp.Status) {
		case "ready", "done", "complete":
			status = StatusReady
		case "failed", "error":
			status = StatusFailed
		default:
			status = StatusPending
		}
		return nil
	})
	return status, err
}

// FetchResults downloads the job payload and decodes it into the typed sum.
func (c *Client) FetchResults(ctx context.Context, jobID string) (Decoded, error) {
	var body []byte
	err := c.caller.Do(ctx, ProviderName, func(ctx context.Context) error {
		var err error
		body, err = c.request(ctx, http.MethodGet, c.cfg.BaseURL+"/snapshot/"+jobID, nil)
		return err
	})
	if err != nil {
		return Decoded{Kind: KindMalformed}, err
	}
	return Decode(body), nil
}

// Collect runs the whole protocol for one batch: submit, poll up to the
// budget, fetch. On "failed" or budget exhaustion it returns with zero
// results and no state written anywhere, so the caller may retry the batch
// later.
func (c *Client) Collect(ctx context.Context, inputs []Input) ([]Result, error) {
	jobID, err := c.Submit(ctx, inputs)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.cfg.PollBudget)
	for {
		status, err := c.PollStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch status {
		case StatusReady:
			return c.fetchList(ctx, jobID)
		case StatusFailed:
			return nil, &provider.Error{Provider: ProviderName, Attempts: 1,
				Err: fmt.Errorf("collection job %s failed", jobID)}
		}
		if time.Now().After(deadline) {
			return nil, &provider.TimeoutError{Provider: ProviderName, Budget: c.cfg.PollBudget}
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
}

func (c *Client) fetchList(ctx context.Context, jobID string) ([]Result, error) {
	decoded, err := c.FetchResults(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch decoded.Kind {
	case KindList:
		return decoded.Results, nil
	case KindEmpty:
		return nil, nil
	default:
		return nil, &provider.ValidationError{Reason: "dataset payload has unrecognized shape"}
	}
}

func (c *Client) request(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataset request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("dataset error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read dataset response: %w", err)
	}
	return data, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
