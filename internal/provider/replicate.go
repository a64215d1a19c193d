package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/config"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/metrics"
)

// Client invokes the provider's synchronous run endpoint:
// POST {base}/v1/run/{model} with {"input": {...}} and a token header.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

var _ Provider = (*Client)(nil)

func NewClient(cfg config.ProviderConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.APIToken,
		httpc:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Name() string { return "replicate" }

type runRequest struct {
	Input map[string]any `json:"input"`
}

type runResponse struct {
	Output json.RawMessage `json:"output"`
}

func (c *Client) Run(ctx context.Context, req Request) (*Result, error) {
	if c.token == "" {
		return nil, ErrMissingCredentials
	}

	input := make(map[string]any, len(req.Input)+1)
	for k, v := range req.Input {
		input[k] = v
	}
	// The image travels inline as a data URI; the provider fetches nothing
	// from us.
	input["image"] = fmt.Sprintf("data:%s;base64,%s",
		req.ContentType, base64.StdEncoding.EncodeToString(req.Image))

	body, err := json.Marshal(runRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshaling provider request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/run/%s", c.baseURL, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+c.token)
	httpReq.Header.Set("Prefer", "wait")

	start := time.Now()
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling provider: %w", err)
	}
	defer resp.Body.Close()
	metrics.ProviderRequestDuration.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		provErr := BuildError(resp.StatusCode, string(raw))
		slog.Warn("provider call failed",
			"model", req.Model,
			"status", resp.StatusCode,
			"body", provErr.Snippet,
		)
		return nil, provErr
	}

	var run runResponse
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, fmt.Errorf("decoding provider response: %w", err)
	}

	outputURL, err := firstOutputURL(run.Output)
	if err != nil {
		return nil, err
	}

	return c.fetchOutput(ctx, outputURL)
}

// firstOutputURL handles both output shapes the provider uses: a single
// URL string or a list of URLs.
func firstOutputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("provider response has no output")
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0], nil
	}

	return "", fmt.Errorf("provider response has unrecognized output shape")
}

func (c *Client) fetchOutput(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building output fetch: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching provider output: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, BuildError(resp.StatusCode, "")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading provider output: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &Result{Bytes: data, ContentType: contentType}, nil
}
