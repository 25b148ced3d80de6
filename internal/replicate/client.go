package replicate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/flowcraft/internal/httpclient"
)

const (
	DefaultBaseURL      = "https://api.replicate.com"
	defaultPollInterval = time.Second
)

// Prediction is a Replicate prediction resource.
type Prediction struct {
	ID      string          `json:"id"`
	Version string          `json:"version,omitempty"`
	Status  string          `json:"status"`
	Output  json.RawMessage `json:"output,omitempty"`
	Error   any             `json:"error,omitempty"`
}

// Terminal reports whether p will not change anymore.
func (p Prediction) Terminal() bool {
	switch p.Status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

// Client runs models on Replicate.
type Client struct {
	http         *httpclient.Client
	pollInterval time.Duration
}

// NewClient creates a client against the public Replicate API.
func NewClient(apiKey string, timeout time.Duration) *Client {
	return NewClientWithBaseURL(apiKey, DefaultBaseURL, timeout)
}

// NewClientWithBaseURL creates a client pointing at a custom base URL.
func NewClientWithBaseURL(apiKey, baseURL string, timeout time.Duration, opts ...httpclient.Option) *Client {
	base := []httpclient.Option{
		httpclient.WithTimeout(timeout),
		httpclient.WithHeader("Authorization", "Bearer "+apiKey),
	}
	return &Client{
		http:         httpclient.New(baseURL, append(base, opts...)...),
		pollInterval: defaultPollInterval,
	}
}

// SetPollInterval changes how often Run polls a running prediction.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// ModelRef is a parsed model identifier.
type ModelRef struct {
	Owner   string
	Name    string
	Version string
}

// ParseModel parses "owner/name", "owner/name:version" or
// "owner/name/version".
func ParseModel(id string) (ModelRef, error) {
	var ref ModelRef
	rest := id
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		ref.Version = rest[i+1:]
		rest = rest[:i]
	}
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 3 && ref.Version == "":
		ref.Version = parts[2]
	case len(parts) != 2:
		return ModelRef{}, fmt.Errorf("invalid replicate model %q", id)
	}
	ref.Owner, ref.Name = parts[0], parts[1]
	if ref.Owner == "" || ref.Name == "" {
		return ModelRef{}, fmt.Errorf("invalid replicate model %q", id)
	}
	return ref, nil
}

// Run creates a prediction for model with input and waits for it to finish.
// It returns the raw prediction output.
func (c *Client) Run(ctx context.Context, model string, input map[string]any) (json.RawMessage, error) {
	ref, err := ParseModel(model)
	if err != nil {
		return nil, err
	}

	var p Prediction
	if ref.Version != "" {
		req := map[string]any{"version": ref.Version, "input": input}
		err = c.http.JSON(ctx, http.MethodPost, "/v1/predictions", req, &p)
	} else {
		req := map[string]any{"input": input}
		err = c.http.JSON(ctx, http.MethodPost, fmt.Sprintf("/v1/models/%s/%s/predictions", ref.Owner, ref.Name), req, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("creating prediction: %w", err)
	}

	for !p.Terminal() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		if err := c.http.JSON(ctx, http.MethodGet, "/v1/predictions/"+p.ID, nil, &p); err != nil {
			return nil, fmt.Errorf("polling prediction %s: %w", p.ID, err)
		}
	}

	if p.Status != "succeeded" {
		return nil, fmt.Errorf("prediction %s %s: %v", p.ID, p.Status, p.Error)
	}
	return p.Output, nil
}

// VersionExists reports whether the model version referenced by model is
// reachable with this key.
func (c *Client) VersionExists(ctx context.Context, model string) (bool, error) {
	ref, err := ParseModel(model)
	if err != nil || ref.Version == "" {
		return false, nil
	}
	path := fmt.Sprintf("/v1/models/%s/%s/versions/%s", ref.Owner, ref.Name, ref.Version)
	_, err = c.http.Do(ctx, http.MethodGet, path, nil, "application/json")
	if err == nil {
		return true, nil
	}
	if httpclient.IsStatus(err, http.StatusNotFound) || httpclient.IsStatus(err, http.StatusUnauthorized) {
		return false, nil
	}
	return false, fmt.Errorf("replicate version lookup: %w", err)
}
