package huggingface

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/flowcraft/internal/httpclient"
)

const (
	DefaultInferenceURL = "https://api-inference.huggingface.co"
	DefaultHubURL       = "https://huggingface.co"
)

// Client talks to the HuggingFace inference API and model hub.
type Client struct {
	inference *httpclient.Client
	hub       *httpclient.Client
}

// NewClient creates a client against the public HuggingFace endpoints.
func NewClient(apiKey string, timeout time.Duration) *Client {
	return NewClientWithBaseURL(apiKey, DefaultInferenceURL, DefaultHubURL, timeout)
}

// NewClientWithBaseURL creates a client with custom endpoints (for testing or
// dedicated inference endpoints).
func NewClientWithBaseURL(apiKey, inferenceURL, hubURL string, timeout time.Duration, opts ...httpclient.Option) *Client {
	base := []httpclient.Option{
		httpclient.WithTimeout(timeout),
		httpclient.WithHeader("Authorization", "Bearer "+apiKey),
	}
	base = append(base, opts...)
	return &Client{
		inference: httpclient.New(inferenceURL, base...),
		hub:       httpclient.New(hubURL, base...),
	}
}

type inferenceRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

type textGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func modelPath(model string) string {
	parts := strings.Split(model, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return "/models/" + strings.Join(parts, "/")
}

// TextGeneration runs a text-generation model and returns the generated text.
func (c *Client) TextGeneration(ctx context.Context, model, inputs string, params map[string]any) (string, error) {
	req := inferenceRequest{
		Inputs:     inputs,
		Parameters: params,
		Options:    map[string]any{"wait_for_model": true},
	}
	var out []textGeneration
	if err := c.inference.JSON(ctx, http.MethodPost, modelPath(model), req, &out); err != nil {
		return "", fmt.Errorf("huggingface text generation: %w", err)
	}
	if len(out) == 0 {
		return "", errors.New("huggingface text generation: empty response")
	}
	return out[0].GeneratedText, nil
}

// TextToImage runs a text-to-image model and returns the image bytes and
// their content type.
func (c *Client) TextToImage(ctx context.Context, model, inputs string, params map[string]any) ([]byte, string, error) {
	req := inferenceRequest{
		Inputs:     inputs,
		Parameters: params,
		Options:    map[string]any{"wait_for_model": true},
	}
	resp, err := c.inference.Do(ctx, http.MethodPost, modelPath(model), req, "image/png")
	if err != nil {
		return nil, "", fmt.Errorf("huggingface text to image: %w", err)
	}
	ct := resp.ContentType
	if ct == "" || strings.HasPrefix(ct, "application/json") {
		return nil, "", fmt.Errorf("huggingface text to image: unexpected content type %q", ct)
	}
	return resp.Body, ct, nil
}

// ModelExists reports whether model is visible on the hub with this key.
func (c *Client) ModelExists(ctx context.Context, model string) (bool, error) {
	_, err := c.hub.Do(ctx, http.MethodGet, "/api"+modelPath(model), nil, "application/json")
	if err == nil {
		return true, nil
	}
	if httpclient.IsStatus(err, http.StatusNotFound) || httpclient.IsStatus(err, http.StatusUnauthorized) {
		return false, nil
	}
	return false, fmt.Errorf("huggingface model lookup: %w", err)
}
