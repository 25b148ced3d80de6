package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAI adapts go-openai to OpenAIBackend.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates an OpenAI backend. An empty baseURL uses the public API.
func NewOpenAI(apiKey, baseURL string, timeout time.Duration) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}
}

// Chat sends a system+user message pair and returns the first choice.
func (o *OpenAI) Chat(ctx context.Context, model, system, user string, params map[string]any) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if v, ok := intParam(params, "max_tokens"); ok {
		req.MaxTokens = v
	} else if v, ok := intParam(params, "max_length"); ok {
		req.MaxTokens = v
	}
	if v, ok := floatParam(params, "temperature"); ok {
		req.Temperature = float32(v)
	}
	if v, ok := floatParam(params, "top_p"); ok {
		req.TopP = float32(v)
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Image generates one image and returns its URL.
func (o *OpenAI) Image(ctx context.Context, model, prompt string, params map[string]any) (string, error) {
	req := openai.ImageRequest{
		Prompt:         prompt,
		Model:          model,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	}
	if s, ok := params["size"].(string); ok {
		req.Size = s
	} else if w, ok := intParam(params, "width"); ok {
		if h, ok := intParam(params, "height"); ok {
			req.Size = fmt.Sprintf("%dx%d", w, h)
		}
	}
	if s, ok := params["quality"].(string); ok {
		req.Quality = s
	}
	if s, ok := params["style"].(string); ok {
		req.Style = s
	}

	resp, err := o.client.CreateImage(ctx, req)
	if err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", errors.New("image generation: no data")
	}
	return resp.Data[0].URL, nil
}

// HasModel reports whether model appears in the account's model list.
func (o *OpenAI) HasModel(ctx context.Context, model string) (bool, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusUnauthorized {
			return false, nil
		}
		return false, fmt.Errorf("listing models: %w", err)
	}
	for _, m := range list.Models {
		if m.ID == model {
			return true, nil
		}
	}
	return false, nil
}

func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func floatParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
