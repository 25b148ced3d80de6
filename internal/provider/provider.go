package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/flowcraft/internal/aimodel"
)

var (
	// ErrUnknownProvider is returned for a model whose provider is not one of
	// the supported vendors.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrUnsupportedModality is returned when a provider cannot serve the
	// model's modality.
	ErrUnsupportedModality = errors.New("unsupported model type for provider")
)

// OutputKind tags the variant held by an Output.
type OutputKind string

const (
	KindText   OutputKind = "text"
	KindURL    OutputKind = "url"
	KindBinary OutputKind = "binary"
	KindRaw    OutputKind = "raw"
)

// Output is the result of one generation call.
type Output struct {
	Kind     OutputKind      `json:"kind"`
	Text     string          `json:"text,omitempty"`
	URL      string          `json:"url,omitempty"`
	Data     []byte          `json:"data,omitempty"`
	MIMEType string          `json:"mimeType,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// Request asks a model to generate from a prompt. Params are call-site
// parameters merged over the model's stored parameters.
type Request struct {
	Model  aimodel.Config
	Prompt string
	Params map[string]any
}

// Generator produces content for a Request.
type Generator interface {
	Generate(ctx context.Context, req Request) (Output, error)
}

// outputFromRaw interprets a Replicate-style JSON output: a URL string or a
// list of them becomes a URL output, a plain string becomes text, anything
// else is kept raw.
func outputFromRaw(raw json.RawMessage) Output {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if isURL(s) {
			return Output{Kind: KindURL, URL: s, Raw: raw}
		}
		return Output{Kind: KindText, Text: s, Raw: raw}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		if isURL(list[0]) {
			return Output{Kind: KindURL, URL: list[0], Raw: raw}
		}
		return Output{Kind: KindText, Text: strings.Join(list, ""), Raw: raw}
	}
	return Output{Kind: KindRaw, Raw: raw}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "data:")
}

func unsupported(p aimodel.Provider, m aimodel.Modality) error {
	return fmt.Errorf("%w: %s cannot serve %s", ErrUnsupportedModality, p, m)
}
