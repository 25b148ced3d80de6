package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/elevenlabs"
	"github.com/kalambet/flowcraft/internal/huggingface"
	"github.com/kalambet/flowcraft/internal/replicate"
)

// OpenAIBackend is the subset of the OpenAI API used here.
type OpenAIBackend interface {
	Chat(ctx context.Context, model, system, user string, params map[string]any) (string, error)
	Image(ctx context.Context, model, prompt string, params map[string]any) (string, error)
	HasModel(ctx context.Context, model string) (bool, error)
}

// HuggingFaceBackend is satisfied by *huggingface.Client.
type HuggingFaceBackend interface {
	TextGeneration(ctx context.Context, model, inputs string, params map[string]any) (string, error)
	TextToImage(ctx context.Context, model, inputs string, params map[string]any) ([]byte, string, error)
	ModelExists(ctx context.Context, model string) (bool, error)
}

// ReplicateBackend is satisfied by *replicate.Client.
type ReplicateBackend interface {
	Run(ctx context.Context, model string, input map[string]any) (json.RawMessage, error)
	VersionExists(ctx context.Context, model string) (bool, error)
}

// ElevenLabsBackend is satisfied by *elevenlabs.Client.
type ElevenLabsBackend interface {
	TextToSpeech(ctx context.Context, voiceID string, req elevenlabs.SpeechRequest) ([]byte, error)
}

// Backends bundles one credentialed client per provider.
type Backends struct {
	OpenAI      OpenAIBackend
	HuggingFace HuggingFaceBackend
	Replicate   ReplicateBackend
	ElevenLabs  ElevenLabsBackend
}

// Options configures the provider clients.
type Options struct {
	OpenAIBaseURL      string
	HuggingFaceBaseURL string // used for both inference and hub lookups when set
	ReplicateBaseURL   string
	ElevenLabsBaseURL  string
	Timeout            time.Duration
}

// NewBackends builds real clients for the given keys.
func NewBackends(keys aimodel.Keys, opts Options) Backends {
	hfInference, hfHub := huggingface.DefaultInferenceURL, huggingface.DefaultHubURL
	if opts.HuggingFaceBaseURL != "" {
		hfInference, hfHub = opts.HuggingFaceBaseURL, opts.HuggingFaceBaseURL
	}
	replicateURL := orDefault(opts.ReplicateBaseURL, replicate.DefaultBaseURL)
	elevenURL := orDefault(opts.ElevenLabsBaseURL, elevenlabs.DefaultBaseURL)

	return Backends{
		OpenAI:      NewOpenAI(keys.OpenAI, opts.OpenAIBaseURL, opts.Timeout),
		HuggingFace: huggingface.NewClientWithBaseURL(keys.HuggingFace, hfInference, hfHub, opts.Timeout),
		Replicate:   replicate.NewClientWithBaseURL(keys.Replicate, replicateURL, opts.Timeout),
		ElevenLabs:  elevenlabs.NewClientWithBaseURL(keys.ElevenLabs, elevenURL, opts.Timeout),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type route struct {
	provider aimodel.Provider
	modality aimodel.Modality
}

type handler func(ctx context.Context, b Backends, model aimodel.Config, prompt string, params map[string]any) (Output, error)

var routes = map[route]handler{
	{aimodel.ProviderHuggingFace, aimodel.Text}:  huggingFaceText,
	{aimodel.ProviderHuggingFace, aimodel.Image}: huggingFaceImage,
	{aimodel.ProviderOpenAI, aimodel.Text}:       openAIText,
	{aimodel.ProviderOpenAI, aimodel.Image}:      openAIImage,
	{aimodel.ProviderReplicate, aimodel.Text}:    replicateRun,
	{aimodel.ProviderReplicate, aimodel.Image}:   replicateRun,
	{aimodel.ProviderReplicate, aimodel.Video}:   replicateRun,
	{aimodel.ProviderReplicate, aimodel.Audio}:   replicateRun,
	{aimodel.ProviderReplicate, aimodel.Voice}:   replicateRun,
	{aimodel.ProviderElevenLabs, aimodel.Voice}:  elevenLabsSpeech,
	{aimodel.ProviderElevenLabs, aimodel.Audio}:  elevenLabsSpeech,
}

// Dispatcher routes a Request to the handler for its model's provider and
// modality.
type Dispatcher struct {
	backends Backends
}

// New creates a Dispatcher over b.
func New(b Backends) *Dispatcher {
	return &Dispatcher{backends: b}
}

// FromUserConfig builds a Dispatcher with clients keyed from cfg.
func FromUserConfig(cfg aimodel.UserConfig, opts Options) *Dispatcher {
	keys := aimodel.Keys{
		OpenAI:      cfg.OpenAI.APIKey,
		HuggingFace: cfg.HuggingFace.APIKey,
		Replicate:   cfg.Replicate.APIKey,
		ElevenLabs:  cfg.ElevenLabs.APIKey,
	}
	return New(NewBackends(keys, opts))
}

// Generate merges the model's parameters with req.Params and calls the
// provider.
func (d *Dispatcher) Generate(ctx context.Context, req Request) (Output, error) {
	m := req.Model
	if !m.Provider.Valid() {
		return Output{}, fmt.Errorf("%w: %q", ErrUnknownProvider, m.Provider)
	}
	h, ok := routes[route{m.Provider, m.Type}]
	if !ok {
		return Output{}, unsupported(m.Provider, m.Type)
	}
	params := aimodel.MergeParams(m.Parameters, req.Params)
	out, err := h(ctx, d.backends, m, req.Prompt, params)
	if err != nil {
		return Output{}, fmt.Errorf("%s %s generation with %s: %w", m.Provider, m.Type, m.ModelID, err)
	}
	return out, nil
}

// Validate checks that model exists and is reachable with the backends'
// credentials. ElevenLabs models cannot be validated.
func Validate(ctx context.Context, b Backends, model aimodel.Config) (bool, error) {
	switch model.Provider {
	case aimodel.ProviderHuggingFace:
		return b.HuggingFace.ModelExists(ctx, model.ModelID)
	case aimodel.ProviderOpenAI:
		return b.OpenAI.HasModel(ctx, model.ModelID)
	case aimodel.ProviderReplicate:
		return b.Replicate.VersionExists(ctx, model.ModelID)
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownProvider, model.Provider)
}
