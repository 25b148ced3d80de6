package aimodel

// Provider identifies a generative-AI vendor.
type Provider string

const (
	ProviderHuggingFace Provider = "huggingface"
	ProviderOpenAI      Provider = "openai"
	ProviderReplicate   Provider = "replicate"
	ProviderElevenLabs  Provider = "elevenlabs"
)

// Providers lists every supported provider.
func Providers() []Provider {
	return []Provider{ProviderHuggingFace, ProviderOpenAI, ProviderReplicate, ProviderElevenLabs}
}

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	for _, known := range Providers() {
		if p == known {
			return true
		}
	}
	return false
}

// Modality is the kind of content a model produces.
type Modality string

const (
	Text  Modality = "text"
	Image Modality = "image"
	Video Modality = "video"
	Audio Modality = "audio"
	Voice Modality = "voice"
)

// Modalities lists every modality. Each one has a built-in default model.
func Modalities() []Modality {
	return []Modality{Text, Image, Video, Audio, Voice}
}

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	_, ok := defaults[m]
	return ok
}

// Config describes one configured generative model.
type Config struct {
	ID               string         `json:"id" yaml:"id"`
	Name             string         `json:"name" yaml:"name"`
	Provider         Provider       `json:"provider" yaml:"provider"`
	ModelID          string         `json:"modelId" yaml:"modelId"`
	Type             Modality       `json:"type" yaml:"type"`
	Description      string         `json:"description" yaml:"description"`
	Parameters       map[string]any `json:"parameters" yaml:"parameters"`
	IsEnabled        bool           `json:"isEnabled" yaml:"isEnabled"`
	ABTestingEnabled bool           `json:"abTestingEnabled,omitempty" yaml:"abTestingEnabled,omitempty"`
}

// Clone returns a copy of c that shares no maps with it.
func (c Config) Clone() Config {
	c.Parameters = cloneParams(c.Parameters)
	return c
}

// ProviderConfig holds the credential and model list for one provider.
type ProviderConfig struct {
	APIKey string   `json:"apiKey" yaml:"apiKey"`
	Models []Config `json:"models" yaml:"models"`
}

// VoiceConfig holds the credential of the voice provider, which has no
// configurable model list.
type VoiceConfig struct {
	APIKey string `json:"apiKey" yaml:"apiKey"`
}

// UserConfig is a user's complete model configuration. It is always
// replaced whole.
type UserConfig struct {
	HuggingFace ProviderConfig `json:"huggingface" yaml:"huggingface"`
	OpenAI      ProviderConfig `json:"openai" yaml:"openai"`
	Replicate   ProviderConfig `json:"replicate" yaml:"replicate"`
	ElevenLabs  VoiceConfig    `json:"elevenlabs" yaml:"elevenlabs"`
}

// Preferences names a preferred model ID per modality. Empty fields mean
// "let the router decide".
type Preferences struct {
	TextModel  string `json:"textModel,omitempty"`
	ImageModel string `json:"imageModel,omitempty"`
	VideoModel string `json:"videoModel,omitempty"`
	AudioModel string `json:"audioModel,omitempty"`
}

// For returns the preferred model ID for m.
func (p *Preferences) For(m Modality) string {
	if p == nil {
		return ""
	}
	switch m {
	case Text:
		return p.TextModel
	case Image:
		return p.ImageModel
	case Video:
		return p.VideoModel
	case Audio:
		return p.AudioModel
	}
	return ""
}
