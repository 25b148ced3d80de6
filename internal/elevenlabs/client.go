package elevenlabs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kalambet/flowcraft/internal/httpclient"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID = "eleven_multilingual_v2"
)

// VoiceSettings tune the synthesized voice.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// SpeechRequest is the text-to-speech request body.
type SpeechRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings *VoiceSettings `json:"voice_settings,omitempty"`
}

// Client calls the ElevenLabs API.
type Client struct {
	http *httpclient.Client
}

// NewClient creates a client against the public ElevenLabs API.
func NewClient(apiKey string, timeout time.Duration) *Client {
	return NewClientWithBaseURL(apiKey, DefaultBaseURL, timeout)
}

// NewClientWithBaseURL creates a client pointing at a custom base URL.
func NewClientWithBaseURL(apiKey, baseURL string, timeout time.Duration, opts ...httpclient.Option) *Client {
	base := []httpclient.Option{
		httpclient.WithTimeout(timeout),
		httpclient.WithHeader("xi-api-key", apiKey),
	}
	return &Client{http: httpclient.New(baseURL, append(base, opts...)...)}
}

// TextToSpeech synthesizes req with the given voice and returns MPEG audio.
func (c *Client) TextToSpeech(ctx context.Context, voiceID string, req SpeechRequest) ([]byte, error) {
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	resp, err := c.http.Do(ctx, http.MethodPost, "/v1/text-to-speech/"+url.PathEscape(voiceID), req, "audio/mpeg")
	if err != nil {
		return nil, fmt.Errorf("elevenlabs text to speech: %w", err)
	}
	return resp.Body, nil
}
