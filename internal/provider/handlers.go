package provider

import (
	"context"
	"encoding/json"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/elevenlabs"
)

const (
	systemPromptParam   = "systemPrompt"
	defaultSystemPrompt = "You are a helpful assistant."
)

func huggingFaceText(ctx context.Context, b Backends, m aimodel.Config, prompt string, params map[string]any) (Output, error) {
	delete(params, systemPromptParam)
	text, err := b.HuggingFace.TextGeneration(ctx, m.ModelID, prompt, params)
	if err != nil {
		return Output{}, err
	}
	return Output{Kind: KindText, Text: text}, nil
}

func huggingFaceImage(ctx context.Context, b Backends, m aimodel.Config, prompt string, params map[string]any) (Output, error) {
	data, mime, err := b.HuggingFace.TextToImage(ctx, m.ModelID, prompt, params)
	if err != nil {
		return Output{}, err
	}
	return Output{Kind: KindBinary, Data: data, MIMEType: mime}, nil
}

func openAIText(ctx context.Context, b Backends, m aimodel.Config, prompt string, params map[string]any) (Output, error) {
	system, _ := params[systemPromptParam].(string)
	if system == "" {
		system = defaultSystemPrompt
	}
	delete(params, systemPromptParam)
	text, err := b.OpenAI.Chat(ctx, m.ModelID, system, prompt, params)
	if err != nil {
		return Output{}, err
	}
	return Output{Kind: KindText, Text: text}, nil
}

func openAIImage(ctx context.Context, b Backends, m aimodel.Config, prompt string, params map[string]any) (Output, error) {
	url, err := b.OpenAI.Image(ctx, m.ModelID, prompt, params)
	if err != nil {
		return Output{}, err
	}
	return Output{Kind: KindURL, URL: url}, nil
}

func replicateRun(ctx context.Context, b Backends, m aimodel.Config, prompt string, params map[string]any) (Output, error) {
	delete(params, systemPromptParam)
	input := aimodel.MergeParams(map[string]any{"prompt": prompt}, params)
	raw, err := b.Replicate.Run(ctx, m.ModelID, input)
	if err != nil {
		return Output{}, err
	}
	return outputFromRaw(raw), nil
}

func elevenLabsSpeech(ctx context.Context, b Backends, m aimodel.Config, prompt string, params map[string]any) (Output, error) {
	req := elevenlabs.SpeechRequest{Text: prompt, ModelID: m.ModelID}
	if req.ModelID == "" || req.ModelID == string(aimodel.ProviderElevenLabs) {
		req.ModelID = elevenlabs.DefaultModelID
	}
	if vs, ok := params["voice_settings"]; ok {
		req.VoiceSettings = voiceSettings(vs)
	}
	voiceID, _ := params["voice_id"].(string)

	audio, err := b.ElevenLabs.TextToSpeech(ctx, voiceID, req)
	if err != nil {
		return Output{}, err
	}
	return Output{Kind: KindBinary, Data: audio, MIMEType: "audio/mpeg"}, nil
}

// voiceSettings converts a loosely typed voice_settings parameter.
func voiceSettings(v any) *elevenlabs.VoiceSettings {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var vs elevenlabs.VoiceSettings
	if err := json.Unmarshal(data, &vs); err != nil {
		return nil
	}
	return &vs
}
