package marketing

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/provider"
)

// ErrUnsupportedContentType is returned for content types the generator
// cannot produce.
var ErrUnsupportedContentType = errors.New("unsupported content type")

const imageNegativePrompt = "blurry, bad quality, distorted, watermark, text"

// Overrides adjust a single generation call.
type Overrides struct {
	Models *aimodel.Preferences `json:"models,omitempty"`
	Params map[string]any       `json:"params,omitempty"`
}

// GenerateRequest asks for content of one type on one channel.
type GenerateRequest struct {
	Prompt      string      `json:"prompt"`
	ContentType ContentType `json:"contentType"`
	Channel     Channel     `json:"channel"`
	Overrides   *Overrides  `json:"overrides,omitempty"`
}

// Content is generated content. A story carries its parts in Image and Text
// and has no Output of its own.
type Content struct {
	ContentType ContentType      `json:"contentType"`
	Channel     Channel          `json:"channel"`
	Model       string           `json:"model,omitempty"`
	Output      *provider.Output `json:"output,omitempty"`
	Image       *Content         `json:"image,omitempty"`
	Text        *Content         `json:"text,omitempty"`
}

// ModalityFor maps a content type to the modality that produces it. A story
// maps to image, its primary part.
func ModalityFor(ct ContentType) (aimodel.Modality, error) {
	switch ct {
	case Post, Article, Message:
		return aimodel.Text, nil
	case Image, Story:
		return aimodel.Image, nil
	case Video, Reel:
		return aimodel.Video, nil
	case Voice:
		return aimodel.Voice, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, ct)
}

// Generator produces channel-tailored content through a provider.
type Generator struct {
	gen provider.Generator
	cfg aimodel.UserConfig
}

// NewGenerator creates a Generator routing models from cfg.
func NewGenerator(gen provider.Generator, cfg aimodel.UserConfig) *Generator {
	return &Generator{gen: gen, cfg: cfg}
}

// Generate produces content for req.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (Content, error) {
	var prefs *aimodel.Preferences
	var extra map[string]any
	if req.Overrides != nil {
		prefs = req.Overrides.Models
		extra = req.Overrides.Params
	}

	var (
		modality aimodel.Modality
		params   map[string]any
	)
	switch req.ContentType {
	case Post, Article, Message:
		sys, err := ContentSystemPrompt(req.ContentType, req.Channel)
		if err != nil {
			return Content{}, err
		}
		modality = aimodel.Text
		params = map[string]any{"systemPrompt": sys}

	case Image:
		w, h := 1200, 630
		if req.Channel == Instagram {
			w, h = 1080, 1080
		}
		modality = aimodel.Image
		params = map[string]any{"negative_prompt": imageNegativePrompt, "width": w, "height": h}

	case Video, Reel:
		frames := 60
		if req.ContentType == Reel {
			frames = 150
		}
		w, h := 1920, 1080
		if req.Channel == TikTok {
			w, h = 1080, 1920
		}
		modality = aimodel.Video
		params = map[string]any{"frames": frames, "fps": 30, "width": w, "height": h}

	case Story:
		return g.story(ctx, req)

	case Voice:
		modality = aimodel.Voice
		params = map[string]any{"voice_preset": "elevenlabs"}

	default:
		return Content{}, fmt.Errorf("%w: %q", ErrUnsupportedContentType, req.ContentType)
	}

	model, err := aimodel.SelectPreferred(g.cfg, modality, prefs.For(modality))
	if err != nil {
		return Content{}, err
	}
	out, err := g.gen.Generate(ctx, provider.Request{
		Model:  model,
		Prompt: req.Prompt,
		Params: aimodel.MergeParams(params, extra),
	})
	if err != nil {
		return Content{}, fmt.Errorf("generating %s for %s: %w", req.ContentType, req.Channel, err)
	}
	return Content{
		ContentType: req.ContentType,
		Channel:     req.Channel,
		Model:       model.ID,
		Output:      &out,
	}, nil
}

// storyPart derives the request for one part of a story. Model preferences
// carry over since they are keyed by modality; call-site params do not, as
// they cannot be told apart between the image and the text model.
func storyPart(req GenerateRequest, ct ContentType) GenerateRequest {
	part := req
	part.ContentType = ct
	part.Overrides = nil
	if req.Overrides != nil && req.Overrides.Models != nil {
		part.Overrides = &Overrides{Models: req.Overrides.Models}
	}
	return part
}

// story generates an image and a message concurrently. Either failure fails
// the whole story and cancels the other part.
func (g *Generator) story(ctx context.Context, req GenerateRequest) (Content, error) {
	var image, text Content
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		image, err = g.Generate(egCtx, storyPart(req, Image))
		return err
	})
	eg.Go(func() error {
		var err error
		text, err = g.Generate(egCtx, storyPart(req, Message))
		return err
	})
	if err := eg.Wait(); err != nil {
		return Content{}, fmt.Errorf("generating story: %w", err)
	}
	return Content{
		ContentType: Story,
		Channel:     req.Channel,
		Image:       &image,
		Text:        &text,
	}, nil
}
