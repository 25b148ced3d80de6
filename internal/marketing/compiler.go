package marketing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/provider"
)

const (
	dailyCron       = "0 9 * * *"
	draftingTimeout = 2 * time.Minute
)

var publishDays = []string{"monday", "wednesday", "friday"}

// CompileRequest describes the flow to build.
type CompileRequest struct {
	Objective   string               `json:"objective"`
	Channels    []Channel            `json:"channels"`
	Constraints map[string]any       `json:"constraints,omitempty"`
	Preferences *aimodel.Preferences `json:"aiConfig,omitempty"`
}

// Compiler expands an objective and channel list into a draft flow.
type Compiler struct {
	gen   provider.Generator
	cfg   aimodel.UserConfig
	now   func() time.Time
	newID func() string
}

// NewCompiler creates a Compiler routing step models from cfg.
func NewCompiler(gen provider.Generator, cfg aimodel.UserConfig) *Compiler {
	return &Compiler{
		gen:   gen,
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Compile drafts a description with the drafting model and builds the step
// graph. Channels are expected to be validated by the caller; unknown ones
// fall back to the blog spec.
func (c *Compiler) Compile(ctx context.Context, req CompileRequest) (*Flow, error) {
	user, err := FlowUserPrompt(req.Objective, req.Channels, req.Constraints)
	if err != nil {
		return nil, err
	}

	draftCtx, cancel := context.WithTimeout(ctx, draftingTimeout)
	defer cancel()
	out, err := c.gen.Generate(draftCtx, provider.Request{
		Model:  aimodel.DraftingModel(),
		Prompt: user,
		Params: map[string]any{"systemPrompt": FlowSystemPrompt()},
	})
	if err != nil {
		return nil, fmt.Errorf("drafting flow: %w", err)
	}

	now := c.now().UTC()
	flow := &Flow{
		ID:          c.newID(),
		Name:        "Flow for " + req.Objective,
		Description: out.Text,
		Trigger: Trigger{
			Type:      "schedule",
			Schedule:  dailyCron,
			Timezone:  "UTC",
			Frequency: "daily",
		},
		Steps:     []Step{},
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
		AIConfig:  req.Preferences,
		ABTests:   map[string]ABTest{},
	}

	for i, ch := range req.Channels {
		steps, err := c.channelSteps(i+1, ch, req)
		if err != nil {
			return nil, err
		}
		flow.Steps = append(flow.Steps, steps...)
	}
	return flow, nil
}

func (c *Compiler) channelSteps(n int, ch Channel, req CompileRequest) ([]Step, error) {
	spec := SpecFor(ch)
	modality, err := ModalityFor(spec.ContentType)
	if err != nil {
		return nil, err
	}
	model := func(m aimodel.Modality) (aimodel.Config, error) {
		return aimodel.SelectPreferred(c.cfg, m, req.Preferences.For(m))
	}

	genID := fmt.Sprintf("step-%d", n)
	genModel, err := model(modality)
	if err != nil {
		return nil, err
	}
	steps := []Step{{
		ID:          genID,
		Kind:        KindGenerate,
		Channel:     ch,
		ContentType: spec.ContentType,
		Settings: map[string]any{
			"prompt":   req.Objective,
			"style":    "engaging",
			"tone":     "professional",
			"hashtags": spec.HashtagCount,
		},
		Schedule: &StepSchedule{
			Time:     spec.PeakTimes[0],
			Days:     append([]string(nil), publishDays...),
			Timezone: "UTC",
		},
		Model: genModel,
	}}

	if ch == Telegram || ch == WhatsApp {
		textModel, err := model(aimodel.Text)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{
			ID:          genID + "-respond",
			Kind:        KindRespond,
			Channel:     ch,
			ContentType: Message,
			Settings: map[string]any{
				"responseType":    "ai",
				"model":           aimodel.DraftingModel().ModelID,
				"tone":            "helpful",
				"maxResponseTime": "5m",
			},
			DependsOn: []string{genID},
			Model:     textModel,
		})
	}

	analyzeID := genID + "-analyze"
	analyzeModel, err := model(modality)
	if err != nil {
		return nil, err
	}
	steps = append(steps, Step{
		ID:          analyzeID,
		Kind:        KindAnalyze,
		Channel:     ch,
		ContentType: spec.ContentType,
		Settings: map[string]any{
			"metrics":   []string{"engagements", "conversions", "sentiment"},
			"timeframe": "7d",
		},
		DependsOn: []string{genID},
		Model:     analyzeModel,
	})

	optimizeModel, err := model(modality)
	if err != nil {
		return nil, err
	}
	steps = append(steps, Step{
		ID:          genID + "-optimize",
		Kind:        KindOptimize,
		Channel:     ch,
		ContentType: spec.ContentType,
		Settings: map[string]any{
			"optimizationGoal": "engagement",
			"targetMetrics":    []string{"conversions"},
			"aiModel":          aimodel.DraftingModel().ModelID,
		},
		DependsOn: []string{analyzeID},
		Model:     optimizeModel,
	})
	return steps, nil
}
