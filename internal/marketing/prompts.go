package marketing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/osteele/liquid"
)

const contentSystemSrc = `You are a marketing expert creating {{ type }} content for {{ channel }}.
Optimize the content for engagement and conversion while maintaining brand voice.
Follow these platform specifics:
- Character limit: {{ spec.limit }}
- Optimal hashtags: {{ spec.hashtags }}
- Best content type: {{ spec.content_type }}
- Peak engagement times: {{ spec.peak_times | join: ", " }}`

const flowSystemSrc = `You are a marketing automation expert. Create a comprehensive cross-platform marketing flow.
Consider messaging apps integration and platform-specific features.`

const flowUserSrc = `Objective: {{ objective }}
Channels: {{ channels | join: ", " }}
Constraints: {{ constraints }}
Create a coordinated marketing flow that:
1. Maximizes impact across channels
2. Includes messaging bot interactions
3. Optimizes posting schedule
4. Tracks performance metrics`

const optimizeSystemSrc = `You are a content optimization expert for {{ channel }}.
Consider these platform specifics:
- Character limits: {{ spec.limit }}
- Optimal hashtags: {{ spec.hashtags }}
- Best content type: {{ spec.content_type }}
- Peak engagement times: {{ spec.peak_times | join: ", " }}`

const optimizeUserSrc = `Original Content: {{ content }}
Performance Data: {{ performance }}
Please optimize this content for maximum engagement on {{ channel }}.`

var (
	promptEngine     = liquid.NewEngine()
	contentSystemTpl = mustParse(contentSystemSrc)
	flowUserTpl      = mustParse(flowUserSrc)
	optimizeSysTpl   = mustParse(optimizeSystemSrc)
	optimizeUserTpl  = mustParse(optimizeUserSrc)
)

func mustParse(src string) *liquid.Template {
	tpl, err := promptEngine.ParseString(src)
	if err != nil {
		panic(fmt.Sprintf("parsing prompt template: %v", err))
	}
	return tpl
}

func render(tpl *liquid.Template, b liquid.Bindings) (string, error) {
	out, err := tpl.RenderString(b)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func specBindings(s ChannelSpec) map[string]any {
	return map[string]any{
		"limit":        s.CharacterLimit,
		"hashtags":     s.HashtagCount,
		"content_type": string(s.ContentType),
		"peak_times":   s.PeakTimes,
	}
}

// ContentSystemPrompt is the system prompt for text content of type ct on
// channel c.
func ContentSystemPrompt(ct ContentType, c Channel) (string, error) {
	return render(contentSystemTpl, liquid.Bindings{
		"type":    string(ct),
		"channel": string(c),
		"spec":    specBindings(SpecFor(c)),
	})
}

// FlowSystemPrompt is the system prompt used when drafting a flow.
func FlowSystemPrompt() string { return flowSystemSrc }

// FlowUserPrompt asks for a flow description for objective on channels.
func FlowUserPrompt(objective string, channels []Channel, constraints map[string]any) (string, error) {
	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = string(c)
	}
	return render(flowUserTpl, liquid.Bindings{
		"objective":   objective,
		"channels":    names,
		"constraints": prettyJSON(constraints),
	})
}

// OptimizePrompts returns the system and user prompts for rewriting content
// for channel c.
func OptimizePrompts(content string, c Channel, performance map[string]float64) (system, user string, err error) {
	system, err = render(optimizeSysTpl, liquid.Bindings{
		"channel": string(c),
		"spec":    specBindings(SpecFor(c)),
	})
	if err != nil {
		return "", "", err
	}
	user, err = render(optimizeUserTpl, liquid.Bindings{
		"content":     content,
		"performance": prettyJSON(performance),
		"channel":     string(c),
	})
	return system, user, err
}

// prettyJSON renders v as indented JSON. A nil map renders as "null".
func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "null"
	}
	return string(data)
}
