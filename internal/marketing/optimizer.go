package marketing

import (
	"context"
	"fmt"

	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/provider"
)

// Optimizer rewrites content for a channel using its performance data.
type Optimizer struct {
	gen provider.Generator
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(gen provider.Generator) *Optimizer {
	return &Optimizer{gen: gen}
}

// Optimize asks the drafting model to rewrite content for channel c.
func (o *Optimizer) Optimize(ctx context.Context, content string, c Channel, performance map[string]float64) (string, error) {
	system, user, err := OptimizePrompts(content, c, performance)
	if err != nil {
		return "", err
	}
	out, err := o.gen.Generate(ctx, provider.Request{
		Model:  aimodel.DraftingModel(),
		Prompt: user,
		Params: map[string]any{"systemPrompt": system},
	})
	if err != nil {
		return "", fmt.Errorf("optimizing content for %s: %w", c, err)
	}
	return out.Text, nil
}
