package marketing

import (
	"github.com/kalambet/flowcraft/internal/aimodel"
	"github.com/kalambet/flowcraft/internal/provider"
)

// Engine bundles the generator, compiler and optimizer for one user
// configuration.
type Engine struct {
	Generator *Generator
	Compiler  *Compiler
	Optimizer *Optimizer
}

// New creates an Engine that dispatches through gen and routes models from
// cfg.
func New(gen provider.Generator, cfg aimodel.UserConfig) *Engine {
	return &Engine{
		Generator: NewGenerator(gen, cfg),
		Compiler:  NewCompiler(gen, cfg),
		Optimizer: NewOptimizer(gen),
	}
}
