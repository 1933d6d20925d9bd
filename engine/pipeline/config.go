package pipeline

import (
	"context"
	"fmt"

	"dario.cat/mergo"

	"github.com/fmf/pipeline/engine/schema"
	"github.com/fmf/pipeline/pkg/config"
)

// Pipeline is the fully-resolved, declarative description of one run:
// the source selector, iterator settings, and the ordered list of steps
// applied to every resulting unit.
type Pipeline struct {
	Name     string
	Source   string
	Executor config.ExecutorConfig
	Retry    config.RetryConfig
	Identity config.IdentityConfig
	Iterator config.IteratorConfig
	LLM      config.LLMConfig
	Steps    []config.StepConfig
}

// Validate checks that the pipeline has steps, that every step's id is
// present and unique, and that each step's output schema (when
// declared) compiles, composing per-step validators the way a
// multi-part config object validates its parts together. output_name is
// not checked.
func (p *Pipeline) Validate(ctx context.Context) error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("pipeline %q declares no steps", p.Name)
	}
	seen := map[string]bool{}
	validator := schema.NewCompositeValidator()
	for _, step := range p.Steps {
		if step.ID == "" {
			return fmt.Errorf("pipeline %q has a step with no id", p.Name)
		}
		if seen[step.ID] {
			return fmt.Errorf("pipeline %q has a duplicate step id %q", p.Name, step.ID)
		}
		seen[step.ID] = true
		if step.OutputSchema != nil {
			s := schema.Schema(step.OutputSchema)
			validator.AddValidator(schemaCompileCheck{schema: s, id: step.ID})
		}
	}
	return validator.Validate(ctx)
}

// schemaCompileCheck validates that a step's declared schema at least
// compiles, independent of any particular value being checked against
// it yet.
type schemaCompileCheck struct {
	schema schema.Schema
	id     string
}

func (c schemaCompileCheck) Validate(_ context.Context) error {
	if _, err := c.schema.Compile(); err != nil {
		return fmt.Errorf("step %q: %w", c.id, err)
	}
	return nil
}

// Merge overlays override's non-zero fields onto p, used to apply a CLI
// flag or environment layer on top of a loaded pipeline file.
func (p *Pipeline) Merge(override *Pipeline) error {
	if err := mergo.Merge(p, override, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge pipeline config: %w", err)
	}
	return nil
}

// StepByID returns the step with the given id, if any.
func (p *Pipeline) StepByID(id string) (config.StepConfig, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return config.StepConfig{}, false
}
