package planner

import (
	"encoding/json"
	"fmt"

	"github.com/framelight/previz-server/internal/registry"
)

// RefinementPlan is the structured decision produced by the reasoning model:
// whether the candidate image should condition its own regeneration, a
// ready-to-use refined prompt, and which backend to run it on. The pipeline
// treats everything except UseAsReference, RefinedPrompt and
// RecommendedModel as opaque.
type RefinementPlan struct {
	UseAsReference     bool   `json:"use_as_reference"`
	Reasoning          string `json:"reasoning"`
	RiskIfUsedAsRef    string `json:"risk_if_used_as_ref,omitempty"`
	RiskIfNotUsedAsRef string `json:"risk_if_not_used_as_ref,omitempty"`

	ReverseEngineeredPrompt string `json:"reverse_engineered_prompt,omitempty"`
	EstimatedSourceModel    string `json:"estimated_source_model,omitempty"`

	RecommendedModel string `json:"recommended_model"`
	ModelReasoning   string `json:"model_reasoning,omitempty"`

	RefinedPrompt      string              `json:"refined_prompt"`
	GenerationSettings *GenerationSettings `json:"generation_settings,omitempty"`

	ExpectedImprovement string   `json:"expected_improvement,omitempty"`
	IterationTips       []string `json:"iteration_tips,omitempty"`
}

type GenerationSettings struct {
	AspectRatio   string  `json:"aspect_ratio,omitempty"`
	GuidanceScale float64 `json:"guidance_scale,omitempty"`
	NumSteps      int     `json:"num_steps,omitempty"`
}

// ParseError means the reasoning-model response could not be turned into a
// RefinementPlan. Nothing is persisted when it occurs; the caller retries.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse refinement plan: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// parsePlan validates the raw reasoning-model output. A missing refined
// prompt is a parse failure; an unknown recommended model falls back to the
// registry's default generator rather than failing the whole call.
func parsePlan(raw string, reg *registry.Registry) (*RefinementPlan, error) {
	var plan RefinementPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	if plan.RefinedPrompt == "" {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("missing refined_prompt")}
	}
	if plan.Reasoning == "" {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("missing reasoning")}
	}

	if _, err := reg.GetModelByID(plan.RecommendedModel); err != nil {
		fallback, derr := reg.DefaultModel(registry.CapabilityGenerate)
		if derr != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
		plan.RecommendedModel = fallback.ID
	}

	return &plan, nil
}
