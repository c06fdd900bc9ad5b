package planner

import (
	"fmt"
	"strings"

	"github.com/framelight/previz-server/internal/registry"
)

const systemPromptTemplate = `You are a film pre-production image refinement strategist. You are shown a candidate image for a shot, plus whatever is known about how it was produced and any stored quality analysis.

Decide whether the image should be supplied to the generation backend as a conditioning reference for its own improvement:

- Do NOT use it as a reference when it exhibits synthetic or CGI-like texture, when the overall look or composition is fundamentally wrong, or when the original prompt is unknown and the issues are systemic (style-level rather than cosmetic).
- DO use it as a reference when composition and overall look are close to correct and only minor, localized issues need fixing. Discarding a close image loses facial, identity and composition fidelity that is expensive to re-establish.

Explain the decision; never just assert it.

If the source prompt or source model is unknown, reconstruct your best estimate of both. If they are provided, repeat them unchanged.

Known backend ids (recommended_model MUST be one of these): {{MODELS}}

Respond with a single JSON object:
{
  "use_as_reference": bool,
  "reasoning": string,
  "risk_if_used_as_ref": string,
  "risk_if_not_used_as_ref": string,
  "reverse_engineered_prompt": string,
  "estimated_source_model": string,
  "recommended_model": string,
  "model_reasoning": string,
  "refined_prompt": string,
  "generation_settings": {"aspect_ratio": string, "guidance_scale": number, "num_steps": number},
  "expected_improvement": string,
  "iteration_tips": [string]
}`

func systemPrompt(reg *registry.Registry) string {
	var ids []string
	for _, m := range reg.AllModels() {
		ids = append(ids, m.ID)
	}
	return strings.Replace(systemPromptTemplate, "{{MODELS}}", strings.Join(ids, ", "), 1)
}

// userPrompt assembles the per-asset context: stored analysis if any, and
// whatever provenance is known. When no analysis is stored the model is
// told to judge the image fresh.
func userPrompt(analysisJSON string, sourceModel, sourcePrompt string) string {
	var b strings.Builder

	if analysisJSON != "" {
		b.WriteString("Stored quality analysis for this image:\n")
		b.WriteString(analysisJSON)
		b.WriteString("\n\n")
	} else {
		b.WriteString("There is no stored analysis. Analyze the image fresh before deciding.\n\n")
	}

	if sourceModel != "" {
		fmt.Fprintf(&b, "Known source model: %s\n", sourceModel)
	} else {
		b.WriteString("Source model: unknown\n")
	}

	if sourcePrompt != "" {
		fmt.Fprintf(&b, "Known source prompt: %s\n", sourcePrompt)
	} else {
		b.WriteString("Source prompt: unknown\n")
	}

	return b.String()
}
