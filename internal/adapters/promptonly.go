package adapters

import (
	"context"
	"fmt"

	"github.com/framelight/previz-server/internal/registry"
)

// PromptOnlyAdapter serves backends that are not reachable over an API, such
// as Midjourney. Every call returns the prompt-only sentinel so callers can
// surface "run this prompt manually" instead of a hard failure.
type PromptOnlyAdapter struct {
	Model *registry.ModelInfo
}

func (a *PromptOnlyAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	return a.result(req), nil
}

func (a *PromptOnlyAdapter) Edit(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	return a.result(req), nil
}

func (a *PromptOnlyAdapter) Upscale(ctx context.Context, imageUrl string, scale int) (*GenerateResult, error) {
	return NewPromptOnlyResult("", map[string]any{"image": imageUrl, "scale": scale},
		fmt.Sprintf("%s has no API; upscale the image manually", a.Model.Name)), nil
}

func (a *PromptOnlyAdapter) result(req GenerateRequest) *GenerateResult {
	parameters := map[string]any{}
	if req.ImageSize != "" {
		parameters["image_size"] = req.ImageSize
	}
	if req.NumImages > 0 {
		parameters["num_images"] = req.NumImages
	}
	if req.UseReference && len(req.ReferenceImages) > 0 {
		parameters["reference_images"] = req.ReferenceImages
	}

	message := fmt.Sprintf("%s has no API; paste this prompt into the tool manually", a.Model.Name)
	return NewPromptOnlyResult(req.Prompt, parameters, message)
}
