package registry

// builtinModels is the static backend catalogue. Endpoint values are
// provider-specific routing keys: a fal queue path, a Replicate model path,
// or an OpenAI model name.
func builtinModels() []*ModelInfo {
	return []*ModelInfo{
		{
			ID:           "flux-2",
			Name:         "FLUX.2 [dev]",
			Provider:     ProviderFal,
			Endpoint:     "fal-ai/flux-2",
			Capabilities: []Capability{CapabilityGenerate, CapabilityEdit},
			Active:       true,
		},
		{
			ID:           "flux-kontext",
			Name:         "FLUX.1 Kontext [pro]",
			Provider:     ProviderReplicate,
			Endpoint:     "black-forest-labs/flux-kontext-pro",
			Capabilities: []Capability{CapabilityEdit},
			Active:       true,
		},
		{
			ID:           "seedream-3",
			Name:         "Seedream 3",
			Provider:     ProviderReplicate,
			Endpoint:     "bytedance/seedream-3",
			Capabilities: []Capability{CapabilityGenerate},
			Active:       true,
		},
		{
			ID:           "gpt-image-1",
			Name:         "GPT Image 1",
			Provider:     ProviderOpenAI,
			Endpoint:     "gpt-image-1",
			Capabilities: []Capability{CapabilityGenerate, CapabilityEdit},
			Active:       true,
		},
		{
			ID:           "gpt-image-edit",
			Name:         "GPT Image 1 (edit)",
			Provider:     ProviderOpenAI,
			Endpoint:     "gpt-image-1",
			Capabilities: []Capability{CapabilityEdit},
			Active:       true,
		},
		{
			ID:           "real-esrgan",
			Name:         "Real-ESRGAN",
			Provider:     ProviderReplicate,
			Endpoint:     "nightmareai/real-esrgan",
			Capabilities: []Capability{CapabilityUpscale},
			Active:       true,
		},
		{
			ID:           "midjourney-v7",
			Name:         "Midjourney v7",
			Provider:     ProviderPromptOnly,
			Capabilities: []Capability{CapabilityGenerate},
			Active:       false,
		},
	}
}
