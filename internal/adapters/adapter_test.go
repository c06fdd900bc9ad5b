package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/framelight/previz-server/internal/config"
	"github.com/framelight/previz-server/internal/registry"
)

func TestNewDispatcherRoutesByCapability(t *testing.T) {
	cfg := &config.Config{
		Fal:       &config.FalConfig{APIKey: "fal-key"},
		Replicate: &config.ReplicateConfig{APIKey: "rep-key"},
		OpenAI:    &config.OpenAIConfig{APIKey: "oai-key"},
	}

	d, err := NewDispatcher(cfg, registry.NewDefaultRegistry())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	if _, err := d.Generator("flux-2"); err != nil {
		t.Errorf("flux-2 generator: %v", err)
	}
	if _, err := d.Upscaler("real-esrgan"); err != nil {
		t.Errorf("real-esrgan upscaler: %v", err)
	}
	if _, err := d.Editor("flux-kontext"); err != nil {
		t.Errorf("flux-kontext editor: %v", err)
	}

	// Upscale-only models never appear in the generator map.
	if _, err := d.Generator("real-esrgan"); !errors.Is(err, registry.ErrUnknownModel) {
		t.Errorf("err = %v, want ErrUnknownModel", err)
	}
	if _, err := d.Generator("no-such-model"); !errors.Is(err, registry.ErrUnknownModel) {
		t.Errorf("err = %v, want ErrUnknownModel", err)
	}
}

func TestInactiveModelGetsPromptOnlyAdapter(t *testing.T) {
	d, err := NewDispatcher(&config.Config{}, registry.NewDefaultRegistry())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	gen, err := d.Generator("midjourney-v7")
	if err != nil {
		t.Fatalf("Generator: %v", err)
	}

	result, err := gen.Generate(context.Background(), GenerateRequest{
		Prompt:    "a foggy pier at dawn",
		NumImages: 2,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if result.APIAvailable {
		t.Error("prompt-only result must report api_available=false")
	}
	if result.Prompt != "a foggy pier at dawn" {
		t.Errorf("prompt = %q", result.Prompt)
	}
	if result.Parameters["num_images"] != 2 {
		t.Errorf("parameters = %v", result.Parameters)
	}
	if result.Message == "" {
		t.Error("expected a manual-use message")
	}
}

func TestMissingAPIKeyFailsFast(t *testing.T) {
	a := NewFalAdapter("", &registry.ModelInfo{ID: "flux-2", Endpoint: "fal-ai/flux-2"})

	_, err := a.Generate(context.Background(), GenerateRequest{Prompt: "anything"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}
