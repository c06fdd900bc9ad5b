package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/framelight/previz-server/internal/config"
	"github.com/framelight/previz-server/internal/registry"
)

const (
	// Async providers are polled on a fixed interval up to a hard ceiling.
	// Exceeding the ceiling is a terminal failure, never a retry.
	PollInterval = 2 * time.Second
	PollCeiling  = 3 * time.Minute
)

var (
	ErrPollTimeout   = errors.New("generation timed out")
	ErrNoImages      = errors.New("provider returned no images")
	ErrMissingAPIKey = errors.New("provider API key is not configured")
)

// GenerateRequest is the provider-neutral description of one generation or
// edit call. Adapters translate it into their provider's call convention.
type GenerateRequest struct {
	Model           string
	Prompt          string
	UseReference    bool
	ReferenceImages []string
	NumImages       int
	ImageSize       string
	NumSteps        int
	GuidanceScale   float64
}

type GeneratedImage struct {
	Url    string `json:"url,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`

	// Data carries inline bytes for providers that return base64 payloads
	// instead of hosted URLs.
	Data []byte `json:"-"`
}

// GenerateResult is the single normalized shape every adapter produces.
// APIAvailable is false only for prompt-only backends; that outcome is not
// an error, it means "run this prompt manually".
type GenerateResult struct {
	Images    []GeneratedImage `json:"images,omitempty"`
	RequestID string           `json:"request_id,omitempty"`

	APIAvailable bool           `json:"api_available"`
	Prompt       string         `json:"prompt,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Message      string         `json:"message,omitempty"`
}

func NewPromptOnlyResult(prompt string, parameters map[string]any, message string) *GenerateResult {
	return &GenerateResult{
		APIAvailable: false,
		Prompt:       prompt,
		Parameters:   parameters,
		Message:      message,
	}
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

type Editor interface {
	Edit(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

type Upscaler interface {
	Upscale(ctx context.Context, imageUrl string, scale int) (*GenerateResult, error)
}

// Resolver routes a model id to the adapter that serves it.
type Resolver interface {
	Generator(modelID string) (Generator, error)
	Editor(modelID string) (Editor, error)
	Upscaler(modelID string) (Upscaler, error)
}

// Dispatcher holds the static model-id -> adapter maps, resolved once at
// startup from the registry and provider credentials.
type Dispatcher struct {
	generators map[string]Generator
	editors    map[string]Editor
	upscalers  map[string]Upscaler
}

func NewDispatcher(cfg *config.Config, reg *registry.Registry) (*Dispatcher, error) {
	d := &Dispatcher{
		generators: make(map[string]Generator),
		editors:    make(map[string]Editor),
		upscalers:  make(map[string]Upscaler),
	}

	for _, m := range reg.AllModels() {
		adapter, err := adapterFor(cfg, m)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", m.ID, err)
		}
		d.register(m, adapter)
	}

	return d, nil
}

// NewStaticDispatcher builds a dispatcher from explicit maps. Used by tests
// to inject fakes without provider credentials.
func NewStaticDispatcher(generators map[string]Generator, editors map[string]Editor, upscalers map[string]Upscaler) *Dispatcher {
	if generators == nil {
		generators = make(map[string]Generator)
	}
	if editors == nil {
		editors = make(map[string]Editor)
	}
	if upscalers == nil {
		upscalers = make(map[string]Upscaler)
	}
	return &Dispatcher{generators: generators, editors: editors, upscalers: upscalers}
}

type adapter interface {
	Generator
	Editor
	Upscaler
}

func (d *Dispatcher) register(m *registry.ModelInfo, a adapter) {
	if m.Can(registry.CapabilityGenerate) {
		d.generators[m.ID] = a
	}
	if m.Can(registry.CapabilityEdit) {
		d.editors[m.ID] = a
	}
	if m.Can(registry.CapabilityUpscale) {
		d.upscalers[m.ID] = a
	}
}

func adapterFor(cfg *config.Config, m *registry.ModelInfo) (adapter, error) {
	if !m.Active {
		return &PromptOnlyAdapter{Model: m}, nil
	}

	switch m.Provider {
	case registry.ProviderFal:
		apiKey := ""
		if cfg.Fal != nil {
			apiKey = cfg.Fal.APIKey
		}
		return NewFalAdapter(apiKey, m), nil
	case registry.ProviderReplicate:
		apiKey := ""
		if cfg.Replicate != nil {
			apiKey = cfg.Replicate.APIKey
		}
		return NewReplicateAdapter(apiKey, m), nil
	case registry.ProviderOpenAI:
		apiKey := ""
		if cfg.OpenAI != nil {
			apiKey = cfg.OpenAI.APIKey
		}
		return NewOpenAIImageAdapter(apiKey, m), nil
	default:
		return nil, fmt.Errorf("no adapter for provider %q", m.Provider)
	}
}

func (d *Dispatcher) Generator(modelID string) (Generator, error) {
	g, ok := d.generators[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %q cannot generate", registry.ErrUnknownModel, modelID)
	}
	return g, nil
}

func (d *Dispatcher) Editor(modelID string) (Editor, error) {
	e, ok := d.editors[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %q cannot edit", registry.ErrUnknownModel, modelID)
	}
	return e, nil
}

func (d *Dispatcher) Upscaler(modelID string) (Upscaler, error) {
	u, ok := d.upscalers[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %q cannot upscale", registry.ErrUnknownModel, modelID)
	}
	return u, nil
}
