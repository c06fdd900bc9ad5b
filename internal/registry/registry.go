package registry

import (
	"errors"
	"fmt"
)

var ErrUnknownModel = errors.New("unknown model id")

type Capability string

const (
	CapabilityGenerate Capability = "generate"
	CapabilityEdit     Capability = "edit"
	CapabilityUpscale  Capability = "upscale"
	CapabilityVideo    Capability = "video"
)

type Provider string

const (
	ProviderFal        Provider = "fal"
	ProviderOpenAI     Provider = "openai"
	ProviderReplicate  Provider = "replicate"
	ProviderPromptOnly Provider = "prompt-only"
)

// ModelInfo describes one generation backend: what it can do, whether it is
// reachable over an API, and the endpoint the adapter layer should route to.
type ModelInfo struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Provider     Provider     `json:"provider"`
	Endpoint     string       `json:"endpoint,omitempty"`
	Capabilities []Capability `json:"capabilities"`

	// Active means the backend is reachable via API. Inactive models are
	// prompt-only: callers get a composed prompt to run manually.
	Active bool `json:"active"`
}

func (m *ModelInfo) Can(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Registry is a static catalogue of generation backends, populated once at
// process start. It never mutates after construction.
type Registry struct {
	models map[string]*ModelInfo
	order  []string
}

func NewRegistry(models []*ModelInfo) (*Registry, error) {
	r := &Registry{models: make(map[string]*ModelInfo, len(models))}
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("model with empty id")
		}
		if _, exists := r.models[m.ID]; exists {
			return nil, fmt.Errorf("duplicate model id %q", m.ID)
		}
		r.models[m.ID] = m
		r.order = append(r.order, m.ID)
	}

	return r, nil
}

func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(builtinModels())
	if err != nil {
		// builtinModels is static; a failure here is a programming error
		panic(err)
	}
	return r
}

func (r *Registry) GetModelByID(id string) (*ModelInfo, error) {
	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return m, nil
}

func (r *Registry) AllModels() []*ModelInfo {
	out := make([]*ModelInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

func (r *Registry) ActiveModels() []*ModelInfo {
	var out []*ModelInfo
	for _, id := range r.order {
		if r.models[id].Active {
			out = append(out, r.models[id])
		}
	}
	return out
}

// ModelsWith returns every model carrying the given capability, active ones
// first.
func (r *Registry) ModelsWith(c Capability) []*ModelInfo {
	var active, inactive []*ModelInfo
	for _, id := range r.order {
		m := r.models[id]
		if !m.Can(c) {
			continue
		}
		if m.Active {
			active = append(active, m)
		} else {
			inactive = append(inactive, m)
		}
	}
	return append(active, inactive...)
}

// DefaultModel returns the first active model with the given capability.
func (r *Registry) DefaultModel(c Capability) (*ModelInfo, error) {
	for _, id := range r.order {
		m := r.models[id]
		if m.Active && m.Can(c) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no active model with capability %q", c)
}
