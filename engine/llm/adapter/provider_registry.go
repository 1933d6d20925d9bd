package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/pkg/config"
)

// Registry builds and caches one Client per (provider, model) pair so
// steps sharing a model reuse the same client.
type Registry struct {
	mu      sync.Mutex
	clients map[string]Client
	cfg     config.LLMConfig
}

func NewRegistry(cfg config.LLMConfig) *Registry {
	return &Registry{clients: make(map[string]Client), cfg: cfg}
}

// Get returns the cached Client for provider/model, building it on
// first use.
func (r *Registry) Get(ctx context.Context, provider, model string) (Client, error) {
	key := provider + "/" + model
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[key]; ok {
		return existing, nil
	}
	client, err := r.build(ctx, provider, model)
	if err != nil {
		return nil, err
	}
	r.clients[key] = client
	return client, nil
}

func (r *Registry) build(_ context.Context, provider, model string) (Client, error) {
	switch provider {
	case "openai", "azure_openai", "":
		return NewOpenAIClient(string(r.cfg.APIKey), model, r.cfg.BaseURL)
	default:
		return nil, core.NewError(core.ErrConfig, fmt.Sprintf("unsupported provider %q", provider), nil)
	}
}

// Close releases every cached client, ignoring individual close errors
// since shutdown should proceed best-effort.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		_ = c.Close()
	}
	r.clients = map[string]Client{}
}
