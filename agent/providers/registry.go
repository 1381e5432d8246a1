package providers

import (
	"context"
	"fmt"

	"github.com/AzielCF/az-crm/agent/domain"
)

// Registry elige el proveedor según la configuración del agente.
type Registry struct {
	providers map[domain.Provider]domain.AIProvider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[domain.Provider]domain.AIProvider)}
}

func (r *Registry) Register(name domain.Provider, p domain.AIProvider) *Registry {
	r.providers[name] = p
	return r
}

func (r *Registry) Get(name domain.Provider) (domain.AIProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown ai provider %q", name)
	}
	return p, nil
}

// Generate envía la petición al proveedor indicado.
func (r *Registry) Generate(ctx context.Context, name domain.Provider, req domain.ChatRequest) (domain.ChatResponse, error) {
	p, err := r.Get(name)
	if err != nil {
		return domain.ChatResponse{}, err
	}
	return p.Chat(ctx, req)
}
