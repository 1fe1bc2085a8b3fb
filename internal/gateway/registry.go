package gateway

import (
	"strings"

	"github.com/santuri/tikiti/internal/gateway/domain"
)

// Registry resolves gateway adapters by provider name. Verify support is
// discovered through interface assertion so push-only gateways stay honest.
type Registry struct {
	initiators map[string]domain.Initiator
	verifiers  map[string]domain.Verifier
}

func NewRegistry(initiators ...domain.Initiator) *Registry {
	registry := &Registry{
		initiators: map[string]domain.Initiator{},
		verifiers:  map[string]domain.Verifier{},
	}
	for _, initiator := range initiators {
		if initiator == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(initiator.Gateway()))
		if name == "" {
			continue
		}
		registry.initiators[name] = initiator
		if verifier, ok := initiator.(domain.Verifier); ok {
			registry.verifiers[name] = verifier
		}
	}
	return registry
}

func (r *Registry) Exists(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.initiators[normalize(name)]
	return ok
}

func (r *Registry) Initiator(name string) (domain.Initiator, error) {
	if r == nil {
		return nil, domain.ErrGatewayNotFound
	}
	initiator, ok := r.initiators[normalize(name)]
	if !ok {
		return nil, domain.ErrGatewayNotFound
	}
	return initiator, nil
}

func (r *Registry) Verifier(name string) (domain.Verifier, error) {
	if r == nil {
		return nil, domain.ErrGatewayNotFound
	}
	verifier, ok := r.verifiers[normalize(name)]
	if !ok {
		if _, exists := r.initiators[normalize(name)]; exists {
			return nil, domain.ErrVerifyUnsupported
		}
		return nil, domain.ErrGatewayNotFound
	}
	return verifier, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
