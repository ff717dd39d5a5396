package transport

import (
	"fmt"
	"sync"

	"github.com/conclavehq/conclave/pkg/candid"
)

// Resolver maps a remote process identity to a dialable gRPC address.
type Resolver interface {
	// Resolve returns the address for the target principal.
	Resolve(target candid.Principal) (string, error)
}

// StaticResolver resolves targets from a fixed endpoint table keyed by the
// principal's textual form.
type StaticResolver struct {
	mu        sync.RWMutex
	endpoints map[string]string
}

// NewStaticResolver builds a resolver over the given endpoint table.
func NewStaticResolver(endpoints map[string]string) *StaticResolver {
	table := make(map[string]string, len(endpoints))
	for k, v := range endpoints {
		table[k] = v
	}
	return &StaticResolver{endpoints: table}
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(target candid.Principal) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.endpoints[target.String()]
	if !ok {
		return "", fmt.Errorf("no endpoint configured for %s", target)
	}
	return addr, nil
}

// Set adds or replaces the endpoint for a principal.
func (r *StaticResolver) Set(target candid.Principal, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[target.String()] = addr
}
