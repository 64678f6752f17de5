package collect

import (
	"github.com/rotisserie/eris"

	"github.com/bigrise-data/bigrise/internal/config"
	"github.com/bigrise-data/bigrise/pkg/bigfinance"
	"github.com/bigrise-data/bigrise/pkg/naver"
	"github.com/bigrise-data/bigrise/pkg/riseetf"
)

// Clients bundles the site clients the collectors ride on. Tests inject
// fakes here.
type Clients struct {
	News       naver.Client
	RiseETF    riseetf.Client
	BigFinance bigfinance.Client
}

// Registry maps collector names to their implementations.
type Registry struct {
	collectors map[string]Collector
	order      []string // insertion order for deterministic iteration
}

// NewRegistry creates a registry populated with all collectors.
func NewRegistry(cfg *config.Config, clients Clients) *Registry {
	r := &Registry{
		collectors: make(map[string]Collector),
	}
	r.Register(NewNewsCollector(cfg.Naver, clients.News))
	r.Register(NewRiseETFCollector(cfg.RiseETF, clients.RiseETF))
	r.Register(NewBigFinanceCollector(cfg.BigFinance, clients.BigFinance))
	return r
}

// Register adds a collector to the registry.
func (r *Registry) Register(c Collector) {
	if r.collectors == nil {
		r.collectors = make(map[string]Collector)
	}
	name := c.Name()
	r.collectors[name] = c
	r.order = append(r.order, name)
}

// Get returns a collector by name.
func (r *Registry) Get(name string) (Collector, error) {
	c, ok := r.collectors[name]
	if !ok {
		return nil, eris.Errorf("collect: unknown collector %q", name)
	}
	return c, nil
}

// Select returns the named collectors, or all of them when names is empty.
func (r *Registry) Select(names []string) ([]Collector, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	var result []Collector
	for _, name := range names {
		c, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// All returns all collectors in registration order.
func (r *Registry) All() []Collector {
	result := make([]Collector, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.collectors[name])
	}
	return result
}

// AllNames returns all registered collector names in registration order.
func (r *Registry) AllNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
