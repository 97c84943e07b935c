package dashboard

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/tally/internal/record"
)

// Registry holds the loaded dashboards by name. Safe for concurrent use;
// Replace swaps the whole set atomically.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Dashboard
	names  []string
	hash   string
}

// NewRegistry builds a registry from compiled dashboards.
func NewRegistry(dashboards []Dashboard) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(dashboards); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace swaps in a new dashboard set. Duplicate names are rejected and
// leave the registry unchanged.
func (r *Registry) Replace(dashboards []Dashboard) error {
	byName := make(map[string]Dashboard, len(dashboards))
	names := make([]string, 0, len(dashboards))
	for _, d := range dashboards {
		if _, dup := byName[d.Name]; dup {
			return fmt.Errorf("duplicate dashboard %q", d.Name)
		}
		byName[d.Name] = d
		names = append(names, d.Name)
	}
	sort.Strings(names)

	hash, err := Hash(dashboards)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName = byName
	r.names = names
	r.hash = hash
	return nil
}

// Get returns a dashboard by name.
func (r *Registry) Get(name string) (Dashboard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// List returns all dashboards sorted by name.
func (r *Registry) List() []Dashboard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Dashboard, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.byName[n])
	}
	return out
}

// Hash returns the content hash of the current dashboard set.
func (r *Registry) Hash() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hash
}

// Hash computes a content hash over a set of dashboards. The result does not
// depend on slice order.
func Hash(dashboards []Dashboard) (string, error) {
	set := make(map[string]any, len(dashboards))
	for _, d := range dashboards {
		set[d.Name] = canonicalDashboard(d)
	}
	h, err := record.DigestValue(record.DomainDashboard, set)
	if err != nil {
		return "", fmt.Errorf("hash dashboards: %w", err)
	}
	return h, nil
}

func canonicalDashboard(d Dashboard) map[string]any {
	panels := make([]any, 0, len(d.Panels))
	for _, p := range d.Panels {
		filter := make(map[string]any, len(p.Filter))
		for k, v := range p.Filter {
			filter[k] = v
		}
		panels = append(panels, map[string]any{
			"name":        p.Name,
			"title":       p.Title,
			"dataset":     p.Dataset,
			"measure":     p.Measure,
			"aggregation": string(p.Aggregation),
			"bucket":      string(p.Bucket),
			"range":       p.Range,
			"group_by":    p.GroupBy,
			"filter":      filter,
			"chart":       string(p.Chart),
			"trend":       p.Trend,
			"forecast":    p.Forecast,
		})
	}
	return map[string]any{
		"title":       d.Title,
		"description": d.Description,
		"panels":      panels,
	}
}
