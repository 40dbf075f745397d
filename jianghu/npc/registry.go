package npc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry holds all NPC definitions. Definitions are treated as immutable
// once registered; lookups hand out the shared pointer.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates a registry holding defs.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{
		defs: make(map[string]*Definition),
	}
	r.Register(defs...)
	return r
}

// Register adds or replaces definitions. Entries without an id are skipped.
func (r *Registry) Register(defs ...Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range defs {
		if defs[i].ID == "" {
			continue
		}
		d := defs[i]
		r.defs[d.ID] = &d
	}
}

// LoadFromFile loads definitions from a YAML or JSON file, chosen by extension.
func (r *Registry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read npc file: %w", err)
	}
	if filepath.Ext(path) == ".json" {
		return r.LoadFromJSON(data)
	}
	return r.LoadFromYAML(data)
}

// LoadFromJSON loads definitions from raw JSON bytes.
func (r *Registry) LoadFromJSON(data []byte) error {
	var list []Definition
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse npc JSON: %w", err)
	}
	r.Register(list...)
	return nil
}

// LoadFromYAML loads definitions from raw YAML bytes.
func (r *Registry) LoadFromYAML(data []byte) error {
	var list []Definition
	if err := yaml.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse npc YAML: %w", err)
	}
	r.Register(list...)
	return nil
}

// Get returns a definition by id, or nil.
func (r *Registry) Get(id string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[id]
}

// ByName returns the first definition with the given display name.
func (r *Registry) ByName(name string) *Definition {
	for _, d := range r.All() {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// All returns every definition sorted by id.
func (r *Registry) All() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Available returns the definitions flagged available, sorted by id.
func (r *Registry) Available() []*Definition {
	var out []*Definition
	for _, d := range r.All() {
		if d.Available {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of registered definitions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
