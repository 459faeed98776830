package catalog

import (
	"sort"
	"strings"
	"sync"

	flowgraph "github.com/goliatone/go-flowgraph"
	"gopkg.in/yaml.v3"
)

// Catalog is the in-memory set of node type definitions. It is safe for
// concurrent use; Replace swaps the whole set.
type Catalog struct {
	mu   sync.RWMutex
	defs []NodeTypeDefinition
}

func New(defs []NodeTypeDefinition) *Catalog {
	c := &Catalog{}
	c.Replace(defs)
	return c
}

// Parse decodes a YAML or JSON list of node type definitions.
func Parse(data []byte) ([]NodeTypeDefinition, error) {
	var defs []NodeTypeDefinition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, flowgraph.NewError(flowgraph.ErrCatalogLoad, "decode node type catalog", err, nil)
	}
	for i, def := range defs {
		if strings.TrimSpace(def.ModuleType) == "" {
			return nil, flowgraph.NewError(flowgraph.ErrCatalogLoad, "node type definition is missing module_type", nil,
				map[string]any{"index": i})
		}
	}
	return defs, nil
}

func (c *Catalog) Replace(defs []NodeTypeDefinition) {
	cp := append([]NodeTypeDefinition(nil), defs...)
	c.mu.Lock()
	c.defs = cp
	c.mu.Unlock()
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// Definitions returns a snapshot of every definition in load order.
func (c *Catalog) Definitions() []NodeTypeDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]NodeTypeDefinition(nil), c.defs...)
}

// Find looks up a definition by type. With a workflow id, both the type and
// the workflow id must match.
func (c *Catalog) Find(moduleType, workflowID string) (NodeTypeDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, def := range c.defs {
		if def.ModuleType != moduleType {
			continue
		}
		if workflowID != "" && def.WorkflowID != workflowID {
			continue
		}
		return def, true
	}
	return NodeTypeDefinition{}, false
}

// Categories groups definitions by meta category keeping load order inside
// each group.
func (c *Catalog) Categories() map[string][]NodeTypeDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := map[string][]NodeTypeDefinition{}
	for _, def := range c.defs {
		cat := def.Category()
		out[cat] = append(out[cat], def)
	}
	return out
}

func (c *Catalog) CategoryNames() []string {
	cats := c.Categories()
	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
