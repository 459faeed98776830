package flowgraph

import (
	"sort"
	"strings"
)

// SortByExecutionOrder orders modules with Kahn's algorithm, breaking ties by
// original position. Each nesting level is sorted on its own using only the
// edges between its members. Cycles do not fail: the unresolved modules are
// appended by residual in-degree and a warning is returned.
//
// The input slice and its modules are never modified. When nothing moves the
// input slice is returned as is.
func SortByExecutionOrder(modules []*Module, edges []GraphEdge, opts ...Option) ([]*Module, []Diagnostic) {
	s := &sorter{opts: buildOptions(opts...), edges: edges}
	out, _ := s.level(modules, "$.modules")
	SortDiagnostics(s.diags)
	return out, s.diags
}

type sorter struct {
	diagSink
	opts  Options
	edges []GraphEdge
}

func (s *sorter) level(modules []*Module, path string) ([]*Module, bool) {
	ordered, changed := modules, false
	if len(modules) > 1 {
		ordered, changed = s.kahn(modules, path)
	}
	owned := changed
	for i, m := range ordered {
		next, nested := s.nested(m, indexPath(path, i))
		if !nested {
			continue
		}
		if !owned {
			ordered = append([]*Module(nil), ordered...)
			owned = true
		}
		ordered[i] = next
		changed = true
	}
	return ordered, changed
}

// nested sorts the children and slot subtrees of m, copying m only when
// something below it moved.
func (s *sorter) nested(m *Module, path string) (*Module, bool) {
	if m == nil {
		return m, false
	}
	children, changed := s.level(m.Modules, path+".modules")

	var slots Slots
	for i, slot := range m.Slots {
		next, moved := s.nested(slot.Module, path+".slots."+slot.Name)
		if !moved {
			continue
		}
		if slots == nil {
			slots = append(Slots(nil), m.Slots...)
		}
		slots[i].Module = next
	}
	if !changed && slots == nil {
		return m, false
	}
	cp := *m
	if changed {
		cp.Modules = children
	}
	if slots != nil {
		cp.Slots = slots
	}
	return &cp, true
}

func (s *sorter) kahn(modules []*Module, path string) ([]*Module, bool) {
	n := len(modules)
	index := make(map[string]int, n)
	for i, m := range modules {
		if m == nil || m.ModuleID == "" {
			continue
		}
		if _, dup := index[m.ModuleID]; !dup {
			index[m.ModuleID] = i
		}
	}

	adj := make([][]int, n)
	indeg := make([]int, n)
	internal := 0
	for _, e := range s.edges {
		u, ok := index[e.Source]
		if !ok {
			continue
		}
		v, ok := index[e.Target]
		if !ok {
			continue
		}
		adj[u] = append(adj[u], v)
		indeg[v]++
		internal++
	}
	if internal == 0 {
		return modules, false
	}
	for _, succ := range adj {
		sort.Ints(succ)
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	result := make([]*Module, 0, n)
	order := make([]int, 0, n)
	done := make([]bool, n)
	for head := 0; head < len(queue); head++ {
		u := queue[head]
		done[u] = true
		order = append(order, u)
		result = append(result, modules[u])
		for _, v := range adj[u] {
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	if len(result) < n {
		var rest []int
		for i := 0; i < n; i++ {
			if !done[i] {
				rest = append(rest, i)
			}
		}
		sort.SliceStable(rest, func(a, b int) bool {
			return indeg[rest[a]] < indeg[rest[b]]
		})
		ids := make([]string, 0, len(rest))
		for _, i := range rest {
			order = append(order, i)
			result = append(result, modules[i])
			ids = append(ids, modules[i].ModuleID)
		}
		s.add(DiagCodeExecutionCycle, SeverityWarning, path, "", "",
			"execution order cycle among %s; modules appended by residual dependency count", strings.Join(ids, ", "))
		s.opts.Logger.Warn("execution order cycle at %s: %s", path, strings.Join(ids, ", "))
	}

	for i, idx := range order {
		if idx != i {
			s.opts.trace("sort.level", map[string]any{"path": path, "modules": n, "edges": internal})
			return result, true
		}
	}
	return modules, false
}
