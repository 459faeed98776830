package flowgraph

import "encoding/json"

// Clone returns a deep copy of the module subtree.
func (m *Module) Clone() *Module {
	if m == nil {
		return nil
	}
	out := &Module{
		ModuleID:     m.ModuleID,
		ModuleType:   m.ModuleType,
		IsComposited: m.IsComposited,
		WorkflowID:   m.WorkflowID,
		Inputs:       m.Inputs.Clone(),
		Outputs:      m.Outputs.Clone(),
	}
	if m.Meta != nil {
		meta := *m.Meta
		out.Meta = &meta
	}
	if m.Position != nil {
		pos := *m.Position
		out.Position = &pos
	}
	if m.Slots != nil {
		out.Slots = make(Slots, len(m.Slots))
		for i, slot := range m.Slots {
			out.Slots[i] = Slot{Name: slot.Name, Module: slot.Module.Clone()}
		}
	}
	out.Modules = cloneModules(m.Modules)
	if m.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

func cloneModules(in []*Module) []*Module {
	if in == nil {
		return nil
	}
	out := make([]*Module, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

func (in Inputs) Clone() Inputs {
	return Inputs{
		InputDefs:       cloneParamDefs(in.InputDefs),
		InputParameters: CloneParams(in.InputParameters),
	}
}

func (o Outputs) Clone() Outputs {
	return Outputs{OutputDefs: cloneParamDefs(o.OutputDefs)}
}

func cloneParamDefs(in []ParamDef) []ParamDef {
	if in == nil {
		return nil
	}
	out := make([]ParamDef, len(in))
	for i, def := range in {
		def.Default = cloneValue(def.Default)
		out[i] = def
	}
	return out
}

// CloneParams deep copies a parameter map.
func CloneParams(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return CloneParams(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	case json.RawMessage:
		return append(json.RawMessage(nil), typed...)
	default:
		return v
	}
}

func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Inputs = d.Inputs.Clone()
	out.Outputs = d.Outputs.Clone()
	out.Modules = cloneModules(d.Modules)
	return &out
}

func (n *GraphNode) Clone() *GraphNode {
	if n == nil {
		return nil
	}
	out := *n
	out.Data = n.Data.Clone()
	return &out
}

func (g Graph) Clone() Graph {
	out := Graph{}
	if g.Nodes != nil {
		out.Nodes = make([]*GraphNode, len(g.Nodes))
		for i, n := range g.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	if g.Edges != nil {
		out.Edges = append([]GraphEdge(nil), g.Edges...)
	}
	return out
}
