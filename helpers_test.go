package flowgraph

func mod(id, moduleType string) *Module {
	return &Module{
		ModuleID:   id,
		ModuleType: moduleType,
		Meta:       &Meta{Title: id},
	}
}

func compositeMod(id, moduleType string, children ...*Module) *Module {
	m := mod(id, moduleType)
	m.IsComposited = true
	m.Modules = append([]*Module{}, children...)
	return m
}

func at(m *Module, x, y float64) *Module {
	m.Position = &Position{X: x, Y: y}
	return m
}

func ids(modules []*Module) []string {
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		out = append(out, m.ModuleID)
	}
	return out
}

func edge(source, target string) GraphEdge {
	return GraphEdge{ID: source + "->" + target, Source: source, Target: target}
}

func slotEdge(source, target, slot string) GraphEdge {
	return GraphEdge{
		ID:           SlotEdgeID(source, target),
		Source:       source,
		Target:       target,
		SourceHandle: SlotHandlePrefix + slot,
		Data:         EdgeData{SlotName: slot},
	}
}

func node(id, moduleType string, composite bool, x, y float64) *GraphNode {
	kind := NodeKindCustom
	if composite {
		kind = NodeKindComposite
	}
	return &GraphNode{
		ID:       id,
		Type:     kind,
		Position: Position{X: x, Y: y},
		Data: &Module{
			ModuleID:     id,
			ModuleType:   moduleType,
			IsComposited: composite,
			Meta:         &Meta{Title: id},
		},
	}
}

func child(n *GraphNode, parent string) *GraphNode {
	n.ParentNode = parent
	n.Extent = ExtentParent
	n.ExpandParent = true
	return n
}

func diagCodes(diags []Diagnostic) []string {
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func edgesBy(edges []GraphEdge, keep func(GraphEdge) bool) []string {
	var out []string
	for _, e := range edges {
		if keep(e) {
			out = append(out, e.Source+"->"+e.Target)
		}
	}
	return out
}

func isSequence(e GraphEdge) bool { return e.Data.IsSequence }

func isSlot(e GraphEdge) bool {
	_, ok := e.SlotName()
	return ok
}
