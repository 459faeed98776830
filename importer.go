package flowgraph

import "strings"

const (
	// ExtentParent keeps a nested node inside its parent on the canvas.
	ExtentParent = "parent"
	// DefaultCategory is used for modules and catalog entries without one.
	DefaultCategory = "default"
)

// SlotEdgeID names the structural edge from owner to slot module.
func SlotEdgeID(owner, slot string) string {
	return "edge-" + owner + "-to-" + slot
}

// SequenceEdgeID names a synthesized sibling ordering edge.
func SequenceEdgeID(source, target string) string {
	return "seq-" + source + "-" + target
}

// ReferenceEdgeID names the data edge derived from a reference parameter.
func ReferenceEdgeID(source, target, param string) string {
	return "ref-" + source + "-" + target + "-" + param
}

// ImportDocument flattens doc into editor nodes and typed edges. A document
// without a modules array yields an empty graph and an error diagnostic.
func ImportDocument(doc *Document, opts ...Option) (Graph, []Diagnostic) {
	o := buildOptions(opts...)
	imp := &importer{
		opts:    o,
		graph:   Graph{Nodes: []*GraphNode{}, Edges: []GraphEdge{}},
		emitted: map[string]*GraphNode{},
		slotIDs: map[string]bool{},
		linked:  map[[2]string]bool{},
	}
	if doc == nil || doc.Modules == nil {
		imp.add(DiagCodeMissingModules, SeverityError, "$", "", "modules", "workflow document has no modules array")
		o.Logger.Warn("import skipped: document has no modules array")
		return imp.graph, imp.diags
	}

	imp.level(doc.Modules, "", "$.modules")
	imp.referenceEdges()
	imp.sequenceEdges()

	imp.graph.Edges = append(imp.graph.Edges, imp.slotEdges...)
	imp.graph.Edges = append(imp.graph.Edges, imp.refEdges...)
	imp.graph.Edges = append(imp.graph.Edges, imp.seqEdges...)

	o.trace("import", map[string]any{
		"nodes":      len(imp.graph.Nodes),
		"slot_edges": len(imp.slotEdges),
		"ref_edges":  len(imp.refEdges),
		"seq_edges":  len(imp.seqEdges),
	})
	SortDiagnostics(imp.diags)
	return imp.graph, imp.diags
}

type importer struct {
	diagSink
	opts    Options
	graph   Graph
	emitted map[string]*GraphNode
	slotIDs map[string]bool
	levels  [][]string
	linked  map[[2]string]bool

	slotEdges []GraphEdge
	refEdges  []GraphEdge
	seqEdges  []GraphEdge
}

func (imp *importer) level(modules []*Module, parentID, path string) {
	idx := len(imp.levels)
	imp.levels = append(imp.levels, nil)
	var ids []string
	for i, m := range modules {
		if id, ok := imp.module(m, parentID, indexPath(path, i)); ok {
			ids = append(ids, id)
		}
	}
	imp.levels[idx] = ids
}

func (imp *importer) module(m *Module, parentID, path string) (string, bool) {
	if m == nil {
		imp.add(DiagCodeMissingField, SeverityWarning, path, "", "", "null module at %s skipped", path)
		return "", false
	}
	id := strings.TrimSpace(m.ModuleID)
	if id == "" {
		imp.add(DiagCodeMissingField, SeverityWarning, path, "", "module_id", "module at %s has no module_id and was skipped", path)
		return "", false
	}
	if _, dup := imp.emitted[id]; dup {
		imp.add(DiagCodeDuplicateModuleID, SeverityWarning, path, id, "module_id", "duplicate module id %q at %s skipped", id, path)
		return "", false
	}

	data := m.Clone()
	data.ModuleID = id
	data.Slots = nil
	data.Modules = nil
	if data.Meta == nil {
		data.Meta = &Meta{Title: id, Category: DefaultCategory}
	}

	node := &GraphNode{ID: id, Type: NodeKindCustom, Data: data}
	if m.IsComposited {
		node.Type = NodeKindComposite
	}
	if m.Position != nil {
		node.Position = *m.Position
	}
	if parentID != "" {
		node.ParentNode = parentID
		node.Extent = ExtentParent
		node.ExpandParent = true
	}
	imp.graph.Nodes = append(imp.graph.Nodes, node)
	imp.emitted[id] = node

	for _, slot := range m.Slots {
		slotPath := path + ".slots." + slot.Name
		if slot.Module == nil || strings.TrimSpace(slot.Module.ModuleID) == "" {
			imp.opts.trace("import.skip_slot", map[string]any{"module_id": id, "slot": slot.Name})
			continue
		}
		slotID := strings.TrimSpace(slot.Module.ModuleID)
		if slotID == id {
			imp.add(DiagCodeSelfSlot, SeverityError, slotPath, id, "slots", "module %s lists itself as slot %q", id, slot.Name)
			continue
		}
		if _, ok := imp.module(slot.Module, "", slotPath); !ok {
			continue
		}
		imp.slotIDs[slotID] = true
		imp.slotEdges = append(imp.slotEdges, GraphEdge{
			ID:           SlotEdgeID(id, slotID),
			Source:       id,
			Target:       slotID,
			SourceHandle: SlotHandlePrefix + slot.Name,
			Data:         EdgeData{SlotName: slot.Name},
		})
	}

	if m.IsComposited && m.Modules != nil {
		imp.level(m.Modules, id, path+".modules")
	}
	return id, true
}

func (imp *importer) referenceEdges() {
	for _, node := range imp.graph.Nodes {
		for _, pr := range ModuleReferences(node.Data) {
			source := strings.TrimSpace(pr.Reference.ModuleID)
			if source == node.ID {
				continue
			}
			if _, ok := imp.emitted[source]; !ok {
				imp.add(DiagCodeDanglingReference, SeverityWarning, "", node.ID, pr.Param,
					"parameter %q of module %s references unknown module %q", pr.Param, node.ID, source)
				continue
			}
			imp.refEdges = append(imp.refEdges, GraphEdge{
				ID:           ReferenceEdgeID(source, node.ID, pr.Param),
				Source:       source,
				Target:       node.ID,
				TargetHandle: pr.Param,
			})
			imp.linked[[2]string{source, node.ID}] = true
		}
	}
}

func (imp *importer) sequenceEdges() {
	for _, ids := range imp.levels {
		var prev string
		for _, id := range ids {
			if imp.slotIDs[id] {
				continue
			}
			if prev != "" && !imp.linked[[2]string{prev, id}] && !imp.linked[[2]string{id, prev}] {
				imp.seqEdges = append(imp.seqEdges, GraphEdge{
					ID:     SequenceEdgeID(prev, id),
					Source: prev,
					Target: id,
					Data:   EdgeData{IsSequence: true},
				})
			}
			prev = id
		}
	}
}
