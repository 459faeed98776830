package flowgraph

import (
	"math"
	"strings"
)

// WorkflowIDPrefix prefixes generated document ids.
const WorkflowIDPrefix = "workflow_"

type slotRef struct {
	parentID string
	slotName string
}

// ExportGraph rebuilds the nested document from editor state. The graph is
// read only; node payloads are deep copied before they are emitted.
func ExportGraph(graph Graph, meta Meta, opts ...Option) (*Document, []Diagnostic) {
	o := buildOptions(opts...)
	ex := newExporter(graph, o)
	modules := ex.assemble()

	ordered, sortDiags := SortByExecutionOrder(modules, graph.Edges, opts...)
	ex.diags = append(ex.diags, sortDiags...)

	if strings.TrimSpace(meta.Title) == "" {
		meta.Title = DefaultWorkflowTitle
	}
	doc := &Document{
		Version:      o.Version,
		ModuleID:     WorkflowIDPrefix + o.NewID(),
		ModuleType:   ModuleTypeWorkflow,
		IsComposited: false,
		Meta:         meta,
		Inputs:       Inputs{InputDefs: []ParamDef{}},
		Outputs:      Outputs{OutputDefs: []ParamDef{}},
		Modules:      ordered,
	}
	ex.diags = append(ex.diags, BindWorkflowIO(doc)...)

	o.trace("export", map[string]any{
		"nodes":   len(graph.Nodes),
		"edges":   len(graph.Edges),
		"modules": len(doc.Modules),
	})
	SortDiagnostics(ex.diags)
	return doc, ex.diags
}

type exporter struct {
	diagSink
	opts        Options
	nodes       []*GraphNode
	nodeMap     map[string]*GraphNode
	edgeMap     map[string][]GraphEdge
	parentChild map[string][]string
	slotMap     map[string]slotRef
	forced      map[string]slotRef
	forcedOrder map[string][]string
	processed   map[string]bool
}

func newExporter(graph Graph, o Options) *exporter {
	ex := &exporter{
		opts:        o,
		nodeMap:     map[string]*GraphNode{},
		edgeMap:     map[string][]GraphEdge{},
		parentChild: map[string][]string{},
		slotMap:     map[string]slotRef{},
		forced:      map[string]slotRef{},
		forcedOrder: map[string][]string{},
		processed:   map[string]bool{},
	}
	for i, n := range graph.Nodes {
		if n == nil || strings.TrimSpace(n.ID) == "" {
			ex.add(DiagCodeInvalidNode, SeverityWarning, indexPath("$.nodes", i), "", "id", "node at index %d has no id and was skipped", i)
			continue
		}
		if _, dup := ex.nodeMap[n.ID]; dup {
			ex.add(DiagCodeDuplicateModuleID, SeverityWarning, indexPath("$.nodes", i), n.ID, "id", "duplicate node id %q skipped", n.ID)
			continue
		}
		ex.nodeMap[n.ID] = n
		ex.nodes = append(ex.nodes, n)
	}
	for _, n := range ex.nodes {
		parent := n.ParentNode
		if parent == "" || parent == n.ID {
			continue
		}
		if _, ok := ex.nodeMap[parent]; ok {
			ex.parentChild[parent] = append(ex.parentChild[parent], n.ID)
		}
	}
	for _, e := range graph.Edges {
		if _, ok := ex.nodeMap[e.Source]; !ok {
			continue
		}
		if _, ok := ex.nodeMap[e.Target]; !ok {
			continue
		}
		ex.edgeMap[e.Source] = append(ex.edgeMap[e.Source], e)
		name, ok := e.SlotName()
		if !ok || e.Source == e.Target {
			continue
		}
		if _, taken := ex.slotMap[e.Target]; !taken {
			ex.slotMap[e.Target] = slotRef{parentID: e.Source, slotName: name}
		}
	}
	ex.inferForcedSlots()
	return ex
}

// inferForcedSlots attaches composite children of control-flow nodes to the
// slot implied by the node type and their placement.
func (ex *exporter) inferForcedSlots() {
	for _, parent := range ex.nodes {
		kind := parent.ModuleType()
		if !IsControlFlowType(kind) {
			continue
		}
		used := map[string]bool{}
		for _, e := range ex.edgeMap[parent.ID] {
			if name, ok := e.SlotName(); ok {
				if ref, owned := ex.slotMap[e.Target]; owned && ref.parentID == parent.ID {
					used[name] = true
				}
			}
		}
		for _, childID := range ex.parentChild[parent.ID] {
			child := ex.nodeMap[childID]
			if !child.Composite() {
				continue
			}
			var name string
			switch kind {
			case ModuleTypeLoop:
				name = "body"
			case ModuleTypeIfElse:
				name = "else"
				if child.Position.Y < parent.Position.Y {
					name = "if"
				}
			case ModuleTypeSelector:
				if _, explicit := ex.slotMap[childID]; explicit || used["default"] {
					continue
				}
				name = "default"
			}
			if explicit, ok := ex.slotMap[childID]; ok && explicit.parentID == parent.ID && explicit.slotName == name {
				used[name] = false
			}
			if used[name] {
				ex.add(DiagCodeSlotConflict, SeverityWarning, "", childID, "slots",
					"slot %q of %s is already filled; %s stays an ordinary child", name, parent.ID, childID)
				continue
			}
			used[name] = true
			ex.forced[childID] = slotRef{parentID: parent.ID, slotName: name}
			ex.forcedOrder[parent.ID] = append(ex.forcedOrder[parent.ID], childID)
		}
	}
}

// owner returns the slot owner of id. Forced membership wins over edges.
func (ex *exporter) owner(id string) (slotRef, bool) {
	if ref, ok := ex.forced[id]; ok {
		return ref, true
	}
	ref, ok := ex.slotMap[id]
	return ref, ok
}

func (ex *exporter) assemble() []*Module {
	modules := []*Module{}
	for _, n := range ex.nodes {
		if ex.processed[n.ID] {
			continue
		}
		if _, owned := ex.owner(n.ID); owned {
			continue
		}
		if parent := n.ParentNode; parent != "" && parent != n.ID {
			if _, ok := ex.nodeMap[parent]; ok {
				continue
			}
		}
		if m := ex.extract(n.ID, false); m != nil {
			modules = append(modules, m)
		}
	}
	for _, n := range ex.nodes {
		if ex.processed[n.ID] {
			continue
		}
		ex.add(DiagCodeOrphanNode, SeverityWarning, "", n.ID, "",
			"node %s is not reachable from its parent and was exported at top level", n.ID)
		if m := ex.extract(n.ID, true); m != nil {
			modules = append(modules, m)
		}
	}
	return modules
}

func (ex *exporter) extract(id string, force bool) *Module {
	if ex.processed[id] {
		return nil
	}
	node, ok := ex.nodeMap[id]
	if !ok {
		return nil
	}
	if ref, owned := ex.owner(id); owned && !force && !ex.processed[ref.parentID] {
		return nil
	}
	ex.processed[id] = true

	mod := node.Data.Clone()
	if mod == nil {
		mod = &Module{ModuleType: ModuleTypeComposite, IsComposited: node.Type == NodeKindComposite}
	}
	mod.ModuleID = id
	mod.Position = roundPosition(node.Position)
	mod.Slots = nil
	mod.Modules = nil

	for _, e := range ex.edgeMap[id] {
		name, ok := e.SlotName()
		if !ok {
			continue
		}
		if ref, owned := ex.owner(e.Target); !owned || ref.parentID != id || ref.slotName != name {
			continue
		}
		if child := ex.extract(e.Target, false); child != nil {
			mod.Slots.Set(name, child)
		}
	}
	for _, childID := range ex.forcedOrder[id] {
		if ex.processed[childID] {
			continue
		}
		if child := ex.extract(childID, false); child != nil {
			mod.Slots.Set(ex.forced[childID].slotName, child)
		}
	}

	if mod.IsComposited {
		mod.Modules = []*Module{}
		for _, childID := range ex.parentChild[id] {
			if child := ex.extract(childID, false); child != nil {
				mod.Modules = append(mod.Modules, child)
			}
		}
	}
	return mod
}

func roundPosition(p Position) *Position {
	return &Position{X: round2(p.X), Y: round2(p.Y)}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
