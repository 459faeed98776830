package catalog

import (
	"encoding/json"
	"fmt"

	flowgraph "github.com/goliatone/go-flowgraph"
	"github.com/google/uuid"
)

const (
	// SlotSpacing is the horizontal gap between synthesized slot nodes.
	SlotSpacing = 150.0
	// SlotOffsetY places slot nodes below their owner.
	SlotOffsetY = 150.0

	slotCategory = "slot"
)

// Factory creates editor nodes from catalog definitions.
type Factory struct {
	catalog *Catalog
	newID   func() string
	logger  flowgraph.Logger
}

type FactoryOption func(*Factory)

func WithIDGenerator(fn func() string) FactoryOption {
	return func(f *Factory) {
		if fn != nil {
			f.newID = fn
		}
	}
}

func WithFactoryLogger(logger flowgraph.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = flowgraph.NormalizeLogger(logger)
	}
}

func NewFactory(c *Catalog, opts ...FactoryOption) *Factory {
	f := &Factory{
		catalog: c,
		newID:   uuid.NewString,
		logger:  flowgraph.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

type nodeConfig struct {
	workflowID string
	moduleID   string
	mutate     []func(*flowgraph.Module)
}

type NodeOption func(*nodeConfig)

// ForWorkflow selects the definition registered for a specific sub-workflow.
func ForWorkflow(workflowID string) NodeOption {
	return func(c *nodeConfig) {
		c.workflowID = workflowID
	}
}

// WithModuleID overrides the generated node id.
func WithModuleID(id string) NodeOption {
	return func(c *nodeConfig) {
		c.moduleID = id
	}
}

// WithData adjusts the module payload after defaults are applied.
func WithData(fn func(*flowgraph.Module)) NodeOption {
	return func(c *nodeConfig) {
		if fn != nil {
			c.mutate = append(c.mutate, fn)
		}
	}
}

// NodeBundle is a node plus the slot nodes and edges created for it.
type NodeBundle struct {
	Node      *flowgraph.GraphNode
	SlotNodes []*flowgraph.GraphNode
	Edges     []flowgraph.GraphEdge
}

// NewNode builds a node for moduleType. Slot payloads are embedded in the
// node data but no slot nodes are created.
func (f *Factory) NewNode(moduleType string, pos flowgraph.Position, opts ...NodeOption) (*flowgraph.GraphNode, error) {
	node, def, err := f.baseNode(moduleType, pos, opts...)
	if err != nil {
		return nil, err
	}
	f.attachSlotData(node, def)
	return node, nil
}

// NewNodeWithSlots builds a node together with one slot node and slot edge
// per declared slot.
func (f *Factory) NewNodeWithSlots(moduleType string, pos flowgraph.Position, opts ...NodeOption) (NodeBundle, error) {
	node, def, err := f.baseNode(moduleType, pos, opts...)
	if err != nil {
		return NodeBundle{}, err
	}
	bundle := NodeBundle{Node: node}
	if len(def.Slots) == 0 {
		return bundle, nil
	}
	f.attachSlotData(node, def)

	total := len(def.Slots)
	for i, slot := range def.Slots {
		slotNode, err := f.SlotNode(node, slot.Name, SlotPosition(pos, i, total))
		if err != nil {
			return NodeBundle{}, err
		}
		bundle.SlotNodes = append(bundle.SlotNodes, slotNode)
		bundle.Edges = append(bundle.Edges, flowgraph.GraphEdge{
			ID:           flowgraph.SlotEdgeID(node.ID, slotNode.ID),
			Source:       node.ID,
			Target:       slotNode.ID,
			SourceHandle: flowgraph.SlotHandlePrefix + slot.Name,
			Data:         flowgraph.EdgeData{SlotName: slot.Name},
		})
	}
	f.logger.Debug("created %s with %d slots", node.ID, total)
	return bundle, nil
}

// SlotNode materializes the slot payload embedded in parent as its own node.
func (f *Factory) SlotNode(parent *flowgraph.GraphNode, slotName string, pos flowgraph.Position) (*flowgraph.GraphNode, error) {
	if parent == nil || parent.Data == nil {
		return nil, flowgraph.NewError(flowgraph.ErrUnknownSlot, fmt.Sprintf("slot %s has no owner", slotName), nil, nil)
	}
	slot, ok := parent.Data.Slots.Get(slotName)
	if !ok || slot == nil {
		return nil, flowgraph.NewError(flowgraph.ErrUnknownSlot,
			fmt.Sprintf("slot %s does not exist on node %s", slotName, parent.ID), nil,
			map[string]any{"node_id": parent.ID, "slot": slotName})
	}
	data := slot.Clone()
	data.Position = &flowgraph.Position{X: pos.X, Y: pos.Y}
	return &flowgraph.GraphNode{
		ID:           data.ModuleID,
		Type:         flowgraph.NodeKindSlot,
		Position:     pos,
		ExpandParent: true,
		Data:         data,
	}, nil
}

// NewEdge creates a plain edge with a unique id.
func (f *Factory) NewEdge(source, target, sourceHandle, targetHandle string, data flowgraph.EdgeData) flowgraph.GraphEdge {
	return flowgraph.GraphEdge{
		ID:           "edge-" + source + "-" + target + "-" + f.newID(),
		Source:       source,
		Target:       target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
		Data:         data,
	}
}

// SlotPosition lays out slot i of total centered below the owner.
func SlotPosition(parent flowgraph.Position, index, total int) flowgraph.Position {
	return flowgraph.Position{
		X: parent.X + (float64(index)-float64(total)/2+0.5)*SlotSpacing,
		Y: parent.Y + SlotOffsetY,
	}
}

func (f *Factory) baseNode(moduleType string, pos flowgraph.Position, opts ...NodeOption) (*flowgraph.GraphNode, NodeTypeDefinition, error) {
	cfg := &nodeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if f.catalog == nil {
		return nil, NodeTypeDefinition{}, flowgraph.NewError(flowgraph.ErrUnknownNodeType, "node catalog is not loaded", nil, nil)
	}
	def, ok := f.catalog.Find(moduleType, cfg.workflowID)
	if !ok {
		msg := fmt.Sprintf("no node type definition for %s", moduleType)
		if cfg.workflowID != "" {
			msg += fmt.Sprintf(" (workflow %s)", cfg.workflowID)
		}
		return nil, NodeTypeDefinition{}, flowgraph.NewError(flowgraph.ErrUnknownNodeType, msg, nil,
			map[string]any{"module_type": moduleType, "workflow_id": cfg.workflowID})
	}

	id := cfg.moduleID
	if id == "" {
		id = moduleType + "-" + f.newID()
	}
	meta := def.Meta
	data := &flowgraph.Module{
		ModuleID:     id,
		ModuleType:   def.ModuleType,
		IsComposited: def.IsComposited,
		Meta:         &meta,
		Inputs:       def.Inputs.Clone(),
		Outputs:      def.Outputs.Clone(),
		Position:     &flowgraph.Position{X: pos.X, Y: pos.Y},
	}
	if data.IsComposited {
		data.Modules = []*flowgraph.Module{}
	}
	if def.ModuleType == flowgraph.ModuleTypeWorkflow {
		data.WorkflowID = cfg.workflowID
		if data.WorkflowID == "" {
			data.WorkflowID = def.WorkflowID
		}
		data.Extra = map[string]json.RawMessage{"is_workflow_node": json.RawMessage("true")}
	}
	for _, fn := range cfg.mutate {
		fn(data)
	}

	kind := flowgraph.NodeKindCustom
	if def.IsComposited {
		kind = flowgraph.NodeKindComposite
	}
	return &flowgraph.GraphNode{
		ID:           data.ModuleID,
		Type:         kind,
		Position:     pos,
		ExpandParent: true,
		Data:         data,
	}, def, nil
}

func (f *Factory) attachSlotData(node *flowgraph.GraphNode, def NodeTypeDefinition) {
	for _, slot := range def.Slots {
		node.Data.Slots.Set(slot.Name, f.slotModule(slot))
	}
}

func (f *Factory) slotModule(slot NamedSlot) *flowgraph.Module {
	meta := flowgraph.Meta{
		Title:       slot.Name + " slot",
		Description: slot.Name + " slot",
		Category:    slotCategory,
	}
	if m := slot.Definition.Meta; m != nil {
		if m.Title != "" {
			meta.Title = m.Title
		}
		if m.Description != "" {
			meta.Description = m.Description
		}
		if m.Category != "" {
			meta.Category = m.Category
		}
	}
	mod := &flowgraph.Module{
		ModuleID:     "slot-" + slot.Name + "-" + f.newID(),
		ModuleType:   flowgraph.ModuleTypeSlot,
		IsComposited: true,
		Meta:         &meta,
		Inputs:       flowgraph.Inputs{InputDefs: []flowgraph.ParamDef{}},
		Outputs:      flowgraph.Outputs{OutputDefs: []flowgraph.ParamDef{}},
		Modules:      []*flowgraph.Module{},
	}
	if slot.Definition.Inputs != nil {
		mod.Inputs = slot.Definition.Inputs.Clone()
	}
	if slot.Definition.Outputs != nil {
		mod.Outputs = slot.Definition.Outputs.Clone()
	}
	return mod
}
