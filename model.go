package flowgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	ModuleTypeWorkflow      = "workflow"
	ModuleTypeComposite     = "composite"
	ModuleTypeSlot          = "slot"
	ModuleTypeDynamicInput  = "DynamicInputNode"
	ModuleTypeDynamicOutput = "DynamicOutputNode"

	ModuleTypeLoop     = "loop"
	ModuleTypeIfElse   = "IfElseBlock"
	ModuleTypeSelector = "selector"
)

// SlotHandlePrefix marks an edge source handle as a structural slot attachment.
const SlotHandlePrefix = "slot-"

// IsControlFlowType reports whether moduleType owns branches through slots.
func IsControlFlowType(moduleType string) bool {
	switch moduleType {
	case ModuleTypeLoop, ModuleTypeIfElse, ModuleTypeSelector:
		return true
	}
	return false
}

// NodeKind is the rendering variant of a graph node.
type NodeKind string

const (
	NodeKindCustom    NodeKind = "custom"
	NodeKindComposite NodeKind = "composite"
	NodeKindSlot      NodeKind = "slot"
)

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type Meta struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// ParamDef declares one input or output of a module.
type ParamDef struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
}

// Inputs holds declared inputs and the values bound to them. Parameter values
// are opaque: literals, plain scalars or reference objects.
type Inputs struct {
	InputDefs       []ParamDef     `json:"input_defs" yaml:"input_defs"`
	InputParameters map[string]any `json:"input_parameters,omitempty" yaml:"input_parameters,omitempty"`
}

func (in Inputs) MarshalJSON() ([]byte, error) {
	type alias Inputs
	out := alias(in)
	if out.InputDefs == nil {
		out.InputDefs = []ParamDef{}
	}
	return json.Marshal(out)
}

type Outputs struct {
	OutputDefs []ParamDef `json:"output_defs" yaml:"output_defs"`
}

func (o Outputs) MarshalJSON() ([]byte, error) {
	type alias Outputs
	out := alias(o)
	if out.OutputDefs == nil {
		out.OutputDefs = []ParamDef{}
	}
	return json.Marshal(out)
}

// Module is one node of the persisted document tree. Fields the model does not
// know about are kept in Extra so documents survive an import/export cycle.
type Module struct {
	ModuleID     string
	ModuleType   string
	IsComposited bool
	WorkflowID   string
	Meta         *Meta
	Inputs       Inputs
	Outputs      Outputs
	Position     *Position
	Slots        Slots
	Modules      []*Module
	Extra        map[string]json.RawMessage
}

var moduleKeys = map[string]struct{}{
	"module_id":     {},
	"module_type":   {},
	"is_composited": {},
	"workflow_id":   {},
	"meta":          {},
	"inputs":        {},
	"outputs":       {},
	"position":      {},
	"slots":         {},
	"modules":       {},
}

// Title returns the display title, falling back to the module id.
func (m *Module) Title() string {
	if m == nil {
		return ""
	}
	if m.Meta != nil && strings.TrimSpace(m.Meta.Title) != "" {
		return m.Meta.Title
	}
	return m.ModuleID
}

func (m *Module) UnmarshalJSON(data []byte) error {
	aux := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var out Module
	fields := []struct {
		key string
		dst any
	}{
		{"module_id", &out.ModuleID},
		{"module_type", &out.ModuleType},
		{"is_composited", &out.IsComposited},
		{"workflow_id", &out.WorkflowID},
		{"meta", &out.Meta},
		{"inputs", &out.Inputs},
		{"outputs", &out.Outputs},
		{"position", &out.Position},
		{"slots", &out.Slots},
		{"modules", &out.Modules},
	}
	for _, f := range fields {
		raw, ok := aux[f.key]
		if !ok {
			continue
		}
		delete(aux, f.key)
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return fmt.Errorf("module %s: %w", f.key, err)
		}
	}
	if len(aux) > 0 {
		out.Extra = aux
	}
	*m = out
	return nil
}

func (m Module) MarshalJSON() ([]byte, error) {
	fields := []field{
		{"module_id", m.ModuleID},
		{"module_type", m.ModuleType},
		{"is_composited", m.IsComposited},
	}
	if m.WorkflowID != "" {
		fields = append(fields, field{"workflow_id", m.WorkflowID})
	}
	if m.Meta != nil {
		fields = append(fields, field{"meta", m.Meta})
	}
	fields = append(fields, field{"inputs", m.Inputs}, field{"outputs", m.Outputs})
	if m.Position != nil {
		fields = append(fields, field{"position", m.Position})
	}
	if len(m.Slots) > 0 {
		fields = append(fields, field{"slots", m.Slots})
	}
	if m.IsComposited || len(m.Modules) > 0 {
		children := m.Modules
		if children == nil {
			children = []*Module{}
		}
		fields = append(fields, field{"modules", children})
	}
	if len(m.Extra) > 0 {
		keys := make([]string, 0, len(m.Extra))
		for k := range m.Extra {
			if _, known := moduleKeys[k]; known {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, field{k, m.Extra[k]})
		}
	}
	return marshalOrdered(fields)
}

// Slot is a named structural attachment point holding exactly one module.
type Slot struct {
	Name   string
	Module *Module
}

// Slots is an ordered association list; JSON object key order is preserved.
type Slots []Slot

// Get returns the module attached under name.
func (s Slots) Get(name string) (*Module, bool) {
	for _, slot := range s {
		if slot.Name == name {
			return slot.Module, true
		}
	}
	return nil, false
}

// Set attaches m under name, replacing an existing entry in place.
func (s *Slots) Set(name string, m *Module) {
	for i := range *s {
		if (*s)[i].Name == name {
			(*s)[i].Module = m
			return
		}
	}
	*s = append(*s, Slot{Name: name, Module: m})
}

func (s Slots) Names() []string {
	names := make([]string, 0, len(s))
	for _, slot := range s {
		names = append(names, slot.Name)
	}
	return names
}

func (s Slots) MarshalJSON() ([]byte, error) {
	fields := make([]field, 0, len(s))
	for _, slot := range s {
		fields = append(fields, field{slot.Name, slot.Module})
	}
	return marshalOrdered(fields)
}

func (s *Slots) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("slots must be an object, got %v", tok)
	}
	var out Slots
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("invalid slot key %v", keyTok)
		}
		var mod *Module
		if err := dec.Decode(&mod); err != nil {
			return fmt.Errorf("slot %s: %w", name, err)
		}
		out = append(out, Slot{Name: name, Module: mod})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// Document is the persisted workflow wrapper around the top-level modules.
type Document struct {
	Version      string    `json:"version"`
	ModuleID     string    `json:"module_id"`
	ModuleType   string    `json:"module_type"`
	IsComposited bool      `json:"is_composited"`
	Meta         Meta      `json:"meta"`
	Inputs       Inputs    `json:"inputs"`
	Outputs      Outputs   `json:"outputs"`
	Modules      []*Module `json:"modules"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	type alias Document
	out := alias(d)
	if out.Modules == nil {
		out.Modules = []*Module{}
	}
	return json.Marshal(out)
}

// GraphNode is the flat editor representation of a module.
type GraphNode struct {
	ID           string   `json:"id"`
	Type         NodeKind `json:"type"`
	Position     Position `json:"position"`
	ParentNode   string   `json:"parentNode,omitempty"`
	Extent       string   `json:"extent,omitempty"`
	ExpandParent bool     `json:"expandParent,omitempty"`
	Data         *Module  `json:"data"`
}

// Composite reports whether the node may own nested modules.
func (n *GraphNode) Composite() bool {
	if n == nil {
		return false
	}
	if n.Data != nil {
		return n.Data.IsComposited
	}
	return n.Type == NodeKindComposite
}

// ModuleType returns the embedded module type, if any.
func (n *GraphNode) ModuleType() string {
	if n == nil || n.Data == nil {
		return ""
	}
	return n.Data.ModuleType
}

type EdgeData struct {
	IsSequence bool   `json:"isSequence,omitempty"`
	SlotName   string `json:"slotName,omitempty"`
}

type GraphEdge struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	SourceHandle string   `json:"sourceHandle,omitempty"`
	TargetHandle string   `json:"targetHandle,omitempty"`
	Data         EdgeData `json:"data"`
}

// SlotName returns the slot addressed by the edge source handle.
func (e GraphEdge) SlotName() (string, bool) {
	name, ok := strings.CutPrefix(e.SourceHandle, SlotHandlePrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// Graph is the editor state: nodes plus typed edges.
type Graph struct {
	Nodes []*GraphNode `json:"nodes"`
	Edges []GraphEdge  `json:"edges"`
}

func (g Graph) MarshalJSON() ([]byte, error) {
	type alias Graph
	out := alias(g)
	if out.Nodes == nil {
		out.Nodes = []*GraphNode{}
	}
	if out.Edges == nil {
		out.Edges = []GraphEdge{}
	}
	return json.Marshal(out)
}

// Node returns the node with id.
func (g Graph) Node(id string) (*GraphNode, bool) {
	for _, n := range g.Nodes {
		if n != nil && n.ID == id {
			return n, true
		}
	}
	return nil, false
}

type field struct {
	key   string
	value any
}

func marshalOrdered(fields []field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		raw, err := json.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", f.key, err)
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
