package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	flowgraph "github.com/goliatone/go-flowgraph"
	"gopkg.in/yaml.v3"
)

// NodeTypeDefinition describes a node type offered by the palette.
type NodeTypeDefinition struct {
	ModuleType   string            `json:"module_type" yaml:"module_type"`
	WorkflowID   string            `json:"workflow_id,omitempty" yaml:"workflow_id,omitempty"`
	IsComposited bool              `json:"is_composited" yaml:"is_composited"`
	Meta         flowgraph.Meta    `json:"meta" yaml:"meta"`
	Inputs       flowgraph.Inputs  `json:"inputs" yaml:"inputs"`
	Outputs      flowgraph.Outputs `json:"outputs" yaml:"outputs"`
	Slots        SlotDefinitions   `json:"slots,omitempty" yaml:"slots,omitempty"`
}

// Category returns the palette category, "default" when unset.
func (d NodeTypeDefinition) Category() string {
	if d.Meta.Category == "" {
		return flowgraph.DefaultCategory
	}
	return d.Meta.Category
}

// SlotDefinition seeds the slot module synthesized for a new node.
type SlotDefinition struct {
	Meta    *flowgraph.Meta    `json:"meta,omitempty" yaml:"meta,omitempty"`
	Inputs  *flowgraph.Inputs  `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs *flowgraph.Outputs `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

type NamedSlot struct {
	Name       string
	Definition SlotDefinition
}

// SlotDefinitions keeps declaration order, which drives slot node layout.
type SlotDefinitions []NamedSlot

func (s SlotDefinitions) Get(name string) (SlotDefinition, bool) {
	for _, slot := range s {
		if slot.Name == name {
			return slot.Definition, true
		}
	}
	return SlotDefinition{}, false
}

func (s *SlotDefinitions) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("slots must be a mapping (line %d)", value.Line)
	}
	out := make(SlotDefinitions, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var name string
		if err := value.Content[i].Decode(&name); err != nil {
			return err
		}
		var def SlotDefinition
		if err := value.Content[i+1].Decode(&def); err != nil {
			return fmt.Errorf("slot %s: %w", name, err)
		}
		out = append(out, NamedSlot{Name: name, Definition: def})
	}
	*s = out
	return nil
}

func (s SlotDefinitions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, slot := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(slot.Name)
		if err != nil {
			return nil, err
		}
		def, err := json.Marshal(slot.Definition)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(def)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
