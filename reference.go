package flowgraph

import (
	"sort"
	"strings"
)

const (
	ValueTypeReference = "reference"
	ValueTypeRef       = "ref"
	ValueTypeLiteral   = "literal"
)

// Reference points a parameter at the output of another module.
type Reference struct {
	ModuleID  string `json:"moduleID"`
	NodeTitle string `json:"nodeTitle,omitempty"`
	Name      string `json:"name,omitempty"`
	Property  string `json:"property,omitempty"`
}

// Value renders the reference in its persisted parameter form.
func (r Reference) Value() map[string]any {
	content := map[string]any{"moduleID": r.ModuleID}
	if r.NodeTitle != "" {
		content["nodeTitle"] = r.NodeTitle
	}
	if r.Name != "" {
		content["name"] = r.Name
	}
	if r.Property != "" {
		content["property"] = r.Property
	}
	return map[string]any{"type": ValueTypeReference, "content": content}
}

// IsReference reports whether v is a typed reference value with content.
func IsReference(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	switch stringField(obj, "type") {
	case ValueTypeReference, ValueTypeRef:
	default:
		return false
	}
	content, ok := obj["content"]
	return ok && content != nil
}

// ParseReference extracts the reference carried by v.
func ParseReference(v any) (Reference, bool) {
	if !IsReference(v) {
		return Reference{}, false
	}
	content, ok := v.(map[string]any)["content"].(map[string]any)
	if !ok {
		return Reference{}, false
	}
	ref := Reference{
		ModuleID:  stringField(content, "moduleID"),
		NodeTitle: stringField(content, "nodeTitle"),
		Name:      stringField(content, "name"),
		Property:  stringField(content, "property"),
	}
	return ref, true
}

// NormalizeReference rewrites the "ref" alias to "reference". Other values are
// returned unchanged.
func NormalizeReference(v any) any {
	if !IsReference(v) {
		return v
	}
	obj := CloneParams(v.(map[string]any))
	obj["type"] = ValueTypeReference
	return obj
}

// FormatReference renders a reference for display as "<title> · <name>.<property>".
func FormatReference(v any) string {
	ref, ok := ParseReference(v)
	if !ok {
		return ValueTypeReference
	}
	title := strings.TrimSpace(ref.NodeTitle)
	if title == "" {
		title = strings.TrimSpace(ref.ModuleID)
	}
	variable := strings.TrimSpace(ref.Name)
	if variable != "" && strings.TrimSpace(ref.Property) != "" {
		variable += "." + strings.TrimSpace(ref.Property)
	}
	switch {
	case title != "" && variable != "":
		return title + " · " + variable
	case title != "":
		return title
	case variable != "":
		return variable
	}
	return ValueTypeReference
}

// LiteralValue unwraps {type: "literal", content: x}.
func LiteralValue(v any) (any, bool) {
	obj, ok := v.(map[string]any)
	if !ok || stringField(obj, "type") != ValueTypeLiteral {
		return nil, false
	}
	return obj["content"], true
}

// ParamReference is a reference bound to a named input parameter.
type ParamReference struct {
	Param     string
	Reference Reference
}

// ModuleReferences lists the references in m's input parameters ordered by
// parameter name.
func ModuleReferences(m *Module) []ParamReference {
	if m == nil || len(m.Inputs.InputParameters) == 0 {
		return nil
	}
	names := make([]string, 0, len(m.Inputs.InputParameters))
	for name := range m.Inputs.InputParameters {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []ParamReference
	for _, name := range names {
		ref, ok := ParseReference(m.Inputs.InputParameters[name])
		if !ok || ref.ModuleID == "" {
			continue
		}
		out = append(out, ParamReference{Param: name, Reference: ref})
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
