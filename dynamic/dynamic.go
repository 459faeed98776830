package dynamic

import (
	"fmt"

	flowgraph "github.com/goliatone/go-flowgraph"
)

// ExecuteInput resolves the values a DynamicInputNode hands to the workflow.
// For every declared input, in declaration order, the provided value wins,
// then the bound parameter (literals unwrapped), then the declared default.
// Reference parameters are left to the caller that owns execution state.
func ExecuteInput(m *flowgraph.Module, provided map[string]any) (map[string]any, error) {
	if err := expectType(m, flowgraph.ModuleTypeDynamicInput); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(m.Inputs.InputDefs))
	for _, def := range m.Inputs.InputDefs {
		if v, ok := resolveInput(m, def, provided); ok {
			out[def.Name] = v
		}
	}
	return out, nil
}

// ValidateInput reports every required input that resolves to nothing.
func ValidateInput(m *flowgraph.Module, provided map[string]any) []flowgraph.Diagnostic {
	if m == nil {
		return nil
	}
	var diags []flowgraph.Diagnostic
	for _, def := range m.Inputs.InputDefs {
		if !def.Required {
			continue
		}
		if v, ok := resolveInput(m, def, provided); ok && v != nil {
			continue
		}
		diags = append(diags, flowgraph.Diagnostic{
			Code:     flowgraph.DiagCodeMissingInput,
			Severity: flowgraph.SeverityError,
			Message:  fmt.Sprintf("required input %q is missing", def.Name),
			ModuleID: m.ModuleID,
			Field:    def.Name,
		})
	}
	return diags
}

// ExecuteOutput passes through the values named by the output definitions.
func ExecuteOutput(m *flowgraph.Module, values map[string]any) (map[string]any, error) {
	if err := expectType(m, flowgraph.ModuleTypeDynamicOutput); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(m.Outputs.OutputDefs))
	for _, def := range m.Outputs.OutputDefs {
		if v, ok := values[def.Name]; ok {
			out[def.Name] = v
		}
	}
	return out, nil
}

// Execute dispatches on the module type.
func Execute(m *flowgraph.Module, values map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, flowgraph.NewError(flowgraph.ErrUnknownNodeType, "module is nil", nil, nil)
	}
	switch m.ModuleType {
	case flowgraph.ModuleTypeDynamicInput:
		return ExecuteInput(m, values)
	case flowgraph.ModuleTypeDynamicOutput:
		return ExecuteOutput(m, values)
	}
	return nil, flowgraph.NewError(flowgraph.ErrUnknownNodeType,
		fmt.Sprintf("no executor for module type %q", m.ModuleType), nil,
		map[string]any{"module_id": m.ModuleID, "module_type": m.ModuleType})
}

// MirrorOutputs makes a DynamicInputNode expose its inputs as outputs.
func MirrorOutputs(m *flowgraph.Module) {
	if m == nil || m.ModuleType != flowgraph.ModuleTypeDynamicInput {
		return
	}
	defs := m.Inputs.Clone().InputDefs
	if defs == nil {
		defs = []flowgraph.ParamDef{}
	}
	m.Outputs.OutputDefs = defs
}

func resolveInput(m *flowgraph.Module, def flowgraph.ParamDef, provided map[string]any) (any, bool) {
	if v, ok := provided[def.Name]; ok {
		return v, true
	}
	if param, ok := m.Inputs.InputParameters[def.Name]; ok && !flowgraph.IsReference(param) {
		if literal, isLiteral := flowgraph.LiteralValue(param); isLiteral {
			return literal, true
		}
		return param, true
	}
	if def.Default != nil {
		return def.Default, true
	}
	return nil, false
}

func expectType(m *flowgraph.Module, moduleType string) error {
	if m == nil {
		return flowgraph.NewError(flowgraph.ErrUnknownNodeType, "module is nil", nil, nil)
	}
	if m.ModuleType != moduleType {
		return flowgraph.NewError(flowgraph.ErrUnknownNodeType,
			fmt.Sprintf("module %s is %q, expected %q", m.ModuleID, m.ModuleType, moduleType), nil,
			map[string]any{"module_id": m.ModuleID})
	}
	return nil
}
