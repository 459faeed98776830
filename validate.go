package flowgraph

import "strings"

// ValidateDocument collects every structural problem in doc. It never fails
// fast; callers decide what to do with error severity entries.
func ValidateDocument(doc *Document) []Diagnostic {
	v := &validator{
		seen:    map[string]string{},
		visited: map[*Module]bool{},
	}
	if doc == nil {
		v.add(DiagCodeMissingModules, SeverityError, "$", "", "", "workflow document is nil")
		return v.diags
	}
	if strings.TrimSpace(doc.ModuleID) == "" {
		v.add(DiagCodeMissingField, SeverityError, "$", "", "module_id", "missing module_id in workflow")
	}
	if strings.TrimSpace(doc.ModuleType) == "" {
		v.add(DiagCodeMissingField, SeverityError, "$", "", "module_type", "missing module_type in workflow")
	}
	if doc.Modules == nil {
		v.add(DiagCodeMissingModules, SeverityError, "$", "", "modules", "workflow modules must be an array")
	} else {
		for i, m := range doc.Modules {
			v.module(m, indexPath("$.modules", i))
		}
		v.workflowIO(doc.Modules)
	}
	SortDiagnostics(v.diags)
	return v.diags
}

type validator struct {
	diagSink
	seen    map[string]string
	visited map[*Module]bool
}

func (v *validator) module(m *Module, path string) {
	if m == nil {
		v.add(DiagCodeMissingField, SeverityError, path, "", "", "module at %s is null", path)
		return
	}
	if v.visited[m] {
		v.add(DiagCodeDuplicateModuleID, SeverityError, path, m.ModuleID, "", "module at %s is attached more than once", path)
		return
	}
	v.visited[m] = true

	id := strings.TrimSpace(m.ModuleID)
	if id == "" {
		v.add(DiagCodeMissingField, SeverityError, path, "", "module_id", "module at %s is missing module_id", path)
	} else if first, dup := v.seen[id]; dup {
		v.add(DiagCodeDuplicateModuleID, SeverityError, path, id, "module_id", "module id %q is already used at %s", id, first)
	} else {
		v.seen[id] = path
	}
	if strings.TrimSpace(m.ModuleType) == "" {
		v.add(DiagCodeMissingField, SeverityError, path, id, "module_type", "module %s is missing module_type", labelFor(id, path))
	}
	if m.Meta == nil {
		v.add(DiagCodeMissingField, SeverityError, path, id, "meta", "module %s is missing meta", labelFor(id, path))
	}
	if !m.IsComposited && len(m.Modules) > 0 {
		v.add(DiagCodeUnexpectedModules, SeverityWarning, path, id, "modules",
			"module %s has child modules but is not composite; children are ignored", labelFor(id, path))
	}

	for _, slot := range m.Slots {
		slotPath := path + ".slots." + slot.Name
		if slot.Module == nil {
			v.add(DiagCodeMissingField, SeverityError, slotPath, id, "slots", "slot %q of module %s is empty", slot.Name, labelFor(id, path))
			continue
		}
		if id != "" && strings.TrimSpace(slot.Module.ModuleID) == id {
			v.add(DiagCodeSelfSlot, SeverityError, slotPath, id, "slots", "module %s lists itself as slot %q", id, slot.Name)
			continue
		}
		v.module(slot.Module, slotPath)
	}
	if m.IsComposited {
		for i, child := range m.Modules {
			v.module(child, indexPath(path+".modules", i))
		}
	}
}

func (v *validator) workflowIO(modules []*Module) {
	var inputs, outputs []string
	for _, m := range modules {
		if m == nil {
			continue
		}
		switch m.ModuleType {
		case ModuleTypeDynamicInput:
			inputs = append(inputs, m.ModuleID)
		case ModuleTypeDynamicOutput:
			outputs = append(outputs, m.ModuleID)
		}
	}
	if len(inputs) > 1 {
		v.add(DiagCodeAmbiguousWorkflowIO, SeverityWarning, "$.modules", "", "inputs",
			"workflow has %d %s modules (%s); only the first binds workflow inputs",
			len(inputs), ModuleTypeDynamicInput, strings.Join(inputs, ", "))
	}
	if len(outputs) > 1 {
		v.add(DiagCodeAmbiguousWorkflowIO, SeverityWarning, "$.modules", "", "outputs",
			"workflow has %d %s modules (%s); only the first binds workflow outputs",
			len(outputs), ModuleTypeDynamicOutput, strings.Join(outputs, ", "))
	}
}

func labelFor(id, path string) string {
	if id != "" {
		return id
	}
	return "at " + path
}
