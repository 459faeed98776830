package flowgraph

// BindWorkflowIO promotes the first top-level DynamicInputNode inputs and the
// first DynamicOutputNode outputs onto the document. Extra matches are
// reported and ignored.
func BindWorkflowIO(doc *Document) []Diagnostic {
	if doc == nil {
		return nil
	}
	var sink diagSink
	var input, output *Module
	for _, m := range doc.Modules {
		if m == nil {
			continue
		}
		switch m.ModuleType {
		case ModuleTypeDynamicInput:
			if input != nil {
				sink.add(DiagCodeAmbiguousWorkflowIO, SeverityWarning, "$.inputs", m.ModuleID, "inputs",
					"%s %s ignored; workflow inputs come from %s", ModuleTypeDynamicInput, m.ModuleID, input.ModuleID)
				continue
			}
			input = m
		case ModuleTypeDynamicOutput:
			if output != nil {
				sink.add(DiagCodeAmbiguousWorkflowIO, SeverityWarning, "$.outputs", m.ModuleID, "outputs",
					"%s %s ignored; workflow outputs come from %s", ModuleTypeDynamicOutput, m.ModuleID, output.ModuleID)
				continue
			}
			output = m
		}
	}
	if input != nil {
		doc.Inputs = input.Inputs.Clone()
		if doc.Inputs.InputDefs == nil {
			doc.Inputs.InputDefs = []ParamDef{}
		}
	}
	if output != nil {
		doc.Outputs = output.Outputs.Clone()
		if doc.Outputs.OutputDefs == nil {
			doc.Outputs.OutputDefs = []ParamDef{}
		}
	}
	return sink.diags
}
