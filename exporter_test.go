package flowgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedID() Option {
	return WithIDGenerator(func() string { return "fixed" })
}

func TestExportLoopChildBecomesBodySlot(t *testing.T) {
	graph := Graph{Nodes: []*GraphNode{
		node("L", ModuleTypeLoop, true, 0, 0),
		child(node("B", ModuleTypeComposite, true, 20, 100), "L"),
	}}

	doc, diags := ExportGraph(graph, Meta{Title: "Loop"}, fixedID())
	assert.Empty(t, diags)
	require.Len(t, doc.Modules, 1)

	loop := doc.Modules[0]
	body, ok := loop.Slots.Get("body")
	require.True(t, ok)
	assert.Equal(t, "B", body.ModuleID)
	assert.Empty(t, loop.Modules)
	assert.NotNil(t, loop.Modules)
}

func TestExportIfElseChildrenByVerticalPosition(t *testing.T) {
	graph := Graph{Nodes: []*GraphNode{
		node("F", ModuleTypeIfElse, true, 0, 100),
		child(node("below", ModuleTypeComposite, true, 0, 180), "F"),
		child(node("above", ModuleTypeComposite, true, 0, 20), "F"),
		child(node("note", "llm", false, 0, 50), "F"),
	}}

	doc, diags := ExportGraph(graph, Meta{}, fixedID())
	assert.Empty(t, diags)
	require.Len(t, doc.Modules, 1)

	f := doc.Modules[0]
	ifSlot, _ := f.Slots.Get("if")
	elseSlot, _ := f.Slots.Get("else")
	require.NotNil(t, ifSlot)
	require.NotNil(t, elseSlot)
	assert.Equal(t, "above", ifSlot.ModuleID)
	assert.Equal(t, "below", elseSlot.ModuleID)
	assert.Equal(t, []string{"note"}, ids(f.Modules))
}

func TestExportSelectorDefaultSlot(t *testing.T) {
	graph := Graph{
		Nodes: []*GraphNode{
			node("S", ModuleTypeSelector, true, 0, 0),
			child(node("case1", ModuleTypeSlot, true, 0, 100), "S"),
			child(node("first", ModuleTypeComposite, true, 0, 100), "S"),
			child(node("second", ModuleTypeComposite, true, 0, 100), "S"),
		},
		Edges: []GraphEdge{slotEdge("S", "case1", "case1")},
	}

	doc, diags := ExportGraph(graph, Meta{}, fixedID())
	assert.Empty(t, diags)
	s := doc.Modules[0]
	assert.Equal(t, []string{"case1", "default"}, s.Slots.Names())
	def, _ := s.Slots.Get("default")
	assert.Equal(t, "first", def.ModuleID)
	assert.Equal(t, []string{"second"}, ids(s.Modules))
}

func TestExportLoopSecondBodyStaysChild(t *testing.T) {
	graph := Graph{Nodes: []*GraphNode{
		node("L", ModuleTypeLoop, true, 0, 0),
		child(node("b1", ModuleTypeComposite, true, 0, 100), "L"),
		child(node("b2", ModuleTypeComposite, true, 0, 200), "L"),
	}}

	doc, diags := ExportGraph(graph, Meta{}, fixedID())
	assert.Equal(t, []string{DiagCodeSlotConflict}, diagCodes(diags))
	loop := doc.Modules[0]
	body, _ := loop.Slots.Get("body")
	assert.Equal(t, "b1", body.ModuleID)
	assert.Equal(t, []string{"b2"}, ids(loop.Modules))
}

func TestExportForcedSlotOverridesExplicitEdge(t *testing.T) {
	graph := Graph{
		Nodes: []*GraphNode{
			node("L", ModuleTypeLoop, true, 0, 0),
			node("P", "parallel", true, 300, 0),
			child(node("B", ModuleTypeComposite, true, 0, 100), "L"),
		},
		Edges: []GraphEdge{slotEdge("P", "B", "branch")},
	}

	doc, _ := ExportGraph(graph, Meta{}, fixedID())
	require.Len(t, doc.Modules, 2)
	body, ok := doc.Modules[0].Slots.Get("body")
	require.True(t, ok)
	assert.Equal(t, "B", body.ModuleID)
	assert.Nil(t, doc.Modules[1].Slots)
}

func TestExportExplicitSlotExclusivity(t *testing.T) {
	graph := Graph{
		Nodes: []*GraphNode{
			node("P", "parallel", true, 0, 0),
			child(node("H", ModuleTypeSlot, true, 0, 100), "P"),
			child(node("x", "llm", false, 0, 200), "P"),
		},
		Edges: []GraphEdge{slotEdge("P", "H", "handler")},
	}

	doc, diags := ExportGraph(graph, Meta{}, fixedID())
	assert.Empty(t, diags)
	require.Len(t, doc.Modules, 1)
	p := doc.Modules[0]
	h, _ := p.Slots.Get("handler")
	require.NotNil(t, h)
	assert.Equal(t, "H", h.ModuleID)
	assert.Equal(t, []string{"x"}, ids(p.Modules))
}

func TestExportSlotCycleKeepsEveryNodeOnce(t *testing.T) {
	graph := Graph{
		Nodes: []*GraphNode{
			node("A", "x", true, 0, 0),
			node("B", "x", true, 0, 0),
		},
		Edges: []GraphEdge{slotEdge("A", "B", "s"), slotEdge("B", "A", "s")},
	}

	doc, diags := ExportGraph(graph, Meta{}, fixedID())
	assert.Equal(t, []string{DiagCodeOrphanNode}, diagCodes(diags))
	require.Len(t, doc.Modules, 1)
	b, _ := doc.Modules[0].Slots.Get("s")
	require.NotNil(t, b)
	assert.Equal(t, "B", b.ModuleID)
	assert.Nil(t, b.Slots)
}

func TestExportOrphanUnderAtomicParent(t *testing.T) {
	graph := Graph{Nodes: []*GraphNode{
		node("atom", "llm", false, 0, 0),
		child(node("lost", "llm", false, 0, 0), "atom"),
	}}

	doc, diags := ExportGraph(graph, Meta{}, fixedID())
	assert.Equal(t, []string{"atom", "lost"}, ids(doc.Modules))
	assert.Equal(t, []string{DiagCodeOrphanNode}, diagCodes(diags))
}

func TestExportWrapsDocument(t *testing.T) {
	graph := Graph{Nodes: []*GraphNode{node("a", "llm", false, 10.456, -3.333)}}

	doc, _ := ExportGraph(graph, Meta{Description: "d"}, fixedID(), WithVersion("2.0"))
	assert.Equal(t, "workflow_fixed", doc.ModuleID)
	assert.Equal(t, "2.0", doc.Version)
	assert.Equal(t, ModuleTypeWorkflow, doc.ModuleType)
	assert.False(t, doc.IsComposited)
	assert.Equal(t, Meta{Title: DefaultWorkflowTitle, Description: "d"}, doc.Meta)
	assert.Equal(t, &Position{X: 10.46, Y: -3.33}, doc.Modules[0].Position)
	assert.NotNil(t, doc.Inputs.InputDefs)
	assert.NotNil(t, doc.Outputs.OutputDefs)
}

func TestExportGeneratesWorkflowIDs(t *testing.T) {
	first, _ := ExportGraph(Graph{}, Meta{})
	second, _ := ExportGraph(Graph{}, Meta{})
	assert.NotEqual(t, first.ModuleID, second.ModuleID)
	assert.Equal(t, DefaultVersion, first.Version)
	assert.NotNil(t, first.Modules)
}

func TestExportBindsWorkflowIO(t *testing.T) {
	in := node("in", ModuleTypeDynamicInput, false, 0, 0)
	in.Data.Inputs = Inputs{InputDefs: []ParamDef{{Name: "x"}}}
	out := node("out", ModuleTypeDynamicOutput, false, 0, 0)
	out.Data.Outputs = Outputs{OutputDefs: []ParamDef{{Name: "y", Type: "string"}}}

	doc, diags := ExportGraph(Graph{Nodes: []*GraphNode{in}}, Meta{}, fixedID())
	assert.Empty(t, diags)
	assert.Equal(t, []ParamDef{{Name: "x"}}, doc.Inputs.InputDefs)

	extra := node("in2", ModuleTypeDynamicInput, false, 0, 0)
	extra.Data.Inputs = Inputs{InputDefs: []ParamDef{{Name: "z"}}}
	doc, diags = ExportGraph(Graph{Nodes: []*GraphNode{in, out, extra}}, Meta{}, fixedID())
	assert.Equal(t, []string{DiagCodeAmbiguousWorkflowIO}, diagCodes(diags))
	assert.Equal(t, []ParamDef{{Name: "x"}}, doc.Inputs.InputDefs)
	assert.Equal(t, []ParamDef{{Name: "y", Type: "string"}}, doc.Outputs.OutputDefs)

	doc.Inputs.InputDefs[0].Name = "changed"
	assert.Equal(t, "x", in.Data.Inputs.InputDefs[0].Name)
}

func TestExportDoesNotMutateGraph(t *testing.T) {
	graph := Graph{
		Nodes: []*GraphNode{
			node("L", ModuleTypeLoop, true, 0.123, 0),
			child(node("B", ModuleTypeComposite, true, 0, 100), "L"),
			node("c", "llm", false, 0, 0),
		},
		Edges: []GraphEdge{edge("c", "L")},
	}
	before := graph.Clone()

	doc, _ := ExportGraph(graph, Meta{}, fixedID())
	assert.Equal(t, before, graph)

	doc.Modules[0].Meta.Title = "changed"
	assert.Equal(t, "c", graph.Nodes[2].Data.Meta.Title)
	assert.Equal(t, []string{"c", "L"}, ids(doc.Modules))
}

func TestExportSkipsNodesWithoutID(t *testing.T) {
	graph := Graph{Nodes: []*GraphNode{nil, {Type: NodeKindCustom}, node("a", "llm", false, 0, 0)}}
	doc, diags := ExportGraph(graph, Meta{}, fixedID())
	assert.Equal(t, []string{"a"}, ids(doc.Modules))
	assert.Equal(t, []string{DiagCodeInvalidNode, DiagCodeInvalidNode}, diagCodes(diags))
}

const roundTripDocument = `{
  "version": "1.0",
  "module_id": "workflow_src",
  "module_type": "workflow",
  "is_composited": false,
  "meta": {"title": "Round trip"},
  "inputs": {"input_defs": [{"name": "query", "type": "string"}]},
  "outputs": {"output_defs": [{"name": "answer"}]},
  "modules": [
    {
      "module_id": "in", "module_type": "DynamicInputNode", "is_composited": false,
      "meta": {"title": "Input"},
      "inputs": {"input_defs": [{"name": "query", "type": "string"}]},
      "outputs": {"output_defs": []},
      "position": {"x": 0, "y": 0}
    },
    {
      "module_id": "fetch", "module_type": "http", "is_composited": false,
      "meta": {"title": "Fetch", "category": "io"},
      "inputs": {
        "input_defs": [{"name": "url", "required": true}],
        "input_parameters": {
          "url": {"type": "reference", "content": {"moduleID": "in", "name": "query"}}
        }
      },
      "outputs": {"output_defs": [{"name": "body"}]},
      "position": {"x": 200.5, "y": 0},
      "timeout_ms": 3000
    },
    {
      "module_id": "loop", "module_type": "loop", "is_composited": true,
      "meta": {"title": "Each"},
      "inputs": {"input_defs": []},
      "outputs": {"output_defs": []},
      "position": {"x": 400, "y": 0},
      "slots": {
        "body": {
          "module_id": "loop-body", "module_type": "slot", "is_composited": true,
          "meta": {"title": "body slot"},
          "inputs": {"input_defs": []},
          "outputs": {"output_defs": []},
          "position": {"x": 400, "y": 150},
          "modules": [
            {
              "module_id": "summarize", "module_type": "llm", "is_composited": false,
              "meta": {"title": "Summarize"},
              "inputs": {"input_defs": []},
              "outputs": {"output_defs": []},
              "position": {"x": 10, "y": 20}
            },
            {
              "module_id": "store", "module_type": "db", "is_composited": false,
              "meta": {"title": "Store"},
              "inputs": {"input_defs": []},
              "outputs": {"output_defs": []},
              "position": {"x": 10, "y": 120}
            }
          ]
        }
      },
      "modules": []
    },
    {
      "module_id": "branch", "module_type": "IfElseBlock", "is_composited": true,
      "meta": {"title": "Branch"},
      "inputs": {"input_defs": []},
      "outputs": {"output_defs": []},
      "position": {"x": 600, "y": 0},
      "slots": {
        "if": {
          "module_id": "branch-if", "module_type": "slot", "is_composited": true,
          "meta": {"title": "if slot"},
          "inputs": {"input_defs": []},
          "outputs": {"output_defs": []},
          "position": {"x": 525, "y": 150},
          "modules": []
        },
        "else": {
          "module_id": "branch-else", "module_type": "slot", "is_composited": true,
          "meta": {"title": "else slot"},
          "inputs": {"input_defs": []},
          "outputs": {"output_defs": []},
          "position": {"x": 675, "y": 150},
          "modules": []
        }
      },
      "modules": []
    },
    {
      "module_id": "out", "module_type": "DynamicOutputNode", "is_composited": false,
      "meta": {"title": "Output"},
      "inputs": {"input_defs": []},
      "outputs": {"output_defs": [{"name": "answer"}]},
      "position": {"x": 800, "y": 0}
    }
  ]
}`

func TestImportExportRoundTrip(t *testing.T) {
	src, diags, err := ParseValidDocument([]byte(roundTripDocument))
	require.NoError(t, err)
	require.Empty(t, diags)

	graph, diags := ImportDocument(src)
	require.Empty(t, diags)

	doc, diags := ExportGraph(graph, src.Meta, fixedID())
	require.Empty(t, diags)

	assert.Equal(t, src.Modules, doc.Modules)
	assert.Equal(t, src.Inputs, doc.Inputs)
	assert.Equal(t, src.Outputs, doc.Outputs)
	assert.Equal(t, src.Meta, doc.Meta)
	assert.Equal(t, "workflow_fixed", doc.ModuleID)

	again, _ := ImportDocument(doc)
	assert.Equal(t, graph, again)

	raw, err := MarshalDocument(doc)
	require.NoError(t, err)
	reparsed, err := ParseDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, doc.Modules, reparsed.Modules)
}
