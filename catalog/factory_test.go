package catalog

import (
	"fmt"
	"testing"

	flowgraph "github.com/goliatone/go-flowgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%d", n)
	}
}

func TestNewNodeUnknownTypeFailsFast(t *testing.T) {
	f := NewFactory(testCatalog(t))
	_, err := f.NewNode("missing", flowgraph.Position{})
	require.Error(t, err)
	assert.Equal(t, flowgraph.ErrCodeUnknownNodeType, flowgraph.ErrorCode(err))

	_, err = f.NewNode("workflow", flowgraph.Position{}, ForWorkflow("wf-none"))
	require.Error(t, err)
	assert.Equal(t, flowgraph.ErrCodeUnknownNodeType, flowgraph.ErrorCode(err))
}

func TestNewNodeCopiesDefinition(t *testing.T) {
	c := testCatalog(t)
	f := NewFactory(c, WithIDGenerator(sequentialIDs()))

	node, err := f.NewNode("llm", flowgraph.Position{X: 10, Y: 20})
	require.NoError(t, err)
	assert.Equal(t, "llm-1", node.ID)
	assert.Equal(t, flowgraph.NodeKindCustom, node.Type)
	assert.True(t, node.ExpandParent)
	assert.Equal(t, "llm-1", node.Data.ModuleID)
	assert.Equal(t, &flowgraph.Position{X: 10, Y: 20}, node.Data.Position)
	assert.Equal(t, "LLM", node.Data.Meta.Title)

	node.Data.Inputs.InputDefs[0].Name = "changed"
	def, _ := c.Find("llm", "")
	assert.Equal(t, "prompt", def.Inputs.InputDefs[0].Name)
}

func TestNewNodeWorkflowType(t *testing.T) {
	f := NewFactory(testCatalog(t), WithIDGenerator(sequentialIDs()))

	node, err := f.NewNode("workflow", flowgraph.Position{}, ForWorkflow("wf-rank"))
	require.NoError(t, err)
	assert.Equal(t, "wf-rank", node.Data.WorkflowID)
	assert.Equal(t, "Rank workflow", node.Data.Meta.Title)
	assert.JSONEq(t, "true", string(node.Data.Extra["is_workflow_node"]))

	node, err = f.NewNode("workflow", flowgraph.Position{})
	require.NoError(t, err)
	assert.Equal(t, "wf-search", node.Data.WorkflowID)
}

func TestNewNodeOptions(t *testing.T) {
	f := NewFactory(testCatalog(t))
	node, err := f.NewNode("note", flowgraph.Position{}, WithModuleID("n1"), WithData(func(m *flowgraph.Module) {
		m.Meta.Description = "custom"
	}))
	require.NoError(t, err)
	assert.Equal(t, "n1", node.ID)
	assert.Equal(t, "custom", node.Data.Meta.Description)
}

func TestNewNodeWithSlots(t *testing.T) {
	f := NewFactory(testCatalog(t), WithIDGenerator(sequentialIDs()))

	bundle, err := f.NewNodeWithSlots("loop", flowgraph.Position{X: 100, Y: 100})
	require.NoError(t, err)
	require.NotNil(t, bundle.Node)
	assert.Equal(t, flowgraph.NodeKindComposite, bundle.Node.Type)
	assert.Equal(t, []string{"body", "after"}, bundle.Node.Data.Slots.Names())

	require.Len(t, bundle.SlotNodes, 2)
	body, after := bundle.SlotNodes[0], bundle.SlotNodes[1]
	assert.Equal(t, "slot-body-2", body.ID)
	assert.Equal(t, flowgraph.NodeKindSlot, body.Type)
	assert.Equal(t, flowgraph.Position{X: 25, Y: 250}, body.Position)
	assert.Equal(t, flowgraph.Position{X: 175, Y: 250}, after.Position)
	assert.Equal(t, "Loop body", body.Data.Meta.Title)
	assert.Equal(t, "after slot", after.Data.Meta.Title)
	assert.Equal(t, "slot", after.Data.Meta.Category)
	assert.Equal(t, flowgraph.ModuleTypeSlot, after.Data.ModuleType)
	assert.True(t, after.Data.IsComposited)

	require.Len(t, bundle.Edges, 2)
	assert.Equal(t, "slot-body", bundle.Edges[0].SourceHandle)
	assert.Equal(t, bundle.Node.ID, bundle.Edges[0].Source)
	assert.Equal(t, body.ID, bundle.Edges[0].Target)
	assert.Equal(t, "after", bundle.Edges[1].Data.SlotName)
}

func TestNewNodeWithSlotsRoundTripsThroughExport(t *testing.T) {
	f := NewFactory(testCatalog(t), WithIDGenerator(sequentialIDs()))
	bundle, err := f.NewNodeWithSlots("loop", flowgraph.Position{})
	require.NoError(t, err)

	graph := flowgraph.Graph{
		Nodes: append([]*flowgraph.GraphNode{bundle.Node}, bundle.SlotNodes...),
		Edges: bundle.Edges,
	}
	doc, diags := flowgraph.ExportGraph(graph, flowgraph.Meta{})
	assert.Empty(t, diags)
	require.Len(t, doc.Modules, 1)
	assert.Equal(t, []string{"body", "after"}, doc.Modules[0].Slots.Names())
	assert.Empty(t, flowgraph.ValidateDocument(doc))
}

func TestSlotNodeUnknownSlot(t *testing.T) {
	f := NewFactory(testCatalog(t))
	node, err := f.NewNode("llm", flowgraph.Position{})
	require.NoError(t, err)

	_, err = f.SlotNode(node, "body", flowgraph.Position{})
	require.Error(t, err)
	assert.Equal(t, flowgraph.ErrCodeUnknownSlot, flowgraph.ErrorCode(err))
}

func TestNewNodeWithoutSlotsBundle(t *testing.T) {
	f := NewFactory(testCatalog(t))
	bundle, err := f.NewNodeWithSlots("llm", flowgraph.Position{})
	require.NoError(t, err)
	assert.Empty(t, bundle.SlotNodes)
	assert.Empty(t, bundle.Edges)
	assert.Nil(t, bundle.Node.Data.Slots)
}

func TestNewEdge(t *testing.T) {
	f := NewFactory(nil, WithIDGenerator(func() string { return "x" }))
	e := f.NewEdge("a", "b", "out", "in", flowgraph.EdgeData{})
	assert.Equal(t, "edge-a-b-x", e.ID)
	assert.Equal(t, "out", e.SourceHandle)
	assert.Equal(t, "in", e.TargetHandle)
}

func TestSlotPosition(t *testing.T) {
	parent := flowgraph.Position{X: 0, Y: 0}
	assert.Equal(t, flowgraph.Position{X: 0, Y: 150}, SlotPosition(parent, 0, 1))
	assert.Equal(t, flowgraph.Position{X: -150, Y: 150}, SlotPosition(parent, 0, 3))
	assert.Equal(t, flowgraph.Position{X: 150, Y: 150}, SlotPosition(parent, 2, 3))
}
