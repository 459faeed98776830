package flowgraph

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() *Document {
	body := compositeMod("body", ModuleTypeSlot, mod("step", "llm"))
	loop := compositeMod("loop", ModuleTypeLoop)
	loop.Slots.Set("body", body)
	return &Document{
		Version:    DefaultVersion,
		ModuleID:   "workflow_1",
		ModuleType: ModuleTypeWorkflow,
		Meta:       Meta{Title: "Demo"},
		Modules: []*Module{
			mod("in", ModuleTypeDynamicInput),
			loop,
			mod("out", ModuleTypeDynamicOutput),
		},
	}
}

func TestValidateDocumentAcceptsValidTree(t *testing.T) {
	assert.Empty(t, ValidateDocument(validDocument()))
}

func TestValidateDocumentCollectsAllMissingFields(t *testing.T) {
	diags := ValidateDocument(&Document{})
	require.Len(t, diags, 3)
	assert.True(t, HasErrors(diags))

	fields := map[string]bool{}
	for _, d := range diags {
		fields[d.Field] = true
	}
	assert.Equal(t, map[string]bool{"module_id": true, "module_type": true, "modules": true}, fields)
	assert.Len(t, Messages(diags), 3)
}

func TestValidateDocumentRecursesIntoSlots(t *testing.T) {
	doc := validDocument()
	body, _ := doc.Modules[1].Slots.Get("body")
	body.Modules[0].Meta = nil
	body.Modules[0].ModuleType = ""

	diags := ValidateDocument(doc)
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, "$.modules[1].slots.body.modules[0]", d.Path)
		assert.Equal(t, "step", d.ModuleID)
		assert.Equal(t, SeverityError, d.Severity)
	}
}

func TestValidateDocumentDuplicateIDs(t *testing.T) {
	doc := validDocument()
	doc.Modules = append(doc.Modules, mod("step", "llm"))

	diags := ValidateDocument(doc)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagCodeDuplicateModuleID, diags[0].Code)
	assert.Equal(t, "$.modules[3]", diags[0].Path)
}

func TestValidateDocumentSelfSlot(t *testing.T) {
	doc := validDocument()
	loop := doc.Modules[1]
	loop.Slots.Set("body", loop)

	diags := ValidateDocument(doc)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagCodeSelfSlot, diags[0].Code)
	assert.Equal(t, SeverityError, diags[0].Severity)
}

func TestValidateDocumentWarnsOnMultipleWorkflowInputs(t *testing.T) {
	doc := validDocument()
	doc.Modules = append(doc.Modules, mod("in2", ModuleTypeDynamicInput))

	diags := ValidateDocument(doc)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagCodeAmbiguousWorkflowIO, diags[0].Code)
	assert.False(t, HasErrors(diags))
}

func TestValidateDocumentWarnsOnChildrenOfAtomicModule(t *testing.T) {
	doc := validDocument()
	doc.Modules[0].Modules = []*Module{mod("hidden", "llm")}

	diags := ValidateDocument(doc)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagCodeUnexpectedModules, diags[0].Code)
	assert.Equal(t, SeverityWarning, diags[0].Severity)
}

func TestAsErrorWrapsValidationFailures(t *testing.T) {
	assert.NoError(t, AsError(ValidateDocument(validDocument())))

	err := AsError(ValidateDocument(&Document{}))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, stderrors.As(err, &verr))
	assert.Len(t, verr.Diagnostics, 3)
	assert.True(t, stderrors.Is(err, ErrInvalidDocument))
	assert.Contains(t, err.Error(), "and 2 more")
}

func TestParseValidDocument(t *testing.T) {
	_, diags, err := ParseValidDocument([]byte(`{"version":"1.0"}`))
	require.Error(t, err)
	assert.True(t, HasErrors(diags))

	doc, diags, err := ParseValidDocument([]byte(`{
		"version": "1.0",
		"module_id": "workflow_x",
		"module_type": "workflow",
		"modules": [{"module_id": "a", "module_type": "llm", "meta": {"title": "A"}}]
	}`))
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, []string{"a"}, ids(doc.Modules))
}
