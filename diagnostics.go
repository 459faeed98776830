package flowgraph

import (
	"fmt"
	"sort"
	"strconv"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

const (
	DiagCodeMissingField        = "FG001_MISSING_FIELD"
	DiagCodeMissingModules      = "FG002_MISSING_MODULES"
	DiagCodeDuplicateModuleID   = "FG003_DUPLICATE_MODULE_ID"
	DiagCodeSelfSlot            = "FG004_SELF_SLOT"
	DiagCodeUnexpectedModules   = "FG005_UNEXPECTED_MODULES"
	DiagCodeAmbiguousWorkflowIO = "FG006_AMBIGUOUS_WORKFLOW_IO"
	DiagCodeMissingSlotID       = "FG007_MISSING_SLOT_ID"
	DiagCodeDanglingReference   = "FG008_DANGLING_REFERENCE"
	DiagCodeExecutionCycle      = "FG009_EXECUTION_CYCLE"
	DiagCodeOrphanNode          = "FG010_ORPHAN_NODE"
	DiagCodeSlotConflict        = "FG011_SLOT_CONFLICT"
	DiagCodeFetchFailed         = "FG012_FETCH_FAILED"
	DiagCodeExpansionCycle      = "FG013_EXPANSION_CYCLE"
	DiagCodeMissingInput        = "FG014_MISSING_INPUT"
	DiagCodeInvalidNode         = "FG015_INVALID_NODE"
)

// Diagnostic is a deterministic message about a document or graph.
type Diagnostic struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Path     string `json:"path,omitempty"`
	ModuleID string `json:"module_id,omitempty"`
	Field    string `json:"field,omitempty"`
}

func (d Diagnostic) String() string {
	out := fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
	if d.Path != "" {
		out += " (" + d.Path + ")"
	}
	return out
}

// SortDiagnostics orders diagnostics by path, module, field, code, severity
// and message.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.ModuleID != b.ModuleID {
			return a.ModuleID < b.ModuleID
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Severity != b.Severity {
			return a.Severity < b.Severity
		}
		return a.Message < b.Message
	})
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only error severity diagnostics.
func Errors(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Messages flattens diagnostics into display strings.
func Messages(diags []Diagnostic) []string {
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Message)
	}
	return out
}

// ValidationError wraps error diagnostics for callers that need an error.
type ValidationError struct {
	Diagnostics []Diagnostic
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Diagnostics) == 0 {
		return "workflow validation failed"
	}
	first := e.Diagnostics[0]
	if len(e.Diagnostics) == 1 {
		return fmt.Sprintf("workflow validation failed: %s (%s)", first.Message, first.Code)
	}
	return fmt.Sprintf("workflow validation failed: %s (%s) and %d more", first.Message, first.Code, len(e.Diagnostics)-1)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDocument
}

// AsError returns a ValidationError when diags hold errors, nil otherwise.
func AsError(diags []Diagnostic) error {
	errs := Errors(diags)
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Diagnostics: errs}
}

type diagSink struct {
	diags []Diagnostic
}

func (s *diagSink) add(code, severity, path, moduleID, field, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{
		Code:     code,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
		Path:     path,
		ModuleID: moduleID,
		Field:    field,
	})
}

func indexPath(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}
