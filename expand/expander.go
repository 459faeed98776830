package expand

import (
	"context"
	"fmt"
	"strconv"

	flowgraph "github.com/goliatone/go-flowgraph"
	"github.com/goliatone/go-flowgraph/dynamic"
)

// DefaultMaxDepth limits how many sub-workflow levels are inlined.
const DefaultMaxDepth = 8

// Expander inlines workflow-typed modules with the module tree of the
// workflow they reference.
type Expander struct {
	fetcher  Fetcher
	maxDepth int
	logger   flowgraph.Logger
	trace    flowgraph.TraceFunc
}

type Option func(*Expander)

func WithMaxDepth(depth int) Option {
	return func(e *Expander) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

func WithLogger(logger flowgraph.Logger) Option {
	return func(e *Expander) {
		e.logger = flowgraph.NormalizeLogger(logger)
	}
}

func WithTrace(fn flowgraph.TraceFunc) Option {
	return func(e *Expander) {
		e.trace = fn
	}
}

func New(fetcher Fetcher, opts ...Option) *Expander {
	e := &Expander{
		fetcher:  fetcher,
		maxDepth: DefaultMaxDepth,
		logger:   flowgraph.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Expand returns an expanded copy of doc. The input is not modified.
//
// A workflow module that cannot be fetched stays as it was and a warning is
// recorded. The returned error is only set for a nil document or a canceled
// context.
func (e *Expander) Expand(ctx context.Context, doc *flowgraph.Document) (*flowgraph.Document, []flowgraph.Diagnostic, error) {
	if doc == nil {
		return nil, nil, flowgraph.NewError(flowgraph.ErrInvalidDocument, "workflow document is nil", nil, nil)
	}
	out := doc.Clone()
	if out.Modules == nil {
		e.logger.Warn("expand skipped: document %s has no modules", doc.ModuleID)
		return out, nil, nil
	}
	run := &expansion{Expander: e, active: map[string]bool{}}
	modules, err := run.modules(ctx, out.Modules, "$.modules", 0)
	if err != nil {
		return nil, run.diags, err
	}
	out.Modules = modules
	e.emit("expand", map[string]any{"document": doc.ModuleID, "expanded": run.expanded, "warnings": len(run.diags)})
	flowgraph.SortDiagnostics(run.diags)
	return out, run.diags, nil
}

func (e *Expander) emit(stage string, fields map[string]any) {
	e.logger.Trace("expand %s %v", stage, fields)
	if e.trace != nil {
		e.trace(stage, fields)
	}
}

type expansion struct {
	*Expander
	active   map[string]bool
	expanded int
	diags    []flowgraph.Diagnostic
}

func (x *expansion) modules(ctx context.Context, modules []*flowgraph.Module, path string, depth int) ([]*flowgraph.Module, error) {
	for i, m := range modules {
		next, err := x.module(ctx, m, path+"["+strconv.Itoa(i)+"]", depth)
		if err != nil {
			return nil, err
		}
		modules[i] = next
	}
	return modules, nil
}

func (x *expansion) module(ctx context.Context, m *flowgraph.Module, path string, depth int) (*flowgraph.Module, error) {
	if m == nil {
		return nil, nil
	}
	if m.ModuleType == flowgraph.ModuleTypeDynamicInput {
		dynamic.MirrorOutputs(m)
	}
	if m.ModuleType == flowgraph.ModuleTypeWorkflow && m.WorkflowID != "" {
		inlined, err := x.inline(ctx, m, path, depth)
		if err != nil {
			return nil, err
		}
		if inlined != nil {
			return inlined, nil
		}
	}
	for i := range m.Slots {
		next, err := x.module(ctx, m.Slots[i].Module, path+".slots."+m.Slots[i].Name, depth)
		if err != nil {
			return nil, err
		}
		m.Slots[i].Module = next
	}
	if m.Modules != nil {
		children, err := x.modules(ctx, m.Modules, path+".modules", depth)
		if err != nil {
			return nil, err
		}
		m.Modules = children
	}
	return m, nil
}

// inline returns the replacement for m, or nil to keep m as is.
func (x *expansion) inline(ctx context.Context, m *flowgraph.Module, path string, depth int) (*flowgraph.Module, error) {
	id := m.WorkflowID
	if depth >= x.maxDepth {
		x.warn(flowgraph.DiagCodeExpansionCycle, path, m, "sub-workflow %s not expanded: depth limit %d reached", id, x.maxDepth)
		return nil, nil
	}
	if x.active[id] {
		x.warn(flowgraph.DiagCodeExpansionCycle, path, m, "sub-workflow %s references itself", id)
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fetched, err := x.fetcher.FetchWorkflow(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		x.logger.Warn("fetch workflow %s failed: %v", id, err)
		x.warn(flowgraph.DiagCodeFetchFailed, path, m, "sub-workflow %s could not be fetched: %v", id, err)
		return nil, nil
	}
	if fetched == nil {
		x.warn(flowgraph.DiagCodeFetchFailed, path, m, "sub-workflow %s was not found", id)
		return nil, nil
	}

	x.active[id] = true
	defer delete(x.active, id)

	children := fetched.Clone().Modules
	if children == nil {
		children = []*flowgraph.Module{}
	}
	children, err = x.modules(ctx, children, path+".modules", depth+1)
	if err != nil {
		return nil, err
	}

	out := m.Clone()
	out.IsComposited = true
	out.Modules = children
	out.Slots = nil
	if fetched.Meta.Title != "" {
		meta := fetched.Meta
		out.Meta = &meta
	}
	if out.ModuleID == "" {
		out.ModuleID = fetched.ModuleID
	}
	x.expanded++
	x.emit("expand.inline", map[string]any{"module_id": out.ModuleID, "workflow_id": id, "modules": len(children)})
	return out, nil
}

func (x *expansion) warn(code, path string, m *flowgraph.Module, format string, args ...any) {
	x.diags = append(x.diags, flowgraph.Diagnostic{
		Code:     code,
		Severity: flowgraph.SeverityWarning,
		Message:  fmt.Sprintf(format, args...),
		Path:     path,
		ModuleID: m.ModuleID,
		Field:    "workflow_id",
	})
}
