package flowgraph

import "github.com/google/uuid"

// DefaultVersion is stamped on exported documents when no version is set.
const DefaultVersion = "1.0"

// DefaultWorkflowTitle is used when exported workflow meta has no title.
const DefaultWorkflowTitle = "Workflow"

// TraceFunc observes conversion stages. Fields are safe to retain.
type TraceFunc func(stage string, fields map[string]any)

// Options configure import, export and ordering.
type Options struct {
	Logger  Logger
	Trace   TraceFunc
	Version string
	NewID   func() string
}

type Option func(*Options)

func WithLogger(logger Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithTrace(fn TraceFunc) Option {
	return func(o *Options) {
		o.Trace = fn
	}
}

// WithVersion sets the document version written by ExportGraph.
func WithVersion(version string) Option {
	return func(o *Options) {
		if version != "" {
			o.Version = version
		}
	}
}

// WithIDGenerator replaces the workflow id suffix generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *Options) {
		if fn != nil {
			o.NewID = fn
		}
	}
}

func buildOptions(opts ...Option) Options {
	o := Options{
		Version: DefaultVersion,
		NewID:   uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.Logger = NormalizeLogger(o.Logger)
	return o
}

func (o Options) trace(stage string, fields map[string]any) {
	o.Logger.Trace("flowgraph %s %s", stage, formatFields(fields))
	if o.Trace != nil {
		o.Trace(stage, fields)
	}
}
