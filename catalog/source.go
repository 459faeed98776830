package catalog

import (
	"context"
	"os"

	flowgraph "github.com/goliatone/go-flowgraph"
)

// Source produces node type definitions.
type Source interface {
	Load(ctx context.Context) ([]NodeTypeDefinition, error)
}

type SourceFunc func(ctx context.Context) ([]NodeTypeDefinition, error)

func (f SourceFunc) Load(ctx context.Context) ([]NodeTypeDefinition, error) {
	return f(ctx)
}

// FileSource reads a YAML or JSON catalog file.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]NodeTypeDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, flowgraph.NewError(flowgraph.ErrCatalogLoad, "read node type catalog", err,
			map[string]any{"path": s.Path})
	}
	return Parse(data)
}

// Load builds a catalog from src.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	defs, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return New(defs), nil
}
