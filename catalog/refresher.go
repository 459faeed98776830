package catalog

import (
	"context"
	"fmt"
	"sync"

	flowgraph "github.com/goliatone/go-flowgraph"
	rcron "github.com/robfig/cron/v3"
)

// Refresher reloads a catalog from its source on a cron schedule. A failed
// reload keeps the previous definitions.
type Refresher struct {
	mu       sync.Mutex
	catalog  *Catalog
	source   Source
	schedule string
	logger   flowgraph.Logger
	onError  func(error)
	cron     *rcron.Cron
}

type RefresherOption func(*Refresher)

func WithRefreshLogger(logger flowgraph.Logger) RefresherOption {
	return func(r *Refresher) {
		r.logger = flowgraph.NormalizeLogger(logger)
	}
}

func WithRefreshErrorHandler(fn func(error)) RefresherOption {
	return func(r *Refresher) {
		if fn != nil {
			r.onError = fn
		}
	}
}

// NewRefresher validates schedule, a standard five field cron expression or
// descriptor such as "@every 5m".
func NewRefresher(c *Catalog, src Source, schedule string, opts ...RefresherOption) (*Refresher, error) {
	if c == nil || src == nil {
		return nil, fmt.Errorf("catalog refresher requires a catalog and a source")
	}
	if _, err := rcron.ParseStandard(schedule); err != nil {
		return nil, flowgraph.NewError(flowgraph.ErrCatalogLoad, "invalid catalog refresh schedule", err,
			map[string]any{"schedule": schedule})
	}
	r := &Refresher{
		catalog:  c,
		source:   src,
		schedule: schedule,
		logger:   flowgraph.NopLogger(),
	}
	r.onError = func(err error) {
		r.logger.Error("catalog refresh failed: %v", err)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Refresh reloads the catalog once.
func (r *Refresher) Refresh(ctx context.Context) error {
	defs, err := r.source.Load(ctx)
	if err != nil {
		return err
	}
	r.catalog.Replace(defs)
	r.logger.Debug("catalog refreshed with %d node types", len(defs))
	return nil
}

// Start schedules refreshes. Calling Start twice is a no-op.
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}
	c := rcron.New()
	if _, err := c.AddFunc(r.schedule, func() {
		if err := r.Refresh(context.Background()); err != nil {
			r.onError(err)
		}
	}); err != nil {
		return fmt.Errorf("failed to add catalog refresh job: %w", err)
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop halts scheduling and returns a context done once running jobs finish.
func (r *Refresher) Stop() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	ctx := r.cron.Stop()
	r.cron = nil
	return ctx
}
