package main

import (
	"fmt"
	"time"

	flowgraph "github.com/goliatone/go-flowgraph"
	"github.com/goliatone/go-flowgraph/catalog"
	"github.com/goliatone/go-flowgraph/expand"
	"github.com/goliatone/go-flowgraph/store"
)

type ValidateCmd struct {
	File string `arg:"" type:"existingfile" help:"Workflow document (JSON)."`
}

type validateReport struct {
	Valid       bool                   `json:"valid"`
	Diagnostics []flowgraph.Diagnostic `json:"diagnostics"`
}

func (c *ValidateCmd) Run(a *app) error {
	doc, err := readDocument(c.File)
	if err != nil {
		return err
	}
	diags := flowgraph.ValidateDocument(doc)
	if diags == nil {
		diags = []flowgraph.Diagnostic{}
	}
	if err := a.write(validateReport{Valid: !flowgraph.HasErrors(diags), Diagnostics: diags}); err != nil {
		return err
	}
	return flowgraph.AsError(diags)
}

type ImportCmd struct {
	File string `arg:"" type:"existingfile" help:"Workflow document (JSON)."`
}

func (c *ImportCmd) Run(a *app) error {
	doc, err := readDocument(c.File)
	if err != nil {
		return err
	}
	graph, diags := flowgraph.ImportDocument(doc, a.options()...)
	a.report(diags)
	return a.write(graph)
}

type ExportCmd struct {
	File        string `arg:"" type:"existingfile" help:"Graph file with nodes and edges (JSON)."`
	Title       string `help:"Workflow title."`
	Description string `help:"Workflow description."`
}

func (c *ExportCmd) Run(a *app) error {
	graph, err := readGraph(c.File)
	if err != nil {
		return err
	}
	doc, diags := flowgraph.ExportGraph(graph, flowgraph.Meta{
		Title:       c.Title,
		Description: c.Description,
	}, a.options()...)
	a.report(diags)
	return a.write(doc)
}

type SortCmd struct {
	File string `arg:"" type:"existingfile" help:"Workflow document (JSON)."`
}

func (c *SortCmd) Run(a *app) error {
	doc, err := readDocument(c.File)
	if err != nil {
		return err
	}
	graph, diags := flowgraph.ImportDocument(doc, a.options()...)
	modules, sortDiags := flowgraph.SortByExecutionOrder(doc.Modules, graph.Edges, a.options()...)
	doc.Modules = modules
	a.report(append(diags, sortDiags...))
	return a.write(doc)
}

type ExpandCmd struct {
	File     string `arg:"" type:"existingfile" help:"Workflow document (JSON)."`
	Dir      string `help:"Resolve sub-workflows from <dir>/<id>.json." type:"existingdir"`
	BaseURL  string `help:"Resolve sub-workflows from <base-url>/<id>.json." name:"base-url"`
	MaxDepth int    `help:"Maximum sub-workflow nesting." default:"8"`
}

func (c *ExpandCmd) Run(a *app) error {
	doc, err := readDocument(c.File)
	if err != nil {
		return err
	}
	fetcher, closeFn, err := a.fetcher(c.Dir, c.BaseURL)
	if err != nil {
		return err
	}
	defer closeFn()

	out, diags, err := expand.New(fetcher,
		expand.WithMaxDepth(c.MaxDepth),
		expand.WithLogger(a.logger),
	).Expand(a.ctx, doc)
	if err != nil {
		return err
	}
	a.report(diags)
	return a.write(out)
}

// fetcher picks a sub-workflow source. Flags win over config, and a
// configured store wins over configured fetch locations.
func (a *app) fetcher(dir, baseURL string) (expand.Fetcher, func(), error) {
	noop := func() {}
	switch {
	case dir != "":
		return expand.DirFetcher{Dir: dir}, noop, nil
	case baseURL != "":
		return a.httpFetcher(baseURL), noop, nil
	case a.cfg.Store.Enabled():
		s, err := a.openStore()
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case a.cfg.Fetch.BaseURL != "":
		return a.httpFetcher(a.cfg.Fetch.BaseURL), noop, nil
	case a.cfg.Fetch.Dir != "":
		return expand.DirFetcher{Dir: a.cfg.Fetch.Dir}, noop, nil
	}
	return nil, nil, fmt.Errorf("no sub-workflow source: pass --dir or --base-url, or configure fetch or store")
}

func (a *app) httpFetcher(baseURL string) expand.Fetcher {
	f := a.cfg.Fetch
	return expand.RetryFetcher{
		Fetcher:    expand.NewHTTPFetcher(baseURL, f.Timeout),
		MaxRetries: f.MaxRetries,
		Backoff: expand.ExponentialBackoff{
			Base:   f.Backoff.Base,
			Factor: f.Backoff.Factor,
			Max:    f.Backoff.Max,
		},
		Logger: a.logger,
	}
}

type CatalogCmd struct {
	List  CatalogListCmd  `cmd:"" help:"List node types grouped by category."`
	Show  CatalogShowCmd  `cmd:"" help:"Show one node type definition."`
	Watch CatalogWatchCmd `cmd:"" help:"Reload the catalog on a schedule until interrupted."`
}

type catalogEntry struct {
	Category   string `json:"category"`
	ModuleType string `json:"module_type"`
	WorkflowID string `json:"workflow_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Composite  bool   `json:"is_composited"`
}

type CatalogListCmd struct{}

func (c *CatalogListCmd) Run(a *app) error {
	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}
	groups := cat.Categories()
	entries := []catalogEntry{}
	for _, name := range cat.CategoryNames() {
		for _, def := range groups[name] {
			entries = append(entries, catalogEntry{
				Category:   name,
				ModuleType: def.ModuleType,
				WorkflowID: def.WorkflowID,
				Title:      def.Meta.Title,
				Composite:  def.IsComposited,
			})
		}
	}
	return a.write(entries)
}

type CatalogShowCmd struct {
	Type       string `arg:"" help:"Module type."`
	WorkflowID string `help:"Workflow id for workflow node types." name:"workflow-id"`
}

func (c *CatalogShowCmd) Run(a *app) error {
	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}
	def, ok := cat.Find(c.Type, c.WorkflowID)
	if !ok {
		return flowgraph.NewError(flowgraph.ErrUnknownNodeType, "node type not in catalog", nil,
			map[string]any{"module_type": c.Type, "workflow_id": c.WorkflowID})
	}
	return a.write(def)
}

type CatalogWatchCmd struct {
	Schedule string `help:"Cron schedule, defaults to catalog.refresh."`
}

func (c *CatalogWatchCmd) Run(a *app) error {
	schedule := c.Schedule
	if schedule == "" {
		schedule = a.cfg.Catalog.Refresh
	}
	if schedule == "" {
		return fmt.Errorf("catalog watch requires --schedule or catalog.refresh")
	}
	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}
	src := catalog.FileSource{Path: a.cfg.Catalog.Path}
	refresher, err := catalog.NewRefresher(cat, src, schedule, catalog.WithRefreshLogger(a.logger))
	if err != nil {
		return err
	}
	if err := refresher.Start(); err != nil {
		return err
	}
	a.logger.Info("watching catalog %s (%s), %d node types", src.Path, schedule, cat.Len())

	<-a.ctx.Done()
	select {
	case <-refresher.Stop().Done():
	case <-time.After(5 * time.Second):
		a.logger.Warn("catalog refresh still running at shutdown")
	}
	return nil
}

func (a *app) loadCatalog() (*catalog.Catalog, error) {
	if a.cfg.Catalog.Path == "" {
		return nil, fmt.Errorf("catalog path required: pass --catalog or set catalog.path")
	}
	return catalog.Load(a.ctx, catalog.FileSource{Path: a.cfg.Catalog.Path})
}

type NodeCmd struct {
	New NodeNewCmd `cmd:"" help:"Create a node, with slot nodes when --slots is set."`
}

type NodeNewCmd struct {
	Type       string  `arg:"" help:"Module type."`
	X          float64 `help:"Canvas x position."`
	Y          float64 `help:"Canvas y position."`
	Slots      bool    `help:"Create slot nodes and slot edges."`
	WorkflowID string  `help:"Workflow id for workflow node types." name:"workflow-id"`
	ModuleID   string  `help:"Use this module id instead of a generated one." name:"module-id"`
}

func (c *NodeNewCmd) Run(a *app) error {
	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}
	factory := catalog.NewFactory(cat, catalog.WithFactoryLogger(a.logger))
	opts := []catalog.NodeOption{}
	if c.WorkflowID != "" {
		opts = append(opts, catalog.ForWorkflow(c.WorkflowID))
	}
	if c.ModuleID != "" {
		opts = append(opts, catalog.WithModuleID(c.ModuleID))
	}
	pos := flowgraph.Position{X: c.X, Y: c.Y}

	graph := flowgraph.Graph{Nodes: []*flowgraph.GraphNode{}, Edges: []flowgraph.GraphEdge{}}
	if !c.Slots {
		node, err := factory.NewNode(c.Type, pos, opts...)
		if err != nil {
			return err
		}
		graph.Nodes = append(graph.Nodes, node)
		return a.write(graph)
	}
	bundle, err := factory.NewNodeWithSlots(c.Type, pos, opts...)
	if err != nil {
		return err
	}
	graph.Nodes = append(graph.Nodes, bundle.Node)
	graph.Nodes = append(graph.Nodes, bundle.SlotNodes...)
	graph.Edges = append(graph.Edges, bundle.Edges...)
	return a.write(graph)
}

type StoreCmd struct {
	Put    StorePutCmd    `cmd:"" help:"Store a workflow document under an id."`
	Get    StoreGetCmd    `cmd:"" help:"Print a stored workflow document."`
	List   StoreListCmd   `cmd:"" help:"List stored workflow documents."`
	Delete StoreDeleteCmd `cmd:"" help:"Delete a stored workflow document."`
}

type StorePutCmd struct {
	ID   string `arg:"" help:"Document id."`
	File string `arg:"" type:"existingfile" help:"Workflow document (JSON)."`
}

func (c *StorePutCmd) Run(a *app) error {
	doc, err := readDocument(c.File)
	if err != nil {
		return err
	}
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Put(a.ctx, c.ID, doc); err != nil {
		return err
	}
	a.logger.Info("stored workflow %s", c.ID)
	return nil
}

type StoreGetCmd struct {
	ID string `arg:"" help:"Document id."`
}

func (c *StoreGetCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	doc, err := s.Get(a.ctx, c.ID)
	if err != nil {
		return err
	}
	if doc == nil {
		return flowgraph.NewError(flowgraph.ErrNotFound, "document not found", nil, map[string]any{"id": c.ID})
	}
	return a.write(doc)
}

type StoreListCmd struct{}

func (c *StoreListCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	records, err := s.List(a.ctx)
	if err != nil {
		return err
	}
	return a.write(records)
}

type StoreDeleteCmd struct {
	ID string `arg:"" help:"Document id."`
}

func (c *StoreDeleteCmd) Run(a *app) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Delete(a.ctx, c.ID)
}

func (a *app) openStore() (*store.SQLStore, error) {
	cfg := a.cfg.Store
	if !cfg.Enabled() {
		return nil, fmt.Errorf("no store configured: set store.driver and store.dsn")
	}
	s, err := store.Open(cfg.Driver, cfg.DSN, cfg.Table)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(a.ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
