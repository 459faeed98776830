package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	flowgraph "github.com/goliatone/go-flowgraph"
	"github.com/goliatone/go-flowgraph/config"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// CLI is the flowgraph command tree.
type CLI struct {
	Config    string `help:"YAML or JSON config file." type:"path" short:"c"`
	LogLevel  string `help:"Override log.level." name:"log-level"`
	LogFormat string `help:"Override log.format (json or plain)." name:"log-format"`
	Catalog   string `help:"Override catalog.path." type:"path"`
	Out       string `help:"Write output to a file instead of stdout." type:"path" short:"o"`

	Validate ValidateCmd `cmd:"" help:"Validate a workflow document."`
	Import   ImportCmd   `cmd:"" help:"Convert a workflow document into a graph."`
	Export   ExportCmd   `cmd:"" help:"Convert a graph into a workflow document."`
	Sort     SortCmd     `cmd:"" help:"Reorder a workflow document by execution order."`
	Expand   ExpandCmd   `cmd:"" help:"Inline sub-workflows referenced by a document."`
	Nodes    CatalogCmd  `cmd:"" name:"catalog" help:"Inspect the node type catalog."`
	Node     NodeCmd     `cmd:"" help:"Create graph nodes from the catalog."`
	Store    StoreCmd    `cmd:"" help:"Manage stored workflow documents."`
}

// app carries the resolved runtime state handed to every command.
type app struct {
	ctx    context.Context
	cfg    config.Config
	logger flowgraph.Logger
	stdout io.Writer
	out    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "flowgraph: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("flowgraph"),
		kong.Description("Convert, validate and order node-graph workflows."),
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cli, stdout, stderr)
	if err != nil {
		return err
	}
	return kctx.Run(a)
}

func newApp(ctx context.Context, cli CLI, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}
	if cli.Catalog != "" {
		cfg.Catalog.Path = cli.Catalog
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &app{
		ctx:    ctx,
		cfg:    cfg,
		logger: newLogger(cfg.Log.Format, strings.ToLower(cfg.Log.Level), stderr),
		stdout: stdout,
		out:    cli.Out,
	}, nil
}

func (a *app) options() []flowgraph.Option {
	opts := []flowgraph.Option{
		flowgraph.WithLogger(a.logger),
		flowgraph.WithVersion(a.cfg.Export.Version),
	}
	if a.cfg.Export.Trace {
		opts = append(opts, flowgraph.WithTrace(func(stage string, fields map[string]any) {
			flowgraph.WithLoggerFields(a.logger, fields).Info("trace %s", stage)
		}))
	}
	return opts
}

// report logs diagnostics at a level matching their severity.
func (a *app) report(diags []flowgraph.Diagnostic) {
	for _, d := range diags {
		if d.Severity == flowgraph.SeverityError {
			a.logger.Error("%s", d.String())
			continue
		}
		a.logger.Warn("%s", d.String())
	}
}

func (a *app) write(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if a.out == "" {
		_, err = a.stdout.Write(data)
		return err
	}
	return os.WriteFile(a.out, data, 0o644)
}

func readDocument(path string) (*flowgraph.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return flowgraph.ParseDocument(data)
}

func readGraph(path string) (flowgraph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return flowgraph.Graph{}, err
	}
	return flowgraph.ParseGraph(data)
}
