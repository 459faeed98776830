package expand

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	flowgraph "github.com/goliatone/go-flowgraph"
)

// Fetcher resolves a sub-workflow document by id. A nil document with a nil
// error means the workflow does not exist.
type Fetcher interface {
	FetchWorkflow(ctx context.Context, id string) (*flowgraph.Document, error)
}

type FetcherFunc func(ctx context.Context, id string) (*flowgraph.Document, error)

func (f FetcherFunc) FetchWorkflow(ctx context.Context, id string) (*flowgraph.Document, error) {
	return f(ctx, id)
}

// DefaultHTTPTimeout bounds a single HTTP fetch when no client is supplied.
const DefaultHTTPTimeout = 10 * time.Second

// HTTPFetcher loads <BaseURL>/<id>.json.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) FetchWorkflow(ctx context.Context, id string) (*flowgraph.Document, error) {
	if err := checkWorkflowID(id); err != nil {
		return nil, err
	}
	target := strings.TrimRight(f.BaseURL, "/") + "/" + url.PathEscape(id) + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fetchError(id, "build workflow request", err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fetchError(id, "request workflow", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fetchError(id, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchError(id, "read workflow body", err)
	}
	doc, err := flowgraph.ParseDocument(body)
	if err != nil {
		return nil, fetchError(id, "decode workflow", err)
	}
	return doc, nil
}

// DirFetcher loads <Dir>/<id>.json from disk.
type DirFetcher struct {
	Dir string
}

func (f DirFetcher) FetchWorkflow(ctx context.Context, id string) (*flowgraph.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkWorkflowID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(f.Dir, id+".json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fetchError(id, "read workflow file", err)
	}
	doc, err := flowgraph.ParseDocument(data)
	if err != nil {
		return nil, fetchError(id, "decode workflow", err)
	}
	return doc, nil
}

func checkWorkflowID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fetchError(id, "invalid workflow id", nil)
	}
	return nil
}

func fetchError(id, message string, source error) error {
	return flowgraph.NewError(flowgraph.ErrFetchFailed, message, source, map[string]any{"workflow_id": id})
}
