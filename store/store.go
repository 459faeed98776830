package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	flowgraph "github.com/goliatone/go-flowgraph"
)

const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"

	DefaultTable = "workflows"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Record summarizes a stored workflow document.
type Record struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SQLStore persists workflow documents as JSON rows. It serves stored
// documents to the expander as a workflow fetcher.
type SQLStore struct {
	db      *sql.DB
	dialect string
	table   string
	now     func() time.Time
}

type Option func(*SQLStore)

// WithClock overrides the timestamp source used by Put.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a store for db. dialect is the database/sql driver name.
func New(db *sql.DB, dialect, table string, opts ...Option) (*SQLStore, error) {
	if db == nil {
		return nil, storeError("database handle is nil", nil, nil)
	}
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, storeError("unsupported store dialect", nil, map[string]any{"dialect": dialect})
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, storeError("invalid store table name", nil, map[string]any{"table": table})
	}
	s := &SQLStore{
		db:      db,
		dialect: dialect,
		table:   table,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Open opens a database with the named driver and wraps it in a store. The
// driver must be registered by the caller.
func Open(driver, dsn, table string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, storeError("open store database", err, map[string]any{"driver": driver})
	}
	if driver == DialectSQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	s, err := New(db, driver, table, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the documents table when missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		document TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return storeError("create store schema", err, map[string]any{"table": s.table})
	}
	return nil
}

// Put inserts or replaces the document stored under id.
func (s *SQLStore) Put(ctx context.Context, id string, doc *flowgraph.Document) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return storeError("document id required", nil, nil)
	}
	if doc == nil {
		return storeError("document required", nil, map[string]any{"id": id})
	}
	payload, err := flowgraph.MarshalDocument(doc)
	if err != nil {
		return storeError("encode document", err, map[string]any{"id": id})
	}
	q := s.bind(fmt.Sprintf(`INSERT INTO %s (id, title, document, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, document = excluded.document, updated_at = excluded.updated_at`, s.table))
	_, err = s.db.ExecContext(ctx, q,
		id,
		doc.Meta.Title,
		string(payload),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storeError("write document", err, map[string]any{"id": id})
	}
	return nil
}

// Get returns the document stored under id, or nil when there is none.
func (s *SQLStore) Get(ctx context.Context, id string) (*flowgraph.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	q := s.bind(fmt.Sprintf(`SELECT document FROM %s WHERE id = ?`, s.table))
	var payload string
	err := s.db.QueryRowContext(ctx, q, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("read document", err, map[string]any{"id": id})
	}
	doc, err := flowgraph.ParseDocument([]byte(payload))
	if err != nil {
		return nil, storeError("decode stored document", err, map[string]any{"id": id})
	}
	return doc, nil
}

// List returns every stored record ordered by id.
func (s *SQLStore) List(ctx context.Context) ([]Record, error) {
	q := fmt.Sprintf(`SELECT id, title, updated_at FROM %s ORDER BY id`, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, storeError("list documents", err, nil)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var updatedAt string
		if err := rows.Scan(&rec.ID, &rec.Title, &updatedAt); err != nil {
			return nil, storeError("scan document row", err, nil)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
			rec.UpdatedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list documents", err, nil)
	}
	return records, nil
}

// Delete removes id. Deleting a missing id returns a not found error.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	q := s.bind(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table))
	result, err := s.db.ExecContext(ctx, q, strings.TrimSpace(id))
	if err != nil {
		return storeError("delete document", err, map[string]any{"id": id})
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return flowgraph.NewError(flowgraph.ErrNotFound, "document not found", nil, map[string]any{"id": id})
	}
	return nil
}

// FetchWorkflow loads a stored document as a sub-workflow.
func (s *SQLStore) FetchWorkflow(ctx context.Context, id string) (*flowgraph.Document, error) {
	return s.Get(ctx, id)
}

// bind rewrites ? placeholders for dialects that number them.
func (s *SQLStore) bind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func storeError(message string, source error, metadata map[string]any) error {
	return flowgraph.NewError(flowgraph.ErrStore, message, source, metadata)
}
