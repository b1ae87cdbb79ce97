// Package usagelog persists per-call usage and cost accounting rows for
// suggestion requests: which endpoint ran, which model answered, how many
// tokens were budgeted versus consumed, and whether the cost-control layer
// absorbed the call before it reached the provider.
package usagelog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Entry is one usage row.
type Entry struct {
	Endpoint         string
	Model            string
	Provider         string
	ClientID         string
	BudgetedTokens   int
	PromptTokens     int
	CompletionTokens int
	// Source records who answered: "provider", "cache", or "dedup".
	Source    string
	CreatedAt time.Time
}

// Writer persists usage entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// NoopWriter ignores all usage writes.
type NoopWriter struct{}

func (NoopWriter) Write(_ context.Context, _ Entry) error { return nil }

// SQLWriter persists entries to SQLite/Postgres.
type SQLWriter struct {
	db      *sql.DB
	dialect string
}

// NewSQLiteWriter opens (creating if needed) a SQLite usage log at dsn.
func NewSQLiteWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "costgate-usage.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite usage log: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "sqlite"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

// NewPostgresWriter opens a Postgres usage log at dsn.
func NewPostgresWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres usage log: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "postgres"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLWriter) init() error {
	if err := w.db.Ping(); err != nil {
		return fmt.Errorf("ping %s usage log: %w", w.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS usage_logs (
	id INTEGER PRIMARY KEY,
	endpoint TEXT NOT NULL,
	model TEXT,
	provider TEXT,
	client_id TEXT,
	budgeted_tokens INTEGER NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	source TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);`

	if w.dialect == "postgres" {
		ddl = `
CREATE TABLE IF NOT EXISTS usage_logs (
	id BIGSERIAL PRIMARY KEY,
	endpoint TEXT NOT NULL,
	model TEXT,
	provider TEXT,
	client_id TEXT,
	budgeted_tokens INTEGER NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	source TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`
	}

	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize usage log schema: %w", err)
	}
	return nil
}

// Write inserts one usage row.
func (w *SQLWriter) Write(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO usage_logs(endpoint, model, provider, client_id, budgeted_tokens, prompt_tokens, completion_tokens, source, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if w.dialect == "postgres" {
		query = `INSERT INTO usage_logs(endpoint, model, provider, client_id, budgeted_tokens, prompt_tokens, completion_tokens, source, created_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	}

	_, err := w.db.ExecContext(ctx, query,
		entry.Endpoint,
		entry.Model,
		entry.Provider,
		entry.ClientID,
		entry.BudgetedTokens,
		entry.PromptTokens,
		entry.CompletionTokens,
		entry.Source,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write usage log: %w", err)
	}
	return nil
}

// Query filters a List call. Zero-valued fields are ignored; Limit defaults
// to 50.
type Query struct {
	Limit    int
	Offset   int
	Endpoint string
	Source   string
}

// ListResult is one page of usage rows plus the unpaged total.
type ListResult struct {
	Total int
	Data  []Entry
}

// List returns usage rows, newest first.
func (w *SQLWriter) List(ctx context.Context, q Query) (ListResult, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, w.placeholder(len(args))))
	}
	if q.Endpoint != "" {
		add("endpoint = %s", q.Endpoint)
	}
	if q.Source != "" {
		add("source = %s", q.Source)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM usage_logs"+cond, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count usage logs: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT endpoint, model, provider, client_id, budgeted_tokens, prompt_tokens, completion_tokens, source, created_at FROM usage_logs%s ORDER BY created_at DESC LIMIT %s OFFSET %s",
		cond, w.placeholder(len(args)+1), w.placeholder(len(args)+2),
	)
	args = append(args, q.Limit, q.Offset)

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list usage logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := ListResult{Total: total}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Endpoint, &e.Model, &e.Provider, &e.ClientID, &e.BudgetedTokens, &e.PromptTokens, &e.CompletionTokens, &e.Source, &e.CreatedAt); err != nil {
			return ListResult{}, fmt.Errorf("scan usage log row: %w", err)
		}
		result.Data = append(result.Data, e)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("iterate usage logs: %w", err)
	}
	return result, nil
}

// Totals summarizes the whole log: total calls, token volume, and how many
// requests the cost-control layer absorbed without a provider call.
type Totals struct {
	Calls            int
	PromptTokens     int
	CompletionTokens int
	Absorbed         int
}

// Totals aggregates all usage rows.
func (w *SQLWriter) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := w.db.QueryRowContext(ctx, `
SELECT COUNT(*),
	COALESCE(SUM(prompt_tokens), 0),
	COALESCE(SUM(completion_tokens), 0),
	COALESCE(SUM(CASE WHEN source <> 'provider' THEN 1 ELSE 0 END), 0)
FROM usage_logs`).Scan(&t.Calls, &t.PromptTokens, &t.CompletionTokens, &t.Absorbed)
	if err != nil {
		return Totals{}, fmt.Errorf("aggregate usage logs: %w", err)
	}
	return t, nil
}

func (w *SQLWriter) placeholder(n int) string {
	if w.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Close closes the underlying database handle.
func (w *SQLWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}
