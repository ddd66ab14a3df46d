package graphstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/codegraph-labs/justify/pkg/graph"
)

//go:embed migrations
var migrationsFS embed.FS

// PostgresConfig configures the connection pool, mirroring teacher's
// pkg/database/client.go tuning knobs.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresAdapter implements Adapter against a Postgres database via the
// pgx stdlib driver, with schema managed by embedded golang-migrate SQL
// migrations (teacher's pkg/database/client.go pattern verbatim).
type PostgresAdapter struct {
	db *sql.DB
}

// NewPostgresAdapter opens the connection pool and runs migrations to the
// latest version.
func NewPostgresAdapter(cfg PostgresConfig) (*PostgresAdapter, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, wrapStorage("open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, wrapStorage("migrate", err)
	}

	return &PostgresAdapter{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := pgx.WithInstance(db, &pgx.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	slog.Info("graphstore: migrations applied")
	return nil
}

// Close releases the underlying connection pool.
func (p *PostgresAdapter) Close() error {
	return p.db.Close()
}

// DB exposes the underlying pool for collaborators that need direct SQL
// access outside the Adapter's entity/justification surface, namely
// pkg/queue's run-claim queries against justify_runs.
func (p *PostgresAdapter) DB() *sql.DB {
	return p.db
}

func (p *PostgresAdapter) ListEntitiesByKind(ctx context.Context, kind graph.EntityKind) ([]graph.Entity, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, file_path, kind, signature, doc_comment, snippet, start_line, end_line, line
		FROM entities WHERE kind = $1 ORDER BY id`, string(kind))
	if err != nil {
		return nil, wrapStorage("list_entities_by_kind", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

func (p *PostgresAdapter) GetEntity(ctx context.Context, id string) (graph.Entity, bool, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, file_path, kind, signature, doc_comment, snippet, start_line, end_line, line
		FROM entities WHERE id = $1`, id)
	var e graph.Entity
	var kind string
	if err := row.Scan(&e.ID, &e.Name, &e.FilePath, &kind, &e.Signature, &e.DocComment, &e.Snippet, &e.StartLine, &e.EndLine, &e.Line); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return graph.Entity{}, false, nil
		}
		return graph.Entity{}, false, wrapStorage("get_entity", err)
	}
	e.Kind = graph.EntityKind(kind)
	return e, true, nil
}

func (p *PostgresAdapter) GetRelationships(ctx context.Context, kind graph.RelationshipKind) ([]graph.Relationship, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT from_id, to_id, kind FROM relationships WHERE kind = $1`, string(kind))
	if err != nil {
		return nil, wrapStorage("get_relationships", err)
	}
	defer rows.Close()
	var out []graph.Relationship
	for rows.Next() {
		var r graph.Relationship
		var k string
		if err := rows.Scan(&r.FromID, &r.ToID, &k); err != nil {
			return nil, wrapStorage("get_relationships", err)
		}
		r.Kind = graph.RelationshipKind(k)
		out = append(out, r)
	}
	return out, wrapStorage("get_relationships", rows.Err())
}

func (p *PostgresAdapter) GetByFile(ctx context.Context, path string) ([]graph.Entity, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, file_path, kind, signature, doc_comment, snippet, start_line, end_line, line
		FROM entities WHERE file_path = $1 ORDER BY id`, path)
	if err != nil {
		return nil, wrapStorage("get_by_file", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

func scanEntities(rows *sql.Rows) ([]graph.Entity, error) {
	var out []graph.Entity
	for rows.Next() {
		var e graph.Entity
		var kind string
		if err := rows.Scan(&e.ID, &e.Name, &e.FilePath, &kind, &e.Signature, &e.DocComment, &e.Snippet, &e.StartLine, &e.EndLine, &e.Line); err != nil {
			return nil, wrapStorage("scan_entities", err)
		}
		e.Kind = graph.EntityKind(kind)
		out = append(out, e)
	}
	return out, wrapStorage("scan_entities", rows.Err())
}

func (p *PostgresAdapter) GetJustification(ctx context.Context, entityID string) (graph.Justification, bool, error) {
	row := p.db.QueryRowContext(ctx, justificationSelectSQL+` WHERE entity_id = $1`, entityID)
	j, ok, err := scanJustification(row)
	if err != nil {
		return graph.Justification{}, false, wrapStorage("get_justification", err)
	}
	return j, ok, nil
}

func (p *PostgresAdapter) GetJustifications(ctx context.Context, ids []string) (map[string]graph.Justification, error) {
	out := make(map[string]graph.Justification)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := p.db.QueryContext(ctx, justificationSelectSQL+` WHERE entity_id = ANY($1)`, pqStringArray(ids))
	if err != nil {
		return nil, wrapStorage("get_justifications", err)
	}
	defer rows.Close()
	for rows.Next() {
		j, err := scanJustificationRow(rows)
		if err != nil {
			return nil, wrapStorage("get_justifications", err)
		}
		out[j.EntityID] = j
	}
	return out, wrapStorage("get_justifications", rows.Err())
}

func (p *PostgresAdapter) GetPendingClarifications(ctx context.Context, limit int) ([]graph.Justification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, justificationSelectSQL+` WHERE clarification_pending ORDER BY updated_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, wrapStorage("get_pending_clarifications", err)
	}
	defer rows.Close()
	var out []graph.Justification
	for rows.Next() {
		j, err := scanJustificationRow(rows)
		if err != nil {
			return nil, wrapStorage("get_pending_clarifications", err)
		}
		out = append(out, j)
	}
	return out, wrapStorage("get_pending_clarifications", rows.Err())
}

// TextSearch mirrors teacher's SessionService.SearchSessions's
// to_tsvector/plainto_tsquery full-text search idiom, applied to
// purpose_summary || ' ' || detailed_description.
func (p *PostgresAdapter) TextSearch(ctx context.Context, query string, limit int) ([]graph.Justification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, justificationSelectSQL+`
		WHERE to_tsvector('english', purpose_summary || ' ' || detailed_description) @@ plainto_tsquery('english', $1)
		ORDER BY updated_at DESC LIMIT $2`, query, limit)
	if err != nil {
		return nil, wrapStorage("text_search", err)
	}
	defer rows.Close()
	var out []graph.Justification
	for rows.Next() {
		j, err := scanJustificationRow(rows)
		if err != nil {
			return nil, wrapStorage("text_search", err)
		}
		out = append(out, j)
	}
	return out, wrapStorage("text_search", rows.Err())
}

const justificationSelectSQL = `
	SELECT entity_id, justification_id, entity_kind, name, file_path,
	       purpose_summary, business_value, feature_context, detailed_description, tags,
	       inferred_from, evidence_sources, reasoning,
	       confidence_score, confidence_level,
	       parent_justification_id, hierarchy_depth,
	       clarification_pending, pending_questions,
	       run_id, created_at, updated_at, version
	FROM justifications`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJustification(row *sql.Row) (graph.Justification, bool, error) {
	j, err := scanJustificationRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.Justification{}, false, nil
	}
	if err != nil {
		return graph.Justification{}, false, err
	}
	return j, true, nil
}

func scanJustificationRow(row rowScanner) (graph.Justification, error) {
	var j graph.Justification
	var kind string
	var tags, evidence []byte
	var questions []byte
	var parentID sql.NullString

	err := row.Scan(
		&j.EntityID, &j.JustificationID, &kind, &j.Name, &j.FilePath,
		&j.PurposeSummary, &j.BusinessValue, &j.FeatureContext, &j.DetailedDescription, pqArrayScanner{&tags},
		&j.InferredFrom, pqArrayScanner{&evidence}, &j.Reasoning,
		&j.ConfidenceScore, &j.ConfidenceLevel,
		&parentID, &j.HierarchyDepth,
		&j.ClarificationPending, &questions,
		&j.RunID, &j.CreatedAt, &j.UpdatedAt, &j.Version,
	)
	if err != nil {
		return graph.Justification{}, err
	}
	j.EntityKind = graph.EntityKind(kind)
	if parentID.Valid {
		j.ParentJustificationID = parentID.String
	}
	j.Tags = decodeTextArray(tags)
	j.EvidenceSources = decodeTextArray(evidence)
	if len(questions) > 0 {
		_ = json.Unmarshal(questions, &j.PendingQuestions)
	}
	return j, nil
}

func (p *PostgresAdapter) UpsertJustification(ctx context.Context, j graph.Justification) error {
	j.Normalize()
	questions, err := json.Marshal(j.PendingQuestions)
	if err != nil {
		return wrapStorage("upsert_justification", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO justifications (
			entity_id, justification_id, entity_kind, name, file_path,
			purpose_summary, business_value, feature_context, detailed_description, tags,
			inferred_from, evidence_sources, reasoning,
			confidence_score, confidence_level,
			parent_justification_id, hierarchy_depth,
			clarification_pending, pending_questions,
			run_id, created_at, updated_at, version
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15,
			$16, $17,
			$18, $19,
			$20, now(), now(), 1
		)
		ON CONFLICT (entity_id) DO UPDATE SET
			justification_id = EXCLUDED.justification_id,
			entity_kind = EXCLUDED.entity_kind,
			name = EXCLUDED.name,
			file_path = EXCLUDED.file_path,
			purpose_summary = EXCLUDED.purpose_summary,
			business_value = EXCLUDED.business_value,
			feature_context = EXCLUDED.feature_context,
			detailed_description = EXCLUDED.detailed_description,
			tags = EXCLUDED.tags,
			inferred_from = EXCLUDED.inferred_from,
			evidence_sources = EXCLUDED.evidence_sources,
			reasoning = EXCLUDED.reasoning,
			confidence_score = EXCLUDED.confidence_score,
			confidence_level = EXCLUDED.confidence_level,
			parent_justification_id = EXCLUDED.parent_justification_id,
			hierarchy_depth = EXCLUDED.hierarchy_depth,
			clarification_pending = EXCLUDED.clarification_pending,
			pending_questions = EXCLUDED.pending_questions,
			run_id = EXCLUDED.run_id,
			updated_at = now(),
			version = justifications.version + 1
	`,
		j.EntityID, j.JustificationID, string(j.EntityKind), j.Name, j.FilePath,
		j.PurposeSummary, j.BusinessValue, j.FeatureContext, j.DetailedDescription, encodeTextArray(j.Tags),
		string(j.InferredFrom), encodeTextArray(j.EvidenceSources), j.Reasoning,
		j.ConfidenceScore, string(j.ConfidenceLevel),
		nullableString(j.ParentJustificationID), j.HierarchyDepth,
		j.ClarificationPending, questions,
		j.RunID,
	)
	if err != nil {
		return wrapStorage("upsert_justification", err)
	}
	return nil
}

func (p *PostgresAdapter) DeleteJustification(ctx context.Context, entityID, filePath string) error {
	var err error
	if entityID != "" {
		_, err = p.db.ExecContext(ctx, `DELETE FROM justifications WHERE entity_id = $1`, entityID)
	} else {
		_, err = p.db.ExecContext(ctx, `DELETE FROM justifications WHERE file_path = $1`, filePath)
	}
	if err != nil {
		return wrapStorage("delete_justification", err)
	}
	return nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func pqStringArray(ids []string) any {
	return encodeTextArray(ids)
}

// encodeTextArray/decodeTextArray/pqArrayScanner implement Postgres TEXT[]
// literal encoding without pulling in lib/pq, since the pack's driver here
// is pgx; pgx's database/sql stdlib mode accepts/returns the Postgres
// array text literal format directly via driver.Valuer/sql.Scanner.
func encodeTextArray(items []string) string {
	if len(items) == 0 {
		return "{}"
	}
	out := "{"
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += `"` + escapeArrayElem(it) + `"`
	}
	return out + "}"
}

func escapeArrayElem(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func decodeTextArray(b []byte) []string {
	s := string(b)
	if len(s) < 2 || s[0] != '{' {
		return nil
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return nil
	}
	var out []string
	var cur []byte
	inQuotes := false
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == '\\' && i+1 < len(inner):
			i++
			cur = append(cur, inner[i])
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			out = append(out, string(cur))
			cur = nil
		default:
			cur = append(cur, c)
		}
	}
	out = append(out, string(cur))
	return out
}

// pqArrayScanner adapts our []byte decode target to sql.Scanner so pgx can
// hand us the raw array literal bytes regardless of underlying wire type.
type pqArrayScanner struct {
	dest *[]byte
}

func (s pqArrayScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.dest = nil
		return nil
	case []byte:
		*s.dest = append([]byte(nil), v...)
		return nil
	case string:
		*s.dest = []byte(v)
		return nil
	default:
		return fmt.Errorf("graphstore: unsupported array scan source %T", src)
	}
}
