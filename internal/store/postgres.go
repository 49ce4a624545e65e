package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cribs1908/specpipe/internal/db"
	"github.com/cribs1908/specpipe/internal/model"
	"github.com/cribs1908/specpipe/internal/synonym"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	workspace_id TEXT NOT NULL,
	domain       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id       TEXT PRIMARY KEY,
	run_id   TEXT NOT NULL REFERENCES runs(id),
	filename TEXT NOT NULL,
	path     TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	pages    INTEGER NOT NULL DEFAULT 0,
	ocr_used BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS extractions_raw (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	document_id TEXT NOT NULL,
	field_id    TEXT NOT NULL,
	value_raw   TEXT NOT NULL,
	unit_raw    TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	confidence  DOUBLE PRECISION NOT NULL,
	provenance  JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS extractions_norm (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	document_id    TEXT NOT NULL,
	field_id       TEXT NOT NULL,
	value          TEXT NOT NULL,
	unit           TEXT NOT NULL DEFAULT '',
	note           TEXT NOT NULL DEFAULT '',
	flags          JSONB NOT NULL DEFAULT '[]',
	provenance_ref TEXT NOT NULL DEFAULT '',
	confidence     DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS result_tables (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS synonyms (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	workspace_id TEXT NOT NULL DEFAULT '',
	field_id     TEXT NOT NULL,
	variants     JSONB NOT NULL DEFAULT '[]',
	score        DOUBLE PRECISION NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(workspace_id, field_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_workspace ON runs(workspace_id);
CREATE INDEX IF NOT EXISTS idx_documents_run_id ON documents(run_id);
CREATE INDEX IF NOT EXISTS idx_extractions_raw_run_id ON extractions_raw(run_id);
CREATE INDEX IF NOT EXISTS idx_extractions_norm_run_id ON extractions_norm(run_id);
CREATE INDEX IF NOT EXISTS idx_result_tables_run_id ON result_tables(run_id);
CREATE INDEX IF NOT EXISTS idx_synonyms_field_id ON synonyms(field_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Runs

func (s *PostgresStore) CreateRun(ctx context.Context, workspaceID, domain string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, workspace_id, domain, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, workspaceID, domain, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:          id,
		WorkspaceID: workspaceID,
		Domain:      domain,
		Status:      model.RunStatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, domain, status, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.WorkspaceID, &r.Domain, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, workspace_id, domain, status, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.WorkspaceID != "" {
		query += fmt.Sprintf(` AND workspace_id = $%d`, argIdx)
		args = append(args, filter.WorkspaceID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Domain, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	if status != model.RunStatusError {
		errMsg = ""
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunDomain(ctx context.Context, runID, domain string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET domain = $1, updated_at = $2 WHERE id = $3`,
		domain, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run domain %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

// Documents

func (s *PostgresStore) CreateDocument(ctx context.Context, doc model.Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, run_id, filename, path, position, pages, ocr_used) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.RunID, doc.Filename, doc.Path, doc.Position, doc.Pages, doc.OCRUsed,
	)
	return eris.Wrapf(err, "postgres: insert document %s", doc.ID)
}

func (s *PostgresStore) ListDocuments(ctx context.Context, runID string) ([]model.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, filename, path, position, pages, ocr_used FROM documents WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.RunID, &d.Filename, &d.Path, &d.Position, &d.Pages, &d.OCRUsed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) UpdateDocumentOCR(ctx context.Context, documentID string, pages int, ocrUsed bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET pages = $1, ocr_used = $2 WHERE id = $3`,
		pages, ocrUsed, documentID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document ocr %s", documentID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("document not found: %s", documentID)
	}
	return nil
}

// Extractions. Bulk writes go through COPY, one row per extraction.

var rawExtractionColumns = []string{"id", "run_id", "document_id", "field_id", "value_raw", "unit_raw", "source", "confidence", "provenance"}

func (s *PostgresStore) SaveRawExtractions(ctx context.Context, runID string, raws []model.ExtractionRaw) error {
	rows := make([][]any, 0, len(raws))
	for _, raw := range raws {
		provJSON, err := json.Marshal(raw.Provenance)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal provenance")
		}
		rows = append(rows, []any{raw.ID, runID, raw.DocumentID, raw.FieldID, raw.ValueRaw, raw.UnitRaw, raw.Source, raw.Confidence, provJSON})
	}

	_, err := db.CopyFrom(ctx, s.pool, "extractions_raw", rawExtractionColumns, rows)
	return eris.Wrapf(err, "postgres: save raw extractions for run %s", runID)
}

var normExtractionColumns = []string{"id", "run_id", "document_id", "field_id", "value", "unit", "note", "flags", "provenance_ref", "confidence"}

func (s *PostgresStore) SaveNormExtractions(ctx context.Context, runID string, norms []model.ExtractionNorm) error {
	rows := make([][]any, 0, len(norms))
	for _, norm := range norms {
		flagsJSON, err := json.Marshal(norm.Flags)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal flags")
		}
		rows = append(rows, []any{norm.ID, runID, norm.DocumentID, norm.FieldID, norm.Value, norm.Unit, norm.Note, flagsJSON, norm.ProvenanceRef, norm.Confidence})
	}

	_, err := db.CopyFrom(ctx, s.pool, "extractions_norm", normExtractionColumns, rows)
	return eris.Wrapf(err, "postgres: save norm extractions for run %s", runID)
}

func (s *PostgresStore) ListRawExtractions(ctx context.Context, runID string) ([]model.ExtractionRaw, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, field_id, value_raw, unit_raw, source, confidence, provenance
		 FROM extractions_raw WHERE run_id = $1 ORDER BY document_id, field_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list raw extractions")
	}
	defer rows.Close()

	var raws []model.ExtractionRaw
	for rows.Next() {
		var raw model.ExtractionRaw
		var provJSON []byte
		if err := rows.Scan(&raw.ID, &raw.DocumentID, &raw.FieldID, &raw.ValueRaw, &raw.UnitRaw, &raw.Source, &raw.Confidence, &provJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw extraction")
		}
		if err := json.Unmarshal(provJSON, &raw.Provenance); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal provenance")
		}
		raws = append(raws, raw)
	}
	return raws, eris.Wrap(rows.Err(), "postgres: list raw extractions iterate")
}

func (s *PostgresStore) ListNormExtractions(ctx context.Context, runID string) ([]model.ExtractionNorm, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, field_id, value, unit, note, flags, provenance_ref, confidence
		 FROM extractions_norm WHERE run_id = $1 ORDER BY document_id, field_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list norm extractions")
	}
	defer rows.Close()

	var norms []model.ExtractionNorm
	for rows.Next() {
		var norm model.ExtractionNorm
		var flagsJSON []byte
		if err := rows.Scan(&norm.ID, &norm.DocumentID, &norm.FieldID, &norm.Value, &norm.Unit, &norm.Note, &flagsJSON, &norm.ProvenanceRef, &norm.Confidence); err != nil {
			return nil, eris.Wrap(err, "postgres: scan norm extraction")
		}
		if err := json.Unmarshal(flagsJSON, &norm.Flags); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal flags")
		}
		norms = append(norms, norm)
	}
	return norms, eris.Wrap(rows.Err(), "postgres: list norm extractions iterate")
}

// Result tables

func (s *PostgresStore) SaveResultTable(ctx context.Context, table model.ResultTable) error {
	payload, err := json.Marshal(table)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result table")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO result_tables (id, run_id, payload, created_at) VALUES ($1, $2, $3, $4)`,
		table.ID, table.RunID, payload, table.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert result table %s", table.ID)
}

func (s *PostgresStore) GetResultTable(ctx context.Context, runID string) (*model.ResultTable, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM result_tables WHERE run_id = $1 ORDER BY created_at DESC LIMIT 1`,
		runID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get result table")
	}

	var table model.ResultTable
	if err := json.Unmarshal(payload, &table); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result table")
	}
	return &table, nil
}

// Synonyms

func (s *PostgresStore) ListWorkspaceSynonyms(ctx context.Context, workspaceID string) ([]synonym.Entry, error) {
	return s.listSynonyms(ctx, workspaceID)
}

func (s *PostgresStore) ListGlobalSynonyms(ctx context.Context) ([]synonym.Entry, error) {
	return s.listSynonyms(ctx, "")
}

func (s *PostgresStore) listSynonyms(ctx context.Context, workspaceID string) ([]synonym.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, field_id, variants, score, created_at, updated_at
		 FROM synonyms WHERE workspace_id = $1 ORDER BY field_id`,
		workspaceID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list synonyms")
	}
	defer rows.Close()

	var entries []synonym.Entry
	for rows.Next() {
		var e synonym.Entry
		var variantsJSON []byte
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.FieldID, &variantsJSON, &e.Score, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan synonym")
		}
		if err := json.Unmarshal(variantsJSON, &e.Variants); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal variants")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list synonyms iterate")
}

func (s *PostgresStore) GetWorkspaceSynonym(ctx context.Context, workspaceID, fieldID string) (*synonym.Entry, error) {
	return s.getSynonym(ctx, workspaceID, fieldID)
}

func (s *PostgresStore) GetGlobalSynonym(ctx context.Context, fieldID string) (*synonym.Entry, error) {
	return s.getSynonym(ctx, "", fieldID)
}

func (s *PostgresStore) getSynonym(ctx context.Context, workspaceID, fieldID string) (*synonym.Entry, error) {
	var e synonym.Entry
	var variantsJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, field_id, variants, score, created_at, updated_at
		 FROM synonyms WHERE workspace_id = $1 AND field_id = $2`,
		workspaceID, fieldID,
	).Scan(&e.ID, &e.WorkspaceID, &e.FieldID, &variantsJSON, &e.Score, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get synonym")
	}

	if err := json.Unmarshal(variantsJSON, &e.Variants); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal variants")
	}
	return &e, nil
}

func (s *PostgresStore) UpsertWorkspaceSynonym(ctx context.Context, e synonym.Entry) error {
	return s.upsertSynonym(ctx, e.WorkspaceID, e)
}

func (s *PostgresStore) UpsertGlobalSynonym(ctx context.Context, e synonym.Entry) error {
	return s.upsertSynonym(ctx, "", e)
}

func (s *PostgresStore) upsertSynonym(ctx context.Context, workspaceID string, e synonym.Entry) error {
	variantsJSON, err := json.Marshal(e.Variants)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal variants")
	}

	id := e.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO synonyms (id, workspace_id, field_id, variants, score, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (workspace_id, field_id) DO UPDATE SET
			variants = excluded.variants,
			score = excluded.score,
			updated_at = excluded.updated_at`,
		id, workspaceID, e.FieldID, variantsJSON, e.Score, now, now,
	)
	return eris.Wrapf(err, "postgres: upsert synonym %s", e.FieldID)
}

func (s *PostgresStore) CountWorkspacesWithVariant(ctx context.Context, fieldID, term string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT workspace_id) FROM synonyms
		 WHERE field_id = $1 AND workspace_id <> '' AND variants ? $2`,
		fieldID, term,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count workspaces with variant")
	}
	return n, nil
}
