package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cribs1908/specpipe/internal/model"
	"github.com/cribs1908/specpipe/internal/synonym"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	domain       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS documents (
	id       TEXT PRIMARY KEY,
	run_id   TEXT NOT NULL REFERENCES runs(id),
	filename TEXT NOT NULL,
	path     TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	pages    INTEGER NOT NULL DEFAULT 0,
	ocr_used INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS extractions_raw (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	document_id TEXT NOT NULL,
	field_id    TEXT NOT NULL,
	value_raw   TEXT NOT NULL,
	unit_raw    TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	confidence  REAL NOT NULL,
	provenance  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS extractions_norm (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	document_id    TEXT NOT NULL,
	field_id       TEXT NOT NULL,
	value          TEXT NOT NULL,
	unit           TEXT NOT NULL DEFAULT '',
	note           TEXT NOT NULL DEFAULT '',
	flags          TEXT NOT NULL DEFAULT '[]',
	provenance_ref TEXT NOT NULL DEFAULT '',
	confidence     REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS result_tables (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS synonyms (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL DEFAULT '',
	field_id     TEXT NOT NULL,
	variants     TEXT NOT NULL DEFAULT '[]',
	score        REAL NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Runs

func (s *SQLiteStore) CreateRun(ctx context.Context, workspaceID, domain string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, workspace_id, domain, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, workspaceID, domain, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, domain, status, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)

	var r model.Run
	err := row.Scan(&r.ID, &r.WorkspaceID, &r.Domain, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, workspace_id, domain, status, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.WorkspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, filter.WorkspaceID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Domain, &r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	if status != model.RunStatusError {
		errMsg = ""
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunDomain(ctx context.Context, runID, domain string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET domain = ?, updated_at = ? WHERE id = ?`,
		domain, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run domain %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// Documents

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc model.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, run_id, filename, path, position, pages, ocr_used) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.RunID, doc.Filename, doc.Path, doc.Position, doc.Pages, boolToInt(doc.OCRUsed),
	)
	return eris.Wrapf(err, "sqlite: insert document %s", doc.ID)
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, runID string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, filename, path, position, pages, ocr_used FROM documents WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		var ocrUsed int
		if err := rows.Scan(&d.ID, &d.RunID, &d.Filename, &d.Path, &d.Position, &d.Pages, &ocrUsed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		d.OCRUsed = ocrUsed != 0
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) UpdateDocumentOCR(ctx context.Context, documentID string, pages int, ocrUsed bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET pages = ?, ocr_used = ? WHERE id = ?`,
		pages, boolToInt(ocrUsed), documentID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document ocr %s", documentID)
	}
	return checkRowsAffected(res, "document", documentID)
}

// Extractions

func (s *SQLiteStore) SaveRawExtractions(ctx context.Context, runID string, raws []model.ExtractionRaw) error {
	if len(raws) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, raw := range raws {
		provJSON, err := json.Marshal(raw.Provenance)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal provenance")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO extractions_raw (id, run_id, document_id, field_id, value_raw, unit_raw, source, confidence, provenance)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			raw.ID, runID, raw.DocumentID, raw.FieldID, raw.ValueRaw, raw.UnitRaw, raw.Source, raw.Confidence, string(provJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert raw extraction %s", raw.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit raw extractions")
}

func (s *SQLiteStore) SaveNormExtractions(ctx context.Context, runID string, norms []model.ExtractionNorm) error {
	if len(norms) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, norm := range norms {
		flagsJSON, err := json.Marshal(norm.Flags)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal flags")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO extractions_norm (id, run_id, document_id, field_id, value, unit, note, flags, provenance_ref, confidence)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			norm.ID, runID, norm.DocumentID, norm.FieldID, norm.Value, norm.Unit, norm.Note, string(flagsJSON), norm.ProvenanceRef, norm.Confidence,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert norm extraction %s", norm.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit norm extractions")
}

func (s *SQLiteStore) ListRawExtractions(ctx context.Context, runID string) ([]model.ExtractionRaw, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, field_id, value_raw, unit_raw, source, confidence, provenance
		 FROM extractions_raw WHERE run_id = ? ORDER BY document_id, field_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list raw extractions")
	}
	defer rows.Close()

	var raws []model.ExtractionRaw
	for rows.Next() {
		var raw model.ExtractionRaw
		var provJSON string
		if err := rows.Scan(&raw.ID, &raw.DocumentID, &raw.FieldID, &raw.ValueRaw, &raw.UnitRaw, &raw.Source, &raw.Confidence, &provJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan raw extraction")
		}
		if err := json.Unmarshal([]byte(provJSON), &raw.Provenance); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal provenance")
		}
		raws = append(raws, raw)
	}
	return raws, eris.Wrap(rows.Err(), "sqlite: list raw extractions iterate")
}

func (s *SQLiteStore) ListNormExtractions(ctx context.Context, runID string) ([]model.ExtractionNorm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, field_id, value, unit, note, flags, provenance_ref, confidence
		 FROM extractions_norm WHERE run_id = ? ORDER BY document_id, field_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list norm extractions")
	}
	defer rows.Close()

	var norms []model.ExtractionNorm
	for rows.Next() {
		var norm model.ExtractionNorm
		var flagsJSON string
		if err := rows.Scan(&norm.ID, &norm.DocumentID, &norm.FieldID, &norm.Value, &norm.Unit, &norm.Note, &flagsJSON, &norm.ProvenanceRef, &norm.Confidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan norm extraction")
		}
		if err := json.Unmarshal([]byte(flagsJSON), &norm.Flags); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal flags")
		}
		norms = append(norms, norm)
	}
	return norms, eris.Wrap(rows.Err(), "sqlite: list norm extractions iterate")
}

// Result tables

func (s *SQLiteStore) SaveResultTable(ctx context.Context, table model.ResultTable) error {
	payload, err := json.Marshal(table)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result table")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO result_tables (id, run_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		table.ID, table.RunID, string(payload), table.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert result table %s", table.ID)
}

func (s *SQLiteStore) GetResultTable(ctx context.Context, runID string) (*model.ResultTable, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM result_tables WHERE run_id = ? ORDER BY created_at DESC LIMIT 1`,
		runID,
	)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get result table")
	}

	var table model.ResultTable
	if err := json.Unmarshal([]byte(payload), &table); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result table")
	}
	return &table, nil
}

// Synonyms

func (s *SQLiteStore) ListWorkspaceSynonyms(ctx context.Context, workspaceID string) ([]synonym.Entry, error) {
	return s.listSynonyms(ctx, workspaceID)
}

func (s *SQLiteStore) ListGlobalSynonyms(ctx context.Context) ([]synonym.Entry, error) {
	return s.listSynonyms(ctx, "")
}

func (s *SQLiteStore) listSynonyms(ctx context.Context, workspaceID string) ([]synonym.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, field_id, variants, score, created_at, updated_at
		 FROM synonyms WHERE workspace_id = ? ORDER BY field_id`,
		workspaceID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list synonyms")
	}
	defer rows.Close()

	var entries []synonym.Entry
	for rows.Next() {
		e, err := scanSynonym(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list synonyms iterate")
}

func (s *SQLiteStore) GetWorkspaceSynonym(ctx context.Context, workspaceID, fieldID string) (*synonym.Entry, error) {
	return s.getSynonym(ctx, workspaceID, fieldID)
}

func (s *SQLiteStore) GetGlobalSynonym(ctx context.Context, fieldID string) (*synonym.Entry, error) {
	return s.getSynonym(ctx, "", fieldID)
}

func (s *SQLiteStore) getSynonym(ctx context.Context, workspaceID, fieldID string) (*synonym.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, field_id, variants, score, created_at, updated_at
		 FROM synonyms WHERE workspace_id = ? AND field_id = ?`,
		workspaceID, fieldID,
	)

	e, err := scanSynonym(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLiteStore) UpsertWorkspaceSynonym(ctx context.Context, e synonym.Entry) error {
	return s.upsertSynonym(ctx, e.WorkspaceID, e)
}

func (s *SQLiteStore) UpsertGlobalSynonym(ctx context.Context, e synonym.Entry) error {
	return s.upsertSynonym(ctx, "", e)
}

func (s *SQLiteStore) upsertSynonym(ctx context.Context, workspaceID string, e synonym.Entry) error {
	variantsJSON, err := json.Marshal(e.Variants)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal variants")
	}

	id := e.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO synonyms (id, workspace_id, field_id, variants, score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(workspace_id, field_id) DO UPDATE SET
			variants = excluded.variants,
			score = excluded.score,
			updated_at = excluded.updated_at`,
		id, workspaceID, e.FieldID, string(variantsJSON), e.Score, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert synonym %s", e.FieldID)
}

func (s *SQLiteStore) CountWorkspacesWithVariant(ctx context.Context, fieldID, term string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT s.workspace_id)
		 FROM synonyms s, json_each(s.variants) v
		 WHERE s.field_id = ? AND s.workspace_id != '' AND v.value = ?`,
		fieldID, term,
	)

	var n int
	if err := row.Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count workspaces with variant")
	}
	return n, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSynonym(row scannable) (*synonym.Entry, error) {
	var e synonym.Entry
	var variantsJSON string

	err := row.Scan(&e.ID, &e.WorkspaceID, &e.FieldID, &variantsJSON, &e.Score, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan synonym")
	}

	if err := json.Unmarshal([]byte(variantsJSON), &e.Variants); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal variants")
	}
	return &e, nil
}
