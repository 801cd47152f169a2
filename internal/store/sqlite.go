package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/finfacts-cli/internal/model"
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	registry_id TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS periods (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	label      TEXT NOT NULL,
	type       TEXT NOT NULL,
	start_date DATE NOT NULL,
	end_date   DATE NOT NULL,
	UNIQUE (label, type)
);

CREATE TABLE IF NOT EXISTS line_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	uploaded_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS raw_facts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id    TEXT NOT NULL REFERENCES documents(id),
	line_item_text TEXT NOT NULL,
	scenario       TEXT,
	value_text     TEXT,
	period_label   TEXT,
	source_page    INTEGER,
	source_table   INTEGER,
	source_row     INTEGER,
	source_col     INTEGER,
	confidence     REAL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS facts (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id        INTEGER NOT NULL REFERENCES companies(id),
	period_id         INTEGER NOT NULL REFERENCES periods(id),
	period_label      TEXT NOT NULL,
	period_type       TEXT NOT NULL,
	line_item_id      INTEGER NOT NULL REFERENCES line_items(id),
	line_item         TEXT NOT NULL,
	value_type        TEXT NOT NULL,
	period_scope      TEXT NOT NULL,
	value             REAL NOT NULL,
	currency          TEXT NOT NULL,
	document_id       TEXT NOT NULL REFERENCES documents(id),
	source_file       TEXT NOT NULL,
	source_table      INTEGER,
	source_row        INTEGER,
	source_col        INTEGER,
	context_key       TEXT NOT NULL DEFAULT '',
	extraction_method TEXT,
	confidence        REAL NOT NULL,
	hash              TEXT NOT NULL UNIQUE,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rejections (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id    TEXT,
	company_name   TEXT,
	line_item_text TEXT,
	period_label   TEXT,
	value_text     TEXT,
	reason         TEXT NOT NULL,
	detail         TEXT,
	source_row     INTEGER,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS findings (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id     INTEGER NOT NULL REFERENCES companies(id),
	kind           TEXT NOT NULL,
	fact_id        INTEGER NOT NULL,
	document_id    TEXT,
	period_label   TEXT NOT NULL,
	line_item      TEXT NOT NULL,
	observed_value REAL NOT NULL,
	expected_value REAL,
	detail         TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS derived_metrics (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id      INTEGER NOT NULL REFERENCES companies(id),
	period_id       INTEGER NOT NULL,
	period_label    TEXT NOT NULL,
	metric_name     TEXT NOT NULL,
	line_item       TEXT NOT NULL,
	calculation     TEXT NOT NULL,
	value           REAL NOT NULL,
	source_fact_ids TEXT NOT NULL,
	computed_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (company_id, period_label, metric_name)
);

CREATE TABLE IF NOT EXISTS questions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id   INTEGER NOT NULL REFERENCES companies(id),
	period_label TEXT NOT NULL,
	metric_name  TEXT NOT NULL,
	category     TEXT NOT NULL,
	text         TEXT NOT NULL,
	priority     REAL NOT NULL,
	metric_value REAL NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_facts_company ON facts(company_id);
CREATE INDEX IF NOT EXISTS idx_facts_document ON facts(document_id);
CREATE INDEX IF NOT EXISTS idx_rejections_document ON rejections(document_id);
CREATE INDEX IF NOT EXISTS idx_findings_company ON findings(company_id);
CREATE INDEX IF NOT EXISTS idx_metrics_company ON derived_metrics(company_id);
CREATE INDEX IF NOT EXISTS idx_questions_company ON questions(company_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetOrCreateCompany(ctx context.Context, name string) (*model.Company, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		name, time.Now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create company %s", name)
	}
	return s.GetCompanyByName(ctx, name)
}

func (s *SQLiteStore) GetCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	var c model.Company
	var registryID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, registry_id, created_at FROM companies WHERE name = ?`, name,
	).Scan(&c.ID, &c.Name, &registryID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("company not found: %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %s", name)
	}
	c.RegistryID = registryID.String
	return &c, nil
}

func (s *SQLiteStore) GetOrCreatePeriod(ctx context.Context, p model.Period) (*model.Period, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO periods (label, type, start_date, end_date) VALUES (?, ?, ?, ?)
		 ON CONFLICT (label, type) DO NOTHING`,
		p.Label, string(p.Type), p.StartDate, p.EndDate,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create period %s", p.Label)
	}

	var out model.Period
	var ptype string
	err = s.db.QueryRowContext(ctx,
		`SELECT id, label, type, start_date, end_date FROM periods WHERE label = ? AND type = ?`,
		p.Label, string(p.Type),
	).Scan(&out.ID, &out.Label, &ptype, &out.StartDate, &out.EndDate)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get period %s", p.Label)
	}
	out.Type = model.PeriodType(ptype)
	return &out, nil
}

func (s *SQLiteStore) GetOrCreateLineItem(ctx context.Context, name string) (*model.LineItem, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO line_items (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create line item %s", name)
	}

	var li model.LineItem
	var desc sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM line_items WHERE name = ?`, name,
	).Scan(&li.ID, &li.Name, &desc)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get line item %s", name)
	}
	li.Description = desc.String
	return &li, nil
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, content_hash, uploaded_at) VALUES (?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.ContentHash, doc.UploadedAt,
	)
	return eris.Wrapf(err, "sqlite: insert document %s", doc.Filename)
}

func (s *SQLiteStore) GetDocumentByHash(ctx context.Context, contentHash string) (*model.Document, error) {
	var d model.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, content_hash, uploaded_at FROM documents WHERE content_hash = ?`,
		contentHash,
	).Scan(&d.ID, &d.Filename, &d.ContentHash, &d.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get document by hash")
	}
	return &d, nil
}

func (s *SQLiteStore) InsertRawFacts(ctx context.Context, documentID string, rows []model.RawRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin raw facts tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO raw_facts (document_id, line_item_text, scenario, value_text, period_label,
		 source_page, source_table, source_row, source_col, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare raw facts insert")
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, documentID, r.LineItemText, r.Scenario, r.ValueText,
			r.PeriodLabel, r.SourcePage, r.SourceTable, r.SourceRow, r.SourceCol, r.Confidence); err != nil {
			return eris.Wrap(err, "sqlite: insert raw fact")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit raw facts")
}

func (s *SQLiteStore) ListRawFacts(ctx context.Context, documentID string) ([]model.RawExtractedFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, line_item_text, scenario, value_text, period_label,
		 source_page, source_table, source_row, source_col, confidence, created_at
		 FROM raw_facts WHERE document_id = ? ORDER BY id`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list raw facts")
	}
	defer rows.Close()

	var out []model.RawExtractedFact
	for rows.Next() {
		var r model.RawExtractedFact
		var scenario, valueText, periodLabel sql.NullString
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.LineItemText, &scenario, &valueText,
			&periodLabel, &r.SourcePage, &r.SourceTable, &r.SourceRow, &r.SourceCol,
			&r.Confidence, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan raw fact")
		}
		r.Scenario = scenario.String
		r.ValueText = valueText.String
		r.PeriodLabel = periodLabel.String
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list raw facts iterate")
}

func (s *SQLiteStore) UpsertFact(ctx context.Context, f *model.NormalizedFact) (UpsertOutcome, int64, error) {
	var existingID int64
	var existingValue float64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, value FROM facts WHERE hash = ?`, f.Hash,
	).Scan(&existingID, &existingValue)

	switch {
	case err == sql.ErrNoRows:
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO facts (company_id, period_id, period_label, period_type, line_item_id,
			 line_item, value_type, period_scope, value, currency, document_id, source_file,
			 source_table, source_row, source_col, context_key, extraction_method, confidence, hash, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.CompanyID, f.PeriodID, f.PeriodLabel, string(f.PeriodType), f.LineItemID,
			f.LineItem, string(f.ValueType), string(f.Scope), f.Value, f.Currency, f.DocumentID,
			f.SourceFile, f.SourceTable, f.SourceRow, f.SourceCol, f.ContextKey,
			f.ExtractionMethod, f.Confidence, f.Hash, time.Now().UTC(),
		)
		if err != nil {
			return 0, 0, eris.Wrap(err, "sqlite: insert fact")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, 0, eris.Wrap(err, "sqlite: fact insert id")
		}
		return OutcomeInserted, id, nil

	case err != nil:
		return 0, 0, eris.Wrap(err, "sqlite: lookup fact by hash")

	case existingValue == f.Value:
		return OutcomeDuplicate, existingID, nil

	default:
		// Same natural key, different value: last writer wins at the fact
		// level. Reconciliation still sees the surviving row.
		_, err := s.db.ExecContext(ctx,
			`UPDATE facts SET value = ?, currency = ?, confidence = ?, document_id = ?,
			 extraction_method = ?, source_table = ?, source_row = ?, source_col = ?
			 WHERE id = ?`,
			f.Value, f.Currency, f.Confidence, f.DocumentID,
			f.ExtractionMethod, f.SourceTable, f.SourceRow, f.SourceCol, existingID,
		)
		if err != nil {
			return 0, 0, eris.Wrap(err, "sqlite: update fact")
		}
		return OutcomeUpdated, existingID, nil
	}
}

func (s *SQLiteStore) ListFacts(ctx context.Context, companyID int64) ([]model.CanonicalFact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.company_id, c.name, f.period_id, f.period_label, f.period_type,
		 f.line_item_id, f.line_item, f.value_type, f.period_scope, f.value, f.currency,
		 f.document_id, f.source_file, f.source_table, f.source_row, f.source_col,
		 f.context_key, f.extraction_method, f.confidence, f.hash, f.created_at
		 FROM facts f JOIN companies c ON c.id = f.company_id
		 WHERE f.company_id = ? ORDER BY f.id`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list facts")
	}
	defer rows.Close()

	var facts []model.CanonicalFact
	for rows.Next() {
		var f model.CanonicalFact
		var ptype, vtype, scope string
		var method sql.NullString
		if err := rows.Scan(&f.ID, &f.CompanyID, &f.CompanyName, &f.PeriodID, &f.PeriodLabel,
			&ptype, &f.LineItemID, &f.LineItem, &vtype, &scope, &f.Value, &f.Currency,
			&f.DocumentID, &f.SourceFile, &f.SourceTable, &f.SourceRow, &f.SourceCol,
			&f.ContextKey, &method, &f.Confidence, &f.Hash, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fact")
		}
		f.PeriodType = model.PeriodType(ptype)
		f.ValueType = model.ValueType(vtype)
		f.Scope = model.PeriodScope(scope)
		f.ExtractionMethod = method.String
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "sqlite: list facts iterate")
}

func (s *SQLiteStore) InsertRejection(ctx context.Context, r *model.FactRejection) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rejections (document_id, company_name, line_item_text, period_label,
		 value_text, reason, detail, source_row, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.DocumentID, r.CompanyName, r.LineItemText, r.PeriodLabel,
		r.ValueText, string(r.Reason), r.Detail, r.SourceRow, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: insert rejection")
}

func (s *SQLiteStore) ListRejections(ctx context.Context, documentID string, limit int) ([]model.FactRejection, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT id, document_id, company_name, line_item_text, period_label, value_text,
		 reason, detail, source_row, created_at FROM rejections`
	var args []any
	if documentID != "" {
		query += ` WHERE document_id = ?`
		args = append(args, documentID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rejections")
	}
	defer rows.Close()

	var out []model.FactRejection
	for rows.Next() {
		var r model.FactRejection
		var docID, detail sql.NullString
		var reason string
		if err := rows.Scan(&r.ID, &docID, &r.CompanyName, &r.LineItemText, &r.PeriodLabel,
			&r.ValueText, &reason, &detail, &r.SourceRow, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rejection")
		}
		r.DocumentID = docID.String
		r.Detail = detail.String
		r.Reason = model.RejectionReason(reason)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list rejections iterate")
}

func (s *SQLiteStore) ReplaceFindings(ctx context.Context, companyID int64, findings []model.ReconciliationFinding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin findings tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE company_id = ?`, companyID); err != nil {
		return eris.Wrap(err, "sqlite: clear findings")
	}
	for _, f := range findings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO findings (company_id, kind, fact_id, document_id, period_label,
			 line_item, observed_value, expected_value, detail, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.CompanyID, string(f.Kind), f.FactID, f.DocumentID, f.PeriodLabel,
			f.LineItem, f.ObservedValue, f.ExpectedValue, f.Detail, time.Now().UTC(),
		); err != nil {
			return eris.Wrap(err, "sqlite: insert finding")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit findings")
}

func (s *SQLiteStore) ListFindings(ctx context.Context, companyID int64) ([]model.ReconciliationFinding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, kind, fact_id, document_id, period_label, line_item,
		 observed_value, expected_value, detail, created_at
		 FROM findings WHERE company_id = ? ORDER BY id`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list findings")
	}
	defer rows.Close()

	var out []model.ReconciliationFinding
	for rows.Next() {
		var f model.ReconciliationFinding
		var kind string
		var docID, detail sql.NullString
		var expected sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.CompanyID, &kind, &f.FactID, &docID, &f.PeriodLabel,
			&f.LineItem, &f.ObservedValue, &expected, &detail, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan finding")
		}
		f.Kind = model.FindingKind(kind)
		f.DocumentID = docID.String
		f.Detail = detail.String
		f.ExpectedValue = expected.Float64
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list findings iterate")
}

func (s *SQLiteStore) UpsertMetrics(ctx context.Context, metrics []model.DerivedMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin metrics tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, m := range metrics {
		factIDs, err := json.Marshal(m.SourceFactIDs)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal fact ids")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO derived_metrics (company_id, period_id, period_label, metric_name,
			 line_item, calculation, value, source_fact_ids, computed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (company_id, period_label, metric_name) DO UPDATE SET
			 value = excluded.value, source_fact_ids = excluded.source_fact_ids,
			 calculation = excluded.calculation, computed_at = excluded.computed_at`,
			m.CompanyID, m.PeriodID, m.PeriodLabel, m.MetricName, m.LineItem,
			string(m.Calculation), m.Value, string(factIDs), time.Now().UTC(),
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert metric %s", m.MetricName)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit metrics")
}

func (s *SQLiteStore) ListMetrics(ctx context.Context, companyID int64) ([]model.DerivedMetric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, period_id, period_label, metric_name, line_item, calculation,
		 value, source_fact_ids, computed_at
		 FROM derived_metrics WHERE company_id = ? ORDER BY period_label, metric_name`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list metrics")
	}
	defer rows.Close()

	var out []model.DerivedMetric
	for rows.Next() {
		var m model.DerivedMetric
		var calc, factIDs string
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.PeriodID, &m.PeriodLabel, &m.MetricName,
			&m.LineItem, &calc, &m.Value, &factIDs, &m.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan metric")
		}
		m.Calculation = model.CalculationType(calc)
		if err := json.Unmarshal([]byte(factIDs), &m.SourceFactIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal fact ids")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list metrics iterate")
}

func (s *SQLiteStore) ReplaceQuestions(ctx context.Context, companyID int64, questions []model.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin questions tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE company_id = ?`, companyID); err != nil {
		return eris.Wrap(err, "sqlite: clear questions")
	}
	for _, q := range questions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO questions (company_id, period_label, metric_name, category, text,
			 priority, metric_value, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			q.CompanyID, q.PeriodLabel, q.MetricName, q.Category, q.Text,
			q.Priority, q.MetricValue, time.Now().UTC(),
		); err != nil {
			return eris.Wrap(err, "sqlite: insert question")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit questions")
}

func (s *SQLiteStore) ListQuestions(ctx context.Context, companyID int64) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, period_label, metric_name, category, text, priority,
		 metric_value, created_at
		 FROM questions WHERE company_id = ? ORDER BY priority DESC, id`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list questions")
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.CompanyID, &q.PeriodLabel, &q.MetricName, &q.Category,
			&q.Text, &q.Priority, &q.MetricValue, &q.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan question")
		}
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list questions iterate")
}
