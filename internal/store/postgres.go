package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/finfacts-cli/internal/db"
	"github.com/sells-group/finfacts-cli/internal/model"
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

// preparedStatements lists queries to prepare on each new connection for the
// hot ingestion path.
var preparedStatements = map[string]string{
	"lookup_fact": `SELECT id, value FROM facts WHERE hash = $1`,
	"insert_fact": `INSERT INTO facts (company_id, period_id, period_label, period_type, line_item_id,
		line_item, value_type, period_scope, value, currency, document_id, source_file,
		source_table, source_row, source_col, context_key, extraction_method, confidence, hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id`,
	"update_fact": `UPDATE facts SET value = $1, currency = $2, confidence = $3, document_id = $4,
		extraction_method = $5, source_table = $6, source_row = $7, source_col = $8 WHERE id = $9`,
	"insert_rejection": `INSERT INTO rejections (document_id, company_name, line_item_text, period_label,
		value_text, reason, detail, source_row, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

// NewPostgresFromPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	registry_id TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS periods (
	id         BIGSERIAL PRIMARY KEY,
	label      TEXT NOT NULL,
	type       TEXT NOT NULL,
	start_date DATE NOT NULL,
	end_date   DATE NOT NULL,
	UNIQUE (label, type)
);

CREATE TABLE IF NOT EXISTS line_items (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	uploaded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS raw_facts (
	id             BIGSERIAL PRIMARY KEY,
	document_id    TEXT NOT NULL REFERENCES documents(id),
	line_item_text TEXT NOT NULL,
	scenario       TEXT,
	value_text     TEXT,
	period_label   TEXT,
	source_page    INT,
	source_table   INT,
	source_row     INT,
	source_col     INT,
	confidence     DOUBLE PRECISION,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS facts (
	id                BIGSERIAL PRIMARY KEY,
	company_id        BIGINT NOT NULL REFERENCES companies(id),
	period_id         BIGINT NOT NULL REFERENCES periods(id),
	period_label      TEXT NOT NULL,
	period_type       TEXT NOT NULL,
	line_item_id      BIGINT NOT NULL REFERENCES line_items(id),
	line_item         TEXT NOT NULL,
	value_type        TEXT NOT NULL,
	period_scope      TEXT NOT NULL,
	value             DOUBLE PRECISION NOT NULL,
	currency          TEXT NOT NULL,
	document_id       TEXT NOT NULL REFERENCES documents(id),
	source_file       TEXT NOT NULL,
	source_table      INT,
	source_row        INT,
	source_col        INT,
	context_key       TEXT NOT NULL DEFAULT '',
	extraction_method TEXT,
	confidence        DOUBLE PRECISION NOT NULL,
	hash              TEXT NOT NULL UNIQUE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rejections (
	id             BIGSERIAL PRIMARY KEY,
	document_id    TEXT,
	company_name   TEXT,
	line_item_text TEXT,
	period_label   TEXT,
	value_text     TEXT,
	reason         TEXT NOT NULL,
	detail         TEXT,
	source_row     INT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS findings (
	id             BIGSERIAL PRIMARY KEY,
	company_id     BIGINT NOT NULL REFERENCES companies(id),
	kind           TEXT NOT NULL,
	fact_id        BIGINT NOT NULL,
	document_id    TEXT,
	period_label   TEXT NOT NULL,
	line_item      TEXT NOT NULL,
	observed_value DOUBLE PRECISION NOT NULL,
	expected_value DOUBLE PRECISION,
	detail         TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS derived_metrics (
	id              BIGSERIAL PRIMARY KEY,
	company_id      BIGINT NOT NULL REFERENCES companies(id),
	period_id       BIGINT NOT NULL,
	period_label    TEXT NOT NULL,
	metric_name     TEXT NOT NULL,
	line_item       TEXT NOT NULL,
	calculation     TEXT NOT NULL,
	value           DOUBLE PRECISION NOT NULL,
	source_fact_ids JSONB NOT NULL,
	computed_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, period_label, metric_name)
);

CREATE TABLE IF NOT EXISTS questions (
	id           BIGSERIAL PRIMARY KEY,
	company_id   BIGINT NOT NULL REFERENCES companies(id),
	period_label TEXT NOT NULL,
	metric_name  TEXT NOT NULL,
	category     TEXT NOT NULL,
	text         TEXT NOT NULL,
	priority     DOUBLE PRECISION NOT NULL,
	metric_value DOUBLE PRECISION NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_facts_company ON facts(company_id);
CREATE INDEX IF NOT EXISTS idx_facts_document ON facts(document_id);
CREATE INDEX IF NOT EXISTS idx_rejections_document ON rejections(document_id);
CREATE INDEX IF NOT EXISTS idx_findings_company ON findings(company_id);
CREATE INDEX IF NOT EXISTS idx_metrics_company ON derived_metrics(company_id);
CREATE INDEX IF NOT EXISTS idx_questions_company ON questions(company_id);
`

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

func (s *PostgresStore) GetOrCreateCompany(ctx context.Context, name string) (*model.Company, error) {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO companies (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: create company %s", name)
	}
	return s.GetCompanyByName(ctx, name)
}

func (s *PostgresStore) GetCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	var c model.Company
	var registryID *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, registry_id, created_at FROM companies WHERE name = $1`, name,
	).Scan(&c.ID, &c.Name, &registryID, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.Errorf("company not found: %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %s", name)
	}
	if registryID != nil {
		c.RegistryID = *registryID
	}
	return &c, nil
}

func (s *PostgresStore) GetOrCreatePeriod(ctx context.Context, p model.Period) (*model.Period, error) {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO periods (label, type, start_date, end_date) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (label, type) DO NOTHING`,
		p.Label, string(p.Type), p.StartDate, p.EndDate,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: create period %s", p.Label)
	}

	var out model.Period
	var ptype string
	err := s.pool.QueryRow(ctx,
		`SELECT id, label, type, start_date, end_date FROM periods WHERE label = $1 AND type = $2`,
		p.Label, string(p.Type),
	).Scan(&out.ID, &out.Label, &ptype, &out.StartDate, &out.EndDate)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get period %s", p.Label)
	}
	out.Type = model.PeriodType(ptype)
	return &out, nil
}

func (s *PostgresStore) GetOrCreateLineItem(ctx context.Context, name string) (*model.LineItem, error) {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO line_items (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: create line item %s", name)
	}

	var li model.LineItem
	var desc *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description FROM line_items WHERE name = $1`, name,
	).Scan(&li.ID, &li.Name, &desc)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get line item %s", name)
	}
	if desc != nil {
		li.Description = *desc
	}
	return &li, nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, filename, content_hash, uploaded_at) VALUES ($1, $2, $3, $4)`,
		doc.ID, doc.Filename, doc.ContentHash, doc.UploadedAt,
	)
	return eris.Wrapf(err, "postgres: insert document %s", doc.Filename)
}

func (s *PostgresStore) GetDocumentByHash(ctx context.Context, contentHash string) (*model.Document, error) {
	var d model.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, content_hash, uploaded_at FROM documents WHERE content_hash = $1`,
		contentHash,
	).Scan(&d.ID, &d.Filename, &d.ContentHash, &d.UploadedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get document by hash")
	}
	return &d, nil
}

func (s *PostgresStore) InsertRawFacts(ctx context.Context, documentID string, rows []model.RawRow) error {
	if len(rows) == 0 {
		return nil
	}
	copyRows := make([][]any, 0, len(rows))
	for _, r := range rows {
		copyRows = append(copyRows, []any{
			documentID, r.LineItemText, r.Scenario, r.ValueText, r.PeriodLabel,
			r.SourcePage, r.SourceTable, r.SourceRow, r.SourceCol, r.Confidence,
		})
	}
	_, err := db.CopyInto(ctx, s.pool, "raw_facts", []string{
		"document_id", "line_item_text", "scenario", "value_text", "period_label",
		"source_page", "source_table", "source_row", "source_col", "confidence",
	}, copyRows)
	return err
}

func (s *PostgresStore) ListRawFacts(ctx context.Context, documentID string) ([]model.RawExtractedFact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, line_item_text, scenario, value_text, period_label,
		 source_page, source_table, source_row, source_col, confidence, created_at
		 FROM raw_facts WHERE document_id = $1 ORDER BY id`,
		documentID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list raw facts")
	}
	defer rows.Close()

	var out []model.RawExtractedFact
	for rows.Next() {
		var r model.RawExtractedFact
		var scenario, valueText, periodLabel *string
		var confidence *float64
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.LineItemText, &scenario, &valueText,
			&periodLabel, &r.SourcePage, &r.SourceTable, &r.SourceRow, &r.SourceCol,
			&confidence, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw fact")
		}
		if scenario != nil {
			r.Scenario = *scenario
		}
		if valueText != nil {
			r.ValueText = *valueText
		}
		if periodLabel != nil {
			r.PeriodLabel = *periodLabel
		}
		if confidence != nil {
			r.Confidence = *confidence
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list raw facts iterate")
}

func (s *PostgresStore) UpsertFact(ctx context.Context, f *model.NormalizedFact) (UpsertOutcome, int64, error) {
	var existingID int64
	var existingValue float64
	err := s.pool.QueryRow(ctx, `SELECT id, value FROM facts WHERE hash = $1`, f.Hash).
		Scan(&existingID, &existingValue)

	switch {
	case err == pgx.ErrNoRows:
		var id int64
		err := s.pool.QueryRow(ctx,
			`INSERT INTO facts (company_id, period_id, period_label, period_type, line_item_id,
			 line_item, value_type, period_scope, value, currency, document_id, source_file,
			 source_table, source_row, source_col, context_key, extraction_method, confidence, hash, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
			 RETURNING id`,
			f.CompanyID, f.PeriodID, f.PeriodLabel, string(f.PeriodType), f.LineItemID,
			f.LineItem, string(f.ValueType), string(f.Scope), f.Value, f.Currency, f.DocumentID,
			f.SourceFile, f.SourceTable, f.SourceRow, f.SourceCol, f.ContextKey,
			f.ExtractionMethod, f.Confidence, f.Hash, time.Now().UTC(),
		).Scan(&id)
		if err != nil {
			return 0, 0, eris.Wrap(err, "postgres: insert fact")
		}
		return OutcomeInserted, id, nil

	case err != nil:
		return 0, 0, eris.Wrap(err, "postgres: lookup fact by hash")

	case existingValue == f.Value:
		return OutcomeDuplicate, existingID, nil

	default:
		if _, err := s.pool.Exec(ctx,
			`UPDATE facts SET value = $1, currency = $2, confidence = $3, document_id = $4,
			 extraction_method = $5, source_table = $6, source_row = $7, source_col = $8
			 WHERE id = $9`,
			f.Value, f.Currency, f.Confidence, f.DocumentID,
			f.ExtractionMethod, f.SourceTable, f.SourceRow, f.SourceCol, existingID,
		); err != nil {
			return 0, 0, eris.Wrap(err, "postgres: update fact")
		}
		return OutcomeUpdated, existingID, nil
	}
}

func (s *PostgresStore) ListFacts(ctx context.Context, companyID int64) ([]model.CanonicalFact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.id, f.company_id, c.name, f.period_id, f.period_label, f.period_type,
		 f.line_item_id, f.line_item, f.value_type, f.period_scope, f.value, f.currency,
		 f.document_id, f.source_file, f.source_table, f.source_row, f.source_col,
		 f.context_key, f.extraction_method, f.confidence, f.hash, f.created_at
		 FROM facts f JOIN companies c ON c.id = f.company_id
		 WHERE f.company_id = $1 ORDER BY f.id`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list facts")
	}
	defer rows.Close()

	var facts []model.CanonicalFact
	for rows.Next() {
		var f model.CanonicalFact
		var ptype, vtype, scope string
		var method *string
		if err := rows.Scan(&f.ID, &f.CompanyID, &f.CompanyName, &f.PeriodID, &f.PeriodLabel,
			&ptype, &f.LineItemID, &f.LineItem, &vtype, &scope, &f.Value, &f.Currency,
			&f.DocumentID, &f.SourceFile, &f.SourceTable, &f.SourceRow, &f.SourceCol,
			&f.ContextKey, &method, &f.Confidence, &f.Hash, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact")
		}
		f.PeriodType = model.PeriodType(ptype)
		f.ValueType = model.ValueType(vtype)
		f.Scope = model.PeriodScope(scope)
		if method != nil {
			f.ExtractionMethod = *method
		}
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "postgres: list facts iterate")
}

func (s *PostgresStore) InsertRejection(ctx context.Context, r *model.FactRejection) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rejections (document_id, company_name, line_item_text, period_label,
		 value_text, reason, detail, source_row, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.DocumentID, r.CompanyName, r.LineItemText, r.PeriodLabel,
		r.ValueText, string(r.Reason), r.Detail, r.SourceRow, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: insert rejection")
}

func (s *PostgresStore) ListRejections(ctx context.Context, documentID string, limit int) ([]model.FactRejection, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT id, document_id, company_name, line_item_text, period_label, value_text,
		 reason, detail, source_row, created_at FROM rejections`
	var args []any
	if documentID != "" {
		query += ` WHERE document_id = $1 ORDER BY id DESC LIMIT $2`
		args = append(args, documentID, limit)
	} else {
		query += ` ORDER BY id DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rejections")
	}
	defer rows.Close()

	var out []model.FactRejection
	for rows.Next() {
		var r model.FactRejection
		var docID, detail *string
		var reason string
		if err := rows.Scan(&r.ID, &docID, &r.CompanyName, &r.LineItemText, &r.PeriodLabel,
			&r.ValueText, &reason, &detail, &r.SourceRow, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rejection")
		}
		if docID != nil {
			r.DocumentID = *docID
		}
		if detail != nil {
			r.Detail = *detail
		}
		r.Reason = model.RejectionReason(reason)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list rejections iterate")
}

func (s *PostgresStore) ReplaceFindings(ctx context.Context, companyID int64, findings []model.ReconciliationFinding) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin findings tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM findings WHERE company_id = $1`, companyID); err != nil {
		return eris.Wrap(err, "postgres: clear findings")
	}
	for _, f := range findings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO findings (company_id, kind, fact_id, document_id, period_label,
			 line_item, observed_value, expected_value, detail)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			f.CompanyID, string(f.Kind), f.FactID, f.DocumentID, f.PeriodLabel,
			f.LineItem, f.ObservedValue, f.ExpectedValue, f.Detail,
		); err != nil {
			return eris.Wrap(err, "postgres: insert finding")
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit findings")
}

func (s *PostgresStore) ListFindings(ctx context.Context, companyID int64) ([]model.ReconciliationFinding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, kind, fact_id, document_id, period_label, line_item,
		 observed_value, expected_value, detail, created_at
		 FROM findings WHERE company_id = $1 ORDER BY id`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list findings")
	}
	defer rows.Close()

	var out []model.ReconciliationFinding
	for rows.Next() {
		var f model.ReconciliationFinding
		var kind string
		var docID, detail *string
		var expected *float64
		if err := rows.Scan(&f.ID, &f.CompanyID, &kind, &f.FactID, &docID, &f.PeriodLabel,
			&f.LineItem, &f.ObservedValue, &expected, &detail, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan finding")
		}
		f.Kind = model.FindingKind(kind)
		if docID != nil {
			f.DocumentID = *docID
		}
		if detail != nil {
			f.Detail = *detail
		}
		if expected != nil {
			f.ExpectedValue = *expected
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list findings iterate")
}

func (s *PostgresStore) UpsertMetrics(ctx context.Context, metrics []model.DerivedMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(metrics))
	now := time.Now().UTC()
	for _, m := range metrics {
		factIDs, err := json.Marshal(m.SourceFactIDs)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal fact ids")
		}
		rows = append(rows, []any{
			m.CompanyID, m.PeriodID, m.PeriodLabel, m.MetricName, m.LineItem,
			string(m.Calculation), m.Value, factIDs, now,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "derived_metrics",
		Columns: []string{
			"company_id", "period_id", "period_label", "metric_name", "line_item",
			"calculation", "value", "source_fact_ids", "computed_at",
		},
		ConflictKeys: []string{"company_id", "period_label", "metric_name"},
	}, rows)
	return err
}

func (s *PostgresStore) ListMetrics(ctx context.Context, companyID int64) ([]model.DerivedMetric, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, period_id, period_label, metric_name, line_item, calculation,
		 value, source_fact_ids, computed_at
		 FROM derived_metrics WHERE company_id = $1 ORDER BY period_label, metric_name`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list metrics")
	}
	defer rows.Close()

	var out []model.DerivedMetric
	for rows.Next() {
		var m model.DerivedMetric
		var calc string
		var factIDs []byte
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.PeriodID, &m.PeriodLabel, &m.MetricName,
			&m.LineItem, &calc, &m.Value, &factIDs, &m.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan metric")
		}
		m.Calculation = model.CalculationType(calc)
		if err := json.Unmarshal(factIDs, &m.SourceFactIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal fact ids")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list metrics iterate")
}

func (s *PostgresStore) ReplaceQuestions(ctx context.Context, companyID int64, questions []model.Question) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin questions tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE company_id = $1`, companyID); err != nil {
		return eris.Wrap(err, "postgres: clear questions")
	}
	for _, q := range questions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO questions (company_id, period_label, metric_name, category, text,
			 priority, metric_value) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			q.CompanyID, q.PeriodLabel, q.MetricName, q.Category, q.Text,
			q.Priority, q.MetricValue,
		); err != nil {
			return eris.Wrap(err, "postgres: insert question")
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit questions")
}

func (s *PostgresStore) ListQuestions(ctx context.Context, companyID int64) ([]model.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, period_label, metric_name, category, text, priority,
		 metric_value, created_at
		 FROM questions WHERE company_id = $1 ORDER BY priority DESC, id`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list questions")
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.CompanyID, &q.PeriodLabel, &q.MetricName, &q.Category,
			&q.Text, &q.Priority, &q.MetricValue, &q.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan question")
		}
		out = append(out, q)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list questions iterate")
}
