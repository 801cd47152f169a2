package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/finfacts-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func testFact() *model.NormalizedFact {
	f := &model.NormalizedFact{
		CompanyID:   1,
		CompanyName: "Acme GmbH",
		PeriodID:    2,
		PeriodLabel: "2025-02",
		PeriodType:  model.PeriodMonthly,
		LineItemID:  3,
		LineItem:    "Revenue",
		ValueType:   model.ValueActual,
		Scope:       model.ScopePeriod,
		Value:       2390873,
		Currency:    "USD",
		DocumentID:  "doc-1",
		SourceFile:  "acme_feb.csv",
		Confidence:  0.95,
	}
	f.Hash = model.DedupHash(f.CompanyName, f.PeriodLabel, f.LineItem, f.ValueType, f.Scope, f.SourceFile, f.ContextKey)
	return f
}

func TestPostgres_UpsertFact_Insert(t *testing.T) {
	st, mock := newMockStore(t)
	f := testFact()

	mock.ExpectQuery("SELECT id, value FROM facts WHERE hash").
		WithArgs(f.Hash).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO facts").
		WithArgs(f.CompanyID, f.PeriodID, f.PeriodLabel, string(f.PeriodType), f.LineItemID,
			f.LineItem, string(f.ValueType), string(f.Scope), f.Value, f.Currency, f.DocumentID,
			f.SourceFile, f.SourceTable, f.SourceRow, f.SourceCol, f.ContextKey,
			f.ExtractionMethod, f.Confidence, f.Hash, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	outcome, id, err := st.UpsertFact(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)
	assert.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertFact_Duplicate(t *testing.T) {
	st, mock := newMockStore(t)
	f := testFact()

	mock.ExpectQuery("SELECT id, value FROM facts WHERE hash").
		WithArgs(f.Hash).
		WillReturnRows(pgxmock.NewRows([]string{"id", "value"}).AddRow(int64(42), f.Value))

	outcome, id, err := st.UpsertFact(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertFact_Update(t *testing.T) {
	st, mock := newMockStore(t)
	f := testFact()

	mock.ExpectQuery("SELECT id, value FROM facts WHERE hash").
		WithArgs(f.Hash).
		WillReturnRows(pgxmock.NewRows([]string{"id", "value"}).AddRow(int64(42), 2000000.0))
	mock.ExpectExec("UPDATE facts SET value").
		WithArgs(f.Value, f.Currency, f.Confidence, f.DocumentID,
			f.ExtractionMethod, f.SourceTable, f.SourceRow, f.SourceCol, int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	outcome, id, err := st.UpsertFact(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetDocumentByHash_Missing(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, filename, content_hash, uploaded_at FROM documents").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	doc, err := st.GetDocumentByHash(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, doc)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetOrCreateCompany(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO companies").
		WithArgs("Acme GmbH").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT id, name, registry_id, created_at FROM companies").
		WithArgs("Acme GmbH").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "registry_id", "created_at"}).
			AddRow(int64(7), "Acme GmbH", (*string)(nil), time.Now()))

	company, err := st.GetOrCreateCompany(context.Background(), "Acme GmbH")
	require.NoError(t, err)
	assert.Equal(t, int64(7), company.ID)
	assert.Empty(t, company.RegistryID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceQuestions_Transactional(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM questions").
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO questions").
		WithArgs(int64(1), "2025-02", "Revenue_MoM", "revenue", "why", 1.25, -12.5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := st.ReplaceQuestions(context.Background(), 1, []model.Question{
		{CompanyID: 1, PeriodLabel: "2025-02", MetricName: "Revenue_MoM", Category: "revenue", Text: "why", Priority: 1.25, MetricValue: -12.5},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
