package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/finfacts-cli/internal/config"
	"github.com/sells-group/finfacts-cli/internal/model"
	"github.com/sells-group/finfacts-cli/internal/registry"
	"github.com/sells-group/finfacts-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st := newTestStore(t)
	return newServiceOver(st), st
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "finfacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newServiceOver(st store.Store) *Service {
	lineItems := registry.NewLineItemRegistry([]registry.LineItemDef{
		{Name: "Revenue", Aliases: []string{"Sales", "Total Revenue"}},
		{Name: "EBITDA"},
		{Name: "Operating Expenses", Aliases: []string{"Opex"}},
	})
	periods := registry.NewPeriodRegistry(2015, 2035, nil)
	templates := registry.NewTemplateRegistry([]model.QuestionTemplate{
		{
			Metric:           "Revenue",
			CalculationType:  model.CalcMoMGrowth,
			BaseQuestion:     "Revenue fell {change}% in {period}. What drove the decline?",
			TriggerThreshold: -10,
			TriggerOperator:  "<",
			DefaultWeight:    1.0,
			Category:         "revenue",
		},
	})

	cfg := &config.Config{
		Ingest: config.IngestConfig{
			BaseCurrency:     "USD",
			KPIMinValue:      1000,
			MaxParallelRows:  4,
			BatchTimeoutSecs: 30,
		},
		Reconcile: config.ReconcileConfig{
			BandLowRatio:    0.1,
			BandHighRatio:   10.0,
			YTDAbsTolerance: 1000,
			YTDRelTolerance: 0.02,
		},
	}

	return New(st, lineItems, periods, templates, cfg)
}

func row(lineItem, period, value string) model.RawRow {
	return model.RawRow{
		CompanyName:      "Acme GmbH",
		LineItemText:     lineItem,
		Scenario:         "Actual",
		PeriodLabel:      period,
		PeriodType:       model.PeriodMonthly,
		ValueText:        value,
		SourceFile:       "acme.csv",
		ExtractionMethod: "manual_upload",
		Confidence:       1.0,
	}
}

func TestIngestBatch_EndToEnd(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	rows := []model.RawRow{
		row("Revenue", "2025-01", "2,000,000"),
		row("Sales", "2025-02", "1,700,000"), // alias of Revenue, -15% MoM
		row("Opex", "2025-02", "400,000"),
		row("Deferred Widgets", "2025-02", "123"), // unmapped line item
		row("Revenue", "Someday 2025", "5,000"),   // unresolvable period
		row("Revenue", "2025-03", "n/a"),          // unparseable value
	}

	doc := &model.Document{Filename: "acme.csv", ContentHash: "hash-1"}
	res, err := svc.IngestBatch(ctx, doc, rows)
	require.NoError(t, err)
	require.NotEmpty(t, res.DocumentID)

	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, 0, res.Duplicates)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Rejected[model.ReasonUnmappedLineItem])
	assert.Equal(t, 1, res.Rejected[model.ReasonMissingPeriod])
	assert.Equal(t, 1, res.Rejected[model.ReasonValueParseFailed])
	assert.Equal(t, []string{"Acme GmbH"}, res.Companies)

	totalRejected := 0
	for _, n := range res.Rejected {
		totalRejected += n
	}
	assert.Equal(t, len(rows), res.Inserted+res.Duplicates+res.Updated+totalRejected)

	company, err := st.GetCompanyByName(ctx, "Acme GmbH")
	require.NoError(t, err)

	facts, err := st.ListFacts(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, facts, 3)
	for _, f := range facts {
		assert.Equal(t, res.DocumentID, f.DocumentID)
		assert.Equal(t, model.ValueActual, f.ValueType)
		assert.Equal(t, model.ScopePeriod, f.Scope)
	}

	rejections, err := st.ListRejections(ctx, res.DocumentID, 0)
	require.NoError(t, err)
	assert.Len(t, rejections, 3)

	metricsOut, err := st.ListMetrics(ctx, company.ID)
	require.NoError(t, err)
	var mom *model.DerivedMetric
	for i := range metricsOut {
		if metricsOut[i].MetricName == "Revenue_MoM" && metricsOut[i].PeriodLabel == "2025-02" {
			mom = &metricsOut[i]
		}
	}
	require.NotNil(t, mom, "expected Revenue_MoM for 2025-02")
	assert.InDelta(t, -15.0, mom.Value, 0.001)

	qs, err := st.ListQuestions(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Revenue_MoM", qs[0].MetricName)
	assert.Equal(t, "revenue", qs[0].Category)
	assert.InDelta(t, 1.5, qs[0].Priority, 0.001) // 1.0 * 15 / 10
}

func TestIngestBatch_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rows := []model.RawRow{
		row("Revenue", "2025-01", "2,000,000"),
		row("Revenue", "2025-02", "2,390,873"),
	}

	first, err := svc.IngestBatch(ctx, &model.Document{Filename: "acme.csv", ContentHash: "hash-1"}, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := svc.IngestBatch(ctx, &model.Document{Filename: "acme.csv", ContentHash: "hash-1"}, rows)
	require.NoError(t, err)
	assert.Equal(t, first.DocumentID, second.DocumentID, "same content hash reuses the document")
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Duplicates)
	assert.Equal(t, 0, second.Updated)
}

func TestIngestBatch_Restatement(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.IngestBatch(ctx, &model.Document{Filename: "v1.csv", ContentHash: "hash-1"},
		[]model.RawRow{row("Revenue", "2025-01", "2,000,000")})
	require.NoError(t, err)

	// Same identity (company, period, line item, scope, source file), new value.
	res, err := svc.IngestBatch(ctx, &model.Document{Filename: "v2.csv", ContentHash: "hash-2"},
		[]model.RawRow{row("Revenue", "2025-01", "2,100,000")})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 1, res.Updated)
}

func TestBestFacts_ReadOnly(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.IngestBatch(ctx, &model.Document{Filename: "acme.csv", ContentHash: "hash-1"},
		[]model.RawRow{
			row("Revenue", "2025-01", "2,000,000"),
			row("Revenue", "2025-02", "1,700,000"),
		})
	require.NoError(t, err)

	best, err := svc.BestFacts(ctx, "Acme GmbH")
	require.NoError(t, err)
	assert.Len(t, best, 2)

	company, err := st.GetCompanyByName(ctx, "Acme GmbH")
	require.NoError(t, err)
	findings, err := st.ListFindings(ctx, company.ID)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestResolveCompany_UnknownCompany(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.ResolveCompany(context.Background(), "Nobody Inc")
	require.Error(t, err)
}

// failingFindingsStore errors once fact persistence is done and the
// reconciliation pass starts writing findings.
type failingFindingsStore struct {
	store.Store
}

func (f *failingFindingsStore) ReplaceFindings(ctx context.Context, companyID int64, findings []model.ReconciliationFinding) error {
	return errors.New("disk full")
}

func TestIngestBatch_PartialResultOnLateFailure(t *testing.T) {
	st := newTestStore(t)
	svc := newServiceOver(&failingFindingsStore{Store: st})
	ctx := context.Background()

	rows := []model.RawRow{
		row("Revenue", "2025-01", "2,000,000"),
		row("Revenue", "2025-02", "1,700,000"),
		row("Deferred Widgets", "2025-02", "123"), // unmapped line item
	}

	res, err := svc.IngestBatch(ctx, &model.Document{Filename: "acme.csv", ContentHash: "hash-1"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	// The work done before the failure is still reported.
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Rejected[model.ReasonUnmappedLineItem])
	assert.Equal(t, []string{"Acme GmbH"}, res.Companies)
	assert.NotZero(t, res.Elapsed)

	// And it really is persisted.
	company, err := st.GetCompanyByName(ctx, "Acme GmbH")
	require.NoError(t, err)
	facts, err := st.ListFacts(ctx, company.ID)
	require.NoError(t, err)
	assert.Len(t, facts, 2)
}

func TestIngestBatch_CancelledContext(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	first, err := svc.IngestBatch(ctx, &model.Document{Filename: "jan.csv", ContentHash: "hash-1"},
		[]model.RawRow{row("Revenue", "2025-01", "2,000,000")})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.IngestBatch(cancelled, &model.Document{Filename: "feb.csv", ContentHash: "hash-2"},
		[]model.RawRow{row("Revenue", "2025-02", "1,700,000")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")

	// The earlier batch is untouched.
	company, err := st.GetCompanyByName(ctx, "Acme GmbH")
	require.NoError(t, err)
	facts, err := st.ListFacts(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, first.DocumentID, facts[0].DocumentID)
}
