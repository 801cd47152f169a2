package normalize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finfacts-cli/internal/model"
	"github.com/sells-group/finfacts-cli/internal/registry"
)

// fakeResolver assigns sequential ids in memory.
type fakeResolver struct {
	companies map[string]int64
	periods   map[string]int64
	lineItems map[string]int64
	next      int64
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		companies: make(map[string]int64),
		periods:   make(map[string]int64),
		lineItems: make(map[string]int64),
	}
}

func (r *fakeResolver) id(m map[string]int64, key string) int64 {
	if id, ok := m[key]; ok {
		return id
	}
	r.next++
	m[key] = r.next
	return r.next
}

func (r *fakeResolver) GetOrCreateCompany(_ context.Context, name string) (*model.Company, error) {
	return &model.Company{ID: r.id(r.companies, name), Name: name}, nil
}

func (r *fakeResolver) GetOrCreatePeriod(_ context.Context, p model.Period) (*model.Period, error) {
	p.ID = r.id(r.periods, p.Label+string(p.Type))
	return &p, nil
}

func (r *fakeResolver) GetOrCreateLineItem(_ context.Context, name string) (*model.LineItem, error) {
	return &model.LineItem{ID: r.id(r.lineItems, name), Name: name}, nil
}

func testLineItems() *registry.LineItemRegistry {
	return registry.NewLineItemRegistry([]registry.LineItemDef{
		{Name: "Revenue", Aliases: []string{"net revenue", "total revenue"}},
		{Name: "Office Supplies", Aliases: []string{"supplies"}},
	})
}

func newTestNormalizer() *Normalizer {
	periods := registry.NewPeriodRegistry(2015, 2035, nil)
	return New(periods, testLineItems(), newFakeResolver(), Options{
		BaseCurrency: "USD",
		KPIMinValue:  1000,
	})
}

func mappedRow(lineItem, periodLabel, valueText string) model.MappedRow {
	return model.MappedRow{
		RawRow: model.RawRow{
			CompanyName:  "Acme GmbH",
			LineItemText: lineItem,
			PeriodLabel:  periodLabel,
			PeriodType:   model.PeriodMonthly,
			ValueText:    valueText,
			SourceFile:   "acme_feb.csv",
			SourceRow:    4,
			Confidence:   0.95,
		},
		LineItem: lineItem,
	}
}

func TestNormalize_HappyPath(t *testing.T) {
	n := newTestNormalizer()

	fact, rej, err := n.Normalize(context.Background(), mappedRow("Revenue", "Feb 2025", "2,390,873"), "doc-1")
	require.NoError(t, err)
	require.Nil(t, rej)
	require.NotNil(t, fact)

	assert.Equal(t, "2025-02", fact.PeriodLabel)
	assert.Equal(t, model.PeriodMonthly, fact.PeriodType)
	assert.Equal(t, 2390873.0, fact.Value)
	assert.Equal(t, "USD", fact.Currency)
	assert.Equal(t, model.ValueActual, fact.ValueType)
	assert.Equal(t, model.ScopePeriod, fact.Scope)
	assert.Equal(t, "doc-1", fact.DocumentID)
	assert.NotEmpty(t, fact.Hash)
}

func TestNormalize_UnrecognizedPeriod(t *testing.T) {
	n := newTestNormalizer()

	fact, rej, err := n.Normalize(context.Background(), mappedRow("Revenue", "sometime soon", "100000"), "doc-1")
	require.NoError(t, err)
	require.Nil(t, fact)
	require.NotNil(t, rej)
	assert.Equal(t, model.ReasonMissingPeriod, rej.Reason)
	assert.Equal(t, "sometime soon", rej.PeriodLabel)
}

func TestNormalize_PeriodOutsideWindow(t *testing.T) {
	n := newTestNormalizer()

	_, rej, err := n.Normalize(context.Background(), mappedRow("Revenue", "Feb 2005", "100000"), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, model.ReasonMissingPeriod, rej.Reason)
}

func TestNormalize_ValueParseFailure(t *testing.T) {
	n := newTestNormalizer()

	fact, rej, err := n.Normalize(context.Background(), mappedRow("Revenue", "2025-02", "n/a"), "doc-1")
	require.NoError(t, err)
	require.Nil(t, fact)
	require.NotNil(t, rej)
	assert.Equal(t, model.ReasonValueParseFailed, rej.Reason)
	assert.Equal(t, "n/a", rej.ValueText)
}

func TestNormalize_KPIScreen(t *testing.T) {
	n := newTestNormalizer()

	t.Run("revenue below floor rejected", func(t *testing.T) {
		_, rej, err := n.Normalize(context.Background(), mappedRow("Revenue", "2025-02", "500"), "doc-1")
		require.NoError(t, err)
		require.NotNil(t, rej)
		assert.Equal(t, model.ReasonKPIQualityTooSmall, rej.Reason)
	})

	t.Run("calendar year artifact rejected", func(t *testing.T) {
		_, rej, err := n.Normalize(context.Background(), mappedRow("Revenue", "2025-02", "2024"), "doc-1")
		require.NoError(t, err)
		require.NotNil(t, rej)
		assert.Equal(t, model.ReasonKPIQualityTooSmall, rej.Reason)
	})

	t.Run("non-KPI line item passes at any magnitude", func(t *testing.T) {
		fact, rej, err := n.Normalize(context.Background(), mappedRow("Office Supplies", "2025-02", "42.50"), "doc-1")
		require.NoError(t, err)
		require.Nil(t, rej)
		require.NotNil(t, fact)
		assert.Equal(t, 42.50, fact.Value)
	})

	t.Run("negative revenue measured by magnitude", func(t *testing.T) {
		fact, rej, err := n.Normalize(context.Background(), mappedRow("Revenue", "2025-02", "(150,000)"), "doc-1")
		require.NoError(t, err)
		require.Nil(t, rej)
		assert.Equal(t, -150000.0, fact.Value)
	})
}

func TestNormalize_ScopeDetection(t *testing.T) {
	n := newTestNormalizer()

	row := mappedRow("Revenue", "2025-03", "700,000")
	row.ContextKey = "YTD through March"
	fact, rej, err := n.Normalize(context.Background(), row, "doc-1")
	require.NoError(t, err)
	require.Nil(t, rej)
	assert.Equal(t, model.ScopeYTD, fact.Scope)

	row = mappedRow("Revenue", "2025-03", "700,000")
	row.Scenario = "Actual (cumulative)"
	fact, _, err = n.Normalize(context.Background(), row, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, model.ScopeYTD, fact.Scope)
}

func TestNormalize_ValueTypeFromScenario(t *testing.T) {
	n := newTestNormalizer()

	row := mappedRow("Revenue", "2025-02", "2,500,000")
	row.Scenario = "Budget"
	fact, _, err := n.Normalize(context.Background(), row, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, model.ValueBudget, fact.ValueType)

	row = mappedRow("Revenue", "2025-02", "2,100,000")
	row.Scenario = "Prior Year"
	fact, _, err = n.Normalize(context.Background(), row, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, model.ValuePrior, fact.ValueType)
}

func TestNormalize_CurrencyPrecedence(t *testing.T) {
	n := newTestNormalizer()

	// Marker in the value text wins over the row currency.
	row := mappedRow("Revenue", "2025-02", "€2,390,873")
	row.Currency = "USD"
	fact, _, err := n.Normalize(context.Background(), row, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "EUR", fact.Currency)

	// Row currency wins over the configured base currency.
	row = mappedRow("Revenue", "2025-02", "2,390,873")
	row.Currency = "SEK"
	fact, _, err = n.Normalize(context.Background(), row, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "SEK", fact.Currency)
}

func TestDedupHash_Stability(t *testing.T) {
	h1 := model.DedupHash("Acme GmbH", "2025-02", "Revenue", model.ValueActual, model.ScopePeriod, "acme_feb.csv", "")
	h2 := model.DedupHash("  acme gmbh ", "2025-02", "Revenue", model.ValueActual, model.ScopePeriod, "acme_feb.csv", "")
	assert.Equal(t, h1, h2, "company name matching is case- and space-insensitive")

	h3 := model.DedupHash("Acme GmbH", "2025-02", "Revenue", model.ValueActual, model.ScopeYTD, "acme_feb.csv", "")
	assert.NotEqual(t, h1, h3, "scope is part of the identity")

	h4 := model.DedupHash("Acme GmbH", "2025-02", "Revenue", model.ValueActual, model.ScopePeriod, "other.csv", "")
	assert.NotEqual(t, h1, h4, "source file is part of the identity")
}

func TestNormalize_SameRowSameHash(t *testing.T) {
	n := newTestNormalizer()
	row := mappedRow("Revenue", "Feb 2025", "2,390,873")

	f1, _, err := n.Normalize(context.Background(), row, "doc-1")
	require.NoError(t, err)
	f2, _, err := n.Normalize(context.Background(), row, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, f1.Hash, f2.Hash, "document id does not change fact identity")
}
