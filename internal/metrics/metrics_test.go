package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finfacts-cli/internal/model"
)

func fact(id int64, lineItem, period string, ptype model.PeriodType, vtype model.ValueType, value float64) model.CanonicalFact {
	return model.CanonicalFact{
		ID:          id,
		CompanyID:   1,
		PeriodID:    id,
		PeriodLabel: period,
		PeriodType:  ptype,
		LineItem:    lineItem,
		ValueType:   vtype,
		Scope:       model.ScopePeriod,
		Value:       value,
	}
}

func metricByName(t *testing.T, metrics []model.DerivedMetric, period, name string) model.DerivedMetric {
	t.Helper()
	for _, m := range metrics {
		if m.PeriodLabel == period && m.MetricName == name {
			return m
		}
	}
	t.Fatalf("metric %s for %s not found", name, period)
	return model.DerivedMetric{}
}

func TestCompute_MoMGrowth(t *testing.T) {
	best := []model.CanonicalFact{
		fact(1, "Revenue", "2025-01", model.PeriodMonthly, model.ValueActual, 2000000),
		fact(2, "Revenue", "2025-02", model.PeriodMonthly, model.ValueActual, 2390873),
	}

	out := Compute(best)

	m := metricByName(t, out, "2025-02", "Revenue_MoM")
	assert.Equal(t, model.CalcMoMGrowth, m.Calculation)
	assert.Equal(t, 19.54, m.Value) // (2390873-2000000)/2000000*100 rounded
	assert.Equal(t, []int64{2, 1}, m.SourceFactIDs)

	// January has no prior month in the set; no metric for it.
	for _, m := range out {
		assert.NotEqual(t, "2025-01", m.PeriodLabel)
	}
}

func TestCompute_YearBoundary(t *testing.T) {
	best := []model.CanonicalFact{
		fact(1, "Revenue", "2024-12", model.PeriodMonthly, model.ValueActual, 1000000),
		fact(2, "Revenue", "2025-01", model.PeriodMonthly, model.ValueActual, 1100000),
	}

	out := Compute(best)
	m := metricByName(t, out, "2025-01", "Revenue_MoM")
	assert.Equal(t, 10.0, m.Value)
}

func TestCompute_QoQAndYoY(t *testing.T) {
	best := []model.CanonicalFact{
		fact(1, "Revenue", "2024-Q4", model.PeriodQuarterly, model.ValueActual, 3000000),
		fact(2, "Revenue", "2025-Q1", model.PeriodQuarterly, model.ValueActual, 3300000),
		fact(3, "Revenue", "2024", model.PeriodYearly, model.ValueActual, 12000000),
		fact(4, "Revenue", "2025", model.PeriodYearly, model.ValueActual, 13200000),
	}

	out := Compute(best)

	q := metricByName(t, out, "2025-Q1", "Revenue_QoQ")
	assert.Equal(t, model.CalcQoQGrowth, q.Calculation)
	assert.Equal(t, 10.0, q.Value)

	y := metricByName(t, out, "2025", "Revenue_YoY")
	assert.Equal(t, model.CalcYoYGrowth, y.Calculation)
	assert.Equal(t, 10.0, y.Value)
}

func TestCompute_ZeroPriorSkipped(t *testing.T) {
	best := []model.CanonicalFact{
		fact(1, "Revenue", "2025-01", model.PeriodMonthly, model.ValueActual, 0),
		fact(2, "Revenue", "2025-02", model.PeriodMonthly, model.ValueActual, 500000),
	}

	out := Compute(best)
	assert.Empty(t, out, "growth against a zero prior is undefined")
}

func TestCompute_NegativePriorUsesMagnitude(t *testing.T) {
	best := []model.CanonicalFact{
		fact(1, "EBITDA", "2025-01", model.PeriodMonthly, model.ValueActual, -100000),
		fact(2, "EBITDA", "2025-02", model.PeriodMonthly, model.ValueActual, -50000),
	}

	out := Compute(best)
	m := metricByName(t, out, "2025-02", "EBITDA_MoM")
	assert.Equal(t, 50.0, m.Value, "loss narrowing by half reads as +50%")
}

func TestCompute_BudgetVariance(t *testing.T) {
	best := []model.CanonicalFact{
		fact(1, "Revenue", "2025-02", model.PeriodMonthly, model.ValueActual, 2300000),
		fact(2, "Revenue", "2025-02", model.PeriodMonthly, model.ValueBudget, 2500000),
	}

	out := Compute(best)
	m := metricByName(t, out, "2025-02", "Revenue_BudgetVar")
	assert.Equal(t, model.CalcBudgetVariance, m.Calculation)
	assert.Equal(t, -8.0, m.Value)
	assert.Equal(t, []int64{1, 2}, m.SourceFactIDs)
}

func TestCompute_BudgetFactsProduceNoGrowth(t *testing.T) {
	best := []model.CanonicalFact{
		fact(1, "Revenue", "2025-01", model.PeriodMonthly, model.ValueBudget, 2000000),
		fact(2, "Revenue", "2025-02", model.PeriodMonthly, model.ValueBudget, 2500000),
	}

	out := Compute(best)
	assert.Empty(t, out, "growth metrics come from actuals only")
}

func TestCompute_YTDFactsIgnored(t *testing.T) {
	ytd := fact(1, "Revenue", "2025-02", model.PeriodMonthly, model.ValueActual, 4000000)
	ytd.Scope = model.ScopeYTD
	best := []model.CanonicalFact{
		ytd,
		fact(2, "Revenue", "2025-01", model.PeriodMonthly, model.ValueActual, 2000000),
		fact(3, "Revenue", "2025-02", model.PeriodMonthly, model.ValueActual, 2100000),
	}

	out := Compute(best)
	require.Len(t, out, 1)
	assert.Equal(t, 5.0, out[0].Value, "cumulative facts neither produce nor feed growth")
}

func TestCompute_Idempotent(t *testing.T) {
	best := []model.CanonicalFact{
		fact(1, "Revenue", "2025-01", model.PeriodMonthly, model.ValueActual, 2000000),
		fact(2, "Revenue", "2025-02", model.PeriodMonthly, model.ValueActual, 2390873),
		fact(3, "Revenue", "2025-02", model.PeriodMonthly, model.ValueBudget, 2500000),
	}
	assert.Equal(t, Compute(best), Compute(best))
}

func TestPriorLabels(t *testing.T) {
	assert.Equal(t, "2025-01", priorMonth("2025-02"))
	assert.Equal(t, "2024-12", priorMonth("2025-01"))
	assert.Equal(t, "", priorMonth("garbage"))
	assert.Equal(t, "2024-Q4", priorQuarter("2025-Q1"))
	assert.Equal(t, "2025-Q2", priorQuarter("2025-Q3"))
	assert.Equal(t, "", priorQuarter("2025"))
	assert.Equal(t, "2024", priorYear("2025"))
}
