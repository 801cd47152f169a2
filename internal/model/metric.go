package model

import "time"

// CalculationType names a derived-metric calculation method.
type CalculationType string

const (
	CalcMoMGrowth      CalculationType = "mom_growth"
	CalcQoQGrowth      CalculationType = "qoq_growth"
	CalcYoYGrowth      CalculationType = "yoy_growth"
	CalcBudgetVariance CalculationType = "budget_variance"
)

// DerivedMetric is one computed value per (company, period, metric name),
// e.g. "Revenue_MoM". SourceFactIDs are weak references to the canonical
// facts the value was computed from; when best-fact selection changes, the
// metric is recomputed rather than left stale.
type DerivedMetric struct {
	ID            int64           `json:"id"`
	CompanyID     int64           `json:"company_id"`
	PeriodID      int64           `json:"period_id"`
	PeriodLabel   string          `json:"period_label"`
	MetricName    string          `json:"metric_name"` // e.g. "Revenue_MoM"
	LineItem      string          `json:"line_item"`
	Calculation   CalculationType `json:"calculation"`
	Value         float64         `json:"value"`
	SourceFactIDs []int64         `json:"source_fact_ids"`
	ComputedAt    time.Time       `json:"computed_at"`
}
