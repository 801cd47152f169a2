// Package metrics computes derived metrics (period-over-period growth and
// budget variance) from a company's best-fact set.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/sells-group/finfacts-cli/internal/model"
)

// Compute derives all metrics for the given best facts. A growth metric is
// produced only where the comparison period also has a best fact; a zero or
// absent prior leaves the metric undefined rather than forcing a value.
// Recomputation with unchanged inputs yields unchanged values.
func Compute(best []model.CanonicalFact) []model.DerivedMetric {
	type factKey struct {
		companyID   int64
		periodLabel string
		lineItem    string
		valueType   model.ValueType
	}
	idx := make(map[factKey]model.CanonicalFact, len(best))
	for _, f := range best {
		if f.Scope != model.ScopePeriod {
			continue
		}
		idx[factKey{f.CompanyID, f.PeriodLabel, f.LineItem, f.ValueType}] = f
	}

	var out []model.DerivedMetric

	for _, f := range best {
		if f.Scope != model.ScopePeriod {
			continue
		}

		if f.ValueType == model.ValueActual {
			if calc, suffix, priorLabel := growthSpec(f); calc != "" {
				prior, ok := idx[factKey{f.CompanyID, priorLabel, f.LineItem, model.ValueActual}]
				if ok && prior.Value != 0 {
					out = append(out, model.DerivedMetric{
						CompanyID:     f.CompanyID,
						PeriodID:      f.PeriodID,
						PeriodLabel:   f.PeriodLabel,
						MetricName:    f.LineItem + "_" + suffix,
						LineItem:      f.LineItem,
						Calculation:   calc,
						Value:         round2((f.Value - prior.Value) / math.Abs(prior.Value) * 100),
						SourceFactIDs: []int64{f.ID, prior.ID},
					})
				}
			}

			budget, ok := idx[factKey{f.CompanyID, f.PeriodLabel, f.LineItem, model.ValueBudget}]
			if ok && budget.Value != 0 {
				out = append(out, model.DerivedMetric{
					CompanyID:     f.CompanyID,
					PeriodID:      f.PeriodID,
					PeriodLabel:   f.PeriodLabel,
					MetricName:    f.LineItem + "_BudgetVar",
					LineItem:      f.LineItem,
					Calculation:   model.CalcBudgetVariance,
					Value:         round2((f.Value - budget.Value) / math.Abs(budget.Value) * 100),
					SourceFactIDs: []int64{f.ID, budget.ID},
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CompanyID != b.CompanyID {
			return a.CompanyID < b.CompanyID
		}
		if a.PeriodLabel != b.PeriodLabel {
			return a.PeriodLabel < b.PeriodLabel
		}
		return a.MetricName < b.MetricName
	})
	return out
}

// growthSpec returns the calculation type, metric-name suffix, and prior
// period label for a fact's period granularity.
func growthSpec(f model.CanonicalFact) (model.CalculationType, string, string) {
	switch f.PeriodType {
	case model.PeriodMonthly:
		return model.CalcMoMGrowth, "MoM", priorMonth(f.PeriodLabel)
	case model.PeriodQuarterly:
		return model.CalcQoQGrowth, "QoQ", priorQuarter(f.PeriodLabel)
	case model.PeriodYearly:
		return model.CalcYoYGrowth, "YoY", priorYear(f.PeriodLabel)
	default:
		return "", "", ""
	}
}

// priorMonth maps "2025-02" to "2025-01" and "2025-01" to "2024-12".
func priorMonth(label string) string {
	year, month, ok := splitMonthly(label)
	if !ok {
		return ""
	}
	month--
	if month == 0 {
		month = 12
		year--
	}
	return fmt.Sprintf("%04d-%02d", year, month)
}

// priorQuarter maps "2025-Q1" to "2024-Q4".
func priorQuarter(label string) string {
	if len(label) != 7 || label[4:6] != "-Q" {
		return ""
	}
	year, err1 := strconv.Atoi(label[:4])
	q, err2 := strconv.Atoi(label[6:])
	if err1 != nil || err2 != nil {
		return ""
	}
	q--
	if q == 0 {
		q = 4
		year--
	}
	return fmt.Sprintf("%04d-Q%d", year, q)
}

// priorYear maps "2025" to "2024".
func priorYear(label string) string {
	year, err := strconv.Atoi(label)
	if err != nil {
		return ""
	}
	return strconv.Itoa(year - 1)
}

func splitMonthly(label string) (int, int, bool) {
	if len(label) != 7 || label[4] != '-' {
		return 0, 0, false
	}
	year, err1 := strconv.Atoi(label[:4])
	month, err2 := strconv.Atoi(label[5:])
	if err1 != nil || err2 != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
