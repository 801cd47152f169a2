// Package reconcile implements best-fact resolution: a pure, re-derivable
// pass over all canonical facts for a company that filters scale outliers by
// median banding, cross-validates YTD revenue against derived cumulative
// sums, and picks one winner per partition by confidence and recency.
package reconcile

import (
	"fmt"
	"math"
	"sort"

	"github.com/sells-group/finfacts-cli/internal/model"
)

// Options holds the reconciliation tolerances.
type Options struct {
	BandLowRatio    float64 // candidate excluded when |value| < median*BandLowRatio
	BandHighRatio   float64 // candidate excluded when |value| > median*BandHighRatio
	YTDAbsTolerance float64 // absolute floor for YTD mismatch
	YTDRelTolerance float64 // relative threshold for YTD mismatch (0.02 = 2%)
}

// DefaultOptions returns the standard tolerances.
func DefaultOptions() Options {
	return Options{
		BandLowRatio:    0.1,
		BandHighRatio:   10.0,
		YTDAbsTolerance: 1000,
		YTDRelTolerance: 0.02,
	}
}

// Exclusion records a candidate filtered out before winner selection.
type Exclusion struct {
	Fact   model.CanonicalFact
	Reason model.RejectionReason // scale_outlier or ytd_mismatch
	Detail string
}

// Result is the outcome of one resolution pass.
type Result struct {
	Best     []model.CanonicalFact // one winner per partition, stable order
	Excluded []Exclusion
	Findings []model.ReconciliationFinding
}

// BestByPartition indexes winners by (period label, line item, value type, scope).
func (r *Result) BestByPartition() map[PartitionKey]model.CanonicalFact {
	m := make(map[PartitionKey]model.CanonicalFact, len(r.Best))
	for _, f := range r.Best {
		m[partitionOf(f)] = f
	}
	return m
}

// PartitionKey identifies the unit that gets exactly one winning fact.
type PartitionKey struct {
	CompanyID   int64
	PeriodLabel string
	LineItem    string
	ValueType   model.ValueType
	Scope       model.PeriodScope
}

func partitionOf(f model.CanonicalFact) PartitionKey {
	return PartitionKey{
		CompanyID:   f.CompanyID,
		PeriodLabel: f.PeriodLabel,
		LineItem:    f.LineItem,
		ValueType:   f.ValueType,
		Scope:       f.Scope,
	}
}

// groupKey is the banding group: period is deliberately absent so the median
// spans a line item's whole monthly history.
type groupKey struct {
	CompanyID int64
	LineItem  string
	ValueType model.ValueType
	Scope     model.PeriodScope
}

// Resolve runs the full resolution pass over a company's canonical facts.
// It is pure and order-independent: the same fact set always yields the same
// result regardless of input ordering.
func Resolve(facts []model.CanonicalFact, opts Options) Result {
	// Work on a sorted copy so every downstream step sees a canonical order.
	sorted := make([]model.CanonicalFact, len(facts))
	copy(sorted, facts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var res Result

	survivors := filterScaleOutliers(sorted, opts, &res)
	survivors = filterYTDMismatches(survivors, opts, &res)

	res.Best = selectWinners(survivors)
	return res
}

// filterScaleOutliers drops monthly candidates whose magnitude falls outside
// the median band for their group. The median is computed from monthly values
// only so yearly aggregates cannot contaminate it; for the same reason the
// band is applied only to monthly candidates.
func filterScaleOutliers(facts []model.CanonicalFact, opts Options, res *Result) []model.CanonicalFact {
	monthly := make(map[groupKey][]float64)
	for _, f := range facts {
		if f.PeriodType == model.PeriodMonthly {
			k := groupKey{f.CompanyID, f.LineItem, f.ValueType, f.Scope}
			monthly[k] = append(monthly[k], math.Abs(f.Value))
		}
	}

	medians := make(map[groupKey]float64, len(monthly))
	for k, vals := range monthly {
		medians[k] = median(vals)
	}

	survivors := facts[:0:0]
	for _, f := range facts {
		if f.PeriodType != model.PeriodMonthly {
			survivors = append(survivors, f)
			continue
		}
		k := groupKey{f.CompanyID, f.LineItem, f.ValueType, f.Scope}
		med, ok := medians[k]
		if !ok || med == 0 {
			survivors = append(survivors, f)
			continue
		}

		abs := math.Abs(f.Value)
		if abs < med*opts.BandLowRatio || abs > med*opts.BandHighRatio {
			detail := fmt.Sprintf("|%.2f| outside [%.2f, %.2f] (median %.2f)",
				f.Value, med*opts.BandLowRatio, med*opts.BandHighRatio, med)
			res.Excluded = append(res.Excluded, Exclusion{Fact: f, Reason: model.ReasonScaleOutlier, Detail: detail})
			res.Findings = append(res.Findings, model.ReconciliationFinding{
				CompanyID:     f.CompanyID,
				Kind:          model.FindingScaleOutlier,
				FactID:        f.ID,
				DocumentID:    f.DocumentID,
				PeriodLabel:   f.PeriodLabel,
				LineItem:      f.LineItem,
				ObservedValue: f.Value,
				Detail:        detail,
			})
			continue
		}
		survivors = append(survivors, f)
	}
	return survivors
}

// filterYTDMismatches cross-validates ingested Monthly/YTD/Actual Revenue
// candidates against an independently derived cumulative series built from
// the best Monthly/Period/Actual Revenue winners. A candidate is excluded
// only when both the absolute and the relative difference exceed tolerance;
// the absolute floor keeps rounding noise on small bases from flagging.
func filterYTDMismatches(facts []model.CanonicalFact, opts Options, res *Result) []model.CanonicalFact {
	derived := deriveCumulativeRevenue(facts)
	if len(derived) == 0 {
		return facts
	}

	survivors := facts[:0:0]
	for _, f := range facts {
		if f.LineItem != "Revenue" || f.PeriodType != model.PeriodMonthly ||
			f.Scope != model.ScopeYTD || f.ValueType != model.ValueActual {
			survivors = append(survivors, f)
			continue
		}
		key := cumKey{f.CompanyID, f.PeriodLabel}
		expected, ok := derived[key]
		if !ok {
			survivors = append(survivors, f)
			continue
		}

		diff := math.Abs(expected - f.Value)
		rel := math.Inf(1)
		if f.Value != 0 {
			rel = diff / math.Abs(f.Value)
		}
		if diff > opts.YTDAbsTolerance && rel > opts.YTDRelTolerance {
			detail := fmt.Sprintf("ytd %.2f vs derived %.2f (diff %.2f, %.1f%%)",
				f.Value, expected, diff, rel*100)
			res.Excluded = append(res.Excluded, Exclusion{Fact: f, Reason: model.ReasonYTDMismatch, Detail: detail})
			res.Findings = append(res.Findings, model.ReconciliationFinding{
				CompanyID:     f.CompanyID,
				Kind:          model.FindingYTDMismatch,
				FactID:        f.ID,
				DocumentID:    f.DocumentID,
				PeriodLabel:   f.PeriodLabel,
				LineItem:      f.LineItem,
				ObservedValue: f.Value,
				ExpectedValue: expected,
				Detail:        detail,
			})
			continue
		}
		survivors = append(survivors, f)
	}
	return survivors
}

type cumKey struct {
	CompanyID   int64
	PeriodLabel string
}

// deriveCumulativeRevenue builds the per-company cumulative revenue series
// for each calendar year from the best Monthly/Period/Actual Revenue values,
// ordered by period label within the year. Canonical monthly labels
// ("2025-02") order lexicographically, so a plain sort suffices.
func deriveCumulativeRevenue(facts []model.CanonicalFact) map[cumKey]float64 {
	best := make(map[cumKey]model.CanonicalFact)
	for _, f := range facts {
		if f.LineItem != "Revenue" || f.PeriodType != model.PeriodMonthly ||
			f.Scope != model.ScopePeriod || f.ValueType != model.ValueActual {
			continue
		}
		k := cumKey{f.CompanyID, f.PeriodLabel}
		cur, ok := best[k]
		if !ok || betterThan(f, cur) {
			best[k] = f
		}
	}
	if len(best) == 0 {
		return nil
	}

	keys := make([]cumKey, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CompanyID != keys[j].CompanyID {
			return keys[i].CompanyID < keys[j].CompanyID
		}
		return keys[i].PeriodLabel < keys[j].PeriodLabel
	})

	cum := make(map[cumKey]float64, len(keys))
	var lastCompany int64 = -1
	lastYear := ""
	running := 0.0
	for _, k := range keys {
		year := k.PeriodLabel[:4]
		if k.CompanyID != lastCompany || year != lastYear {
			running = 0
			lastCompany = k.CompanyID
			lastYear = year
		}
		running += best[k].Value
		cum[k] = running
	}
	return cum
}

// betterThan ranks by confidence DESC, id DESC: higher extraction confidence
// wins, ties go to the most recently ingested fact.
func betterThan(a, b model.CanonicalFact) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.ID > b.ID
}

// selectWinners keeps exactly one fact per partition of the survivors.
func selectWinners(facts []model.CanonicalFact) []model.CanonicalFact {
	winners := make(map[PartitionKey]model.CanonicalFact)
	for _, f := range facts {
		k := partitionOf(f)
		cur, ok := winners[k]
		if !ok || betterThan(f, cur) {
			winners[k] = f
		}
	}

	best := make([]model.CanonicalFact, 0, len(winners))
	for _, f := range winners {
		best = append(best, f)
	}
	sort.Slice(best, func(i, j int) bool {
		a, b := best[i], best[j]
		if a.CompanyID != b.CompanyID {
			return a.CompanyID < b.CompanyID
		}
		if a.LineItem != b.LineItem {
			return a.LineItem < b.LineItem
		}
		if a.PeriodLabel != b.PeriodLabel {
			return a.PeriodLabel < b.PeriodLabel
		}
		if a.ValueType != b.ValueType {
			return a.ValueType < b.ValueType
		}
		return a.Scope < b.Scope
	})
	return best
}

// median returns the middle value of vals, interpolating between the two
// middle values for even counts. Empty input yields 0.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
