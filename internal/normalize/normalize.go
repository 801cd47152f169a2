// Package normalize canonicalizes mapped rows into facts ready for
// persistence: period resolution, scope detection, value parsing, the
// headline-KPI quality screen, and the dedup hash.
package normalize

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/finfacts-cli/internal/model"
	"github.com/sells-group/finfacts-cli/internal/registry"
)

// RefResolver resolves or creates reference rows (companies, periods, line
// items). Implemented by the store.
type RefResolver interface {
	GetOrCreateCompany(ctx context.Context, name string) (*model.Company, error)
	GetOrCreatePeriod(ctx context.Context, p model.Period) (*model.Period, error)
	GetOrCreateLineItem(ctx context.Context, name string) (*model.LineItem, error)
}

// Options holds normalization tunables.
type Options struct {
	BaseCurrency string  // applied when the value text carries no currency marker
	KPIMinValue  float64 // headline-KPI magnitude floor
}

// Normalizer converts mapped rows into normalized facts. Each check can
// independently reject the row; rejections carry the original raw values.
type Normalizer struct {
	periods   *registry.PeriodRegistry
	lineItems *registry.LineItemRegistry
	refs      RefResolver
	opts      Options
}

// New creates a Normalizer.
func New(periods *registry.PeriodRegistry, lineItems *registry.LineItemRegistry, refs RefResolver, opts Options) *Normalizer {
	if opts.BaseCurrency == "" {
		opts.BaseCurrency = "USD"
	}
	if opts.KPIMinValue == 0 {
		opts.KPIMinValue = 1000
	}
	return &Normalizer{periods: periods, lineItems: lineItems, refs: refs, opts: opts}
}

// ytdMarkers are matched case-insensitively against contextual signals to
// flag a value as cumulative year-to-date. This is a heuristic; the YTD
// cross-validation in reconciliation catches misclassifications.
var ytdMarkers = []string{"ytd", "year to date", "year-to-date", "cumulative"}

// Normalize resolves one mapped row into a NormalizedFact, or a rejection
// when the row fails a check. The error return is reserved for
// infrastructure failures (reference resolution), which are batch-fatal.
func (n *Normalizer) Normalize(ctx context.Context, row model.MappedRow, documentID string) (*model.NormalizedFact, *model.FactRejection, error) {
	period, ok := n.periods.Resolve(row.PeriodLabel, row.PeriodType)
	if !ok {
		return nil, n.reject(row, model.ReasonMissingPeriod,
			fmt.Sprintf("period %q (%s) unrecognized or outside %d-%d",
				row.PeriodLabel, row.PeriodType, n.periods.FromYear, n.periods.ToYear)), nil
	}

	value, currency, err := ParseValue(row.ValueText)
	if err != nil {
		return nil, n.reject(row, model.ReasonValueParseFailed, err.Error()), nil
	}
	if currency == "" {
		currency = row.Currency
	}
	if currency == "" {
		currency = n.opts.BaseCurrency
	}

	if reason, detail := n.screenKPI(row.LineItem, value); reason != "" {
		return nil, n.reject(row, reason, detail), nil
	}

	scope := detectScope(row)
	valueType := detectValueType(row)

	company, err := n.refs.GetOrCreateCompany(ctx, row.CompanyName)
	if err != nil {
		return nil, nil, err
	}
	persisted, err := n.refs.GetOrCreatePeriod(ctx, period)
	if err != nil {
		return nil, nil, err
	}
	lineItem, err := n.refs.GetOrCreateLineItem(ctx, row.LineItem)
	if err != nil {
		return nil, nil, err
	}

	fact := &model.NormalizedFact{
		CompanyID:        company.ID,
		CompanyName:      company.Name,
		PeriodID:         persisted.ID,
		PeriodLabel:      persisted.Label,
		PeriodType:       persisted.Type,
		LineItemID:       lineItem.ID,
		LineItem:         lineItem.Name,
		ValueType:        valueType,
		Scope:            scope,
		Value:            value,
		Currency:         currency,
		DocumentID:       documentID,
		SourceFile:       row.SourceFile,
		SourceTable:      row.SourceTable,
		SourceRow:        row.SourceRow,
		SourceCol:        row.SourceCol,
		ContextKey:       row.ContextKey,
		ExtractionMethod: row.ExtractionMethod,
		Confidence:       row.Confidence,
	}
	fact.Hash = model.DedupHash(fact.CompanyName, fact.PeriodLabel, fact.LineItem,
		fact.ValueType, fact.Scope, fact.SourceFile, fact.ContextKey)

	return fact, nil, nil
}

// screenKPI rejects headline-KPI values that are footnote or label artifacts:
// implausibly small magnitudes and bare calendar years.
func (n *Normalizer) screenKPI(lineItem string, value float64) (model.RejectionReason, string) {
	if !n.lineItems.IsHeadlineKPI(lineItem) {
		return "", ""
	}
	if math.Abs(value) < n.opts.KPIMinValue {
		return model.ReasonKPIQualityTooSmall,
			fmt.Sprintf("%s value %.2f below %.0f", lineItem, value, n.opts.KPIMinValue)
	}
	if value == math.Trunc(value) && value >= 1900 && value <= 2100 {
		return model.ReasonKPIQualityTooSmall,
			fmt.Sprintf("%s value %.0f looks like a calendar year", lineItem, value)
	}
	return "", ""
}

// detectScope defaults to Period and flips to YTD when any contextual signal
// carries a year-to-date marker.
func detectScope(row model.MappedRow) model.PeriodScope {
	for _, signal := range []string{row.ContextKey, row.Scenario, row.PeriodLabel} {
		lower := strings.ToLower(signal)
		for _, marker := range ytdMarkers {
			if strings.Contains(lower, marker) {
				return model.ScopeYTD
			}
		}
	}
	return model.ScopePeriod
}

// detectValueType honors an explicit value type and otherwise derives one
// from the scenario text, defaulting to Actual.
func detectValueType(row model.MappedRow) model.ValueType {
	if row.ValueType != "" {
		return row.ValueType
	}
	scenario := strings.ToLower(row.Scenario)
	switch {
	case strings.Contains(scenario, "budget"), strings.Contains(scenario, "plan"):
		return model.ValueBudget
	case strings.Contains(scenario, "prior"), strings.Contains(scenario, "previous year"):
		return model.ValuePrior
	default:
		return model.ValueActual
	}
}

func (n *Normalizer) reject(row model.MappedRow, reason model.RejectionReason, detail string) *model.FactRejection {
	return &model.FactRejection{
		CompanyName:  row.CompanyName,
		LineItemText: row.LineItemText,
		PeriodLabel:  row.PeriodLabel,
		ValueText:    row.ValueText,
		Reason:       reason,
		Detail:       detail,
		SourceRow:    row.SourceRow,
	}
}
