// Package mapper resolves raw line-item labels to canonical line items.
package mapper

import (
	"github.com/sells-group/finfacts-cli/internal/model"
	"github.com/sells-group/finfacts-cli/internal/registry"
)

// Mapper attaches canonical line-item identity to raw rows. It is a pure
// per-row function with no side effects beyond the returned rejection.
type Mapper struct {
	lineItems *registry.LineItemRegistry
}

// New creates a Mapper over the given line-item registry.
func New(lineItems *registry.LineItemRegistry) *Mapper {
	return &Mapper{lineItems: lineItems}
}

// Map resolves the row's line-item text. On success the row passes through
// otherwise unchanged with the canonical name attached. On failure exactly
// one rejection is returned and the row never reaches normalization.
func (m *Mapper) Map(row model.RawRow) (model.MappedRow, *model.FactRejection) {
	if m.lineItems.IsNoise(row.LineItemText) {
		return model.MappedRow{}, reject(row, "known non-financial label")
	}

	canonical := m.lineItems.Resolve(row.LineItemText)
	if canonical == "" {
		return model.MappedRow{}, reject(row, "no alias match")
	}

	return model.MappedRow{RawRow: row, LineItem: canonical}, nil
}

func reject(row model.RawRow, detail string) *model.FactRejection {
	return &model.FactRejection{
		CompanyName:  row.CompanyName,
		LineItemText: row.LineItemText,
		PeriodLabel:  row.PeriodLabel,
		ValueText:    row.ValueText,
		Reason:       model.ReasonUnmappedLineItem,
		Detail:       detail,
		SourceRow:    row.SourceRow,
	}
}
