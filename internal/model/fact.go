package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// PeriodType is the granularity of a reporting period.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "Monthly"
	PeriodQuarterly PeriodType = "Quarterly"
	PeriodYearly    PeriodType = "Yearly"
)

// PeriodScope distinguishes single-period values from cumulative year-to-date totals.
type PeriodScope string

const (
	ScopePeriod PeriodScope = "Period"
	ScopeYTD    PeriodScope = "YTD"
)

// ValueType is the nature of a financial observation.
type ValueType string

const (
	ValueActual ValueType = "Actual"
	ValueBudget ValueType = "Budget"
	ValuePrior  ValueType = "Prior"
)

// RawRow is one extracted row as delivered by the upstream extraction stage,
// before any mapping or normalization decision has been made.
type RawRow struct {
	CompanyName      string     `json:"company_name"`
	LineItemText     string     `json:"line_item_text"`
	Scenario         string     `json:"scenario"`
	PeriodLabel      string     `json:"period_label"`
	PeriodType       PeriodType `json:"period_type"`
	ValueText        string     `json:"value_text"`
	ValueType        ValueType  `json:"value_type"`
	Currency         string     `json:"currency,omitempty"`
	SourceFile       string     `json:"source_file"`
	SourcePage       int        `json:"source_page,omitempty"`
	SourceTable      int        `json:"source_table,omitempty"`
	SourceRow        int        `json:"source_row,omitempty"`
	SourceCol        int        `json:"source_col,omitempty"`
	ContextKey       string     `json:"context_key,omitempty"`
	ExtractionMethod string     `json:"extraction_method"`
	Confidence       float64    `json:"confidence"`
}

// MappedRow is a RawRow whose line-item text resolved to a canonical line item.
type MappedRow struct {
	RawRow
	LineItem string `json:"line_item"` // canonical line-item name
}

// NormalizedFact is a fully resolved observation ready for persistence.
type NormalizedFact struct {
	CompanyID        int64       `json:"company_id"`
	CompanyName      string      `json:"company_name"`
	PeriodID         int64       `json:"period_id"`
	PeriodLabel      string      `json:"period_label"` // canonical label, e.g. "2025-02"
	PeriodType       PeriodType  `json:"period_type"`
	LineItemID       int64       `json:"line_item_id"`
	LineItem         string      `json:"line_item"`
	ValueType        ValueType   `json:"value_type"`
	Scope            PeriodScope `json:"period_scope"`
	Value            float64     `json:"value"`
	Currency         string      `json:"currency"`
	DocumentID       string      `json:"document_id"`
	SourceFile       string      `json:"source_file"`
	SourceTable      int         `json:"source_table"`
	SourceRow        int         `json:"source_row"`
	SourceCol        int         `json:"source_col"`
	ContextKey       string      `json:"context_key"`
	ExtractionMethod string      `json:"extraction_method"`
	Confidence       float64     `json:"confidence"`
	Hash             string      `json:"hash"`
}

// CanonicalFact is the persisted authoritative observation. At most one row
// exists per (company, period, line item, value type, scope, source file,
// context key); the Hash column enforces that identity.
type CanonicalFact struct {
	ID               int64       `json:"id"`
	CompanyID        int64       `json:"company_id"`
	CompanyName      string      `json:"company_name,omitempty"`
	PeriodID         int64       `json:"period_id"`
	PeriodLabel      string      `json:"period_label"`
	PeriodType       PeriodType  `json:"period_type"`
	LineItemID       int64       `json:"line_item_id"`
	LineItem         string      `json:"line_item"`
	ValueType        ValueType   `json:"value_type"`
	Scope            PeriodScope `json:"period_scope"`
	Value            float64     `json:"value"`
	Currency         string      `json:"currency"`
	DocumentID       string      `json:"document_id"`
	SourceFile       string      `json:"source_file"`
	SourceTable      int         `json:"source_table"`
	SourceRow        int         `json:"source_row"`
	SourceCol        int         `json:"source_col"`
	ContextKey       string      `json:"context_key"`
	ExtractionMethod string      `json:"extraction_method"`
	Confidence       float64     `json:"confidence"`
	Hash             string      `json:"hash"`
	CreatedAt        time.Time   `json:"created_at"`
}

// DedupHash computes the stable identity hash for a fact. Re-ingesting the
// same observation from the same file always produces the same hash, which is
// what makes ingestion idempotent.
func DedupHash(companyName, periodLabel, lineItem string, vt ValueType, scope PeriodScope, sourceFile, contextKey string) string {
	h := sha256.New()
	for _, part := range []string{
		strings.ToLower(strings.TrimSpace(companyName)),
		periodLabel,
		lineItem,
		string(vt),
		string(scope),
		sourceFile,
		contextKey,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
