package model

import "time"

// RejectionReason is the stable code attached to every quarantined row.
// Codes are part of the external contract; do not rename.
type RejectionReason string

const (
	ReasonUnmappedLineItem    RejectionReason = "unmapped_line_item"
	ReasonMissingPeriod       RejectionReason = "missing_period"
	ReasonValueParseFailed    RejectionReason = "value_parse_failed"
	ReasonKPIQualityTooSmall  RejectionReason = "kpi_quality_too_small"
	ReasonScaleOutlier        RejectionReason = "scale_outlier"
	ReasonYTDMismatch         RejectionReason = "ytd_mismatch"
	ReasonPersistenceConflict RejectionReason = "persistence_conflict"
)

// FactRejection quarantines a row that could not become a canonical fact.
// The original raw values are kept so the row can be re-ingested after the
// alias tables or the source are corrected. No input is dropped without one.
type FactRejection struct {
	ID           int64           `json:"id"`
	DocumentID   string          `json:"document_id"`
	CompanyName  string          `json:"company_name"`
	LineItemText string          `json:"line_item_text"`
	PeriodLabel  string          `json:"period_label"`
	ValueText    string          `json:"value_text"`
	Reason       RejectionReason `json:"reason"`
	Detail       string          `json:"detail,omitempty"`
	SourceRow    int             `json:"source_row,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// FindingKind identifies the deterministic check that produced a finding.
type FindingKind string

const (
	FindingYTDMismatch  FindingKind = "ytd_mismatch"
	FindingScaleOutlier FindingKind = "scale_outlier"
)

// ReconciliationFinding records the outcome of a deterministic cross-check,
// linking back to the facts that produced it.
type ReconciliationFinding struct {
	ID            int64       `json:"id"`
	CompanyID     int64       `json:"company_id"`
	Kind          FindingKind `json:"kind"`
	FactID        int64       `json:"fact_id"` // the excluded candidate
	DocumentID    string      `json:"document_id"`
	PeriodLabel   string      `json:"period_label"`
	LineItem      string      `json:"line_item"`
	ObservedValue float64     `json:"observed_value"`
	ExpectedValue float64     `json:"expected_value,omitempty"` // derived comparison value, when applicable
	Detail        string      `json:"detail,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}
