package model

import "time"

// Company identifies a reporting entity. Companies are created on first
// reference during normalization and never deleted.
type Company struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	RegistryID string    `json:"registry_id,omitempty"` // external registry id, when known
	CreatedAt  time.Time `json:"created_at"`
}

// Period is a canonical reporting period. Immutable once created.
type Period struct {
	ID        int64      `json:"id"`
	Label     string     `json:"label"` // canonical, e.g. "2025-02", "2025-Q1", "2025"
	Type      PeriodType `json:"type"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
}

// LineItem is a canonical financial statement line item (e.g. "Revenue").
type LineItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Document records one uploaded source file and owns the raw and canonical
// facts extracted from it.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"` // sha256 of file bytes
	UploadedAt  time.Time `json:"uploaded_at"`
}

// RawExtractedFact is the append-only provenance record of a row exactly as
// extracted, kept regardless of whether the row later normalized cleanly.
type RawExtractedFact struct {
	ID           int64     `json:"id"`
	DocumentID   string    `json:"document_id"`
	LineItemText string    `json:"line_item_text"`
	Scenario     string    `json:"scenario,omitempty"`
	ValueText    string    `json:"value_text"`
	PeriodLabel  string    `json:"period_label"`
	SourcePage   int       `json:"source_page,omitempty"`
	SourceTable  int       `json:"source_table,omitempty"`
	SourceRow    int       `json:"source_row,omitempty"`
	SourceCol    int       `json:"source_col,omitempty"`
	Confidence   float64   `json:"confidence"`
	CreatedAt    time.Time `json:"created_at"`
}
