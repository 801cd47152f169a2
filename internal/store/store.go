// Package store persists canonical facts and everything derived from them.
// Two backends implement the same interface: SQLite for local use and
// Postgres for shared deployments.
package store

import (
	"context"

	"github.com/sells-group/finfacts-cli/internal/model"
)

// UpsertOutcome describes what a fact upsert did.
type UpsertOutcome int

const (
	// OutcomeInserted means a new canonical fact row was created.
	OutcomeInserted UpsertOutcome = iota
	// OutcomeDuplicate means an identical fact already existed (idempotent
	// re-ingestion); nothing was written.
	OutcomeDuplicate
	// OutcomeUpdated means the natural key existed with a different value and
	// last-writer-wins replaced it. The fact stays visible to reconciliation.
	OutcomeUpdated
)

// String returns the outcome name for logs and batch counts.
func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Store defines the persistence interface for the fact pipeline.
type Store interface {
	// Reference data. Get-or-create is idempotent; companies and periods are
	// never deleted once created.
	GetOrCreateCompany(ctx context.Context, name string) (*model.Company, error)
	GetCompanyByName(ctx context.Context, name string) (*model.Company, error)
	GetOrCreatePeriod(ctx context.Context, p model.Period) (*model.Period, error)
	GetOrCreateLineItem(ctx context.Context, name string) (*model.LineItem, error)

	// Documents
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocumentByHash(ctx context.Context, contentHash string) (*model.Document, error)

	// Raw provenance (append-only)
	InsertRawFacts(ctx context.Context, documentID string, rows []model.RawRow) error
	ListRawFacts(ctx context.Context, documentID string) ([]model.RawExtractedFact, error)

	// Canonical facts
	UpsertFact(ctx context.Context, f *model.NormalizedFact) (UpsertOutcome, int64, error)
	ListFacts(ctx context.Context, companyID int64) ([]model.CanonicalFact, error)

	// Rejections (append-only)
	InsertRejection(ctx context.Context, r *model.FactRejection) error
	ListRejections(ctx context.Context, documentID string, limit int) ([]model.FactRejection, error)

	// Reconciliation findings (replaced wholesale per resolution pass)
	ReplaceFindings(ctx context.Context, companyID int64, findings []model.ReconciliationFinding) error
	ListFindings(ctx context.Context, companyID int64) ([]model.ReconciliationFinding, error)

	// Derived metrics (upsert keyed by company/period/metric name)
	UpsertMetrics(ctx context.Context, metrics []model.DerivedMetric) error
	ListMetrics(ctx context.Context, companyID int64) ([]model.DerivedMetric, error)

	// Questions (replaced wholesale per resolution pass)
	ReplaceQuestions(ctx context.Context, companyID int64, questions []model.Question) error
	ListQuestions(ctx context.Context, companyID int64) ([]model.Question, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
