// Package ingest orchestrates the batch pipeline: raw rows are mapped,
// normalized, and persisted, then best-fact resolution, derived metrics, and
// question generation run for every company the batch touched.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/finfacts-cli/internal/config"
	"github.com/sells-group/finfacts-cli/internal/mapper"
	"github.com/sells-group/finfacts-cli/internal/metrics"
	"github.com/sells-group/finfacts-cli/internal/model"
	"github.com/sells-group/finfacts-cli/internal/normalize"
	"github.com/sells-group/finfacts-cli/internal/questions"
	"github.com/sells-group/finfacts-cli/internal/reconcile"
	"github.com/sells-group/finfacts-cli/internal/registry"
	"github.com/sells-group/finfacts-cli/internal/resilience"
	"github.com/sells-group/finfacts-cli/internal/store"
)

// Service runs batches through the full pipeline. Mapping and normalization
// fan out across workers; persistence is serialized per company so concurrent
// batches for different companies never contend.
type Service struct {
	store      store.Store
	mapper     *mapper.Mapper
	normalizer *normalize.Normalizer
	engine     *questions.Engine

	ingestCfg   config.IngestConfig
	resolveOpts reconcile.Options
	retryCfg    resilience.RetryConfig
	log         *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-company write locks
}

// New wires a Service from the loaded registries and store.
func New(st store.Store, lineItems *registry.LineItemRegistry, periods *registry.PeriodRegistry, templates *registry.TemplateRegistry, cfg *config.Config) *Service {
	return &Service{
		store:  st,
		mapper: mapper.New(lineItems),
		normalizer: normalize.New(periods, lineItems, st, normalize.Options{
			BaseCurrency: cfg.Ingest.BaseCurrency,
			KPIMinValue:  cfg.Ingest.KPIMinValue,
		}),
		engine:    questions.New(templates),
		ingestCfg: cfg.Ingest,
		resolveOpts: reconcile.Options{
			BandLowRatio:    cfg.Reconcile.BandLowRatio,
			BandHighRatio:   cfg.Reconcile.BandHighRatio,
			YTDAbsTolerance: cfg.Reconcile.YTDAbsTolerance,
			YTDRelTolerance: cfg.Reconcile.YTDRelTolerance,
		},
		retryCfg: resilience.DefaultRetryConfig(),
		log:      zap.L().With(zap.String("component", "ingest")),
		locks:    make(map[string]*sync.Mutex),
	}
}

// BatchResult summarizes one batch. Persisted + Rejected always equals the
// number of input rows; no row is silently dropped.
type BatchResult struct {
	DocumentID string                        `json:"document_id"`
	Inserted   int                           `json:"inserted"`
	Duplicates int                           `json:"duplicates"`
	Updated    int                           `json:"updated"`
	Rejected   map[model.RejectionReason]int `json:"rejected"`
	Companies  []string                      `json:"companies"`
	Elapsed    time.Duration                 `json:"elapsed"`
}

func (r *BatchResult) persisted() int { return r.Inserted + r.Duplicates + r.Updated }

// rowOutcome is the terminal state of one input row.
type rowOutcome struct {
	fact      *model.NormalizedFact
	rejection *model.FactRejection
}

// IngestBatch runs rows extracted from doc through the pipeline. The document
// is registered by content hash first, so re-submitting the same file reuses
// the existing document and the hash-keyed fact upsert makes the whole batch
// idempotent. When a batch-fatal error strikes after persistence has begun,
// the partially filled result is returned alongside the error so the caller
// can still report the work completed before the failure.
func (s *Service) IngestBatch(ctx context.Context, doc *model.Document, rows []model.RawRow) (*BatchResult, error) {
	start := time.Now()
	if s.ingestCfg.BatchTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.ingestCfg.BatchTimeoutSecs)*time.Second)
		defer cancel()
	}

	existing, err := s.store.GetDocumentByHash(ctx, doc.ContentHash)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: check document")
	}
	if existing != nil {
		doc.ID = existing.ID
		doc.UploadedAt = existing.UploadedAt
		s.log.Info("document already registered, re-ingesting",
			zap.String("document_id", doc.ID), zap.String("filename", doc.Filename))
	} else if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, eris.Wrap(err, "ingest: create document")
	}

	if err := s.store.InsertRawFacts(ctx, doc.ID, rows); err != nil {
		return nil, eris.Wrap(err, "ingest: record raw facts")
	}

	outcomes, err := s.normalizeAll(ctx, doc.ID, rows)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		DocumentID: doc.ID,
		Rejected:   make(map[model.RejectionReason]int),
	}

	byCompany := make(map[string][]*model.NormalizedFact)
	for _, o := range outcomes {
		switch {
		case o.rejection != nil:
			o.rejection.DocumentID = doc.ID
			if err := s.store.InsertRejection(ctx, o.rejection); err != nil {
				result.Elapsed = time.Since(start)
				return result, eris.Wrap(err, "ingest: record rejection")
			}
			result.Rejected[o.rejection.Reason]++
		case o.fact != nil:
			byCompany[o.fact.CompanyName] = append(byCompany[o.fact.CompanyName], o.fact)
		}
	}

	for company, facts := range byCompany {
		s.persistCompany(ctx, company, facts, result)
		result.Companies = append(result.Companies, company)
	}

	for _, company := range result.Companies {
		if err := s.ResolveCompany(ctx, company); err != nil {
			result.Elapsed = time.Since(start)
			return result, eris.Wrapf(err, "ingest: resolve %s", company)
		}
	}

	result.Elapsed = time.Since(start)
	s.log.Info("batch complete",
		zap.String("document_id", doc.ID),
		zap.Int("rows", len(rows)),
		zap.Int("inserted", result.Inserted),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("updated", result.Updated),
		zap.Int("rejected", len(rows)-result.persisted()),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// normalizeAll maps and normalizes rows concurrently. Outcome order matches
// the input row order.
func (s *Service) normalizeAll(ctx context.Context, documentID string, rows []model.RawRow) ([]rowOutcome, error) {
	outcomes := make([]rowOutcome, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	limit := s.ingestCfg.MaxParallelRows
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, row := range rows {
		g.Go(func() error {
			mapped, rej := s.mapper.Map(row)
			if rej != nil {
				outcomes[i] = rowOutcome{rejection: rej}
				return nil
			}
			fact, rej, err := s.normalizer.Normalize(gctx, mapped, documentID)
			if err != nil {
				return err
			}
			if rej != nil {
				outcomes[i] = rowOutcome{rejection: rej}
				return nil
			}
			outcomes[i] = rowOutcome{fact: fact}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ingest: normalize batch")
	}
	return outcomes, nil
}

// persistCompany upserts facts for one company under its write lock. Upsert
// failures that survive retries become persistence_conflict rejections rather
// than failing the batch.
func (s *Service) persistCompany(ctx context.Context, company string, facts []*model.NormalizedFact, result *BatchResult) {
	lock := s.companyLock(company)
	lock.Lock()
	defer lock.Unlock()

	for _, f := range facts {
		var outcome store.UpsertOutcome
		err := resilience.Do(ctx, s.withRetryLog("upsert_fact"), func(ctx context.Context) error {
			var err error
			outcome, _, err = s.store.UpsertFact(ctx, f)
			return err
		})
		if err != nil {
			s.log.Warn("fact upsert failed",
				zap.String("company", company),
				zap.String("line_item", f.LineItem),
				zap.String("period", f.PeriodLabel),
				zap.Error(err))
			rej := &model.FactRejection{
				DocumentID:   f.DocumentID,
				CompanyName:  f.CompanyName,
				LineItemText: f.LineItem,
				PeriodLabel:  f.PeriodLabel,
				ValueText:    "",
				Reason:       model.ReasonPersistenceConflict,
				Detail:       eris.ToString(err, false),
				SourceRow:    f.SourceRow,
			}
			if insErr := s.store.InsertRejection(ctx, rej); insErr != nil {
				s.log.Error("could not record persistence conflict", zap.Error(insErr))
			}
			result.Rejected[model.ReasonPersistenceConflict]++
			continue
		}
		switch outcome {
		case store.OutcomeInserted:
			result.Inserted++
		case store.OutcomeDuplicate:
			result.Duplicates++
		case store.OutcomeUpdated:
			result.Updated++
		}
	}
}

// ResolveCompany runs best-fact resolution, derived metrics, and question
// generation for one company and replaces the stored outputs. Safe to call on
// its own (the reconcile command does) or after a batch.
func (s *Service) ResolveCompany(ctx context.Context, companyName string) error {
	company, err := s.store.GetCompanyByName(ctx, companyName)
	if err != nil {
		return eris.Wrapf(err, "ingest: company %s", companyName)
	}

	facts, err := s.store.ListFacts(ctx, company.ID)
	if err != nil {
		return eris.Wrap(err, "ingest: list facts")
	}

	res := reconcile.Resolve(facts, s.resolveOpts)
	if err := s.store.ReplaceFindings(ctx, company.ID, res.Findings); err != nil {
		return eris.Wrap(err, "ingest: store findings")
	}

	derived := metrics.Compute(res.Best)
	if err := s.store.UpsertMetrics(ctx, derived); err != nil {
		return eris.Wrap(err, "ingest: store metrics")
	}

	qs := s.engine.Evaluate(derived)
	if err := s.store.ReplaceQuestions(ctx, company.ID, qs); err != nil {
		return eris.Wrap(err, "ingest: store questions")
	}

	s.log.Info("company resolved",
		zap.String("company", companyName),
		zap.Int("facts", len(facts)),
		zap.Int("best", len(res.Best)),
		zap.Int("excluded", len(res.Excluded)),
		zap.Int("metrics", len(derived)),
		zap.Int("questions", len(qs)))
	return nil
}

// BestFacts returns the current winning facts for a company without writing
// anything, for read-only queries.
func (s *Service) BestFacts(ctx context.Context, companyName string) ([]model.CanonicalFact, error) {
	company, err := s.store.GetCompanyByName(ctx, companyName)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: company %s", companyName)
	}
	facts, err := s.store.ListFacts(ctx, company.ID)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list facts")
	}
	res := reconcile.Resolve(facts, s.resolveOpts)
	return res.Best, nil
}

func (s *Service) companyLock(company string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[company]
	if !ok {
		l = &sync.Mutex{}
		s.locks[company] = l
	}
	return l
}

func (s *Service) withRetryLog(operation string) resilience.RetryConfig {
	cfg := s.retryCfg
	cfg.OnRetry = resilience.RetryLogger("ingest", operation)
	return cfg
}
