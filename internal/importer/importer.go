// Package importer runs batches of policy documents through OCR, extraction,
// scoring and reconciliation, holds them for review, and commits them to the
// store with per-item failure isolation.
package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/extract"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/ocr"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/reconcile"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/resilience"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/scorer"
)

// Store is the persistence collaborator used by the orchestrator.
type Store interface {
	reconcile.Lookup
	CreateClient(ctx context.Context, c *model.Client) error
	CreateInsurer(ctx context.Context, i *model.Insurer) error
	CreateBranch(ctx context.Context, b *model.Branch) error
	CreatePolicy(ctx context.Context, p *model.Policy, items []model.PolicyItem) error
}

const (
	defaultWorkers       = 4
	defaultCommitTimeout = 30 * time.Second
	defaultLookupTimeout = 10 * time.Second
	defaultOCRTimeout    = 2 * time.Minute
	defaultNameLimit     = 10

	// finished batches stay queryable this long before eviction.
	batchRetention = time.Hour
)

// Orchestrator owns the in-memory import batches. It is safe for concurrent
// use.
type Orchestrator struct {
	store     Store
	ocr       ocr.Extractor
	extractor *extract.Extractor
	scorer    *scorer.Scorer
	engine    *reconcile.Engine
	metrics   *Metrics

	retry         resilience.RetryConfig
	lookupRetry   resilience.RetryConfig
	breaker       *resilience.CircuitBreaker
	limiter       *rate.Limiter
	ocrTimeout    time.Duration
	commitTimeout time.Duration
	lookupTimeout time.Duration
	workers       int
	commitWorkers int
	nameLimit     int

	newID func() string

	mu      sync.RWMutex
	batches map[string]*batch
}

// New creates an Orchestrator. A nil m creates unregistered metrics.
func New(cfg *config.Config, st Store, recognizer ocr.Extractor, ex *extract.Extractor, m *Metrics) *Orchestrator {
	if m == nil {
		m = NewMetrics(nil)
	}

	retry, breakerCfg := resilience.FromOCRConfig(cfg.OCR)
	retry.OnRetry = resilience.RetryLogger("importer", "ocr")
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("importer: ocr circuit state changed",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		m.observeCircuit(from, to)
	}

	limit := rate.Inf
	if cfg.OCR.RatePerSec > 0 {
		limit = rate.Limit(cfg.OCR.RatePerSec)
	}
	burst := max(cfg.OCR.Burst, 1)

	lookupRetry := resilience.FromImportConfig(cfg.Import)
	logRetry := resilience.RetryLogger("importer", "catalog lookup")
	lookupRetry.OnRetry = func(attempt int, err error) {
		m.LookupRetries.Inc()
		logRetry(attempt, err)
	}

	return &Orchestrator{
		store:         st,
		ocr:           recognizer,
		extractor:     ex,
		scorer:        scorer.New(cfg.Scoring),
		engine:        reconcile.NewEngine(cfg.Reconcile),
		metrics:       m,
		retry:         retry,
		lookupRetry:   lookupRetry,
		breaker:       resilience.NewCircuitBreaker(breakerCfg),
		limiter:       rate.NewLimiter(limit, burst),
		ocrTimeout:    secondsOr(cfg.OCR.TimeoutSecs, defaultOCRTimeout),
		commitTimeout: secondsOr(cfg.Import.CommitTimeoutSecs, defaultCommitTimeout),
		lookupTimeout: secondsOr(cfg.Import.LookupTimeoutSecs, defaultLookupTimeout),
		workers:       positiveOr(cfg.Import.MaxConcurrentDocuments, defaultWorkers),
		commitWorkers: positiveOr(cfg.Import.MaxConcurrentCommits, defaultWorkers),
		nameLimit:     positiveOr(cfg.Reconcile.MaxCandidates, defaultNameLimit),
		newID:         func() string { return uuid.New().String() },
		batches:       make(map[string]*batch),
	}
}

// StartBatch registers docs as a new batch and processes them in the
// background. Processing outlives ctx; use CancelBatch to stop it.
func (o *Orchestrator) StartBatch(ctx context.Context, docs []Document) (string, error) {
	if len(docs) == 0 {
		return "", ErrEmptyBatch
	}
	docs = append([]Document(nil), docs...)
	for i := range docs {
		if len(docs[i].Content) == 0 {
			return "", eris.Wrapf(ErrEmptyDocument, "document %d (%s)", i, docs[i].Name)
		}
		if docs[i].Name == "" {
			docs[i].Name = fmt.Sprintf("document-%d", i+1)
		}
	}

	b := newBatch(o.newID(), docs, o.newID)
	bctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel

	o.mu.Lock()
	o.evictLocked(time.Now())
	o.batches[b.id] = b
	o.metrics.ActiveBatches.Set(float64(len(o.batches)))
	o.mu.Unlock()

	zap.L().Info("importer: batch started",
		zap.String("batch_id", b.id),
		zap.Int("documents", len(docs)),
	)

	go func() {
		defer cancel()
		o.process(bctx, b)
	}()

	return b.id, nil
}

// Wait blocks until the batch has finished processing or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, batchID string) error {
	b, err := o.batch(batchID)
	if err != nil {
		return err
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetBatchStatus returns a snapshot of the batch and its items in
// submission order.
func (o *Orchestrator) GetBatchStatus(batchID string) (BatchStatus, error) {
	b, err := o.batch(batchID)
	if err != nil {
		return BatchStatus{}, err
	}
	return b.status(), nil
}

// CancelBatch stops a batch. Before commit nothing has been persisted and
// the batch is discarded. During commit, items not yet attempted fail as
// cancelled while committed items stay committed. A finished batch is
// simply discarded.
func (o *Orchestrator) CancelBatch(batchID string) error {
	b, err := o.batch(batchID)
	if err != nil {
		return err
	}
	log := zap.L().With(zap.String("batch_id", batchID))

	b.mu.Lock()
	committing := b.state == StateCommitting
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if committing {
		log.Info("importer: commit cancellation requested")
		return nil
	}

	<-b.done
	if b.transition(StateCancelled, "cancelled by user", StateProcessing, StateReady) {
		b.failOpen(newItemError(KindCancelled, "batch cancelled before commit", nil))
		log.Info("importer: batch cancelled")
	} else if b.current() == StateCommitting {
		// A commit started while processing was being stopped.
		return o.CancelBatch(batchID)
	}

	o.mu.Lock()
	delete(o.batches, batchID)
	o.metrics.ActiveBatches.Set(float64(len(o.batches)))
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) batch(id string) (*batch, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	b, ok := o.batches[id]
	if !ok {
		return nil, eris.Wrapf(ErrBatchNotFound, "batch %s", id)
	}
	return b, nil
}

// evictLocked drops batches that finished more than batchRetention ago.
// Callers hold o.mu.
func (o *Orchestrator) evictLocked(now time.Time) {
	for id, b := range o.batches {
		b.mu.Lock()
		expired := !b.finished.IsZero() && now.Sub(b.finished) > batchRetention
		b.mu.Unlock()
		if expired {
			delete(o.batches, id)
		}
	}
}

func secondsOr(secs int, def time.Duration) time.Duration {
	if secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

func positiveOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
