package importer

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/ocr"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/reconcile"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/resilience"
)

// process runs every document of b through the pipeline with a bounded
// worker pool. Only an open OCR circuit aborts the batch; any other failure
// stays on its item.
func (o *Orchestrator) process(ctx context.Context, b *batch) {
	defer close(b.done)
	log := zap.L().With(zap.String("batch_id", b.id))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range b.docs {
		g.Go(func() error {
			return o.processItem(gctx, b, i)
		})
	}
	err := g.Wait()

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		reason := "OCR service unavailable: circuit breaker open"
		b.failOpen(newItemError(KindOCRFailure, reason, err))
		b.setState(StateAborted, reason)
		log.Error("importer: batch aborted", zap.Error(err))
	case ctx.Err() != nil:
		log.Info("importer: batch processing stopped", zap.Error(ctx.Err()))
	default:
		b.transition(StateReady, "", StateProcessing)
		log.Info("importer: batch ready for review",
			zap.Int("documents", len(b.docs)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// processItem recognizes, extracts, reconciles and scores one document. The
// returned error aborts the batch.
func (o *Orchestrator) processItem(ctx context.Context, b *batch, i int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := b.docs[i]
	log := zap.L().With(zap.String("batch_id", b.id), zap.String("document", doc.Name))

	res, err := o.recognize(ctx, doc.Content)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return err
		}
		if ctx.Err() != nil {
			o.metrics.DocumentsTotal.WithLabelValues("cancelled").Inc()
			return ctx.Err()
		}
		ierr := ocrError(err)
		log.Warn("importer: ocr failed", zap.Error(err))
		o.metrics.DocumentsTotal.WithLabelValues("ocr_failed").Inc()
		b.update(i, func(it *Item) {
			it.Status = StatusPending
			it.Error = ierr
			it.Confidence = o.scorer.Score(it.Record)
		})
		return nil
	}

	ext := o.extractor.Extract(res.Text)
	rec := ext.Record
	if res.DocumentType.Valid() {
		rec.DocumentType = res.DocumentType
	}

	var notes []*ItemError
	if len(ext.Anchors) == 0 && rec.Empty() {
		notes = append(notes, newItemError(KindNoExtractableFields, "no field labels found in the recognized text", nil))
		o.metrics.DocumentsTotal.WithLabelValues("empty").Inc()
	} else {
		o.metrics.DocumentsTotal.WithLabelValues("extracted").Inc()
	}
	for _, r := range ext.Rejected {
		notes = append(notes, &ItemError{
			Kind:   KindInvalidFieldValue,
			Field:  string(r.Field),
			Reason: r.Reason + ": " + r.Raw,
		})
	}

	ev := o.evaluate(ctx, rec, reconcile.Pins{})
	o.metrics.ConfidenceScore.Observe(float64(ev.confidence.Value))

	b.update(i, func(it *Item) {
		it.Status = StatusPending
		it.Rejected = ext.Rejected
		for _, n := range notes {
			it.note(n)
		}
		ev.apply(it)
	})
	log.Debug("importer: document extracted",
		zap.Int("anchors", len(ext.Anchors)),
		zap.Int("confidence", ev.confidence.Value),
		zap.String("client", string(ev.result.Client.Resolution)),
	)
	return nil
}

// recognize calls the OCR collaborator through the rate limiter, the circuit
// breaker and the retry policy, bounding each attempt by the OCR timeout.
func (o *Orchestrator) recognize(ctx context.Context, doc []byte) (ocr.Result, error) {
	start := time.Now()
	res, err := resilience.DoVal(ctx, o.retry, func(ctx context.Context) (ocr.Result, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return ocr.Result{}, eris.Wrap(err, "importer: ocr rate limit")
		}
		return resilience.ExecuteVal(ctx, o.breaker, func(ctx context.Context) (ocr.Result, error) {
			callCtx, cancel := context.WithTimeout(ctx, o.ocrTimeout)
			defer cancel()
			return o.ocr.ExtractText(callCtx, doc)
		})
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.OCRDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	failures, _ := o.breaker.Counters()
	o.metrics.OCRFailureStreak.Set(float64(failures))
	return res, err
}

// evaluation is the reconciliation and score of a record.
type evaluation struct {
	record     model.ExtractedPolicyRecord
	result     reconcile.Result
	confidence model.ConfidenceScore
	err        *ItemError
}

// evaluate reconciles rec against a fresh catalog snapshot and scores it. A
// matched client marks the record with the catalog id before scoring.
func (o *Orchestrator) evaluate(ctx context.Context, rec model.ExtractedPolicyRecord, pins reconcile.Pins) evaluation {
	ev := evaluation{record: rec}
	ev.record.Client.MatchedID = ""

	snap, err := o.loadSnapshot(ctx, rec, pins)
	if err != nil {
		ev.err = persistenceError("load catalog", err)
		ev.confidence = o.scorer.Score(ev.record)
		return ev
	}

	res, err := o.engine.Reconcile(rec, snap, pins)
	ev.result = res
	var amb *reconcile.AmbiguousMatchError
	if errors.As(err, &amb) {
		ev.err = ambiguousError(amb)
	}
	if res.Client.Resolution == reconcile.ResolutionMatched {
		ev.record.Client.MatchedID = res.Client.ID
	}
	ev.confidence = o.scorer.Score(ev.record)
	return ev
}

// loadSnapshot loads the catalog entries rec and pins could resolve to. Each
// attempt is bounded by the lookup timeout; transient store errors are
// retried.
func (o *Orchestrator) loadSnapshot(ctx context.Context, rec model.ExtractedPolicyRecord, pins reconcile.Pins) (reconcile.Snapshot, error) {
	var snap reconcile.Snapshot
	err := resilience.Do(ctx, o.lookupRetry, func(ctx context.Context) error {
		lctx, cancel := context.WithTimeout(ctx, o.lookupTimeout)
		defer cancel()
		var err error
		snap, err = reconcile.BuildSnapshot(lctx, o.store, rec, pins, o.nameLimit)
		return err
	})
	return snap, err
}

func (ev evaluation) apply(it *Item) {
	it.Record = ev.record
	it.Reconciliation = ev.result
	it.Confidence = ev.confidence
	it.Error = ev.err
}
