package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/reconcile"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/store"
)

// CommitBatch persists every reviewable item of the batch. Items are
// committed independently: a failure is classified and recorded on its item
// and never stops the others. New clients, insurers and branches shared by
// several items are created once. Cancelling ctx, or the batch, fails the
// items not yet attempted and keeps the ones already committed. The returned
// slice has one result per item in submission order; the error is reserved
// for batch-level problems.
func (o *Orchestrator) CommitBatch(ctx context.Context, batchID string) ([]ItemResult, error) {
	b, err := o.batch(batchID)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.mu.Lock()
	switch {
	case b.state == StateProcessing:
		b.mu.Unlock()
		return nil, ErrBatchNotReady
	case !b.state.open():
		state := b.state
		b.mu.Unlock()
		return nil, eris.Wrapf(ErrBatchClosed, "batch %s is %s", batchID, state)
	}
	b.setStateLocked(StateCommitting, "")
	b.cancel = cancel
	n := len(b.items)
	b.mu.Unlock()

	log := zap.L().With(zap.String("batch_id", batchID))
	log.Info("importer: commit started", zap.Int("items", n))

	idm := newIdentityMap()
	results := make([]ItemResult, n)

	var g errgroup.Group
	g.SetLimit(o.commitWorkers)
	for i := range n {
		if cctx.Err() != nil {
			results[i] = o.cancelItem(b, i, cctx.Err())
			continue
		}
		g.Go(func() error {
			results[i] = o.commitItem(cctx, b, i, idm)
			return nil
		})
	}
	_ = g.Wait()

	committed := 0
	for _, r := range results {
		if r.Status == StatusCommitted {
			committed++
		}
	}
	summary := fmt.Sprintf("%d committed, %d failed", committed, n-committed)
	if cctx.Err() != nil && ctx.Err() == nil {
		summary += " (cancelled)"
	}
	b.setState(StateCommitted, summary)

	log.Info("importer: commit finished",
		zap.Int("committed", committed),
		zap.Int("failed", n-committed),
		zap.Int("entities_created", idm.created()),
	)
	return results, nil
}

// commitItem persists one item. It never returns an error; failures are
// recorded on the item and in the result.
func (o *Orchestrator) commitItem(ctx context.Context, b *batch, i int, idm *identityMap) ItemResult {
	it := b.snapshot(i)
	if it.Status.Terminal() {
		return ItemResult{ItemID: it.ID, Source: it.Source, Status: it.Status, PolicyID: it.PolicyID, Error: it.Error}
	}
	if err := ctx.Err(); err != nil {
		return o.cancelItem(b, i, err)
	}

	b.update(i, func(it *Item) { it.Status = StatusCommitting })
	log := zap.L().With(zap.String("batch_id", b.id), zap.String("item_id", it.ID))

	ictx, cancel := context.WithTimeout(ctx, o.commitTimeout)
	defer cancel()

	res := ItemResult{ItemID: it.ID, Source: it.Source}

	// Earlier items may have created entities since review; resolve again.
	ev := o.evaluate(ictx, it.Record, it.Pins)
	if ev.err != nil {
		return o.finish(b, i, res, ev, o.cancelled(ctx, ev.err))
	}

	if missing := missingEntities(ev.result); len(missing) > 0 {
		ierr := newItemError(KindIncompleteRecord, "cannot identify "+strings.Join(missing, ", "), nil)
		if it.Error != nil && it.Error.Kind == KindOCRFailure {
			ierr = it.Error
		}
		return o.finish(b, i, res, ev, ierr)
	}

	var notes []*ItemError
	resolve := func(entity string, er reconcile.EntityResolution, key string, create func(context.Context) (string, error)) (string, *ItemError) {
		if er.Resolution == reconcile.ResolutionMatched {
			return er.ID, nil
		}
		id, reused, err := idm.resolve(ictx, entity+":"+key, create)
		if err != nil {
			return "", o.cancelled(ctx, persistenceError("create "+entity, err))
		}
		if reused {
			notes = append(notes, &ItemError{Kind: KindDuplicateInBatch, Field: entity, Reason: "reused " + entity + " created earlier in this batch"})
			o.metrics.EntitiesCreated.WithLabelValues(entity, "reused").Inc()
			log.Debug("importer: reused batch entity", zap.String("entity", entity), zap.String("id", id))
		} else {
			res.Created = append(res.Created, entity)
			o.metrics.EntitiesCreated.WithLabelValues(entity, "created").Inc()
		}
		return id, nil
	}

	var ierr *ItemError
	if res.ClientID, ierr = resolve("client", ev.result.Client, ev.result.ClientKey, func(ctx context.Context) (string, error) {
		return o.createClient(ctx, ev.record)
	}); ierr != nil {
		return o.finish(b, i, res, ev, ierr, notes...)
	}
	if res.InsurerID, ierr = resolve("insurer", ev.result.Insurer, ev.result.InsurerCode, func(ctx context.Context) (string, error) {
		return o.createInsurer(ctx, ev.result.InsurerCode, ev.record.Policy.InsurerName)
	}); ierr != nil {
		return o.finish(b, i, res, ev, ierr, notes...)
	}
	if res.BranchID, ierr = resolve("branch", ev.result.Branch, ev.result.BranchCode, func(ctx context.Context) (string, error) {
		return o.createBranch(ctx, ev.result.BranchCode, ev.record.Policy.Branch)
	}); ierr != nil {
		return o.finish(b, i, res, ev, ierr, notes...)
	}

	rec := ev.record
	policy := &model.Policy{
		ClientID:     res.ClientID,
		InsurerID:    res.InsurerID,
		BranchID:     res.BranchID,
		Number:       rec.Policy.Number,
		DocumentType: rec.DocumentType,
		StartDate:    rec.Policy.StartDate,
		EndDate:      rec.Policy.EndDate,
		NetPremium:   rec.Values.NetPremium,
		TotalPremium: rec.Values.TotalPremium,
		Confidence:   ev.confidence.Value,
		SourceName:   it.Source,
	}
	if err := o.store.CreatePolicy(ictx, policy, policyItems(rec)); err != nil {
		return o.finish(b, i, res, ev, o.cancelled(ctx, persistenceError("create policy", err)), notes...)
	}

	res.PolicyID = policy.ID
	return o.finish(b, i, res, ev, nil, notes...)
}

// finish records the outcome of a commit attempt on the item.
func (o *Orchestrator) finish(b *batch, i int, res ItemResult, ev evaluation, ierr *ItemError, notes ...*ItemError) ItemResult {
	res.Status = StatusCommitted
	if ierr != nil {
		res.Status = StatusFailed
		res.Error = ierr
	}

	b.update(i, func(it *Item) {
		it.Status = res.Status
		it.Error = ierr
		it.PolicyID = res.PolicyID
		it.Record = ev.record
		it.Reconciliation = ev.result
		it.Confidence = ev.confidence
		for _, n := range notes {
			it.note(n)
		}
	})

	kind := ""
	if ierr != nil {
		kind = string(ierr.Kind)
		zap.L().Warn("importer: item commit failed",
			zap.String("batch_id", b.id),
			zap.String("item_id", res.ItemID),
			zap.String("kind", kind),
			zap.String("reason", ierr.Reason),
		)
	}
	o.metrics.CommitsTotal.WithLabelValues(string(res.Status), kind).Inc()
	return res
}

func (o *Orchestrator) cancelItem(b *batch, i int, cause error) ItemResult {
	ierr := newItemError(KindCancelled, "commit cancelled before this item was attempted", cause)
	var res ItemResult
	b.update(i, func(it *Item) {
		it.Status = StatusFailed
		it.Error = ierr
		res = ItemResult{ItemID: it.ID, Source: it.Source, Status: StatusFailed, Error: ierr}
	})
	o.metrics.CommitsTotal.WithLabelValues(string(StatusFailed), string(KindCancelled)).Inc()
	return res
}

// cancelled retags a failure caused by cancelling the commit.
func (o *Orchestrator) cancelled(ctx context.Context, ierr *ItemError) *ItemError {
	if ctx.Err() != nil && errors.Is(ierr.Err, context.Canceled) {
		return newItemError(KindCancelled, "commit cancelled while this item was in flight", ierr.Err)
	}
	return ierr
}

// missingEntities lists the entities the record gives nothing to resolve with.
func missingEntities(r reconcile.Result) []string {
	var missing []string
	if r.Client.Resolution == reconcile.ResolutionMissing {
		missing = append(missing, "client")
	}
	if r.Insurer.Resolution == reconcile.ResolutionMissing {
		missing = append(missing, "insurer")
	}
	if r.Branch.Resolution == reconcile.ResolutionMissing {
		missing = append(missing, "branch")
	}
	return missing
}

func (o *Orchestrator) createClient(ctx context.Context, rec model.ExtractedPolicyRecord) (string, error) {
	c := &model.Client{
		Name:       rec.Client.Name,
		DocumentID: rec.Client.DocumentID,
		Email:      rec.Client.Email,
		Phone:      rec.Client.Phone,
		Address:    rec.Client.Address,
	}
	if c.Name == "" {
		c.Name = c.DocumentID
	}
	err := o.store.CreateClient(ctx, c)
	if errors.Is(err, store.ErrConflict) && c.DocumentID != "" {
		// Created by someone else since the snapshot was taken.
		if existing, ferr := o.store.FindClientByIdentifier(ctx, c.DocumentID); ferr == nil && existing != nil {
			return existing.ID, nil
		}
	}
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (o *Orchestrator) createInsurer(ctx context.Context, code, name string) (string, error) {
	i := &model.Insurer{Code: code, Name: displayName(name, code)}
	err := o.store.CreateInsurer(ctx, i)
	if errors.Is(err, store.ErrConflict) {
		if existing, ferr := o.store.FindInsurerByCode(ctx, code); ferr == nil && existing != nil {
			return existing.ID, nil
		}
	}
	if err != nil {
		return "", err
	}
	return i.ID, nil
}

func (o *Orchestrator) createBranch(ctx context.Context, code, name string) (string, error) {
	br := &model.Branch{Code: code, Name: displayName(name, code)}
	err := o.store.CreateBranch(ctx, br)
	if errors.Is(err, store.ErrConflict) {
		if existing, ferr := o.store.FindBranchByCode(ctx, code); ferr == nil && existing != nil {
			return existing.ID, nil
		}
	}
	if err != nil {
		return "", err
	}
	return br.ID, nil
}

func displayName(name, code string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return code
}

// policyItems turns the insured object into the policy's item lines.
func policyItems(rec model.ExtractedPolicyRecord) []model.PolicyItem {
	if rec.InsuredObject.Description == "" {
		return nil
	}
	return []model.PolicyItem{{Position: 0, Description: rec.InsuredObject.Description}}
}
