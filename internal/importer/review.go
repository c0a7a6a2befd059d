package importer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// EditItem applies reviewer overrides to one item, then reconciles and
// scores it again. Keys are dotted record paths such as "client.name" or
// "values.total_premium", plus the pins "client.id", "insurer.id" and
// "branch.id". Invalid values are rejected with ErrInvalidOverride and leave
// the item unchanged.
func (o *Orchestrator) EditItem(ctx context.Context, batchID, itemID string, overrides map[string]string) (Item, error) {
	b, err := o.batch(batchID)
	if err != nil {
		return Item{}, err
	}

	b.mu.Lock()
	if !b.state.open() {
		state := b.state
		b.mu.Unlock()
		if state == StateProcessing {
			return Item{}, ErrBatchNotReady
		}
		return Item{}, eris.Wrapf(ErrBatchClosed, "batch %s is %s", batchID, state)
	}
	it, ok := b.item(itemID)
	if !ok {
		b.mu.Unlock()
		return Item{}, eris.Wrapf(ErrItemNotFound, "item %s", itemID)
	}
	if it.Status != StatusPending && it.Status != StatusEdited {
		b.mu.Unlock()
		return Item{}, eris.Wrapf(ErrItemFinal, "item %s is %s", itemID, it.Status)
	}
	rec, pins, prevErr := it.Record, it.Pins, it.Error
	b.mu.Unlock()

	if err := applyOverrides(&rec, &pins, o.extractor.Dictionary(), overrides); err != nil {
		return Item{}, err
	}

	ev := o.evaluate(ctx, rec, pins)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.state.open() {
		return Item{}, eris.Wrapf(ErrBatchClosed, "batch %s is %s", batchID, b.state)
	}
	// An OCR failure stays visible as a note once the reviewer has typed the
	// record in.
	if prevErr != nil && prevErr.Kind == KindOCRFailure {
		it.note(prevErr)
	}
	it.Pins = pins
	it.Status = StatusEdited
	it.UpdatedAt = time.Now().UTC()
	ev.apply(it)
	for _, ign := range ev.result.IgnoredPins {
		it.note(&ItemError{Kind: KindInvalidFieldValue, Field: "pin", Reason: "pinned id not found in catalog: " + ign})
	}

	zap.L().Info("importer: item edited",
		zap.String("batch_id", batchID),
		zap.String("item_id", itemID),
		zap.Int("fields", len(overrides)),
		zap.Int("confidence", it.Confidence.Value),
	)
	return it.clone(), nil
}
