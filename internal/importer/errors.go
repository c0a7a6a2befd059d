package importer

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/reconcile"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/resilience"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/store"
)

// Batch-level errors. Item-level failures never surface through these.
var (
	ErrBatchNotFound   = eris.New("importer: batch not found")
	ErrItemNotFound    = eris.New("importer: item not found")
	ErrEmptyBatch      = eris.New("importer: batch has no documents")
	ErrEmptyDocument   = eris.New("importer: document has no content")
	ErrBatchNotReady   = eris.New("importer: batch is still processing")
	ErrBatchClosed     = eris.New("importer: batch is no longer open")
	ErrItemFinal       = eris.New("importer: item can no longer be edited")
	ErrInvalidOverride = eris.New("importer: invalid field override")
)

// Kind tags an item error for programmatic handling.
type Kind string

const (
	KindOCRFailure          Kind = "ocr_failure"
	KindNoExtractableFields Kind = "no_extractable_fields"
	KindInvalidFieldValue   Kind = "invalid_field_value"
	KindAmbiguousMatch      Kind = "ambiguous_match"
	KindPersistenceFailure  Kind = "persistence_failure"
	KindDuplicateInBatch    Kind = "duplicate_in_batch"
	KindIncompleteRecord    Kind = "incomplete_record"
	KindCancelled           Kind = "cancelled"
)

// Retryable reports whether trying the same item again may succeed without
// a reviewer changing it.
func (k Kind) Retryable() bool {
	return k == KindOCRFailure || k == KindPersistenceFailure || k == KindCancelled
}

// ItemError is the failure or note recorded on a batch item.
type ItemError struct {
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
	Field  string `json:"field,omitempty"`
	Err    error  `json:"-"`
}

func (e *ItemError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *ItemError) Unwrap() error { return e.Err }

func newItemError(kind Kind, reason string, err error) *ItemError {
	return &ItemError{Kind: kind, Reason: reason, Err: err}
}

// ocrError classifies a failed OCR call.
func ocrError(err error) *ItemError {
	switch {
	case resilience.IsTimeout(err):
		return newItemError(KindOCRFailure, "OCR call timed out", err)
	case resilience.IsTransient(err):
		return newItemError(KindOCRFailure, "OCR service unavailable: "+err.Error(), err)
	default:
		return newItemError(KindOCRFailure, "OCR rejected the document: "+err.Error(), err)
	}
}

// persistenceError classifies a failed store call.
func persistenceError(op string, err error) *ItemError {
	var reason string
	switch {
	case errors.Is(err, store.ErrConflict):
		reason = "constraint violation"
	case resilience.IsTimeout(err):
		reason = "timeout"
	case resilience.IsTransient(err):
		reason = "transient store error"
	default:
		reason = "store rejected write"
	}
	return newItemError(KindPersistenceFailure, fmt.Sprintf("%s: %s: %v", op, reason, err), err)
}

// ambiguousError reports the candidates a reviewer must choose from.
func ambiguousError(err *reconcile.AmbiguousMatchError) *ItemError {
	return &ItemError{
		Kind:   KindAmbiguousMatch,
		Reason: fmt.Sprintf("%s %q matches %d existing records; pin one with %s.id", err.Entity, err.Name, len(err.Candidates), err.Entity),
		Field:  err.Entity + ".id",
		Err:    err,
	}
}
