package ocr

import (
	"context"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// PlainText passes through documents that were recognized upstream.
type PlainText struct{}

// ExtractText returns doc unchanged when it is valid UTF-8.
func (PlainText) ExtractText(_ context.Context, doc []byte) (Result, error) {
	if len(doc) == 0 {
		return Result{}, ErrEmptyDocument
	}
	if !utf8.Valid(doc) {
		return Result{}, eris.New("ocr: plain text document is not valid UTF-8")
	}
	return Result{Text: string(doc)}, nil
}
