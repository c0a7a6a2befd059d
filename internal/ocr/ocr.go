// Package ocr adapts the OCR collaborators that turn a policy document into
// recognized text.
package ocr

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/model"
)

// ErrEmptyDocument is returned for a zero-length document.
var ErrEmptyDocument = eris.New("ocr: empty document")

// Result is the recognized text of one document. DocumentType is empty when
// the provider does not classify documents.
type Result struct {
	Text         string
	DocumentType model.DocumentType
}

// Extractor recognizes the text of a document. Any failure is an error; a
// retryable one wraps resilience.TransientError.
type Extractor interface {
	ExtractText(ctx context.Context, doc []byte) (Result, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		m := NewMistralOCR(cfg.MistralKey, cfg.MistralModel)
		if cfg.MistralBaseURL != "" {
			m.endpoint = cfg.MistralBaseURL + "/ocr"
		}
		if cfg.TimeoutSecs > 0 {
			m.client.Timeout = time.Duration(cfg.TimeoutSecs) * time.Second
		}
		return m, nil
	case "text":
		return PlainText{}, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
