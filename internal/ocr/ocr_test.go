package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/resilience"
)

var samplePDF = []byte("%PDF-1.4 apolice de seguro")

func TestNewExtractor(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: "local", PdfToTextPath: "/usr/bin/pdftotext"})
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)

	ext, err = NewExtractor(config.OCRConfig{})
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)

	ext, err = NewExtractor(config.OCRConfig{Provider: "text"})
	require.NoError(t, err)
	assert.IsType(t, PlainText{}, ext)

	_, err = NewExtractor(config.OCRConfig{Provider: "mistral"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral provider requires mistral_api_key")

	_, err = NewExtractor(config.OCRConfig{Provider: "tesseract"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "tesseract"`)
}

func TestNewExtractor_MistralSettings(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{
		Provider:       "mistral",
		MistralKey:     "k",
		MistralModel:   "custom-model",
		MistralBaseURL: "http://localhost:9999/v1",
		TimeoutSecs:    7,
	})
	require.NoError(t, err)
	m, ok := ext.(*MistralOCR)
	require.True(t, ok)
	assert.Equal(t, "custom-model", m.model)
	assert.Equal(t, "http://localhost:9999/v1/ocr", m.endpoint)
	assert.Equal(t, "7s", m.client.Timeout.String())
}

func TestMistralOCR_Defaults(t *testing.T) {
	m := NewMistralOCR("key", "")
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
}

func newTestMistral(url string) *MistralOCR {
	return &MistralOCR{apiKey: "test-key", model: "test-model", endpoint: url, client: &http.Client{}}
}

func TestMistralOCR_ExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req mistralOCRRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "document_url", req.Document.Type)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mistralOCRResponse{Pages: []mistralOCRPage{ //nolint:errcheck
			{Index: 0, Markdown: "SEGURADO: MARIA SOUZA"},
			{Index: 1, Markdown: "PRÊMIO TOTAL: R$ 1.325,70"},
		}})
	}))
	defer srv.Close()

	res, err := newTestMistral(srv.URL).ExtractText(context.Background(), samplePDF)
	require.NoError(t, err)
	assert.Equal(t, "SEGURADO: MARIA SOUZA\n\nPRÊMIO TOTAL: R$ 1.325,70", res.Text)
	assert.Empty(t, res.DocumentType)
}

func TestMistralOCR_TransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := newTestMistral(srv.URL).ExtractText(context.Background(), samplePDF)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	var te *resilience.TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
}

func TestMistralOCR_PermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	_, err := newTestMistral(srv.URL).ExtractText(context.Background(), samplePDF)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "mistral API returned 401")
}

func TestMistralOCR_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{invalid json`))
	}))
	defer srv.Close()

	_, err := newTestMistral(srv.URL).ExtractText(context.Background(), samplePDF)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal mistral response")
}

func TestMistralOCR_EmptyDocument(t *testing.T) {
	_, err := NewMistralOCR("k", "").ExtractText(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestDocumentPayload(t *testing.T) {
	pdf := documentPayload(samplePDF)
	assert.Equal(t, "document_url", pdf.Type)
	assert.Empty(t, pdf.ImageURL)

	png := documentPayload([]byte("\x89PNG\r\n\x1a\n0000"))
	assert.Equal(t, "image_url", png.Type)
	assert.Contains(t, png.ImageURL, "data:image/png;base64,")
	assert.Empty(t, png.DocumentURL)
}

func TestPdfToText_BinPath(t *testing.T) {
	assert.Equal(t, "pdftotext", NewPdfToText("").binPath)
	assert.Equal(t, "/custom/pdftotext", NewPdfToText("/custom/pdftotext").binPath)
}

func TestPdfToText_BinaryNotFound(t *testing.T) {
	_, err := NewPdfToText("/nonexistent/pdftotext").ExtractText(context.Background(), samplePDF)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestPdfToText_ReadsStdin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in")
	}
	fakeBin := filepath.Join(t.TempDir(), "pdftotext")
	require.NoError(t, os.WriteFile(fakeBin, []byte("#!/bin/sh\ncat\n"), 0o755))

	res, err := NewPdfToText(fakeBin).ExtractText(context.Background(), samplePDF)
	require.NoError(t, err)
	assert.Equal(t, string(samplePDF), res.Text)
}

func TestPdfToText_EmptyDocument(t *testing.T) {
	_, err := NewPdfToText("").ExtractText(context.Background(), []byte{})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestPlainText(t *testing.T) {
	res, err := PlainText{}.ExtractText(context.Background(), []byte("Apólice nº 123"))
	require.NoError(t, err)
	assert.Equal(t, "Apólice nº 123", res.Text)

	_, err = PlainText{}.ExtractText(context.Background(), []byte{0xff, 0xfe})
	require.Error(t, err)

	_, err = PlainText{}.ExtractText(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}
