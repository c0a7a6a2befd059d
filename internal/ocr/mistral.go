package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/resilience"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
	maxErrorBody        = 512
)

// MistralOCR recognizes documents with the Mistral OCR API.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewMistralOCR creates a MistralOCR extractor. If model is empty, the default is used.
func NewMistralOCR(apiKey, model string) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	return &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{},
	}
}

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralOCRDocument `json:"document"`
}

type mistralOCRDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type mistralOCRResponse struct {
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractText sends doc as a base64 data URL and joins the recognized pages.
// 408, 429 and 5xx responses are transient.
func (m *MistralOCR) ExtractText(ctx context.Context, doc []byte) (Result, error) {
	if len(doc) == 0 {
		return Result{}, ErrEmptyDocument
	}

	body, err := json.Marshal(mistralOCRRequest{Model: m.model, Document: documentPayload(doc)})
	if err != nil {
		return Result{}, eris.Wrap(err, "ocr: marshal mistral request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return Result{}, eris.Wrap(err, "ocr: mistral API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, eris.Wrap(resilience.NewTransientError(err, 0), "ocr: read mistral response")
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(respBody)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		apiErr := eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, snippet)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return Result{}, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return Result{}, apiErr
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return Result{}, eris.Wrap(err, "ocr: unmarshal mistral response")
	}

	pages := make([]string, 0, len(ocrResp.Pages))
	for _, page := range ocrResp.Pages {
		pages = append(pages, page.Markdown)
	}
	return Result{Text: strings.Join(pages, "\n\n")}, nil
}

// documentPayload picks the document or image variant from the sniffed type.
func documentPayload(doc []byte) mistralOCRDocument {
	mime := http.DetectContentType(doc)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(doc)
	if strings.HasPrefix(mime, "image/") {
		return mistralOCRDocument{Type: "image_url", ImageURL: dataURL}
	}
	return mistralOCRDocument{Type: "document_url", DocumentURL: dataURL}
}
