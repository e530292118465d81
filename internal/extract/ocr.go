package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/ianbrucey/war-room-sub000/internal/fault"
	"github.com/ianbrucey/war-room-sub000/internal/model"
)

var _ Extractor = (*OCRClient)(nil)

// OCRClient is the high-fidelity extraction strategy, backed by a hosted OCR
// service with a Mistral-style document OCR endpoint. Inputs over the
// configured size or page limits are rejected before invocation.
type OCRClient struct {
	BaseURL string
	APIKey  string
	Model   string

	MaxBytes int64
	MaxPages int

	HTTPClient *http.Client
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OCRClient) Supports(fileType model.FileType) bool {
	switch fileType {
	case model.FileTypePDF, model.FileTypeDocx, model.FileTypePptx, model.FileTypeImage:
		return true
	}
	return false
}

func (c *OCRClient) Extract(ctx context.Context, content []byte, fileType model.FileType) (*Result, error) {
	if c.MaxBytes > 0 && int64(len(content)) > c.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrInputRejected, len(content), c.MaxBytes)
	}

	// Page limit is checked locally for PDFs. Invoking an adapter that is
	// guaranteed to fail wastes a paid call.
	if fileType == model.FileTypePDF && c.MaxPages > 0 {
		conf := pdfmodel.NewDefaultConfiguration()
		if pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), conf); err == nil {
			if pdfCtx.PageCount > c.MaxPages {
				return nil, fmt.Errorf("%w: %d pages exceeds limit of %d", ErrInputRejected, pdfCtx.PageCount, c.MaxPages)
			}
		}
	}

	doc := ocrDocument{
		Type:        "document_url",
		DocumentURL: dataURL(mimeType(fileType), content),
	}
	if fileType == model.FileTypeImage {
		doc = ocrDocument{
			Type:     "image_url",
			ImageURL: dataURL(mimeType(fileType), content),
		}
	}

	reqBody, err := json.Marshal(ocrRequest{Model: c.Model, Document: doc})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/ocr", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fault.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fault.Transient(fmt.Errorf("ocr: server error %d", resp.StatusCode))
	}

	var payload ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ocr: decode response: %w", err)
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("ocr error: %s", payload.Error.Message)
	}
	if len(payload.Pages) == 0 {
		return nil, ErrNoTextContent
	}

	pages := make([]string, len(payload.Pages))
	for i, p := range payload.Pages {
		pages[i] = p.Markdown
	}

	return finishResult(pages), nil
}

func (c *OCRClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 120 * time.Second}
}

func mimeType(fileType model.FileType) string {
	switch fileType {
	case model.FileTypePDF:
		return "application/pdf"
	case model.FileTypeDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case model.FileTypePptx:
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case model.FileTypeImage:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func dataURL(mime string, content []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(content)
}
