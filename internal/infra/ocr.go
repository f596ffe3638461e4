package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
)

// OCRRequest is sent by the worker pool to the OCR sidecar. The sidecar
// fetches the image by its media-store handle, runs text extraction and
// line-item parsing, and answers with the structured result.
type OCRRequest struct {
	ReceiptID string `json:"receipt_id"`
	ImageRef  string `json:"image_ref"`
}

// OCRClient is an HTTP client delegating receipt text extraction to the
// sidecar. The decoupling keeps OCR failures (and its heavyweight
// dependencies) out of the core backend.
type OCRClient struct {
	sidecarURL string
	httpClient *http.Client
}

func NewOCRClient(sidecarURL string) *OCRClient {
	return &OCRClient{
		sidecarURL: sidecarURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Extract sends a POST to the sidecar and returns the structured extraction.
func (c *OCRClient) Extract(ctx context.Context, payload OCRRequest) (*dto.ExtractionResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ocr: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sidecarURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ocr: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocr: sidecar returned %d", resp.StatusCode)
	}

	var result dto.ExtractionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ocr: decode response: %w", err)
	}
	return &result, nil
}
