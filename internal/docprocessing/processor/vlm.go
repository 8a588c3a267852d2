package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
)

// JPEG and PNG magic bytes for image detection
var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
)

// DefaultVisionTimeout bounds a single vision inference call
const DefaultVisionTimeout = 60 * time.Second

// VLMProcessor extracts document fields by sending images to the vision model service.
type VLMProcessor struct {
	visionURL  string
	httpClient *http.Client
}

// NewVLMProcessor creates a new VLM processor that calls the given vision service URL.
func NewVLMProcessor(visionURL string, timeout time.Duration) *VLMProcessor {
	if timeout <= 0 {
		timeout = DefaultVisionTimeout
	}
	return &VLMProcessor{
		visionURL: visionURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *VLMProcessor) Name() string { return "vlm" }

// CanProcess accepts every structured type and the empty hint, where the
// model classifies the document itself.
func (p *VLMProcessor) CanProcess(hint domain.DocumentType) bool {
	return hint != domain.DocumentTypeRaw
}

func (p *VLMProcessor) Process(ctx context.Context, data []byte, hint domain.DocumentType) (domain.DocumentPayload, error) {
	if !isImageData(data) {
		return nil, fmt.Errorf("vlm: data is not a JPEG or PNG image, skipping")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "document.bin")
	if err != nil {
		return nil, fmt.Errorf("vlm: create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("vlm: write image data: %w", err)
	}
	if hint != "" {
		if err := writer.WriteField("document_type", string(hint)); err != nil {
			return nil, fmt.Errorf("vlm: write document_type field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("vlm: close multipart writer: %w", err)
	}

	url := p.visionURL + "/api/v1/extract"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("vlm: create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vlm: vision service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vlm: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vlm: vision service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var visionResp visionExtractionResponse
	if err := json.Unmarshal(respBody, &visionResp); err != nil {
		return nil, fmt.Errorf("vlm: parse response: %w", err)
	}
	if visionResp.Error != "" {
		return nil, fmt.Errorf("vlm: %s", visionResp.Error)
	}

	payload, err := domain.UnmarshalPayload(visionResp.Data)
	if err != nil {
		return nil, fmt.Errorf("vlm: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("vlm: vision service returned no data")
	}
	if err := ValidatePayload(payload); err != nil {
		return nil, fmt.Errorf("vlm: %w", err)
	}

	return payload, nil
}

// isImageData checks for JPEG or PNG magic bytes at the start of the data.
func isImageData(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return bytes.HasPrefix(data, jpegMagic) || bytes.HasPrefix(data, pngMagic)
}

// visionExtractionResponse mirrors the vision service ExtractionResponse model.
// Data carries the typed payload including its "type" discriminant.
type visionExtractionResponse struct {
	Data             json.RawMessage `json:"data"`
	Error            string          `json:"error"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}
