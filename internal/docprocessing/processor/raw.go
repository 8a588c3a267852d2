package processor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
)

// maxRawText caps the text kept from a plain-text upload
const maxRawText = 4096

// RawProcessor accepts plain-text files and keeps their content without
// structure. It is registered last so it only runs when the vision model
// cannot handle the file.
type RawProcessor struct{}

// NewRawProcessor creates the plain-text fallback processor
func NewRawProcessor() *RawProcessor {
	return &RawProcessor{}
}

func (p *RawProcessor) Name() string { return "raw" }

func (p *RawProcessor) CanProcess(domain.DocumentType) bool { return true }

func (p *RawProcessor) Process(_ context.Context, data []byte, _ domain.DocumentType) (domain.DocumentPayload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("raw: file is empty")
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("raw: unsupported file format")
	}

	text := strings.TrimSpace(string(data))
	if len(text) > maxRawText {
		text = truncateUTF8(text, maxRawText)
	}
	return domain.RawPayload{RawText: text}, nil
}

func truncateUTF8(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
