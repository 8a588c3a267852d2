package processor

import (
	"context"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
)

// Processor defines the interface for document data extraction.
// Implementations can be swapped in without changing the service or handler layer.
type Processor interface {
	// CanProcess returns true if this processor handles the given type hint.
	// An empty hint means the document type is not known in advance.
	CanProcess(hint domain.DocumentType) bool

	// Process extracts a typed payload from the file bytes.
	// The data should NOT be retained after processing.
	Process(ctx context.Context, data []byte, hint domain.DocumentType) (domain.DocumentPayload, error)

	// Name returns the processor name for logging/audit
	Name() string
}

// Registry holds all registered processors and dispatches to the right one
type Registry struct {
	processors []Processor
}

// NewRegistry creates a new processor registry
func NewRegistry(processors ...Processor) *Registry {
	return &Registry{processors: processors}
}

// FindProcessor returns the first processor that can handle the given hint
func (r *Registry) FindProcessor(hint domain.DocumentType) Processor {
	for _, p := range r.processors {
		if p.CanProcess(hint) {
			return p
		}
	}
	return nil
}

// FindProcessors returns all processors that can handle the given hint,
// in registration order. If the first one fails (e.g. the vision service
// rejects non-image data), the next one can try.
func (r *Registry) FindProcessors(hint domain.DocumentType) []Processor {
	var result []Processor
	for _, p := range r.processors {
		if p.CanProcess(hint) {
			result = append(result, p)
		}
	}
	return result
}
