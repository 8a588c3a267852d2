package profile

import (
	"slices"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
)

// otherPriority ranks results that are not one of the known slot documents
const otherPriority = 99

var typePriority = map[domain.DocumentType]int{
	domain.DocumentTypePassport:      0,
	domain.DocumentTypeSnils:         1,
	domain.DocumentTypeQualification: 2,
	domain.DocumentTypeDiploma:       3,
}

// Priority returns the display rank of a result's document type. The rank
// ignores the error string; results without data rank as "other".
func Priority(r domain.ExtractionResult) int {
	if p, ok := typePriority[r.DocumentType()]; ok {
		return p
	}
	return otherPriority
}

// SortResults returns a copy of results ordered passport, snils, qualification,
// diploma, then everything else. Equal priorities keep their input order.
func SortResults(results []domain.ExtractionResult) []domain.ExtractionResult {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b domain.ExtractionResult) int {
		return Priority(a) - Priority(b)
	})
	return sorted
}
