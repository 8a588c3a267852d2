package processor

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
)

var validate = validator.New()

// ValidatePayload checks field length limits on a payload returned by a model.
// Oversized values usually mean the model hallucinated a whole page into one field.
func ValidatePayload(p domain.DocumentPayload) error {
	if p == nil {
		return fmt.Errorf("payload is empty")
	}
	switch p.(type) {
	case domain.PassportPayload, domain.DiplomaPayload, domain.QualificationPayload,
		domain.SnilsPayload, domain.RawPayload:
	default:
		return fmt.Errorf("unsupported payload %T: payloads are passed by value", p)
	}
	if err := validate.Struct(p); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		fields := make([]string, 0, len(verrs))
		for _, e := range verrs {
			fields = append(fields, e.Field())
		}
		return fmt.Errorf("%s payload failed validation: %s", p.Type(), strings.Join(fields, ", "))
	}
	return nil
}
