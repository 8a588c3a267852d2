package errors_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/regdocs/regdocs-backend/pkg/errors"
	"github.com/regdocs/regdocs-backend/pkg/i18n"
	"github.com/stretchr/testify/assert"
)

func TestNotFound_Localize(t *testing.T) {
	err := errors.NotFound("package")

	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, "package not found", err.Localize(context.Background()))

	ru := i18n.WithLocale(context.Background(), i18n.LocaleRussian)
	assert.Equal(t, "пакет: не найдено", err.Localize(ru))
}

func TestBadRequest_KeepsCallerMessage(t *testing.T) {
	err := errors.BadRequest("file field is required")

	ru := i18n.WithLocale(context.Background(), i18n.LocaleRussian)
	assert.Equal(t, "file field is required", err.Localize(ru))
}

func TestAs(t *testing.T) {
	var wrapped error = errors.Wrap(errors.ErrConflict, "CONFLICT", "duplicate", http.StatusConflict)

	var appErr *errors.AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "duplicate: resource conflict", appErr.Error())
	assert.True(t, errors.Is(wrapped, errors.ErrConflict))
}
