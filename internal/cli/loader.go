package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/regdocs/regdocs-backend/internal/profile"
)

// loadResults reads a JSON array of extraction results from path, or from in
// when path is "-". Results come back in merge priority order.
func loadResults(path string, in io.Reader) ([]domain.ExtractionResult, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read results", err)
	}

	var results []domain.ExtractionResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, WrapExitError(ExitCommandError, "malformed results file", err)
	}
	return profile.SortResults(results), nil
}
