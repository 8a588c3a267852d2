package handler

import (
	"context"
	"slices"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/service"
	"github.com/regdocs/regdocs-backend/internal/profile"
	"github.com/regdocs/regdocs-backend/pkg/i18n"
)

// localizeReport returns a copy of the report with labels, messages and the
// summary translated into the request locale. Keys missing from the catalog
// keep the English text produced by the evaluator.
func localizeReport(ctx context.Context, report profile.ComplianceReport) profile.ComplianceReport {
	l := i18n.LocalizerFromContext(ctx)

	out := report
	out.Checks = slices.Clone(report.Checks)
	for i, c := range out.Checks {
		if key := "compliance.labels." + c.ID; l.Has(key) {
			out.Checks[i].Label = l.T(key)
		}
		if c.MessageKey != "" && l.Has(c.MessageKey) {
			out.Checks[i].Message = l.T(c.MessageKey, c.Params)
		}
	}
	if report.SummaryKey != "" && l.Has(report.SummaryKey) {
		out.Summary = l.T(report.SummaryKey)
	}
	return out
}

func localizeSnapshot(ctx context.Context, snap *service.Snapshot) *service.Snapshot {
	out := *snap
	out.Report = localizeReport(ctx, snap.Report)
	return &out
}

func localizeSnilsCheck(ctx context.Context, input string, res *domain.SnilsCheckResult) *domain.SnilsCheckResult {
	if res.Valid {
		return res
	}
	key := "snils.invalid_checksum"
	if domain.NormalizeSnils(input) == "" {
		key = "snils.invalid_length"
	}
	out := *res
	out.Message = i18n.TFromContext(ctx, key)
	return &out
}
