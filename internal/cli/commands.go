package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/regdocs/regdocs-backend/internal/profile"
)

// NewMergeCommand creates the merge command
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <results.json>",
		Short: "Merge extraction results into an applicant profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := loadResults(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			p := profile.MergeProfiles(results)
			return write(cmd.OutOrStdout(), rootOpts.Format, p, func(w io.Writer) error {
				return writeProfileText(w, p)
			})
		},
	}
}

// NewEvaluateCommand creates the evaluate command
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "evaluate <results.json>",
		Short: "Check the merged profile against the registry checklist",
		Long: `Merge extraction results and print the compliance report.

With --strict the command exits with status 1 unless every check passed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := loadResults(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			report := profile.EvaluateComplianceAt(profile.MergeProfiles(results), rootOpts.now)
			if err := write(cmd.OutOrStdout(), rootOpts.Format, report, func(w io.Writer) error {
				return writeReportText(w, report)
			}); err != nil {
				return err
			}
			if strict && report.Status != profile.StatusSuccess {
				return NewExitError(ExitFailure, fmt.Sprintf("compliance status %s (score %d)", report.Status, report.Score))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit with status 1 unless the report status is success")
	return cmd
}

// NewFieldsCommand creates the fields command
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fields <results.json>",
		Short: "Print the template field dictionary of the merged profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := loadResults(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			fields := profile.TemplateFields(profile.MergeProfiles(results))
			return write(cmd.OutOrStdout(), rootOpts.Format, fields, func(w io.Writer) error {
				for _, k := range slices.Sorted(maps.Keys(fields)) {
					if _, err := fmt.Fprintf(w, "%s=%s\n", k, fields[k]); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func writeProfileText(w io.Writer, p profile.UserProfile) error {
	source := func(id string) string {
		if id == "" {
			return "-"
		}
		return id
	}
	_, err := fmt.Fprintf(w, "Full name:     %s\nPassport:      %s\nDiploma:       %s\nQualification: %s\n",
		p.FullName,
		source(p.Passport.SourceFileID),
		source(p.Diploma.SourceFileID),
		source(p.Qualification.SourceFileID),
	)
	return err
}

func writeReportText(w io.Writer, r profile.ComplianceReport) error {
	if _, err := fmt.Fprintf(w, "Score: %d (%s)\n%s\n\n", r.Score, r.Status, r.Summary); err != nil {
		return err
	}
	for _, c := range r.Checks {
		if _, err := fmt.Fprintf(w, "[%-7s] %-26s %s\n", c.Status, c.Label, c.Message); err != nil {
			return err
		}
	}
	return nil
}
