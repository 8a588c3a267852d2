// Package cli implements the regdocs command line tool: offline merge and
// compliance evaluation over a file of extraction results.
package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/regdocs/regdocs-backend/internal/profile"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	Format string // "text" | "json" | "yaml"
	AsOf   string // evaluation date, DD.MM.YYYY

	now time.Time
}

// ValidFormats defines the allowed output formats
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "regdocs",
		Short: "Applicant document profile tool",
		Long: `Merge extraction results into an applicant profile and check it
against the registry checklist without running the service.

Input is a JSON array of extraction results as produced by the
profile service, e.g. [{"fileId":"f1","fileName":"passport.jpg","data":{"type":"passport",...}}].
Use "-" to read from standard input.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.now = time.Now()
			if opts.AsOf != "" {
				t, ok := profile.ParseDate(opts.AsOf)
				if !ok {
					return NewExitError(ExitCommandError, fmt.Sprintf("invalid --as-of date %q: expected DD.MM.YYYY", opts.AsOf))
				}
				opts.now = t
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.AsOf, "as-of", "", "evaluate certificate expiry as of this date (DD.MM.YYYY)")

	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewEvaluateCommand(opts))
	cmd.AddCommand(NewFieldsCommand(opts))

	return cmd
}
