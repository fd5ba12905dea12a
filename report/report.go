// Package report renders the end-of-run summary.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/transdoc-io/transdoc/policy"
	"github.com/transdoc-io/transdoc/segment"
)

// Summary is everything a finished run reports.
type Summary struct {
	Input      string
	Output     string
	Format     string
	TargetLang string
	Provider   string

	State        policy.State
	Segmentation segment.Stats
	Batches      int
	Applied      int
	Retained     int
	Retries      int
	Errors       []policy.ErrorRecord

	Duration time.Duration
}

// Render writes the summary to w. Verbose adds segmentation detail and the
// full error list.
func Render(w io.Writer, s Summary, verbose bool) {
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  %s → %s\n", s.Input, s.Output)
	fmt.Fprintf(w, "  Format:     %s\n", s.Format)
	fmt.Fprintf(w, "  Target:     %s (via %s)\n", s.TargetLang, s.Provider)
	fmt.Fprintf(w, "  Result:     %s\n", s.State)
	fmt.Fprintf(w, "  Units:      %d translated, %d kept in source language\n", s.Applied, s.Retained)
	if len(s.Errors) > 0 {
		fmt.Fprintf(w, "  Errors:     %d\n", len(s.Errors))
	}
	fmt.Fprintf(w, "  Elapsed:    %s\n", s.Duration.Round(time.Millisecond))

	if verbose {
		fmt.Fprintf(w, "  Batches:    %d (%d retries)\n", s.Batches, s.Retries)
		fmt.Fprintf(w, "  Fragments:  %d from %d units (%d forced cuts, %d atomic)\n",
			s.Segmentation.Fragments, s.Segmentation.Units,
			s.Segmentation.ForcedCuts, s.Segmentation.AtomicUnits)
		for _, rec := range s.Errors {
			var where string
			if rec.Batch >= 0 {
				where = fmt.Sprintf("batch %d", rec.Batch)
			}
			if rec.UnitID != "" {
				if where != "" {
					where += " "
				}
				where += rec.UnitID
			}
			fmt.Fprintf(w, "    [%s] %s: %s\n", rec.Category, where, rec.Message)
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", 60))
}

// ExitCode maps the final state onto the process exit code: 0 for a run
// that completed (skipped units under the thresholds included), 2 for a
// halted run. Irrecoverable failures never produce a summary; they exit 1
// before one exists.
func ExitCode(s Summary) int {
	if s.State == policy.Halted {
		return 2
	}
	return 0
}
