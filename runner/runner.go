// Package runner drives a full translation run: open the document, extract
// and segment its text, feed batches to the provider under the error
// policy, reinsert what came back, and save.
//
// A run that halts early, whether by policy or by cancellation, still
// writes the output with every buffered translation applied.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/transdoc-io/transdoc/docxfile"
	"github.com/transdoc-io/transdoc/document"
	"github.com/transdoc-io/transdoc/extract"
	"github.com/transdoc-io/transdoc/langmeta"
	"github.com/transdoc-io/transdoc/lockfile"
	"github.com/transdoc-io/transdoc/policy"
	"github.com/transdoc-io/transdoc/pptxfile"
	"github.com/transdoc-io/transdoc/reinsert"
	"github.com/transdoc-io/transdoc/report"
	"github.com/transdoc-io/transdoc/segment"
	"github.com/transdoc-io/transdoc/translate"
)

// DefaultBudget is the per-batch character budget.
const DefaultBudget = 2000

// Openers maps the supported extensions to their container openers.
func Openers() map[string]document.Opener {
	return map[string]document.Opener{
		"docx": docxfile.Open,
		"pptx": pptxfile.Open,
	}
}

// Options controls a run.
type Options struct {
	// Input is the source document path.
	Input string
	// Output is the destination path. Empty derives "stem_lang.ext" next
	// to the input.
	Output string
	// SourceLang is the source language code; empty means auto-detect.
	SourceLang string
	// TargetLang is the target language code.
	TargetLang string
	// Provider performs the batch translations.
	Provider translate.Provider
	// Budget is the per-batch character budget. DefaultBudget when 0.
	Budget int
	// Thresholds tune the error policy.
	Thresholds policy.Thresholds
	// Decider answers threshold prompts.
	Decider policy.Decider
	// Force allows overwriting an existing output file.
	Force bool
	// OnLog emits log messages during the run.
	OnLog func(format string, args ...any)
	// OnError emits error messages during the run.
	OnError func(format string, args ...any)
	// OnProgress is called after each processed batch.
	OnProgress func(done, total int)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// DeriveOutput builds the default output path: "report.docx" translated to
// "de" becomes "report_de.docx".
func DeriveOutput(input, lang string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(input, ext)
	return fmt.Sprintf("%s_%s%s", stem, langmeta.Suffix(lang), ext)
}

// Run executes one translation run and returns its summary. The summary is
// non-nil whenever the run got far enough to open the document, even if it
// halted.
func Run(ctx context.Context, opts Options) (*report.Summary, error) {
	started := time.Now()

	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.Output == "" {
		opts.Output = DeriveOutput(opts.Input, opts.TargetLang)
	}
	if err := validatePaths(opts); err != nil {
		return nil, err
	}

	lock, err := lockfile.Acquire(opts.Output)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	tree, err := document.Open(opts.Input, Openers())
	if err != nil {
		return nil, err
	}
	opts.log("Opened %s (%s, %d text nodes)", opts.Input, tree.Kind(), len(tree.Nodes()))

	units, err := extractUnits(tree)
	if err != nil {
		return nil, err
	}
	batches, stats := segment.Plan(units, opts.Budget)
	opts.log("Planned %d batches from %d units (%d fragments)", len(batches), stats.Units, stats.Fragments)

	summary := &report.Summary{
		Input:        opts.Input,
		Output:       opts.Output,
		Format:       tree.Kind(),
		TargetLang:   opts.TargetLang,
		Provider:     opts.Provider.Name(),
		Segmentation: stats,
		Batches:      len(batches),
	}

	gov := policy.NewGovernor(opts.Thresholds, opts.Decider)
	buf := reinsert.NewBuffer(units, batches)

	retries := translateBatches(ctx, opts, batches, gov, buf)
	summary.Retries = retries

	if ctx.Err() == nil {
		gov.Complete()
	} else if gov.State() == policy.Running {
		opts.logError("Canceled; saving what was translated so far")
	}

	outcome := reinsert.Apply(tree, buf)
	for _, f := range outcome.Failures {
		opts.logError("Unit %s kept in source language: %v", f.UnitID, f.Err)
		gov.Record(policy.ErrorRecord{
			Batch:    -1,
			UnitID:   f.UnitID,
			Category: policy.CategoryReinsertion,
			Message:  f.Err.Error(),
		})
	}
	if err := tree.Save(opts.Output); err != nil {
		return nil, fmt.Errorf("saving %s: %w", opts.Output, err)
	}

	summary.State = gov.State()
	if ctx.Err() != nil && summary.State != policy.Completed {
		summary.State = policy.Halted
	}
	summary.Applied = outcome.Applied
	summary.Retained = outcome.Retained
	summary.Errors = gov.Records()
	summary.Duration = time.Since(started)
	return summary, nil
}

func validatePaths(opts Options) error {
	info, err := os.Stat(opts.Input)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input %s is a directory", opts.Input)
	}

	in, _ := filepath.Abs(opts.Input)
	out, _ := filepath.Abs(opts.Output)
	if in == out {
		return fmt.Errorf("output path equals the input path")
	}
	if _, err := os.Stat(opts.Output); err == nil && !opts.Force {
		return fmt.Errorf("output %s exists (use --force to overwrite)", opts.Output)
	}
	return nil
}

// translateBatches runs the provider loop under the governor. Returns the
// number of policy-driven batch reruns.
func translateBatches(ctx context.Context, opts Options, batches []segment.Batch, gov *policy.Governor, buf *reinsert.Buffer) int {
	reruns := 0
	for i := 0; i < len(batches); {
		if ctx.Err() != nil {
			return reruns
		}
		batch := batches[i]
		req := buildRequest(batch, opts.SourceLang, opts.TargetLang)

		results, err := opts.Provider.Translate(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return reruns
			}
			opts.logError("Batch %d failed: %v", batch.Index, err)
			d, derr := gov.Fail(policy.ErrorRecord{
				Batch:    batch.Index,
				Category: categoryOf(err),
				Message:  err.Error(),
			})
			if derr != nil {
				opts.logError("%v", derr)
				return reruns
			}
			switch d {
			case policy.Retry:
				reruns++
				continue
			case policy.Abort:
				return reruns
			}
			i++
			continue
		}

		stop := false
		for _, r := range results {
			unitID, ordinal, perr := parseItemID(r.ID)
			if perr != nil {
				continue
			}
			if err := buf.Put(unitID, ordinal, r.Text); err != nil {
				opts.logError("Discarding result %s: %v", r.ID, err)
			}
		}
		for _, id := range translate.Missing(req.Items, results) {
			unitID, _, _ := parseItemID(id)
			opts.logError("Batch %d: provider returned no translation for %s", batch.Index, unitID)
			d, derr := gov.RecordItem(policy.ErrorRecord{
				Batch:    batch.Index,
				UnitID:   unitID,
				Category: policy.CategoryTranslation,
				Message:  "no translation in response",
			})
			if derr != nil || d == policy.Abort {
				stop = true
				break
			}
		}
		if stop {
			return reruns
		}

		gov.Success()
		i++
		if opts.OnProgress != nil {
			opts.OnProgress(i, len(batches))
		}
	}
	return reruns
}

// buildRequest renders language codes as English names so the prompt reads
// naturally to the model.
func buildRequest(batch segment.Batch, src, dst string) translate.Request {
	items := make([]translate.Item, len(batch.Fragments))
	for i, f := range batch.Fragments {
		items[i] = translate.Item{ID: itemID(f), Text: f.Text}
	}
	if src != "" {
		src = langmeta.Resolve(src).English
	}
	return translate.Request{
		Items:      items,
		SourceLang: src,
		TargetLang: langmeta.Resolve(dst).English,
	}
}

// itemID makes a wire ID unique per fragment. Unit IDs never contain '@'.
func itemID(f segment.Fragment) string {
	return fmt.Sprintf("%s@%d", f.UnitID, f.Ordinal)
}

func parseItemID(id string) (string, int, error) {
	at := strings.LastIndex(id, "@")
	if at < 0 {
		return "", 0, fmt.Errorf("malformed item id %q", id)
	}
	ord, err := strconv.Atoi(id[at+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed item id %q", id)
	}
	return id[:at], ord, nil
}

func categoryOf(err error) policy.Category {
	switch translate.ClassifyKind(err) {
	case translate.KindMalformed, translate.KindFatal:
		return policy.CategoryTranslation
	default:
		return policy.CategoryNetwork
	}
}

func extractUnits(tree document.Tree) ([]document.TextUnit, error) {
	units, err := extract.Units(tree)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("document contains no translatable text")
	}
	return units, nil
}
