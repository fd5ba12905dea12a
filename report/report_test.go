package report

import (
	"strings"
	"testing"
	"time"

	"github.com/transdoc-io/transdoc/policy"
	"github.com/transdoc-io/transdoc/segment"
)

func sampleSummary() Summary {
	return Summary{
		Input:      "report.docx",
		Output:     "report_de.docx",
		Format:     "docx",
		TargetLang: "de",
		Provider:   "openai",
		State:      policy.Completed,
		Segmentation: segment.Stats{
			Units: 12, Fragments: 15, ForcedCuts: 1, AtomicUnits: 2,
		},
		Batches:  3,
		Applied:  11,
		Retained: 1,
		Retries:  1,
		Errors: []policy.ErrorRecord{
			{Batch: 1, UnitID: "body.p4.r0", Category: policy.CategoryTranslation, Message: "no translation in response"},
			{Batch: -1, UnitID: "body.p7", Category: policy.CategoryReinsertion, Message: "markup mismatch"},
		},
		Duration: 42 * time.Second,
	}
}

func TestRenderBasic(t *testing.T) {
	var b strings.Builder
	Render(&b, sampleSummary(), false)
	out := b.String()

	for _, want := range []string{
		"report.docx → report_de.docx",
		"docx",
		"de (via openai)",
		"completed",
		"11 translated, 1 kept in source language",
		"Errors:     2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "body.p4.r0") {
		t.Fatal("non-verbose output lists individual errors")
	}
}

func TestRenderVerbose(t *testing.T) {
	var b strings.Builder
	Render(&b, sampleSummary(), true)
	out := b.String()

	for _, want := range []string{
		"3 (1 retries)",
		"15 from 12 units (1 forced cuts, 2 atomic)",
		"[translation] batch 1 body.p4.r0: no translation in response",
		"[reinsertion] body.p7: markup mismatch",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("verbose output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "batch -1") {
		t.Fatal("verbose output shows a batch number for a batch-less record")
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		state  policy.State
		errors int
		want   int
	}{
		{policy.Completed, 0, 0},
		{policy.Completed, 2, 0},
		{policy.Halted, 0, 2},
		{policy.Halted, 5, 2},
	}
	for _, tc := range cases {
		s := Summary{State: tc.state}
		for i := 0; i < tc.errors; i++ {
			s.Errors = append(s.Errors, policy.ErrorRecord{})
		}
		if got := ExitCode(s); got != tc.want {
			t.Fatalf("ExitCode(%v, %d errors) = %d, want %d", tc.state, tc.errors, got, tc.want)
		}
	}
}
