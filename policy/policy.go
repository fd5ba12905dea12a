// Package policy governs how a translation run reacts to provider
// failures. It counts errors, trips thresholds, and asks a Decider whether
// to keep going, retry the failed batch, or halt the run.
package policy

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Error records
// ---------------------------------------------------------------------------

// Category names the failure class of a recorded error. Argument,
// file-io, and parsing failures terminate a run before the governor is
// involved; only the recoverable classes below become records.
type Category string

const (
	// CategoryNetwork is a transport failure after retries were exhausted.
	CategoryNetwork Category = "network"
	// CategoryTranslation is a provider failure that is not a transport
	// problem: a protocol-violating response, an item dropped from an
	// otherwise valid response, or a non-retryable API error.
	CategoryTranslation Category = "translation"
	// CategoryReinsertion is a translated unit that could not be written
	// back; the unit keeps its source text.
	CategoryReinsertion Category = "reinsertion"
)

// ErrorRecord is one accounted failure.
type ErrorRecord struct {
	Batch    int
	UnitID   string // empty for whole-batch failures
	Category Category
	Message  string
	Time     time.Time
}

// ---------------------------------------------------------------------------
// Run state machine
// ---------------------------------------------------------------------------

// State is the lifecycle position of a run.
type State int

const (
	// Running processes batches normally.
	Running State = iota
	// Prompting waits for a threshold decision.
	Prompting
	// Halted means the run stopped early; buffered results still apply.
	Halted
	// Completed means every batch was processed.
	Completed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Prompting:
		return "prompting"
	case Halted:
		return "halted"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Decision is the answer to a threshold prompt.
type Decision int

const (
	// Continue resets the consecutive counter and moves on.
	Continue Decision = iota
	// Retry re-runs the batch that tripped the threshold.
	Retry
	// Abort halts the run.
	Abort
)

// Decider answers threshold prompts.
type Decider interface {
	Decide(g *Governor, rec ErrorRecord) (Decision, error)
}

// Thresholds trip the prompt. Zero values take the defaults.
type Thresholds struct {
	// Consecutive failed batches before prompting. Default 3.
	Consecutive int
	// Total recorded errors before prompting. Default 10, exceeded
	// strictly.
	Total int
}

// Governor tracks failures for one run and applies the thresholds.
type Governor struct {
	thresholds  Thresholds
	decider     Decider
	state       State
	records     []ErrorRecord
	consecutive int
	lastCat     Category
}

// NewGovernor builds a governor in the Running state.
func NewGovernor(t Thresholds, d Decider) *Governor {
	if t.Consecutive == 0 {
		t.Consecutive = 3
	}
	if t.Total == 0 {
		t.Total = 10
	}
	return &Governor{thresholds: t, decider: d, state: Running}
}

// State reports the current lifecycle position.
func (g *Governor) State() State { return g.state }

// Records returns all accounted failures in order.
func (g *Governor) Records() []ErrorRecord { return g.records }

// Consecutive reports the current consecutive-failure count.
func (g *Governor) Consecutive() int { return g.consecutive }

// Success accounts a processed batch. It resets the consecutive counter;
// the total stays.
func (g *Governor) Success() {
	g.consecutive = 0
}

// Complete marks the run finished. A halted run stays halted.
func (g *Governor) Complete() {
	if g.state == Running {
		g.state = Completed
	}
}

// RecordItem accounts a per-item failure without counting a failed batch.
// Used for items missing from an otherwise accepted response.
func (g *Governor) RecordItem(rec ErrorRecord) (Decision, error) {
	rec.Time = time.Now()
	g.records = append(g.records, rec)
	return g.check(rec)
}

// Record appends a failure without threshold checks. Used for failures
// found after the batch loop, like reinsertion errors.
func (g *Governor) Record(rec ErrorRecord) {
	rec.Time = time.Now()
	g.records = append(g.records, rec)
}

// Fail accounts a failed batch and applies the thresholds. A failure of a
// different category than the previous one restarts the consecutive count
// at 1. The returned decision tells the caller what to do with the batch;
// Abort means the run is now Halted.
func (g *Governor) Fail(rec ErrorRecord) (Decision, error) {
	rec.Time = time.Now()
	g.records = append(g.records, rec)
	if g.consecutive > 0 && rec.Category != g.lastCat {
		g.consecutive = 1
	} else {
		g.consecutive++
	}
	g.lastCat = rec.Category
	return g.check(rec)
}

func (g *Governor) check(rec ErrorRecord) (Decision, error) {
	if g.state != Running {
		return Abort, fmt.Errorf("run is %s", g.state)
	}
	if g.consecutive < g.thresholds.Consecutive && len(g.records) <= g.thresholds.Total {
		return Continue, nil
	}

	g.state = Prompting
	d, err := g.decider.Decide(g, rec)
	if err != nil {
		g.state = Halted
		return Abort, err
	}
	switch d {
	case Abort:
		g.state = Halted
	case Continue, Retry:
		g.state = Running
		g.consecutive = 0
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// Deciders
// ---------------------------------------------------------------------------

// PromptDecider asks on a terminal: continue, retry, or abort.
type PromptDecider struct {
	In  io.Reader
	Out io.Writer
}

func (p *PromptDecider) Decide(g *Governor, rec ErrorRecord) (Decision, error) {
	fmt.Fprintf(p.Out, "\n%d errors so far (%d in a row). Last: [%s] %s\n",
		len(g.Records()), g.Consecutive(), rec.Category, rec.Message)

	r := bufio.NewReader(p.In)
	for {
		fmt.Fprint(p.Out, "[c]ontinue, [r]etry batch, [a]bort? ")
		line, err := r.ReadString('\n')
		if err != nil {
			return Abort, fmt.Errorf("reading decision: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "c", "continue":
			return Continue, nil
		case "r", "retry":
			return Retry, nil
		case "a", "abort":
			return Abort, nil
		}
	}
}

// AutoDecider answers without a terminal: continue on the first trigger,
// abort on the second.
type AutoDecider struct {
	// OnDecision is called with the chosen decision, for logging.
	OnDecision func(d Decision, rec ErrorRecord)

	triggered bool
}

func (a *AutoDecider) Decide(_ *Governor, rec ErrorRecord) (Decision, error) {
	d := Continue
	if a.triggered {
		d = Abort
	}
	a.triggered = true
	if a.OnDecision != nil {
		a.OnDecision(d, rec)
	}
	return d, nil
}
