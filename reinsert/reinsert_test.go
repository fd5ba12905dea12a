package reinsert

import (
	"fmt"
	"testing"

	"github.com/transdoc-io/transdoc/document"
	"github.com/transdoc-io/transdoc/segment"
)

// fakeTree records Apply calls against a fixed node list.
type fakeTree struct {
	nodes   []document.Node
	applied map[string]string
}

func newFakeTree(nodes ...document.Node) *fakeTree {
	return &fakeTree{nodes: nodes, applied: make(map[string]string)}
}

func (t *fakeTree) Kind() string           { return "fake" }
func (t *fakeTree) Nodes() []document.Node { return t.nodes }
func (t *fakeTree) Save(string) error      { return nil }

func (t *fakeTree) Apply(nodeID, text string) error {
	for _, n := range t.nodes {
		if n.ID == nodeID {
			t.applied[nodeID] = text
			return nil
		}
	}
	return fmt.Errorf("unknown node %q", nodeID)
}

func plainSetup(budget int) ([]document.TextUnit, []segment.Batch) {
	units := []document.TextUnit{
		{ID: "body.p0.r0", Text: "Hello there friend."},
		{ID: "body.p1.r0", Text: "Second paragraph."},
	}
	batches, _ := segment.Plan(units, budget)
	return units, batches
}

func TestPutAndComplete(t *testing.T) {
	units, batches := plainSetup(100)
	b := NewBuffer(units, batches)

	if b.Complete("body.p0.r0") {
		t.Fatal("unit complete before any Put")
	}
	if err := b.Put("body.p0.r0", 0, "Bonjour."); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !b.Complete("body.p0.r0") {
		t.Fatal("single-fragment unit not complete after Put")
	}
	if b.CompletedUnits() != 1 {
		t.Fatalf("CompletedUnits = %d, want 1", b.CompletedUnits())
	}
}

func TestPutRejectsUnknown(t *testing.T) {
	units, batches := plainSetup(100)
	b := NewBuffer(units, batches)

	if err := b.Put("body.p9.r0", 0, "x"); err == nil {
		t.Fatal("expected an error for an unknown unit")
	}
	if err := b.Put("body.p0.r0", 5, "x"); err == nil {
		t.Fatal("expected an error for an out-of-range ordinal")
	}
}

func TestApplyJoinsFragmentsInOrder(t *testing.T) {
	units := []document.TextUnit{{ID: "body.p0.r0", Text: "One two three four five six seven"}}
	batches, _ := segment.Plan(units, 12)
	b := NewBuffer(units, batches)

	var frags []segment.Fragment
	for _, batch := range batches {
		frags = append(frags, batch.Fragments...)
	}
	if len(frags) < 2 {
		t.Fatalf("fixture needs a split, got %d fragments", len(frags))
	}
	// Put out of order to prove join sorts by ordinal.
	for i := len(frags) - 1; i >= 0; i-- {
		if err := b.Put(frags[i].UnitID, frags[i].Ordinal, frags[i].Text); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	tree := newFakeTree(document.Node{ID: "body.p0.r0", Para: "body.p0"})
	out := Apply(tree, b)
	if out.Applied != 1 || out.Retained != 0 {
		t.Fatalf("outcome = %+v", out)
	}
	if got := tree.applied["body.p0.r0"]; got != units[0].Text {
		t.Fatalf("applied %q, want %q", got, units[0].Text)
	}
}

func TestApplyRetainsIncomplete(t *testing.T) {
	units, batches := plainSetup(100)
	b := NewBuffer(units, batches)
	b.Put("body.p0.r0", 0, "Bonjour.")

	tree := newFakeTree(
		document.Node{ID: "body.p0.r0", Para: "body.p0"},
		document.Node{ID: "body.p1.r0", Para: "body.p1"},
	)
	out := Apply(tree, b)
	if out.Applied != 1 || out.Retained != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if _, touched := tree.applied["body.p1.r0"]; touched {
		t.Fatal("incomplete unit was written")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	units, batches := plainSetup(100)
	b := NewBuffer(units, batches)
	b.Put("body.p0.r0", 0, "Bonjour.")
	b.Put("body.p1.r0", 0, "Deuxième.")

	tree := newFakeTree(
		document.Node{ID: "body.p0.r0", Para: "body.p0"},
		document.Node{ID: "body.p1.r0", Para: "body.p1"},
	)
	first := Apply(tree, b)
	second := Apply(tree, b)
	if first.Applied != second.Applied || first.Retained != second.Retained {
		t.Fatalf("outcomes differ: %+v vs %+v", first, second)
	}
	if tree.applied["body.p0.r0"] != "Bonjour." {
		t.Fatalf("got %q after second apply", tree.applied["body.p0.r0"])
	}
}

func TestApplyAtomicDistributesRuns(t *testing.T) {
	ids := []string{"body.p0.r0", "body.p0.r1"}
	units := []document.TextUnit{{
		ID:     "body.p0",
		Text:   document.EncodeRuns(ids, []string{"Hello ", "world"}),
		Atomic: true,
	}}
	batches, _ := segment.Plan(units, 1000)
	b := NewBuffer(units, batches)
	b.Put("body.p0", 0, document.EncodeRuns(ids, []string{"Bonjour ", "monde"}))

	tree := newFakeTree(
		document.Node{ID: "body.p0.r0", Para: "body.p0"},
		document.Node{ID: "body.p0.r1", Para: "body.p0"},
	)
	out := Apply(tree, b)
	if out.Applied != 1 || len(out.Failures) != 0 {
		t.Fatalf("outcome = %+v", out)
	}
	if tree.applied["body.p0.r0"] != "Bonjour " || tree.applied["body.p0.r1"] != "monde" {
		t.Fatalf("runs applied wrong: %v", tree.applied)
	}
}

func TestApplyRetainsBrokenAtomicMarkup(t *testing.T) {
	ids := []string{"body.p0.r0", "body.p0.r1"}
	units := []document.TextUnit{{
		ID:     "body.p0",
		Text:   document.EncodeRuns(ids, []string{"Hello ", "world"}),
		Atomic: true,
	}}
	batches, _ := segment.Plan(units, 1000)
	b := NewBuffer(units, batches)
	// The model dropped a run tag.
	b.Put("body.p0", 0, `<run id="body.p0.r0">Bonjour monde</run>`)

	tree := newFakeTree(
		document.Node{ID: "body.p0.r0", Para: "body.p0"},
		document.Node{ID: "body.p0.r1", Para: "body.p0"},
	)
	out := Apply(tree, b)
	if out.Applied != 0 || out.Retained != 1 || len(out.Failures) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if len(tree.applied) != 0 {
		t.Fatalf("broken markup still wrote runs: %v", tree.applied)
	}
}
