package extract

import (
	"strings"
	"testing"

	"github.com/transdoc-io/transdoc/document"
)

type fakeTree struct {
	nodes []document.Node
}

func (t *fakeTree) Kind() string           { return "fake" }
func (t *fakeTree) Nodes() []document.Node { return t.nodes }
func (t *fakeTree) Apply(string, string) error {
	return nil
}
func (t *fakeTree) Save(string) error { return nil }

func TestUnitsSingleRunParagraphs(t *testing.T) {
	tree := &fakeTree{nodes: []document.Node{
		{ID: "body.p0.r0", Text: "First.", Para: "body.p0"},
		{ID: "body.p1.r0", Text: "Second.", Para: "body.p1"},
	}}
	units, err := Units(tree)
	if err != nil {
		t.Fatalf("Units: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	for i, u := range units {
		if u.Atomic {
			t.Fatalf("unit %d marked atomic", i)
		}
	}
	if units[0].ID != "body.p0.r0" || units[0].Text != "First." {
		t.Fatalf("unit 0 = %#v", units[0])
	}
}

func TestUnitsSkipsWhitespaceOnly(t *testing.T) {
	tree := &fakeTree{nodes: []document.Node{
		{ID: "body.p0.r0", Text: "   \t\n", Para: "body.p0"},
		{ID: "body.p1.r0", Text: "Kept.", Para: "body.p1"},
	}}
	units, err := Units(tree)
	if err != nil {
		t.Fatalf("Units: %v", err)
	}
	if len(units) != 1 || units[0].ID != "body.p1.r0" {
		t.Fatalf("units = %#v", units)
	}
}

func TestUnitsGroupsMultiRunParagraph(t *testing.T) {
	tree := &fakeTree{nodes: []document.Node{
		{ID: "body.p0.r0", Text: "Hello ", Para: "body.p0"},
		{ID: "body.p0.r1", Text: "bold", Para: "body.p0"},
		{ID: "body.p0.r2", Text: " world.", Para: "body.p0"},
		{ID: "body.p1.r0", Text: "Plain.", Para: "body.p1"},
	}}
	units, err := Units(tree)
	if err != nil {
		t.Fatalf("Units: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	u := units[0]
	if u.ID != "body.p0" || !u.Atomic {
		t.Fatalf("unit 0 = %#v", u)
	}
	for _, id := range []string{"body.p0.r0", "body.p0.r1", "body.p0.r2"} {
		if !strings.Contains(u.Text, `<run id="`+id+`">`) {
			t.Fatalf("atomic unit missing run %s: %q", id, u.Text)
		}
	}
	decoded, err := document.DecodeRuns(u.Text, []string{"body.p0.r0", "body.p0.r1", "body.p0.r2"})
	if err != nil {
		t.Fatalf("DecodeRuns: %v", err)
	}
	if decoded["body.p0.r1"] != "bold" {
		t.Fatalf("decoded = %v", decoded)
	}
	if units[1].Atomic {
		t.Fatal("single-run paragraph marked atomic")
	}
}

func TestUnitsCarriesWhitespaceRunsInsideAtomic(t *testing.T) {
	tree := &fakeTree{nodes: []document.Node{
		{ID: "body.p0.r0", Text: "Left", Para: "body.p0"},
		{ID: "body.p0.r1", Text: " ", Para: "body.p0"},
		{ID: "body.p0.r2", Text: "right", Para: "body.p0"},
	}}
	units, err := Units(tree)
	if err != nil {
		t.Fatalf("Units: %v", err)
	}
	if len(units) != 1 || !units[0].Atomic {
		t.Fatalf("units = %#v", units)
	}
	decoded, err := document.DecodeRuns(units[0].Text, []string{"body.p0.r0", "body.p0.r1", "body.p0.r2"})
	if err != nil {
		t.Fatalf("DecodeRuns: %v", err)
	}
	if decoded["body.p0.r1"] != " " {
		t.Fatalf("whitespace run lost: %q", decoded["body.p0.r1"])
	}
}

func TestUnitsDuplicateIDFails(t *testing.T) {
	tree := &fakeTree{nodes: []document.Node{
		{ID: "body.p0.r0", Text: "a", Para: "body.p0"},
		{ID: "body.p0.r0", Text: "b", Para: "body.p0"},
	}}
	if _, err := Units(tree); err == nil {
		t.Fatal("expected an error for duplicate node IDs")
	}
}

func TestUnitsEmptyTree(t *testing.T) {
	units, err := Units(&fakeTree{})
	if err != nil {
		t.Fatalf("Units: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("got %d units, want 0", len(units))
	}
}
