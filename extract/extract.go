// Package extract turns a document tree into the ordered list of text units
// submitted for translation.
//
// Whitespace-only nodes are dropped. Paragraphs whose text is split across
// several runs are emitted as a single atomic unit with tagged run markup,
// so the translation sees the full sentence and run boundaries survive the
// round trip.
package extract

import (
	"fmt"
	"strings"

	"github.com/transdoc-io/transdoc/document"
)

// Units extracts translatable text units from tree in traversal order.
func Units(tree document.Tree) ([]document.TextUnit, error) {
	nodes := tree.Nodes()

	// Count translatable runs per paragraph so single-run paragraphs stay
	// plain units.
	perPara := make(map[string]int)
	for _, n := range nodes {
		if strings.TrimSpace(n.Text) != "" {
			perPara[n.Para]++
		}
	}

	var units []document.TextUnit
	seen := make(map[string]bool)
	emitted := make(map[string]bool)

	for i, n := range nodes {
		if seen[n.ID] {
			return nil, fmt.Errorf("duplicate text node ID %q", n.ID)
		}
		seen[n.ID] = true

		if strings.TrimSpace(n.Text) == "" {
			continue
		}
		if perPara[n.Para] == 1 {
			units = append(units, document.TextUnit{ID: n.ID, Text: n.Text})
			continue
		}
		if emitted[n.Para] {
			continue
		}
		emitted[n.Para] = true
		units = append(units, atomicUnit(n.Para, nodes[i:]))
	}
	return units, nil
}

// atomicUnit builds one tagged unit from all runs of a paragraph. Runs with
// whitespace-only text are carried along so their content survives.
func atomicUnit(para string, rest []document.Node) document.TextUnit {
	var ids, texts []string
	for _, n := range rest {
		if n.Para != para {
			continue
		}
		ids = append(ids, n.ID)
		texts = append(texts, n.Text)
	}
	return document.TextUnit{
		ID:     para,
		Text:   document.EncodeRuns(ids, texts),
		Atomic: true,
	}
}
