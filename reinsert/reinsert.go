// Package reinsert collects translated fragments and writes completed
// units back into the document tree.
//
// Fragments accumulate in a buffer keyed by unit ID with one slot per
// ordinal. A unit is applied only when every slot is filled; partially
// translated units keep their original text. Applying the same buffer
// twice yields the same document.
package reinsert

import (
	"fmt"
	"sort"

	"github.com/transdoc-io/transdoc/document"
	"github.com/transdoc-io/transdoc/segment"
)

type unitBuf struct {
	atomic bool
	want   int
	texts  map[int]string
}

// Buffer accumulates translated fragments until their units are complete.
type Buffer struct {
	units map[string]*unitBuf
	order []string
}

// NewBuffer sizes the buffer from the batch plan so completeness is known
// per unit.
func NewBuffer(units []document.TextUnit, batches []segment.Batch) *Buffer {
	b := &Buffer{units: make(map[string]*unitBuf)}
	atomic := make(map[string]bool, len(units))
	for _, u := range units {
		atomic[u.ID] = u.Atomic
	}
	for _, batch := range batches {
		for _, f := range batch.Fragments {
			ub := b.units[f.UnitID]
			if ub == nil {
				ub = &unitBuf{atomic: atomic[f.UnitID], texts: make(map[int]string)}
				b.units[f.UnitID] = ub
				b.order = append(b.order, f.UnitID)
			}
			if f.Ordinal+1 > ub.want {
				ub.want = f.Ordinal + 1
			}
		}
	}
	return b
}

// Put stores one translated fragment. Re-putting an ordinal overwrites it.
func (b *Buffer) Put(unitID string, ordinal int, text string) error {
	ub, ok := b.units[unitID]
	if !ok {
		return fmt.Errorf("unknown unit %q", unitID)
	}
	if ordinal < 0 || ordinal >= ub.want {
		return fmt.Errorf("unit %q has no fragment ordinal %d", unitID, ordinal)
	}
	ub.texts[ordinal] = text
	return nil
}

// Complete reports whether every fragment of the unit has arrived.
func (b *Buffer) Complete(unitID string) bool {
	ub, ok := b.units[unitID]
	return ok && len(ub.texts) == ub.want
}

// CompletedUnits counts units with all fragments buffered.
func (b *Buffer) CompletedUnits() int {
	n := 0
	for _, id := range b.order {
		if b.Complete(id) {
			n++
		}
	}
	return n
}

// join concatenates the buffered fragments in ordinal order.
func (ub *unitBuf) join() string {
	ords := make([]int, 0, len(ub.texts))
	for o := range ub.texts {
		ords = append(ords, o)
	}
	sort.Ints(ords)
	out := ""
	for _, o := range ords {
		out += ub.texts[o]
	}
	return out
}

// Failure is a unit that could not be applied.
type Failure struct {
	UnitID string
	Err    error
}

// Outcome summarizes an Apply pass.
type Outcome struct {
	Applied  int
	Retained int // units kept in the source language
	Failures []Failure
}

// Apply writes every complete unit into tree. Incomplete units are
// retained untouched; atomic units whose tagged markup came back broken
// are retained and reported.
func Apply(tree document.Tree, b *Buffer) Outcome {
	var out Outcome
	runsByPara := paraRuns(tree)

	for _, id := range b.order {
		ub := b.units[id]
		if len(ub.texts) != ub.want {
			out.Retained++
			continue
		}
		joined := ub.join()

		if !ub.atomic {
			if err := tree.Apply(id, joined); err != nil {
				out.Retained++
				out.Failures = append(out.Failures, Failure{UnitID: id, Err: err})
				continue
			}
			out.Applied++
			continue
		}

		perRun, err := document.DecodeRuns(joined, runsByPara[id])
		if err != nil {
			out.Retained++
			out.Failures = append(out.Failures, Failure{UnitID: id, Err: err})
			continue
		}
		applyErr := false
		for runID, text := range perRun {
			if err := tree.Apply(runID, text); err != nil {
				out.Failures = append(out.Failures, Failure{UnitID: id, Err: err})
				applyErr = true
				break
			}
		}
		if applyErr {
			out.Retained++
			continue
		}
		out.Applied++
	}
	return out
}

// paraRuns indexes run IDs by paragraph in tree order.
func paraRuns(tree document.Tree) map[string][]string {
	byPara := make(map[string][]string)
	for _, n := range tree.Nodes() {
		byPara[n.Para] = append(byPara[n.Para], n.ID)
	}
	return byPara
}
