// Package segment splits text units that exceed the character budget and
// packs the resulting fragments into translation batches.
//
// Splitting is hierarchical: sentence boundaries first, then clause
// boundaries, then whitespace, and finally raw rune chunks for unbroken
// scripts without word separators. Every boundary keeps its trailing
// delimiter with the left piece, so joining a unit's fragments in ordinal
// order reproduces the original text exactly.
package segment

import (
	"regexp"
	"unicode/utf8"

	"github.com/transdoc-io/transdoc/document"
)

// Fragment is a batchable slice of a text unit.
type Fragment struct {
	UnitID  string
	Ordinal int
	Text    string
	// Forced marks fragments cut below sentence granularity.
	Forced bool
	// Last marks the final fragment of its unit.
	Last bool
}

// Batch groups fragments whose combined size fits the character budget.
type Batch struct {
	Index     int
	Fragments []Fragment
	Chars     int
}

// Stats summarizes a segmentation pass.
type Stats struct {
	Units       int
	Fragments   int
	ForcedCuts  int
	AtomicUnits int
}

// Sentence boundaries: terminal punctuation plus closing quotes, followed
// by whitespace. Fullwidth terminators end a sentence without one.
var sentencePat = regexp.MustCompile(`[.!?]+[”’"')\]」』]*\s+|[\x{3002}\x{FF01}\x{FF1F}]+[”’"')\]」』]*\s*`)

// Clause boundaries: comma, semicolon, colon and their fullwidth and
// ideographic forms.
var clausePat = regexp.MustCompile(`[,;:]\s+|[\x{3001}\x{FF0C}\x{FF1B}\x{FF1A}]\s*`)

// Whitespace-preserving word tokens.
var wordPat = regexp.MustCompile(`\S+\s*|\s+`)

// Plan segments the units and packs them into batches no larger than
// budget characters. Atomic units are never split; an atomic unit larger
// than the budget travels alone in its own batch.
func Plan(units []document.TextUnit, budget int) ([]Batch, Stats) {
	var frags []Fragment
	stats := Stats{Units: len(units)}

	for _, u := range units {
		fs := Split(u, budget)
		for _, f := range fs {
			if f.Forced {
				stats.ForcedCuts++
			}
		}
		if u.Atomic {
			stats.AtomicUnits++
		}
		frags = append(frags, fs...)
	}
	stats.Fragments = len(frags)

	var batches []Batch
	cur := Batch{Index: 0}
	for _, f := range frags {
		n := utf8.RuneCountInString(f.Text)
		if len(cur.Fragments) > 0 && cur.Chars+n > budget {
			batches = append(batches, cur)
			cur = Batch{Index: len(batches)}
		}
		cur.Fragments = append(cur.Fragments, f)
		cur.Chars += n
	}
	if len(cur.Fragments) > 0 {
		batches = append(batches, cur)
	}
	return batches, stats
}

// Split cuts one unit into fragments that each fit the budget, except for
// atomic units and unbreakable text, which may exceed it.
func Split(u document.TextUnit, budget int) []Fragment {
	if u.Atomic || utf8.RuneCountInString(u.Text) <= budget {
		return []Fragment{{UnitID: u.ID, Text: u.Text, Last: true}}
	}

	merged := pack(cut(u.Text, budget, 0), budget)
	frags := make([]Fragment, len(merged))
	for i, p := range merged {
		frags[i] = Fragment{UnitID: u.ID, Ordinal: i, Text: p.text, Forced: p.forced}
	}
	frags[len(frags)-1].Last = true
	return frags
}

// Join reassembles fragment texts in ordinal order.
func Join(frags []Fragment) string {
	out := ""
	for _, f := range frags {
		out += f.Text
	}
	return out
}

// ---------------------------------------------------------------------------
// hierarchical cutting
// ---------------------------------------------------------------------------

type piece struct {
	text   string
	forced bool
}

// cut splits text into minimal pieces that fit the budget, descending one
// granularity level at a time. level 0 is sentences, 1 clauses, 2 words,
// 3 raw runes.
func cut(text string, budget, level int) []piece {
	if utf8.RuneCountInString(text) <= budget {
		return []piece{{text: text, forced: level > 1}}
	}
	switch level {
	case 0, 1:
		pat := sentencePat
		if level == 1 {
			pat = clausePat
		}
		parts := splitAfter(text, pat)
		if len(parts) == 1 {
			return cut(text, budget, level+1)
		}
		var out []piece
		for _, p := range parts {
			out = append(out, cut(p, budget, level+1)...)
		}
		return out
	case 2:
		parts := wordPat.FindAllString(text, -1)
		if len(parts) == 1 {
			return cut(text, budget, 3)
		}
		var out []piece
		for _, p := range parts {
			out = append(out, cut(p, budget, 3)...)
		}
		return out
	default:
		// No word separators left. Chunk by runes.
		var out []piece
		runes := []rune(text)
		for len(runes) > 0 {
			n := budget
			if n > len(runes) {
				n = len(runes)
			}
			out = append(out, piece{text: string(runes[:n]), forced: true})
			runes = runes[n:]
		}
		return out
	}
}

// splitAfter splits text after each match of pat, keeping the matched
// delimiter with the left piece.
func splitAfter(text string, pat *regexp.Regexp) []string {
	var parts []string
	last := 0
	for _, m := range pat.FindAllStringIndex(text, -1) {
		if m[1] == len(text) {
			break
		}
		parts = append(parts, text[last:m[1]])
		last = m[1]
	}
	if last < len(text) {
		parts = append(parts, text[last:])
	}
	return parts
}

// pack greedily merges adjacent pieces while the merge still fits the
// budget.
func pack(pieces []piece, budget int) []piece {
	var out []piece
	for _, p := range pieces {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if utf8.RuneCountInString(prev.text)+utf8.RuneCountInString(p.text) <= budget {
				prev.text += p.text
				prev.forced = prev.forced || p.forced
				continue
			}
		}
		out = append(out, p)
	}
	return out
}
