// Package document defines the container capability shared by all supported
// document formats and the text-unit model consumed by the translation
// pipeline.
//
// A container format package (docxfile, pptxfile) opens a file into a Tree:
// an ordered list of text-bearing nodes, each addressed by a stable,
// deterministic identifier, plus the ability to write translated text back
// by identifier and to serialize the mutated copy to a new path. Everything
// the tree does not expose as a text node (styling, layout, embedded
// objects) is preserved byte for byte.
//
// Identifier scheme: dot-separated structural path segments with zero-based
// indices. Examples:
//
//	body.p3.r1                            body paragraph 3, run 1
//	body.table0.row2.cell1.p0.r0          table cell paragraph run
//	section0.header.p0.r0                 section header
//	slide2.shape4.p0.r1                   presentation shape text
//	slide2.shape1.table.row0.cell1.p0.r0  slide table cell
//	slide2.notes.p0.r0                    speaker notes
//
// Two openings of the same unmodified file yield identical node IDs in
// identical order.
package document

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Node is one text-bearing location inside a document tree.
type Node struct {
	// ID is the stable run-level identifier.
	ID string
	// Text is the current text content (may be empty).
	Text string
	// Para is the identifier of the enclosing paragraph. Runs that share
	// a Para belong to the same paragraph and may be grouped into a
	// single translation unit.
	Para string
}

// Tree is the container capability: an opened document exposing its text
// nodes for extraction and accepting text replacement by node ID.
type Tree interface {
	// Kind reports the container format ("docx" or "pptx").
	Kind() string
	// Nodes returns all text-bearing nodes in canonical traversal order.
	// The returned slice is owned by the tree and must not be modified.
	Nodes() []Node
	// Apply replaces the text of the node with the given ID. Formatting
	// properties of the node are untouched. Returns an error if the ID
	// does not exist in the tree.
	Apply(id, text string) error
	// Save serializes the (possibly mutated) tree to path. The source
	// file is never modified.
	Save(path string) error
}

// Opener opens a document file into a Tree.
type Opener func(path string) (Tree, error)

// TextUnit is one translatable unit handed to the segmenter. A unit is
// either a single run, or a whole multi-run paragraph encoded with run
// markup (see EncodeRuns) that must be translated as one piece.
type TextUnit struct {
	// ID is the unit identifier: a run ID for single-run units, the
	// paragraph ID for multi-run units.
	ID string
	// Text is the original text content; non-empty after trimming.
	Text string
	// Atomic marks a multi-run unit carrying run markup. Atomic units are
	// never segmented so the markup survives the provider round trip.
	Atomic bool
}

// UnsupportedTypeError reports a file extension no container format claims.
type UnsupportedTypeError struct {
	Path string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q: expected .docx or .pptx", filepath.Ext(e.Path))
}

// Open dispatches to the container format matching the file extension.
// The openers map is keyed by extension without the dot ("docx", "pptx").
func Open(path string, openers map[string]Opener) (Tree, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	open, ok := openers[ext]
	if !ok {
		return nil, &UnsupportedTypeError{Path: path}
	}
	return open(path)
}
