// Package pptxfile implements the document container capability for
// PowerPoint (.pptx) files.
//
// Slides are walked in slide order, shapes in the order they appear in the
// slide's shape tree, and each text frame paragraph by paragraph, run by
// run. Tables inside graphic frames contribute cell text row-major. The
// speaker-notes part of a slide is walked last, as one paragraph sequence
// spanning its text frames.
//
// Field placeholders (a:fld — slide numbers, dates) are excluded. Grouped
// shapes are counted but their nested content is not walked.
package pptxfile

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/transdoc-io/transdoc/document"
	"github.com/transdoc-io/transdoc/ooxml"
)

const (
	slidePrefix = "ppt/slides/slide"
	notesPrefix = "ppt/notesSlides/notesSlide"
)

type ref struct {
	part   string
	ranges []ooxml.Range
}

// File is an opened .pptx presentation.
type File struct {
	c     *ooxml.Container
	nodes []document.Node
	refs  map[string]ref
}

// Open reads and scans a .pptx file.
func Open(path string) (document.Tree, error) {
	c, err := ooxml.OpenContainer(path, func(name string) bool {
		return ooxml.PartNumber(name, slidePrefix, ".xml") > 0 ||
			ooxml.PartNumber(name, notesPrefix, ".xml") > 0
	})
	if err != nil {
		return nil, err
	}

	slides := ooxml.NumberedParts(c.PartNames(), slidePrefix, ".xml")
	if len(slides) == 0 {
		return nil, fmt.Errorf("not a PowerPoint presentation: no slide parts found")
	}

	f := &File{c: c, refs: make(map[string]ref)}
	for _, name := range slides {
		idx := ooxml.PartNumber(name, slidePrefix, ".xml") - 1

		s := &partScan{f: f, part: name, raw: c.Part(name)}
		if err := s.scanSlide(fmt.Sprintf("slide%d", idx)); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}

		notes := fmt.Sprintf("%s%d.xml", notesPrefix, idx+1)
		if c.Part(notes) != nil {
			n := &partScan{f: f, part: notes, raw: c.Part(notes)}
			if err := n.scanNotes(fmt.Sprintf("slide%d.notes", idx)); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", notes, err)
			}
		}
	}
	return f, nil
}

// Kind reports the container format.
func (f *File) Kind() string { return "pptx" }

// Nodes returns all text nodes in canonical traversal order.
func (f *File) Nodes() []document.Node { return f.nodes }

// Apply replaces the text of the run with the given ID.
func (f *File) Apply(id, text string) error {
	r, ok := f.refs[id]
	if !ok {
		return fmt.Errorf("no text node %q in presentation", id)
	}
	f.c.SetText(r.part, id, r.ranges[0], text)
	for i, extra := range r.ranges[1:] {
		f.c.SetText(r.part, fmt.Sprintf("%s#t%d", id, i+1), extra, "")
	}
	return nil
}

// Save writes the translated copy to path.
func (f *File) Save(path string) error { return f.c.Save(path) }

// ---------------------------------------------------------------------------
// DrawingML scanning
// ---------------------------------------------------------------------------

type partScan struct {
	f    *File
	part string
	raw  []byte
	dec  *xml.Decoder
}

// shape tree element names that consume a shape index, mirroring the order
// a shape enumeration of the slide would produce.
func isShapeElement(local string) bool {
	switch local {
	case "sp", "cxnSp", "pic", "graphicFrame", "grpSp":
		return true
	}
	return false
}

// scanSlide walks a slide part: shapes in shape-tree order.
func (s *partScan) scanSlide(prefix string) error {
	s.dec = xml.NewDecoder(bytes.NewReader(s.raw))
	shapeIdx := 0
	inTree := false
	for {
		tok, err := s.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch {
		case start.Name.Local == "spTree":
			inTree = true
		case inTree && start.Name.Local == "sp":
			if err := s.scanShape(fmt.Sprintf("%s.shape%d", prefix, shapeIdx)); err != nil {
				return err
			}
			shapeIdx++
		case inTree && start.Name.Local == "graphicFrame":
			if err := s.scanGraphicFrame(fmt.Sprintf("%s.shape%d", prefix, shapeIdx)); err != nil {
				return err
			}
			shapeIdx++
		case inTree && isShapeElement(start.Name.Local):
			shapeIdx++
			if err := s.dec.Skip(); err != nil {
				return err
			}
		case !inTree:
			// Descend toward the shape tree.
		default:
			if err := s.dec.Skip(); err != nil {
				return err
			}
		}
	}
}

// scanShape walks a p:sp element: its text body's paragraphs, if any.
func (s *partScan) scanShape(shapeID string) error {
	paraIdx := 0
	depth := 0
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				if err := s.scanParagraph(fmt.Sprintf("%s.p%d", shapeID, paraIdx)); err != nil {
					return err
				}
				paraIdx++
				continue
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

// scanGraphicFrame walks a p:graphicFrame, extracting table cell text when
// the frame holds an a:tbl.
func (s *partScan) scanGraphicFrame(shapeID string) error {
	depth := 0
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "tbl" {
				if err := s.scanTable(shapeID + ".table"); err != nil {
					return err
				}
				continue
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

func (s *partScan) scanTable(tblID string) error {
	rowIdx := 0
	depth := 0
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "tr" {
				if err := s.scanRow(fmt.Sprintf("%s.row%d", tblID, rowIdx)); err != nil {
					return err
				}
				rowIdx++
				continue
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

func (s *partScan) scanRow(rowID string) error {
	cellIdx := 0
	depth := 0
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "tc" {
				if err := s.scanCell(fmt.Sprintf("%s.cell%d", rowID, cellIdx)); err != nil {
					return err
				}
				cellIdx++
				continue
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

func (s *partScan) scanCell(cellID string) error {
	paraIdx := 0
	depth := 0
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				if err := s.scanParagraph(fmt.Sprintf("%s.p%d", cellID, paraIdx)); err != nil {
					return err
				}
				paraIdx++
				continue
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

// scanNotes walks a notes part as one paragraph sequence across all of its
// text frames.
func (s *partScan) scanNotes(prefix string) error {
	s.dec = xml.NewDecoder(bytes.NewReader(s.raw))
	paraIdx := 0
	for {
		tok, err := s.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local == "p" {
			if err := s.scanParagraph(fmt.Sprintf("%s.p%d", prefix, paraIdx)); err != nil {
				return err
			}
			paraIdx++
		}
	}
}

// scanParagraph walks an a:p element, collecting its direct a:r runs.
// Field placeholders (a:fld) are skipped.
func (s *partScan) scanParagraph(paraID string) error {
	runIdx := 0
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "r" {
				if err := s.scanRun(fmt.Sprintf("%s.r%d", paraID, runIdx), paraID); err != nil {
					return err
				}
				runIdx++
				continue
			}
			// a:fld, a:br, a:pPr, a:endParaRPr.
			if err := s.dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (s *partScan) scanRun(id, paraID string) error {
	var (
		text   bytes.Buffer
		ranges []ooxml.Range
	)
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				content, rng, hasRange, err := ooxml.TextRange(s.dec, s.raw)
				if err != nil {
					return err
				}
				text.WriteString(content)
				if hasRange {
					ranges = append(ranges, rng)
				}
				continue
			}
			if err := s.dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			if len(ranges) > 0 {
				s.f.nodes = append(s.f.nodes, document.Node{ID: id, Text: text.String(), Para: paraID})
				s.f.refs[id] = ref{part: s.part, ranges: ranges}
			}
			return nil
		}
	}
}
