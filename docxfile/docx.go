// Package docxfile implements the document container capability for Word
// (.docx) files.
//
// The package scans the WordprocessingML parts of the archive with a token
// decoder, recording the byte range of every run's character data so that
// translated text can be spliced back without disturbing any other byte of
// the document. Traversal order is fixed: body paragraphs in document
// order, then tables (row-major, cell-major), then headers, then footers.
//
// Excluded from extraction: hidden runs (w:vanish), field instruction text
// (w:instrText) and every run between a field's begin and end characters,
// deleted revision text (w:delText), and hyperlink/fldSimple content.
// Nested tables inside table cells are not walked.
package docxfile

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/transdoc-io/transdoc/document"
	"github.com/transdoc-io/transdoc/ooxml"
)

const documentPart = "word/document.xml"

// ref locates a node's character data inside the archive. Runs holding more
// than one w:t element keep the first range as the write target; the rest
// are blanked on Apply so the run's full text lives in one place.
type ref struct {
	part   string
	ranges []ooxml.Range
}

// File is an opened .docx document.
type File struct {
	c     *ooxml.Container
	nodes []document.Node
	refs  map[string]ref
}

// Open reads and scans a .docx file.
func Open(path string) (document.Tree, error) {
	c, err := ooxml.OpenContainer(path, func(name string) bool {
		if name == documentPart {
			return true
		}
		return ooxml.PartNumber(name, "word/header", ".xml") > 0 ||
			ooxml.PartNumber(name, "word/footer", ".xml") > 0
	})
	if err != nil {
		return nil, err
	}
	if c.Part(documentPart) == nil {
		return nil, fmt.Errorf("not a Word document: missing %s", documentPart)
	}

	f := &File{c: c, refs: make(map[string]ref)}
	if err := f.scanPart(documentPart, "body"); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", documentPart, err)
	}
	for i, name := range ooxml.NumberedParts(c.PartNames(), "word/header", ".xml") {
		if err := f.scanPart(name, fmt.Sprintf("section%d.header", i)); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	}
	for i, name := range ooxml.NumberedParts(c.PartNames(), "word/footer", ".xml") {
		if err := f.scanPart(name, fmt.Sprintf("section%d.footer", i)); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	}
	return f, nil
}

// Kind reports the container format.
func (f *File) Kind() string { return "docx" }

// Nodes returns all text nodes in canonical traversal order.
func (f *File) Nodes() []document.Node { return f.nodes }

// Apply replaces the text of the run with the given ID.
func (f *File) Apply(id, text string) error {
	r, ok := f.refs[id]
	if !ok {
		return fmt.Errorf("no text node %q in document", id)
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
// WordprocessingML scanning
// ---------------------------------------------------------------------------

// scanned run content, staged so body paragraphs can be emitted ahead of
// tables regardless of their interleaving in the XML.
type runText struct {
	id     string
	para   string
	text   string
	ranges []ooxml.Range
}

type partScan struct {
	f      *File
	part   string
	raw    []byte
	dec    *xml.Decoder
	paras  []runText
	tables []runText
}

func (f *File) scanPart(part, prefix string) error {
	raw := f.c.Part(part)
	s := &partScan{
		f:    f,
		part: part,
		raw:  raw,
		dec:  xml.NewDecoder(bytes.NewReader(raw)),
	}
	if err := s.scanRoot(prefix); err != nil {
		return err
	}
	for _, r := range append(s.paras, s.tables...) {
		f.nodes = append(f.nodes, document.Node{ID: r.id, Text: r.text, Para: r.para})
		f.refs[r.id] = ref{part: part, ranges: r.ranges}
	}
	return nil
}

// scanRoot walks the children of the part root (w:body, w:hdr or w:ftr).
func (s *partScan) scanRoot(prefix string) error {
	paraIdx, tblIdx := 0, 0
	inBody := false
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
		case start.Name.Local == "document", start.Name.Local == "body",
			start.Name.Local == "hdr", start.Name.Local == "ftr":
			inBody = start.Name.Local != "document"
		case inBody && start.Name.Local == "p":
			if err := s.scanParagraph(fmt.Sprintf("%s.p%d", prefix, paraIdx), false); err != nil {
				return err
			}
			paraIdx++
		case inBody && start.Name.Local == "tbl":
			if err := s.scanTable(fmt.Sprintf("%s.table%d", prefix, tblIdx)); err != nil {
				return err
			}
			tblIdx++
		default:
			if err := s.dec.Skip(); err != nil {
				return err
			}
		}
	}
}

// scanParagraph walks a w:p element, collecting its direct runs. When
// inTable is true the collected runs go to the tables stage.
func (s *partScan) scanParagraph(paraID string, inTable bool) error {
	runIdx := 0
	fldDepth := 0
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "r" {
				run, delta, err := s.scanRun(fmt.Sprintf("%s.r%d", paraID, runIdx), paraID, fldDepth > 0)
				if err != nil {
					return err
				}
				fldDepth += delta
				if run != nil {
					if inTable {
						s.tables = append(s.tables, *run)
					} else {
						s.paras = append(s.paras, *run)
					}
				}
				runIdx++
				continue
			}
			// Hyperlinks, simple fields, bookmarks, properties: not runs.
			if err := s.dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// scanRun walks a w:r element. It returns nil when the run is hidden, part
// of a field, or empty; delta reports field begin/end transitions seen in
// the run so the paragraph can track field depth.
func (s *partScan) scanRun(id, paraID string, inField bool) (*runText, int, error) {
	var (
		text   strings.Builder
		ranges []ooxml.Range
		hidden bool
		field  bool
		delta  int
	)
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return nil, delta, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				content, rng, hasRange, err := ooxml.TextRange(s.dec, s.raw)
				if err != nil {
					return nil, delta, err
				}
				text.WriteString(content)
				if hasRange {
					ranges = append(ranges, rng)
				}
			case "rPr":
				h, err := s.scanRunProps()
				if err != nil {
					return nil, delta, err
				}
				hidden = hidden || h
			case "instrText":
				field = true
				if err := s.dec.Skip(); err != nil {
					return nil, delta, err
				}
			case "fldChar":
				switch attrValue(t, "fldCharType") {
				case "begin":
					delta++
				case "end":
					delta--
				}
				if err := s.dec.Skip(); err != nil {
					return nil, delta, err
				}
			default:
				// delText, br, tab, drawings: nothing translatable.
				if err := s.dec.Skip(); err != nil {
					return nil, delta, err
				}
			}
		case xml.EndElement:
			if hidden || field || inField || delta != 0 || len(ranges) == 0 {
				return nil, delta, nil
			}
			return &runText{id: id, para: paraID, text: text.String(), ranges: ranges}, delta, nil
		}
	}
}

// scanRunProps reads a w:rPr element and reports whether it hides the run.
func (s *partScan) scanRunProps() (bool, error) {
	hidden := false
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return false, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "vanish" && attrValue(t, "val") != "false" && attrValue(t, "val") != "0" {
				hidden = true
			}
			if err := s.dec.Skip(); err != nil {
				return false, err
			}
		case xml.EndElement:
			return hidden, nil
		}
	}
}

// scanTable walks a w:tbl element row-major. Nested tables are skipped.
func (s *partScan) scanTable(tblID string) error {
	rowIdx := 0
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
			if err := s.dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (s *partScan) scanRow(rowID string) error {
	cellIdx := 0
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
			if err := s.dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (s *partScan) scanCell(cellID string) error {
	paraIdx := 0
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				if err := s.scanParagraph(fmt.Sprintf("%s.p%d", cellID, paraIdx), true); err != nil {
					return err
				}
				paraIdx++
				continue
			}
			if err := s.dec.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func attrValue(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
