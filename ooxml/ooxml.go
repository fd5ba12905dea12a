// Package ooxml provides the zip-container plumbing shared by the Office
// Open XML format packages (docxfile, pptxfile): reading XML parts out of
// the archive, recording byte-range text replacements, and writing a copy
// of the archive in which only the replaced ranges differ.
//
// Replacement is surgical: translated text is spliced into the raw bytes of
// the part at the exact character-data range it replaces, so attribute
// order, namespaces, whitespace and every untouched part of the archive
// survive byte for byte. Untouched archive entries are copied in their
// original compressed form.
package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Range is a byte range [Start, End) inside the raw bytes of a part.
type Range struct {
	Start int64
	End   int64
}

type replacement struct {
	rng  Range
	text string
}

// Container is an opened OOXML archive with its scanned parts in memory.
type Container struct {
	path  string
	parts map[string][]byte
	// repl holds pending text replacements keyed by part name and node ID.
	// Keying by node ID makes re-applying the same translation a no-op
	// overwrite instead of a duplicate splice.
	repl map[string]map[string]replacement
}

// OpenContainer reads the archive at path, keeping the decompressed bytes
// of every part for which keep returns true.
func OpenContainer(path string, keep func(name string) bool) (*Container, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer zr.Close()

	c := &Container{
		path:  path,
		parts: make(map[string][]byte),
		repl:  make(map[string]map[string]replacement),
	}
	for _, f := range zr.File {
		if !keep(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening part %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading part %s: %w", f.Name, err)
		}
		c.parts[f.Name] = data
	}
	return c, nil
}

// Part returns the raw bytes of a scanned part, or nil if absent.
func (c *Container) Part(name string) []byte {
	return c.parts[name]
}

// PartNames returns the names of all scanned parts, sorted.
func (c *Container) PartNames() []string {
	names := make([]string, 0, len(c.parts))
	for name := range c.parts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetText records a pending replacement of the byte range rng in part with
// the XML-escaped form of text. Recording the same node ID again overwrites
// the previous pending value.
func (c *Container) SetText(part, nodeID string, rng Range, text string) {
	m := c.repl[part]
	if m == nil {
		m = make(map[string]replacement)
		c.repl[part] = m
	}
	m[nodeID] = replacement{rng: rng, text: text}
}

// Save writes a copy of the archive to dst with all pending replacements
// applied. Entries without replacements are copied raw (original
// compressed bytes); modified parts are rebuilt and recompressed with the
// entry's original method.
func (c *Container) Save(dst string) error {
	zr, err := zip.OpenReader(c.path)
	if err != nil {
		return fmt.Errorf("reopening %s: %w", c.path, err)
	}
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	zw := zip.NewWriter(out)

	for _, f := range zr.File {
		if len(c.repl[f.Name]) > 0 {
			content, err := c.spliced(f.Name)
			if err != nil {
				zw.Close()
				out.Close()
				return err
			}
			hdr := f.FileHeader
			w, err := zw.CreateHeader(&hdr)
			if err == nil {
				_, err = w.Write(content)
			}
			if err != nil {
				zw.Close()
				out.Close()
				return fmt.Errorf("writing part %s: %w", f.Name, err)
			}
			continue
		}

		w, err := zw.CreateRaw(&f.FileHeader)
		if err == nil {
			var r io.Reader
			r, err = f.OpenRaw()
			if err == nil {
				_, err = io.Copy(w, r)
			}
		}
		if err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("copying part %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalizing %s: %w", dst, err)
	}
	return out.Close()
}

// spliced rebuilds a part's bytes with its pending replacements applied.
func (c *Container) spliced(part string) ([]byte, error) {
	raw, ok := c.parts[part]
	if !ok {
		return nil, fmt.Errorf("part %s was not scanned", part)
	}

	repls := make([]replacement, 0, len(c.repl[part]))
	for _, r := range c.repl[part] {
		repls = append(repls, r)
	}
	sort.Slice(repls, func(i, j int) bool { return repls[i].rng.Start < repls[j].rng.Start })

	var buf bytes.Buffer
	cursor := int64(0)
	for _, r := range repls {
		if r.rng.Start < cursor || r.rng.End > int64(len(raw)) {
			return nil, fmt.Errorf("overlapping text replacement in part %s", part)
		}
		buf.Write(raw[cursor:r.rng.Start])
		if err := xml.EscapeText(&buf, []byte(r.text)); err != nil {
			return nil, fmt.Errorf("escaping replacement text: %w", err)
		}
		cursor = r.rng.End
	}
	buf.Write(raw[cursor:])
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------------
// XML scanning helpers
// ---------------------------------------------------------------------------

// TextRange consumes the content of a text element whose StartElement was
// just read from dec, returning the concatenated character data and the
// byte range it occupies in raw. hasRange is false for self-closing
// elements, which have no content range to splice into.
func TextRange(dec *xml.Decoder, raw []byte) (text string, rng Range, hasRange bool, err error) {
	start := dec.InputOffset()
	if start >= 2 && string(raw[start-2:start]) == "/>" {
		// Self-closing element: the decoder still synthesizes an EndElement.
		_, err = dec.Token()
		return "", Range{}, false, err
	}

	var sb strings.Builder
	end := start
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", Range{}, false, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
			end = dec.InputOffset()
		case xml.EndElement:
			return sb.String(), Range{Start: start, End: end}, true, nil
		}
	}
}

// Skip consumes tokens until the element whose StartElement was just read
// is closed.
func Skip(dec *xml.Decoder) error {
	return dec.Skip()
}

// NumberedParts filters names matching prefix<N>suffix and returns them
// sorted by N: "word/header2.xml" sorts after "word/header1.xml" and
// "ppt/slides/slide10.xml" after "ppt/slides/slide9.xml".
func NumberedParts(names []string, prefix, suffix string) []string {
	type numbered struct {
		name string
		n    int
	}
	var found []numbered
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		mid := name[len(prefix) : len(name)-len(suffix)]
		n, err := strconv.Atoi(mid)
		if err != nil {
			continue
		}
		found = append(found, numbered{name: name, n: n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.name
	}
	return out
}

// PartNumber extracts N from prefix<N>suffix, or -1 if name does not match.
func PartNumber(name, prefix, suffix string) int {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return -1
	}
	n, err := strconv.Atoi(name[len(prefix) : len(name)-len(suffix)])
	if err != nil {
		return -1
	}
	return n
}
