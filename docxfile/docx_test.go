package docxfile

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/transdoc-io/transdoc/document"
)

const wNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func writeDocx(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing fixture: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing file: %v", err)
	}
	return path
}

func readEntry(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening entry: %v", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("reading entry: %v", err)
		}
		return string(data)
	}
	t.Fatalf("entry %s not found in %s", name, path)
	return ""
}

const fixtureBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document ` + wNS + `><w:body>` +
	`<w:p><w:r><w:t>Hello world.</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t xml:space="preserve">Bold </w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>middle</w:t></w:r></w:p>` +
	`<w:p><w:r><w:rPr><w:vanish/></w:rPr><w:t>invisible</w:t></w:r></w:p>` +
	`<w:tbl><w:tr>` +
	`<w:tc><w:p><w:r><w:t>Cell A</w:t></w:r></w:p></w:tc>` +
	`<w:tc><w:p><w:r><w:t>Cell B</w:t></w:r></w:p></w:tc>` +
	`</w:tr></w:tbl>` +
	`<w:p>` +
	`<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
	`<w:r><w:instrText>PAGE</w:instrText></w:r>` +
	`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
	`<w:r><w:t>1</w:t></w:r>` +
	`<w:r><w:fldChar w:fldCharType="end"/></w:r>` +
	`</w:p>` +
	`</w:body></w:document>`

func fixtureEntries() map[string]string {
	return map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   fixtureBody,
		"word/styles.xml":     `<w:styles ` + wNS + `/>`,
	}
}

func nodeIDs(tree document.Tree) []string {
	var ids []string
	for _, n := range tree.Nodes() {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestOpenTraversalOrderAndIDs(t *testing.T) {
	path := writeDocx(t, fixtureEntries())
	tree, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if tree.Kind() != "docx" {
		t.Fatalf("Kind = %q, want docx", tree.Kind())
	}

	want := []string{
		"body.p0.r0",
		"body.p1.r0",
		"body.p1.r1",
		"body.table0.row0.cell0.p0.r0",
		"body.table0.row0.cell1.p0.r0",
	}
	got := nodeIDs(tree)
	if len(got) != len(want) {
		t.Fatalf("node IDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("node %d = %q, want %q", i, got[i], want[i])
		}
	}

	nodes := tree.Nodes()
	if nodes[0].Text != "Hello world." {
		t.Fatalf("node 0 text = %q", nodes[0].Text)
	}
	if nodes[1].Text != "Bold " || nodes[2].Text != "middle" {
		t.Fatalf("multi-run texts = %q, %q", nodes[1].Text, nodes[2].Text)
	}
	if nodes[1].Para != "body.p1" || nodes[2].Para != "body.p1" {
		t.Fatalf("runs of one paragraph disagree on Para: %q vs %q", nodes[1].Para, nodes[2].Para)
	}
	if nodes[3].Text != "Cell A" || nodes[4].Text != "Cell B" {
		t.Fatalf("cell texts = %q, %q", nodes[3].Text, nodes[4].Text)
	}
}

func TestOpenIsDeterministic(t *testing.T) {
	path := writeDocx(t, fixtureEntries())
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ia, ib := nodeIDs(a), nodeIDs(b)
	if len(ia) != len(ib) {
		t.Fatalf("openings disagree: %v vs %v", ia, ib)
	}
	for i := range ia {
		if ia[i] != ib[i] {
			t.Fatalf("openings disagree at %d: %q vs %q", i, ia[i], ib[i])
		}
	}
}

func TestHiddenAndFieldRunsExcluded(t *testing.T) {
	path := writeDocx(t, fixtureEntries())
	tree, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, n := range tree.Nodes() {
		if n.Text == "invisible" {
			t.Fatal("hidden run was extracted")
		}
		if n.Text == "PAGE" || n.Text == "1" {
			t.Fatalf("field content %q was extracted", n.Text)
		}
	}
}

func TestHeadersAndFooters(t *testing.T) {
	entries := fixtureEntries()
	entries["word/header1.xml"] = `<w:hdr ` + wNS + `><w:p><w:r><w:t>Top line</w:t></w:r></w:p></w:hdr>`
	entries["word/footer1.xml"] = `<w:ftr ` + wNS + `><w:p><w:r><w:t>Bottom line</w:t></w:r></w:p></w:ftr>`
	path := writeDocx(t, entries)

	tree, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	texts := make(map[string]string)
	for _, n := range tree.Nodes() {
		texts[n.ID] = n.Text
	}
	if texts["section0.header.p0.r0"] != "Top line" {
		t.Fatalf("header node missing: %v", texts)
	}
	if texts["section0.footer.p0.r0"] != "Bottom line" {
		t.Fatalf("footer node missing: %v", texts)
	}
}

func TestApplySaveRoundTrip(t *testing.T) {
	path := writeDocx(t, fixtureEntries())
	tree, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := tree.Apply("body.p0.r0", "Bonjour le monde."); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := tree.Apply("body.p9.r9", "x"); err == nil {
		t.Fatal("Apply accepted an unknown node ID")
	}

	out := filepath.Join(t.TempDir(), "out.docx")
	if err := tree.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}

	doc := readEntry(t, out, "word/document.xml")
	if !strings.Contains(doc, "<w:t>Bonjour le monde.</w:t>") {
		t.Fatalf("translation not spliced: %q", doc)
	}
	if !strings.Contains(doc, `<w:t xml:space="preserve">Bold </w:t>`) {
		t.Fatalf("untouched run bytes changed: %q", doc)
	}
	if readEntry(t, out, "word/styles.xml") != fixtureEntries()["word/styles.xml"] {
		t.Fatal("untouched part changed")
	}

	reread, err := Open(out)
	if err != nil {
		t.Fatalf("reopening output: %v", err)
	}
	if reread.Nodes()[0].Text != "Bonjour le monde." {
		t.Fatalf("reopened text = %q", reread.Nodes()[0].Text)
	}
}

func TestApplyMergesMultiTextRuns(t *testing.T) {
	entries := fixtureEntries()
	entries["word/document.xml"] = `<?xml version="1.0"?><w:document ` + wNS + `><w:body>` +
		`<w:p><w:r><w:t>first</w:t><w:t>second</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	path := writeDocx(t, entries)

	tree, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := tree.Nodes()[0].Text; got != "firstsecond" {
		t.Fatalf("run text = %q, want concatenation", got)
	}
	if err := tree.Apply("body.p0.r0", "merged"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	out := filepath.Join(t.TempDir(), "out.docx")
	if err := tree.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	doc := readEntry(t, out, "word/document.xml")
	if !strings.Contains(doc, "<w:t>merged</w:t><w:t></w:t>") {
		t.Fatalf("extra w:t not blanked: %q", doc)
	}
}

func TestOpenRejectsNonWordArchive(t *testing.T) {
	path := writeDocx(t, map[string]string{"[Content_Types].xml": `<Types/>`})
	if _, err := Open(path); err == nil {
		t.Fatal("expected an error for a zip without word/document.xml")
	}
}
