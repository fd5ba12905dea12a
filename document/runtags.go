package document

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Multi-run paragraphs are sent to the provider as one unit so the whole
// sentence is translated coherently even when formatting splits it across
// runs. The runs are wrapped in <run id="..."> tags; the provider is
// instructed to preserve the tags and translate only their content.

var runTagPattern = regexp.MustCompile(`(?s)<run id="([^"]+)">(.*?)</run>`)

// EncodeRuns renders ordered (id, text) run pairs as tagged markup.
func EncodeRuns(ids, texts []string) string {
	var b strings.Builder
	for i, id := range ids {
		b.WriteString(`<run id="`)
		b.WriteString(id)
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(texts[i]))
		b.WriteString(`</run>`)
	}
	return b.String()
}

// DecodeRuns parses translated run markup back into an id → text map.
// The translated markup must contain exactly the expected run IDs, each
// once, with nothing but whitespace between tags.
func DecodeRuns(translated string, expected []string) (map[string]string, error) {
	want := make(map[string]bool, len(expected))
	for _, id := range expected {
		want[id] = true
	}

	out := make(map[string]string, len(expected))
	cursor := 0
	for _, m := range runTagPattern.FindAllStringSubmatchIndex(translated, -1) {
		if gap := translated[cursor:m[0]]; strings.TrimSpace(gap) != "" {
			return nil, fmt.Errorf("unexpected content outside run tags: %q", gap)
		}
		id := translated[m[2]:m[3]]
		if !want[id] {
			return nil, fmt.Errorf("unknown run id %q in translated markup", id)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("duplicated run id %q in translated markup", id)
		}
		out[id] = html.UnescapeString(translated[m[4]:m[5]])
		cursor = m[1]
	}
	if tail := translated[cursor:]; strings.TrimSpace(tail) != "" {
		return nil, fmt.Errorf("unexpected trailing content outside run tags: %q", tail)
	}
	if len(out) != len(expected) {
		var missing []string
		for _, id := range expected {
			if _, ok := out[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("translated markup missing runs: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
