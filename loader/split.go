package loader

import (
	"fmt"
	"regexp"
	"strings"
)

// Group is a header line and the lines grouped under it.
type Group struct {
	Header string
	Lines  []string
}

// Paragraph is an unindented header line and its body lines with one level
// of indentation removed.
type Paragraph struct {
	Header string
	Line   int // 1-based line of the header within its block
	Body   []string
}

// Section is one bracketed section of a chapter document.
type Section struct {
	Header string
	Body   string
}

// sectionHeaderPattern matches "<<name>>" or "<<name:qualifier>>" on its own line.
var sectionHeaderPattern = regexp.MustCompile(`(?m)^[ \t]*<<([^<>\n]+)>>[ \t]*$`)

// SplitToLines splits text on newlines, trims each line, and drops empty ones.
func SplitToLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// MapByHeader groups lines under the most recent line satisfying isHeader.
// Lines before the first header form a group with an empty header when
// allowHeaderless is set and are an error otherwise.
func MapByHeader(lines []string, isHeader func(string) bool, allowHeaderless bool) ([]Group, error) {
	var groups []Group
	for i, l := range lines {
		if isHeader(l) {
			groups = append(groups, Group{Header: l})
			continue
		}
		if len(groups) == 0 {
			if !allowHeaderless {
				return nil, fmt.Errorf("line %d: %q appears before any header", i+1, l)
			}
			groups = append(groups, Group{})
		}
		g := &groups[len(groups)-1]
		g.Lines = append(g.Lines, l)
	}
	return groups, nil
}

// SplitToParagraph splits raw (untrimmed) lines into paragraphs. A line
// indented by one tab or four spaces belongs to the preceding unindented
// line; the indent is stripped once, so nested paragraphs can be split again.
// Blank lines are skipped.
func SplitToParagraph(rawLines []string) ([]Paragraph, error) {
	var paras []Paragraph
	for i, raw := range rawLines {
		raw = strings.TrimRight(raw, " \t\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if body, ok := stripIndent(raw); ok {
			if len(paras) == 0 {
				return nil, fmt.Errorf("line %d: indented line %q has no header", i+1, strings.TrimSpace(raw))
			}
			p := &paras[len(paras)-1]
			p.Body = append(p.Body, body)
			continue
		}
		if raw != strings.TrimLeft(raw, " \t") {
			return nil, fmt.Errorf("line %d: indentation must be one tab or four spaces", i+1)
		}
		paras = append(paras, Paragraph{Header: raw, Line: i + 1})
	}
	return paras, nil
}

// stripIndent removes exactly one indent level from an indented line.
func stripIndent(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "\t"):
		return line[1:], true
	case strings.HasPrefix(line, "    "):
		return line[4:], true
	}
	return line, false
}

// SplitByHeader splits a whole document into sections by the bracketed
// header pattern. Non-blank text before the first header is an error.
func SplitByHeader(text string, pattern *regexp.Regexp) ([]Section, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	locs := pattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		if strings.TrimSpace(text) != "" {
			return nil, fmt.Errorf("document has no section headers")
		}
		return nil, nil
	}
	if lead := strings.TrimSpace(text[:locs[0][0]]); lead != "" {
		return nil, fmt.Errorf("text before first section header: %q", firstLine(lead))
	}

	sections := make([]Section, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections = append(sections, Section{
			Header: strings.TrimSpace(text[loc[2]:loc[3]]),
			Body:   strings.Trim(text[loc[1]:end], "\n"),
		})
	}
	return sections, nil
}

// splitCSV splits a comma-separated line and trims every field.
func splitCSV(line string) []string {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// splitList splits a comma list and drops empty entries.
func splitList(s string) []string {
	var out []string
	for _, f := range splitCSV(s) {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// splitKeyValue splits "key: value" at the first colon.
func splitKeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// numberedLine is a trimmed non-empty line with its 1-based position.
type numberedLine struct {
	n    int
	text string
}

// numberLines is SplitToLines that remembers where each line came from.
func numberLines(text string) []numberedLine {
	var out []numberedLine
	for i, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, numberedLine{n: i + 1, text: l})
		}
	}
	return out
}
