// Package diagram repairs generated flowchart source into text a strict
// flowchart parser accepts.
package diagram

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultHeader is prepended when the source lacks a graph header.
const DefaultHeader = "graph TD"

// ErrNotDiagram is returned by SanitizeStrict for text that is not a flowchart.
var ErrNotDiagram = errors.New("text does not look like a flowchart")

var (
	headerRe    = regexp.MustCompile(`(?i)^(graph|flowchart)(?:\s+(td|tb|bt|rl|lr))?\s*;?\s*(.*)$`)
	subgraphRe  = regexp.MustCompile(`^(\s*)subgraph\s+(.*?)[\s;]*$`)
	openerRe    = regexp.MustCompile(`^\s*subgraph\b`)
	nodeDeclRe  = regexp.MustCompile(`^\s*[A-Za-z][\w-]*\s*[\[\(\{>]`)
	directiveRe = regexp.MustCompile(`^\s*(%%|classDef\b|class\b|style\b|linkStyle\b|click\b|direction\b)`)

	// A closing bracket glued to the next statement.
	gluedRe    = regexp.MustCompile(`([\]\)\}])[ \t]*([A-Za-z]\w*[ \t]*(?:[\[\(\{]|-->|---|-\.|==>))`)
	gluedEndRe = regexp.MustCompile(`([\]\)\}])[ \t]*(end)[ \t;]*$`)

	// The leading group keeps "---" and "===" links from opening a label.
	dottedLabelRe = regexp.MustCompile(`(^|[^-<])-\.[ \t]*([^.|>\-\s][^|]*?)[ \t]*\.->`)
	solidLabelRe  = regexp.MustCompile(`(^|[^-<])--[ \t]+([^\-|>\s][^|]*?)[ \t]+-->`)
	thickLabelRe  = regexp.MustCompile(`(^|[^=<])==[ \t]+([^=|>\s][^|]*?)[ \t]+==>`)

	bracketLabelRe = regexp.MustCompile(`\[[^\[\]]*\]`)
)

// edgeOperators mark a line as an edge statement.
var edgeOperators = []string{"-->", "---", "-.-", "-.->", "==>", "===", "--o", "--x", "<-->", "~~~"}

// Sanitize repairs raw flowchart text. The result starts with a graph header,
// has balanced subgraph blocks and ends with exactly one newline. Sanitize is
// idempotent.
func Sanitize(raw string) string {
	lines := normalizeHeader(splitLines(raw))
	// Labels are wrapped before splitting: a wrapped arrow can expose a glued
	// statement.
	for i := 1; i < len(lines); i++ {
		lines[i] = wrapEdgeLabels(lines[i])
	}
	lines = splitGlued(lines)

	for i := 1; i < len(lines); i++ {
		line := quoteGroupTitle(lines[i])
		line = stripLabelCommas(line)
		lines[i] = terminate(line)
	}

	lines = balanceGroups(lines)
	return strings.TrimRight(strings.Join(lines, "\n"), " \t\n") + "\n"
}

// SanitizeStrict is Sanitize for callers that require a diagram: it fails with
// ErrNotDiagram when raw has no header, node or edge.
func SanitizeStrict(raw string) (string, error) {
	if !looksLikeDiagram(raw) {
		return "", ErrNotDiagram
	}
	return Sanitize(raw), nil
}

func looksLikeDiagram(raw string) bool {
	for _, line := range splitLines(raw) {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if isHeaderWord(t) || isEdge(t) || nodeDeclRe.MatchString(t) || openerRe.MatchString(t) {
			return true
		}
	}
	return false
}

func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.Trim(raw, "\n")
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return lines
}

// isHeaderWord reports whether t starts with a graph keyword as a whole word.
func isHeaderWord(t string) bool {
	lower := strings.ToLower(t)
	for _, kw := range []string{"graph", "flowchart"} {
		if lower == kw || strings.HasPrefix(lower, kw+" ") || strings.HasPrefix(lower, kw+";") {
			return true
		}
	}
	return false
}

// normalizeHeader makes the first non-blank line a "<keyword> <direction>"
// header. Statements sharing the header line are moved below it.
func normalizeHeader(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return []string{DefaultHeader}
	}

	first := strings.TrimSpace(lines[0])
	if !isHeaderWord(first) {
		return append([]string{DefaultHeader}, lines...)
	}
	m := headerRe.FindStringSubmatch(first)
	if m == nil {
		return append([]string{DefaultHeader}, lines...)
	}
	dir := strings.ToUpper(m[2])
	if dir == "" {
		dir = "TD"
	}
	out := []string{strings.ToLower(m[1]) + " " + dir}
	if rest := strings.TrimSpace(m[3]); rest != "" {
		out = append(out, rest)
	}
	return append(out, lines[1:]...)
}

// splitGlued breaks lines where a statement starts right after a node's closing
// bracket.
func splitGlued(lines []string) []string {
	out := make([]string, 0, len(lines))
	out = append(out, lines[0])
	for _, line := range lines[1:] {
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		line = gluedRe.ReplaceAllString(line, "$1\n"+indent+"$2")
		line = gluedEndRe.ReplaceAllString(line, "$1\n"+indent+"$2")
		out = append(out, strings.Split(line, "\n")...)
	}
	return out
}

// quoteGroupTitle quotes a subgraph title that carries a parenthesized
// qualifier and drops any trailing terminator.
func quoteGroupTitle(line string) string {
	m := subgraphRe.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	indent, title := m[1], m[2]
	if strings.Contains(title, "(") && !strings.Contains(title, "[") && !isQuoted(title) {
		title = `"` + strings.ReplaceAll(title, `"`, "'") + `"`
	}
	return indent + "subgraph " + title
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' && !strings.Contains(s[1:len(s)-1], `"`)
}

// wrapEdgeLabels rewrites bare inline edge labels into the pipe form, e.g.
// "A -.calls.-> B" becomes "A -.->|calls| B". Matches consume the character
// before the arrow, so adjacent arrows take more than one pass.
func wrapEdgeLabels(line string) string {
	for {
		next := dottedLabelRe.ReplaceAllString(line, "${1}-.->|$2|")
		next = solidLabelRe.ReplaceAllString(next, "${1}-->|$2|")
		next = thickLabelRe.ReplaceAllString(next, "${1}==>|$2|")
		if next == line {
			return line
		}
		line = next
	}
}

func stripLabelCommas(line string) string {
	return bracketLabelRe.ReplaceAllStringFunc(line, func(label string) string {
		return strings.ReplaceAll(label, ",", "")
	})
}

func isEdge(line string) bool {
	for _, op := range edgeOperators {
		if strings.Contains(line, op) {
			return true
		}
	}
	return false
}

// terminate ends edge statements with exactly one ';' and strips it from nodes
// and group headers and closers. Blank lines and directives are left alone.
func terminate(line string) string {
	if strings.TrimSpace(line) == "" || directiveRe.MatchString(line) {
		return line
	}
	trimmed := strings.TrimRight(line, " \t;")
	if openerRe.MatchString(line) {
		return trimmed
	}
	if isEdge(line) {
		return trimmed + ";"
	}
	return trimmed
}

func isCloser(line string) bool {
	return strings.TrimSpace(line) == "end"
}

// balanceGroups drops closers with no open group and appends the closers
// missing at the end.
func balanceGroups(lines []string) []string {
	out := make([]string, 0, len(lines))
	depth := 0
	for _, line := range lines {
		switch {
		case openerRe.MatchString(line):
			depth++
		case isCloser(line):
			if depth == 0 {
				continue
			}
			depth--
		}
		out = append(out, line)
	}
	for ; depth > 0; depth-- {
		out = append(out, "end")
	}
	return out
}
