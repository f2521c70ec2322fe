// Package markup implements the manuscript markup dialect: standard
// Markdown plus a change-tracking annotation grammar, citation syntax, and
// embedded math. Parse is total: malformed constructs never fail, they
// degrade to literal text byte-for-byte.
//
// The annotation grammar deliberately uses first-close-wins matching: the
// close marker ending an annotation is the first one after its open marker,
// so same-type nesting is not supported. "{++a {++b++} c++}" parses as one
// addition spanning "a {++b" followed by the literal text " c++}". Comment
// bodies are the one exception and use depth-aware scanning, because a
// comment may contain a nested reply written with the same token pair.
package markup

import (
	"regexp"
	"strings"

	"github.com/quirelab/quire/core/doc"
)

// Options configures parsing and serialization. A zero value is usable.
// Conversions stay referentially transparent: all configuration arrives
// through this value, never through globals.
type Options struct {
	// DefaultHighlightColor is used for bare ==highlight== spans that
	// carry no explicit {colorId} suffix. Defaults to "yellow".
	DefaultHighlightColor string
}

// HighlightColor returns the configured default highlight color.
func (o Options) HighlightColor() string {
	if o.DefaultHighlightColor == "" {
		return "yellow"
	}
	return o.DefaultHighlightColor
}

// Parse converts manuscript markup into a Document. It never fails;
// malformed constructs degrade to literal text.
func Parse(source string, opts Options) *doc.Document {
	source = strings.ReplaceAll(source, "\r\n", "\n")

	front, body := splitFrontmatter(source)
	d := &doc.Document{Meta: parseFrontmatter(front)}
	d.Blocks = parseBlocks(body, opts)
	return d
}

var (
	headingRe    = regexp.MustCompile(`^(#{1,6})[ \t]+(.*)$`)
	fenceRe      = regexp.MustCompile("^(```|~~~)[ \t]*([^`]*)$")
	listItemRe   = regexp.MustCompile(`^([ \t]*)([-*+]|\d{1,9}[.)])[ \t]+(.*)$`)
	taskRe       = regexp.MustCompile(`^\[([ xX])\][ \t]+(.*)$`)
	tableDelimRe = regexp.MustCompile(`^\|?[ \t:|-]+\|[ \t:|-]*$`)
	alertRe      = regexp.MustCompile(`^\[!(NOTE|TIP|IMPORTANT|WARNING|CAUTION)\][ \t]*$`)
)

// multilineOpeners are the annotation open markers that, when found at the
// first non-whitespace column of a line, may span blank lines. The close
// marker search is first-occurrence except for comment bodies.
var multilineOpeners = []struct {
	open  string
	close string
	depth bool
}{
	{"{++", "++}", false},
	{"{--", "--}", false},
	{"{~~", "~~}", false},
	{"{>>", "<<}", true},
	{"{==", "==}", false},
}

// parseBlocks runs the line-oriented block pass over body text.
func parseBlocks(body string, opts Options) []doc.Block {
	lines := strings.Split(body, "\n")
	var blocks []doc.Block

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			i++
			continue
		}

		// Fenced code block.
		if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
			var cb *doc.CodeBlock
			cb, i = parseFence(lines, i, m[1], strings.TrimSpace(m[2]))
			blocks = append(blocks, cb)
			continue
		}

		// ATX heading.
		if m := headingRe.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, &doc.Heading{
				Level:   len(m[1]),
				Inlines: parseResolvedInlines(strings.TrimRight(m[2], " \t"), opts),
			})
			i++
			continue
		}

		// Block quote (plain or alert).
		if strings.HasPrefix(trimmed, ">") {
			var bq *doc.BlockQuote
			bq, i = parseQuote(lines, i, opts)
			blocks = append(blocks, bq)
			continue
		}

		// Table: a pipe row followed by a delimiter row.
		if strings.HasPrefix(trimmed, "|") && i+1 < len(lines) &&
			tableDelimRe.MatchString(strings.TrimSpace(lines[i+1])) {
			var tbl *doc.Table
			tbl, i = parseTable(lines, i, opts)
			blocks = append(blocks, tbl)
			continue
		}

		// List items.
		if m := listItemRe.FindStringSubmatch(line); m != nil {
			item := parseListItem(m, opts)
			blocks = append(blocks, item)
			i++
			continue
		}

		// Display math.
		if strings.HasPrefix(trimmed, "$$") {
			if blk, next, ok := parseDisplayMath(lines, i); ok {
				blocks = append(blocks, blk)
				i = next
				continue
			}
		}

		// Indented code (4 spaces or a tab).
		if strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			var cb *doc.CodeBlock
			cb, i = parseIndentedCode(lines, i)
			blocks = append(blocks, cb)
			continue
		}

		// Paragraph.
		var para *doc.Paragraph
		para, i = parseParagraph(lines, i, opts)
		blocks = append(blocks, para)
	}

	return blocks
}

// parseFence consumes a fenced code block starting at lines[start].
func parseFence(lines []string, start int, fence, info string) (*doc.CodeBlock, int) {
	var content []string
	i := start + 1
	for ; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == fence {
			i++
			break
		}
		content = append(content, lines[i])
	}
	return &doc.CodeBlock{Language: info, Text: strings.Join(content, "\n")}, i
}

// parseIndentedCode consumes consecutive indented lines.
func parseIndentedCode(lines []string, start int) (*doc.CodeBlock, int) {
	var content []string
	i := start
	for ; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "    "):
			content = append(content, line[4:])
		case strings.HasPrefix(line, "\t"):
			content = append(content, line[1:])
		default:
			return &doc.CodeBlock{Text: strings.Join(content, "\n")}, i
		}
	}
	return &doc.CodeBlock{Text: strings.Join(content, "\n")}, i
}

// parseQuote consumes consecutive "> " lines and recursively parses the
// stripped content. A leading [!KIND] line turns the quote into an alert.
func parseQuote(lines []string, start int, opts Options) (*doc.BlockQuote, int) {
	var inner []string
	i := start
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, ">") {
			break
		}
		rest := strings.TrimPrefix(trimmed, ">")
		rest = strings.TrimPrefix(rest, " ")
		inner = append(inner, rest)
	}

	kind := doc.QuotePlain
	if len(inner) > 0 {
		if m := alertRe.FindStringSubmatch(strings.TrimSpace(inner[0])); m != nil {
			kind = doc.QuoteKind(strings.ToLower(m[1]))
			inner = inner[1:]
		}
	}

	return &doc.BlockQuote{
		Kind:   kind,
		Blocks: parseBlocks(strings.Join(inner, "\n"), opts),
	}, i
}

// parseListItem converts one matched list line into a ListItem.
func parseListItem(m []string, opts Options) *doc.ListItem {
	indent := strings.ReplaceAll(m[1], "\t", "    ")
	marker := m[2]
	content := m[3]

	item := &doc.ListItem{
		Ordered: marker[0] >= '0' && marker[0] <= '9',
		Level:   len(indent) / 2,
	}
	if tm := taskRe.FindStringSubmatch(content); tm != nil {
		item.Task = true
		item.Checked = tm[1] != " "
		content = tm[2]
	}
	item.Inlines = parseResolvedInlines(content, opts)
	return item
}

// parseTable consumes a pipe table. The first row is the header; the
// delimiter row is discarded.
func parseTable(lines []string, start int, opts Options) (*doc.Table, int) {
	tbl := &doc.Table{HeaderRow: true}
	i := start
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "|") {
			break
		}
		if i == start+1 && tableDelimRe.MatchString(trimmed) {
			continue
		}
		var row []doc.TableCell
		for _, cell := range splitTableRow(trimmed) {
			cellBlocks := []doc.Block{}
			text := strings.TrimSpace(cell)
			if text != "" {
				cellBlocks = append(cellBlocks, &doc.Paragraph{Inlines: parseResolvedInlines(text, opts)})
			}
			row = append(row, doc.TableCell{Blocks: cellBlocks})
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl, i
}

// splitTableRow splits a pipe row into cells, honoring \| escapes.
func splitTableRow(row string) []string {
	row = strings.TrimPrefix(row, "|")
	row = strings.TrimSuffix(row, "|")
	var cells []string
	var cur strings.Builder
	for i := 0; i < len(row); i++ {
		c := row[i]
		if c == '\\' && i+1 < len(row) && row[i+1] == '|' {
			cur.WriteByte('|')
			i++
			continue
		}
		if c == '|' {
			cells = append(cells, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	cells = append(cells, cur.String())
	return cells
}

// parseDisplayMath consumes a $$...$$ block. Returns ok=false when no
// closing marker exists, in which case the caller falls through to
// paragraph handling.
func parseDisplayMath(lines []string, start int) (doc.Block, int, bool) {
	trimmed := strings.TrimSpace(lines[start])

	// Single-line form: $$latex$$.
	if len(trimmed) > 4 && strings.HasSuffix(trimmed, "$$") {
		return &doc.DisplayEquation{
			LaTeX: strings.TrimSpace(trimmed[2 : len(trimmed)-2]),
		}, start + 1, true
	}

	// Multi-line form: opening $$ line, content, closing $$ line.
	opening := strings.TrimSpace(strings.TrimPrefix(trimmed, "$$"))
	var content []string
	if opening != "" {
		content = append(content, opening)
	}
	for i := start + 1; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		if t == "$$" {
			return &doc.DisplayEquation{LaTeX: strings.Join(content, "\n")}, i + 1, true
		}
		if strings.HasSuffix(t, "$$") {
			content = append(content, strings.TrimSpace(strings.TrimSuffix(t, "$$")))
			return &doc.DisplayEquation{LaTeX: strings.Join(content, "\n")}, i + 1, true
		}
		content = append(content, lines[i])
	}
	return nil, start, false
}

// parseParagraph accumulates paragraph lines starting at lines[start].
// A blank line ends the paragraph unless it falls inside a block-level
// annotation span: a span whose open marker sits at the first
// non-whitespace column of a line may contain blank lines and must not be
// split. Mid-line annotation spans get no such treatment and are confined
// to a single paragraph.
func parseParagraph(lines []string, start int, opts Options) (*doc.Paragraph, int) {
	var buf []string
	i := start
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			break
		}
		if i > start && startsStructure(lines, i) {
			break
		}

		// Block-level annotation candidate: open marker at the first
		// non-whitespace column. Consume the whole span, blank lines
		// included, when a close marker exists later in the input.
		if consumed, next := consumeAnnotationSpan(lines, i); consumed != nil {
			buf = append(buf, consumed...)
			i = next
			continue
		}

		buf = append(buf, line)
		i++
	}
	text := strings.Join(buf, "\n")
	para := &doc.Paragraph{Inlines: parseResolvedInlines(text, opts)}
	return para, i
}

// startsStructure reports whether lines[i] begins a non-paragraph block.
func startsStructure(lines []string, i int) bool {
	line := lines[i]
	trimmed := strings.TrimSpace(line)
	if headingRe.MatchString(line) || fenceRe.MatchString(trimmed) {
		return true
	}
	if strings.HasPrefix(trimmed, ">") {
		return true
	}
	if listItemRe.MatchString(line) {
		return true
	}
	if strings.HasPrefix(trimmed, "|") && i+1 < len(lines) &&
		tableDelimRe.MatchString(strings.TrimSpace(lines[i+1])) {
		return true
	}
	if strings.HasPrefix(trimmed, "$$") {
		return true
	}
	return false
}

// consumeAnnotationSpan handles the block-level annotation rule. When
// lines[i] opens an annotation at its first non-whitespace column and the
// matching close marker occurs on a later line, it returns the raw lines
// of the whole span and the index past it. Otherwise it returns nil.
func consumeAnnotationSpan(lines []string, i int) ([]string, int) {
	trimmed := strings.TrimLeft(lines[i], " \t")

	for _, opener := range multilineOpeners {
		if !strings.HasPrefix(trimmed, opener.open) {
			continue
		}
		rest := strings.Join(lines[i:], "\n")
		var end int
		if opener.depth {
			end = findDepthClose(rest, len(opener.open), opener.open, opener.close)
		} else {
			end = strings.Index(rest[len(opener.open):], opener.close)
			if end >= 0 {
				end += len(opener.open)
			}
		}
		if end < 0 {
			return nil, i
		}
		closeEnd := end + len(opener.close)
		spanned := strings.Count(rest[:closeEnd], "\n")
		if spanned == 0 {
			// Single-line span: ordinary inline handling suffices.
			return nil, i
		}
		return lines[i : i+spanned+1], i + spanned + 1
	}

	// Identifier-tagged comment bodies may span lines too.
	if m := idCommentOpenRe.FindString(trimmed); m != "" {
		rest := strings.Join(lines[i:], "\n")
		end := findDepthClose(rest, len(m), "{>>", "<<}")
		if end < 0 {
			return nil, i
		}
		spanned := strings.Count(rest[:end+len("<<}")], "\n")
		if spanned == 0 {
			return nil, i
		}
		return lines[i : i+spanned+1], i + spanned + 1
	}

	return nil, i
}

// findDepthClose scans s from offset for the close token that returns the
// bracket depth to zero, tracking nested open/close token pairs. Returns
// the close token offset or -1.
func findDepthClose(s string, from int, open, close string) int {
	depth := 1
	for i := from; i < len(s); {
		if strings.HasPrefix(s[i:], open) {
			depth++
			i += len(open)
			continue
		}
		if strings.HasPrefix(s[i:], close) {
			depth--
			if depth == 0 {
				return i
			}
			i += len(close)
			continue
		}
		i++
	}
	return -1
}
