package markup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quirelab/quire/core/doc"
)

// Serialize renders a Document back into manuscript markup. It is the
// inverse of Parse for every supported construct: the import direction
// serializes decoded packages through this function.
func Serialize(d *doc.Document, opts Options) string {
	var sb strings.Builder
	writeFrontmatter(&sb, d.Meta)

	for i, b := range d.Blocks {
		if i > 0 {
			_, prevList := d.Blocks[i-1].(*doc.ListItem)
			_, curList := b.(*doc.ListItem)
			if !(prevList && curList) {
				sb.WriteString("\n")
			}
		}
		writeBlock(&sb, b, opts)
	}
	return sb.String()
}

// writeFrontmatter emits the metadata fence when any field is set.
func writeFrontmatter(sb *strings.Builder, meta doc.Metadata) {
	var lines []string
	for _, t := range meta.Titles {
		lines = append(lines, "title: "+quoteYAML(t))
	}
	if meta.Author != "" {
		lines = append(lines, "author: "+quoteYAML(meta.Author))
	}
	if meta.StyleID != "" {
		lines = append(lines, "csl: "+quoteYAML(meta.StyleID))
	}
	if meta.Locale != "" {
		lines = append(lines, "locale: "+meta.Locale)
	}
	if meta.NotePlacement != "" {
		lines = append(lines, "notes: "+string(meta.NotePlacement))
	}
	if meta.BibliographyPath != "" {
		lines = append(lines, "bibliography: "+quoteYAML(meta.BibliographyPath))
	}
	if meta.Fonts.TitleFamily != "" {
		lines = append(lines, "title-font: "+quoteYAML(meta.Fonts.TitleFamily))
	}
	if meta.Fonts.TitleSize != 0 {
		lines = append(lines, "title-size: "+formatFloat(meta.Fonts.TitleSize))
	}
	if fam := collapseList(meta.Fonts.HeadingFamily[:], func(s string) bool { return s == "" }, quoteYAML); fam != "" {
		lines = append(lines, "heading-font: "+fam)
	}
	sizes := make([]string, 6)
	allZero := true
	for i, s := range meta.Fonts.HeadingSize {
		if s != 0 {
			allZero = false
		}
		sizes[i] = formatFloat(s)
	}
	if !allZero {
		if col := collapseList(sizes, func(s string) bool { return false }, func(s string) string { return s }); col != "" {
			lines = append(lines, "heading-size: "+col)
		}
	}
	for _, ex := range meta.Extra {
		lines = append(lines, ex.Key+": "+quoteYAML(ex.Value))
	}

	if len(lines) == 0 {
		return
	}
	sb.WriteString("---\n")
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	sb.WriteString("---\n\n")
}

// collapseList renders string values as a scalar or a flow sequence,
// trimming the trailing run of repeated values that list inheritance
// restores on parse. empty reports a value that means "unset".
func collapseList(values []string, empty func(string) bool, render func(string) string) string {
	last := -1
	for i, v := range values {
		if !empty(v) {
			last = i
		}
	}
	if last < 0 {
		return ""
	}
	// Trim trailing repeats of the same value.
	end := last + 1
	for end > 1 && values[end-1] == values[end-2] {
		end--
	}
	if end == 1 {
		return render(values[0])
	}
	parts := make([]string, end)
	for i := 0; i < end; i++ {
		parts[i] = render(values[i])
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// quoteYAML quotes a frontmatter value when it contains characters that
// would change its YAML meaning.
func quoteYAML(s string) string {
	if s == "" || strings.ContainsAny(s, ":#[]{}\"'|>&*!%@`,\n") ||
		s != strings.TrimSpace(s) {
		return strconv.Quote(s)
	}
	return s
}

func writeBlock(sb *strings.Builder, b doc.Block, opts Options) {
	switch v := b.(type) {
	case *doc.Heading:
		sb.WriteString(strings.Repeat("#", v.Level))
		sb.WriteString(" ")
		sb.WriteString(serializeInlines(v.Inlines, opts))
		sb.WriteString("\n")
	case *doc.Paragraph:
		sb.WriteString(serializeInlines(v.Inlines, opts))
		sb.WriteString("\n")
	case *doc.ListItem:
		sb.WriteString(strings.Repeat("  ", v.Level))
		if v.Ordered {
			sb.WriteString("1. ")
		} else {
			sb.WriteString("- ")
		}
		if v.Task {
			if v.Checked {
				sb.WriteString("[x] ")
			} else {
				sb.WriteString("[ ] ")
			}
		}
		sb.WriteString(serializeInlines(v.Inlines, opts))
		sb.WriteString("\n")
	case *doc.Table:
		writeTable(sb, v, opts)
	case *doc.CodeBlock:
		sb.WriteString("```")
		sb.WriteString(v.Language)
		sb.WriteString("\n")
		sb.WriteString(v.Text)
		if v.Text != "" {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n")
	case *doc.BlockQuote:
		writeQuote(sb, v, opts)
	case *doc.DisplayEquation:
		sb.WriteString("$$\n")
		sb.WriteString(v.LaTeX)
		sb.WriteString("\n$$\n")
	}
}

func writeTable(sb *strings.Builder, t *doc.Table, opts Options) {
	for i, row := range t.Rows {
		sb.WriteString("|")
		for _, cell := range row {
			sb.WriteString(" ")
			sb.WriteString(strings.ReplaceAll(cellText(cell, opts), "|", "\\|"))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
		if i == 0 && t.HeaderRow {
			sb.WriteString("|")
			for range row {
				sb.WriteString(" --- |")
			}
			sb.WriteString("\n")
		}
	}
}

// cellText flattens a cell's blocks into single-line markup.
func cellText(cell doc.TableCell, opts Options) string {
	var parts []string
	for _, b := range cell.Blocks {
		if p, ok := b.(*doc.Paragraph); ok {
			parts = append(parts, serializeInlines(p.Inlines, opts))
			continue
		}
		var inner strings.Builder
		writeBlock(&inner, b, opts)
		parts = append(parts, strings.TrimRight(inner.String(), "\n"))
	}
	return strings.Join(parts, " ")
}

func writeQuote(sb *strings.Builder, q *doc.BlockQuote, opts Options) {
	var inner strings.Builder
	if q.Kind != doc.QuotePlain && q.Kind.IsValid() {
		inner.WriteString("[!")
		inner.WriteString(strings.ToUpper(string(q.Kind)))
		inner.WriteString("]\n")
	}
	for i, b := range q.Blocks {
		if i > 0 {
			inner.WriteString("\n")
		}
		writeBlock(&inner, b, opts)
	}
	for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
		if line == "" {
			sb.WriteString(">\n")
			continue
		}
		sb.WriteString("> ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

// serializeInlines renders an inline sequence. Comment bodies for resolved
// ranges are emitted immediately after the matching range end marker.
func serializeInlines(inlines []doc.Inline, opts Options) string {
	rangeTexts := map[string]string{}
	for _, r := range Ranges(inlines) {
		rangeTexts[r.ID] = r.Comment
	}

	var sb strings.Builder
	writeInlines(&sb, inlines, opts, rangeTexts)
	return sb.String()
}

func writeInlines(sb *strings.Builder, inlines []doc.Inline, opts Options, rangeTexts map[string]string) {
	for _, in := range inlines {
		switch v := in.(type) {
		case *doc.Text:
			sb.WriteString(escapeText(v.Value))
		case *doc.Bold:
			wrapInlines(sb, "**", v.Inlines, "**", opts, rangeTexts)
		case *doc.Italic:
			wrapInlines(sb, "*", v.Inlines, "*", opts, rangeTexts)
		case *doc.Underline:
			wrapInlines(sb, "__", v.Inlines, "__", opts, rangeTexts)
		case *doc.Strikethrough:
			wrapInlines(sb, "~~", v.Inlines, "~~", opts, rangeTexts)
		case *doc.Highlight:
			wrapInlines(sb, "==", v.Inlines, "==", opts, rangeTexts)
			if v.ColorID != "" && v.ColorID != opts.HighlightColor() {
				fmt.Fprintf(sb, "{%s}", v.ColorID)
			}
			writeAttachedComments(sb, v.Comment)
		case *doc.Superscript:
			wrapInlines(sb, "^", v.Inlines, "^", opts, rangeTexts)
		case *doc.Subscript:
			wrapInlines(sb, "~", v.Inlines, "~", opts, rangeTexts)
		case *doc.Code:
			sb.WriteString("`")
			sb.WriteString(v.Value)
			sb.WriteString("`")
		case *doc.Link:
			sb.WriteString("[")
			writeInlines(sb, v.Inlines, opts, rangeTexts)
			sb.WriteString("](")
			sb.WriteString(v.Target)
			sb.WriteString(")")
		case *doc.InlineEquation:
			sb.WriteString("$")
			sb.WriteString(v.LaTeX)
			sb.WriteString("$")
		case *doc.Citation:
			writeCitation(sb, v)
		case *doc.Annotation:
			writeAnnotation(sb, v, opts, rangeTexts)
		}
	}
}

func wrapInlines(sb *strings.Builder, open string, inlines []doc.Inline, closeTok string, opts Options, rangeTexts map[string]string) {
	sb.WriteString(open)
	writeInlines(sb, inlines, opts, rangeTexts)
	sb.WriteString(closeTok)
}

func writeCitation(sb *strings.Builder, c *doc.Citation) {
	sb.WriteString("[")
	for i, key := range c.Keys {
		if i > 0 {
			sb.WriteString("; ")
		}
		if c.Suppressed(key) {
			sb.WriteString("-")
		}
		sb.WriteString("@")
		sb.WriteString(key)
		if loc, ok := c.HasLocator(key); ok {
			sb.WriteString(", ")
			sb.WriteString(loc)
		}
	}
	sb.WriteString("]")
}

func writeAnnotation(sb *strings.Builder, a *doc.Annotation, opts Options, rangeTexts map[string]string) {
	switch a.Kind {
	case doc.KindAddition:
		wrapInlines(sb, "{++", a.Inlines, "++}", opts, rangeTexts)
		writeAttachedComments(sb, a.Comment)
	case doc.KindDeletion:
		wrapInlines(sb, "{--", a.Inlines, "--}", opts, rangeTexts)
		writeAttachedComments(sb, a.Comment)
	case doc.KindSubstitution:
		sb.WriteString("{~~")
		writeInlines(sb, a.Old, opts, rangeTexts)
		sb.WriteString("~>")
		writeInlines(sb, a.New, opts, rangeTexts)
		sb.WriteString("~~}")
		writeAttachedComments(sb, a.Comment)
	case doc.KindMarked:
		wrapInlines(sb, "{==", a.Inlines, "==}", opts, rangeTexts)
		writeAttachedComments(sb, a.Comment)
	case doc.KindRange:
		fmt.Fprintf(sb, "{#%s}", a.ID)
	case doc.KindRangeEnd:
		fmt.Fprintf(sb, "{/%s}", a.ID)
		if text, ok := rangeTexts[a.ID]; ok {
			fmt.Fprintf(sb, "{#%s>>%s<<}", a.ID, text)
		}
	case doc.KindComment:
		if a.ID != "" {
			fmt.Fprintf(sb, "{#%s>>%s<<}", a.ID, a.Comment)
		} else {
			fmt.Fprintf(sb, "{>>%s<<}", a.Comment)
		}
	case doc.KindIndicator:
		fmt.Fprintf(sb, "{>>%s<<}", a.Comment)
	}
}

// writeAttachedComments re-emits resolver-attached comment text as
// adjacent comment annotations, one per stored line.
func writeAttachedComments(sb *strings.Builder, comment string) {
	if comment == "" {
		return
	}
	for _, part := range strings.Split(comment, "\n") {
		fmt.Fprintf(sb, "{>>%s<<}", part)
	}
}

// escapeText protects literal text that would otherwise re-parse as
// markup. Characters inside code spans and equations are never escaped.
func escapeText(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\', '*', '`', '[', ']', '^', '$':
			sb.WriteByte('\\')
		case '_', '~', '=':
			// Escape only when doubled or word-adjacent forms could open
			// a construct; a lone mid-word character is safe for '_'.
			if c != '_' || i == 0 || !isWordByte(s[i-1]) {
				sb.WriteByte('\\')
			}
		case '{':
			if i+1 < len(s) && strings.IndexByte("+-~>=#/", s[i+1]) >= 0 {
				sb.WriteByte('\\')
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
