package doc

import "strings"

// WalkInlines calls fn for every inline in the block sequence, descending
// into table cells, quote bodies, and nested inline containers (including
// both halves of a substitution). Traversal is depth-first in document
// order. fn returning false stops the walk.
func WalkInlines(blocks []Block, fn func(Inline) bool) bool {
	for _, b := range blocks {
		if !walkBlock(b, fn) {
			return false
		}
	}
	return true
}

func walkBlock(b Block, fn func(Inline) bool) bool {
	switch v := b.(type) {
	case *Heading:
		return walkInlineSeq(v.Inlines, fn)
	case *Paragraph:
		return walkInlineSeq(v.Inlines, fn)
	case *ListItem:
		return walkInlineSeq(v.Inlines, fn)
	case *Table:
		for _, row := range v.Rows {
			for _, cell := range row {
				if !WalkInlines(cell.Blocks, fn) {
					return false
				}
			}
		}
	case *BlockQuote:
		return WalkInlines(v.Blocks, fn)
	case *CodeBlock, *DisplayEquation:
		// No inline content.
	}
	return true
}

func walkInlineSeq(inlines []Inline, fn func(Inline) bool) bool {
	for _, in := range inlines {
		if !fn(in) {
			return false
		}
		var children [][]Inline
		switch v := in.(type) {
		case *Bold:
			children = append(children, v.Inlines)
		case *Italic:
			children = append(children, v.Inlines)
		case *Underline:
			children = append(children, v.Inlines)
		case *Strikethrough:
			children = append(children, v.Inlines)
		case *Highlight:
			children = append(children, v.Inlines)
		case *Superscript:
			children = append(children, v.Inlines)
		case *Subscript:
			children = append(children, v.Inlines)
		case *Link:
			children = append(children, v.Inlines)
		case *Annotation:
			children = append(children, v.Inlines, v.Old, v.New)
		}
		for _, c := range children {
			if !walkInlineSeq(c, fn) {
				return false
			}
		}
	}
	return true
}

// PlainText flattens an inline sequence to its literal text content.
// Deleted content and comment bodies are included; equations contribute
// their LaTeX source and citations contribute nothing.
func PlainText(inlines []Inline) string {
	var sb strings.Builder
	plainText(inlines, &sb)
	return sb.String()
}

func plainText(inlines []Inline, sb *strings.Builder) {
	for _, in := range inlines {
		switch v := in.(type) {
		case *Text:
			sb.WriteString(v.Value)
		case *Code:
			sb.WriteString(v.Value)
		case *InlineEquation:
			sb.WriteString(v.LaTeX)
		case *Bold:
			plainText(v.Inlines, sb)
		case *Italic:
			plainText(v.Inlines, sb)
		case *Underline:
			plainText(v.Inlines, sb)
		case *Strikethrough:
			plainText(v.Inlines, sb)
		case *Highlight:
			plainText(v.Inlines, sb)
		case *Superscript:
			plainText(v.Inlines, sb)
		case *Subscript:
			plainText(v.Inlines, sb)
		case *Link:
			plainText(v.Inlines, sb)
		case *Annotation:
			plainText(v.Inlines, sb)
			plainText(v.Old, sb)
			plainText(v.New, sb)
		}
	}
}
