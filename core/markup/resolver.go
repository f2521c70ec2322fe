package markup

import (
	"strings"

	"github.com/quirelab/quire/core/doc"
)

// resolveAnnotations runs the annotation range resolver over the full
// token stream of one block. Three passes:
//
//  1. Build a map from comment identifier to comment text from all
//     Comment{id} nodes.
//  2. Convert every RangeStart/RangeEnd pair whose id has a comment into
//     an explicit Range node carrying the text. The markers stay
//     positional, which is what lets ranges overlap and share boundaries:
//     a tree wrapper could not express either.
//  3. Associate identifier-less comments with the nearest preceding
//     annotation, skipping whitespace-only text; otherwise emit a
//     standalone indicator. Empty comments vanish entirely.
func resolveAnnotations(inlines []doc.Inline) []doc.Inline {
	ids := collectRangeInfo(inlines)
	return resolveSeq(inlines, ids)
}

// rangeInfo records what pass 1 learned about identifier usage.
type rangeInfo struct {
	texts  map[string]string
	starts map[string]bool
	ends   map[string]bool
}

// paired reports whether id has both markers and a comment body, the
// requirement for pass 2 conversion.
func (ri *rangeInfo) paired(id string) bool {
	_, hasText := ri.texts[id]
	return hasText && ri.starts[id] && ri.ends[id]
}

func collectRangeInfo(inlines []doc.Inline) *rangeInfo {
	ri := &rangeInfo{
		texts:  make(map[string]string),
		starts: make(map[string]bool),
		ends:   make(map[string]bool),
	}
	collectInto(inlines, ri)
	return ri
}

func collectInto(inlines []doc.Inline, ri *rangeInfo) {
	for _, in := range inlines {
		switch v := in.(type) {
		case *doc.Annotation:
			switch v.Kind {
			case doc.KindComment:
				if v.ID != "" {
					if prev, ok := ri.texts[v.ID]; ok {
						ri.texts[v.ID] = prev + "\n" + v.Comment
					} else {
						ri.texts[v.ID] = v.Comment
					}
				}
			case doc.KindRangeStart:
				ri.starts[v.ID] = true
			case doc.KindRangeEnd:
				ri.ends[v.ID] = true
			}
			collectInto(v.Inlines, ri)
			collectInto(v.Old, ri)
			collectInto(v.New, ri)
		case *doc.Bold:
			collectInto(v.Inlines, ri)
		case *doc.Italic:
			collectInto(v.Inlines, ri)
		case *doc.Underline:
			collectInto(v.Inlines, ri)
		case *doc.Strikethrough:
			collectInto(v.Inlines, ri)
		case *doc.Highlight:
			collectInto(v.Inlines, ri)
		case *doc.Superscript:
			collectInto(v.Inlines, ri)
		case *doc.Subscript:
			collectInto(v.Inlines, ri)
		case *doc.Link:
			collectInto(v.Inlines, ri)
		}
	}
}

// resolveSeq rewrites one sibling sequence, recursing into containers.
func resolveSeq(inlines []doc.Inline, ri *rangeInfo) []doc.Inline {
	var out []doc.Inline
	for _, in := range inlines {
		ann, isAnn := in.(*doc.Annotation)
		if !isAnn {
			out = append(out, resolveChildren(in, ri))
			continue
		}

		switch ann.Kind {
		case doc.KindRangeStart:
			if ri.paired(ann.ID) {
				out = append(out, &doc.Annotation{
					Kind:    doc.KindRange,
					ID:      ann.ID,
					Comment: ri.texts[ann.ID],
				})
			} else {
				out = appendLiteral(out, "{#"+ann.ID+"}")
			}

		case doc.KindRangeEnd:
			if ri.paired(ann.ID) {
				out = append(out, ann)
			} else {
				out = appendLiteral(out, "{/"+ann.ID+"}")
			}

		case doc.KindComment:
			if ann.ID != "" && ri.paired(ann.ID) {
				// Consumed by the Range node carrying its text.
				continue
			}
			if strings.TrimSpace(ann.Comment) == "" {
				// Empty comments produce nothing, adjacency or not.
				continue
			}
			out = associateComment(out, ann.Comment)

		default:
			ann.Inlines = resolveSeq(ann.Inlines, ri)
			ann.Old = resolveSeq(ann.Old, ri)
			ann.New = resolveSeq(ann.New, ri)
			out = append(out, ann)
		}
	}
	if out == nil {
		return []doc.Inline{}
	}
	return out
}

// resolveChildren recurses into an inline container's children.
func resolveChildren(in doc.Inline, ri *rangeInfo) doc.Inline {
	switch v := in.(type) {
	case *doc.Bold:
		v.Inlines = resolveSeq(v.Inlines, ri)
	case *doc.Italic:
		v.Inlines = resolveSeq(v.Inlines, ri)
	case *doc.Underline:
		v.Inlines = resolveSeq(v.Inlines, ri)
	case *doc.Strikethrough:
		v.Inlines = resolveSeq(v.Inlines, ri)
	case *doc.Highlight:
		v.Inlines = resolveSeq(v.Inlines, ri)
	case *doc.Superscript:
		v.Inlines = resolveSeq(v.Inlines, ri)
	case *doc.Subscript:
		v.Inlines = resolveSeq(v.Inlines, ri)
	case *doc.Link:
		v.Inlines = resolveSeq(v.Inlines, ri)
	}
	return in
}

// appendLiteral adds literal text, merging with a trailing Text node.
func appendLiteral(out []doc.Inline, s string) []doc.Inline {
	if len(out) > 0 {
		if t, ok := out[len(out)-1].(*doc.Text); ok {
			t.Value += s
			return out
		}
	}
	return append(out, &doc.Text{Value: s})
}

// associateComment applies the adjacency rule: scan backward over emitted
// siblings, skipping whitespace-only text nodes. When the nearest
// non-whitespace node is a critic annotation or a format highlight, the
// comment attaches to it (stacked comments concatenate with a newline);
// any other neighbor, even a single non-whitespace character, forces a
// standalone indicator.
func associateComment(out []doc.Inline, text string) []doc.Inline {
	for i := len(out) - 1; i >= 0; i-- {
		switch v := out[i].(type) {
		case *doc.Text:
			if strings.TrimSpace(v.Value) == "" {
				continue
			}
		case *doc.Annotation:
			switch v.Kind {
			case doc.KindAddition, doc.KindDeletion, doc.KindSubstitution, doc.KindMarked:
				v.Comment = joinComment(v.Comment, text)
				return out
			}
		case *doc.Highlight:
			v.Comment = joinComment(v.Comment, text)
			return out
		}
		break
	}
	return append(out, &doc.Annotation{Kind: doc.KindIndicator, Comment: text})
}

func joinComment(existing, text string) string {
	if existing == "" {
		return text
	}
	return existing + "\n" + text
}

// Range describes a resolved comment range extracted from a token stream.
type Range struct {
	ID      string
	Comment string
	// Text is the flattened literal content between the range markers.
	Text string
}

// Ranges linearizes an inline stream depth-first and extracts every
// resolved comment range with the text span it covers. Overlapping ranges
// each report their own full span.
func Ranges(inlines []doc.Inline) []Range {
	var ordered []string
	open := map[string]*Range{}
	byID := map[string]*Range{}

	var walk func(seq []doc.Inline)
	addText := func(s string) {
		for _, r := range open {
			r.Text += s
		}
	}
	walk = func(seq []doc.Inline) {
		for _, in := range seq {
			switch v := in.(type) {
			case *doc.Text:
				addText(v.Value)
			case *doc.Code:
				addText(v.Value)
			case *doc.InlineEquation:
				addText(v.LaTeX)
			case *doc.Bold:
				walk(v.Inlines)
			case *doc.Italic:
				walk(v.Inlines)
			case *doc.Underline:
				walk(v.Inlines)
			case *doc.Strikethrough:
				walk(v.Inlines)
			case *doc.Highlight:
				walk(v.Inlines)
			case *doc.Superscript:
				walk(v.Inlines)
			case *doc.Subscript:
				walk(v.Inlines)
			case *doc.Link:
				walk(v.Inlines)
			case *doc.Annotation:
				switch v.Kind {
				case doc.KindRange:
					r := &Range{ID: v.ID, Comment: v.Comment}
					ordered = append(ordered, v.ID)
					open[v.ID] = r
					byID[v.ID] = r
				case doc.KindRangeEnd:
					delete(open, v.ID)
				default:
					walk(v.Inlines)
					walk(v.Old)
					walk(v.New)
				}
			}
		}
	}
	walk(inlines)

	ranges := make([]Range, 0, len(ordered))
	for _, id := range ordered {
		ranges = append(ranges, *byID[id])
	}
	return ranges
}
