package markup

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quirelab/quire/core/doc"
)

// Recognized frontmatter keys. Everything else is preserved verbatim in
// Metadata.Extra.
const (
	keyTitle        = "title"
	keyAuthor       = "author"
	keyStyle        = "csl"
	keyLocale       = "locale"
	keyNotes        = "notes"
	keyBibliography = "bibliography"
	keyTitleFont    = "title-font"
	keyTitleSize    = "title-size"
	keyHeadingFont  = "heading-font"
	keyHeadingSize  = "heading-size"
)

// splitFrontmatter extracts a leading frontmatter fence from source and
// returns the body text that follows it. The fence opens with "---" on the
// first line and closes with "---" or "...". Without a well-formed fence
// the entire source is returned as body.
func splitFrontmatter(source string) (front, body string) {
	if !strings.HasPrefix(source, "---\n") && source != "---" && !strings.HasPrefix(source, "---\r\n") {
		return "", source
	}
	lines := strings.SplitAfter(source, "\n")
	for i := 1; i < len(lines); i++ {
		trimmed := strings.TrimRight(lines[i], "\r\n")
		if trimmed == "---" || trimmed == "..." {
			return strings.Join(lines[1:i], ""), strings.Join(lines[i+1:], "")
		}
	}
	return "", source
}

// parseFrontmatter decodes frontmatter text into Metadata. The block is
// YAML-like: it is decoded through a yaml.Node so repeated title keys
// accumulate instead of overwriting each other, and bracketed lists come
// through as flow sequences. Malformed frontmatter degrades to an empty
// Metadata; the body is unaffected either way.
func parseFrontmatter(front string) doc.Metadata {
	var meta doc.Metadata
	if strings.TrimSpace(front) == "" {
		return meta
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(front), &root); err != nil {
		return meta
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return meta
	}

	mapping := root.Content[0]
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode := mapping.Content[i]
		valNode := mapping.Content[i+1]
		key := strings.ToLower(strings.TrimSpace(keyNode.Value))

		switch key {
		case keyTitle:
			meta.Titles = append(meta.Titles, scalarValues(valNode)...)
		case keyAuthor:
			meta.Author = scalarValue(valNode)
		case keyStyle:
			meta.StyleID = scalarValue(valNode)
		case keyLocale:
			meta.Locale = scalarValue(valNode)
		case keyNotes:
			placement := doc.NotePlacement(strings.ToLower(scalarValue(valNode)))
			if placement.IsValid() {
				meta.NotePlacement = placement
			}
		case keyBibliography:
			meta.BibliographyPath = scalarValue(valNode)
		case keyTitleFont:
			meta.Fonts.TitleFamily = scalarValue(valNode)
		case keyTitleSize:
			if size, err := strconv.ParseFloat(scalarValue(valNode), 64); err == nil {
				meta.Fonts.TitleSize = size
			}
		case keyHeadingFont:
			applyFontList(scalarValues(valNode), &meta.Fonts.HeadingFamily)
		case keyHeadingSize:
			var sizes [6]float64
			values := scalarValues(valNode)
			ok := true
			var parsed []float64
			for _, v := range values {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					ok = false
					break
				}
				parsed = append(parsed, f)
			}
			if ok && len(parsed) > 0 {
				for level := 0; level < 6; level++ {
					if level < len(parsed) {
						sizes[level] = parsed[level]
					} else {
						sizes[level] = parsed[len(parsed)-1]
					}
				}
				meta.Fonts.HeadingSize = sizes
			}
		default:
			meta.Extra = append(meta.Extra, doc.ExtraField{
				Key:   keyNode.Value,
				Value: scalarValue(valNode),
			})
		}
	}
	return meta
}

// applyFontList fills all six heading levels from a value list, repeating
// the last value beyond the list length.
func applyFontList(values []string, target *[6]string) {
	if len(values) == 0 {
		return
	}
	for level := 0; level < 6; level++ {
		if level < len(values) {
			target[level] = values[level]
		} else {
			target[level] = values[len(values)-1]
		}
	}
}

// scalarValue renders a value node as a single string. Sequences collapse
// to their first element.
func scalarValue(n *yaml.Node) string {
	if n.Kind == yaml.SequenceNode {
		if len(n.Content) == 0 {
			return ""
		}
		return n.Content[0].Value
	}
	return n.Value
}

// scalarValues renders a value node as a string list: one element for a
// scalar, all elements for a sequence.
func scalarValues(n *yaml.Node) []string {
	if n.Kind == yaml.SequenceNode {
		values := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			values = append(values, c.Value)
		}
		return values
	}
	if n.Value == "" {
		return nil
	}
	return []string{n.Value}
}
