// Package doc defines the shared in-memory document model used by both
// conversion directions. The markup parser produces a Document, the package
// encoder consumes one, and the package decoder reconstructs one; all format
// handlers should import these types from core/doc rather than defining
// their own.
//
// Blocks and inlines form two closed sum types. Every concrete block type
// implements the unexported isBlock method and every concrete inline type
// implements isInline, so consumers dispatch with exhaustive type switches.
// A Document is constructed fresh per conversion call and is never shared
// across calls.
package doc

// Document is the top-level container for a parsed manuscript.
type Document struct {
	// Meta holds frontmatter-derived document metadata.
	Meta Metadata

	// Blocks is the ordered block sequence of the document body.
	Blocks []Block
}

// Metadata carries document-level settings recognized in frontmatter.
type Metadata struct {
	// Titles holds the title paragraphs in order. The title key is
	// repeatable in frontmatter; each occurrence appends one entry.
	Titles []string

	// Author is the document author used for tracked-change attribution.
	Author string

	// StyleID is the citation style identifier (a CSL style id or URL).
	StyleID string

	// Locale is the citation locale (e.g. "en-US").
	Locale string

	// NotePlacement selects footnote or endnote placement.
	NotePlacement NotePlacement

	// BibliographyPath is the explicit companion bibliography path, if any.
	BibliographyPath string

	// Fonts holds per-paragraph-class font overrides.
	Fonts FontOverrides

	// Extra preserves unrecognized frontmatter keys in source order so the
	// serializer can re-emit them.
	Extra []ExtraField
}

// ExtraField is an unrecognized frontmatter key/value pair.
type ExtraField struct {
	Key   string
	Value string
}

// NotePlacement selects where note bodies are placed in the package.
type NotePlacement string

// Note placement modes.
const (
	NoteFootnote NotePlacement = "footnote"
	NoteEndnote  NotePlacement = "endnote"
)

// IsValid returns true if the placement mode is recognized.
func (n NotePlacement) IsValid() bool {
	return n == NoteFootnote || n == NoteEndnote
}

// FontOverrides carries optional font family and size overrides for the
// title paragraph and each heading level. A zero value means no override.
type FontOverrides struct {
	// TitleFamily and TitleSize apply to title paragraphs.
	TitleFamily string
	TitleSize   float64

	// HeadingFamily and HeadingSize apply per heading level 1..6
	// (index 0 is level 1). Frontmatter lists shorter than six entries
	// inherit the last given value for the remaining levels.
	HeadingFamily [6]string
	HeadingSize   [6]float64
}

// HasOverrides reports whether any override is set.
func (f FontOverrides) HasOverrides() bool {
	if f.TitleFamily != "" || f.TitleSize != 0 {
		return true
	}
	for i := 0; i < 6; i++ {
		if f.HeadingFamily[i] != "" || f.HeadingSize[i] != 0 {
			return true
		}
	}
	return false
}
