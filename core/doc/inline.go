package doc

// Inline is an inline-level document node. Like Block, the implementation
// set is closed and consumers dispatch with exhaustive type switches.
type Inline interface {
	isInline()
}

// Text is a literal text run.
type Text struct {
	Value string
}

// Bold wraps inline content in bold formatting.
type Bold struct {
	Inlines []Inline
}

// Italic wraps inline content in italic formatting.
type Italic struct {
	Inlines []Inline
}

// Underline wraps inline content in underline formatting.
type Underline struct {
	Inlines []Inline
}

// Strikethrough wraps inline content in strikethrough formatting.
type Strikethrough struct {
	Inlines []Inline
}

// Highlight wraps inline content in a colored format highlight. This is
// plain character formatting; the "commented region" critic marker is
// represented by Annotation with KindMarked.
type Highlight struct {
	// ColorID names the highlight color (e.g. "yellow", "green").
	ColorID string
	Inlines []Inline

	// Comment holds comment text attached by the annotation range
	// resolver when a comment immediately follows the highlight.
	Comment string
}

// Superscript wraps inline content in superscript vertical alignment.
type Superscript struct {
	Inlines []Inline
}

// Subscript wraps inline content in subscript vertical alignment.
type Subscript struct {
	Inlines []Inline
}

// Code is an inline code span.
type Code struct {
	Value string
}

// Link is a hyperlink around inline content.
type Link struct {
	Target  string
	Inlines []Inline
}

// InlineEquation is an inline math span holding raw LaTeX.
type InlineEquation struct {
	LaTeX string
}

// Citation is a citation cluster referencing one or more bibliography keys.
type Citation struct {
	// Keys lists the cited keys in source order.
	Keys []string

	// Locators maps a key to its locator text (e.g. a page reference).
	// Only keys with a locator appear in the map.
	Locators map[string]string

	// SuppressAuthor holds the keys cited with the author-suppressing
	// form [-@key].
	SuppressAuthor map[string]bool
}

// HasLocator returns the locator for key and whether one is attached.
func (c *Citation) HasLocator(key string) (string, bool) {
	if c.Locators == nil {
		return "", false
	}
	loc, ok := c.Locators[key]
	return loc, ok
}

// Suppressed returns true if the author name is suppressed for key.
func (c *Citation) Suppressed(key string) bool {
	return c.SuppressAuthor != nil && c.SuppressAuthor[key]
}

func (*Text) isInline()           {}
func (*Bold) isInline()           {}
func (*Italic) isInline()         {}
func (*Underline) isInline()      {}
func (*Strikethrough) isInline()  {}
func (*Highlight) isInline()      {}
func (*Superscript) isInline()    {}
func (*Subscript) isInline()      {}
func (*Code) isInline()           {}
func (*Link) isInline()           {}
func (*InlineEquation) isInline() {}
func (*Citation) isInline()       {}
func (*Annotation) isInline()     {}
