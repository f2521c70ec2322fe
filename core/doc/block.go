package doc

// Block is a block-level document node. The set of implementations is
// closed; consumers dispatch with a type switch over the concrete types
// defined in this file.
type Block interface {
	isBlock()
}

// Heading is a section heading, level 1 through 6.
type Heading struct {
	Level   int
	Inlines []Inline
}

// Paragraph is an ordinary paragraph of inline content.
type Paragraph struct {
	Inlines []Inline
}

// ListItem is a single list item. Consecutive ListItem blocks form a list;
// Level expresses nesting depth starting at 0.
type ListItem struct {
	Ordered bool
	Level   int
	Inlines []Inline

	// Task is true for task-list items; Checked carries the checkbox state.
	Task    bool
	Checked bool
}

// Table is a grid of cells. Every cell holds a block sequence; nested
// tables inside cells are not supported.
type Table struct {
	// Rows holds the table rows. The first row is the header row when
	// HeaderRow is true.
	Rows      [][]TableCell
	HeaderRow bool
}

// TableCell is one table cell.
type TableCell struct {
	Blocks []Block
}

// CodeBlock is a fenced or indented code block.
type CodeBlock struct {
	// Language is the fence info string, empty for indented blocks.
	Language string
	Text     string
}

// QuoteKind classifies a block quote.
type QuoteKind string

// Quote kinds. Plain is an ordinary quote; the rest are GitHub-style
// alert quotes.
const (
	QuotePlain     QuoteKind = "plain"
	QuoteNote      QuoteKind = "note"
	QuoteTip       QuoteKind = "tip"
	QuoteImportant QuoteKind = "important"
	QuoteWarning   QuoteKind = "warning"
	QuoteCaution   QuoteKind = "caution"
)

// validQuoteKinds is the set of recognized quote kinds.
var validQuoteKinds = map[QuoteKind]bool{
	QuotePlain:     true,
	QuoteNote:      true,
	QuoteTip:       true,
	QuoteImportant: true,
	QuoteWarning:   true,
	QuoteCaution:   true,
}

// IsValid returns true if the quote kind is recognized.
func (k QuoteKind) IsValid() bool {
	return validQuoteKinds[k]
}

// BlockQuote is a quoted block sequence, plain or alert-flavored.
type BlockQuote struct {
	Kind   QuoteKind
	Blocks []Block
}

// DisplayEquation is a standalone display-math block holding raw LaTeX.
type DisplayEquation struct {
	LaTeX string
}

func (*Heading) isBlock()         {}
func (*Paragraph) isBlock()       {}
func (*ListItem) isBlock()        {}
func (*Table) isBlock()           {}
func (*CodeBlock) isBlock()       {}
func (*BlockQuote) isBlock()      {}
func (*DisplayEquation) isBlock() {}
