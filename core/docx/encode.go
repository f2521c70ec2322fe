package docx

import (
	"fmt"
	"strings"
	"time"

	"github.com/quirelab/quire/core/bib"
	"github.com/quirelab/quire/core/cite"
	"github.com/quirelab/quire/core/doc"
	"github.com/quirelab/quire/core/encoding"
)

// Options configures package encoding.
type Options struct {
	// Author attributes tracked changes and comments. Empty falls back
	// to the document metadata author, then to "Author".
	Author string

	// Timestamp is the attribution timestamp for tracked changes and
	// comments. The zero value means the current time.
	Timestamp time.Time
}

// List numbering identifiers. Bullet and decimal lists each point at
// their own abstract definition through the numbering indirection.
const (
	numIDBullet  = 1
	numIDDecimal = 2
)

// validHighlightValues is the closed set of highlight colors the
// package format accepts. Unknown markup colors degrade to yellow.
var validHighlightValues = map[string]bool{
	"black": true, "blue": true, "cyan": true, "darkBlue": true,
	"darkCyan": true, "darkGray": true, "darkGreen": true,
	"darkMagenta": true, "darkRed": true, "darkYellow": true,
	"green": true, "lightGray": true, "magenta": true, "red": true,
	"white": true, "yellow": true,
}

// Encode builds document package bytes from d. Citations render
// according to res; clusters whose entries carry external identity
// become live citation fields, the rest become plain text. store
// supplies entry data for field payloads. res and store may be nil,
// in which case clusters degrade to their literal source spelling.
func Encode(d *doc.Document, store *bib.Store, res *cite.Resolution, opts Options) ([]byte, []doc.Warning, error) {
	e := &encoder{
		d:        d,
		store:    store,
		res:      res,
		opts:     opts,
		relByURL: map[string]string{},
		rangeCID: map[string]int{},
	}
	e.author = opts.Author
	if e.author == "" {
		e.author = d.Meta.Author
	}
	if e.author == "" {
		e.author = "Author"
	}
	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	e.date = ts.UTC().Format("2006-01-02T15:04:05Z")

	return e.encode()
}

type relEntry struct {
	id     string
	target string
}

type commentEntry struct {
	id   int
	text string
}

type encoder struct {
	d     *doc.Document
	store *bib.Store
	res   *cite.Resolution
	opts  Options

	author string
	date   string

	rels     []relEntry
	relByURL map[string]string

	comments []commentEntry
	// rangeCID maps an explicit range identifier to its comment id so
	// the end marker closes the range the start marker opened.
	rangeCID map[string]int

	nextCommentID int
	nextChangeID  int
	fieldSeq      int

	usedBullet  bool
	usedDecimal bool

	warnings []doc.Warning
}

func (e *encoder) warnf(code doc.WarningCode, format string, args ...interface{}) {
	e.warnings = append(e.warnings, doc.Warningf(code, format, args...))
}

func (e *encoder) encode() ([]byte, []doc.Warning, error) {
	var body strings.Builder

	for _, title := range e.d.Meta.Titles {
		e.writeStyledTextParagraph(&body, styleTitle, title)
	}
	for _, b := range e.d.Blocks {
		e.writeBlock(&body, b, "")
	}
	e.writeBibliography(&body)

	var docPart strings.Builder
	docPart.WriteString(xmlHeader)
	docPart.WriteString(`<w:document` +
		` xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:m="http://schemas.openxmlformats.org/officeDocument/2006/math">`)
	docPart.WriteString(`<w:body>`)
	docPart.WriteString(body.String())
	docPart.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/></w:sectPr>`)
	docPart.WriteString(`</w:body></w:document>`)

	parts := map[string][]byte{
		partContentTypes: contentTypesXML(e.usedBullet || e.usedDecimal, len(e.comments) > 0),
		partRootRels:     rootRelsXML(),
		partDocument:     []byte(docPart.String()),
		partStyles:       stylesXML(e.d.Meta.Fonts),
	}
	if e.usedBullet || e.usedDecimal {
		parts[partNumbering] = numberingXML()
	}
	if len(e.comments) > 0 {
		parts[partComments] = e.commentsXML()
	}
	if len(e.rels) > 0 {
		parts[partDocumentRels] = e.documentRelsXML()
	}

	data, err := writePackage(parts)
	if err != nil {
		return nil, e.warnings, err
	}
	return data, e.warnings, nil
}

// writeBlock encodes one block. styleOverride forces a paragraph style,
// used when flattening quote content.
func (e *encoder) writeBlock(sb *strings.Builder, b doc.Block, styleOverride string) {
	switch v := b.(type) {
	case *doc.Heading:
		level := v.Level
		if level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		e.writeParagraph(sb, headingStyleID(level), nil, v.Inlines)
	case *doc.Paragraph:
		e.writeParagraph(sb, styleOverride, nil, v.Inlines)
	case *doc.ListItem:
		e.writeListItem(sb, v)
	case *doc.CodeBlock:
		e.writeCodeBlock(sb, v)
	case *doc.BlockQuote:
		style := alertStyleID(v.Kind)
		for _, inner := range v.Blocks {
			e.writeBlock(sb, inner, style)
		}
	case *doc.DisplayEquation:
		omml, warns := ommlFromLaTeX(v.LaTeX)
		e.warnings = append(e.warnings, warns...)
		sb.WriteString(`<w:p><m:oMathPara><m:oMath>` + omml + `</m:oMath></m:oMathPara></w:p>`)
	case *doc.Table:
		e.writeTable(sb, v)
	}
}

// writeParagraph emits one w:p with optional style and extra paragraph
// properties.
func (e *encoder) writeParagraph(sb *strings.Builder, style string, extraPPr func(*strings.Builder), inlines []doc.Inline) {
	sb.WriteString(`<w:p>`)
	if style != "" || extraPPr != nil {
		sb.WriteString(`<w:pPr>`)
		if style != "" {
			sb.WriteString(`<w:pStyle w:val="` + encoding.EscapeXMLAttr(style) + `"/>`)
		}
		if extraPPr != nil {
			extraPPr(sb)
		}
		sb.WriteString(`</w:pPr>`)
	}
	e.writeInlines(sb, inlines, runCtx{})
	sb.WriteString(`</w:p>`)
}

func (e *encoder) writeStyledTextParagraph(sb *strings.Builder, style, text string) {
	e.writeParagraph(sb, style, nil, []doc.Inline{&doc.Text{Value: text}})
}

func (e *encoder) writeListItem(sb *strings.Builder, item *doc.ListItem) {
	numID := numIDBullet
	if item.Ordered {
		numID = numIDDecimal
		e.usedDecimal = true
	} else {
		e.usedBullet = true
	}
	inlines := item.Inlines
	if item.Task {
		box := "☐ "
		if item.Checked {
			box = "☑ "
		}
		inlines = append([]doc.Inline{&doc.Text{Value: box}}, inlines...)
	}
	e.writeParagraph(sb, styleListPara, func(sb *strings.Builder) {
		fmt.Fprintf(sb, `<w:numPr><w:ilvl w:val="%d"/><w:numId w:val="%d"/></w:numPr>`, item.Level, numID)
	}, inlines)
}

func (e *encoder) writeCodeBlock(sb *strings.Builder, cb *doc.CodeBlock) {
	if cb.Language != "" {
		e.warnf(doc.WarnLossyConstruct, "code block language %q is not preserved in the package", cb.Language)
	}
	text := strings.TrimSuffix(cb.Text, "\n")
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString(`<w:p><w:pPr><w:pStyle w:val="` + styleCodeBlock + `"/></w:pPr>`)
		if line != "" {
			sb.WriteString(`<w:r>` + runPropsXML(runCtx{mono: true}) + `<w:t xml:space="preserve">`)
			sb.WriteString(encoding.EscapeXMLText(line))
			sb.WriteString(`</w:t></w:r>`)
		}
		sb.WriteString(`</w:p>`)
	}
}

func (e *encoder) writeTable(sb *strings.Builder, t *doc.Table) {
	sb.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/>` +
		`<w:tblW w:w="0" w:type="auto"/></w:tblPr>`)
	for ri, row := range t.Rows {
		sb.WriteString(`<w:tr>`)
		if ri == 0 && t.HeaderRow {
			sb.WriteString(`<w:trPr><w:tblHeader/></w:trPr>`)
		}
		for _, cell := range row {
			sb.WriteString(`<w:tc><w:tcPr/>`)
			if len(cell.Blocks) == 0 {
				sb.WriteString(`<w:p/>`)
			}
			for _, b := range cell.Blocks {
				e.writeBlock(sb, b, "")
			}
			sb.WriteString(`</w:tc>`)
		}
		sb.WriteString(`</w:tr>`)
	}
	sb.WriteString(`</w:tbl>`)
}

// writeBibliography appends the rendered bibliography and the missing
// references note, all under the Bibliography style so the decoder can
// recognize generated material.
func (e *encoder) writeBibliography(sb *strings.Builder) {
	if e.res == nil {
		return
	}
	for _, line := range e.res.Bibliography {
		e.writeStyledTextParagraph(sb, styleBibliography, line)
	}
	if e.res.Note != "" {
		e.writeStyledTextParagraph(sb, styleBibliography, e.res.Note)
	}
}

// runCtx accumulates run formatting while descending the inline tree.
type runCtx struct {
	bold      bool
	italic    bool
	underline bool
	strike    bool
	highlight string
	vertAlign string // "superscript" or "subscript"
	mono      bool
	hyperlink bool
	deleted   bool
}

// runPropsXML builds the w:rPr element for a context, empty string when
// no property is set. Toggle properties are presence-only; the valued
// properties carry w:val.
func runPropsXML(ctx runCtx) string {
	var sb strings.Builder
	if ctx.hyperlink {
		sb.WriteString(`<w:rStyle w:val="` + styleHyperlink + `"/>`)
	}
	if ctx.mono {
		sb.WriteString(`<w:rFonts w:ascii="` + monospaceFont + `" w:hAnsi="` + monospaceFont + `"/>`)
	}
	if ctx.bold {
		sb.WriteString(`<w:b/>`)
	}
	if ctx.italic {
		sb.WriteString(`<w:i/>`)
	}
	if ctx.strike {
		sb.WriteString(`<w:strike/>`)
	}
	if ctx.underline {
		sb.WriteString(`<w:u w:val="single"/>`)
	}
	if ctx.highlight != "" {
		sb.WriteString(`<w:highlight w:val="` + encoding.EscapeXMLAttr(ctx.highlight) + `"/>`)
	}
	if ctx.vertAlign != "" {
		sb.WriteString(`<w:vertAlign w:val="` + ctx.vertAlign + `"/>`)
	}
	if sb.Len() == 0 {
		return ""
	}
	return `<w:rPr>` + sb.String() + `</w:rPr>`
}

// writeTextRuns emits text as runs, turning embedded newlines into
// line breaks. Inside a deletion the text element is w:delText.
func (e *encoder) writeTextRuns(sb *strings.Builder, text string, ctx runCtx) {
	if text == "" {
		return
	}
	tag := "w:t"
	if ctx.deleted {
		tag = "w:delText"
	}
	props := runPropsXML(ctx)
	for i, seg := range strings.Split(text, "\n") {
		if i > 0 {
			sb.WriteString(`<w:r>` + props + `<w:br/></w:r>`)
		}
		if seg == "" {
			continue
		}
		sb.WriteString(`<w:r>` + props + `<` + tag + ` xml:space="preserve">`)
		sb.WriteString(encoding.EscapeXMLText(seg))
		sb.WriteString(`</` + tag + `></w:r>`)
	}
}

func (e *encoder) writeInlines(sb *strings.Builder, inlines []doc.Inline, ctx runCtx) {
	for _, in := range inlines {
		e.writeInline(sb, in, ctx)
	}
}

func (e *encoder) writeInline(sb *strings.Builder, in doc.Inline, ctx runCtx) {
	switch v := in.(type) {
	case *doc.Text:
		e.writeTextRuns(sb, v.Value, ctx)
	case *doc.Bold:
		ctx.bold = true
		e.writeInlines(sb, v.Inlines, ctx)
	case *doc.Italic:
		ctx.italic = true
		e.writeInlines(sb, v.Inlines, ctx)
	case *doc.Underline:
		ctx.underline = true
		e.writeInlines(sb, v.Inlines, ctx)
	case *doc.Strikethrough:
		ctx.strike = true
		e.writeInlines(sb, v.Inlines, ctx)
	case *doc.Superscript:
		ctx.vertAlign = "superscript"
		e.writeInlines(sb, v.Inlines, ctx)
	case *doc.Subscript:
		ctx.vertAlign = "subscript"
		e.writeInlines(sb, v.Inlines, ctx)
	case *doc.Highlight:
		ctx.highlight = e.highlightValue(v.ColorID)
		if v.Comment != "" {
			cid := e.addComment(v.Comment)
			e.openCommentRange(sb, cid)
			e.writeInlines(sb, v.Inlines, ctx)
			e.closeCommentRange(sb, cid)
			return
		}
		e.writeInlines(sb, v.Inlines, ctx)
	case *doc.Code:
		ctx.mono = true
		e.writeTextRuns(sb, v.Value, ctx)
	case *doc.Link:
		e.writeHyperlink(sb, v, ctx)
	case *doc.InlineEquation:
		omml, warns := ommlFromLaTeX(v.LaTeX)
		e.warnings = append(e.warnings, warns...)
		sb.WriteString(`<m:oMath>` + omml + `</m:oMath>`)
	case *doc.Citation:
		e.writeCitation(sb, v, ctx)
	case *doc.Annotation:
		e.writeAnnotation(sb, v, ctx)
	}
}

func (e *encoder) highlightValue(colorID string) string {
	if colorID == "" {
		return "yellow"
	}
	if validHighlightValues[colorID] {
		return colorID
	}
	e.warnf(doc.WarnLossyConstruct, "highlight color %q is not representable, using yellow", colorID)
	return "yellow"
}

func (e *encoder) writeHyperlink(sb *strings.Builder, link *doc.Link, ctx runCtx) {
	rid := e.relForURL(link.Target)
	ctx.hyperlink = true
	sb.WriteString(`<w:hyperlink r:id="` + encoding.EscapeXMLAttr(rid) + `">`)
	e.writeInlines(sb, link.Inlines, ctx)
	sb.WriteString(`</w:hyperlink>`)
}

// relForURL returns the relationship id for a URL, reusing the existing
// relationship when the same URL was already linked.
func (e *encoder) relForURL(url string) string {
	if rid, ok := e.relByURL[url]; ok {
		return rid
	}
	rid := fmt.Sprintf("rId%d", len(e.rels)+1)
	e.rels = append(e.rels, relEntry{id: rid, target: url})
	e.relByURL[url] = rid
	return rid
}

// writeCitation emits a citation cluster. Clusters touching any entry
// with external identity become a live citation field carrying the full
// cluster payload; clusters with no external identity at all stay plain
// text.
func (e *encoder) writeCitation(sb *strings.Builder, c *doc.Citation, ctx runCtx) {
	rendered := e.renderedCluster(c)

	entries := map[string]*bib.Entry{}
	hasExternal := false
	if e.store != nil {
		for _, key := range c.Keys {
			if entry, ok := e.store.Get(key); ok {
				entries[key] = entry
				if entry.ExternalKey != "" || entry.ExternalURI != "" {
					hasExternal = true
				}
			}
		}
	}

	if !hasExternal {
		e.writeTextRuns(sb, rendered, ctx)
		return
	}

	e.fieldSeq++
	instr, err := buildFieldInstruction(c, entries, rendered, e.fieldSeq)
	if err != nil {
		e.warnf(doc.WarnLossyConstruct, "citation field payload failed to serialize: %v", err)
		e.writeTextRuns(sb, rendered, ctx)
		return
	}

	props := runPropsXML(ctx)
	sb.WriteString(`<w:r>` + props + `<w:fldChar w:fldCharType="begin"/></w:r>`)
	sb.WriteString(`<w:r>` + props + `<w:instrText xml:space="preserve">`)
	sb.WriteString(encoding.EscapeXMLText(instr))
	sb.WriteString(`</w:instrText></w:r>`)
	sb.WriteString(`<w:r>` + props + `<w:fldChar w:fldCharType="separate"/></w:r>`)
	e.writeTextRuns(sb, rendered, ctx)
	sb.WriteString(`<w:r>` + props + `<w:fldChar w:fldCharType="end"/></w:r>`)
}

// renderedCluster returns the resolved cluster text, or the literal
// source spelling when no resolution is available.
func (e *encoder) renderedCluster(c *doc.Citation) string {
	if e.res != nil {
		if text, ok := e.res.Rendered[c]; ok {
			return text
		}
	}
	parts := make([]string, 0, len(c.Keys))
	for _, key := range c.Keys {
		p := "@" + key
		if c.Suppressed(key) {
			p = "-" + p
		}
		if loc, ok := c.HasLocator(key); ok {
			p += ", " + loc
		}
		parts = append(parts, p)
	}
	return "[" + strings.Join(parts, "; ") + "]"
}

func (e *encoder) writeAnnotation(sb *strings.Builder, a *doc.Annotation, ctx runCtx) {
	switch a.Kind {
	case doc.KindAddition:
		e.withComment(sb, a.Comment, func() {
			e.openChange(sb, "w:ins")
			e.writeInlines(sb, a.Inlines, ctx)
			sb.WriteString(`</w:ins>`)
		})
	case doc.KindDeletion:
		e.withComment(sb, a.Comment, func() {
			e.openChange(sb, "w:del")
			ctx.deleted = true
			e.writeInlines(sb, a.Inlines, ctx)
			sb.WriteString(`</w:del>`)
		})
	case doc.KindSubstitution:
		e.withComment(sb, a.Comment, func() {
			e.openChange(sb, "w:del")
			del := ctx
			del.deleted = true
			e.writeInlines(sb, a.Old, del)
			sb.WriteString(`</w:del>`)
			e.openChange(sb, "w:ins")
			e.writeInlines(sb, a.New, ctx)
			sb.WriteString(`</w:ins>`)
		})
	case doc.KindMarked:
		cid := e.addComment(a.Comment)
		e.openCommentRange(sb, cid)
		e.writeInlines(sb, a.Inlines, ctx)
		e.closeCommentRange(sb, cid)
	case doc.KindRange:
		cid := e.addComment(a.Comment)
		e.rangeCID[a.ID] = cid
		e.openCommentRange(sb, cid)
	case doc.KindRangeEnd:
		if cid, ok := e.rangeCID[a.ID]; ok {
			e.closeCommentRange(sb, cid)
		}
	case doc.KindIndicator, doc.KindComment:
		cid := e.addComment(a.Comment)
		e.openCommentRange(sb, cid)
		e.closeCommentRange(sb, cid)
	}
}

// withComment wraps emitted content in a comment range when text is
// non-empty, otherwise just runs body.
func (e *encoder) withComment(sb *strings.Builder, text string, body func()) {
	if text == "" {
		body()
		return
	}
	cid := e.addComment(text)
	e.openCommentRange(sb, cid)
	body()
	e.closeCommentRange(sb, cid)
}

func (e *encoder) openChange(sb *strings.Builder, tag string) {
	e.nextChangeID++
	fmt.Fprintf(sb, `<%s w:id="%d" w:author="%s" w:date="%s">`,
		tag, e.nextChangeID, encoding.EscapeXMLAttr(e.author), e.date)
}

func (e *encoder) addComment(text string) int {
	e.nextCommentID++
	e.comments = append(e.comments, commentEntry{id: e.nextCommentID, text: text})
	return e.nextCommentID
}

func (e *encoder) openCommentRange(sb *strings.Builder, cid int) {
	fmt.Fprintf(sb, `<w:commentRangeStart w:id="%d"/>`, cid)
}

func (e *encoder) closeCommentRange(sb *strings.Builder, cid int) {
	fmt.Fprintf(sb, `<w:commentRangeEnd w:id="%d"/>`, cid)
	fmt.Fprintf(sb, `<w:r><w:commentReference w:id="%d"/></w:r>`, cid)
}

// commentsXML builds the comments part. Multi-line comment text
// becomes one paragraph per line.
func (e *encoder) commentsXML() []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<w:comments xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">`)
	for _, c := range e.comments {
		fmt.Fprintf(&sb, `<w:comment w:id="%d" w:author="%s" w:date="%s">`,
			c.id, encoding.EscapeXMLAttr(e.author), e.date)
		lines := strings.Split(c.text, "\n")
		for _, line := range lines {
			sb.WriteString(`<w:p><w:pPr><w:pStyle w:val="` + styleCommentText + `"/></w:pPr>`)
			if line != "" {
				sb.WriteString(`<w:r><w:t xml:space="preserve">` + encoding.EscapeXMLText(line) + `</w:t></w:r>`)
			}
			sb.WriteString(`</w:p>`)
		}
		sb.WriteString(`</w:comment>`)
	}
	sb.WriteString(`</w:comments>`)
	return []byte(sb.String())
}

func (e *encoder) documentRelsXML() []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, r := range e.rels {
		sb.WriteString(`<Relationship Id="` + encoding.EscapeXMLAttr(r.id) + `"` +
			` Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"` +
			` Target="` + encoding.EscapeXMLAttr(r.target) + `" TargetMode="External"/>`)
	}
	sb.WriteString(`</Relationships>`)
	return []byte(sb.String())
}

// numberingXML builds the numbering part: one bullet and one decimal
// abstract definition, each referenced through its own num mapping.
func numberingXML() []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<w:numbering xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">`)

	sb.WriteString(`<w:abstractNum w:abstractNumId="0">`)
	for lvl := 0; lvl < 9; lvl++ {
		fmt.Fprintf(&sb, `<w:lvl w:ilvl="%d"><w:numFmt w:val="bullet"/><w:lvlText w:val="•"/>`+
			`<w:pPr><w:ind w:left="%d" w:hanging="360"/></w:pPr></w:lvl>`,
			lvl, 720*(lvl+1))
	}
	sb.WriteString(`</w:abstractNum>`)

	sb.WriteString(`<w:abstractNum w:abstractNumId="1">`)
	for lvl := 0; lvl < 9; lvl++ {
		fmt.Fprintf(&sb, `<w:lvl w:ilvl="%d"><w:numFmt w:val="decimal"/><w:lvlText w:val="%%%d."/>`+
			`<w:start w:val="1"/><w:pPr><w:ind w:left="%d" w:hanging="360"/></w:pPr></w:lvl>`,
			lvl, lvl+1, 720*(lvl+1))
	}
	sb.WriteString(`</w:abstractNum>`)

	fmt.Fprintf(&sb, `<w:num w:numId="%d"><w:abstractNumId w:val="0"/></w:num>`, numIDBullet)
	fmt.Fprintf(&sb, `<w:num w:numId="%d"><w:abstractNumId w:val="1"/></w:num>`, numIDDecimal)
	sb.WriteString(`</w:numbering>`)
	return []byte(sb.String())
}
