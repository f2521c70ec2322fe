package docx

import (
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"

	"github.com/quirelab/quire/core/bib"
	"github.com/quirelab/quire/core/doc"
	qerrors "github.com/quirelab/quire/core/errors"
	qxml "github.com/quirelab/quire/core/xml"
)

// DecodeOptions controls document import.
type DecodeOptions struct {
	// KeyFormat selects how citation keys are synthesized for field
	// items without an embedded key.
	KeyFormat KeyFormat
}

// Decode reads document package bytes and reconstructs the document
// model. Citation fields synthesize bibliography entries, returned in
// the store beside the document.
func Decode(data []byte, opts DecodeOptions) (*doc.Document, *bib.Store, []doc.Warning, error) {
	parts, err := readPackage(data)
	if err != nil {
		return nil, nil, nil, err
	}

	root, err := qxml.Parse(parts[partDocument])
	if err != nil {
		return nil, nil, nil, &qerrors.PackageError{
			Kind:    qerrors.MalformedPackage,
			Part:    partDocument,
			Message: "main content part is not well-formed XML",
			Err:     err,
		}
	}

	dec := &decoder{
		doc:       &doc.Document{},
		store:     bib.NewStore(),
		keyFormat: opts.KeyFormat,
		comments:  map[string]commentInfo{},
		rels:      map[string]string{},
		ordered:   map[string]bool{},
		usedIDs:   map[string]bool{},
	}

	if raw, ok := parts[partComments]; ok {
		if err := dec.loadComments(raw); err != nil {
			return nil, nil, nil, err
		}
	}
	if raw, ok := parts[partDocumentRels]; ok {
		if err := dec.loadRels(raw); err != nil {
			return nil, nil, nil, err
		}
	}
	if raw, ok := parts[partNumbering]; ok {
		if err := dec.loadNumbering(raw); err != nil {
			return nil, nil, nil, err
		}
	}

	body := qxml.Find(root, "body")
	if body == nil {
		return nil, nil, nil, &qerrors.PackageError{
			Kind:    qerrors.MalformedPackage,
			Part:    partDocument,
			Message: "document has no body element",
		}
	}

	dec.doc.Blocks = dec.decodeBlocks(body, true)
	return dec.doc, dec.store, dec.warnings, nil
}

type commentInfo struct {
	author string
	date   string
	text   string
}

type decoder struct {
	doc       *doc.Document
	store     *bib.Store
	keyFormat KeyFormat
	comments  map[string]commentInfo
	rels      map[string]string
	ordered   map[string]bool // numId -> ordered list
	usedIDs   map[string]bool // range ids emitted into the document
	warnings  []doc.Warning

	notedMissingNotes bool
}

func (d *decoder) warnf(code doc.WarningCode, format string, args ...interface{}) {
	d.warnings = append(d.warnings, doc.Warningf(code, format, args...))
}

// loadComments indexes the comments part by comment id. Comment
// paragraphs join with newlines, matching stacked comment semantics.
func (d *decoder) loadComments(raw []byte) error {
	root, err := qxml.Parse(raw)
	if err != nil {
		return &qerrors.PackageError{
			Kind:    qerrors.MalformedPackage,
			Part:    partComments,
			Message: "comments part is not well-formed XML",
			Err:     err,
		}
	}
	for _, c := range qxml.FindAll(root, "comment") {
		var lines []string
		for _, p := range qxml.FindAll(c, "p") {
			lines = append(lines, flattenText(p))
		}
		d.comments[qxml.Attr(c, "id")] = commentInfo{
			author: qxml.Attr(c, "author"),
			date:   qxml.Attr(c, "date"),
			text:   strings.Join(lines, "\n"),
		}
	}
	return nil
}

func (d *decoder) loadRels(raw []byte) error {
	root, err := qxml.Parse(raw)
	if err != nil {
		return &qerrors.PackageError{
			Kind:    qerrors.MalformedPackage,
			Part:    partDocumentRels,
			Message: "relationships part is not well-formed XML",
			Err:     err,
		}
	}
	for _, r := range qxml.FindAll(root, "Relationship") {
		d.rels[qxml.Attr(r, "Id")] = qxml.Attr(r, "Target")
	}
	return nil
}

// loadNumbering resolves each numId through its abstract definition to
// decide whether the list is ordered, from the level-0 number format.
func (d *decoder) loadNumbering(raw []byte) error {
	root, err := qxml.Parse(raw)
	if err != nil {
		return &qerrors.PackageError{
			Kind:    qerrors.MalformedPackage,
			Part:    partNumbering,
			Message: "numbering part is not well-formed XML",
			Err:     err,
		}
	}
	abstractOrdered := map[string]bool{}
	for _, an := range qxml.FindAll(root, "abstractNum") {
		id := qxml.Attr(an, "abstractNumId")
		for _, lvl := range qxml.FindAll(an, "lvl") {
			if qxml.Attr(lvl, "ilvl") != "0" {
				continue
			}
			if fmtEl := qxml.Child(lvl, "numFmt"); fmtEl != nil {
				abstractOrdered[id] = qxml.Attr(fmtEl, "val") != "bullet"
			}
		}
	}
	for _, num := range qxml.FindAll(root, "num") {
		if ref := qxml.Child(num, "abstractNumId"); ref != nil {
			d.ordered[qxml.Attr(num, "numId")] = abstractOrdered[qxml.Attr(ref, "val")]
		}
	}
	return nil
}

// decodeBlocks walks a container's block children. topLevel enables
// title capture into document metadata; table cells decode with it off.
func (d *decoder) decodeBlocks(container *xmlquery.Node, topLevel bool) []doc.Block {
	asm := blockAssembler{dec: d, topLevel: topLevel}
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		switch c.Data {
		case "p":
			asm.addParagraph(c)
		case "tbl":
			asm.flush()
			asm.blocks = append(asm.blocks, d.decodeTable(c))
		}
	}
	asm.flush()
	return asm.blocks
}

// blockAssembler groups decoded paragraphs into blocks, collecting
// consecutive code and quote paragraphs.
type blockAssembler struct {
	dec      *decoder
	topLevel bool
	blocks   []doc.Block

	codeLines []string
	inCode    bool

	quoteKind   doc.QuoteKind
	quoteBlocks []doc.Block
	inQuote     bool
}

func (a *blockAssembler) flush() {
	a.flushCode()
	a.flushQuote()
}

func (a *blockAssembler) flushCode() {
	if !a.inCode {
		return
	}
	a.blocks = append(a.blocks, &doc.CodeBlock{Text: strings.Join(a.codeLines, "\n")})
	a.codeLines = nil
	a.inCode = false
}

func (a *blockAssembler) flushQuote() {
	if !a.inQuote {
		return
	}
	a.blocks = append(a.blocks, &doc.BlockQuote{Kind: a.quoteKind, Blocks: a.quoteBlocks})
	a.quoteBlocks = nil
	a.inQuote = false
}

func (a *blockAssembler) addParagraph(p *xmlquery.Node) {
	d := a.dec
	style, numID, ilvl, defaults := parseParaProps(p)

	if math := qxml.Find(p, "oMathPara"); math != nil {
		a.flush()
		if om := qxml.Find(math, "oMath"); om != nil {
			a.blocks = append(a.blocks, &doc.DisplayEquation{LaTeX: ommlToLaTeX(om)})
		}
		return
	}

	if style == styleCodeBlock {
		a.flushQuote()
		a.inCode = true
		a.codeLines = append(a.codeLines, flattenText(p))
		return
	}
	a.flushCode()

	if kind, ok := quoteKindForStyle(style); ok {
		inlines := d.decodeParagraphInlines(p, defaults)
		if a.inQuote && a.quoteKind != kind {
			a.flushQuote()
		}
		a.inQuote = true
		a.quoteKind = kind
		a.quoteBlocks = append(a.quoteBlocks, &doc.Paragraph{Inlines: inlines})
		return
	}
	a.flushQuote()

	switch {
	case style == styleTitle && a.topLevel:
		d.doc.Meta.Titles = append(d.doc.Meta.Titles, flattenText(p))
		return
	case style == styleBibliography:
		// Generated bibliography material is not part of the source.
		return
	}

	if level, ok := headingLevelForStyle(style); ok {
		inlines := d.decodeParagraphInlines(p, defaults)
		a.blocks = append(a.blocks, &doc.Heading{Level: level, Inlines: inlines})
		return
	}

	if numID != "" {
		inlines := d.decodeParagraphInlines(p, defaults)
		item := &doc.ListItem{
			Ordered: d.ordered[numID],
			Level:   ilvl,
			Inlines: inlines,
		}
		stripTaskMarker(item)
		a.blocks = append(a.blocks, item)
		return
	}

	inlines := d.decodeParagraphInlines(p, defaults)
	if len(inlines) == 0 {
		return
	}
	a.blocks = append(a.blocks, &doc.Paragraph{Inlines: inlines})
}

// headingLevelForStyle recognizes HeadingN paragraph styles.
func headingLevelForStyle(style string) (int, bool) {
	const prefix = "Heading"
	if !strings.HasPrefix(style, prefix) {
		return 0, false
	}
	level, err := strconv.Atoi(style[len(prefix):])
	if err != nil || level < 1 || level > 6 {
		return 0, false
	}
	return level, true
}

// stripTaskMarker recognizes a leading checkbox character on a list
// item and converts it to task state.
func stripTaskMarker(item *doc.ListItem) {
	if len(item.Inlines) == 0 {
		return
	}
	t, ok := item.Inlines[0].(*doc.Text)
	if !ok {
		return
	}
	switch {
	case strings.HasPrefix(t.Value, "☐ "):
		item.Task = true
		t.Value = strings.TrimPrefix(t.Value, "☐ ")
	case strings.HasPrefix(t.Value, "☑ "):
		item.Task, item.Checked = true, true
		t.Value = strings.TrimPrefix(t.Value, "☑ ")
	default:
		return
	}
	if t.Value == "" {
		item.Inlines = item.Inlines[1:]
	}
}

func (d *decoder) decodeTable(tbl *xmlquery.Node) *doc.Table {
	t := &doc.Table{}
	for tr := tbl.FirstChild; tr != nil; tr = tr.NextSibling {
		if tr.Type != xmlquery.ElementNode || tr.Data != "tr" {
			continue
		}
		if len(t.Rows) == 0 {
			if trPr := qxml.Child(tr, "trPr"); trPr != nil && qxml.Child(trPr, "tblHeader") != nil {
				t.HeaderRow = true
			}
		}
		var row []doc.TableCell
		for tc := tr.FirstChild; tc != nil; tc = tc.NextSibling {
			if tc.Type != xmlquery.ElementNode || tc.Data != "tc" {
				continue
			}
			row = append(row, doc.TableCell{Blocks: d.decodeBlocks(tc, false)})
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// parseParaProps extracts the style id, numbering reference, and
// paragraph-mark run defaults from w:pPr.
func parseParaProps(p *xmlquery.Node) (style, numID string, ilvl int, defaults runProps) {
	pPr := qxml.Child(p, "pPr")
	if pPr == nil {
		return
	}
	if ps := qxml.Child(pPr, "pStyle"); ps != nil {
		style = qxml.Attr(ps, "val")
	}
	if numPr := qxml.Child(pPr, "numPr"); numPr != nil {
		if ni := qxml.Child(numPr, "numId"); ni != nil {
			numID = qxml.Attr(ni, "val")
		}
		if lv := qxml.Child(numPr, "ilvl"); lv != nil {
			ilvl, _ = strconv.Atoi(qxml.Attr(lv, "val"))
		}
	}
	if rPr := qxml.Child(pPr, "rPr"); rPr != nil {
		defaults = parseRunProps(rPr)
	}
	return
}

// decodeParagraphInlines decodes the inline stream of one paragraph,
// then resolves substitutions and comment ranges.
func (d *decoder) decodeParagraphInlines(p *xmlquery.Node, defaults runProps) []doc.Inline {
	st := &inlineState{dec: d, defaults: defaults, seenStarts: map[string]bool{}}
	st.walk(p, false)
	st.finishField()
	inlines := mergeSubstitutions(st.out)
	inlines = d.resolveCommentRanges(inlines)
	return mergeAdjacent(inlines)
}

// inlineState carries the field-instruction state machine and the
// accumulated stream while walking paragraph content.
type inlineState struct {
	dec      *decoder
	defaults runProps
	out      []doc.Inline

	// Field machine: 0 idle, 1 collecting instruction, 2 in result.
	fieldState  int
	fieldInstr  strings.Builder
	fieldResult []doc.Inline

	seenStarts map[string]bool
}

func (st *inlineState) emit(in ...doc.Inline) {
	if st.fieldState == 2 {
		st.fieldResult = append(st.fieldResult, in...)
		return
	}
	st.out = append(st.out, in...)
}

// finishField closes an unterminated field at paragraph end.
func (st *inlineState) finishField() {
	if st.fieldState != 0 {
		st.endField()
	}
}

// endField resolves the collected field. Citation instructions become
// a citation node and synthesized entries; any other field keeps its
// visible result.
func (st *inlineState) endField() {
	instr := st.fieldInstr.String()
	result := st.fieldResult
	st.fieldState = 0
	st.fieldInstr.Reset()
	st.fieldResult = nil

	if cit, entries, ok := parseFieldInstruction(instr, st.dec.keyFormat); ok {
		for _, e := range entries {
			st.dec.store.Add(e)
		}
		st.out = append(st.out, cit)
		return
	}
	st.out = append(st.out, result...)
}

func (st *inlineState) walk(parent *xmlquery.Node, deleted bool) {
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		switch c.Data {
		case "pPr":
			// Paragraph properties, handled by the caller.
		case "r":
			st.decodeRun(c, deleted)
		case "ins":
			st.decodeTracked(c, doc.KindAddition)
		case "del":
			st.decodeTracked(c, doc.KindDeletion)
		case "hyperlink":
			st.decodeHyperlink(c, deleted)
		case "oMath":
			st.emit(&doc.InlineEquation{LaTeX: ommlToLaTeX(c)})
		case "commentRangeStart":
			id := qxml.Attr(c, "id")
			st.seenStarts[id] = true
			st.emit(&doc.Annotation{Kind: doc.KindRangeStart, ID: id})
		case "commentRangeEnd":
			st.emit(&doc.Annotation{Kind: doc.KindRangeEnd, ID: qxml.Attr(c, "id")})
		case "fldSimple":
			if cit, entries, ok := parseFieldInstruction(qxml.Attr(c, "instr"), st.dec.keyFormat); ok {
				for _, e := range entries {
					st.dec.store.Add(e)
				}
				st.emit(cit)
			} else {
				st.walk(c, deleted)
			}
		case "smartTag", "proofErr", "bookmarkStart", "bookmarkEnd":
			st.walk(c, deleted)
		}
	}
}

func (st *inlineState) decodeTracked(n *xmlquery.Node, kind doc.AnnotationKind) {
	sub := &inlineState{dec: st.dec, defaults: st.defaults, seenStarts: st.seenStarts}
	sub.walk(n, kind == doc.KindDeletion)
	sub.finishField()
	st.emit(&doc.Annotation{
		Kind:      kind,
		Author:    qxml.Attr(n, "author"),
		Timestamp: qxml.Attr(n, "date"),
		Inlines:   mergeAdjacent(sub.out),
	})
}

func (st *inlineState) decodeHyperlink(n *xmlquery.Node, deleted bool) {
	target := st.dec.rels[qxml.Attr(n, "id")]
	sub := &inlineState{dec: st.dec, defaults: st.defaults, seenStarts: st.seenStarts}
	sub.walk(n, deleted)
	sub.finishField()
	inlines := mergeAdjacent(sub.out)
	if target == "" {
		st.emit(inlines...)
		return
	}
	st.emit(&doc.Link{Target: target, Inlines: inlines})
}

// decodeRun handles one w:r, including its role in the field machine.
func (st *inlineState) decodeRun(r *xmlquery.Node, deleted bool) {
	if fc := qxml.Child(r, "fldChar"); fc != nil {
		switch qxml.Attr(fc, "fldCharType") {
		case "begin":
			st.finishField()
			st.fieldState = 1
		case "separate":
			st.fieldState = 2
		case "end":
			st.endField()
		}
		return
	}
	if st.fieldState == 1 {
		for c := r.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xmlquery.ElementNode && c.Data == "instrText" {
				st.fieldInstr.WriteString(qxml.Text(c))
			}
		}
		return
	}

	props := parseRunProps(qxml.Child(r, "rPr")).mergedWith(st.defaults)

	var text strings.Builder
	for c := r.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		switch c.Data {
		case "t", "delText":
			text.WriteString(qxml.Text(c))
		case "br":
			text.WriteString("\n")
		case "tab":
			text.WriteString("\t")
		case "noBreakHyphen":
			text.WriteString("-")
		case "footnoteReference", "endnoteReference":
			if !st.dec.notedMissingNotes {
				st.dec.notedMissingNotes = true
				st.dec.warnf(doc.WarnLossyConstruct, "note references are kept as markers, note bodies are not imported")
			}
			st.emit(&doc.Superscript{Inlines: []doc.Inline{
				&doc.Text{Value: "[" + qxml.Attr(c, "id") + "]"},
			}})
		case "commentReference":
			id := qxml.Attr(c, "id")
			if !st.seenStarts[id] {
				// Point-anchored comment with no explicit range.
				st.emit(&doc.Annotation{Kind: doc.KindRangeStart, ID: id})
				st.emit(&doc.Annotation{Kind: doc.KindRangeEnd, ID: id})
			}
		}
	}
	if text.Len() == 0 {
		return
	}
	st.emit(wrapRunText(text.String(), props))
}

// runProps holds run formatting where nil means unspecified, so run
// properties override paragraph-mark defaults only where they appear.
type runProps struct {
	bold      *bool
	italic    *bool
	strike    *bool
	underline *bool
	highlight *string
	vertAlign *string
	mono      *bool
}

func (p runProps) mergedWith(base runProps) runProps {
	out := base
	if p.bold != nil {
		out.bold = p.bold
	}
	if p.italic != nil {
		out.italic = p.italic
	}
	if p.strike != nil {
		out.strike = p.strike
	}
	if p.underline != nil {
		out.underline = p.underline
	}
	if p.highlight != nil {
		out.highlight = p.highlight
	}
	if p.vertAlign != nil {
		out.vertAlign = p.vertAlign
	}
	if p.mono != nil {
		out.mono = p.mono
	}
	return out
}

func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

// isOn interprets a toggle attribute value: absence of the attribute
// (empty string) means the property is on.
func isOn(att string) bool { return att != "0" && att != "false" && att != "none" }

func parseRunProps(rPr *xmlquery.Node) runProps {
	var p runProps
	if rPr == nil {
		return p
	}
	for c := rPr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		switch c.Data {
		case "b":
			p.bold = boolPtr(isOn(qxml.Attr(c, "val")))
		case "i":
			p.italic = boolPtr(isOn(qxml.Attr(c, "val")))
		case "strike":
			p.strike = boolPtr(isOn(qxml.Attr(c, "val")))
		case "u":
			val := qxml.Attr(c, "val")
			p.underline = boolPtr(val != "none")
		case "highlight":
			if v := qxml.Attr(c, "val"); v != "" && v != "none" {
				p.highlight = strPtr(v)
			} else {
				p.highlight = strPtr("")
			}
		case "vertAlign":
			v := qxml.Attr(c, "val")
			if v == "superscript" || v == "subscript" {
				p.vertAlign = strPtr(v)
			} else {
				p.vertAlign = strPtr("")
			}
		case "rFonts":
			p.mono = boolPtr(qxml.Attr(c, "ascii") == monospaceFont)
		}
	}
	return p
}

// wrapRunText builds the nested inline for a run's text under its
// effective formatting, canonical wrapper order outermost first.
func wrapRunText(text string, p runProps) doc.Inline {
	var inner doc.Inline
	if p.mono != nil && *p.mono {
		inner = &doc.Code{Value: text}
	} else {
		inner = &doc.Text{Value: text}
	}
	wrap := func(outer doc.Inline) { inner = outer }

	if p.vertAlign != nil {
		switch *p.vertAlign {
		case "superscript":
			wrap(&doc.Superscript{Inlines: []doc.Inline{inner}})
		case "subscript":
			wrap(&doc.Subscript{Inlines: []doc.Inline{inner}})
		}
	}
	if p.highlight != nil && *p.highlight != "" {
		wrap(&doc.Highlight{ColorID: *p.highlight, Inlines: []doc.Inline{inner}})
	}
	if p.strike != nil && *p.strike {
		wrap(&doc.Strikethrough{Inlines: []doc.Inline{inner}})
	}
	if p.underline != nil && *p.underline {
		wrap(&doc.Underline{Inlines: []doc.Inline{inner}})
	}
	if p.italic != nil && *p.italic {
		wrap(&doc.Italic{Inlines: []doc.Inline{inner}})
	}
	if p.bold != nil && *p.bold {
		wrap(&doc.Bold{Inlines: []doc.Inline{inner}})
	}
	return inner
}

// mergeSubstitutions collapses a deletion directly followed by an
// addition into one substitution. A substitution encodes as exactly
// that pair, so the package form cannot distinguish the two.
func mergeSubstitutions(inlines []doc.Inline) []doc.Inline {
	var out []doc.Inline
	for _, in := range inlines {
		add, ok := in.(*doc.Annotation)
		if ok && add.Kind == doc.KindAddition && len(out) > 0 {
			if del, ok := out[len(out)-1].(*doc.Annotation); ok && del.Kind == doc.KindDeletion {
				out[len(out)-1] = &doc.Annotation{
					Kind:      doc.KindSubstitution,
					Author:    del.Author,
					Timestamp: del.Timestamp,
					Old:       del.Inlines,
					New:       add.Inlines,
				}
				continue
			}
		}
		out = append(out, in)
	}
	return out
}

// commentSpan is one comment range located in a paragraph stream.
type commentSpan struct {
	pkgID      string
	docID      string // identifier emitted for both markers of the pair
	start, end int    // positions in the stream with markers removed
	simple     bool
}

// resolveCommentRanges rewrites raw range markers into document
// annotations. A range disjoint from every other range attaches its
// comment to the spanned content; ranges that overlap or nest keep
// explicit identifier pairs.
func (d *decoder) resolveCommentRanges(inlines []doc.Inline) []doc.Inline {
	var content []doc.Inline
	starts := map[string]int{}
	var spans []*commentSpan
	for _, in := range inlines {
		if ann, ok := in.(*doc.Annotation); ok {
			switch ann.Kind {
			case doc.KindRangeStart:
				starts[ann.ID] = len(content)
				continue
			case doc.KindRangeEnd:
				start, ok := starts[ann.ID]
				if !ok {
					start = 0
				}
				delete(starts, ann.ID)
				spans = append(spans, &commentSpan{pkgID: ann.ID, start: start, end: len(content)})
				continue
			}
		}
		content = append(content, in)
	}
	// Unclosed ranges run to the end of the paragraph.
	for id, start := range starts {
		d.warnf(doc.WarnLossyConstruct, "comment range %s crosses a paragraph boundary, truncated at the paragraph end", id)
		spans = append(spans, &commentSpan{pkgID: id, start: start, end: len(content)})
	}
	if len(spans) == 0 {
		return inlines
	}

	for _, s := range spans {
		s.simple = true
		for _, o := range spans {
			if o == s {
				continue
			}
			if s.start < o.end && o.start < s.end {
				s.simple = false
				break
			}
		}
		if !s.simple {
			s.docID = d.rangeID(s.pkgID)
		}
	}

	var out []doc.Inline
	var wrapping *commentSpan
	var wrapBuf []doc.Inline
	sink := func() *[]doc.Inline {
		if wrapping != nil {
			return &wrapBuf
		}
		return &out
	}

	for pos := 0; pos <= len(content); pos++ {
		for _, s := range spans {
			if s.end != pos || s.start == pos {
				continue
			}
			if s.simple && wrapping == s {
				out = append(out, d.closeSimpleSpan(s, wrapBuf))
				wrapping = nil
				wrapBuf = nil
			} else if !s.simple {
				*sink() = append(*sink(), &doc.Annotation{Kind: doc.KindRangeEnd, ID: s.docID})
			}
		}
		for _, s := range spans {
			if s.start != pos {
				continue
			}
			text := d.comments[s.pkgID].text
			if s.end == pos {
				// Zero-length range: a standalone indicator.
				if strings.TrimSpace(text) != "" {
					*sink() = append(*sink(), &doc.Annotation{Kind: doc.KindIndicator, Comment: text})
				}
				continue
			}
			if s.simple {
				wrapping = s
				wrapBuf = nil
			} else {
				*sink() = append(*sink(), &doc.Annotation{
					Kind:    doc.KindRange,
					ID:      s.docID,
					Comment: text,
				})
			}
		}
		if pos < len(content) {
			*sink() = append(*sink(), content[pos])
		}
	}
	if wrapping != nil {
		out = append(out, d.closeSimpleSpan(wrapping, wrapBuf))
	}
	return out
}

// closeSimpleSpan attaches a simple range's comment to its content:
// directly onto a lone annotation or highlight, otherwise as a marked
// region wrapper.
func (d *decoder) closeSimpleSpan(s *commentSpan, content []doc.Inline) doc.Inline {
	text := d.comments[s.pkgID].text
	info := d.comments[s.pkgID]
	if len(content) == 1 {
		switch v := content[0].(type) {
		case *doc.Annotation:
			switch v.Kind {
			case doc.KindAddition, doc.KindDeletion, doc.KindSubstitution, doc.KindMarked:
				v.Comment = joinCommentText(v.Comment, text)
				return v
			}
		case *doc.Highlight:
			v.Comment = joinCommentText(v.Comment, text)
			return v
		}
	}
	return &doc.Annotation{
		Kind:    doc.KindMarked,
		Author:  info.author,
		Comment: text,
		Inlines: content,
	}
}

func joinCommentText(existing, text string) string {
	switch {
	case existing == "":
		return text
	case text == "":
		return existing
	default:
		return existing + "\n" + text
	}
}

// rangeID maps a package comment id to a document range identifier,
// switching to a fresh unique id when the package id was already used.
func (d *decoder) rangeID(pkgID string) string {
	id := pkgID
	if id == "" || d.usedIDs[id] {
		id = uuid.New().String()
	}
	d.usedIDs[id] = true
	return id
}

// mergeAdjacent joins consecutive text nodes and consecutive wrappers
// of the same kind, recursing into containers. Run-per-word packages
// decode into heavily split streams; this restores contiguous inlines.
func mergeAdjacent(inlines []doc.Inline) []doc.Inline {
	var out []doc.Inline
	for _, in := range inlines {
		in = mergeChildren(in)
		if len(out) > 0 {
			if merged, ok := mergeTwo(out[len(out)-1], in); ok {
				out[len(out)-1] = merged
				continue
			}
		}
		out = append(out, in)
	}
	return out
}

func mergeChildren(in doc.Inline) doc.Inline {
	switch v := in.(type) {
	case *doc.Bold:
		v.Inlines = mergeAdjacent(v.Inlines)
	case *doc.Italic:
		v.Inlines = mergeAdjacent(v.Inlines)
	case *doc.Underline:
		v.Inlines = mergeAdjacent(v.Inlines)
	case *doc.Strikethrough:
		v.Inlines = mergeAdjacent(v.Inlines)
	case *doc.Highlight:
		v.Inlines = mergeAdjacent(v.Inlines)
	case *doc.Superscript:
		v.Inlines = mergeAdjacent(v.Inlines)
	case *doc.Subscript:
		v.Inlines = mergeAdjacent(v.Inlines)
	case *doc.Link:
		v.Inlines = mergeAdjacent(v.Inlines)
	}
	return in
}

// mergeTwo merges b into a when they are compatible neighbors.
func mergeTwo(a, b doc.Inline) (doc.Inline, bool) {
	switch av := a.(type) {
	case *doc.Text:
		if bv, ok := b.(*doc.Text); ok {
			av.Value += bv.Value
			return av, true
		}
	case *doc.Code:
		if bv, ok := b.(*doc.Code); ok {
			av.Value += bv.Value
			return av, true
		}
	case *doc.Bold:
		if bv, ok := b.(*doc.Bold); ok {
			av.Inlines = mergeAdjacent(append(av.Inlines, bv.Inlines...))
			return av, true
		}
	case *doc.Italic:
		if bv, ok := b.(*doc.Italic); ok {
			av.Inlines = mergeAdjacent(append(av.Inlines, bv.Inlines...))
			return av, true
		}
	case *doc.Underline:
		if bv, ok := b.(*doc.Underline); ok {
			av.Inlines = mergeAdjacent(append(av.Inlines, bv.Inlines...))
			return av, true
		}
	case *doc.Strikethrough:
		if bv, ok := b.(*doc.Strikethrough); ok {
			av.Inlines = mergeAdjacent(append(av.Inlines, bv.Inlines...))
			return av, true
		}
	case *doc.Highlight:
		if bv, ok := b.(*doc.Highlight); ok && av.ColorID == bv.ColorID && av.Comment == "" && bv.Comment == "" {
			av.Inlines = mergeAdjacent(append(av.Inlines, bv.Inlines...))
			return av, true
		}
	case *doc.Superscript:
		if bv, ok := b.(*doc.Superscript); ok {
			av.Inlines = mergeAdjacent(append(av.Inlines, bv.Inlines...))
			return av, true
		}
	case *doc.Subscript:
		if bv, ok := b.(*doc.Subscript); ok {
			av.Inlines = mergeAdjacent(append(av.Inlines, bv.Inlines...))
			return av, true
		}
	case *doc.Link:
		if bv, ok := b.(*doc.Link); ok && av.Target == bv.Target {
			av.Inlines = mergeAdjacent(append(av.Inlines, bv.Inlines...))
			return av, true
		}
	}
	return nil, false
}

// flattenText concatenates all visible text under a node.
func flattenText(n *xmlquery.Node) string {
	var sb strings.Builder
	var walk func(*xmlquery.Node)
	walk = func(c *xmlquery.Node) {
		for ; c != nil; c = c.NextSibling {
			if c.Type == xmlquery.ElementNode {
				switch c.Data {
				case "t", "delText":
					sb.WriteString(qxml.Text(c))
					continue
				case "pPr", "rPr", "instrText":
					continue
				}
			}
			walk(c.FirstChild)
		}
	}
	walk(n.FirstChild)
	return sb.String()
}
