package docx

import (
	"fmt"
	"strings"

	"github.com/quirelab/quire/core/doc"
	"github.com/quirelab/quire/core/encoding"
)

// Paragraph style identifiers used by the encoder and recognized by the
// decoder. Alert quotes get one style per kind so the flavor survives a
// round trip.
const (
	styleTitle        = "Title"
	styleQuote        = "Quote"
	styleCodeBlock    = "CodeBlock"
	styleCommentText  = "CommentText"
	styleBibliography = "Bibliography"
	styleListPara     = "ListParagraph"
	styleHyperlink    = "Hyperlink"
)

// headingStyleID returns the paragraph style id for a heading level.
func headingStyleID(level int) string {
	return fmt.Sprintf("Heading%d", level)
}

// alertStyleID maps an alert quote kind to its paragraph style id.
// Plain quotes use the shared Quote style.
func alertStyleID(kind doc.QuoteKind) string {
	switch kind {
	case doc.QuoteNote:
		return "AlertNote"
	case doc.QuoteTip:
		return "AlertTip"
	case doc.QuoteImportant:
		return "AlertImportant"
	case doc.QuoteWarning:
		return "AlertWarning"
	case doc.QuoteCaution:
		return "AlertCaution"
	default:
		return styleQuote
	}
}

// quoteKindForStyle inverts alertStyleID. ok is false for style ids
// that are not quote styles.
func quoteKindForStyle(styleID string) (doc.QuoteKind, bool) {
	switch styleID {
	case styleQuote:
		return doc.QuotePlain, true
	case "AlertNote":
		return doc.QuoteNote, true
	case "AlertTip":
		return doc.QuoteTip, true
	case "AlertImportant":
		return doc.QuoteImportant, true
	case "AlertWarning":
		return doc.QuoteWarning, true
	case "AlertCaution":
		return doc.QuoteCaution, true
	}
	return "", false
}

// monospaceFont is the run font used for inline code and code blocks.
// The decoder maps runs carrying it back to code spans.
const monospaceFont = "Consolas"

// defaultHeadingSizes holds heading font sizes in points for levels 1..6
// when no frontmatter override applies.
var defaultHeadingSizes = [6]float64{20, 16, 14, 12, 11, 11}

// stylesXML builds the style definitions part. Frontmatter font
// overrides replace the built-in title and heading fonts.
func stylesXML(fonts doc.FontOverrides) []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">`)

	sb.WriteString(`<w:docDefaults><w:rPrDefault><w:rPr>`)
	sb.WriteString(`<w:rFonts w:ascii="Calibri" w:hAnsi="Calibri"/><w:sz w:val="22"/>`)
	sb.WriteString(`</w:rPr></w:rPrDefault></w:docDefaults>`)

	sb.WriteString(`<w:style w:type="paragraph" w:default="1" w:styleId="Normal">`)
	sb.WriteString(`<w:name w:val="Normal"/></w:style>`)

	titleFamily := "Calibri Light"
	if fonts.TitleFamily != "" {
		titleFamily = fonts.TitleFamily
	}
	titleSize := 28.0
	if fonts.TitleSize != 0 {
		titleSize = fonts.TitleSize
	}
	writeParaStyle(&sb, styleTitle, "Title", func(sb *strings.Builder) {
		writeRunFonts(sb, titleFamily, titleSize)
	})

	for level := 1; level <= 6; level++ {
		family := "Calibri Light"
		if f := fonts.HeadingFamily[level-1]; f != "" {
			family = f
		}
		size := defaultHeadingSizes[level-1]
		if s := fonts.HeadingSize[level-1]; s != 0 {
			size = s
		}
		id := headingStyleID(level)
		writeParaStyle(&sb, id, fmt.Sprintf("heading %d", level), func(sb *strings.Builder) {
			sb.WriteString(`<w:b/>`)
			writeRunFonts(sb, family, size)
		})
	}

	writeParaStyle(&sb, styleQuote, "Quote", func(sb *strings.Builder) {
		sb.WriteString(`<w:i/>`)
	})
	for _, kind := range []doc.QuoteKind{
		doc.QuoteNote, doc.QuoteTip, doc.QuoteImportant, doc.QuoteWarning, doc.QuoteCaution,
	} {
		id := alertStyleID(kind)
		writeParaStyle(&sb, id, id, func(sb *strings.Builder) {
			sb.WriteString(`<w:i/>`)
		})
	}

	writeParaStyle(&sb, styleCodeBlock, "Code Block", func(sb *strings.Builder) {
		writeRunFonts(sb, monospaceFont, 10)
	})
	writeParaStyle(&sb, styleCommentText, "Comment Text", nil)
	writeParaStyle(&sb, styleBibliography, "Bibliography", nil)
	writeParaStyle(&sb, styleListPara, "List Paragraph", nil)

	sb.WriteString(`<w:style w:type="character" w:styleId="Hyperlink">`)
	sb.WriteString(`<w:name w:val="Hyperlink"/><w:rPr><w:color w:val="0563C1"/><w:u w:val="single"/></w:rPr>`)
	sb.WriteString(`</w:style>`)

	sb.WriteString(`</w:styles>`)
	return []byte(sb.String())
}

// writeParaStyle emits one paragraph style definition. The rPr callback
// fills the run-property element; nil means no run properties.
func writeParaStyle(sb *strings.Builder, id, name string, rpr func(*strings.Builder)) {
	sb.WriteString(`<w:style w:type="paragraph" w:styleId="` + encoding.EscapeXMLAttr(id) + `">`)
	sb.WriteString(`<w:name w:val="` + encoding.EscapeXMLAttr(name) + `"/>`)
	sb.WriteString(`<w:basedOn w:val="Normal"/>`)
	if rpr != nil {
		sb.WriteString(`<w:rPr>`)
		rpr(sb)
		sb.WriteString(`</w:rPr>`)
	}
	sb.WriteString(`</w:style>`)
}

// writeRunFonts emits font family and half-point size run properties.
func writeRunFonts(sb *strings.Builder, family string, sizePts float64) {
	esc := encoding.EscapeXMLAttr(family)
	sb.WriteString(`<w:rFonts w:ascii="` + esc + `" w:hAnsi="` + esc + `"/>`)
	fmt.Fprintf(sb, `<w:sz w:val="%d"/>`, int(sizePts*2))
}
