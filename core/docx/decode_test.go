package docx

import (
	"reflect"
	"testing"

	"github.com/quirelab/quire/core/doc"
)

const wNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// packageWithBody builds a minimal package whose document body is the
// given WordprocessingML fragment.
func packageWithBody(t *testing.T, body string, extra map[string]string) []byte {
	t.Helper()
	parts := map[string]string{
		partDocument: xmlHeader + `<w:document ` + wNS + `><w:body>` + body + `</w:body></w:document>`,
	}
	for name, content := range extra {
		parts[name] = content
	}
	return zipWithParts(t, parts)
}

func decodeBody(t *testing.T, body string, extra map[string]string) *doc.Document {
	t.Helper()
	d, _, _, err := Decode(packageWithBody(t, body, extra), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return d
}

func TestRunPropertiesOverrideOnlySpecified(t *testing.T) {
	// Paragraph-mark defaults set bold and italic. The second run turns
	// bold off explicitly; italic must survive from the defaults.
	body := `<w:p>` +
		`<w:pPr><w:rPr><w:b/><w:i/></w:rPr></w:pPr>` +
		`<w:r><w:t>one</w:t></w:r>` +
		`<w:r><w:rPr><w:b w:val="0"/></w:rPr><w:t>two</w:t></w:r>` +
		`</w:p>`
	d := decodeBody(t, body, nil)

	want := []doc.Inline{
		&doc.Bold{Inlines: []doc.Inline{&doc.Italic{Inlines: []doc.Inline{&doc.Text{Value: "one"}}}}},
		&doc.Italic{Inlines: []doc.Inline{&doc.Text{Value: "two"}}},
	}
	p, ok := d.Blocks[0].(*doc.Paragraph)
	if !ok {
		t.Fatalf("block = %T, want paragraph", d.Blocks[0])
	}
	if !reflect.DeepEqual(p.Inlines, want) {
		t.Errorf("inlines = %#v, want %#v", p.Inlines, want)
	}
}

func TestSplitRunsMerge(t *testing.T) {
	body := `<w:p>` +
		`<w:r><w:t>Hel</w:t></w:r>` +
		`<w:r><w:t>lo </w:t></w:r>` +
		`<w:r><w:rPr><w:b/></w:rPr><w:t>wor</w:t></w:r>` +
		`<w:r><w:rPr><w:b/></w:rPr><w:t>ld</w:t></w:r>` +
		`</w:p>`
	d := decodeBody(t, body, nil)

	want := []doc.Inline{
		&doc.Text{Value: "Hello "},
		&doc.Bold{Inlines: []doc.Inline{&doc.Text{Value: "world"}}},
	}
	p := d.Blocks[0].(*doc.Paragraph)
	if !reflect.DeepEqual(p.Inlines, want) {
		t.Errorf("inlines = %#v, want %#v", p.Inlines, want)
	}
}

func commentsPartXML(entries map[string]string) string {
	out := xmlHeader + `<w:comments ` + wNS + `>`
	for id, text := range entries {
		out += `<w:comment w:id="` + id + `" w:author="R" w:date="2025-01-01T00:00:00Z">` +
			`<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:comment>`
	}
	return out + `</w:comments>`
}

func TestNonOverlappingCommentBecomesMarkedRegion(t *testing.T) {
	body := `<w:p>` +
		`<w:commentRangeStart w:id="1"/>` +
		`<w:r><w:t>flagged text</w:t></w:r>` +
		`<w:commentRangeEnd w:id="1"/>` +
		`<w:r><w:commentReference w:id="1"/></w:r>` +
		`</w:p>`
	d := decodeBody(t, body, map[string]string{
		partComments: commentsPartXML(map[string]string{"1": "check wording"}),
	})

	p := d.Blocks[0].(*doc.Paragraph)
	ann, ok := p.Inlines[0].(*doc.Annotation)
	if !ok || ann.Kind != doc.KindMarked {
		t.Fatalf("inline = %#v, want marked annotation", p.Inlines[0])
	}
	if ann.Comment != "check wording" {
		t.Errorf("comment = %q, want %q", ann.Comment, "check wording")
	}
}

func TestOverlappingCommentsKeepIdentifierPairs(t *testing.T) {
	body := `<w:p>` +
		`<w:commentRangeStart w:id="1"/>` +
		`<w:r><w:t>one </w:t></w:r>` +
		`<w:commentRangeStart w:id="2"/>` +
		`<w:r><w:t>two</w:t></w:r>` +
		`<w:commentRangeEnd w:id="1"/>` +
		`<w:r><w:commentReference w:id="1"/></w:r>` +
		`<w:r><w:t> three</w:t></w:r>` +
		`<w:commentRangeEnd w:id="2"/>` +
		`<w:r><w:commentReference w:id="2"/></w:r>` +
		`</w:p>`
	d := decodeBody(t, body, map[string]string{
		partComments: commentsPartXML(map[string]string{"1": "first", "2": "second"}),
	})

	p := d.Blocks[0].(*doc.Paragraph)
	var kinds []doc.AnnotationKind
	var ids []string
	for _, in := range p.Inlines {
		if ann, ok := in.(*doc.Annotation); ok {
			kinds = append(kinds, ann.Kind)
			ids = append(ids, ann.ID)
		}
	}
	wantKinds := []doc.AnnotationKind{
		doc.KindRange, doc.KindRange, doc.KindRangeEnd, doc.KindRangeEnd,
	}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Fatalf("annotation kinds = %v, want %v", kinds, wantKinds)
	}
	if !reflect.DeepEqual(ids, []string{"1", "2", "1", "2"}) {
		t.Errorf("ids = %v, want [1 2 1 2]", ids)
	}
}

func TestPointCommentBecomesIndicator(t *testing.T) {
	body := `<w:p>` +
		`<w:r><w:t>before </w:t></w:r>` +
		`<w:r><w:commentReference w:id="4"/></w:r>` +
		`</w:p>`
	d := decodeBody(t, body, map[string]string{
		partComments: commentsPartXML(map[string]string{"4": "note here"}),
	})

	p := d.Blocks[0].(*doc.Paragraph)
	if len(p.Inlines) != 2 {
		t.Fatalf("inlines = %#v, want text plus indicator", p.Inlines)
	}
	ann, ok := p.Inlines[1].(*doc.Annotation)
	if !ok || ann.Kind != doc.KindIndicator || ann.Comment != "note here" {
		t.Errorf("inline = %#v, want indicator %q", p.Inlines[1], "note here")
	}
}

func TestCommentOnTrackedChangeAttaches(t *testing.T) {
	body := `<w:p>` +
		`<w:commentRangeStart w:id="1"/>` +
		`<w:ins w:id="2" w:author="R" w:date="2025-01-01T00:00:00Z">` +
		`<w:r><w:t>added</w:t></w:r></w:ins>` +
		`<w:commentRangeEnd w:id="1"/>` +
		`<w:r><w:commentReference w:id="1"/></w:r>` +
		`</w:p>`
	d := decodeBody(t, body, map[string]string{
		partComments: commentsPartXML(map[string]string{"1": "why this"}),
	})

	p := d.Blocks[0].(*doc.Paragraph)
	ann, ok := p.Inlines[0].(*doc.Annotation)
	if !ok || ann.Kind != doc.KindAddition {
		t.Fatalf("inline = %#v, want addition", p.Inlines[0])
	}
	if ann.Comment != "why this" {
		t.Errorf("comment = %q, want %q", ann.Comment, "why this")
	}
}

func TestAdjacentDelInsMergeToSubstitution(t *testing.T) {
	body := `<w:p>` +
		`<w:del w:id="1" w:author="R" w:date="2025-01-01T00:00:00Z">` +
		`<w:r><w:delText>old</w:delText></w:r></w:del>` +
		`<w:ins w:id="2" w:author="R" w:date="2025-01-01T00:00:00Z">` +
		`<w:r><w:t>new</w:t></w:r></w:ins>` +
		`</w:p>`
	d := decodeBody(t, body, nil)

	p := d.Blocks[0].(*doc.Paragraph)
	ann, ok := p.Inlines[0].(*doc.Annotation)
	if !ok || ann.Kind != doc.KindSubstitution {
		t.Fatalf("inline = %#v, want substitution", p.Inlines[0])
	}
	if !reflect.DeepEqual(ann.Old, []doc.Inline{&doc.Text{Value: "old"}}) {
		t.Errorf("old = %#v", ann.Old)
	}
	if !reflect.DeepEqual(ann.New, []doc.Inline{&doc.Text{Value: "new"}}) {
		t.Errorf("new = %#v", ann.New)
	}
}

func TestTrackedChangeAuthorStaysOnAnnotation(t *testing.T) {
	body := `<w:p>` +
		`<w:ins w:id="1" w:author="Reviewer" w:date="2025-01-01T00:00:00Z">` +
		`<w:r><w:t>added</w:t></w:r></w:ins>` +
		`</w:p>`
	d := decodeBody(t, body, nil)

	p := d.Blocks[0].(*doc.Paragraph)
	ann, ok := p.Inlines[0].(*doc.Annotation)
	if !ok || ann.Kind != doc.KindAddition {
		t.Fatalf("inline = %#v, want addition", p.Inlines[0])
	}
	if ann.Author != "Reviewer" {
		t.Errorf("annotation author = %q, want %q", ann.Author, "Reviewer")
	}
	if d.Meta.Author != "" {
		t.Errorf("document author = %q, want empty", d.Meta.Author)
	}
}

func TestCommentRangeAcrossParagraphsTruncatesWithWarning(t *testing.T) {
	body := `<w:p>` +
		`<w:commentRangeStart w:id="1"/>` +
		`<w:r><w:t>opening half</w:t></w:r>` +
		`</w:p>` +
		`<w:p>` +
		`<w:r><w:t>closing half</w:t></w:r>` +
		`<w:commentRangeEnd w:id="1"/>` +
		`<w:r><w:commentReference w:id="1"/></w:r>` +
		`</w:p>`
	pkg := packageWithBody(t, body, map[string]string{
		partComments: commentsPartXML(map[string]string{"1": "spans two"}),
	})
	d, _, warns, err := Decode(pkg, DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	p := d.Blocks[0].(*doc.Paragraph)
	ann, ok := p.Inlines[0].(*doc.Annotation)
	if !ok || ann.Kind != doc.KindMarked {
		t.Fatalf("inline = %#v, want marked annotation", p.Inlines[0])
	}
	if ann.Comment != "spans two" {
		t.Errorf("comment = %q, want %q", ann.Comment, "spans two")
	}
	found := false
	for _, w := range warns {
		if w.Code == doc.WarnLossyConstruct {
			found = true
		}
	}
	if !found {
		t.Errorf("no lossy-construct warning in %v", warns)
	}
}

func TestFieldCodeDecodesToCitation(t *testing.T) {
	instr := ` ADDIN ZOTERO_ITEM CSL_CITATION {"citationID":"c1",` +
		`"properties":{"formattedCitation":"(Doe, 2019)"},` +
		`"citationItems":[{"uris":["http://zotero.org/users/1/items/ABC123"],` +
		`"itemData":{"type":"article-journal","title":"On Testing",` +
		`"author":[{"family":"Doe","given":"Jane"}],` +
		`"issued":{"date-parts":[[2019]]},"citation-key":"doe2019"},` +
		`"locator":"p. 4"}],"schema":"` + cslSchemaURI + `"} `
	body := `<w:p>` +
		`<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText xml:space="preserve">` + instr + `</w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
		`<w:r><w:t>(Doe, 2019)</w:t></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r>` +
		`</w:p>`
	d, store, _, err := Decode(packageWithBody(t, body, nil), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	p := d.Blocks[0].(*doc.Paragraph)
	cit, ok := p.Inlines[0].(*doc.Citation)
	if !ok {
		t.Fatalf("inline = %#v, want citation", p.Inlines[0])
	}
	if !reflect.DeepEqual(cit.Keys, []string{"doe2019"}) {
		t.Errorf("keys = %v, want [doe2019]", cit.Keys)
	}
	if cit.Locators["doe2019"] != "p. 4" {
		t.Errorf("locator = %q, want %q", cit.Locators["doe2019"], "p. 4")
	}

	entry, ok := store.Get("doe2019")
	if !ok {
		t.Fatal("synthesized entry missing from store")
	}
	if entry.Field("title") != "On Testing" || entry.Field("year") != "2019" {
		t.Errorf("entry fields = title %q year %q", entry.Field("title"), entry.Field("year"))
	}
	if entry.ExternalKey != "ABC123" {
		t.Errorf("external key = %q, want ABC123", entry.ExternalKey)
	}
}

func TestNonCitationFieldKeepsVisibleResult(t *testing.T) {
	body := `<w:p>` +
		`<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText> PAGE </w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
		`<w:r><w:t>7</w:t></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r>` +
		`</w:p>`
	d := decodeBody(t, body, nil)

	p := d.Blocks[0].(*doc.Paragraph)
	if !reflect.DeepEqual(p.Inlines, []doc.Inline{&doc.Text{Value: "7"}}) {
		t.Errorf("inlines = %#v, want the visible page number", p.Inlines)
	}
}

func TestHeadingAndTitleStyles(t *testing.T) {
	body := `<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>My Title</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Section</w:t></w:r></w:p>`
	d := decodeBody(t, body, nil)

	if !reflect.DeepEqual(d.Meta.Titles, []string{"My Title"}) {
		t.Errorf("titles = %v, want [My Title]", d.Meta.Titles)
	}
	h, ok := d.Blocks[0].(*doc.Heading)
	if !ok || h.Level != 2 {
		t.Fatalf("block = %#v, want level-2 heading", d.Blocks[0])
	}
}

func TestBibliographyParagraphsAreDropped(t *testing.T) {
	body := `<w:p><w:r><w:t>body text</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:pStyle w:val="Bibliography"/></w:pPr><w:r><w:t>Doe (2019). On Testing.</w:t></w:r></w:p>`
	d := decodeBody(t, body, nil)

	if len(d.Blocks) != 1 {
		t.Errorf("blocks = %d, want 1 (bibliography dropped)", len(d.Blocks))
	}
}

func TestNumberingDrivesListKind(t *testing.T) {
	numbering := xmlHeader + `<w:numbering ` + wNS + `>` +
		`<w:abstractNum w:abstractNumId="0"><w:lvl w:ilvl="0"><w:numFmt w:val="bullet"/></w:lvl></w:abstractNum>` +
		`<w:abstractNum w:abstractNumId="1"><w:lvl w:ilvl="0"><w:numFmt w:val="decimal"/></w:lvl></w:abstractNum>` +
		`<w:num w:numId="10"><w:abstractNumId w:val="0"/></w:num>` +
		`<w:num w:numId="11"><w:abstractNumId w:val="1"/></w:num>` +
		`</w:numbering>`
	body := `<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="10"/></w:numPr></w:pPr>` +
		`<w:r><w:t>bullet</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:numPr><w:ilvl w:val="1"/><w:numId w:val="11"/></w:numPr></w:pPr>` +
		`<w:r><w:t>numbered</w:t></w:r></w:p>`
	d := decodeBody(t, body, map[string]string{partNumbering: numbering})

	first := d.Blocks[0].(*doc.ListItem)
	if first.Ordered {
		t.Error("numId 10 should decode as a bullet item")
	}
	second := d.Blocks[1].(*doc.ListItem)
	if !second.Ordered || second.Level != 1 {
		t.Errorf("item = %+v, want ordered level 1", second)
	}
}

func TestTaskMarkerRecognition(t *testing.T) {
	body := `<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr>` +
		`<w:r><w:t>` + "☑ " + `done</w:t></w:r></w:p>`
	d := decodeBody(t, body, nil)

	item := d.Blocks[0].(*doc.ListItem)
	if !item.Task || !item.Checked {
		t.Errorf("item = %+v, want checked task", item)
	}
	if !reflect.DeepEqual(item.Inlines, []doc.Inline{&doc.Text{Value: "done"}}) {
		t.Errorf("inlines = %#v, want stripped text", item.Inlines)
	}
}
