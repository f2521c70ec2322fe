package docx

import (
	"strings"
	"testing"
	"time"

	"github.com/quirelab/quire/core/bib"
	"github.com/quirelab/quire/core/doc"
)

var testTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func encodeDoc(t *testing.T, d *doc.Document, store *bib.Store) map[string][]byte {
	t.Helper()
	data, _, err := Encode(d, store, nil, Options{Author: "Reviewer", Timestamp: testTime})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	parts, err := readPackage(data)
	if err != nil {
		t.Fatalf("readPackage: %v", err)
	}
	return parts
}

func docPart(t *testing.T, parts map[string][]byte) string {
	t.Helper()
	return string(parts[partDocument])
}

func TestMinimalPackageParts(t *testing.T) {
	d := &doc.Document{Blocks: []doc.Block{
		&doc.Paragraph{Inlines: []doc.Inline{&doc.Text{Value: "hello"}}},
	}}
	parts := encodeDoc(t, d, nil)

	for _, required := range []string{partContentTypes, partRootRels, partDocument, partStyles} {
		if _, ok := parts[required]; !ok {
			t.Errorf("required part %s missing", required)
		}
	}
	for _, absent := range []string{partNumbering, partComments, partDocumentRels} {
		if _, ok := parts[absent]; ok {
			t.Errorf("part %s should not be written for plain text", absent)
		}
	}
}

func TestTogglePropertiesArePresenceOnly(t *testing.T) {
	d := &doc.Document{Blocks: []doc.Block{
		&doc.Paragraph{Inlines: []doc.Inline{
			&doc.Bold{Inlines: []doc.Inline{&doc.Text{Value: "b"}}},
			&doc.Italic{Inlines: []doc.Inline{&doc.Text{Value: "i"}}},
			&doc.Strikethrough{Inlines: []doc.Inline{&doc.Text{Value: "s"}}},
		}},
	}}
	body := docPart(t, encodeDoc(t, d, nil))

	for _, want := range []string{"<w:b/>", "<w:i/>", "<w:strike/>"} {
		if !strings.Contains(body, want) {
			t.Errorf("document missing toggle %s", want)
		}
	}
	for _, bad := range []string{"<w:b ", "<w:i ", "<w:strike "} {
		if strings.Contains(body, bad) {
			t.Errorf("toggle emitted with a value: %s", bad)
		}
	}
}

func TestValuedPropertiesCarryValues(t *testing.T) {
	d := &doc.Document{Blocks: []doc.Block{
		&doc.Paragraph{Inlines: []doc.Inline{
			&doc.Underline{Inlines: []doc.Inline{&doc.Text{Value: "u"}}},
			&doc.Highlight{ColorID: "green", Inlines: []doc.Inline{&doc.Text{Value: "h"}}},
			&doc.Superscript{Inlines: []doc.Inline{&doc.Text{Value: "2"}}},
		}},
	}}
	body := docPart(t, encodeDoc(t, d, nil))

	wants := []string{
		`<w:u w:val="single"/>`,
		`<w:highlight w:val="green"/>`,
		`<w:vertAlign w:val="superscript"/>`,
	}
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Errorf("document missing %s", want)
		}
	}
}

func TestUnknownHighlightColorDegradesToYellow(t *testing.T) {
	d := &doc.Document{Blocks: []doc.Block{
		&doc.Paragraph{Inlines: []doc.Inline{
			&doc.Highlight{ColorID: "chartreuse", Inlines: []doc.Inline{&doc.Text{Value: "h"}}},
		}},
	}}
	data, warns, err := Encode(d, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	parts, _ := readPackage(data)
	if !strings.Contains(string(parts[partDocument]), `<w:highlight w:val="yellow"/>`) {
		t.Error("unknown color did not fall back to yellow")
	}
	if len(warns) != 1 || warns[0].Code != doc.WarnLossyConstruct {
		t.Errorf("warnings = %v, want one lossy-construct", warns)
	}
}

func TestHeadingStyles(t *testing.T) {
	d := &doc.Document{Blocks: []doc.Block{
		&doc.Heading{Level: 1, Inlines: []doc.Inline{&doc.Text{Value: "One"}}},
		&doc.Heading{Level: 3, Inlines: []doc.Inline{&doc.Text{Value: "Three"}}},
	}}
	body := docPart(t, encodeDoc(t, d, nil))
	for _, want := range []string{`<w:pStyle w:val="Heading1"/>`, `<w:pStyle w:val="Heading3"/>`} {
		if !strings.Contains(body, want) {
			t.Errorf("document missing %s", want)
		}
	}
}

func TestListNumberingIndirection(t *testing.T) {
	d := &doc.Document{Blocks: []doc.Block{
		&doc.ListItem{Ordered: false, Inlines: []doc.Inline{&doc.Text{Value: "bullet"}}},
		&doc.ListItem{Ordered: true, Level: 1, Inlines: []doc.Inline{&doc.Text{Value: "numbered"}}},
	}}
	parts := encodeDoc(t, d, nil)
	body := docPart(t, parts)

	if !strings.Contains(body, `<w:numId w:val="1"/>`) {
		t.Error("bullet list does not reference numId 1")
	}
	if !strings.Contains(body, `<w:ilvl w:val="1"/>`) {
		t.Error("nested item does not carry its level")
	}
	numbering, ok := parts[partNumbering]
	if !ok {
		t.Fatal("numbering part missing")
	}
	for _, want := range []string{
		`<w:abstractNum w:abstractNumId="0">`,
		`<w:num w:numId="2"><w:abstractNumId w:val="1"/></w:num>`,
	} {
		if !strings.Contains(string(numbering), want) {
			t.Errorf("numbering part missing %s", want)
		}
	}
}

func TestHyperlinkRelationshipDedup(t *testing.T) {
	link := func(url, text string) doc.Inline {
		return &doc.Link{Target: url, Inlines: []doc.Inline{&doc.Text{Value: text}}}
	}
	d := &doc.Document{Blocks: []doc.Block{
		&doc.Paragraph{Inlines: []doc.Inline{
			link("https://example.com", "first"),
			link("https://example.com", "second"),
			link("https://other.org", "third"),
		}},
	}}
	parts := encodeDoc(t, d, nil)

	rels := string(parts[partDocumentRels])
	if got := strings.Count(rels, "<Relationship "); got != 2 {
		t.Errorf("relationship count = %d, want 2", got)
	}
	body := docPart(t, parts)
	if got := strings.Count(body, `r:id="rId1"`); got != 2 {
		t.Errorf("rId1 used %d times, want 2", got)
	}
}

func TestTrackedChangeAttribution(t *testing.T) {
	d := &doc.Document{Blocks: []doc.Block{
		&doc.Paragraph{Inlines: []doc.Inline{
			&doc.Annotation{Kind: doc.KindAddition, Inlines: []doc.Inline{&doc.Text{Value: "new"}}},
			&doc.Annotation{Kind: doc.KindDeletion, Inlines: []doc.Inline{&doc.Text{Value: "old"}}},
		}},
	}}
	body := docPart(t, encodeDoc(t, d, nil))

	if !strings.Contains(body, `<w:ins w:id="1" w:author="Reviewer" w:date="2025-03-14T09:30:00Z">`) {
		t.Error("insertion lacks attribution")
	}
	if !strings.Contains(body, "<w:del ") {
		t.Error("deletion element missing")
	}
	if !strings.Contains(body, `<w:delText xml:space="preserve">old</w:delText>`) {
		t.Error("deleted text is not in delText")
	}
}

func TestSubstitutionIsDeletePlusInsert(t *testing.T) {
	d := &doc.Document{Blocks: []doc.Block{
		&doc.Paragraph{Inlines: []doc.Inline{
			&doc.Annotation{
				Kind: doc.KindSubstitution,
				Old:  []doc.Inline{&doc.Text{Value: "old"}},
				New:  []doc.Inline{&doc.Text{Value: "new"}},
			},
		}},
	}}
	body := docPart(t, encodeDoc(t, d, nil))

	delIdx := strings.Index(body, "<w:del ")
	insIdx := strings.Index(body, "<w:ins ")
	if delIdx < 0 || insIdx < 0 {
		t.Fatal("substitution must emit both del and ins")
	}
	if delIdx > insIdx {
		t.Error("deletion must precede insertion")
	}
}

func TestCommentsPart(t *testing.T) {
	d := &doc.Document{Blocks: []doc.Block{
		&doc.Paragraph{Inlines: []doc.Inline{
			&doc.Annotation{
				Kind:    doc.KindMarked,
				Comment: "check this",
				Inlines: []doc.Inline{&doc.Text{Value: "flagged"}},
			},
			&doc.Annotation{Kind: doc.KindIndicator, Comment: "standalone"},
		}},
	}}
	parts := encodeDoc(t, d, nil)

	body := docPart(t, parts)
	for _, want := range []string{
		`<w:commentRangeStart w:id="1"/>`,
		`<w:commentRangeEnd w:id="1"/>`,
		`<w:commentRangeStart w:id="2"/>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("document missing %s", want)
		}
	}
	comments := string(parts[partComments])
	for _, want := range []string{"check this", "standalone", `w:author="Reviewer"`} {
		if !strings.Contains(comments, want) {
			t.Errorf("comments part missing %s", want)
		}
	}
}

func TestCitationFieldCodeOnlyWithExternalIdentity(t *testing.T) {
	store := bib.NewStore()
	store.Add(&bib.Entry{
		Key: "doe2019", Type: "article",
		ExternalKey: "ABC123",
		ExternalURI: "http://zotero.org/users/1/items/ABC123",
	})
	store.Add(&bib.Entry{Key: "plain2020", Type: "book"})

	external := &doc.Document{Blocks: []doc.Block{
		&doc.Paragraph{Inlines: []doc.Inline{&doc.Citation{Keys: []string{"doe2019"}}}},
	}}
	body := docPart(t, encodeDoc(t, external, store))
	if !strings.Contains(body, fieldInstructionPrefix) {
		t.Error("external-identity citation did not produce a field code")
	}
	if !strings.Contains(body, `<w:fldChar w:fldCharType="begin"/>`) {
		t.Error("field character runs missing")
	}

	local := &doc.Document{Blocks: []doc.Block{
		&doc.Paragraph{Inlines: []doc.Inline{&doc.Citation{Keys: []string{"plain2020"}}}},
	}}
	body = docPart(t, encodeDoc(t, local, store))
	if strings.Contains(body, "fldChar") {
		t.Error("local citation must stay plain text")
	}
}

func TestTitleAndFontOverrides(t *testing.T) {
	d := &doc.Document{
		Meta: doc.Metadata{
			Titles: []string{"Main Title", "Subtitle"},
			Fonts: doc.FontOverrides{
				TitleFamily: "Helvetica",
				TitleSize:   30,
			},
		},
	}
	parts := encodeDoc(t, d, nil)

	body := docPart(t, parts)
	if got := strings.Count(body, `<w:pStyle w:val="Title"/>`); got != 2 {
		t.Errorf("title paragraph count = %d, want 2", got)
	}
	styles := string(parts[partStyles])
	if !strings.Contains(styles, `<w:rFonts w:ascii="Helvetica" w:hAnsi="Helvetica"/>`) {
		t.Error("title font override not applied")
	}
	if !strings.Contains(styles, `<w:sz w:val="60"/>`) {
		t.Error("title size override not applied in half-points")
	}
}

func TestTableHeaderRow(t *testing.T) {
	cell := func(s string) doc.TableCell {
		return doc.TableCell{Blocks: []doc.Block{
			&doc.Paragraph{Inlines: []doc.Inline{&doc.Text{Value: s}}},
		}}
	}
	d := &doc.Document{Blocks: []doc.Block{
		&doc.Table{
			HeaderRow: true,
			Rows: [][]doc.TableCell{
				{cell("a"), cell("b")},
				{cell("c"), cell("d")},
			},
		},
	}}
	body := docPart(t, encodeDoc(t, d, nil))
	if got := strings.Count(body, "<w:tblHeader/>"); got != 1 {
		t.Errorf("tblHeader count = %d, want 1", got)
	}
	if got := strings.Count(body, "<w:tr>"); got != 2 {
		t.Errorf("row count = %d, want 2", got)
	}
}
