package doc

import "testing"

func TestQuoteKindIsValid(t *testing.T) {
	valid := []QuoteKind{QuotePlain, QuoteNote, QuoteTip, QuoteImportant, QuoteWarning, QuoteCaution}
	for _, k := range valid {
		if !k.IsValid() {
			t.Errorf("QuoteKind(%q).IsValid() = false, want true", k)
		}
	}
	if QuoteKind("danger").IsValid() {
		t.Error("QuoteKind(\"danger\").IsValid() = true, want false")
	}
}

func TestAnnotationKindIsValid(t *testing.T) {
	valid := []AnnotationKind{
		KindAddition, KindDeletion, KindSubstitution, KindMarked,
		KindComment, KindRangeStart, KindRangeEnd, KindRange, KindIndicator,
	}
	for _, k := range valid {
		if !k.IsValid() {
			t.Errorf("AnnotationKind(%q).IsValid() = false, want true", k)
		}
	}
	if AnnotationKind("footnote").IsValid() {
		t.Error("AnnotationKind(\"footnote\").IsValid() = true, want false")
	}
}

func TestCitationHelpers(t *testing.T) {
	c := &Citation{
		Keys:           []string{"smith2020", "doe2019"},
		Locators:       map[string]string{"smith2020": "p. 12"},
		SuppressAuthor: map[string]bool{"doe2019": true},
	}

	loc, ok := c.HasLocator("smith2020")
	if !ok || loc != "p. 12" {
		t.Errorf("HasLocator(smith2020) = %q, %v; want \"p. 12\", true", loc, ok)
	}
	if _, ok := c.HasLocator("doe2019"); ok {
		t.Error("HasLocator(doe2019) = true, want false")
	}
	if !c.Suppressed("doe2019") {
		t.Error("Suppressed(doe2019) = false, want true")
	}
	if c.Suppressed("smith2020") {
		t.Error("Suppressed(smith2020) = true, want false")
	}

	empty := &Citation{Keys: []string{"a"}}
	if _, ok := empty.HasLocator("a"); ok {
		t.Error("HasLocator on nil map = true, want false")
	}
	if empty.Suppressed("a") {
		t.Error("Suppressed on nil map = true, want false")
	}
}

func TestWalkInlinesDescends(t *testing.T) {
	blocks := []Block{
		&Heading{Level: 1, Inlines: []Inline{&Text{Value: "h"}}},
		&Paragraph{Inlines: []Inline{
			&Bold{Inlines: []Inline{
				&Citation{Keys: []string{"a"}},
			}},
			&Annotation{
				Kind: KindSubstitution,
				Old:  []Inline{&Citation{Keys: []string{"b"}}},
				New:  []Inline{&Citation{Keys: []string{"c"}}},
			},
		}},
		&Table{Rows: [][]TableCell{{
			{Blocks: []Block{&Paragraph{Inlines: []Inline{&Citation{Keys: []string{"d"}}}}}},
		}}},
		&BlockQuote{Kind: QuotePlain, Blocks: []Block{
			&Paragraph{Inlines: []Inline{&Citation{Keys: []string{"e"}}}},
		}},
	}

	var keys []string
	WalkInlines(blocks, func(in Inline) bool {
		if c, ok := in.(*Citation); ok {
			keys = append(keys, c.Keys...)
		}
		return true
	})

	want := []string{"a", "b", "c", "d", "e"}
	if len(keys) != len(want) {
		t.Fatalf("collected %d keys (%v), want %d", len(keys), keys, len(want))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], k)
		}
	}
}

func TestWalkInlinesStops(t *testing.T) {
	blocks := []Block{
		&Paragraph{Inlines: []Inline{&Text{Value: "a"}, &Text{Value: "b"}}},
	}
	count := 0
	WalkInlines(blocks, func(in Inline) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("walk visited %d inlines after stop, want 1", count)
	}
}

func TestPlainText(t *testing.T) {
	inlines := []Inline{
		&Text{Value: "see "},
		&Bold{Inlines: []Inline{&Text{Value: "bold"}}},
		&Code{Value: " x=1"},
		&InlineEquation{LaTeX: " e=mc^2"},
		&Annotation{Kind: KindAddition, Inlines: []Inline{&Text{Value: " added"}}},
		&Citation{Keys: []string{"ignored"}},
	}
	got := PlainText(inlines)
	want := "see bold x=1 e=mc^2 added"
	if got != want {
		t.Errorf("PlainText = %q, want %q", got, want)
	}
}

func TestFontOverridesHasOverrides(t *testing.T) {
	var f FontOverrides
	if f.HasOverrides() {
		t.Error("zero FontOverrides.HasOverrides() = true, want false")
	}
	f.HeadingFamily[2] = "Garamond"
	if !f.HasOverrides() {
		t.Error("HasOverrides() = false after setting heading family, want true")
	}
}
