package docx

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/quirelab/quire/core/bib"
	"github.com/quirelab/quire/core/doc"
)

func TestFieldInstructionRoundTrip(t *testing.T) {
	c := &doc.Citation{
		Keys:           []string{"doe2019", "roe2021"},
		Locators:       map[string]string{"doe2019": "p. 12"},
		SuppressAuthor: map[string]bool{"roe2021": true},
	}
	entries := map[string]*bib.Entry{
		"doe2019": {
			Key: "doe2019", Type: "article",
			ExternalKey: "ABC123",
			ExternalURI: "http://zotero.org/users/1/items/ABC123",
		},
	}
	entries["doe2019"].SetField("title", "On Testing")
	entries["doe2019"].SetField("author", "Doe, Jane")
	entries["doe2019"].SetField("year", "2019")
	entries["doe2019"].SetField("journal", "J. Test")

	instr, err := buildFieldInstruction(c, entries, "(Doe, 2019)", 1)
	if err != nil {
		t.Fatalf("buildFieldInstruction: %v", err)
	}
	if !strings.Contains(instr, fieldInstructionPrefix) {
		t.Fatalf("instruction lacks prefix: %s", instr)
	}

	got, gotEntries, ok := parseFieldInstruction(instr, KeyAuthorYear)
	if !ok {
		t.Fatal("parseFieldInstruction did not recognize its own output")
	}
	if len(got.Keys) != 2 || got.Keys[0] != "doe2019" || got.Keys[1] != "roe2021" {
		t.Errorf("keys = %v, want [doe2019 roe2021]", got.Keys)
	}
	if loc := got.Locators["doe2019"]; loc != "p. 12" {
		t.Errorf("locator = %q, want %q", loc, "p. 12")
	}
	if !got.SuppressAuthor["roe2021"] {
		t.Error("suppress-author flag lost")
	}

	if len(gotEntries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(gotEntries))
	}
	e := gotEntries[0]
	if e.Key != "doe2019" || e.Type != "article" {
		t.Errorf("entry = %s/%s, want doe2019/article", e.Key, e.Type)
	}
	if e.Field("title") != "On Testing" {
		t.Errorf("title = %q", e.Field("title"))
	}
	if e.Field("author") != "Doe, Jane" {
		t.Errorf("author = %q", e.Field("author"))
	}
	if e.Field("year") != "2019" {
		t.Errorf("year = %q", e.Field("year"))
	}
	if e.ExternalKey != "ABC123" {
		t.Errorf("external key = %q, want ABC123", e.ExternalKey)
	}
}

func TestParseFieldInstructionRejectsOtherFields(t *testing.T) {
	for _, instr := range []string{
		" PAGE ",
		" TOC \\o \"1-3\" ",
		" ADDIN ZOTERO_ITEM CSL_CITATION not-json ",
	} {
		if _, _, ok := parseFieldInstruction(instr, ""); ok {
			t.Errorf("instruction %q should not parse as a citation", instr)
		}
	}
}

func TestCitationKeySynthesis(t *testing.T) {
	tests := []struct {
		name   string
		item   cslItem
		format KeyFormat
		want   string
	}{
		{
			name: "embedded key wins",
			item: cslItem{ItemData: cslItemData{CitationKey: "doe2019"}},
			want: "doe2019",
		},
		{
			name: "author and year",
			item: cslItem{ItemData: cslItemData{
				Author: []cslName{{Family: "Van Dyke", Given: "A"}},
				Issued: &cslDate{DateParts: [][]json.Number{{"2020"}}},
			}},
			want: "vandyke2020",
		},
		{
			name: "external item key fallback",
			item: cslItem{URIs: []string{"http://zotero.org/users/9/items/XYZ789"}},
			want: "XYZ789",
		},
		{
			name: "positional fallback",
			item: cslItem{},
			want: "ref3",
		},
		{
			name: "item key format prefers external identifier",
			item: cslItem{
				ItemData: cslItemData{
					Author: []cslName{{Family: "Doe", Given: "J"}},
					Issued: &cslDate{DateParts: [][]json.Number{{"2020"}}},
				},
				URIs: []string{"http://zotero.org/users/9/items/XYZ789"},
			},
			format: KeyItemKey,
			want:   "XYZ789",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := citationKeyForItem(tt.item, 2, tt.format); got != tt.want {
				t.Errorf("citationKeyForItem = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitCSLAuthors(t *testing.T) {
	tests := []struct {
		field string
		want  []cslName
	}{
		{"Doe, Jane", []cslName{{Family: "Doe", Given: "Jane"}}},
		{"Jane Doe", []cslName{{Family: "Doe", Given: "Jane"}}},
		{"Doe, Jane and Roe, Richard", []cslName{
			{Family: "Doe", Given: "Jane"},
			{Family: "Roe", Given: "Richard"},
		}},
		{"Aristotle", []cslName{{Family: "Aristotle"}}},
	}
	for _, tt := range tests {
		got := splitCSLAuthors(tt.field)
		if len(got) != len(tt.want) {
			t.Errorf("splitCSLAuthors(%q) = %v, want %v", tt.field, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitCSLAuthors(%q)[%d] = %v, want %v", tt.field, i, got[i], tt.want[i])
			}
		}
	}
}
