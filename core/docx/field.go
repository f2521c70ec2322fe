package docx

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quirelab/quire/core/bib"
	"github.com/quirelab/quire/core/doc"
)

// fieldInstructionPrefix marks a citation field instruction produced by
// reference managers. Everything after it is a CSL-JSON payload.
const fieldInstructionPrefix = "ADDIN ZOTERO_ITEM CSL_CITATION"

const cslSchemaURI = "https://github.com/citation-style-language/schema/raw/master/csl-citation.json"

type cslName struct {
	Family string `json:"family,omitempty"`
	Given  string `json:"given,omitempty"`
}

type cslDate struct {
	DateParts [][]json.Number `json:"date-parts,omitempty"`
}

type cslItemData struct {
	Type           string    `json:"type,omitempty"`
	Title          string    `json:"title,omitempty"`
	ContainerTitle string    `json:"container-title,omitempty"`
	Publisher      string    `json:"publisher,omitempty"`
	Author         []cslName `json:"author,omitempty"`
	Issued         *cslDate  `json:"issued,omitempty"`

	// CitationKey round-trips the manuscript citation key through the
	// package, the way reference-manager key exporters do.
	CitationKey string `json:"citation-key,omitempty"`
}

type cslItem struct {
	URIs           []string    `json:"uris,omitempty"`
	ItemData       cslItemData `json:"itemData"`
	Locator        string      `json:"locator,omitempty"`
	SuppressAuthor bool        `json:"suppress-author,omitempty"`
}

type cslCitation struct {
	CitationID string `json:"citationID"`
	Properties struct {
		FormattedCitation string `json:"formattedCitation"`
	} `json:"properties"`
	CitationItems []cslItem `json:"citationItems"`
	Schema        string    `json:"schema"`
}

// bibTypeToCSL maps bibliography entry types to CSL item types.
var bibTypeToCSL = map[string]string{
	"article":       "article-journal",
	"book":          "book",
	"incollection":  "chapter",
	"inproceedings": "paper-conference",
	"phdthesis":     "thesis",
	"mastersthesis": "thesis",
	"techreport":    "report",
	"misc":          "document",
	"online":        "webpage",
}

// cslTypeToBib inverts bibTypeToCSL for decoding.
var cslTypeToBib = map[string]string{
	"article-journal":  "article",
	"book":             "book",
	"chapter":          "incollection",
	"paper-conference": "inproceedings",
	"thesis":           "phdthesis",
	"report":           "techreport",
	"document":         "misc",
	"webpage":          "online",
}

// buildFieldInstruction builds the citation field instruction for one
// citation cluster. entries maps keys to resolved bibliography entries;
// keys with no entry are carried with key-only item data. rendered is
// the visible citation text.
func buildFieldInstruction(c *doc.Citation, entries map[string]*bib.Entry, rendered string, seq int) (string, error) {
	fc := cslCitation{
		CitationID: fmt.Sprintf("cit-%04d", seq),
		Schema:     cslSchemaURI,
	}
	fc.Properties.FormattedCitation = rendered
	for _, key := range c.Keys {
		item := cslItem{
			SuppressAuthor: c.Suppressed(key),
		}
		if loc, ok := c.HasLocator(key); ok {
			item.Locator = loc
		}
		item.ItemData.CitationKey = key
		if e := entries[key]; e != nil {
			item.ItemData.Type = bibTypeToCSL[e.Type]
			if item.ItemData.Type == "" {
				item.ItemData.Type = "document"
			}
			item.ItemData.Title = e.Title()
			item.ItemData.ContainerTitle = firstNonEmpty(e.Field("journal"), e.Field("booktitle"))
			item.ItemData.Publisher = e.Field("publisher")
			item.ItemData.Author = splitCSLAuthors(e.Author())
			if y := e.Year(); y != "" {
				item.ItemData.Issued = &cslDate{DateParts: [][]json.Number{{json.Number(y)}}}
			}
			if e.ExternalURI != "" {
				item.URIs = []string{e.ExternalURI}
			} else if e.ExternalKey != "" {
				item.URIs = []string{"http://zotero.org/users/local/items/" + e.ExternalKey}
			}
		}
		fc.CitationItems = append(fc.CitationItems, item)
	}
	payload, err := json.Marshal(fc)
	if err != nil {
		return "", err
	}
	return " " + fieldInstructionPrefix + " " + string(payload) + " ", nil
}

// KeyFormat selects how citation keys are synthesized for field items
// that carry no embedded key.
type KeyFormat string

// Key synthesis modes. The zero value behaves like KeyAuthorYear.
const (
	KeyAuthorYear KeyFormat = "authoryear"
	KeyItemKey    KeyFormat = "itemkey"
)

// IsValid returns true for recognized key formats, the empty default
// included.
func (k KeyFormat) IsValid() bool {
	return k == "" || k == KeyAuthorYear || k == KeyItemKey
}

// parseFieldInstruction recognizes a citation field instruction and
// reconstructs the citation cluster plus synthesized bibliography
// entries. ok is false when the instruction is not a citation field.
func parseFieldInstruction(instr string, format KeyFormat) (cit *doc.Citation, entries []*bib.Entry, ok bool) {
	trimmed := strings.TrimSpace(instr)
	if !strings.HasPrefix(trimmed, fieldInstructionPrefix) {
		return nil, nil, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(trimmed, fieldInstructionPrefix))
	var fc cslCitation
	if err := json.Unmarshal([]byte(payload), &fc); err != nil {
		return nil, nil, false
	}

	cit = &doc.Citation{}
	seen := map[string]bool{}
	for i, item := range fc.CitationItems {
		key := citationKeyForItem(item, i, format)
		if seen[key] {
			continue
		}
		seen[key] = true
		cit.Keys = append(cit.Keys, key)
		if item.Locator != "" {
			if cit.Locators == nil {
				cit.Locators = map[string]string{}
			}
			cit.Locators[key] = item.Locator
		}
		if item.SuppressAuthor {
			if cit.SuppressAuthor == nil {
				cit.SuppressAuthor = map[string]bool{}
			}
			cit.SuppressAuthor[key] = true
		}
		entries = append(entries, entryFromItem(key, item))
	}
	if len(cit.Keys) == 0 {
		return nil, nil, false
	}
	return cit, entries, true
}

// citationKeyForItem picks the bibliography key for a field item: the
// embedded citation key when present, else a derived author-year key,
// else the external item identifier. KeyItemKey inverts the last two
// preferences so stable external identifiers win over derived keys.
func citationKeyForItem(item cslItem, index int, format KeyFormat) string {
	if item.ItemData.CitationKey != "" {
		return item.ItemData.CitationKey
	}
	if format == KeyItemKey {
		if k := externalItemKey(item.URIs); k != "" {
			return k
		}
	}
	family := ""
	if len(item.ItemData.Author) > 0 {
		family = item.ItemData.Author[0].Family
	}
	year := itemYear(item.ItemData)
	if family != "" {
		key := strings.ToLower(strings.ReplaceAll(family, " ", ""))
		return key + year
	}
	if k := externalItemKey(item.URIs); k != "" {
		return k
	}
	return fmt.Sprintf("ref%d", index+1)
}

// entryFromItem synthesizes a bibliography entry from field item data.
func entryFromItem(key string, item cslItem) *bib.Entry {
	e := &bib.Entry{Key: key, Type: cslTypeToBib[item.ItemData.Type]}
	if e.Type == "" {
		e.Type = "misc"
	}
	if item.ItemData.Title != "" {
		e.SetField("title", item.ItemData.Title)
	}
	if len(item.ItemData.Author) > 0 {
		e.SetField("author", joinCSLAuthors(item.ItemData.Author))
	}
	if y := itemYear(item.ItemData); y != "" {
		e.SetField("year", y)
	}
	if item.ItemData.ContainerTitle != "" {
		field := "journal"
		if item.ItemData.Type == "paper-conference" || item.ItemData.Type == "chapter" {
			field = "booktitle"
		}
		e.SetField(field, item.ItemData.ContainerTitle)
	}
	if item.ItemData.Publisher != "" {
		e.SetField("publisher", item.ItemData.Publisher)
	}
	if len(item.URIs) > 0 {
		e.ExternalURI = item.URIs[0]
		e.ExternalKey = externalItemKey(item.URIs)
	}
	return e
}

func itemYear(d cslItemData) string {
	if d.Issued == nil || len(d.Issued.DateParts) == 0 || len(d.Issued.DateParts[0]) == 0 {
		return ""
	}
	return d.Issued.DateParts[0][0].String()
}

// externalItemKey extracts the item key from a reference-manager URI,
// the segment after "/items/".
func externalItemKey(uris []string) string {
	for _, uri := range uris {
		if i := strings.LastIndex(uri, "/items/"); i >= 0 {
			key := uri[i+len("/items/"):]
			if key != "" {
				return key
			}
		}
	}
	return ""
}

// splitCSLAuthors splits a bibliography author field ("Family, Given
// and Family, Given" or "Given Family") into CSL names.
func splitCSLAuthors(field string) []cslName {
	if field == "" {
		return nil
	}
	parts := strings.Split(field, " and ")
	names := make([]cslName, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if family, given, ok := strings.Cut(p, ","); ok {
			names = append(names, cslName{
				Family: strings.TrimSpace(family),
				Given:  strings.TrimSpace(given),
			})
			continue
		}
		if i := strings.LastIndex(p, " "); i >= 0 {
			names = append(names, cslName{Family: p[i+1:], Given: p[:i]})
			continue
		}
		names = append(names, cslName{Family: p})
	}
	return names
}

// joinCSLAuthors renders CSL names back into a bibliography author
// field in "Family, Given" form.
func joinCSLAuthors(names []cslName) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		switch {
		case n.Family != "" && n.Given != "":
			parts = append(parts, n.Family+", "+n.Given)
		case n.Family != "":
			parts = append(parts, n.Family)
		case n.Given != "":
			parts = append(parts, n.Given)
		}
	}
	return strings.Join(parts, " and ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
