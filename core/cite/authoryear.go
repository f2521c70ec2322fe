package cite

import (
	"sort"
	"strings"

	"github.com/quirelab/quire/core/bib"
)

// AuthorYearProcessor renders "(Author, Year)" clusters and an
// author-sorted bibliography. It is the default processor and the
// fallback when a CSL style cannot be obtained.
type AuthorYearProcessor struct {
	entries    map[string]*bib.Entry
	registered []string
}

// NewAuthorYearProcessor returns a ready processor.
func NewAuthorYearProcessor() *AuthorYearProcessor {
	return &AuthorYearProcessor{entries: make(map[string]*bib.Entry)}
}

func (p *AuthorYearProcessor) LoadEntries(entries []*bib.Entry) {
	for _, e := range entries {
		p.entries[e.Key] = e
	}
}

func (p *AuthorYearProcessor) RegisterForBibliography(keys []string) {
	p.registered = append([]string(nil), keys...)
}

func (p *AuthorYearProcessor) RenderCluster(c Cluster) (string, error) {
	var parts []string
	for _, item := range c.Items {
		parts = append(parts, p.renderItem(item))
	}
	return "(" + strings.Join(parts, "; ") + ")", nil
}

func (p *AuthorYearProcessor) renderItem(item ClusterItem) string {
	if item.Entry == nil {
		return "@" + item.Key
	}
	year := item.Entry.Year()
	if year == "" {
		year = "n.d."
	}
	var sb strings.Builder
	if !item.SuppressAuthor {
		sb.WriteString(clusterAuthor(item.Entry))
		sb.WriteString(", ")
	}
	sb.WriteString(year)
	if item.Locator != "" {
		sb.WriteString(", ")
		sb.WriteString(item.Locator)
	}
	return sb.String()
}

func (p *AuthorYearProcessor) RenderBibliography() ([]string, error) {
	keys := sortByAuthor(p.registered, p.entries)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, bibliographyLine(p.entries[key]))
	}
	return lines, nil
}

// clusterAuthor renders the in-text author form: first family name,
// "et al." added for multi-author works.
func clusterAuthor(e *bib.Entry) string {
	family := e.FirstAuthorFamily()
	if family == "" {
		return "Anonymous"
	}
	if strings.Contains(e.Author(), " and ") {
		return family + " et al."
	}
	return family
}

// bibliographyLine renders "Author (Year). Title." with the container
// appended when known.
func bibliographyLine(e *bib.Entry) string {
	var sb strings.Builder
	author := e.Author()
	if author == "" {
		author = "Anonymous"
	}
	sb.WriteString(author)

	year := e.Year()
	if year == "" {
		year = "n.d."
	}
	sb.WriteString(" (")
	sb.WriteString(year)
	sb.WriteString(").")

	if title := e.Title(); title != "" {
		sb.WriteString(" ")
		sb.WriteString(title)
		sb.WriteString(".")
	}
	container := stripFieldBraces(e.Field("journal"))
	if container == "" {
		container = stripFieldBraces(e.Field("booktitle"))
	}
	if container != "" {
		sb.WriteString(" ")
		sb.WriteString(container)
		sb.WriteString(".")
	}
	return sb.String()
}

func stripFieldBraces(s string) string {
	return strings.NewReplacer("{", "", "}", "").Replace(s)
}

// sortByAuthor orders keys by author family, year, then key.
func sortByAuthor(keys []string, entries map[string]*bib.Entry) []string {
	sorted := append([]string(nil), keys...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := entries[sorted[i]], entries[sorted[j]]
		af, bf := strings.ToLower(a.FirstAuthorFamily()), strings.ToLower(b.FirstAuthorFamily())
		if af != bf {
			return af < bf
		}
		if a.Year() != b.Year() {
			return a.Year() < b.Year()
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}
