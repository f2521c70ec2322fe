package cite

import (
	"strconv"
	"strings"

	"github.com/quirelab/quire/core/bib"
)

// NumericProcessor renders bracketed numbers assigned in order of first
// citation, the convention of numeric CSL styles. The bibliography
// lists entries in citation order.
type NumericProcessor struct {
	entries map[string]*bib.Entry
	numbers map[string]int
	cited   []string
}

// NewNumericProcessor returns a ready processor.
func NewNumericProcessor() *NumericProcessor {
	return &NumericProcessor{
		entries: make(map[string]*bib.Entry),
		numbers: make(map[string]int),
	}
}

func (p *NumericProcessor) LoadEntries(entries []*bib.Entry) {
	for _, e := range entries {
		p.entries[e.Key] = e
	}
}

func (p *NumericProcessor) RegisterForBibliography(keys []string) {
	p.cited = append([]string(nil), keys...)
}

func (p *NumericProcessor) RenderCluster(c Cluster) (string, error) {
	var parts []string
	for _, item := range c.Items {
		if item.Entry == nil {
			parts = append(parts, "@"+item.Key)
			continue
		}
		n, ok := p.numbers[item.Key]
		if !ok {
			n = len(p.numbers) + 1
			p.numbers[item.Key] = n
		}
		text := strconv.Itoa(n)
		if item.Locator != "" {
			text += ", " + item.Locator
		}
		parts = append(parts, text)
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

func (p *NumericProcessor) RenderBibliography() ([]string, error) {
	lines := make([]string, 0, len(p.cited))
	for _, key := range p.cited {
		n, ok := p.numbers[key]
		if !ok {
			n = len(p.numbers) + 1
			p.numbers[key] = n
		}
		lines = append(lines, strconv.Itoa(n)+". "+bibliographyLine(p.entries[key]))
	}
	return lines, nil
}
