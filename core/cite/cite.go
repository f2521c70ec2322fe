package cite

import (
	"strings"

	"github.com/quirelab/quire/core/bib"
	"github.com/quirelab/quire/core/doc"
	qerrors "github.com/quirelab/quire/core/errors"
)

// Options adjusts resolution behavior.
type Options struct {
	// SkipMissingNote suppresses the trailing note listing citation
	// keys absent from the bibliography.
	SkipMissingNote bool
}

// Resolution is the outcome of resolving a document's citations.
type Resolution struct {
	// Rendered maps each citation occurrence to its cluster text.
	Rendered map[*doc.Citation]string

	// Scope lists the cited, resolvable keys in first-occurrence order,
	// deduplicated. The bibliography covers exactly this set.
	Scope []string

	// Bibliography holds one rendered line per key in Scope.
	Bibliography []string

	// Missing lists cited keys absent from the store, first-occurrence
	// order, deduplicated.
	Missing []string

	// Note is the trailing missing-references note, empty when nothing
	// is missing or the note is suppressed.
	Note string

	Warnings []doc.Warning
}

// Resolve renders every citation in d against store using proc.
func Resolve(d *doc.Document, store *bib.Store, proc Processor, opts Options) (*Resolution, error) {
	if proc == nil {
		return nil, &qerrors.ValidationError{Field: "processor", Message: "no citation processor configured"}
	}
	if store == nil {
		store = bib.NewStore()
	}

	res := &Resolution{Rendered: make(map[*doc.Citation]string)}

	var citations []*doc.Citation
	doc.WalkInlines(d.Blocks, func(in doc.Inline) bool {
		if c, ok := in.(*doc.Citation); ok {
			citations = append(citations, c)
		}
		return true
	})

	proc.LoadEntries(store.Entries())

	inScope := map[string]bool{}
	missing := map[string]bool{}
	for _, c := range citations {
		cluster := Cluster{}
		for _, key := range c.Keys {
			item := ClusterItem{Key: key, SuppressAuthor: c.Suppressed(key)}
			if loc, ok := c.HasLocator(key); ok {
				item.Locator = loc
			}
			if entry, ok := store.Get(key); ok {
				item.Entry = entry
				if !inScope[key] {
					inScope[key] = true
					res.Scope = append(res.Scope, key)
				}
			} else {
				if !missing[key] {
					missing[key] = true
					res.Missing = append(res.Missing, key)
					res.Warnings = append(res.Warnings, doc.Warningf(doc.WarnMissingKey,
						"citation key %q not found in bibliography", key))
				}
			}
			cluster.Items = append(cluster.Items, item)
		}

		text, err := proc.RenderCluster(cluster)
		if err != nil {
			res.Warnings = append(res.Warnings, doc.Warningf(doc.WarnLossyConstruct,
				"citation cluster could not be rendered: %v", err))
			text = literalCluster(cluster)
		}
		res.Rendered[c] = text
	}

	proc.RegisterForBibliography(res.Scope)
	lines, err := proc.RenderBibliography()
	if err != nil {
		res.Warnings = append(res.Warnings, doc.Warningf(doc.WarnLossyConstruct,
			"bibliography could not be rendered: %v", err))
		lines = nil
	}
	res.Bibliography = lines

	if len(res.Missing) > 0 && !opts.SkipMissingNote {
		res.Note = missingNote(res.Missing)
	}
	return res, nil
}

// literalCluster is the last-resort rendering when a processor fails:
// the cluster re-emitted in source form.
func literalCluster(c Cluster) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, item := range c.Items {
		if i > 0 {
			sb.WriteString("; ")
		}
		if item.SuppressAuthor {
			sb.WriteString("-")
		}
		sb.WriteString("@")
		sb.WriteString(item.Key)
		if item.Locator != "" {
			sb.WriteString(", ")
			sb.WriteString(item.Locator)
		}
	}
	sb.WriteString("]")
	return sb.String()
}

func missingNote(keys []string) string {
	var sb strings.Builder
	sb.WriteString("References not found in bibliography: ")
	for i, key := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("@")
		sb.WriteString(key)
	}
	sb.WriteString(".")
	return sb.String()
}
