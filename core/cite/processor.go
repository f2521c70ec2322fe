// Package cite resolves citation clusters against a bibliography store
// and renders them through a pluggable processor. The engine owns the
// sequencing contract: every retrievable entry is loaded up front so
// clusters can render, but only keys that actually appear in the
// document are registered for the bibliography.
package cite

import (
	"github.com/quirelab/quire/core/bib"
)

// Cluster is one citation occurrence: the ordered items of a single
// bracketed group.
type Cluster struct {
	Items []ClusterItem
}

// ClusterItem is one cited work within a cluster.
type ClusterItem struct {
	// Key is the citation key as authored.
	Key string

	// Locator is the pinpoint reference ("p. 12"), empty when absent.
	Locator string

	// SuppressAuthor omits the author from the rendering.
	SuppressAuthor bool

	// Entry is the resolved bibliography record, nil when Key is not in
	// the store. Processors must render nil items as a literal fallback.
	Entry *bib.Entry
}

// Processor renders citations in a particular style. Implementations
// may assume the engine's calling order: LoadEntries once, then
// RenderCluster for every occurrence, then RegisterForBibliography
// once, then RenderBibliography once.
type Processor interface {
	// LoadEntries makes entries available for cluster rendering. All
	// store entries are loaded, cited or not.
	LoadEntries(entries []*bib.Entry)

	// RegisterForBibliography declares which keys the bibliography must
	// cover. It is called with exactly the cited, resolvable keys.
	RegisterForBibliography(keys []string)

	// RenderCluster renders one citation occurrence.
	RenderCluster(c Cluster) (string, error)

	// RenderBibliography renders one line per registered key. The
	// result set must match the registered keys exactly, including the
	// empty case.
	RenderBibliography() ([]string, error)
}
