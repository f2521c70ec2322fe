// Package convert is the facade over the conversion pipelines. Export
// runs manuscript markup through citation resolution into a document
// package; Import runs a document package back into markup plus a
// synthesized bibliography. Both operate on bytes only; callers own all
// path handling.
package convert

import (
	"time"

	"github.com/quirelab/quire/core/bib"
	"github.com/quirelab/quire/core/cite"
	"github.com/quirelab/quire/core/doc"
	"github.com/quirelab/quire/core/docx"
	"github.com/quirelab/quire/core/markup"
)

// Options configures a conversion in either direction. The zero value
// is usable: author-year citations, yellow default highlight, current
// time for attribution.
type Options struct {
	// Bibliography is the raw .bib companion content for export.
	// Nil means no bibliography; cited keys then surface as missing.
	Bibliography []byte

	// Author attributes tracked changes and comments on export. Empty
	// falls back to the manuscript's frontmatter author.
	Author string

	// Timestamp is the attribution timestamp for tracked changes and
	// comments. The zero value means the current time.
	Timestamp time.Time

	// Processor renders citation clusters on export. Nil selects the
	// built-in author-year processor.
	Processor cite.Processor

	// SkipMissingNote suppresses the trailing note listing citation
	// keys absent from the bibliography.
	SkipMissingNote bool

	// DefaultHighlightColor applies to highlight spans without an
	// explicit color. Empty means yellow.
	DefaultHighlightColor string

	// KeyFormat selects how citation keys are synthesized on import
	// for field items without an embedded key.
	KeyFormat docx.KeyFormat
}

// ExportResult is the outcome of an export run.
type ExportResult struct {
	// Package holds the finished document package bytes.
	Package []byte

	// Warnings accumulates non-fatal conditions from every stage, in
	// pipeline order.
	Warnings []doc.Warning
}

// ImportResult is the outcome of an import run.
type ImportResult struct {
	// Markup holds the serialized manuscript.
	Markup []byte

	// Bibliography holds formatted .bib content synthesized from the
	// package's citation fields, nil when the package cites nothing.
	Bibliography []byte

	// Warnings accumulates non-fatal conditions from every stage, in
	// pipeline order.
	Warnings []doc.Warning
}

// Export converts manuscript markup into a document package. Citation
// clusters resolve against the bibliography in opts; the rendered
// bibliography and any missing-references note are appended to the
// package body.
func Export(source []byte, opts Options) (*ExportResult, error) {
	result := &ExportResult{}

	d := markup.Parse(string(source), markup.Options{
		DefaultHighlightColor: opts.DefaultHighlightColor,
	})

	store := bib.NewStore()
	if opts.Bibliography != nil {
		var warnings []doc.Warning
		store, warnings = bib.Parse(opts.Bibliography)
		result.Warnings = append(result.Warnings, warnings...)
	}

	proc := opts.Processor
	if proc == nil {
		proc = cite.NewAuthorYearProcessor()
	}
	res, err := cite.Resolve(d, store, proc, cite.Options{
		SkipMissingNote: opts.SkipMissingNote,
	})
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, res.Warnings...)

	pkg, warnings, err := docx.Encode(d, store, res, docx.Options{
		Author:    opts.Author,
		Timestamp: opts.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)
	result.Package = pkg
	return result, nil
}

// Import converts document package bytes back into manuscript markup.
// Citation fields become citation syntax and their item data becomes a
// formatted bibliography.
func Import(pkg []byte, opts Options) (*ImportResult, error) {
	d, store, warnings, err := docx.Decode(pkg, docx.DecodeOptions{
		KeyFormat: opts.KeyFormat,
	})
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Warnings: warnings}
	result.Markup = []byte(markup.Serialize(d, markup.Options{
		DefaultHighlightColor: opts.DefaultHighlightColor,
	}))
	if store.Len() > 0 {
		result.Bibliography = bib.Format(store.Entries())
	}
	return result, nil
}
