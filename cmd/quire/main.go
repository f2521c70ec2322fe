// Command quire converts manuscripts between markup and document
// packages. The conversion direction follows the input file extension.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/quirelab/quire/core/bib"
	"github.com/quirelab/quire/core/cite"
	"github.com/quirelab/quire/core/cite/stylecache"
	"github.com/quirelab/quire/core/convert"
	"github.com/quirelab/quire/core/doc"
	"github.com/quirelab/quire/core/docx"
	qerrors "github.com/quirelab/quire/core/errors"
	"github.com/quirelab/quire/core/markup"
	"github.com/quirelab/quire/internal/fileutil"
	"github.com/quirelab/quire/internal/logging"
)

const version = "0.1.0"

// CLI defines the command-line interface for quire.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log format (text, json)"`

	Convert ConvertCmd `cmd:"" help:"Convert between markup and document packages"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ConvertCmd converts a single file, direction chosen by extension.
type ConvertCmd struct {
	Input  string `arg:"" help:"Input file (.md/.markdown/.txt exports, .docx imports)" type:"path"`
	Output string `arg:"" optional:"" help:"Output file (default: input with swapped extension)" type:"path"`

	Force             bool   `short:"f" help:"Overwrite existing output files"`
	Bibliography      string `help:"Bibliography file (default: frontmatter path, else companion .bib)" type:"path"`
	CitationKeyFormat string `name:"citation-key-format" default:"authoryear" enum:"authoryear,itemkey" help:"Key synthesis for imported citations without embedded keys"`
	CSL               string `name:"csl" help:"CSL style id, URL, or local .csl file for citation rendering"`
	StyleCacheDir     string `name:"style-cache-dir" help:"Directory for the persistent CSL style cache" type:"path"`
	Author            string `help:"Author name for tracked-change attribution"`
}

func (c *ConvertCmd) Run() error {
	start := time.Now()

	direction, err := directionFor(c.Input)
	if err != nil {
		return err
	}

	output := c.Output
	if output == "" {
		output = defaultOutput(c.Input, direction)
	}
	if err := fileutil.CheckOverwrite(output, c.Force); err != nil {
		return err
	}

	source, err := os.ReadFile(c.Input)
	if err != nil {
		return &qerrors.IOError{Operation: "read", Path: c.Input, Err: err}
	}

	var warnings int
	switch direction {
	case directionExport:
		warnings, err = c.runExport(source, output)
	case directionImport:
		warnings, err = c.runImport(source, output)
	}
	if err != nil {
		return err
	}

	logging.Conversion(direction, c.Input, output, warnings, time.Since(start))
	return nil
}

// Conversion directions.
const (
	directionExport = "export"
	directionImport = "import"
)

// directionFor picks the conversion direction from the input extension.
func directionFor(input string) (string, error) {
	switch strings.ToLower(filepath.Ext(input)) {
	case ".md", ".markdown", ".txt":
		return directionExport, nil
	case ".docx":
		return directionImport, nil
	default:
		return "", fmt.Errorf("cannot determine direction for %s: expected .md, .markdown, .txt, or .docx", input)
	}
}

// defaultOutput swaps the input extension for the opposite format.
func defaultOutput(input, direction string) string {
	stem := strings.TrimSuffix(input, filepath.Ext(input))
	if direction == directionExport {
		return stem + ".docx"
	}
	return stem + ".md"
}

func (c *ConvertCmd) runExport(source []byte, output string) (int, error) {
	meta := markup.Parse(string(source), markup.Options{}).Meta

	opts := convert.Options{Author: c.Author}

	bibPath, explicit := c.bibliographyPath(meta.BibliographyPath)
	if bibPath != "" {
		data, err := os.ReadFile(bibPath)
		switch {
		case err == nil:
			opts.Bibliography = data
			logging.Debug("bibliography loaded", "path", bibPath)
		case explicit:
			return 0, &qerrors.IOError{Operation: "read", Path: bibPath, Err: err}
		default:
			logging.Debug("no companion bibliography", "path", bibPath)
		}
	}

	proc, err := c.processor(meta.StyleID)
	if err != nil {
		return 0, err
	}
	opts.Processor = proc

	result, err := convert.Export(source, opts)
	if err != nil {
		return 0, err
	}
	reportWarnings(result.Warnings)

	if err := fileutil.WriteFileAtomic(output, result.Package, 0644); err != nil {
		return 0, &qerrors.IOError{Operation: "write", Path: output, Err: err}
	}
	return len(result.Warnings), nil
}

func (c *ConvertCmd) runImport(pkg []byte, output string) (int, error) {
	result, err := convert.Import(pkg, convert.Options{
		KeyFormat: docx.KeyFormat(c.CitationKeyFormat),
	})
	if err != nil {
		return 0, err
	}
	reportWarnings(result.Warnings)

	if err := fileutil.WriteFileAtomic(output, result.Markup, 0644); err != nil {
		return 0, &qerrors.IOError{Operation: "write", Path: output, Err: err}
	}

	if result.Bibliography != nil {
		bibPath := bib.CompanionPath(output, "")
		if err := fileutil.CheckOverwrite(bibPath, c.Force); err != nil {
			return 0, err
		}
		if err := fileutil.WriteFileAtomic(bibPath, result.Bibliography, 0644); err != nil {
			return 0, &qerrors.IOError{Operation: "write", Path: bibPath, Err: err}
		}
		logging.Info("bibliography written", "path", bibPath)
	}
	return len(result.Warnings), nil
}

// bibliographyPath resolves the bibliography file for the input: the
// --bibliography flag wins, then the frontmatter path, then the
// manuscript's companion .bib. explicit reports whether a missing file
// is an error rather than a skipped convention.
func (c *ConvertCmd) bibliographyPath(metaPath string) (path string, explicit bool) {
	if c.Bibliography != "" {
		return c.Bibliography, true
	}
	return bib.CompanionPath(c.Input, metaPath), metaPath != ""
}

// processor selects the citation processor: the --csl flag wins over
// the frontmatter style id; neither means the author-year default. An
// unavailable frontmatter style degrades to the default with a warning,
// an explicit --csl that cannot be resolved is fatal.
func (c *ConvertCmd) processor(metaStyleID string) (cite.Processor, error) {
	styleID := c.CSL
	if styleID == "" {
		styleID = metaStyleID
	}
	if styleID == "" {
		return nil, nil
	}

	if fileutil.Exists(styleID) {
		xml, err := os.ReadFile(styleID)
		if err != nil {
			return nil, &qerrors.IOError{Operation: "read", Path: styleID, Err: err}
		}
		return cite.FromStyle(xml)
	}

	var cache *stylecache.Cache
	if c.StyleCacheDir != "" {
		var err error
		cache, err = stylecache.Open(c.StyleCacheDir)
		if err != nil {
			logging.Warn("style cache unavailable", "dir", c.StyleCacheDir, "error", err.Error())
		} else {
			defer cache.Close()
		}
	}

	styles := cite.NewStyles(cache)
	xml, err := styles.Get(context.Background(), styleID)
	logging.StyleFetch(styleID, err == nil && cache != nil, err)
	if err != nil {
		if c.CSL != "" {
			return nil, err
		}
		logging.Warn("falling back to author-year citations", "style", styleID)
		return nil, nil
	}
	return cite.FromStyle(xml)
}

// reportWarnings logs every accumulated conversion warning.
func reportWarnings(warnings []doc.Warning) {
	for _, w := range warnings {
		logging.Warn(w.Message, "code", string(w.Code))
	}
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("quire %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("quire"),
		kong.Description("Round-trip converter between manuscript markup and document packages"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), logging.ParseFormat(CLI.LogFormat))
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
