// Package docx encodes and decodes WordprocessingML document packages:
// zip archives of XML parts. The encoder turns a document plus resolved
// citations into package bytes; the decoder inverts it, recovering the
// document, tracked changes, comments, citation field codes, and math.
package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"

	qerrors "github.com/quirelab/quire/core/errors"
)

// Part names within the package.
const (
	partContentTypes = "[Content_Types].xml"
	partRootRels     = "_rels/.rels"
	partDocument     = "word/document.xml"
	partStyles       = "word/styles.xml"
	partNumbering    = "word/numbering.xml"
	partComments     = "word/comments.xml"
	partDocumentRels = "word/_rels/document.xml.rels"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// writePackage assembles named parts into zip bytes. Parts are written
// in a stable order so identical input yields identical output.
func writePackage(parts map[string][]byte) ([]byte, error) {
	order := []string{
		partContentTypes,
		partRootRels,
		partDocument,
		partStyles,
		partNumbering,
		partComments,
		partDocumentRels,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		data, ok := parts[name]
		if !ok {
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			return nil, &qerrors.IOError{Operation: "write package part", Path: name, Err: err}
		}
		if _, err := w.Write(data); err != nil {
			return nil, &qerrors.IOError{Operation: "write package part", Path: name, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &qerrors.IOError{Operation: "finalize package", Err: err}
	}
	return buf.Bytes(), nil
}

// readPackage opens package bytes and extracts all parts. A byte
// stream that is not a zip archive, or one without the main content
// part, is rejected as not-a-package; everything structurally wrong
// past that point is malformed-package territory.
func readPackage(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &qerrors.PackageError{
			Kind:    qerrors.NotPackage,
			Message: "input is not a zip archive",
			Err:     err,
		}
	}

	parts := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, &qerrors.PackageError{
				Kind:    qerrors.MalformedPackage,
				Part:    f.Name,
				Message: "part cannot be opened",
				Err:     err,
			}
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &qerrors.PackageError{
				Kind:    qerrors.MalformedPackage,
				Part:    f.Name,
				Message: "part cannot be read",
				Err:     err,
			}
		}
		parts[f.Name] = content
	}

	if _, ok := parts[partDocument]; !ok {
		return nil, &qerrors.PackageError{
			Kind:    qerrors.NotPackage,
			Message: "main content part " + partDocument + " is missing",
		}
	}
	return parts, nil
}

// contentTypesXML builds the content-type manifest. Optional parts
// register an override only when present.
func contentTypesXML(hasNumbering, hasComments bool) []byte {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	sb.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	sb.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	sb.WriteString(`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`)
	sb.WriteString(`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>`)
	if hasNumbering {
		sb.WriteString(`<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>`)
	}
	if hasComments {
		sb.WriteString(`<Override PartName="/word/comments.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.comments+xml"/>`)
	}
	sb.WriteString(`</Types>`)
	return []byte(sb.String())
}

// rootRelsXML builds the root relationships part pointing at the main
// content part.
func rootRelsXML() []byte {
	return []byte(xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`)
}
