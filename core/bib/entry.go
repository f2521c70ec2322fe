// Package bib parses and writes the BibTeX subset used for citation
// data: entry records with braced, quoted, or bare field values. It
// backs both directions of conversion, loading companion .bib files on
// export and synthesizing them from embedded citation data on import.
package bib

import (
	"strings"
)

// Auxiliary field names carrying external reference-manager identity
// through a .bib round trip.
const (
	fieldExternalKey = "zoterokey"
	fieldExternalURI = "zoterouri"
)

// Entry is one bibliography record.
type Entry struct {
	// Key is the citation key, unique within a store.
	Key string

	// Type is the lowercased entry type ("article", "book", ...).
	Type string

	// Fields maps lowercased field names to their values, outer braces
	// and quotes stripped, inner braces preserved.
	Fields map[string]string

	// ExternalKey and ExternalURI identify the entry in an external
	// reference manager when it was decoded from an embedded citation
	// field. Empty for entries authored directly in .bib files.
	ExternalKey string
	ExternalURI string
}

// Field returns a field value by case-insensitive name.
func (e *Entry) Field(name string) string {
	if e.Fields == nil {
		return ""
	}
	return e.Fields[strings.ToLower(name)]
}

// SetField stores a field value under its lowercased name.
func (e *Entry) SetField(name, value string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[strings.ToLower(name)] = value
}

// Author returns the author field with protective braces removed.
func (e *Entry) Author() string {
	return stripBraces(e.Field("author"))
}

// Title returns the title field with protective braces removed.
func (e *Entry) Title() string {
	return stripBraces(e.Field("title"))
}

// Year returns the year field, falling back to the year component of a
// date field when year is absent.
func (e *Entry) Year() string {
	if y := e.Field("year"); y != "" {
		return y
	}
	date := e.Field("date")
	if len(date) >= 4 {
		return date[:4]
	}
	return date
}

// FirstAuthorFamily returns the family name of the first author, for
// author-year cluster rendering and bibliography sorting. Handles both
// "Family, Given" and "Given Family" forms and "and"-separated lists.
func (e *Entry) FirstAuthorFamily() string {
	author := e.Author()
	if author == "" {
		return ""
	}
	if idx := strings.Index(author, " and "); idx >= 0 {
		author = author[:idx]
	}
	if idx := strings.IndexByte(author, ','); idx >= 0 {
		return strings.TrimSpace(author[:idx])
	}
	parts := strings.Fields(author)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// stripBraces removes BibTeX case-protection braces from a value.
func stripBraces(s string) string {
	if !strings.ContainsAny(s, "{}") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '}' {
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
