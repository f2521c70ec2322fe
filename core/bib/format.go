package bib

import (
	"sort"
	"strings"
)

// Leading fields emitted in a fixed order before the alphabetical
// remainder, matching the layout reference managers export.
var leadFields = []string{"author", "title", "year", "date", "journal", "booktitle", "publisher"}

// Format renders entries as .bib file bytes. Values are brace-wrapped;
// external identity is written through the auxiliary zoterokey and
// zoterouri fields so a later export round trip restores it.
func Format(entries []*Entry) []byte {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		writeEntry(&sb, e)
	}
	return []byte(sb.String())
}

func writeEntry(sb *strings.Builder, e *Entry) {
	entryType := e.Type
	if entryType == "" {
		entryType = "misc"
	}
	sb.WriteString("@")
	sb.WriteString(entryType)
	sb.WriteString("{")
	sb.WriteString(e.Key)
	sb.WriteString(",\n")

	emitted := map[string]bool{}
	emit := func(name, value string) {
		if value == "" || emitted[name] {
			return
		}
		emitted[name] = true
		sb.WriteString("  ")
		sb.WriteString(name)
		sb.WriteString(" = {")
		sb.WriteString(value)
		sb.WriteString("},\n")
	}

	for _, name := range leadFields {
		emit(name, e.Fields[name])
	}
	rest := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		if !emitted[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		emit(name, e.Fields[name])
	}
	emit(fieldExternalKey, e.ExternalKey)
	emit(fieldExternalURI, e.ExternalURI)

	sb.WriteString("}\n")
}
