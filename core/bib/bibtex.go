package bib

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/quirelab/quire/core/doc"
)

// entryNode is the participle grammar for a single BibTeX record:
// @type{key, field = value, ...}.
//
//nolint:govet // participle grammar tags are not standard struct tags
type entryNode struct {
	Type   string       `parser:"At @Ident BraceOpen"`
	Key    string       `parser:"@Ident?"`
	Fields []*fieldNode `parser:"( Comma @@? )* BraceClose"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type fieldNode struct {
	Name  string     `parser:"@Ident Equals"`
	Value *valueNode `parser:"@@"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type valueNode struct {
	Quoted *string     `parser:"  @String"`
	Braced *bracedNode `parser:"| @@"`
	Bare   *string     `parser:"| @Bare"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type bracedNode struct {
	Parts []*bracedPart `parser:"ValueOpen @@* ValueClose"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type bracedPart struct {
	Text   *string     `parser:"  @Text"`
	Nested *bracedNode `parser:"| @@"`
}

// bibLexer tokenizes one record. Field values need their own states:
// after "=" the lexer switches to value scanning, and "{" inside a
// value enters a raw-text state that nests, so braces in titles and
// names survive verbatim.
var bibLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "At", Pattern: `@`},
		{Name: "BraceOpen", Pattern: `\{`},
		{Name: "BraceClose", Pattern: `\}`},
		{Name: "Comma", Pattern: `,`},
		{Name: "Equals", Pattern: `=`, Action: lexer.Push("Value")},
		{Name: "Ident", Pattern: `[^\s{}",=#@]+`},
	},
	"Value": {
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`, Action: lexer.Pop()},
		{Name: "ValueOpen", Pattern: `\{`, Action: lexer.Push("Braced")},
		{Name: "Comma", Pattern: `,`, Action: lexer.Pop()},
		{Name: "BraceClose", Pattern: `\}`, Action: lexer.Pop()},
		{Name: "Bare", Pattern: `[^\s{}",#=@]+`, Action: lexer.Pop()},
	},
	"Braced": {
		{Name: "ValueOpen", Pattern: `\{`, Action: lexer.Push("Braced")},
		{Name: "ValueClose", Pattern: `\}`, Action: lexer.Pop()},
		{Name: "Text", Pattern: `[^{}]+`},
	},
})

var entryParser = participle.MustBuild[entryNode](
	participle.Lexer(bibLexer),
	participle.Elide("Whitespace"),
)

// text renders a parsed value with the outer delimiters stripped and
// inner braces intact.
func (v *valueNode) text() string {
	switch {
	case v.Quoted != nil:
		s := *v.Quoted
		s = s[1 : len(s)-1]
		return strings.ReplaceAll(s, `\"`, `"`)
	case v.Braced != nil:
		return v.Braced.inner()
	case v.Bare != nil:
		return *v.Bare
	}
	return ""
}

func (b *bracedNode) inner() string {
	var sb strings.Builder
	for _, p := range b.Parts {
		if p.Text != nil {
			sb.WriteString(*p.Text)
			continue
		}
		sb.WriteString("{")
		sb.WriteString(p.Nested.inner())
		sb.WriteString("}")
	}
	return sb.String()
}

// splitRecords cuts source text into individual @type{...} records by
// balanced-brace scanning. Text between records is commentary and is
// discarded, matching BibTeX's reading of inter-record bytes.
func splitRecords(src string) (records []string, warnings []doc.Warning) {
	i := 0
	for i < len(src) {
		at := strings.IndexByte(src[i:], '@')
		if at < 0 {
			break
		}
		start := i + at
		j := start + 1
		for j < len(src) && isTypeChar(src[j]) {
			j++
		}
		typeName := strings.ToLower(src[start+1 : j])
		for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
			j++
		}
		if typeName == "" || j >= len(src) || src[j] != '{' {
			i = start + 1
			continue
		}

		depth := 0
		end := -1
		for k := j; k < len(src); k++ {
			switch src[k] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					end = k
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			warnings = append(warnings, doc.Warningf(doc.WarnLossyConstruct,
				"unterminated @%s record ignored", typeName))
			break
		}

		switch typeName {
		case "comment":
			// Skipped entirely.
		case "string", "preamble":
			warnings = append(warnings, doc.Warningf(doc.WarnLossyConstruct,
				"@%s records are not supported and were ignored", typeName))
		default:
			records = append(records, src[start:end+1])
		}
		i = end + 1
	}
	return records, warnings
}

func isTypeChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// parseRecord converts one record's text into an Entry. External
// identity fields move off the field map onto the entry itself.
func parseRecord(text string) (*Entry, error) {
	node, err := entryParser.ParseString("", text)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Key:    node.Key,
		Type:   strings.ToLower(node.Type),
		Fields: make(map[string]string),
	}
	for _, f := range node.Fields {
		if f == nil || f.Value == nil {
			continue
		}
		name := strings.ToLower(f.Name)
		value := f.Value.text()
		switch name {
		case fieldExternalKey:
			e.ExternalKey = value
		case fieldExternalURI:
			e.ExternalURI = value
		default:
			e.Fields[name] = value
		}
	}
	return e, nil
}
