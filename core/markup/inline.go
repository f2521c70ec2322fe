package markup

import (
	"regexp"
	"strings"

	"github.com/quirelab/quire/core/doc"
)

var (
	idRangeStartRe  = regexp.MustCompile(`^\{#([A-Za-z0-9_-]+)\}`)
	idRangeEndRe    = regexp.MustCompile(`^\{/([A-Za-z0-9_-]+)\}`)
	idCommentOpenRe = regexp.MustCompile(`^\{#([A-Za-z0-9_-]+)>>`)
	colorSuffixRe   = regexp.MustCompile(`^\{([A-Za-z0-9_-]+)\}`)
)

// parseResolvedInlines parses inline content and runs the annotation range
// resolver over the resulting token stream.
func parseResolvedInlines(text string, opts Options) []doc.Inline {
	return resolveAnnotations(parseInlines(text, opts))
}

// parseInlines scans inline constructs left to right. Matching for all
// bracketed annotation types is first-close-wins; comment bodies scan
// depth-aware. Anything unclosed degrades to literal text.
func parseInlines(text string, opts Options) []doc.Inline {
	p := &inlineParser{src: text, opts: opts}
	return p.run()
}

type inlineParser struct {
	src  string
	pos  int
	opts Options
	out  []doc.Inline
	text strings.Builder
}

// flush converts pending literal bytes into a Text node.
func (p *inlineParser) flush() {
	if p.text.Len() > 0 {
		p.out = append(p.out, &doc.Text{Value: p.text.String()})
		p.text.Reset()
	}
}

// emit appends a parsed inline node, flushing pending text first.
func (p *inlineParser) emit(in doc.Inline) {
	p.flush()
	p.out = append(p.out, in)
}

// literal appends raw bytes to the pending text run.
func (p *inlineParser) literal(s string) {
	p.text.WriteString(s)
}

func (p *inlineParser) rest() string {
	return p.src[p.pos:]
}

func (p *inlineParser) run() []doc.Inline {
	for p.pos < len(p.src) {
		if p.step() {
			continue
		}
		p.literal(p.src[p.pos : p.pos+1])
		p.pos++
	}
	p.flush()
	if p.out == nil {
		return []doc.Inline{}
	}
	return p.out
}

// step attempts to recognize a construct at the current position. It
// returns false when the current byte is ordinary text.
func (p *inlineParser) step() bool {
	rest := p.rest()

	switch {
	case rest[0] == '\\' && len(rest) > 1 && isEscapable(rest[1]):
		p.literal(rest[1:2])
		p.pos += 2
		return true

	case rest[0] == '`':
		return p.scanCode()

	case strings.HasPrefix(rest, "{++"):
		return p.scanCritic("{++", "++}", doc.KindAddition)
	case strings.HasPrefix(rest, "{--"):
		return p.scanCritic("{--", "--}", doc.KindDeletion)
	case strings.HasPrefix(rest, "{~~"):
		return p.scanSubstitution()
	case strings.HasPrefix(rest, "{>>"):
		return p.scanComment("", len("{>>"))
	case strings.HasPrefix(rest, "{=="):
		return p.scanCritic("{==", "==}", doc.KindMarked)

	case idCommentOpenRe.MatchString(rest):
		m := idCommentOpenRe.FindStringSubmatch(rest)
		return p.scanComment(m[1], len(m[0]))
	case idRangeStartRe.MatchString(rest):
		m := idRangeStartRe.FindStringSubmatch(rest)
		p.emit(&doc.Annotation{Kind: doc.KindRangeStart, ID: m[1]})
		p.pos += len(m[0])
		return true
	case idRangeEndRe.MatchString(rest):
		m := idRangeEndRe.FindStringSubmatch(rest)
		p.emit(&doc.Annotation{Kind: doc.KindRangeEnd, ID: m[1]})
		p.pos += len(m[0])
		return true

	case strings.HasPrefix(rest, "=="):
		return p.scanHighlight()

	case strings.HasPrefix(rest, "[@") || strings.HasPrefix(rest, "[-@"):
		return p.scanCitation()
	case rest[0] == '[':
		return p.scanLink()

	case rest[0] == '$':
		return p.scanMath()

	case strings.HasPrefix(rest, "**"):
		return p.scanWrap("**", func(in []doc.Inline) doc.Inline { return &doc.Bold{Inlines: in} })
	case strings.HasPrefix(rest, "__"):
		return p.scanWrap("__", func(in []doc.Inline) doc.Inline { return &doc.Underline{Inlines: in} })
	case strings.HasPrefix(rest, "~~"):
		return p.scanWrap("~~", func(in []doc.Inline) doc.Inline { return &doc.Strikethrough{Inlines: in} })
	case rest[0] == '*':
		return p.scanWrap("*", func(in []doc.Inline) doc.Inline { return &doc.Italic{Inlines: in} })
	case rest[0] == '_':
		if !p.wordBoundaryBefore() {
			return false
		}
		return p.scanWrap("_", func(in []doc.Inline) doc.Inline { return &doc.Italic{Inlines: in} })
	case rest[0] == '~':
		return p.scanWrap("~", func(in []doc.Inline) doc.Inline { return &doc.Subscript{Inlines: in} })
	case rest[0] == '^':
		return p.scanWrap("^", func(in []doc.Inline) doc.Inline { return &doc.Superscript{Inlines: in} })
	}

	return false
}

func isEscapable(c byte) bool {
	return strings.IndexByte("\\`*_{}[]()#+-.!|~^=$@<>/", c) >= 0
}

// wordBoundaryBefore reports whether the previous byte allows an
// underscore emphasis to open. Intraword underscores stay literal.
func (p *inlineParser) wordBoundaryBefore() bool {
	if p.pos == 0 {
		return true
	}
	c := p.src[p.pos-1]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9')
}

// scanCode handles a backtick code span.
func (p *inlineParser) scanCode() bool {
	inner := p.src[p.pos+1:]
	end := strings.IndexByte(inner, '`')
	if end < 0 {
		return false
	}
	p.emit(&doc.Code{Value: inner[:end]})
	p.pos += end + 2
	return true
}

// scanCritic handles {++ {-- {== annotations with first-close-wins
// matching.
func (p *inlineParser) scanCritic(open, closeTok string, kind doc.AnnotationKind) bool {
	body := p.src[p.pos+len(open):]
	end := strings.Index(body, closeTok)
	if end < 0 {
		// Unclosed: the open marker renders literally.
		p.literal(open)
		p.pos += len(open)
		return true
	}
	inner := body[:end]
	p.emit(&doc.Annotation{Kind: kind, Inlines: parseInlines(inner, p.opts)})
	p.pos += len(open) + end + len(closeTok)
	return true
}

// scanSubstitution handles {~~old~>new~~}. A span without the ~> arrow is
// malformed and renders literally.
func (p *inlineParser) scanSubstitution() bool {
	body := p.src[p.pos+3:]
	end := strings.Index(body, "~~}")
	if end < 0 {
		p.literal("{~~")
		p.pos += 3
		return true
	}
	inner := body[:end]
	arrow := strings.Index(inner, "~>")
	if arrow < 0 {
		p.literal("{~~" + inner + "~~}")
		p.pos += 3 + end + 3
		return true
	}
	p.emit(&doc.Annotation{
		Kind: doc.KindSubstitution,
		Old:  parseInlines(inner[:arrow], p.opts),
		New:  parseInlines(inner[arrow+2:], p.opts),
	})
	p.pos += 3 + end + 3
	return true
}

// scanComment handles {>>text<<} and {#id>>text<<} with depth-aware
// scanning so a comment may contain a nested reply using the same token
// pair.
func (p *inlineParser) scanComment(id string, openLen int) bool {
	rest := p.rest()
	end := findDepthClose(rest, openLen, "{>>", "<<}")
	if end < 0 {
		p.literal(rest[:openLen])
		p.pos += openLen
		return true
	}
	p.emit(&doc.Annotation{
		Kind:    doc.KindComment,
		ID:      id,
		Comment: rest[openLen:end],
	})
	p.pos += end + len("<<}")
	return true
}

// scanHighlight handles ==text== and ==text=={colorId}.
func (p *inlineParser) scanHighlight() bool {
	body := p.src[p.pos+2:]
	end := strings.Index(body, "==")
	if end < 0 {
		return false
	}
	inner := body[:end]
	if strings.TrimSpace(inner) == "" {
		return false
	}
	color := p.opts.HighlightColor()
	consumed := p.pos + 2 + end + 2
	if m := colorSuffixRe.FindStringSubmatch(p.src[consumed:]); m != nil {
		color = m[1]
		consumed += len(m[0])
	}
	p.emit(&doc.Highlight{ColorID: color, Inlines: parseInlines(inner, p.opts)})
	p.pos = consumed
	return true
}

// scanCitation handles [@key], [@key, locator], [@k1; @k2], [-@key].
func (p *inlineParser) scanCitation() bool {
	body := p.src[p.pos+1:]
	end := strings.IndexByte(body, ']')
	if end < 0 {
		return false
	}
	cite, ok := parseCitation(body[:end])
	if !ok {
		return false
	}
	p.emit(cite)
	p.pos += 1 + end + 1
	return true
}

// citation key characters follow BibTeX conventions.
func isKeyChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-' || c == ':' || c == '.' || c == '+' || c == '/':
		return true
	}
	return false
}

// parseCitation parses the bracket interior of a citation cluster. Every
// item must carry an @key; the locator text after a comma attaches to the
// key it follows.
func parseCitation(inner string) (*doc.Citation, bool) {
	items := strings.Split(inner, ";")
	cite := &doc.Citation{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		suppress := false
		if strings.HasPrefix(item, "-@") {
			suppress = true
			item = item[1:]
		}
		if !strings.HasPrefix(item, "@") {
			return nil, false
		}
		keyEnd := 1
		for keyEnd < len(item) && isKeyChar(item[keyEnd]) {
			keyEnd++
		}
		key := item[1:keyEnd]
		if key == "" {
			return nil, false
		}
		tail := strings.TrimSpace(item[keyEnd:])
		var locator string
		if strings.HasPrefix(tail, ",") {
			locator = strings.TrimSpace(tail[1:])
		} else if tail != "" {
			return nil, false
		}

		cite.Keys = append(cite.Keys, key)
		if locator != "" {
			if cite.Locators == nil {
				cite.Locators = make(map[string]string)
			}
			cite.Locators[key] = locator
		}
		if suppress {
			if cite.SuppressAuthor == nil {
				cite.SuppressAuthor = make(map[string]bool)
			}
			cite.SuppressAuthor[key] = true
		}
	}
	if len(cite.Keys) == 0 {
		return nil, false
	}
	return cite, true
}

// scanLink handles [text](target) with bracket-depth tracking in the link
// text.
func (p *inlineParser) scanLink() bool {
	rest := p.rest()
	depth := 0
	textEnd := -1
	for i := 1; i < len(rest); i++ {
		switch rest[i] {
		case '[':
			depth++
		case ']':
			if depth == 0 {
				textEnd = i
			} else {
				depth--
			}
		}
		if textEnd >= 0 {
			break
		}
	}
	if textEnd < 0 || textEnd+1 >= len(rest) || rest[textEnd+1] != '(' {
		return false
	}
	targetEnd := strings.IndexByte(rest[textEnd+2:], ')')
	if targetEnd < 0 {
		return false
	}
	text := rest[1:textEnd]
	target := rest[textEnd+2 : textEnd+2+targetEnd]
	p.emit(&doc.Link{Target: target, Inlines: parseInlines(text, p.opts)})
	p.pos += textEnd + 2 + targetEnd + 1
	return true
}

// scanMath handles $latex$ and inline $$latex$$ spans.
func (p *inlineParser) scanMath() bool {
	rest := p.rest()
	marker := "$"
	if strings.HasPrefix(rest, "$$") {
		marker = "$$"
	}
	body := rest[len(marker):]
	end := strings.Index(body, marker)
	if end <= 0 {
		return false
	}
	inner := body[:end]
	if strings.TrimSpace(inner) == "" {
		return false
	}
	p.emit(&doc.InlineEquation{LaTeX: inner})
	p.pos += len(marker) + end + len(marker)
	return true
}

// scanWrap handles symmetric formatting delimiters (bold, italic,
// underline, strike, sub, sup).
func (p *inlineParser) scanWrap(delim string, wrap func([]doc.Inline) doc.Inline) bool {
	body := p.src[p.pos+len(delim):]
	end := strings.Index(body, delim)
	if end <= 0 {
		return false
	}
	inner := body[:end]
	p.emit(wrap(parseInlines(inner, p.opts)))
	p.pos += len(delim) + end + len(delim)
	return true
}
