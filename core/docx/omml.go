package docx

import (
	"fmt"
	"strings"

	"github.com/quirelab/quire/core/doc"
	"github.com/quirelab/quire/core/encoding"
)

// latexSymbols maps LaTeX commands to the unicode character emitted in
// math runs. The decoder inverts this table, first command winning.
var latexSymbols = map[string]string{
	"alpha": "α", "beta": "β", "gamma": "γ", "delta": "δ",
	"epsilon": "ε", "zeta": "ζ", "eta": "η", "theta": "θ",
	"iota": "ι", "kappa": "κ", "lambda": "λ", "mu": "μ",
	"nu": "ν", "xi": "ξ", "pi": "π", "rho": "ρ",
	"sigma": "σ", "tau": "τ", "upsilon": "υ", "phi": "φ",
	"chi": "χ", "psi": "ψ", "omega": "ω",
	"Gamma": "Γ", "Delta": "Δ", "Theta": "Θ", "Lambda": "Λ",
	"Xi": "Ξ", "Pi": "Π", "Sigma": "Σ", "Phi": "Φ",
	"Psi": "Ψ", "Omega": "Ω",
	"times": "×", "cdot": "⋅", "pm": "±", "mp": "∓",
	"div": "÷", "leq": "≤", "geq": "≥", "neq": "≠",
	"approx": "≈", "equiv": "≡", "sim": "∼", "propto": "∝",
	"infty": "∞", "partial": "∂", "nabla": "∇",
	"to": "→", "rightarrow": "→", "leftarrow": "←",
	"Rightarrow": "⇒", "Leftarrow": "⇐", "leftrightarrow": "↔",
	"in": "∈", "notin": "∉", "subset": "⊂", "subseteq": "⊆",
	"supset": "⊃", "cup": "∪", "cap": "∩", "emptyset": "∅",
	"forall": "∀", "exists": "∃", "neg": "¬",
	"wedge": "∧", "vee": "∨", "angle": "∠", "perp": "⊥",
	"ldots": "…", "cdots": "⋯", "prime": "′", "circ": "∘",
	"ell": "ℓ", "hbar": "ℏ", "Re": "ℜ", "Im": "ℑ",
}

// symbolCommands is the inverse of latexSymbols, built once. Where two
// commands share a character, the first in iteration keeps priority via
// the explicit preference list below.
var symbolCommands = func() map[rune]string {
	preferred := map[string]string{"→": "to"}
	m := make(map[rune]string, len(latexSymbols))
	for cmd, ch := range latexSymbols {
		r := []rune(ch)[0]
		if p, ok := preferred[ch]; ok {
			m[r] = p
			continue
		}
		if _, taken := m[r]; !taken {
			m[r] = cmd
		}
	}
	return m
}()

// latexAccents maps accent commands to the OMML accent character.
var latexAccents = map[string]string{
	"hat":   "̂",
	"bar":   "̄",
	"tilde": "̃",
	"vec":   "⃗",
	"dot":   "̇",
	"ddot":  "̈",
}

// latexNary maps n-ary operator commands to their operator character.
var latexNary = map[string]string{
	"sum":    "∑",
	"prod":   "∏",
	"int":    "∫",
	"oint":   "∮",
	"bigcup": "⋃",
	"bigcap": "⋂",
}

// silentMathCommands are style and spacing directives consumed without
// output. They affect presentation only and carry no content.
var silentMathCommands = map[string]bool{
	"displaystyle": true, "textstyle": true,
	"scriptstyle": true, "scriptscriptstyle": true,
	"limits": true, "nolimits": true,
	"left": false, "right": false, // handled structurally, listed for clarity
	"quad": true, "qquad": true,
	"!": true, ",": true, ";": true, ":": true,
}

// Math node kinds produced by the LaTeX parser.
type mathNode interface{ isMath() }

type mText struct{ Value string }
type mFrac struct{ Num, Den []mathNode }
type mRad struct{ Deg, Body []mathNode }
type mSubSup struct {
	Base []mathNode
	Sub  []mathNode
	Sup  []mathNode
}
type mAcc struct {
	Chr  string
	Base []mathNode
}
type mNary struct {
	Chr  string
	Sub  []mathNode
	Sup  []mathNode
	Body []mathNode
}
type mDelim struct {
	Beg, End string
	Body     []mathNode
}
type mMatrix struct {
	Env  string // matrix, pmatrix, bmatrix
	Rows [][][]mathNode
}
type mEqArr struct{ Rows [][]mathNode }

func (*mText) isMath()   {}
func (*mFrac) isMath()   {}
func (*mRad) isMath()    {}
func (*mSubSup) isMath() {}
func (*mAcc) isMath()    {}
func (*mNary) isMath()   {}
func (*mDelim) isMath()  {}
func (*mMatrix) isMath() {}
func (*mEqArr) isMath()  {}

// mathParser is a recursive-descent parser over a LaTeX fragment.
type mathParser struct {
	src      []rune
	pos      int
	warnings []doc.Warning
}

// parseLaTeX parses a LaTeX math fragment into math nodes. Unsupported
// visible commands degrade to their literal spelling with a warning;
// parsing never fails.
func parseLaTeX(latex string) ([]mathNode, []doc.Warning) {
	p := &mathParser{src: []rune(latex)}
	nodes := p.parseSequence(nil)
	return nodes, p.warnings
}

func (p *mathParser) peek() rune {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *mathParser) next() rune {
	r := p.peek()
	p.pos++
	return r
}

// lookingAt reports whether the input at the cursor starts with s.
func (p *mathParser) lookingAt(s string) bool {
	rs := []rune(s)
	if p.pos+len(rs) > len(p.src) {
		return false
	}
	for i, r := range rs {
		if p.src[p.pos+i] != r {
			return false
		}
	}
	return true
}

// parseSequence parses atoms until the input ends or a stop token is
// reached. Stop tokens ("&", "\\\\", "\\end", "\\right", "}") are left
// unconsumed for the caller.
func (p *mathParser) parseSequence(stops []string) []mathNode {
	var nodes []mathNode
	for p.pos < len(p.src) {
		if p.peek() == '}' {
			break
		}
		stopped := false
		for _, s := range stops {
			if p.lookingAt(s) {
				stopped = true
				break
			}
		}
		if stopped {
			break
		}
		node := p.parseAtom(stops)
		if node == nil {
			continue
		}
		// A script binds to the preceding character, not a whole text
		// run: in "E=mc^2" only "c" is the superscript base.
		if t, ok := node.(*mText); ok && (p.peek() == '^' || p.peek() == '_') {
			rs := []rune(t.Value)
			if len(rs) > 1 {
				nodes = append(nodes, &mText{Value: string(rs[:len(rs)-1])})
				node = &mText{Value: string(rs[len(rs)-1:])}
			}
		}
		node = p.attachScripts(node)
		nodes = append(nodes, node)
	}
	return nodes
}

// attachScripts folds trailing ^ and _ scripts onto the atom. N-ary
// operators absorb their scripts as limits; everything else becomes a
// sub/sup wrapper.
func (p *mathParser) attachScripts(base mathNode) mathNode {
	var sub, sup []mathNode
	for {
		switch p.peek() {
		case '^':
			p.next()
			sup = p.parseScriptArg()
		case '_':
			p.next()
			sub = p.parseScriptArg()
		default:
			if sub == nil && sup == nil {
				return base
			}
			if n, ok := base.(*mNary); ok {
				n.Sub, n.Sup = sub, sup
				return n
			}
			return &mSubSup{Base: []mathNode{base}, Sub: sub, Sup: sup}
		}
	}
}

// parseScriptArg parses a script argument: a braced group or a single
// character atom.
func (p *mathParser) parseScriptArg() []mathNode {
	if p.peek() == '{' {
		return p.parseGroup()
	}
	if p.peek() == '\\' {
		node := p.parseCommand(nil)
		if node == nil {
			return nil
		}
		return []mathNode{node}
	}
	r := p.next()
	if r == 0 {
		return nil
	}
	return []mathNode{&mText{Value: string(r)}}
}

// parseGroup consumes a {...} group and returns its content.
func (p *mathParser) parseGroup() []mathNode {
	if p.peek() != '{' {
		return nil
	}
	p.next()
	nodes := p.parseSequence(nil)
	if p.peek() == '}' {
		p.next()
	}
	return nodes
}

func (p *mathParser) parseAtom(stops []string) mathNode {
	switch r := p.peek(); {
	case r == '\\':
		return p.parseCommand(stops)
	case r == '{':
		nodes := p.parseGroup()
		if len(nodes) == 1 {
			return nodes[0]
		}
		return &mDelim{Body: nodes}
	case r == '^' || r == '_':
		// Script with no base, e.g. "^2" at sequence start.
		return p.attachScripts(&mText{Value: ""})
	default:
		return p.parseTextRun(stops)
	}
}

// parseTextRun accumulates ordinary characters into one text node.
func (p *mathParser) parseTextRun(stops []string) mathNode {
	var sb strings.Builder
	for p.pos < len(p.src) {
		r := p.peek()
		if r == '\\' || r == '{' || r == '}' || r == '^' || r == '_' {
			break
		}
		stopped := false
		for _, s := range stops {
			if p.lookingAt(s) {
				stopped = true
				break
			}
		}
		if stopped {
			break
		}
		sb.WriteRune(p.next())
	}
	if sb.Len() == 0 {
		return nil
	}
	return &mText{Value: sb.String()}
}

// readCommandName reads the command name after a backslash: a letter
// sequence, or a single non-letter character.
func (p *mathParser) readCommandName() string {
	if p.pos >= len(p.src) {
		return ""
	}
	r := p.peek()
	if !isLetter(r) {
		p.next()
		return string(r)
	}
	var sb strings.Builder
	for p.pos < len(p.src) && isLetter(p.peek()) {
		sb.WriteRune(p.next())
	}
	return sb.String()
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func (p *mathParser) parseCommand(stops []string) mathNode {
	p.next() // backslash
	name := p.readCommandName()
	switch {
	case name == "":
		return nil
	case name == "frac":
		return &mFrac{Num: p.parseGroup(), Den: p.parseGroup()}
	case name == "sqrt":
		var deg []mathNode
		if p.peek() == '[' {
			p.next()
			var sb strings.Builder
			for p.pos < len(p.src) && p.peek() != ']' {
				sb.WriteRune(p.next())
			}
			if p.peek() == ']' {
				p.next()
			}
			deg = []mathNode{&mText{Value: sb.String()}}
		}
		return &mRad{Deg: deg, Body: p.parseGroup()}
	case name == "text" || name == "mathrm" || name == "operatorname":
		var sb strings.Builder
		for _, n := range p.parseGroup() {
			if t, ok := n.(*mText); ok {
				sb.WriteString(t.Value)
			}
		}
		return &mText{Value: sb.String()}
	case name == "left":
		beg := string(p.next())
		body := p.parseSequence([]string{`\right`})
		end := ""
		if p.lookingAt(`\right`) {
			p.pos += len(`\right`)
			end = string(p.next())
		}
		return &mDelim{Beg: normalizeDelim(beg), End: normalizeDelim(end), Body: body}
	case name == "begin":
		return p.parseEnvironment()
	case name == "{" || name == "}":
		return &mText{Value: name}
	case latexAccents[name] != "":
		return &mAcc{Chr: latexAccents[name], Base: p.parseGroup()}
	case latexNary[name] != "":
		return &mNary{Chr: latexNary[name]}
	case latexSymbols[name] != "":
		return &mText{Value: latexSymbols[name]}
	case silentMathCommands[name]:
		// A control word swallows the whitespace that separates it
		// from what follows.
		for p.pos < len(p.src) && (p.peek() == ' ' || p.peek() == '\t') {
			p.next()
		}
		return nil
	default:
		p.warnings = append(p.warnings, doc.Warningf(doc.WarnUnsupportedMath,
			"unsupported math command \\%s rendered as literal text", name))
		return &mText{Value: `\` + name}
	}
}

// normalizeDelim maps delimiter spellings to the emitted character.
// "." (the invisible delimiter) stays empty.
func normalizeDelim(d string) string {
	switch d {
	case ".", "":
		return ""
	default:
		return d
	}
}

// parseEnvironment parses \begin{env}...\end{env} for the matrix and
// alignment environments.
func (p *mathParser) parseEnvironment() mathNode {
	env := p.readBracedWord()
	endTok := `\end`
	var rows [][][]mathNode
	row := [][]mathNode{}
	for p.pos < len(p.src) && !p.lookingAt(endTok) {
		cell := p.parseSequence([]string{"&", `\\`, endTok})
		row = append(row, cell)
		if p.lookingAt("&") {
			p.pos++
			continue
		}
		if p.lookingAt(`\\`) {
			p.pos += 2
			rows = append(rows, row)
			row = [][]mathNode{}
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if p.lookingAt(endTok) {
		p.pos += len(endTok)
		p.readBracedWord()
	}

	switch env {
	case "matrix", "pmatrix", "bmatrix", "vmatrix":
		return &mMatrix{Env: env, Rows: rows}
	case "align", "aligned", "cases":
		flat := make([][]mathNode, 0, len(rows))
		for _, r := range rows {
			var joined []mathNode
			for i, c := range r {
				if i > 0 {
					joined = append(joined, &mText{Value: ""})
				}
				joined = append(joined, c...)
			}
			flat = append(flat, joined)
		}
		return &mEqArr{Rows: flat}
	default:
		p.warnings = append(p.warnings, doc.Warningf(doc.WarnUnsupportedMath,
			"unsupported math environment %q rendered as plain rows", env))
		return &mMatrix{Env: "matrix", Rows: rows}
	}
}

// readBracedWord consumes {word} and returns the word.
func (p *mathParser) readBracedWord() string {
	if p.peek() != '{' {
		return ""
	}
	p.next()
	var sb strings.Builder
	for p.pos < len(p.src) && p.peek() != '}' {
		sb.WriteRune(p.next())
	}
	if p.peek() == '}' {
		p.next()
	}
	return sb.String()
}

// ommlFromLaTeX converts a LaTeX fragment to OMML markup (the content
// of an m:oMath element, without the wrapper).
func ommlFromLaTeX(latex string) (string, []doc.Warning) {
	nodes, warnings := parseLaTeX(latex)
	var sb strings.Builder
	writeMathNodes(&sb, nodes)
	return sb.String(), warnings
}

func writeMathNodes(sb *strings.Builder, nodes []mathNode) {
	for _, n := range nodes {
		writeMathNode(sb, n)
	}
}

func writeMathElem(sb *strings.Builder, tag string, nodes []mathNode) {
	sb.WriteString("<m:" + tag + ">")
	writeMathNodes(sb, nodes)
	sb.WriteString("</m:" + tag + ">")
}

func writeMathNode(sb *strings.Builder, n mathNode) {
	switch v := n.(type) {
	case *mText:
		if v.Value == "" {
			return
		}
		sb.WriteString(`<m:r><m:t xml:space="preserve">`)
		sb.WriteString(encoding.EscapeXMLText(v.Value))
		sb.WriteString(`</m:t></m:r>`)
	case *mFrac:
		sb.WriteString(`<m:f>`)
		writeMathElem(sb, "num", v.Num)
		writeMathElem(sb, "den", v.Den)
		sb.WriteString(`</m:f>`)
	case *mRad:
		sb.WriteString(`<m:rad>`)
		if len(v.Deg) == 0 {
			sb.WriteString(`<m:radPr><m:degHide m:val="1"/></m:radPr><m:deg/>`)
		} else {
			writeMathElem(sb, "deg", v.Deg)
		}
		writeMathElem(sb, "e", v.Body)
		sb.WriteString(`</m:rad>`)
	case *mSubSup:
		switch {
		case len(v.Sub) > 0 && len(v.Sup) > 0:
			sb.WriteString(`<m:sSubSup>`)
			writeMathElem(sb, "e", v.Base)
			writeMathElem(sb, "sub", v.Sub)
			writeMathElem(sb, "sup", v.Sup)
			sb.WriteString(`</m:sSubSup>`)
		case len(v.Sub) > 0:
			sb.WriteString(`<m:sSub>`)
			writeMathElem(sb, "e", v.Base)
			writeMathElem(sb, "sub", v.Sub)
			sb.WriteString(`</m:sSub>`)
		default:
			sb.WriteString(`<m:sSup>`)
			writeMathElem(sb, "e", v.Base)
			writeMathElem(sb, "sup", v.Sup)
			sb.WriteString(`</m:sSup>`)
		}
	case *mAcc:
		sb.WriteString(`<m:acc><m:accPr><m:chr m:val="` + encoding.EscapeXMLAttr(v.Chr) + `"/></m:accPr>`)
		writeMathElem(sb, "e", v.Base)
		sb.WriteString(`</m:acc>`)
	case *mNary:
		sb.WriteString(`<m:nary><m:naryPr><m:chr m:val="` + encoding.EscapeXMLAttr(v.Chr) + `"/></m:naryPr>`)
		writeMathElem(sb, "sub", v.Sub)
		writeMathElem(sb, "sup", v.Sup)
		writeMathElem(sb, "e", v.Body)
		sb.WriteString(`</m:nary>`)
	case *mDelim:
		if v.Beg == "" && v.End == "" {
			// Anonymous group, no visible delimiters.
			writeMathNodes(sb, v.Body)
			return
		}
		sb.WriteString(`<m:d><m:dPr>`)
		sb.WriteString(`<m:begChr m:val="` + encoding.EscapeXMLAttr(v.Beg) + `"/>`)
		sb.WriteString(`<m:endChr m:val="` + encoding.EscapeXMLAttr(v.End) + `"/>`)
		sb.WriteString(`</m:dPr>`)
		writeMathElem(sb, "e", v.Body)
		sb.WriteString(`</m:d>`)
	case *mMatrix:
		beg, end := matrixDelims(v.Env)
		if beg != "" {
			sb.WriteString(`<m:d><m:dPr>`)
			sb.WriteString(`<m:begChr m:val="` + encoding.EscapeXMLAttr(beg) + `"/>`)
			sb.WriteString(`<m:endChr m:val="` + encoding.EscapeXMLAttr(end) + `"/>`)
			sb.WriteString(`</m:dPr><m:e>`)
		}
		sb.WriteString(`<m:m>`)
		for _, row := range v.Rows {
			sb.WriteString(`<m:mr>`)
			for _, cell := range row {
				writeMathElem(sb, "e", cell)
			}
			sb.WriteString(`</m:mr>`)
		}
		sb.WriteString(`</m:m>`)
		if beg != "" {
			sb.WriteString(`</m:e></m:d>`)
		}
	case *mEqArr:
		sb.WriteString(`<m:eqArr>`)
		for _, row := range v.Rows {
			writeMathElem(sb, "e", row)
		}
		sb.WriteString(`</m:eqArr>`)
	}
}

// matrixDelims returns the delimiter pair for a matrix environment.
func matrixDelims(env string) (string, string) {
	switch env {
	case "pmatrix":
		return "(", ")"
	case "bmatrix":
		return "[", "]"
	case "vmatrix":
		return "|", "|"
	default:
		return "", ""
	}
}

// symbolRunToLaTeX converts a decoded math text run back to LaTeX,
// restoring command spellings for mapped unicode characters.
func symbolRunToLaTeX(text string) string {
	var sb strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		if cmd, ok := symbolCommands[r]; ok {
			sb.WriteString(`\` + cmd)
			if i+1 < len(runes) && isLetter(runes[i+1]) {
				sb.WriteString(" ")
			}
			continue
		}
		switch r {
		case '{', '}':
			sb.WriteString(`\` + string(r))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// accentCommand inverts latexAccents.
func accentCommand(chr string) string {
	for cmd, c := range latexAccents {
		if c == chr {
			return cmd
		}
	}
	return ""
}

// naryCommand inverts latexNary.
func naryCommand(chr string) string {
	for cmd, c := range latexNary {
		if c == chr {
			return cmd
		}
	}
	return ""
}

// braceWrap wraps a LaTeX fragment in braces unless it is a single
// character already.
func braceWrap(s string) string {
	if len([]rune(s)) == 1 {
		return s
	}
	return fmt.Sprintf("{%s}", s)
}
