package docx

import (
	"strings"

	"github.com/antchfx/xmlquery"

	qxml "github.com/quirelab/quire/core/xml"
)

// ommlToLaTeX converts the content of an m:oMath element back to a
// LaTeX fragment. Unrecognized structures degrade to their flattened
// text content so nothing disappears silently.
func ommlToLaTeX(n *xmlquery.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(ommlNodeToLaTeX(c))
	}
	return sb.String()
}

func ommlNodeToLaTeX(n *xmlquery.Node) string {
	if n.Type == xmlquery.TextNode {
		return ""
	}
	switch n.Data {
	case "r":
		return symbolRunToLaTeX(mathElemText(n))
	case "t":
		return symbolRunToLaTeX(qxml.Text(n))
	case "f":
		num := ommlToLaTeX(qxml.Child(n, "num"))
		den := ommlToLaTeX(qxml.Child(n, "den"))
		return `\frac{` + num + `}{` + den + `}`
	case "rad":
		body := ommlToLaTeX(qxml.Child(n, "e"))
		deg := ""
		if d := qxml.Child(n, "deg"); d != nil {
			deg = ommlToLaTeX(d)
		}
		if deg == "" {
			return `\sqrt{` + body + `}`
		}
		return `\sqrt[` + deg + `]{` + body + `}`
	case "sSup":
		base := ommlToLaTeX(qxml.Child(n, "e"))
		sup := ommlToLaTeX(qxml.Child(n, "sup"))
		return base + "^" + braceWrap(sup)
	case "sSub":
		base := ommlToLaTeX(qxml.Child(n, "e"))
		sub := ommlToLaTeX(qxml.Child(n, "sub"))
		return base + "_" + braceWrap(sub)
	case "sSubSup":
		base := ommlToLaTeX(qxml.Child(n, "e"))
		sub := ommlToLaTeX(qxml.Child(n, "sub"))
		sup := ommlToLaTeX(qxml.Child(n, "sup"))
		return base + "_" + braceWrap(sub) + "^" + braceWrap(sup)
	case "acc":
		chr := mathPropVal(n, "accPr", "chr")
		base := ommlToLaTeX(qxml.Child(n, "e"))
		if cmd := accentCommand(chr); cmd != "" {
			return `\` + cmd + `{` + base + `}`
		}
		return base
	case "nary":
		chr := mathPropVal(n, "naryPr", "chr")
		cmd := naryCommand(chr)
		if cmd == "" {
			cmd = "int"
		}
		var sb strings.Builder
		sb.WriteString(`\` + cmd)
		if sub := ommlToLaTeX(qxml.Child(n, "sub")); sub != "" {
			sb.WriteString("_" + braceWrap(sub))
		}
		if sup := ommlToLaTeX(qxml.Child(n, "sup")); sup != "" {
			sb.WriteString("^" + braceWrap(sup))
		}
		if body := ommlToLaTeX(qxml.Child(n, "e")); body != "" {
			sb.WriteString(" " + body)
		}
		return sb.String()
	case "d":
		beg := mathPropVal(n, "dPr", "begChr")
		end := mathPropVal(n, "dPr", "endChr")
		if qxml.Child(n, "dPr") == nil || !mathPropPresent(n, "dPr", "begChr") {
			// The default delimiter pair is parentheses.
			beg, end = "(", ")"
		}
		body := qxml.Child(n, "e")
		if body != nil {
			if m := qxml.Child(body, "m"); m != nil && qxml.OnlyChild(body) == m {
				return matrixToLaTeX(m, beg, end)
			}
		}
		inner := ""
		if body != nil {
			inner = ommlToLaTeX(body)
		}
		if beg == "" && end == "" {
			return inner
		}
		return `\left` + delimSpelling(beg) + inner + `\right` + delimSpelling(end)
	case "m":
		return matrixToLaTeX(n, "", "")
	case "eqArr":
		var rows []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Data == "e" {
				rows = append(rows, ommlToLaTeX(c))
			}
		}
		return `\begin{aligned}` + strings.Join(rows, ` \\ `) + `\end{aligned}`
	case "e", "num", "den", "sub", "sup", "deg", "oMath":
		return ommlToLaTeX(n)
	case "fPr", "radPr", "sSupPr", "sSubPr", "sSubSupPr", "accPr", "naryPr", "dPr", "mPr", "eqArrPr", "rPr", "ctrlPr":
		return ""
	default:
		return ommlToLaTeX(n)
	}
}

// matrixToLaTeX renders an m:m element, choosing the environment from
// the surrounding delimiter pair.
func matrixToLaTeX(m *xmlquery.Node, beg, end string) string {
	env := "matrix"
	switch {
	case beg == "(" && end == ")":
		env = "pmatrix"
	case beg == "[" && end == "]":
		env = "bmatrix"
	case beg == "|" && end == "|":
		env = "vmatrix"
	}
	var rows []string
	for mr := m.FirstChild; mr != nil; mr = mr.NextSibling {
		if mr.Data != "mr" {
			continue
		}
		var cells []string
		for c := mr.FirstChild; c != nil; c = c.NextSibling {
			if c.Data == "e" {
				cells = append(cells, ommlToLaTeX(c))
			}
		}
		rows = append(rows, strings.Join(cells, " & "))
	}
	return `\begin{` + env + `}` + strings.Join(rows, ` \\ `) + `\end{` + env + `}`
}

// delimSpelling renders a delimiter character for \left and \right,
// "." for the invisible delimiter.
func delimSpelling(d string) string {
	if d == "" {
		return "."
	}
	return d
}

// mathElemText flattens the m:t content of a math run.
func mathElemText(r *xmlquery.Node) string {
	var sb strings.Builder
	for c := r.FirstChild; c != nil; c = c.NextSibling {
		if c.Data == "t" {
			sb.WriteString(qxml.Text(c))
		}
	}
	return sb.String()
}

// mathPropVal reads the m:val attribute of prop inside the property
// container element.
func mathPropVal(n *xmlquery.Node, container, prop string) string {
	pc := qxml.Child(n, container)
	if pc == nil {
		return ""
	}
	p := qxml.Child(pc, prop)
	if p == nil {
		return ""
	}
	return qxml.Attr(p, "val")
}

func mathPropPresent(n *xmlquery.Node, container, prop string) bool {
	pc := qxml.Child(n, container)
	return pc != nil && qxml.Child(pc, prop) != nil
}
