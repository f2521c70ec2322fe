// Package xml provides namespace-agnostic traversal helpers over
// xmlquery document trees. Document packages spell the same element
// names under whatever prefixes their producer declared, so lookups
// match on local names only.
package xml

import (
	"bytes"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Parse builds a document tree from raw part bytes.
func Parse(data []byte) (*xmlquery.Node, error) {
	return xmlquery.Parse(bytes.NewReader(data))
}

var (
	exprMu    sync.Mutex
	exprCache = map[string]*xpath.Expr{}
)

// descendantExpr compiles the descendant selector for a local name,
// once per name per process.
func descendantExpr(name string) *xpath.Expr {
	exprMu.Lock()
	defer exprMu.Unlock()
	if e, ok := exprCache[name]; ok {
		return e
	}
	e := xpath.MustCompile("descendant::*[local-name()='" + name + "']")
	exprCache[name] = e
	return e
}

// Find returns the first descendant element with the local name,
// document order.
func Find(n *xmlquery.Node, name string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	return xmlquery.QuerySelector(n, descendantExpr(name))
}

// FindAll collects every descendant element with the local name, in
// document order.
func FindAll(n *xmlquery.Node, name string) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	return xmlquery.QuerySelectorAll(n, descendantExpr(name))
}

// Child returns the first direct child element with the local name.
func Child(n *xmlquery.Node, name string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			return c
		}
	}
	return nil
}

// OnlyChild returns the sole child element, nil when there are zero or
// several.
func OnlyChild(n *xmlquery.Node) *xmlquery.Node {
	var found *xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		if found != nil {
			return nil
		}
		found = c
	}
	return found
}

// Attr reads an attribute by local name, empty when absent.
func Attr(n *xmlquery.Node, name string) string {
	for _, a := range n.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Text collects the direct text content of an element.
func Text(n *xmlquery.Node) string {
	var sb bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.TextNode || c.Type == xmlquery.CharDataNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
