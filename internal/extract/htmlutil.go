package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// parseHTML parses a markup fragment, returning nil on unparseable
// input. html.Parse is extremely tolerant, so nil is rare in practice.
func parseHTML(fragment string) *html.Node {
	node, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	return node
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// walk visits n and its descendants until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if n.Type == html.ElementNode && !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

// findByClass returns the first descendant element carrying class.
func findByClass(root *html.Node, class string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if hasClass(n, class) {
			found = n
			return false
		}
		return true
	})
	return found
}

// findByClassPrefix returns the first descendant with a class starting
// with prefix, along with the matching class name.
func findByClassPrefix(root *html.Node, prefix string) (*html.Node, string) {
	var found *html.Node
	var name string
	walk(root, func(n *html.Node) bool {
		for _, c := range strings.Fields(attr(n, "class")) {
			if strings.HasPrefix(c, prefix) {
				found, name = n, c
				return false
			}
		}
		return true
	})
	return found, name
}

// findByAttr returns the first descendant element carrying key.
func findByAttr(root *html.Node, key string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if attr(n, key) != "" {
			found = n
			return false
		}
		return true
	})
	return found
}

// findAllByClass returns every descendant element carrying class, in
// document order.
func findAllByClass(root *html.Node, class string) []*html.Node {
	var found []*html.Node
	walk(root, func(n *html.Node) bool {
		if hasClass(n, class) {
			found = append(found, n)
		}
		return true
	})
	return found
}

// text returns the concatenated text content of n, whitespace-collapsed.
func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// classes returns every class name appearing anywhere in the fragment,
// in document order. Used for page-marker classification signals.
func classes(root *html.Node) []string {
	var out []string
	walk(root, func(n *html.Node) bool {
		out = append(out, strings.Fields(attr(n, "class"))...)
		return true
	})
	return out
}

// firstNonEmpty implements per-field fallback-tier selection: the first
// source yielding a non-empty value wins.
func firstNonEmpty(sources ...func() string) string {
	for _, source := range sources {
		if v := strings.TrimSpace(source()); v != "" {
			return v
		}
	}
	return ""
}
