package favicon

import (
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// iconLink is a <link> element that declares an icon.
type iconLink struct {
	href     string
	priority int // lower is better
	size     int // largest declared edge, 0 when unknown or "any"
	order    int
}

var relPriority = map[string]int{
	"icon":                         0,
	"shortcut icon":                0,
	"apple-touch-icon-precomposed": 1,
	"apple-touch-icon":             2,
}

// parseIconLinks extracts icon URLs from an HTML page, resolved against base
// and ordered by rel priority, then by declared size (largest first), then
// by document order.
func parseIconLinks(r io.Reader, base *url.URL) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var links []iconLink
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "link" {
			if l, ok := readIconLink(n, base); ok {
				l.order = len(links)
				links = append(links, l)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	slices.SortStableFunc(links, func(a, b iconLink) int {
		if a.priority != b.priority {
			return a.priority - b.priority
		}
		if a.size != b.size {
			return b.size - a.size
		}
		return a.order - b.order
	})

	out := make([]string, 0, len(links))
	for _, l := range links {
		if !slices.Contains(out, l.href) {
			out = append(out, l.href)
		}
	}
	return out, nil
}

func readIconLink(n *html.Node, base *url.URL) (iconLink, bool) {
	var rel, href, sizes string
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "rel":
			rel = strings.Join(strings.Fields(strings.ToLower(attr.Val)), " ")
		case "href":
			href = strings.TrimSpace(attr.Val)
		case "sizes":
			sizes = attr.Val
		}
	}

	priority, ok := relPriority[rel]
	if !ok || href == "" || strings.HasPrefix(href, "data:") {
		return iconLink{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return iconLink{}, false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return iconLink{}, false
	}

	return iconLink{href: resolved.String(), priority: priority, size: largestSize(sizes)}, true
}

// largestSize parses a sizes attribute like "16x16 32x32" and returns the
// largest edge.
func largestSize(sizes string) int {
	best := 0
	for _, s := range strings.Fields(strings.ToLower(sizes)) {
		w, _, ok := strings.Cut(s, "x")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(w); err == nil && n > best {
			best = n
		}
	}
	return best
}
