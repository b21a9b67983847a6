// Package importer reads browser bookmark exports into flat records and
// merges them into a tree store.
package importer

import (
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Record is one imported item. A record with an empty URL declares a folder
// so that empty folders survive the import.
type Record struct {
	FolderPath []string // folder names from the import root down
	Name       string
	URL        string
	AddedAt    time.Time // zero when the source has no date
}

// IsFolder reports whether the record only declares a folder.
func (r Record) IsFolder() bool {
	return r.URL == ""
}

// ParseHTML parses Netscape bookmark HTML.
func ParseHTML(r io.Reader) ([]Record, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var records []Record

	// Track current folder stack for hierarchy
	var folderStack []string
	var pendingFolder string // folder waiting to be pushed on next DL
	hasPending := false

	var parse func(*html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "h3":
				// Folder definition - get name from text content
				name := getTextContent(n)
				if name != "" {
					path := append(slices.Clone(folderStack), name)
					records = append(records, Record{
						FolderPath: path,
						Name:       name,
						AddedAt:    parseUnix(getAttr(n, "add_date")),
					})

					// Mark this folder as pending - will be pushed when we see the next DL
					pendingFolder, hasPending = name, true
				}
				return // Don't recurse into H3

			case "a":
				href := strings.TrimSpace(getAttr(n, "href"))
				if href == "" {
					// Skip bookmarks without URL
					return
				}

				title := getTextContent(n)
				if title == "" {
					title = href // fallback to URL as name
				}

				records = append(records, Record{
					FolderPath: slices.Clone(folderStack),
					Name:       title,
					URL:        href,
					AddedAt:    parseUnix(getAttr(n, "add_date")),
				})
				return // Don't recurse into A

			case "dl":
				// Definition list - marks folder contents
				pushedFolder := false
				if hasPending {
					folderStack = append(folderStack, pendingFolder)
					hasPending = false
					pushedFolder = true
				}

				// Process children
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					parse(c)
				}

				// Pop if we pushed
				if pushedFolder && len(folderStack) > 0 {
					folderStack = folderStack[:len(folderStack)-1]
				}
				return // Don't recurse further, we handled children
			}
		}

		// Recurse into children
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}

	parse(doc)
	return records, nil
}

// parseUnix parses an ADD_DATE attribute in seconds since the epoch.
func parseUnix(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// getTextContent returns the text content of a node.
func getTextContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(text.String())
}

// getAttr returns the value of an attribute, case-insensitive.
func getAttr(n *html.Node, key string) string {
	key = strings.ToLower(key)
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == key {
			return attr.Val
		}
	}
	return ""
}
