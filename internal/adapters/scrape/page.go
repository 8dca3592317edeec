package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// contentLimit caps the body text handed to the model, in characters.
const contentLimit = 1000

// Page holds the parts of an HTML document used to describe an event.
type Page struct {
	Title       string
	Description string
	Heading     string
	Content     string
}

// Parse reads an HTML document. script and style content never appears in
// any field. Content is the text of the first non-empty of main, article and
// body, cut to contentLimit characters.
func Parse(input []byte) (Page, error) {
	root, err := html.Parse(bytes.NewReader(input))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	p := Page{
		Title:       textOf(findAll(root, "title")),
		Description: metaDescription(root),
		Heading:     textOf(findAll(root, "h1")),
	}
	for _, tag := range []string{"main", "article", "body"} {
		if text := textOf(findAll(root, tag)); text != "" {
			p.Content = truncate(text, contentLimit)
			break
		}
	}
	return p, nil
}

// Summarize renders the page in the labelled form sent to the model.
func (p Page) Summarize() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	fmt.Fprintf(&b, "Description: %s\n", p.Description)
	fmt.Fprintf(&b, "Heading: %s\n", p.Heading)
	fmt.Fprintf(&b, "Content: %s", p.Content)
	return b.String()
}

// findAll returns every element named tag in document order, skipping the
// insides of script and style.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode {
			if skipped(cur) {
				return
			}
			if strings.EqualFold(cur.Data, tag) {
				out = append(out, cur)
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func skipped(n *html.Node) bool {
	name := strings.ToLower(n.Data)
	return name == "script" || name == "style"
}

// textOf concatenates the text of nodes and collapses whitespace.
func textOf(nodes []*html.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		collectText(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		if skipped(n) {
			return
		}
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

func metaDescription(root *html.Node) string {
	for _, m := range findAll(root, "meta") {
		if !strings.EqualFold(attr(m, "name"), "description") {
			continue
		}
		return strings.TrimSpace(attr(m, "content"))
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
