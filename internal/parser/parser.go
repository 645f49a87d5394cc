// Package parser extracts titles and slide cards from HTML documents.
package parser

import (
	"bytes"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Card is an element in an entry document that points at a slide file.
type Card struct {
	File  string
	Title string
}

// Section is a run of cards under one heading or data-group container.
// ID is empty for cards that appear before any section.
type Section struct {
	ID    string
	Label string
	Cards []Card
}

// Document is the parsed form of an HTML file.
type Document struct {
	Title    string
	Sections []Section
}

// Cards returns every card in document order.
func (d *Document) Cards() []Card {
	var out []Card
	for _, s := range d.Sections {
		out = append(out, s.Cards...)
	}
	return out
}

// Parse reads an HTML document. Malformed markup is tolerated the way a
// browser tolerates it.
func Parse(data []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	w := &walker{seen: make(map[string]struct{})}
	w.walk(root)

	doc := &Document{Title: w.title}
	if doc.Title == "" {
		doc.Title = w.h1
	}
	for _, s := range w.sections {
		if len(s.Cards) > 0 {
			doc.Sections = append(doc.Sections, *s)
		}
	}
	return doc, nil
}

// Title returns the <title> text, falling back to the first <h1>.
func Title(data []byte) string {
	doc, err := Parse(data)
	if err != nil {
		return ""
	}
	return doc.Title
}

type walker struct {
	title    string
	h1       string
	sections []*Section
	cur      *Section
	seen     map[string]struct{}
}

func (w *walker) current() *Section {
	if w.cur == nil {
		w.cur = &Section{}
		w.sections = append(w.sections, w.cur)
	}
	return w.cur
}

func (w *walker) open(id, label string) {
	if id == "" {
		id = Slug(label)
	}
	if id == "" {
		return
	}
	for _, s := range w.sections {
		if s.ID == id {
			w.cur = s
			return
		}
	}
	if label == "" {
		label = id
	}
	w.cur = &Section{ID: id, Label: label}
	w.sections = append(w.sections, w.cur)
}

func (w *walker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Title:
			if w.title == "" {
				w.title = text(n)
			}
			return
		case atom.Script, atom.Style, atom.Template:
			return
		case atom.H1:
			if w.h1 == "" {
				w.h1 = text(n)
			}
		case atom.H2, atom.H3:
			if attr(n, "data-group") == "" && !insideGroup(n) {
				w.open("", text(n))
			}
		}

		if g := attr(n, "data-group"); g != "" && !isCard(n) {
			label := attr(n, "data-group-label")
			if label == "" {
				label = firstHeading(n)
			}
			w.open(Slug(g), label)
		}

		if file, ok := cardFile(n); ok {
			if _, dup := w.seen[file]; !dup {
				w.seen[file] = struct{}{}
				title := attr(n, "data-title")
				if title == "" {
					title = text(n)
				}
				s := w.current()
				s.Cards = append(s.Cards, Card{File: file, Title: title})
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// insideGroup reports whether a heading labels an enclosing data-group
// container, in which case the container already opened the section.
func insideGroup(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if attr(p, "data-group") != "" {
			return true
		}
	}
	return false
}

func firstHeading(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			switch c.DataAtom {
			case atom.H1, atom.H2, atom.H3, atom.H4:
				return text(c)
			}
		}
		if t := firstHeading(c); t != "" {
			return t
		}
	}
	return ""
}

func isCard(n *html.Node) bool {
	_, ok := cardFile(n)
	return ok
}

// cardFile returns the slide a card element points at: a data-slide or
// data-file attribute, or the href of a link to a local .html file.
func cardFile(n *html.Node) (string, bool) {
	for _, key := range []string{"data-slide", "data-file"} {
		if v := attr(n, key); v != "" {
			return localHTML(v)
		}
	}
	if n.DataAtom == atom.A {
		return localHTML(attr(n, "href"))
	}
	return "", false
}

func localHTML(ref string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" || strings.HasPrefix(u.Path, "/") {
		return "", false
	}
	p := path.Clean(u.Path)
	if strings.HasPrefix(p, "..") || strings.Contains(p, "/") {
		return "", false
	}
	ext := strings.ToLower(path.Ext(p))
	if ext != ".html" && ext != ".htm" {
		return "", false
	}
	return p, true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// text returns the whitespace-collapsed text content of n.
func text(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Slug turns a heading into a group id: "User Stories!" becomes
// "user-stories".
func Slug(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
