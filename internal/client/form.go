package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"sner-console/internal/action"
)

// FetchForm loads a server-rendered form (e.g. annotate) and parses it.
func (c *Client) FetchForm(ctx context.Context, formURL string) (*action.Form, error) {
	body, err := c.Get(ctx, formURL)
	if err != nil {
		return nil, err
	}
	f, err := ParseForm(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse form %s: %w", formURL, err)
	}
	if f.Action == "" {
		f.Action = formURL
	}
	return f, nil
}

// ParseForm reads the first <form> of an html fragment: its action, method
// and current field values. Textareas with the tageditor class are tag fields.
// Submit buttons are not fields.
func ParseForm(r io.Reader) (*action.Form, error) {
	nodes, err := html.ParseFragment(r, &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
	if err != nil {
		return nil, err
	}
	var form *html.Node
	for _, n := range nodes {
		if form = findElement(n, atom.Form); form != nil {
			break
		}
	}
	if form == nil {
		return nil, fmt.Errorf("no form element")
	}

	f := &action.Form{
		Action: nodeAttr(form, "action"),
		Method: strings.ToUpper(nodeAttr(form, "method")),
		Fields: url.Values{},
	}
	if f.Method == "" {
		f.Method = "POST"
	}
	walk(form, func(n *html.Node) {
		name := nodeAttr(n, "name")
		if name == "" {
			return
		}
		switch n.DataAtom {
		case atom.Input:
			switch strings.ToLower(nodeAttr(n, "type")) {
			case "submit", "button", "reset", "image", "file":
				return
			case "checkbox", "radio":
				if !hasAttr(n, "checked") {
					return
				}
				v := nodeAttr(n, "value")
				if v == "" {
					v = "on"
				}
				f.Fields.Add(name, v)
			default:
				f.Fields.Add(name, nodeAttr(n, "value"))
			}
		case atom.Textarea:
			f.Fields.Add(name, strings.TrimPrefix(textContent(n), "\n"))
			if hasClass(n, "tageditor") {
				f.TagFields = append(f.TagFields, name)
			}
		case atom.Select:
			if v, ok := selectedOption(n); ok {
				f.Fields.Add(name, v)
			}
		}
	})
	return f, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			fn(c)
		}
		walk(c, fn)
	}
}

func nodeAttr(n *html.Node, key string) string {
	return attr(n.Attr, key)
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(nodeAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func selectedOption(n *html.Node) (string, bool) {
	var first, selected *html.Node
	walk(n, func(o *html.Node) {
		if o.DataAtom != atom.Option {
			return
		}
		if first == nil {
			first = o
		}
		if selected == nil && hasAttr(o, "selected") {
			selected = o
		}
	})
	if selected == nil {
		selected = first
	}
	if selected == nil {
		return "", false
	}
	if hasAttr(selected, "value") {
		return nodeAttr(selected, "value"), true
	}
	return strings.TrimSpace(textContent(selected)), true
}
