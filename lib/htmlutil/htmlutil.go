package htmlutil

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parse tokenizes a raw html document into a goquery document.
func Parse(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// TextNodes flattens every text node under the selection into a slice, in document order.
// Entities are already decoded by the tokenizer, so `&nbsp;` arrives as U+00A0.
func TextNodes(sel *goquery.Selection) []string {
	var out []string
	for _, n := range sel.Nodes {
		collectTextNodes(n, &out)
	}
	return out
}

func collectTextNodes(node *html.Node, out *[]string) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		*out = append(*out, node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		collectTextNodes(child, out)
		child = child.NextSibling
	}
}

// DocumentTextNodes returns the text nodes of the whole document, or only those under the
// elements matching selector when it is not empty.
func DocumentTextNodes(doc *goquery.Document, selector string) []string {
	if selector == "" {
		return TextNodes(doc.Selection)
	}
	return TextNodes(doc.Find(selector))
}
