package htmlutil

import (
	"bytes"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// FormFields collects the name/value pairs of every element inside `form`
// that declares both attributes, hidden anti-CSRF tokens included. Only
// element nodes are considered; interleaved text nodes are not fields.
func FormFields(form *goquery.Selection) url.Values {
	fields := url.Values{}
	for _, n := range form.Find("*").Nodes {
		if n.Type != html.ElementNode {
			continue
		}
		var name, value string
		var hasName, hasValue bool
		for _, a := range n.Attr {
			switch a.Key {
			case "name":
				name = a.Val
				hasName = true
			case "value":
				value = a.Val
				hasValue = true
			}
		}
		if hasName && hasValue {
			fields.Set(name, value)
		}
	}
	return fields
}

type Anchor struct {
	Name string
	Href string
}

func GetAnchors(sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}
		link, err := url.Parse(href)
		if err != nil {
			continue
		}
		anchors = append(anchors, Anchor{
			Name: GetText(n),
			Href: link.String(),
		})
	}
	return anchors
}
