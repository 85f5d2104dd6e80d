package scraping

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// FieldExtractor pulls named fields out of a parsed listing page. Missing fields are
// simply absent from the returned map.
type FieldExtractor interface {
	Extract(doc *goquery.Document) map[string]string
}

// MetaExtractor reads fields from <meta> tags, matching either the name or the property
// attribute.
type MetaExtractor struct {
	// Fields maps payload field name to meta tag name
	Fields map[string]string
}

// RedfinMeta covers the twitter card tags Redfin listing pages carry.
var RedfinMeta = MetaExtractor{Fields: map[string]string{
	"url":         "twitter:url:landing_url",
	"address":     "twitter:text:street_address",
	"city":        "twitter:text:city",
	"state":       "twitter:text:state_code",
	"zip":         "twitter:text:zip",
	"price":       "twitter:text:price",
	"beds":        "twitter:text:beds",
	"baths":       "twitter:text:baths",
	"sqft":        "twitter:text:sqft",
	"description": "description",
	"latitude":    "place:location:latitude",
	"longitude":   "place:location:longitude",
}}

func (e MetaExtractor) Extract(doc *goquery.Document) map[string]string {
	found := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", s.AttrOr("property", ""))
		if name == "" {
			return
		}
		for field, meta := range e.Fields {
			if meta != name {
				continue
			}
			if _, seen := found[field]; seen {
				continue
			}
			if content := strings.TrimSpace(s.AttrOr("content", "")); content != "" {
				found[field] = content
			}
		}
	})
	return found
}

// LabelExtractor finds values printed next to a label, e.g. "Year Built" followed by
// "1998". The value is the first non-blank text node after the label in document order.
type LabelExtractor struct {
	// Labels maps a lower-cased label text to the payload field name
	Labels map[string]string
}

var RedfinLabels = LabelExtractor{Labels: map[string]string{
	"year built":    "year_built",
	"property type": "property_type",
	"lot size":      "lot_size",
}}

func (e LabelExtractor) Extract(doc *goquery.Document) map[string]string {
	var texts []string
	for _, n := range doc.Nodes {
		collectText(n, &texts)
	}

	found := make(map[string]string)
	for i, text := range texts {
		field, ok := e.Labels[strings.ToLower(text)]
		if !ok || i+1 >= len(texts) {
			continue
		}
		if _, seen := found[field]; seen {
			continue
		}
		found[field] = texts[i+1]
	}
	return found
}

// collectText appends every non-blank text node under n, skipping script and style.
func collectText(n *html.Node, out *[]string) {
	if n == nil {
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
			*out = append(*out, t)
		}
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, out)
	}
}
