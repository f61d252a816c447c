package enrich

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/net/html"
)

var errEmptyTime = errors.New("empty time value")

// ldEvent is the flattened subset of a schema.org Event block this
// pipeline consumes.
type ldEvent struct {
	Name        string
	Description string
	StartDate   string
	EndDate     string
	Location    string
}

// extractEvent scans an HTML document for
// <script type="application/ld+json"> blocks and returns the first one
// describing an Event. Publishers wrap the payload three ways: a single
// object, a top-level array, or an @graph container; all are handled.
func extractEvent(page []byte) (ldEvent, bool) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return ldEvent{}, false
	}

	for _, script := range ldScripts(doc) {
		var payload any
		if err := json.Unmarshal([]byte(script), &payload); err != nil {
			continue
		}
		if ev, ok := findEventNode(payload); ok {
			return ev, true
		}
	}
	return ldEvent{}, false
}

// ldScripts collects the text of every JSON-LD script tag in the tree.
func ldScripts(doc *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, attr := range n.Attr {
				if attr.Key == "type" && strings.EqualFold(attr.Val, "application/ld+json") {
					if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
						out = append(out, n.FirstChild.Data)
					}
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func findEventNode(payload any) (ldEvent, bool) {
	switch v := payload.(type) {
	case []any:
		for _, item := range v {
			if ev, ok := findEventNode(item); ok {
				return ev, true
			}
		}
	case map[string]any:
		if isEventType(v["@type"]) {
			return flattenEvent(v), true
		}
		if graph, ok := v["@graph"]; ok {
			return findEventNode(graph)
		}
	}
	return ldEvent{}, false
}

// isEventType accepts "Event" and its schema.org subtypes
// ("SocialEvent", "EducationEvent", ...). @type may be a string or a
// list of strings.
func isEventType(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.HasSuffix(v, "Event")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.HasSuffix(s, "Event") {
				return true
			}
		}
	}
	return false
}

func flattenEvent(m map[string]any) ldEvent {
	return ldEvent{
		Name:        stringField(m, "name"),
		Description: stringField(m, "description"),
		StartDate:   stringField(m, "startDate"),
		EndDate:     stringField(m, "endDate"),
		Location:    flattenLocation(m["location"]),
	}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// flattenLocation renders a schema.org location (plain string, Place,
// or a list of venues) into the single free-text form the location
// classifier consumes.
func flattenLocation(v any) string {
	switch loc := v.(type) {
	case string:
		return strings.TrimSpace(loc)
	case []any:
		for _, item := range loc {
			if s := flattenLocation(item); s != "" {
				return s
			}
		}
	case map[string]any:
		parts := make([]string, 0, 4)
		if name := stringField(loc, "name"); name != "" {
			parts = append(parts, name)
		}
		switch addr := loc["address"].(type) {
		case string:
			parts = append(parts, strings.TrimSpace(addr))
		case map[string]any:
			for _, key := range []string{"streetAddress", "addressLocality", "addressRegion"} {
				if s := stringField(addr, key); s != "" {
					parts = append(parts, s)
				}
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
