package saml

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"

	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

// ExtractForm returns the action URL and input fields of the first <form>
// in an HTML document.
func ExtractForm(body []byte) (string, map[string]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("parsing html: %w", err)
	}

	form := findElement(doc, "form")
	if form == nil {
		return "", nil, fmt.Errorf("document contains no form: %w", types.ErrProtocolViolation)
	}

	action := attr(form, "action")
	fields := map[string]string{}
	collectInputs(form, fields)
	return action, fields, nil
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func collectInputs(n *html.Node, fields map[string]string) {
	if n.Type == html.ElementNode && n.Data == "input" {
		if name := attr(n, "name"); name != "" {
			fields[name] = attr(n, "value")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectInputs(c, fields)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
