package refparse

import (
	"context"
	"errors"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/html"
)

// referenceAttributes are the HTML attributes whose values may name a file.
var referenceAttributes = map[string]bool{
	"src":     true,
	"href":    true,
	"srcset":  true,
	"poster":  true,
	"content": true,
	"data":    true,
	"action":  true,
}

// markupSpans returns the byte ranges of reference-carrying attribute values
// and inline <style> bodies, in document order.
func markupSpans(src []byte) ([][2]int, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(html.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, err
	}
	root := tree.RootNode()
	if root == nil {
		return nil, errors.New("empty syntax tree")
	}

	var spans [][2]int
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "attribute":
			if v := referenceValue(n, src); v != nil {
				spans = append(spans, [2]int{int(v.StartByte()), int(v.EndByte())})
			}
			return
		case "style_element":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c.Type() == "raw_text" {
					spans = append(spans, [2]int{int(c.StartByte()), int(c.EndByte())})
				}
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return spans, nil
}

// referenceValue returns the value node of an attribute that may carry a
// file reference, or nil.
func referenceValue(attr *sitter.Node, src []byte) *sitter.Node {
	var name string
	var value *sitter.Node
	for i := 0; i < int(attr.NamedChildCount()); i++ {
		c := attr.NamedChild(i)
		switch c.Type() {
		case "attribute_name":
			name = strings.ToLower(c.Content(src))
		case "attribute_value":
			value = c
		case "quoted_attribute_value":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if cc := c.NamedChild(j); cc.Type() == "attribute_value" {
					value = cc
				}
			}
		}
	}
	if !referenceAttributes[name] {
		return nil
	}
	return value
}
