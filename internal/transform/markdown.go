package transform

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown renders Markdown sources to HTML.
type Markdown struct {
	md goldmark.Markdown
}

func NewMarkdown() *Markdown {
	return &Markdown{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)}
}

func (m *Markdown) Transform(_ context.Context, absPath string, src []byte) (Result, error) {
	var buf bytes.Buffer
	if err := m.md.Convert(src, &buf); err != nil {
		return Result{}, fmt.Errorf("render markdown %s: %w", absPath, err)
	}
	return Result{Ext: ".html", Data: buf.Bytes()}, nil
}
