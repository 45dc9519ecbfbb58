package inspect

import (
	"context"
	"testing"

	"github.com/agentic-research/fingerpack/internal/fingerprint"
	"github.com/agentic-research/fingerpack/internal/pipeline"
	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	fs := vfs.NewMemory()
	require.NoError(t, fs.Write("/src/index.html", []byte(`<link href="css/site.css"><img src="logo.png">`)))
	require.NoError(t, fs.Write("/src/css/site.css", []byte("body { background: url(../logo.png) }")))
	require.NoError(t, fs.Write("/src/logo.png", []byte("PNG")))

	p, err := pipeline.New(pipeline.Options{
		SrcDir: "/src",
		OutDir: "/out",
		FS:     fs,
		Hasher: fingerprint.HasherFunc(func([]byte) string { return "0000aaaa" }),
	})
	require.NoError(t, err)
	require.NoError(t, p.Build(context.Background()))
	return p
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return text.Text, res.IsError
}

func parse(t *testing.T, s string) any {
	t.Helper()
	v, err := oj.ParseString(s)
	require.NoError(t, err)
	return v
}

func TestTools(t *testing.T) {
	tl := &tools{src: builtPipeline(t)}

	text, isErr := call(t, tl.listOutputs, nil)
	require.False(t, isErr)
	assert.Equal(t, map[string]any{
		"index.html":   "/index.0000aaaa.html",
		"css/site.css": "/css/site.0000aaaa.css",
		"logo.png":     "/logo.0000aaaa.png",
	}, parse(t, text))

	text, isErr = call(t, tl.dependents, map[string]any{"path": "logo.png"})
	require.False(t, isErr)
	assert.Equal(t, []any{"css/site.css", "index.html"}, parse(t, text))

	text, isErr = call(t, tl.references, map[string]any{"path": "/src/index.html"})
	require.False(t, isErr)
	assert.Equal(t, []any{"css/site.css", "logo.png"}, parse(t, text))

	text, isErr = call(t, tl.queryManifest, map[string]any{"selector": "$['logo.png']"})
	require.False(t, isErr)
	assert.Equal(t, []any{"/logo.0000aaaa.png"}, parse(t, text))
}

func TestTools_Errors(t *testing.T) {
	tl := &tools{src: builtPipeline(t)}

	_, isErr := call(t, tl.dependents, map[string]any{})
	assert.True(t, isErr)

	_, isErr = call(t, tl.queryManifest, map[string]any{"selector": "$[[["})
	assert.True(t, isErr)
}

func TestNew(t *testing.T) {
	assert.NotNil(t, New(builtPipeline(t)))
}
