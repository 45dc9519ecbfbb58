// Package inspect exposes a built asset graph to agents over MCP.
package inspect

import (
	"context"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Source is the build state the tools read. *pipeline.Pipeline satisfies it.
type Source interface {
	SrcDir() string
	Manifest() map[string]any
	QueryManifest(selector string) ([]any, error)
	Dependents(src string) []string
	References(src string) []string
}

// New returns an MCP server with the inspection tools registered.
func New(src Source) *server.MCPServer {
	s := server.NewMCPServer(
		"fingerpack",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	t := &tools{src: src}
	s.AddTool(mcp.NewTool("list_outputs",
		mcp.WithDescription("Map of every source file, relative to the source directory, to the URL of its fingerprinted output."),
	), t.listOutputs)
	s.AddTool(mcp.NewTool("query_manifest",
		mcp.WithDescription("Evaluate a JSONPath expression against the output manifest."),
		mcp.WithString("selector", mcp.Required(), mcp.Description(`JSONPath, e.g. $['css/site.css']`)),
	), t.queryManifest)
	s.AddTool(mcp.NewTool("dependents",
		mcp.WithDescription("Source files that reference the given file and are regenerated when it changes."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Source path, relative to the source directory or absolute")),
	), t.dependents)
	s.AddTool(mcp.NewTool("references",
		mcp.WithDescription("Source files the given file references."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Source path, relative to the source directory or absolute")),
	), t.references)
	return s
}

type tools struct {
	src Source
}

func toJSON(v any) string {
	return oj.JSON(v, &ojg.Options{Indent: 2, Sort: true})
}

// relative rewrites absolute source paths relative to the source
// directory, slash separated.
func (t *tools) relative(paths []string) []any {
	out := make([]any, 0, len(paths))
	for _, p := range paths {
		if rel, err := filepath.Rel(t.src.SrcDir(), p); err == nil {
			p = rel
		}
		out = append(out, filepath.ToSlash(p))
	}
	return out
}

func (t *tools) listOutputs(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(toJSON(t.src.Manifest())), nil
}

func (t *tools) queryManifest(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	selector, err := req.RequireString("selector")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := t.src.QueryManifest(selector)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if res == nil {
		res = []any{}
	}
	return mcp.NewToolResultText(toJSON(res)), nil
}

func (t *tools) dependents(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(toJSON(t.relative(t.src.Dependents(path)))), nil
}

func (t *tools) references(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(toJSON(t.relative(t.src.References(path)))), nil
}
