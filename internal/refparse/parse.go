// Package refparse splits text into literal fragments and references to
// other source files.
package refparse

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// FullyQualifiedPrefix marks a reference that resolves against the source
// root instead of the referencing file's directory.
const FullyQualifiedPrefix = "$"

// tokenPattern matches a run of path characters that ends in an extension.
// Extensions must start with a letter so version numbers like "1.5" stay
// literal.
var tokenPattern = regexp.MustCompile(`\$?[\w./-]*\.[A-Za-z][A-Za-z0-9]*`)

// DefaultExtensions are the extensions parsed for references when no
// explicit set is configured.
var DefaultExtensions = []string{
	".html", ".htm", ".css", ".svg", ".webmanifest", ".json", ".js",
	".pug", ".less", ".md",
}

// PartKind tells literal text apart from a reference.
type PartKind int

const (
	PartLiteral PartKind = iota
	PartReference
)

// Part is one fragment of a parsed file. For references, Text holds the
// original token and Target the absolute path it resolves to.
type Part struct {
	Kind   PartKind
	Text   string
	Target string
}

// Literal returns a literal part.
func Literal(s string) Part { return Part{Kind: PartLiteral, Text: s} }

// Reference returns a reference part.
func Reference(original, target string) Part {
	return Part{Kind: PartReference, Text: original, Target: target}
}

// IsReference reports whether the part points to another file.
func (p Part) IsReference() bool { return p.Kind == PartReference }

// File is the parsed form of a file's content.
type File struct {
	Ext   string
	Parts []Part
}

// String reconstructs the original text.
func (f *File) String() string {
	var sb strings.Builder
	for _, p := range f.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// Targets returns the distinct absolute paths referenced by the file, sorted.
func (f *File) Targets() []string {
	if f == nil {
		return nil
	}
	m := make(map[string]bool)
	for _, p := range f.Parts {
		if p.IsReference() {
			m[p.Target] = true
		}
	}
	out := make([]string, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ResolveFunc maps a reference target to the text that replaces it.
// Returning false keeps the original token.
type ResolveFunc func(target string) (string, bool)

// Render concatenates the parts, substituting every resolvable reference.
func (f *File) Render(resolve ResolveFunc) string {
	var sb strings.Builder
	for _, p := range f.Parts {
		if p.IsReference() && resolve != nil {
			if s, ok := resolve(p.Target); ok {
				sb.WriteString(s)
				continue
			}
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// Parse splits text from the file at absPath into parts. References are
// resolved against root and the file's directory; the file system is never
// consulted.
func Parse(root, absPath, ext, text string) *File {
	return &File{Ext: ext, Parts: split(root, absPath, text, 0, len(text))}
}

// split tokenizes text[start:end], keeping everything outside that range
// out of the result. Offsets refer to the whole text so URL detection can
// look behind the token.
func split(root, absPath, text string, start, end int) []Part {
	var parts []Part
	add := func(p Part) {
		if p.Text == "" {
			return
		}
		// Merge adjacent literals so the part list stays minimal.
		if n := len(parts); n > 0 && !p.IsReference() && !parts[n-1].IsReference() {
			parts[n-1].Text += p.Text
			return
		}
		parts = append(parts, p)
	}

	last := start
	for _, loc := range tokenPattern.FindAllStringIndex(text[start:end], -1) {
		s, e := start+loc[0], start+loc[1]
		token := text[s:e]
		if isURL(text, s, token) {
			continue
		}
		add(Literal(text[last:s]))
		add(Reference(token, ResolvePath(root, absPath, token)))
		last = e
	}
	add(Literal(text[last:end]))
	return parts
}

// isURL reports whether the token at offset s is part of a full URL, such
// as the host and path of "https://cdn.example.com/app.js" or a
// protocol-relative "//cdn.example.com/app.js".
func isURL(text string, s int, token string) bool {
	if strings.Contains(token, "://") || strings.HasPrefix(token, "//") {
		return true
	}
	return s > 0 && text[s-1] == ':'
}

// ResolvePath resolves a reference token to an absolute path.
func ResolvePath(root, absPath, token string) string {
	if strings.HasPrefix(token, FullyQualifiedPrefix) {
		rest := strings.TrimPrefix(token, FullyQualifiedPrefix)
		if !strings.HasPrefix(rest, "/") {
			rest = strings.TrimPrefix(rest, "./")
		}
		return filepath.Join(root, filepath.FromSlash(rest))
	}
	if strings.HasPrefix(token, "/") {
		return filepath.Join(root, filepath.FromSlash(token))
	}
	return filepath.Join(filepath.Dir(absPath), filepath.FromSlash(token))
}
