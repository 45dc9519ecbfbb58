package refparse

import (
	"fmt"
	"strings"
)

// Scope selects which regions of a file are searched for references.
type Scope string

const (
	// ScopeText searches the whole text.
	ScopeText Scope = "text"
	// ScopeAttributes restricts HTML files to reference-carrying attribute
	// values and inline styles. Other file types fall back to ScopeText.
	ScopeAttributes Scope = "attributes"
)

// ParseScope validates a scope name. An empty name selects ScopeText.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeText:
		return ScopeText, nil
	case ScopeAttributes:
		return ScopeAttributes, nil
	}
	return "", fmt.Errorf("unknown parse scope %q", s)
}

// Parser parses files whose extension is in its parsable set.
type Parser struct {
	root  string
	exts  map[string]bool
	scope Scope
}

// NewParser creates a parser for the source tree at root. A nil extension
// list selects DefaultExtensions.
func NewParser(root string, exts []string, scope Scope) *Parser {
	if exts == nil {
		exts = DefaultExtensions
	}
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[NormalizeExt(e)] = true
	}
	if scope == "" {
		scope = ScopeText
	}
	return &Parser{root: root, exts: m, scope: scope}
}

// NormalizeExt lowercases an extension and makes sure it has a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// CanParse reports whether files with ext are parsed.
func (p *Parser) CanParse(ext string) bool { return p.exts[NormalizeExt(ext)] }

// Root returns the source root references resolve against.
func (p *Parser) Root() string { return p.root }

// Parse parses data from absPath, treating it as having extension ext.
// It returns nil when ext is not parsable.
func (p *Parser) Parse(absPath, ext string, data []byte) *File {
	if !p.CanParse(ext) {
		return nil
	}
	text := string(data)
	if p.scope == ScopeAttributes && isMarkup(ext) {
		spans, err := markupSpans(data)
		if err == nil {
			return &File{Ext: ext, Parts: splitSpans(p.root, absPath, text, spans)}
		}
	}
	return Parse(p.root, absPath, ext, text)
}

func isMarkup(ext string) bool {
	switch NormalizeExt(ext) {
	case ".html", ".htm":
		return true
	}
	return false
}

// splitSpans tokenizes only inside spans; the rest of the text is literal.
func splitSpans(root, absPath, text string, spans [][2]int) []Part {
	var parts []Part
	add := func(ps ...Part) {
		for _, p := range ps {
			if p.Text == "" {
				continue
			}
			if n := len(parts); n > 0 && !p.IsReference() && !parts[n-1].IsReference() {
				parts[n-1].Text += p.Text
				continue
			}
			parts = append(parts, p)
		}
	}

	last := 0
	for _, sp := range spans {
		if sp[0] < last || sp[1] > len(text) || sp[0] >= sp[1] {
			continue
		}
		add(Literal(text[last:sp[0]]))
		add(split(root, absPath, text, sp[0], sp[1])...)
		last = sp[1]
	}
	add(Literal(text[last:]))
	return parts
}
