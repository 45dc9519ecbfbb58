package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/rs/zerolog/log"
)

// manifestLocked maps every source path, relative to the source directory
// and slash separated, to the URL of its output. Must be called with p.mu
// held.
func (p *Pipeline) manifestLocked() map[string]any {
	m := make(map[string]any, len(p.outputs))
	for src, out := range p.outputs {
		rel, err := filepath.Rel(p.srcDir, src)
		if err != nil {
			continue
		}
		m[filepath.ToSlash(rel)] = p.url(out)
	}
	return m
}

// Manifest returns the source to URL map.
func (p *Pipeline) Manifest() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.manifestLocked()
}

// QueryManifest evaluates a JSONPath expression against the manifest, for
// example `$['img/logo.png']`.
func (p *Pipeline) QueryManifest(selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	return x.Get(p.Manifest()), nil
}

// writeManifest rewrites the manifest file when one is configured. A
// failure is logged; the manifest is advisory. Must be called with p.mu
// held.
func (p *Pipeline) writeManifest() {
	if p.manifest == "" {
		return
	}
	path := filepath.Join(p.outDir, p.manifest)
	data := oj.JSON(p.manifestLocked(), &ojg.Options{Indent: 2, Sort: true})
	if err := p.fs.Write(path, []byte(data)); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("write manifest")
	}
}
