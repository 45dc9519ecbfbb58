package pipeline

import (
	"errors"
	"path/filepath"

	"github.com/agentic-research/fingerpack/internal/fingerprint"
	"github.com/rs/zerolog/log"
)

// emit writes data as the output of src, replacing any previous output.
// Empty data clears the previous output. Must be called with p.mu held.
func (p *Pipeline) emit(src, ext string, data []byte) error {
	prev, had := p.outputs[src]

	if len(data) == 0 {
		if !had {
			return nil
		}
		if err := p.fs.Remove(prev); err != nil {
			return newFileError(WriteFailure, src, err)
		}
		delete(p.outputs, src)
		log.Info().Str("path", src).Str("output", prev).Msg("cleared empty output")
		p.notifyOutput(src, "")
		return nil
	}

	out := p.fp.OutputPath(src, ext, data)
	if had && prev != out {
		if err := p.fs.Remove(prev); err != nil {
			return newFileError(WriteFailure, src, err)
		}
		// The old file is gone; forget it even if the write below fails.
		delete(p.outputs, src)
	}
	written, err := p.fp.Write(p.fs, src, ext, data)
	if err != nil {
		if errors.Is(err, fingerprint.ErrEmpty) {
			return nil
		}
		return newFileError(WriteFailure, src, err)
	}
	p.outputs[src] = written
	log.Info().Str("path", src).Str("output", written).Msg("wrote")
	p.notifyOutput(src, written)
	return nil
}

func (p *Pipeline) notifyOutput(src, out string) {
	if p.hooks.OnOutput != nil {
		p.hooks.OnOutput(src, out)
	}
}

// resolve is the refparse.ResolveFunc used when rendering: a target
// renders as the URL of its current output. Must be called with p.mu held.
func (p *Pipeline) resolve(target string) (string, bool) {
	if matchAny(p.noOutput, target) {
		return "", false
	}
	out, ok := p.outputs[target]
	if !ok {
		return "", false
	}
	return p.url(out), true
}

// url maps an output path to the path it is served under, or to an
// absolute URL when a base URL is configured.
func (p *Pipeline) url(out string) string {
	rel, err := filepath.Rel(p.outDir, out)
	if err != nil {
		rel = filepath.Base(out)
	}
	return p.baseURL + "/" + filepath.ToSlash(rel)
}

// Outputs returns a copy of the source → output table.
func (p *Pipeline) Outputs() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.outputs))
	for k, v := range p.outputs {
		out[k] = v
	}
	return out
}

// Output returns the current output path of src.
func (p *Pipeline) Output(src string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out, ok := p.outputs[p.Resolve(src)]
	return out, ok
}

// URL returns the URL src is referenced by in generated output.
func (p *Pipeline) URL(src string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out, ok := p.outputs[p.Resolve(src)]
	if !ok {
		return "", false
	}
	return p.url(out), true
}
