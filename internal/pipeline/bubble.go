package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// bubbleUp regenerates every file that transitively references one of the
// origins. Each is regenerated at most once, after the files it
// references wherever no cycle prevents that. The origins themselves are
// never regenerated. Must be called with p.mu held.
func (p *Pipeline) bubbleUp(ctx context.Context, origins ...string) {
	order := schedule(p.affected(origins), p.ledger.References)
	if len(order) == 0 {
		return
	}
	prev := make(map[string]string, len(order))
	for _, path := range order {
		prev[path] = p.outputs[path]
	}
	for _, path := range order {
		p.regenerate(ctx, path)
	}
	p.warnStale(origins, prev)
}

// warnStale logs every origin whose output still names a reference that
// was renamed during the pass. Only a cycle through the origin can do
// that. Must be called with p.mu held.
func (p *Pipeline) warnStale(origins []string, prev map[string]string) {
	for _, origin := range origins {
		if _, ok := p.outputs[origin]; !ok {
			continue
		}
		for _, ref := range p.ledger.References(origin) {
			old, ok := prev[ref]
			if !ok || old == "" || old == p.outputs[ref] {
				continue
			}
			log.Warn().Str("path", origin).Str("reference", ref).Str("stale", old).
				Msg("reference renamed inside a cycle; output is stale until the next change")
		}
	}
}

// affected returns the transitive dependents of origins in breadth-first
// order, excluding the origins.
func (p *Pipeline) affected(origins []string) []string {
	visited := make(map[string]bool, len(origins))
	for _, o := range origins {
		visited[o] = true
	}
	queue := append([]string(nil), origins...)
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range p.ledger.Dependents(cur) {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out
}

// schedule orders nodes so that each comes after the nodes it references
// within the set. When only cycles remain, the earliest remaining node in
// input order is taken next.
func schedule(nodes []string, refs func(string) []string) []string {
	in := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		in[n] = true
	}
	pending := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)
	for _, n := range nodes {
		for _, r := range refs(n) {
			if r == n || !in[r] {
				continue
			}
			pending[n]++
			dependents[r] = append(dependents[r], n)
		}
	}

	var queue []string
	for _, n := range nodes {
		if pending[n] == 0 {
			queue = append(queue, n)
		}
	}

	done := make(map[string]bool, len(nodes))
	order := make([]string, 0, len(nodes))
	next := 0 // first candidate for breaking a cycle
	for len(order) < len(nodes) {
		if len(queue) == 0 {
			for done[nodes[next]] {
				next++
			}
			queue = append(queue, nodes[next])
		}
		n := queue[0]
		queue = queue[1:]
		if done[n] {
			continue
		}
		done[n] = true
		order = append(order, n)
		for _, d := range dependents[n] {
			pending[d]--
			if pending[d] == 0 && !done[d] {
				queue = append(queue, d)
			}
		}
	}
	return order
}

// regenerate brings one dependent up to date during bubble-up. Files with
// a transformer are processed again from source, since their output may
// depend on more than the references they carry. Others are re-rendered
// from their stored record. Failures are reported, not returned. Must be
// called with p.mu held.
func (p *Pipeline) regenerate(ctx context.Context, path string) {
	if p.transformers.Has(filepath.Ext(path)) {
		pr, err := p.prepare(ctx, path)
		if err == nil {
			err = p.commit(pr)
		}
		if err != nil {
			p.report(err)
		}
		return
	}

	if matchAny(p.noOutput, path) {
		return
	}
	after, err := p.ledger.After(path)
	if err != nil || after == nil {
		return
	}
	if err := p.emit(path, after.Ext, []byte(after.Render(p.resolve))); err != nil {
		p.report(err)
	}
}
