package grouping

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	apperrors "imagededup/errors"
	"imagededup/logging"
	"imagededup/types"

	"github.com/sirupsen/logrus"
)

// PairMatcher is the comparison the engine runs for each candidate pair.
// Prefilter is the cheap tier; Match runs only for pairs that pass it.
type PairMatcher interface {
	Prefilter(a, b *types.ImageRecord) (bool, error)
	Match(a, b *types.ImageRecord) (types.MatchResult, error)
}

// Engine clusters matched records into duplicate groups
type Engine struct {
	matcher  PairMatcher
	workers  int
	refScale float64
}

// NewEngine creates an engine comparing pairs on workers goroutines
func NewEngine(m PairMatcher, workers int, refScale float64) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{matcher: m, workers: workers, refScale: refScale}
}

// Result is the outcome of one grouping pass
type Result struct {
	Groups      []types.DuplicateGroup
	Compared    int
	Prefiltered int
	Skipped     int
	Errors      int
	Interrupted bool
}

type pair struct {
	i, j int
}

type outcome struct {
	pair
	result      types.MatchResult
	prefiltered bool
	err         error
}

type indexedEdge struct {
	pair
	edge types.Edge
}

// Group unions byte-identical records first, then compares every remaining
// unconnected pair. Distance work runs on the worker pool while a single
// goroutine owns the union-find. On cancellation no new pairs are
// dispatched, in-flight pairs are applied, and the groups found so far are
// returned with ctx.Err().
func (e *Engine) Group(ctx context.Context, records []*types.ImageRecord, events chan<- types.ProgressEvent) (*Result, error) {
	res := &Result{}
	uf := NewUnionFind(len(records))
	var edges []indexedEdge

	var eligible []int
	buckets := make(map[string][]int)
	for i, rec := range records {
		if rec.Failed() {
			continue
		}
		eligible = append(eligible, i)
		if rec.ContentHash != "" {
			buckets[rec.ContentHash] = append(buckets[rec.ContentHash], i)
		}
	}

	hashes := make([]string, 0, len(buckets))
	for h := range buckets {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	for _, h := range hashes {
		members := buckets[h]
		for _, j := range members[1:] {
			i := members[0]
			uf.Union(i, j)
			edges = append(edges, indexedEdge{
				pair: pair{i, j},
				edge: types.Edge{A: records[i].Path, B: records[j].Path, Exact: true, Scale: e.refScale},
			})
		}
	}

	jobs := make(chan pair, e.workers*4)
	results := make(chan outcome, e.workers*4)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				results <- e.compare(records[p.i], records[p.j], p)
			}
		}()
	}

	total := len(eligible) * (len(eligible) - 1) / 2
	considered := 0
	pi, pj := 0, 1
	next := func() (pair, bool) {
		for pi < len(eligible)-1 {
			if pj >= len(eligible) {
				pi++
				pj = pi + 1
				types.SendProgress(events, types.ProgressEvent{
					Stage:       types.StageMatching,
					Index:       considered,
					Total:       total,
					CurrentFile: records[eligible[pi-1]].Path,
				})
				continue
			}
			a, b := eligible[pi], eligible[pj]
			pj++
			considered++
			if uf.Connected(a, b) {
				res.Skipped++
				continue
			}
			return pair{a, b}, true
		}
		return pair{}, false
	}

	apply := func(out outcome) {
		switch {
		case out.err != nil:
			res.Errors++
			logging.WithError(out.err).WithFields(logrus.Fields{
				"a": records[out.i].Path,
				"b": records[out.j].Path,
			}).Warn("comparison failed")
		case out.prefiltered:
			res.Prefiltered++
		default:
			res.Compared++
			if out.result.IsMatch {
				uf.Union(out.i, out.j)
				edges = append(edges, indexedEdge{pair: out.pair, edge: types.Edge{
					A:         records[out.i].Path,
					B:         records[out.j].Path,
					Exact:     out.result.Exact,
					Angle:     out.result.Angle,
					Scale:     out.result.Scale,
					Distances: out.result.Distances,
					Passed:    out.result.Passed,
				}})
			}
		}
	}

	var cur pair
	have := false
	pending := 0
	done := ctx.Done()
	for {
		if done != nil && ctx.Err() != nil {
			res.Interrupted = true
			have = false
			done = nil
		}
		if !have && !res.Interrupted {
			cur, have = next()
		}
		var send chan pair
		if have {
			send = jobs
		}
		if send == nil && pending == 0 {
			break
		}

		select {
		case send <- cur:
			pending++
			have = false
		case out := <-results:
			pending--
			apply(out)
		case <-done:
			res.Interrupted = true
			have = false
			done = nil
		}
	}
	close(jobs)
	wg.Wait()

	res.Groups = e.buildGroups(records, uf, edges)
	types.SendProgress(events, types.ProgressEvent{Stage: types.StageMatching, Index: considered, Total: total})

	if res.Interrupted {
		return res, ctx.Err()
	}
	return res, nil
}

// compare runs both tiers for one pair. A panic is fatal for this pair only.
func (e *Engine) compare(a, b *types.ImageRecord, p pair) (out outcome) {
	out.pair = p
	defer func() {
		if r := recover(); r != nil {
			logging.DebugLog("panic comparing %s and %s: %v\n%s", a.Path, b.Path, r, debug.Stack())
			out.err = apperrors.NewInternalError("panic during comparison", fmt.Errorf("%v", r))
		}
	}()

	ok, err := e.matcher.Prefilter(a, b)
	if err != nil {
		out.err = err
		return out
	}
	if !ok {
		out.prefiltered = true
		return out
	}
	out.result, out.err = e.matcher.Match(a, b)
	return out
}

// buildGroups turns every component of two or more records into a group.
// Groups are numbered from 1 in order of their first member path.
func (e *Engine) buildGroups(records []*types.ImageRecord, uf *UnionFind, edges []indexedEdge) []types.DuplicateGroup {
	comps := uf.Components(2)
	groupOf := make(map[int]int, len(comps))
	groups := make([]types.DuplicateGroup, len(comps))

	for gi, members := range comps {
		groupOf[uf.Find(members[0])] = gi
		paths := make([]string, len(members))
		for k, idx := range members {
			paths[k] = records[idx].Path
		}
		sort.Strings(paths)
		groups[gi].Members = paths
	}

	for _, ie := range edges {
		gi, ok := groupOf[uf.Find(ie.i)]
		if !ok {
			continue
		}
		groups[gi].Edges = append(groups[gi].Edges, ie.edge)
	}

	sort.Slice(groups, func(a, b int) bool {
		return groups[a].Members[0] < groups[b].Members[0]
	})
	for gi := range groups {
		groups[gi].ID = gi + 1
		groups[gi].Reason = SummarizeReason(groups[gi].Edges, e.refScale)
	}
	return groups
}
