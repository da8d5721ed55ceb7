package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	apperrors "imagededup/errors"
	"imagededup/logging"
	"imagededup/matcher"
	"imagededup/types"
)

// SearchHit is one candidate matching a query image
type SearchHit struct {
	Path   string            `json:"path"`
	Result types.MatchResult `json:"result"`
	Reason string            `json:"reason"`
}

// Search compares one query image against previously analyzed candidates.
// Hits are ordered exact first, then by the summed distance of the passing
// algorithms.
func (a *Analyzer) Search(ctx context.Context, queryPath string, candidates []*types.ImageRecord) ([]SearchHit, error) {
	abs, err := filepath.Abs(queryPath)
	if err != nil {
		abs = queryPath
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, apperrors.NewDecodeError("cannot stat query image", err).WithPath(abs)
	}

	query := &types.ImageRecord{Path: abs, Size: info.Size(), ModTime: info.ModTime()}
	a.generator.Process(query)
	if query.Failed() {
		return nil, query.Err
	}

	var hits []SearchHit
	for _, cand := range candidates {
		if ctx.Err() != nil {
			return hits, ctx.Err()
		}
		if cand.Path == abs || cand.Failed() {
			continue
		}
		ok, err := a.matcher.Prefilter(query, cand)
		if err != nil {
			logging.WithError(err).WithField("path", cand.Path).Warn("prefilter failed")
			continue
		}
		if !ok {
			continue
		}
		res, err := a.matcher.Match(query, cand)
		if err != nil {
			logging.WithError(err).WithField("path", cand.Path).Warn("comparison failed")
			continue
		}
		if res.IsMatch {
			hits = append(hits, SearchHit{Path: cand.Path, Result: res, Reason: matcher.DescribeMatch(res)})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Result.Exact != hits[j].Result.Exact {
			return hits[i].Result.Exact
		}
		di, dj := passedDistance(hits[i].Result), passedDistance(hits[j].Result)
		if di != dj {
			return di < dj
		}
		return hits[i].Path < hits[j].Path
	})
	return hits, nil
}

func passedDistance(r types.MatchResult) int {
	sum := 0
	for _, d := range r.Distances {
		if d.Passed {
			sum += d.Distance
		}
	}
	return sum
}
