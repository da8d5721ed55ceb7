// Package analyzer coordinates signature generation, matching and grouping
// over a batch of files.
package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"imagededup/config"
	apperrors "imagededup/errors"
	"imagededup/grouping"
	"imagededup/imageprocessor"
	"imagededup/logging"
	"imagededup/matcher"
	"imagededup/scanner"
	"imagededup/signalhandler"
	"imagededup/signature"
	"imagededup/types"

	"github.com/sirupsen/logrus"
)

// SignatureCache persists bundles between runs. Lookup fills rec from the
// cache and reports whether a fresh entry was found.
type SignatureCache interface {
	Lookup(rec *types.ImageRecord, fingerprint string) (bool, error)
	Store(rec *types.ImageRecord, fingerprint string) error
}

// ProgressSink receives progress events drained from the pipeline
type ProgressSink func(types.ProgressEvent)

// Options configures an Analyzer
type Options struct {
	Params   config.AnalysisParams
	Provider imageprocessor.HashProvider
	Cache    SignatureCache
	Progress ProgressSink
}

// Analyzer runs analyses with one fixed parameter set
type Analyzer struct {
	params      config.AnalysisParams
	fingerprint string
	generator   *signature.Generator
	matcher     *matcher.Matcher
	engine      *grouping.Engine
	cache       SignatureCache
	progress    ProgressSink
	workers     int
}

const eventBuffer = 1024

// New validates the parameters and selects the hash provider when none is
// given. Invalid parameters fail here, before any file is touched.
func New(opts Options) (*Analyzer, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}

	provider := opts.Provider
	if provider == nil {
		p, err := imageprocessor.SelectProvider(opts.Params.Provider)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	workers := opts.Params.Workers
	if workers <= 0 {
		workers = signalhandler.GetOptimalProcs()
	}

	progress := opts.Progress
	if progress == nil {
		progress = logProgress
	}

	m := matcher.New(opts.Params)
	return &Analyzer{
		params:      opts.Params,
		fingerprint: opts.Params.Fingerprint(provider.Name()),
		generator:   signature.NewGenerator(provider, opts.Params),
		matcher:     m,
		engine:      grouping.NewEngine(m, workers, opts.Params.ReferenceScale()),
		cache:       opts.Cache,
		progress:    progress,
		workers:     workers,
	}, nil
}

// Fingerprint identifies the signature shape and provider of this analyzer
// in the cache
func (a *Analyzer) Fingerprint() string {
	return a.fingerprint
}

// Params returns the parameters the analyzer was built with
func (a *Analyzer) Params() config.AnalysisParams {
	return a.params
}

// Provider returns the name of the selected hash provider
func (a *Analyzer) Provider() string {
	return a.generator.Provider().Name()
}

func logProgress(ev types.ProgressEvent) {
	logging.WithFields(logrus.Fields{
		"stage":              ev.Stage,
		"index":              ev.Index,
		"total":              ev.Total,
		"current_file":       ev.CurrentFile,
		"combinations_count": ev.Combinations,
	}).Debug("progress")
}

// Run enumerates src, builds or loads a signature bundle per file, groups
// the matches and summarizes the outcome. When ctx is cancelled the report
// covers the records processed so far and the returned error is ctx.Err().
func (a *Analyzer) Run(ctx context.Context, src scanner.Source) (*types.Report, error) {
	start := time.Now()

	events := make(chan types.ProgressEvent, eventBuffer)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range events {
			a.progress(ev)
		}
	}()

	report, err := a.run(ctx, src, events)
	report.Summary.Elapsed = time.Since(start)

	types.SendProgress(events, types.ProgressEvent{Stage: types.StageDone, Index: report.Summary.TotalImages, Total: report.Summary.TotalImages})
	close(events)
	<-drained

	logging.WithFields(logrus.Fields{
		"images":      report.Summary.TotalImages,
		"groups":      report.Summary.DuplicateGroups,
		"failed":      report.Summary.FailedImages,
		"cached":      report.Summary.CachedImages,
		"interrupted": report.Summary.Interrupted,
		"elapsed_ms":  report.Summary.Elapsed.Milliseconds(),
	}).Info("analysis finished")

	return report, err
}

func (a *Analyzer) run(ctx context.Context, src scanner.Source, events chan<- types.ProgressEvent) (*types.Report, error) {
	records := a.enumerate(ctx, src, events)
	if ctx.Err() != nil {
		report := &types.Report{Summary: types.Summary{Interrupted: true}}
		return report, ctx.Err()
	}

	pending := a.prepare(records)

	processed, genErr := a.generator.GenerateBatch(ctx, pending, a.workers, events)
	logging.DebugLog("Generated signatures for %d of %d images", processed, len(pending))
	a.store(pending)

	unprocessed := 0
	if genErr != nil {
		kept := records[:0]
		for _, rec := range records {
			if rec.Bundle == nil {
				unprocessed++
				continue
			}
			kept = append(kept, rec)
		}
		records = kept
	}

	res, groupErr := a.engine.Group(ctx, records, events)

	report := &types.Report{Groups: res.Groups}
	report.Summary = summarize(records, res)
	report.Summary.Unprocessed = unprocessed
	report.Summary.Interrupted = genErr != nil || res.Interrupted

	if report.Summary.Interrupted || groupErr != nil {
		return report, ctx.Err()
	}
	return report, nil
}

// enumerate drains the source into records keyed by absolute path
func (a *Analyzer) enumerate(ctx context.Context, src scanner.Source, events chan<- types.ProgressEvent) []*types.ImageRecord {
	seen := make(map[string]bool)
	var records []*types.ImageRecord
	for path := range src.Paths(ctx) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = filepath.Clean(path)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		records = append(records, &types.ImageRecord{Path: abs})
		types.SendProgress(events, types.ProgressEvent{Stage: types.StageEnumerate, Index: len(records), CurrentFile: abs})
	}
	return records
}

// prepare stats each record and resolves cache hits. It returns the records
// that still need signatures.
func (a *Analyzer) prepare(records []*types.ImageRecord) []*types.ImageRecord {
	var pending []*types.ImageRecord
	for _, rec := range records {
		info, err := os.Stat(rec.Path)
		if err != nil {
			a.generator.Fail(rec, apperrors.NewDecodeError("cannot stat file", err).WithPath(rec.Path))
			logging.LogImageProcessed(rec.Path, false, err.Error())
			continue
		}
		rec.Size = info.Size()
		rec.ModTime = info.ModTime()

		if a.cache != nil {
			hit, err := a.cache.Lookup(rec, a.fingerprint)
			if err != nil {
				logging.WithError(err).WithField("path", rec.Path).Warn("signature cache lookup failed")
			}
			if hit {
				rec.FromCache = true
				continue
			}
		}
		pending = append(pending, rec)
	}
	return pending
}

// store writes freshly generated bundles back to the cache
func (a *Analyzer) store(records []*types.ImageRecord) {
	if a.cache == nil {
		return
	}
	for _, rec := range records {
		if rec.Bundle == nil {
			continue
		}
		if err := a.cache.Store(rec, a.fingerprint); err != nil {
			logging.WithError(err).WithField("path", rec.Path).Warn("signature cache store failed")
		}
	}
}

func summarize(records []*types.ImageRecord, res *grouping.Result) types.Summary {
	s := types.Summary{
		TotalImages:     len(records),
		DuplicateGroups: len(res.Groups),
		Comparisons:     res.Compared,
		Prefiltered:     res.Prefiltered,
		CompareErrors:   res.Errors,
		Reasons:         make(map[string]int),
	}
	for _, g := range res.Groups {
		s.DuplicateImages += len(g.Members)
		s.Reasons[g.Reason]++
	}
	for _, rec := range records {
		if rec.FromCache {
			s.CachedImages++
		}
		if rec.Failed() {
			msg := "signature generation failed"
			if rec.Err != nil {
				msg = rec.Err.Error()
			}
			s.Failed = append(s.Failed, types.FailedImage{Path: rec.Path, Error: msg})
			continue
		}
		if rec.Uniform() {
			s.Uniform = append(s.Uniform, rec.Path)
		}
	}
	sort.Strings(s.Uniform)
	s.UniformImages = len(s.Uniform)
	sort.Slice(s.Failed, func(i, j int) bool { return s.Failed[i].Path < s.Failed[j].Path })
	s.FailedImages = len(s.Failed)
	return s
}
