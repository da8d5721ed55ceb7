package scanner

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"imagededup/logging"
	"imagededup/types"
)

// NewProgressTracker starts a tracker that redraws its line every 500ms.
// A nil writer means stdout.
func NewProgressTracker(out io.Writer) *ProgressTracker {
	if out == nil {
		out = os.Stdout
	}
	tracker := &ProgressTracker{
		out:     out,
		ticker:  time.NewTicker(500 * time.Millisecond),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go tracker.displayProgress()

	return tracker
}

// displayProgress shows the progress periodically
func (p *ProgressTracker) displayProgress() {
	defer close(p.stopped)
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.mu.Lock()
			if p.dirty {
				p.render()
				p.dirty = false
			}
			p.mu.Unlock()
		}
	}
}

// render writes the current line. Caller holds p.mu.
func (p *ProgressTracker) render() {
	if p.errors > 0 {
		fmt.Fprintf(p.out, "\rProgress [%s]: %d/%d (Errors: %d)", p.stage, p.processed, p.total, p.errors)
	} else {
		fmt.Fprintf(p.out, "\rProgress [%s]: %d/%d", p.stage, p.processed, p.total)
	}
}

// Observe records one progress event. It never blocks on output.
func (p *ProgressTracker) Observe(ev types.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Stage != p.stage {
		if p.stage != "" && p.processed > 0 {
			p.render()
			fmt.Fprintln(p.out)
		}
		p.stage = ev.Stage
		p.processed = 0
		p.errors = 0
	}
	if ev.Stage == types.StageDone {
		return
	}
	if ev.Index > p.processed {
		p.processed = ev.Index
	}
	p.total = ev.Total
	p.current = ev.CurrentFile
	if ev.Failed {
		p.errors++
	}
	p.dirty = true
}

// Errors returns the failures counted in the current stage
func (p *ProgressTracker) Errors() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errors
}

// Stop ends the progress tracking and prints the final line
func (p *ProgressTracker) Stop() {
	p.ticker.Stop()
	close(p.done)
	<-p.stopped

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dirty {
		p.render()
		fmt.Fprintln(p.out)
		p.dirty = false
	}
}

// PrintStartupInfo displays information about the scan before starting
func PrintStartupInfo(out io.Writer, root string, stats FileStats, combinations int) {
	formats := make([]string, 0, len(stats.ByFormat))
	for f, n := range stats.ByFormat {
		formats = append(formats, fmt.Sprintf("%s: %d", f, n))
	}
	sort.Strings(formats)

	fmt.Fprintf(out, "Starting duplicate analysis of %s...\n", root)
	fmt.Fprintf(out, "Total image files to process: %d (%s)\n", stats.TotalFiles, strings.Join(formats, ", "))
	fmt.Fprintf(out, "Signature entries per image: %d\n", combinations)

	logging.DebugLog("Found %d image files to process (%d TIF files)", stats.TotalFiles, stats.TifFiles)
}

// PrintCompletionStats displays statistics after the analysis
func PrintCompletionStats(out io.Writer, summary types.Summary) {
	logging.DebugLog("Analysis completed in %v. Images: %d, groups: %d, failed: %d, cached: %d",
		summary.Elapsed, summary.TotalImages, summary.DuplicateGroups, summary.FailedImages, summary.CachedImages)

	if summary.Interrupted {
		fmt.Fprintln(out, "\nAnalysis interrupted, results are partial.")
	} else {
		fmt.Fprintln(out, "\nAnalysis complete.")
	}
	fmt.Fprintf(out, "Processed %d images in %v.\n", summary.TotalImages, summary.Elapsed.Round(time.Millisecond))
	if summary.CachedImages > 0 {
		fmt.Fprintf(out, "Reused cached signatures for %d images.\n", summary.CachedImages)
	}
	fmt.Fprintf(out, "Found %d duplicate groups covering %d images.\n", summary.DuplicateGroups, summary.DuplicateImages)
	if summary.UniformImages > 0 {
		fmt.Fprintf(out, "Skipped %d uniform-color images.\n", summary.UniformImages)
	}
	if summary.FailedImages > 0 {
		fmt.Fprintf(out, "Encountered %d errors during analysis.\n", summary.FailedImages)
		fmt.Fprintln(out, "Check the log file for details.")
	}
}
