package scanner

import (
	"context"
	"io"
	"iter"
	"sync"
	"time"

	"imagededup/types"
)

// Source is a lazy, restartable sequence of candidate image paths
type Source interface {
	Paths(ctx context.Context) iter.Seq[string]
}

// FileStats tracks information about files to be processed
type FileStats struct {
	TotalFiles int
	TifFiles   int
	ByFormat   map[string]int
}

// ProgressTracker renders progress events as a single updating console line
type ProgressTracker struct {
	out       io.Writer
	ticker    *time.Ticker
	done      chan struct{}
	stopped   chan struct{}
	mu        sync.Mutex
	stage     types.Stage
	processed int
	total     int
	errors    int
	current   string
	dirty     bool
}
