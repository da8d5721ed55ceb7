package signature

import (
	"context"
	"sync/atomic"

	"imagededup/logging"
	"imagededup/types"

	"golang.org/x/sync/errgroup"
)

// GenerateBatch processes records on a pool of workers goroutines. A
// progress event is sent after each completed record. Cancellation stops
// new records from starting; records already in flight finish, and records
// never started keep a nil Bundle. Returns the number of processed records.
func (g *Generator) GenerateBatch(ctx context.Context, records []*types.ImageRecord, workers int, events chan<- types.ProgressEvent) (int, error) {
	if workers < 1 {
		workers = 1
	}

	var eg errgroup.Group
	eg.SetLimit(workers)

	var completed atomic.Int64
	total := len(records)

	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			g.Process(rec)

			n := completed.Add(1)
			if rec.Err != nil {
				logging.LogImageProcessed(rec.Path, false, rec.Err.Error())
			} else {
				logging.LogImageProcessed(rec.Path, true, "")
			}
			types.SendProgress(events, types.ProgressEvent{
				Stage:        types.StageSignature,
				Index:        int(n),
				Total:        total,
				CurrentFile:  rec.Path,
				Combinations: rec.Bundle.Entries(),
				Failed:       rec.Err != nil,
			})
			return nil
		})
	}

	_ = eg.Wait()
	return int(completed.Load()), ctx.Err()
}
