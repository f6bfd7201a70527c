package convert

import (
	"context"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/lmtconvert/cache"
	"github.com/janelia-flyem/lmtconvert/core"
)

// DefaultProgressInterval is the number of blocks between progress messages.
const DefaultProgressInterval = 1000

// Transcoder converts every block of a multiset source into dense labels written to
// a sink.  With Workers <= 1, blocks are processed one at a time in odometer order.
// Otherwise up to Workers blocks are processed concurrently and the first error
// stops the remaining work.
type Transcoder struct {
	Source           Source
	Sink             Sink
	Workers          int
	ProgressInterval int64

	completed int64
}

// Transcode converts the source to the sink sequentially.
func Transcode(ctx context.Context, geom core.Geometry, source Source, sink Sink) error {
	t := &Transcoder{Source: source, Sink: sink}
	return t.Run(ctx, geom)
}

// Run transcodes a dataset of the given geometry.
func (t *Transcoder) Run(ctx context.Context, geom core.Geometry) error {
	if err := geom.Validate(); err != nil {
		return &GeometryMismatchError{Expected: geom, Err: err}
	}
	if err := t.Sink.CreateDataset(ctx, geom); err != nil {
		var mismatch *GeometryMismatchError
		if errors.As(err, &mismatch) {
			return err
		}
		return &GeometryMismatchError{Expected: geom, Err: err}
	}

	timedLog := core.NewTimeLog()
	walker := NewGridWalker(geom)
	total := walker.NumBlocks()
	atomic.StoreInt64(&t.completed, 0)
	core.Infof("Transcoding %d blocks (%s) with %d worker(s), %s of output labels\n",
		total, geom, t.numWorkers(), humanize.Bytes(uint64(geom.NumVoxels())*8))

	var err error
	if t.numWorkers() == 1 {
		err = t.runSequential(ctx, geom, walker, total, timedLog)
	} else {
		err = t.runParallel(ctx, geom, walker, total, timedLog)
	}
	if err != nil {
		return err
	}
	timedLog.Infof("Transcoded %d blocks", total)
	if sp, ok := t.Source.(interface{ CacheStats() (cache.Stats, bool) }); ok {
		if stats, used := sp.CacheStats(); used {
			core.Infof("Chunk cache: %s\n", stats)
		}
	}
	return nil
}

func (t *Transcoder) numWorkers() int {
	if t.Workers <= 1 {
		return 1
	}
	return t.Workers
}

func (t *Transcoder) runSequential(ctx context.Context, geom core.Geometry, walker *GridWalker, total int64, timedLog core.TimeLog) error {
	for {
		coord, extent, ok := walker.Next()
		if !ok {
			return nil
		}
		if err := t.transcodeBlock(ctx, geom, coord, extent); err != nil {
			return err
		}
		t.blockDone(total, timedLog)
	}
}

func (t *Transcoder) runParallel(ctx context.Context, geom core.Geometry, walker *GridWalker, total int64, timedLog core.TimeLog) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.Workers)
	for {
		coord, extent, ok := walker.Next()
		if !ok || gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := t.transcodeBlock(gctx, geom, coord, extent); err != nil {
				return err
			}
			t.blockDone(total, timedLog)
			return nil
		})
	}
	return g.Wait()
}

func (t *Transcoder) blockDone(total int64, timedLog core.TimeLog) {
	n := atomic.AddInt64(&t.completed, 1)
	interval := t.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	if n%interval != 0 || n == total {
		return
	}
	var rate float64
	if secs := timedLog.Elapsed().Seconds(); secs > 0 {
		rate = float64(n) / secs
	}
	timedLog.Infof("Transcoded %d of %d blocks (%.1f%%, %.1f blocks/sec)", n, total, 100*float64(n)/float64(total), rate)
}

func (t *Transcoder) transcodeBlock(ctx context.Context, geom core.Geometry, coord core.ChunkPointNd, extent core.PointNd) error {
	it, err := t.Source.Region(ctx, geom.BlockOffset(coord), extent)
	if err != nil {
		if _, found := BlockCoord(err); found {
			return err
		}
		return &SourceReadError{Coord: coord, Err: err}
	}
	data, err := Reduce(it, int(extent.Prod()))
	if err != nil {
		var emptyErr *EmptyMultisetError
		if errors.As(err, &emptyErr) {
			emptyErr.Coord = coord
			return emptyErr
		}
		return &SourceReadError{Coord: coord, Err: err}
	}
	if err := t.Sink.WriteBlock(ctx, coord, extent, data); err != nil {
		return &SinkWriteError{Coord: coord, Err: err}
	}
	core.Debugf("Wrote block %s, extent %s\n", coord, extent)
	return nil
}
