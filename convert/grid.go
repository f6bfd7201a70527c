package convert

import "github.com/janelia-flyem/lmtconvert/core"

// GridWalker enumerates the blocks of a dataset in odometer order, axis 0 varying
// fastest.  It holds only the current coordinate and can be restarted.
type GridWalker struct {
	geom    core.Geometry
	coord   core.ChunkPointNd
	started bool
	done    bool
}

// NewGridWalker returns a walker over a validated geometry.
func NewGridWalker(geom core.Geometry) *GridWalker {
	return &GridWalker{
		geom:  geom,
		coord: make(core.ChunkPointNd, geom.NumDims()),
	}
}

// NumBlocks returns the total number of blocks the walker yields.
func (w *GridWalker) NumBlocks() int64 {
	return w.geom.NumBlocks()
}

// Next returns the next block coordinate and its extent, or ok == false once every
// block has been yielded.
func (w *GridWalker) Next() (coord core.ChunkPointNd, extent core.PointNd, ok bool) {
	if w.done {
		return nil, nil, false
	}
	if !w.started {
		w.started = true
	} else if !w.advance() {
		w.done = true
		return nil, nil, false
	}
	coord = w.coord.Duplicate()
	return coord, w.geom.BlockExtent(coord), true
}

// carries into the next axis when the offset reaches the dimension bound.
func (w *GridWalker) advance() bool {
	for d := range w.coord {
		w.coord[d]++
		if uint64(w.coord[d])*uint64(w.geom.BlockSize[d]) < w.geom.Dimensions[d] {
			return true
		}
		w.coord[d] = 0
	}
	return false
}

// Reset restarts the walk from the first block.
func (w *GridWalker) Reset() {
	for d := range w.coord {
		w.coord[d] = 0
	}
	w.started = false
	w.done = false
}
