package convert

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/janelia-flyem/lmtconvert/core"
)

// GeometryMismatchError is returned when the output dataset cannot be created with
// the source geometry.
type GeometryMismatchError struct {
	Expected core.Geometry
	Actual   *core.Geometry // nil if the output could not be created at all
	Err      error
}

func (e *GeometryMismatchError) Error() string {
	if e.Actual != nil {
		return fmt.Sprintf("output geometry (%s) does not match source geometry (%s)", *e.Actual, e.Expected)
	}
	return fmt.Sprintf("unable to create output with source geometry (%s): %v", e.Expected, e.Err)
}

func (e *GeometryMismatchError) Unwrap() error { return e.Err }

// SourceReadError is returned when a source chunk cannot be produced.
type SourceReadError struct {
	Coord core.ChunkPointNd
	Err   error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("unable to read source block %s: %v", e.Coord, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// EmptyMultisetError is returned when a voxel's multiset has no entries.
type EmptyMultisetError struct {
	Coord core.ChunkPointNd
	Index int
}

func (e *EmptyMultisetError) Error() string {
	return fmt.Sprintf("empty label multiset at voxel %d of block %s", e.Index, e.Coord)
}

// SinkWriteError is returned when an output block cannot be written.
type SinkWriteError struct {
	Coord core.ChunkPointNd
	Err   error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("unable to write output block %s: %v", e.Coord, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }

// BlockCoord returns the block coordinate carried by a transcoding error.
func BlockCoord(err error) (core.ChunkPointNd, bool) {
	var srcErr *SourceReadError
	if errors.As(err, &srcErr) {
		return srcErr.Coord, true
	}
	var emptyErr *EmptyMultisetError
	if errors.As(err, &emptyErr) {
		return emptyErr.Coord, emptyErr.Coord != nil
	}
	var sinkErr *SinkWriteError
	if errors.As(err, &sinkErr) {
		return sinkErr.Coord, true
	}
	return nil, false
}
