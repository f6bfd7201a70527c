package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/janelia-flyem/lmtconvert/cache"
	"github.com/janelia-flyem/lmtconvert/core"
	"github.com/janelia-flyem/lmtconvert/labels"
	"github.com/janelia-flyem/lmtconvert/storage/n5"
)

// ChunkLoader produces the decoded multiset chunk at a block coordinate.
type ChunkLoader interface {
	LoadChunk(ctx context.Context, coord core.ChunkPointNd) (*labels.Array, error)
}

// Source supplies multiset voxels for a region given by absolute voxel offset.
type Source interface {
	Region(ctx context.Context, offset, extent core.PointNd) (labels.Iterator, error)
}

// MultisetSource serves chunks from a loader through an optional cache.
type MultisetSource struct {
	loader ChunkLoader
	geom   core.Geometry
	cache  *cache.Cache
}

// NewMultisetSource returns a source over chunks of the given geometry.  If c is nil,
// every fetch goes to the loader.
func NewMultisetSource(loader ChunkLoader, geom core.Geometry, c *cache.Cache) *MultisetSource {
	return &MultisetSource{loader: loader, geom: geom, cache: c}
}

// Geometry returns the source geometry.
func (s *MultisetSource) Geometry() core.Geometry {
	return s.geom
}

// CacheStats returns the chunk cache statistics if a cache is used.
func (s *MultisetSource) CacheStats() (cache.Stats, bool) {
	if s.cache == nil {
		return cache.Stats{}, false
	}
	return s.cache.Stats(), true
}

// Fetch returns the complete chunk at the given block coordinate.
func (s *MultisetSource) Fetch(ctx context.Context, coord core.ChunkPointNd) (*labels.Array, error) {
	if !s.geom.ContainsBlock(coord) {
		return nil, &SourceReadError{Coord: coord, Err: fmt.Errorf("outside source grid %s", s.geom.GridSize())}
	}
	if s.cache == nil {
		return s.load(ctx, coord)
	}
	v, err := s.cache.GetOrLoad(coord.Key(), func() (interface{}, error) {
		return s.load(ctx, coord)
	})
	if err != nil {
		return nil, err
	}
	return v.(*labels.Array), nil
}

func (s *MultisetSource) load(ctx context.Context, coord core.ChunkPointNd) (*labels.Array, error) {
	a, err := s.loader.LoadChunk(ctx, coord)
	if err != nil {
		return nil, &SourceReadError{Coord: coord, Err: err}
	}
	extent := s.geom.BlockExtent(coord)
	if !a.Size().Equals(extent) {
		return nil, &SourceReadError{Coord: coord, Err: fmt.Errorf("chunk size %s, expected %s", a.Size(), extent)}
	}
	return a, nil
}

// Region returns an iterator over the multisets of an absolute voxel region in flat
// order.  All chunks covering the region are fetched before returning and are held
// by the iterator.
func (s *MultisetSource) Region(ctx context.Context, offset, extent core.PointNd) (labels.Iterator, error) {
	if len(offset) != s.geom.NumDims() || len(extent) != s.geom.NumDims() {
		return nil, fmt.Errorf("region offset %s, extent %s not %d-d", offset, extent, s.geom.NumDims())
	}
	blockSize := s.geom.BlockPoint()
	maxPt := make(core.PointNd, len(offset))
	for d := range offset {
		if offset[d] < 0 || extent[d] <= 0 || offset[d]+extent[d] > int64(s.geom.Dimensions[d]) {
			return nil, fmt.Errorf("region offset %s, extent %s outside source (%s)", offset, extent, s.geom)
		}
		maxPt[d] = offset[d] + extent[d] - 1
	}
	minChunk := offset.Chunk(blockSize)
	maxChunk := maxPt.Chunk(blockSize)

	// region coincides with one chunk
	if minChunk.Equals(maxChunk) && offset.Equals(s.geom.BlockOffset(minChunk)) && extent.Equals(s.geom.BlockExtent(minChunk)) {
		a, err := s.Fetch(ctx, minChunk)
		if err != nil {
			return nil, err
		}
		return a.Iterator(), nil
	}

	span := make(core.PointNd, len(offset))
	for d := range span {
		span[d] = maxChunk[d] - minChunk[d] + 1
	}
	chunks := make([]*labels.Array, span.Prod())
	walker := NewGridWalker(spanGeometry(span))
	for i := range chunks {
		rel, _, _ := walker.Next()
		coord := make(core.ChunkPointNd, len(rel))
		for d := range rel {
			coord[d] = minChunk[d] + rel[d]
		}
		a, err := s.Fetch(ctx, coord)
		if err != nil {
			return nil, err
		}
		chunks[i] = a
	}
	return &regionIterator{
		offset:    offset.Duplicate(),
		extent:    extent.Duplicate(),
		blockSize: blockSize,
		minChunk:  minChunk,
		span:      span,
		chunks:    chunks,
		pos:       make(core.PointNd, len(offset)),
	}, nil
}

// geometry whose grid is exactly the chunk span, used to walk it in flat order.
func spanGeometry(span core.PointNd) core.Geometry {
	g := core.Geometry{Dimensions: make([]uint64, len(span)), BlockSize: make([]uint32, len(span))}
	for d := range span {
		g.Dimensions[d] = uint64(span[d])
		g.BlockSize[d] = 1
	}
	return g
}

type regionIterator struct {
	offset    core.PointNd
	extent    core.PointNd
	blockSize core.PointNd
	minChunk  core.ChunkPointNd
	span      core.PointNd
	chunks    []*labels.Array

	pos     core.PointNd // relative to offset
	started bool
	done    bool
}

func (it *regionIterator) Next() bool {
	if it.done {
		return false
	}
	if !it.started {
		it.started = true
		return true
	}
	for d := range it.pos {
		it.pos[d]++
		if it.pos[d] < it.extent[d] {
			return true
		}
		it.pos[d] = 0
	}
	it.done = true
	return false
}

func (it *regionIterator) Multiset() labels.Multiset {
	abs := it.offset.Add(it.pos)
	chunk := abs.Chunk(it.blockSize)
	var chunkIdx, stride int64 = 0, 1
	for d := range chunk {
		chunkIdx += (chunk[d] - it.minChunk[d]) * stride
		stride *= it.span[d]
	}
	a := it.chunks[chunkIdx]
	return a.At(a.Index(abs.PointInChunk(it.blockSize)))
}

func (it *regionIterator) Reset() {
	for d := range it.pos {
		it.pos[d] = 0
	}
	it.started = false
	it.done = false
}

// MissingBlockPolicy determines how blocks absent from an N5 source are handled.
type MissingBlockPolicy int

const (
	// MissingAsInvalid materializes an absent block with every voxel labeled Invalid.
	MissingAsInvalid MissingBlockPolicy = iota

	// MissingAsError fails the read of an absent block.
	MissingAsError
)

// ParseMissingBlockPolicy parses "invalid" or "error".
func ParseMissingBlockPolicy(s string) (MissingBlockPolicy, error) {
	switch strings.ToLower(s) {
	case "", "invalid":
		return MissingAsInvalid, nil
	case "error":
		return MissingAsError, nil
	}
	return MissingAsInvalid, fmt.Errorf("unknown missing block policy %q, must be \"invalid\" or \"error\"", s)
}

func (p MissingBlockPolicy) String() string {
	if p == MissingAsError {
		return "error"
	}
	return "invalid"
}

// N5ChunkLoader loads label multiset chunks from an N5 dataset.
type N5ChunkLoader struct {
	container *n5.Container
	dataset   string
	attrs     *n5.DatasetAttributes
	missing   MissingBlockPolicy
}

// NewN5ChunkLoader reads the dataset attributes and checks that the dataset holds
// label multisets in a readable compression.
func NewN5ChunkLoader(ctx context.Context, container *n5.Container, dataset string, missing MissingBlockPolicy) (*N5ChunkLoader, error) {
	attrs, err := container.GetDatasetAttributes(ctx, dataset)
	if err != nil {
		return nil, err
	}
	if !attrs.IsLabelMultiset {
		return nil, fmt.Errorf("dataset %q is not a label multiset dataset", dataset)
	}
	if err := attrs.Compression.Readable(); err != nil {
		return nil, errors.Wrapf(err, "dataset %q", dataset)
	}
	return &N5ChunkLoader{
		container: container,
		dataset:   dataset,
		attrs:     attrs,
		missing:   missing,
	}, nil
}

// Attributes returns the source dataset attributes.
func (l *N5ChunkLoader) Attributes() *n5.DatasetAttributes {
	return l.attrs
}

func (l *N5ChunkLoader) LoadChunk(ctx context.Context, coord core.ChunkPointNd) (*labels.Array, error) {
	geom := l.attrs.Geometry()
	extent := geom.BlockExtent(coord)
	block, err := l.container.ReadBlock(ctx, l.dataset, l.attrs, coord)
	if err != nil {
		if errors.Is(err, n5.ErrBlockNotFound) && l.missing == MissingAsInvalid {
			core.Debugf("Source block %s absent, filling with invalid label\n", coord)
			return labels.NewUniformArray(extent, labels.Invalid), nil
		}
		return nil, err
	}
	if !block.SizePoint().Equals(extent) {
		return nil, fmt.Errorf("block header size %v, expected extent %s", block.Size, extent)
	}
	return labels.Decode(block.Data, extent)
}
