package core

import (
	"fmt"
	"math"
)

// Geometry describes the shape of a chunked dataset: its total extent in voxels
// and the nominal size of each block along every dimension.
type Geometry struct {
	Dimensions []uint64
	BlockSize  []uint32
}

// NumDims returns the dimensionality of the dataset.
func (g Geometry) NumDims() int {
	return len(g.Dimensions)
}

// Validate checks that dimensions and block size agree in length and are all positive.
func (g Geometry) Validate() error {
	if len(g.Dimensions) == 0 {
		return fmt.Errorf("geometry has no dimensions")
	}
	if len(g.Dimensions) != len(g.BlockSize) {
		return fmt.Errorf("geometry has %d dimensions but %d block size components",
			len(g.Dimensions), len(g.BlockSize))
	}
	for d := range g.Dimensions {
		if g.Dimensions[d] == 0 {
			return fmt.Errorf("dimension %d has zero size", d)
		}
		if g.Dimensions[d] > math.MaxInt64 {
			return fmt.Errorf("dimension %d size %d exceeds signed 64-bit range", d, g.Dimensions[d])
		}
		if g.BlockSize[d] == 0 {
			return fmt.Errorf("block size along dimension %d is zero", d)
		}
	}
	return nil
}

// Equal returns true if both geometries have identical dimensions and block sizes.
func (g Geometry) Equal(g2 Geometry) bool {
	if len(g.Dimensions) != len(g2.Dimensions) || len(g.BlockSize) != len(g2.BlockSize) {
		return false
	}
	for d := range g.Dimensions {
		if g.Dimensions[d] != g2.Dimensions[d] {
			return false
		}
	}
	for d := range g.BlockSize {
		if g.BlockSize[d] != g2.BlockSize[d] {
			return false
		}
	}
	return true
}

// Size returns the dataset dimensions as a point.
func (g Geometry) Size() PointNd {
	p := make(PointNd, len(g.Dimensions))
	for d, v := range g.Dimensions {
		p[d] = int64(v)
	}
	return p
}

// BlockPoint returns the nominal block size as a point.
func (g Geometry) BlockPoint() PointNd {
	p := make(PointNd, len(g.BlockSize))
	for d, v := range g.BlockSize {
		p[d] = int64(v)
	}
	return p
}

// GridSize returns the number of blocks along each dimension, i.e.,
// ceil(dimensions[d] / blockSize[d]).
func (g Geometry) GridSize() PointNd {
	p := make(PointNd, len(g.Dimensions))
	for d := range g.Dimensions {
		bs := uint64(g.BlockSize[d])
		p[d] = int64((g.Dimensions[d] + bs - 1) / bs)
	}
	return p
}

// NumBlocks returns the number of n-d blocks necessary to cover the dataset.
func (g Geometry) NumBlocks() int64 {
	return g.GridSize().Prod()
}

// NumVoxels returns the number of voxels within the dataset.
func (g Geometry) NumVoxels() int64 {
	return g.Size().Prod()
}

// BlockOffset returns the voxel offset of the first voxel of the given block.
func (g Geometry) BlockOffset(c ChunkPointNd) PointNd {
	return c.MinPoint(g.BlockPoint())
}

// BlockExtent returns the actual size of the block at the given coordinate, which is
// truncated for blocks abutting the upper boundary of the dataset.
func (g Geometry) BlockExtent(c ChunkPointNd) PointNd {
	extent := make(PointNd, len(c))
	for d := range c {
		bs := int64(g.BlockSize[d])
		remain := int64(g.Dimensions[d]) - c[d]*bs
		if remain < bs {
			extent[d] = remain
		} else {
			extent[d] = bs
		}
	}
	return extent
}

// ContainsBlock returns true if the block coordinate lies within the grid.
func (g Geometry) ContainsBlock(c ChunkPointNd) bool {
	if len(c) != len(g.Dimensions) {
		return false
	}
	grid := g.GridSize()
	for d := range c {
		if c[d] < 0 || c[d] >= grid[d] {
			return false
		}
	}
	return true
}

func (g Geometry) String() string {
	return fmt.Sprintf("dimensions %v, block size %v", g.Dimensions, g.BlockSize)
}
