package core

import "strconv"

// Notes:
//   Voxel positions/sizes and block (chunk) coordinates use different types so the
//   distinct units aren't accidentally mixed.  Both are n-dimensional with axis 0
//   being the fastest varying axis in flat voxel order.

// PointNd is a slice of N 64-bit signed integers giving a voxel position or size.
type PointNd []int64

// Duplicate returns a copy of the point without any pointer references.
func (p PointNd) Duplicate() PointNd {
	nd := make(PointNd, len(p))
	copy(nd, p)
	return nd
}

// Add returns the addition of two points.
func (p PointNd) Add(p2 PointNd) PointNd {
	result := make(PointNd, len(p))
	for i := range p {
		result[i] = p[i] + p2[i]
	}
	return result
}

// Prod returns the product of the point elements, e.g., the number of voxels
// when the point is a size.
func (p PointNd) Prod() int64 {
	prod := int64(1)
	for _, val := range p {
		prod *= val
	}
	return prod
}

// Equals returns true if the two points have identical dimensionality and values.
func (p PointNd) Equals(p2 PointNd) bool {
	if len(p) != len(p2) {
		return false
	}
	for i := range p {
		if p[i] != p2[i] {
			return false
		}
	}
	return true
}

func (p PointNd) String() string {
	return formatNd(p)
}

// Chunk returns the chunk space coordinate of the chunk containing the point.
func (p PointNd) Chunk(size PointNd) ChunkPointNd {
	cp := make(ChunkPointNd, len(p))
	for i := range p {
		s := size[i]
		if p[i] < 0 {
			cp[i] = (p[i] - s + 1) / s
		} else {
			cp[i] = p[i] / s
		}
	}
	return cp
}

// PointInChunk returns a point in containing block (chunk) space for the given point.
func (p PointNd) PointInChunk(size PointNd) PointNd {
	cp := make(PointNd, len(p))
	for i := range p {
		s := size[i]
		if p[i] < 0 {
			cp[i] = s - ((p[i] + 1) % s) - 1
		} else {
			cp[i] = p[i] % s
		}
	}
	return cp
}

// ChunkPointNd handles N-dimensional signed chunk coordinates.
type ChunkPointNd []int64

func (c ChunkPointNd) String() string {
	return formatNd(c)
}

// Duplicate returns a copy of the chunk coordinate.
func (c ChunkPointNd) Duplicate() ChunkPointNd {
	nd := make(ChunkPointNd, len(c))
	copy(nd, c)
	return nd
}

// Equals returns true if the two chunk coordinates are identical.
func (c ChunkPointNd) Equals(c2 ChunkPointNd) bool {
	return PointNd(c).Equals(PointNd(c2))
}

// MinPoint returns the smallest voxel point in the given chunk.
func (c ChunkPointNd) MinPoint(size PointNd) PointNd {
	p := make(PointNd, len(c))
	for i := range c {
		p[i] = c[i] * size[i]
	}
	return p
}

// Key returns a string usable as a map or cache key, e.g., "3_0_12".
func (c ChunkPointNd) Key() string {
	buf := make([]byte, 0, 8*len(c))
	for i, val := range c {
		if i != 0 {
			buf = append(buf, '_')
		}
		buf = strconv.AppendInt(buf, val, 10)
	}
	return string(buf)
}

func formatNd(vals []int64) string {
	output := "("
	for i, val := range vals {
		if i != 0 {
			output += ","
		}
		output += strconv.FormatInt(val, 10)
	}
	output += ")"
	return output
}
