/*
Package labels supports label multiset volumes, where each voxel holds a sparse set of
candidate labels with occurrence counts, typically produced by downsampling a label
volume.  Decoded chunks are held as an Array that shares identical multisets between
voxels, mirroring the serialized layout.
*/
package labels

import (
	"fmt"

	"github.com/janelia-flyem/lmtconvert/core"
)

// Reserved label ids.
const (
	Background  uint64 = 0
	Transparent uint64 = 0xffffffffffffffff
	Invalid     uint64 = 0xfffffffffffffffe
	Outside     uint64 = 0xfffffffffffffffd
	MaxID       uint64 = 0xfffffffffffffffc
)

// Entry is one label of a multiset along with the number of times it occurs.
type Entry struct {
	ID    uint64
	Count uint32
}

// Multiset is the set of labels for one voxel in the order the source stored them.
type Multiset []Entry

// First returns the first entry id in stored order.
func (m Multiset) First() (uint64, bool) {
	if len(m) == 0 {
		return 0, false
	}
	return m[0].ID, true
}

// ArgMax returns the id with the highest count, choosing the lowest id on ties.
// Returns Invalid for an empty multiset.
func (m Multiset) ArgMax() uint64 {
	if len(m) == 0 {
		return Invalid
	}
	best := m[0]
	for _, e := range m[1:] {
		if e.Count > best.Count || (e.Count == best.Count && e.ID < best.ID) {
			best = e
		}
	}
	return best.ID
}

func (m Multiset) String() string {
	s := "["
	for i, e := range m {
		if i != 0 {
			s += ","
		}
		s += fmt.Sprintf("(%d,%d)", e.ID, e.Count)
	}
	return s + "]"
}

// Array is a decoded chunk of multiset voxels.  Voxels are in flat order with
// axis 0 varying fastest.  Distinct multisets are stored once in lists and
// each voxel holds an index into lists.
type Array struct {
	size   core.PointNd
	argMax []uint64
	index  []int32
	lists  []Multiset
}

// NewArray returns an Array of the given size where voxel i holds multisets[i].
// Identical multisets are not deduplicated.
func NewArray(size core.PointNd, multisets []Multiset) (*Array, error) {
	n := size.Prod()
	if int64(len(multisets)) != n {
		return nil, fmt.Errorf("array of size %s needs %d multisets, got %d", size, n, len(multisets))
	}
	a := &Array{
		size:   size.Duplicate(),
		argMax: make([]uint64, n),
		index:  make([]int32, n),
		lists:  make([]Multiset, len(multisets)),
	}
	for i, m := range multisets {
		a.lists[i] = m
		a.index[i] = int32(i)
		a.argMax[i] = m.ArgMax()
	}
	return a, nil
}

// NewUniformArray returns an Array of the given size where every voxel holds the
// single entry (label, 1).  This is used to materialize chunks absent from a source.
func NewUniformArray(size core.PointNd, label uint64) *Array {
	n := size.Prod()
	a := &Array{
		size:   size.Duplicate(),
		argMax: make([]uint64, n),
		index:  make([]int32, n),
		lists:  []Multiset{{{ID: label, Count: 1}}},
	}
	for i := range a.argMax {
		a.argMax[i] = label
	}
	return a
}

// Size returns the extent of the array.
func (a *Array) Size() core.PointNd {
	return a.size
}

// NumElements returns the number of voxels in the array.
func (a *Array) NumElements() int {
	return len(a.index)
}

// NumLists returns the number of distinct stored multisets.
func (a *Array) NumLists() int {
	return len(a.lists)
}

// At returns the multiset at flat voxel index i.
func (a *Array) At(i int) Multiset {
	return a.lists[a.index[i]]
}

// Index returns the flat index of a voxel position relative to the array origin.
func (a *Array) Index(pt core.PointNd) int {
	var idx, stride int64 = 0, 1
	for d := range a.size {
		idx += pt[d] * stride
		stride *= a.size[d]
	}
	return int(idx)
}

// Iterator returns an iterator over all voxels of the array in flat order.
func (a *Array) Iterator() Iterator {
	return &arrayIterator{a: a, i: -1}
}

// Iterator is a lazy, finite, restartable sequence of multiset voxels in flat order.
//
//	it := array.Iterator()
//	for it.Next() {
//	    m := it.Multiset()
//	}
type Iterator interface {
	// Next advances to the next voxel, returning false when the sequence is exhausted.
	Next() bool

	// Multiset returns the multiset of the current voxel.
	Multiset() Multiset

	// Reset restarts the sequence from the first voxel.
	Reset()
}

type arrayIterator struct {
	a *Array
	i int
}

func (it *arrayIterator) Next() bool {
	if it.i+1 >= len(it.a.index) {
		it.i = len(it.a.index)
		return false
	}
	it.i++
	return true
}

func (it *arrayIterator) Multiset() Multiset {
	return it.a.At(it.i)
}

func (it *arrayIterator) Reset() {
	it.i = -1
}
