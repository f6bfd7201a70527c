package convert

import (
	"fmt"

	"github.com/janelia-flyem/lmtconvert/labels"
)

// Reduce collapses numElements multiset voxels into scalar labels, taking the first
// entry of each multiset in stored order.
func Reduce(it labels.Iterator, numElements int) ([]uint64, error) {
	out := make([]uint64, numElements)
	for i := range out {
		if !it.Next() {
			return nil, fmt.Errorf("multiset iterator exhausted after %d of %d voxels", i, numElements)
		}
		id, ok := it.Multiset().First()
		if !ok {
			return nil, &EmptyMultisetError{Index: i}
		}
		out[i] = id
	}
	return out, nil
}
