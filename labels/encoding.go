package labels

import (
	"encoding/binary"
	"strconv"

	"github.com/pkg/errors"

	"github.com/janelia-flyem/lmtconvert/core"
)

// ErrCorrupt is returned when serialized multiset data is malformed.
var ErrCorrupt = errors.New("corrupt label multiset data")

const (
	listHeaderBytes = 4
	entryBytes      = 12 // uint64 id + uint32 count
)

// Serialized layout of a multiset array:
//
//	int32  BE   number of stored argmax labels, either n voxels or 0
//	int64  BE   argmax label per voxel, if stored
//	int32  BE   n x byte offset of voxel's list within list data
//	list data:  repeated lists of
//	              int32 LE  number of entries
//	              entries:  int64 LE id, int32 LE count
//
// Voxels with identical multisets share one list.

// Decode deserializes a multiset array of the given size.  If no argmax labels are
// stored, they are computed from the decoded multisets.
func Decode(data []byte, size core.PointNd) (*Array, error) {
	n := size.Prod()
	if len(data) < 4 {
		return nil, errors.Wrapf(ErrCorrupt, "only %d bytes for header", len(data))
	}
	numArgMax := int64(int32(binary.BigEndian.Uint32(data[0:4])))
	if numArgMax != n && numArgMax != 0 {
		return nil, errors.Wrapf(ErrCorrupt, "encoded %d argmax labels but expected %d for size %s", numArgMax, n, size)
	}
	headerEnd := 4 + numArgMax*8 + n*4
	if int64(len(data)) < headerEnd {
		return nil, errors.Wrapf(ErrCorrupt, "%d bytes too short for %d voxel header", len(data), n)
	}
	a := &Array{
		size:   size.Duplicate(),
		argMax: make([]uint64, n),
		index:  make([]int32, n),
	}
	pos := int64(4)
	for i := int64(0); i < numArgMax; i++ {
		a.argMax[i] = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	}
	listData := data[headerEnd:]
	listIndex := make(map[int32]int32)
	for i := range a.index {
		offset := int32(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		idx, found := listIndex[offset]
		if !found {
			m, err := decodeList(listData, offset)
			if err != nil {
				return nil, errors.Wrapf(err, "voxel %d", i)
			}
			idx = int32(len(a.lists))
			a.lists = append(a.lists, m)
			listIndex[offset] = idx
		}
		a.index[i] = idx
	}
	if numArgMax == 0 {
		for i, idx := range a.index {
			a.argMax[i] = a.lists[idx].ArgMax()
		}
	}
	return a, nil
}

func decodeList(listData []byte, offset int32) (Multiset, error) {
	if offset < 0 || int64(offset)+listHeaderBytes > int64(len(listData)) {
		return nil, errors.Wrapf(ErrCorrupt, "list offset %d outside %d bytes of list data", offset, len(listData))
	}
	pos := int64(offset)
	numEntries := int64(int32(binary.LittleEndian.Uint32(listData[pos : pos+4])))
	pos += listHeaderBytes
	if numEntries < 0 || pos+numEntries*entryBytes > int64(len(listData)) {
		return nil, errors.Wrapf(ErrCorrupt, "list at offset %d claims %d entries beyond list data", offset, numEntries)
	}
	m := make(Multiset, numEntries)
	for i := range m {
		m[i].ID = binary.LittleEndian.Uint64(listData[pos : pos+8])
		m[i].Count = binary.LittleEndian.Uint32(listData[pos+8 : pos+12])
		pos += entryBytes
	}
	return m, nil
}

// Encode serializes the array, storing each distinct multiset once.
func Encode(a *Array) []byte {
	n := len(a.index)
	offsets := make([]int32, len(a.lists))
	byContent := make(map[string]int32, len(a.lists))
	var listData []byte
	for i, m := range a.lists {
		key := multisetKey(m)
		if off, found := byContent[key]; found {
			offsets[i] = off
			continue
		}
		off := int32(len(listData))
		byContent[key] = off
		offsets[i] = off
		listData = appendList(listData, m)
	}

	buf := make([]byte, 4+n*8+n*4, 4+n*8+n*4+len(listData))
	binary.BigEndian.PutUint32(buf[0:4], uint32(n))
	pos := 4
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint64(buf[pos:pos+8], a.argMax[i])
		pos += 8
	}
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(offsets[a.index[i]]))
		pos += 4
	}
	return append(buf, listData...)
}

func appendList(buf []byte, m Multiset) []byte {
	var tmp [entryBytes]byte
	binary.LittleEndian.PutUint32(tmp[0:4], uint32(len(m)))
	buf = append(buf, tmp[0:4]...)
	for _, e := range m {
		binary.LittleEndian.PutUint64(tmp[0:8], e.ID)
		binary.LittleEndian.PutUint32(tmp[8:12], e.Count)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func multisetKey(m Multiset) string {
	buf := make([]byte, 0, len(m)*16)
	for _, e := range m {
		buf = strconv.AppendUint(buf, e.ID, 16)
		buf = append(buf, ':')
		buf = strconv.AppendUint(buf, uint64(e.Count), 16)
		buf = append(buf, ',')
	}
	return string(buf)
}
