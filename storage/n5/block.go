package n5

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/janelia-flyem/lmtconvert/core"
)

// BlockMode is the first field of a serialized block header.
type BlockMode uint16

const (
	// DefaultMode blocks hold product(size) elements of the dataset type.
	DefaultMode BlockMode = 0

	// VarLengthMode blocks carry an explicit element count, e.g., serialized
	// label multisets where the count is the payload length in bytes.
	VarLengthMode BlockMode = 1
)

// Block is one decoded chunk of a dataset with its uncompressed payload.
type Block struct {
	Coord core.ChunkPointNd
	Size  []uint32

	// NumElements is only serialized for VarLengthMode blocks.
	Mode        BlockMode
	NumElements uint32

	Data []byte
}

// SizePoint returns the block size as a point.
func (b *Block) SizePoint() core.PointNd {
	p := make(core.PointNd, len(b.Size))
	for d, v := range b.Size {
		p[d] = int64(v)
	}
	return p
}

// NewUint64Block returns a default mode block holding big-endian uint64 values.
func NewUint64Block(coord core.ChunkPointNd, extent core.PointNd, values []uint64) (*Block, error) {
	if int64(len(values)) != extent.Prod() {
		return nil, fmt.Errorf("block %s of extent %s needs %d values, got %d",
			coord, extent, extent.Prod(), len(values))
	}
	b := &Block{
		Coord: coord.Duplicate(),
		Size:  make([]uint32, len(extent)),
		Mode:  DefaultMode,
		Data:  make([]byte, len(values)*8),
	}
	for d, v := range extent {
		b.Size[d] = uint32(v)
	}
	for i, v := range values {
		binary.BigEndian.PutUint64(b.Data[i*8:i*8+8], v)
	}
	return b, nil
}

// Uint64s interprets the payload as big-endian uint64 values.
func (b *Block) Uint64s() ([]uint64, error) {
	if len(b.Data)%8 != 0 {
		return nil, fmt.Errorf("block %s payload of %d bytes is not a whole number of uint64", b.Coord, len(b.Data))
	}
	values := make([]uint64, len(b.Data)/8)
	for i := range values {
		values[i] = binary.BigEndian.Uint64(b.Data[i*8 : i*8+8])
	}
	return values, nil
}

// EncodeBlock serializes the block header followed by the compressed payload.
func EncodeBlock(b *Block, c Compression) ([]byte, error) {
	payload, err := c.Compress(b.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "compressing block %s", b.Coord)
	}
	headerLen := 4 + 4*len(b.Size)
	if b.Mode == VarLengthMode {
		headerLen += 4
	}
	buf := make([]byte, headerLen, headerLen+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(b.Mode))
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(b.Size)))
	pos := 4
	for _, s := range b.Size {
		binary.BigEndian.PutUint32(buf[pos:pos+4], s)
		pos += 4
	}
	if b.Mode == VarLengthMode {
		binary.BigEndian.PutUint32(buf[pos:pos+4], b.NumElements)
	}
	return append(buf, payload...), nil
}

// DecodeBlock parses a serialized block and decompresses its payload.
func DecodeBlock(coord core.ChunkPointNd, data []byte, c Compression) (*Block, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("block %s has truncated header (%d bytes)", coord, len(data))
	}
	b := &Block{
		Coord: coord.Duplicate(),
		Mode:  BlockMode(binary.BigEndian.Uint16(data[0:2])),
	}
	if b.Mode != DefaultMode && b.Mode != VarLengthMode {
		return nil, fmt.Errorf("block %s has unknown mode %d", coord, b.Mode)
	}
	nDims := int(binary.BigEndian.Uint16(data[2:4]))
	pos := 4
	need := pos + 4*nDims
	if b.Mode == VarLengthMode {
		need += 4
	}
	if len(data) < need {
		return nil, fmt.Errorf("block %s has truncated header for %d dimensions", coord, nDims)
	}
	b.Size = make([]uint32, nDims)
	for d := range b.Size {
		b.Size[d] = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}
	if b.Mode == VarLengthMode {
		b.NumElements = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}
	var err error
	if b.Data, err = c.Decompress(data[pos:]); err != nil {
		return nil, errors.Wrapf(err, "block %s", coord)
	}
	return b, nil
}
