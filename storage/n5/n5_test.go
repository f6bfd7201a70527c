package n5

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"gocloud.dev/blob/memblob"

	"github.com/janelia-flyem/lmtconvert/core"
)

func TestContainerVersion(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	c, err := Create(ctx, bucket)
	if err != nil {
		t.Fatalf("unable to create container: %v\n", err)
	}
	if !c.Version().Equals(Version) {
		t.Errorf("expected version %s, got %s\n", Version, c.Version())
	}
	data, err := bucket.ReadAll(ctx, "attributes.json")
	if err != nil {
		t.Fatalf("root attributes not written: %v\n", err)
	}
	if !bytes.Contains(data, []byte(`"n5":"2.5.1"`)) {
		t.Errorf("unexpected root attributes: %s\n", data)
	}

	if err := bucket.WriteAll(ctx, "attributes.json", []byte(`{"n5":"3.1.0","owner":"x"}`), nil); err != nil {
		t.Fatalf("bad write: %v\n", err)
	}
	c, err = Open(ctx, bucket)
	if err != nil {
		t.Fatalf("unable to open version 3 container: %v\n", err)
	}
	if c.Version().Major != 3 {
		t.Errorf("expected major version 3, got %s\n", c.Version())
	}

	if err := bucket.WriteAll(ctx, "attributes.json", []byte(`{"n5":"5.0.0"}`), nil); err != nil {
		t.Fatalf("bad write: %v\n", err)
	}
	if _, err = Open(ctx, bucket); !errors.Is(err, ErrIncompatibleVersion) {
		t.Errorf("expected incompatible version error, got %v\n", err)
	}
}

func TestOpenWithoutRootAttributes(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	c, err := Open(context.Background(), bucket)
	if err != nil {
		t.Fatalf("container without root attributes should open: %v\n", err)
	}
	if !c.Version().Equals(Version) {
		t.Errorf("expected default version, got %s\n", c.Version())
	}
}

func TestDatasetAttributes(t *testing.T) {
	tests := []struct {
		json        string
		valid       bool
		compression Compression
		multiset    bool
	}{
		{`{"dimensions":[10,10],"blockSize":[4,4],"dataType":"uint64","compression":{"type":"raw"}}`,
			true, Compression{Type: "raw"}, false},
		{`{"dimensions":[10,10],"blockSize":[4,4],"dataType":"uint8","compression":{"type":"gzip"}}`,
			true, Compression{Type: "gzip", Level: -1}, false},
		{`{"dimensions":[10],"blockSize":[4],"dataType":"uint8","compression":{"type":"gzip","level":6,"useZlib":true}}`,
			true, Compression{Type: "gzip", Level: 6, UseZlib: true}, false},
		{`{"dimensions":[100,200,300],"blockSize":[64,64,64],"dataType":"uint8","compressionType":"gzip","isLabelMultiset":true}`,
			true, Compression{Type: "gzip", Level: -1}, true},
		{`{"dimensions":[10],"blockSize":[4],"dataType":"uint8"}`,
			true, Compression{Type: "raw"}, false},
		{`{"dimensions":[10],"blockSize":[4],"dataType":"uint8","compression":{"type":"zstd"}}`,
			true, Compression{Type: "zstd", Level: 3}, false},
		{`{"dimensions":[10,10],"blockSize":[4],"dataType":"uint64"}`, false, Compression{}, false},
		{`{"dimensions":[10,0],"blockSize":[4,4],"dataType":"uint64"}`, false, Compression{}, false},
		{`{"dimensions":[10,10],"blockSize":[4,4],"dataType":"complex"}`, false, Compression{}, false},
		{`{"dimensions":[10,10],"dataType":"uint64"}`, false, Compression{}, false},
		{`{"dimensions":[10,10],"blockSize":[4,4],"dataType":"uint64","compression":{"level":3}}`, false, Compression{}, false},
		{`not json`, false, Compression{}, false},
	}
	for i, tc := range tests {
		attrs, err := ParseDatasetAttributes([]byte(tc.json))
		if !tc.valid {
			if err == nil {
				t.Errorf("test %d: expected error parsing %s\n", i, tc.json)
			}
			continue
		}
		if err != nil {
			t.Errorf("test %d: unexpected error: %v\n", i, err)
			continue
		}
		if attrs.Compression != tc.compression {
			t.Errorf("test %d: expected compression %+v, got %+v\n", i, tc.compression, attrs.Compression)
		}
		if attrs.IsLabelMultiset != tc.multiset {
			t.Errorf("test %d: expected isLabelMultiset %t\n", i, tc.multiset)
		}
	}
}

func TestDatasetRoundTrip(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	c, err := Create(ctx, bucket)
	if err != nil {
		t.Fatalf("unable to create container: %v\n", err)
	}

	if _, err := c.GetDatasetAttributes(ctx, "volumes/labels"); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("expected ErrDatasetNotFound, got %v\n", err)
	}

	// pre-existing user attributes survive dataset creation.
	if err := bucket.WriteAll(ctx, "volumes/labels/attributes.json", []byte(`{"resolution":[4,4,40]}`), nil); err != nil {
		t.Fatalf("bad write: %v\n", err)
	}
	geom := core.Geometry{Dimensions: []uint64{100, 200, 30}, BlockSize: []uint32{64, 64, 8}}
	attrs := NewDatasetAttributes(geom, Uint64, DefaultCompression(CompressionGzip))
	if err := c.CreateDataset(ctx, "volumes/labels", attrs); err != nil {
		t.Fatalf("unable to create dataset: %v\n", err)
	}
	if _, err := c.GetDatasetAttributes(ctx, "/volumes/labels/"); err != nil {
		t.Errorf("expected dataset to exist under a slashed name: %v\n", err)
	}
	got, err := c.GetDatasetAttributes(ctx, "volumes/labels")
	if err != nil {
		t.Fatalf("unable to read dataset attributes: %v\n", err)
	}
	if !got.Geometry().Equal(geom) {
		t.Errorf("expected geometry %s, got %s\n", geom, got.Geometry())
	}
	if got.DataType != Uint64 || got.Compression != attrs.Compression {
		t.Errorf("bad attributes read back: %+v\n", got)
	}
	var resolution []int
	if err := json.Unmarshal(got.Extra["resolution"], &resolution); err != nil || len(resolution) != 3 {
		t.Errorf("expected resolution attribute to be preserved, got %s\n", got.Extra["resolution"])
	}
}

func TestBlockReadWrite(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	c, err := Create(ctx, bucket)
	if err != nil {
		t.Fatalf("unable to create container: %v\n", err)
	}
	geom := core.Geometry{Dimensions: []uint64{10, 10}, BlockSize: []uint32{4, 4}}

	for _, compression := range []Compression{
		DefaultCompression(CompressionRaw),
		DefaultCompression(CompressionGzip),
		{Type: CompressionGzip, Level: 9, UseZlib: true},
		DefaultCompression(CompressionZstd),
	} {
		attrs := NewDatasetAttributes(geom, Uint64, compression)
		if err := c.CreateDataset(ctx, "out", attrs); err != nil {
			t.Fatalf("unable to create dataset: %v\n", err)
		}
		coord := core.ChunkPointNd{2, 1}
		extent := geom.BlockExtent(coord)
		values := make([]uint64, extent.Prod())
		for i := range values {
			values[i] = uint64(i) * 0x0101010101
		}
		b, err := NewUint64Block(coord, extent, values)
		if err != nil {
			t.Fatalf("unable to make block: %v\n", err)
		}
		if err := c.WriteBlock(ctx, "out", attrs, b); err != nil {
			t.Fatalf("%s: unable to write block: %v\n", compression, err)
		}
		if exists, _ := bucket.Exists(ctx, "out/2/1"); !exists {
			t.Errorf("%s: expected block at key out/2/1\n", compression)
		}
		got, err := c.ReadBlock(ctx, "out", attrs, coord)
		if err != nil {
			t.Fatalf("%s: unable to read block: %v\n", compression, err)
		}
		if !got.SizePoint().Equals(extent) || got.Mode != DefaultMode {
			t.Errorf("%s: bad block header: size %v, mode %d\n", compression, got.Size, got.Mode)
		}
		gotValues, err := got.Uint64s()
		if err != nil {
			t.Fatalf("%s: bad payload: %v\n", compression, err)
		}
		for i := range values {
			if gotValues[i] != values[i] {
				t.Fatalf("%s: value %d: expected %d, got %d\n", compression, i, values[i], gotValues[i])
			}
		}
		if _, err := c.ReadBlock(ctx, "out", attrs, core.ChunkPointNd{0, 0}); !errors.Is(err, ErrBlockNotFound) {
			t.Errorf("%s: expected ErrBlockNotFound, got %v\n", compression, err)
		}
	}
}

func TestBlockHeader(t *testing.T) {
	b := &Block{
		Coord:       core.ChunkPointNd{0, 3, 1},
		Size:        []uint32{4, 5, 6},
		Mode:        VarLengthMode,
		NumElements: 3,
		Data:        []byte{9, 8, 7},
	}
	data, err := EncodeBlock(b, DefaultCompression(CompressionRaw))
	if err != nil {
		t.Fatalf("unable to encode block: %v\n", err)
	}
	expected := []byte{
		0, 1, 0, 3,
		0, 0, 0, 4, 0, 0, 0, 5, 0, 0, 0, 6,
		0, 0, 0, 3,
		9, 8, 7,
	}
	if !bytes.Equal(data, expected) {
		t.Fatalf("expected serialized block %v, got %v\n", expected, data)
	}
	got, err := DecodeBlock(b.Coord, data, DefaultCompression(CompressionRaw))
	if err != nil {
		t.Fatalf("unable to decode block: %v\n", err)
	}
	if got.Mode != VarLengthMode || got.NumElements != 3 || !bytes.Equal(got.Data, b.Data) {
		t.Errorf("bad decoded block: %+v\n", got)
	}
	if _, err := DecodeBlock(b.Coord, data[:10], DefaultCompression(CompressionRaw)); err == nil {
		t.Errorf("expected error decoding truncated header\n")
	}
	if _, err := DecodeBlock(b.Coord, []byte{0, 7, 0, 0}, DefaultCompression(CompressionRaw)); err == nil {
		t.Errorf("expected error decoding unknown block mode\n")
	}
}

func TestUnsupportedCompression(t *testing.T) {
	for _, ct := range []string{CompressionLz4, CompressionXz, CompressionBlosc} {
		c := DefaultCompression(ct)
		if err := c.Readable(); !errors.Is(err, ErrUnsupportedCompression) {
			t.Errorf("%s: expected ErrUnsupportedCompression, got %v\n", ct, err)
		}
		if _, err := c.Decompress([]byte{1}); !errors.Is(err, ErrUnsupportedCompression) {
			t.Errorf("%s: expected decompress to fail with ErrUnsupportedCompression, got %v\n", ct, err)
		}
	}
}

// bzip2 stream of the big-endian uint64 values 1, 2, 3, 4.
var bzip2Payload = []byte{
	0x42, 0x5a, 0x68, 0x39, 0x31, 0x41, 0x59, 0x26, 0x53, 0x59, 0x56, 0x44, 0xf3, 0x56, 0x00, 0x00,
	0x00, 0x40, 0x00, 0x7c, 0x00, 0x20, 0x00, 0x30, 0xcd, 0x00, 0x91, 0x1e, 0x8f, 0x7a, 0x84, 0xb2,
	0x85, 0xc2, 0xee, 0x48, 0xa7, 0x0a, 0x12, 0x0a, 0xc8, 0x9e, 0x6a, 0xc0,
}

func TestBzip2ReadOnly(t *testing.T) {
	c := DefaultCompression(CompressionBzip2)
	if err := c.Readable(); err != nil {
		t.Fatalf("bzip2 should be readable: %v\n", err)
	}
	if err := c.Supported(); !errors.Is(err, ErrUnsupportedCompression) {
		t.Errorf("bzip2 should not be writable, got %v\n", err)
	}
	if _, err := c.Compress([]byte{1, 2, 3}); !errors.Is(err, ErrUnsupportedCompression) {
		t.Errorf("expected bzip2 compress to fail with ErrUnsupportedCompression, got %v\n", err)
	}

	data := append([]byte{0, 0, 0, 2, 0, 0, 0, 2, 0, 0, 0, 2}, bzip2Payload...)
	b, err := DecodeBlock(core.ChunkPointNd{1, 0}, data, c)
	if err != nil {
		t.Fatalf("unable to decode bzip2 block: %v\n", err)
	}
	values, err := b.Uint64s()
	if err != nil {
		t.Fatalf("bad uint64 payload: %v\n", err)
	}
	if len(values) != 4 || values[0] != 1 || values[1] != 2 || values[2] != 3 || values[3] != 4 {
		t.Errorf("expected values [1 2 3 4], got %v\n", values)
	}
	if _, err := c.Decompress([]byte("not bzip2")); err == nil {
		t.Errorf("expected error decompressing bad bzip2 stream\n")
	}
}
