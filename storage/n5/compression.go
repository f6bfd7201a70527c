package n5

import (
	"bytes"
	"compress/bzip2"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Compression types recognized in dataset attributes.
const (
	CompressionRaw   = "raw"
	CompressionGzip  = "gzip"
	CompressionZstd  = "zstd"
	CompressionBzip2 = "bzip2"
	CompressionLz4   = "lz4"
	CompressionXz    = "xz"
	CompressionBlosc = "blosc"
)

const (
	defaultGzipLevel = -1
	defaultZstdLevel = 3
)

// Compression describes how block payloads of a dataset are compressed.
type Compression struct {
	Type    string
	Level   int
	UseZlib bool
}

// DefaultCompression returns the compression of the given type with default parameters.
func DefaultCompression(compressionType string) Compression {
	c := Compression{Type: compressionType}
	switch compressionType {
	case CompressionGzip:
		c.Level = defaultGzipLevel
	case CompressionZstd:
		c.Level = defaultZstdLevel
	}
	return c
}

// Supported returns nil if blocks of this compression can be read and written.
func (c Compression) Supported() error {
	switch c.Type {
	case CompressionRaw, CompressionGzip, CompressionZstd:
		return nil
	case CompressionBzip2:
		return errors.Wrapf(ErrUnsupportedCompression, "compression type %q is read-only", c.Type)
	}
	return errors.Wrapf(ErrUnsupportedCompression, "compression type %q", c.Type)
}

// Readable returns nil if blocks of this compression can be read.
func (c Compression) Readable() error {
	if c.Type == CompressionBzip2 {
		return nil
	}
	return c.Supported()
}

func (c Compression) String() string {
	switch c.Type {
	case CompressionGzip:
		if c.UseZlib {
			return "zlib"
		}
		return "gzip"
	}
	return c.Type
}

func (c Compression) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{"type": c.Type}
	switch c.Type {
	case CompressionGzip:
		m["level"] = c.Level
		m["useZlib"] = c.UseZlib
	case CompressionZstd:
		m["level"] = c.Level
	}
	return json.Marshal(m)
}

func (c *Compression) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type    string `json:"type"`
		Level   *int   `json:"level"`
		UseZlib bool   `json:"useZlib"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = DefaultCompression(raw.Type)
	if raw.Level != nil {
		c.Level = *raw.Level
	}
	c.UseZlib = raw.UseZlib
	return nil
}

// Decompress returns the uncompressed payload.
func (c Compression) Decompress(data []byte) ([]byte, error) {
	switch c.Type {
	case CompressionRaw:
		return data, nil
	case CompressionGzip:
		var r io.ReadCloser
		var err error
		if c.UseZlib {
			r, err = zlib.NewReader(bytes.NewReader(data))
		} else {
			r, err = gzip.NewReader(bytes.NewReader(data))
		}
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s stream", c)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrapf(err, "decompressing %s payload", c)
		}
		return out, nil
	case CompressionBzip2:
		out, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, errors.Wrap(err, "decompressing bzip2 payload")
		}
		return out, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, errors.Wrap(err, "decompressing zstd payload")
		}
		return out, nil
	}
	return nil, c.Supported()
}

// Compress returns the compressed payload.
func (c Compression) Compress(data []byte) ([]byte, error) {
	switch c.Type {
	case CompressionRaw:
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer
		var w io.WriteCloser
		var err error
		if c.UseZlib {
			w, err = zlib.NewWriterLevel(&buf, c.Level)
		} else {
			w, err = gzip.NewWriterLevel(&buf, c.Level)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "bad %s level %d", c, c.Level)
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.Level)))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
	}
	return nil, c.Supported()
}
