/*
Package n5 reads and writes chunked N-d datasets in the N5 container layout on top of
a gocloud.dev blob bucket.  A container holds a root attributes.json with the format
version, and each dataset is a key prefix with its own attributes.json and one object
per block keyed by the block's grid coordinate.
*/
package n5

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/blang/semver"
	"github.com/pkg/errors"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/janelia-flyem/lmtconvert/core"
)

const (
	attributesFile = "attributes.json"
	versionKey     = "n5"
)

var (
	// Version written into newly created containers.
	Version = semver.MustParse("2.5.1")

	// MaxMajorVersion is the newest container format major version that can be read.
	MaxMajorVersion uint64 = 4
)

var (
	ErrBlockNotFound          = errors.New("block not found")
	ErrDatasetNotFound        = errors.New("dataset not found")
	ErrUnsupportedCompression = errors.New("unsupported compression")
	ErrIncompatibleVersion    = errors.New("incompatible container version")
)

// Container is an N5 container rooted at a blob bucket.
type Container struct {
	bucket  *blob.Bucket
	version semver.Version
}

// Open returns a container for reading.  A container without root attributes is
// accepted and assumed to be of the current version.
func Open(ctx context.Context, bucket *blob.Bucket) (*Container, error) {
	c := &Container{bucket: bucket, version: Version}
	attrs, err := c.readJSON(ctx, attributesFile)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		return c, nil
	}
	if err := c.setVersion(attrs); err != nil {
		return nil, err
	}
	return c, nil
}

// Create returns a container for writing, initializing the root attributes with
// the current version if they are absent.
func Create(ctx context.Context, bucket *blob.Bucket) (*Container, error) {
	c := &Container{bucket: bucket, version: Version}
	attrs, err := c.readJSON(ctx, attributesFile)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		attrs = make(map[string]json.RawMessage)
	}
	if _, found := attrs[versionKey]; found {
		if err := c.setVersion(attrs); err != nil {
			return nil, err
		}
		return c, nil
	}
	verJSON, _ := json.Marshal(Version.String())
	attrs[versionKey] = verJSON
	if err := c.writeJSON(ctx, attributesFile, attrs); err != nil {
		return nil, err
	}
	core.Debugf("Initialized N5 container version %s\n", Version)
	return c, nil
}

func (c *Container) setVersion(attrs map[string]json.RawMessage) error {
	raw, found := attrs[versionKey]
	if !found {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return errors.Wrapf(err, "bad %q attribute in container root", versionKey)
	}
	ver, err := semver.Make(s)
	if err != nil {
		return errors.Wrapf(err, "bad container version %q", s)
	}
	if ver.Major > MaxMajorVersion {
		return errors.Wrapf(ErrIncompatibleVersion, "version %s, can read up to major version %d", ver, MaxMajorVersion)
	}
	c.version = ver
	return nil
}

// Version returns the container format version.
func (c *Container) Version() semver.Version {
	return c.version
}

// Close releases the underlying bucket.
func (c *Container) Close() error {
	return c.bucket.Close()
}

// GetDatasetAttributes reads and validates a dataset's attributes.
func (c *Container) GetDatasetAttributes(ctx context.Context, dataset string) (*DatasetAttributes, error) {
	key := datasetKey(dataset, attributesFile)
	data, err := c.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, errors.Wrapf(ErrDatasetNotFound, "dataset %q", dataset)
		}
		return nil, errors.Wrapf(err, "reading %q", key)
	}
	attrs, err := ParseDatasetAttributes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %q", dataset)
	}
	return attrs, nil
}

// CreateDataset writes the dataset attributes, merging with any existing
// attributes that are not describing the dataset layout.
func (c *Container) CreateDataset(ctx context.Context, dataset string, attrs *DatasetAttributes) error {
	key := datasetKey(dataset, attributesFile)
	existing, err := c.readJSON(ctx, key)
	if err != nil {
		return err
	}
	merged := &DatasetAttributes{
		Dimensions:      attrs.Dimensions,
		BlockSize:       attrs.BlockSize,
		DataType:        attrs.DataType,
		Compression:     attrs.Compression,
		IsLabelMultiset: attrs.IsLabelMultiset,
	}
	for k, v := range existing {
		if datasetKeys[k] {
			continue
		}
		if merged.Extra == nil {
			merged.Extra = make(map[string]json.RawMessage)
		}
		merged.Extra[k] = v
	}
	for k, v := range attrs.Extra {
		if merged.Extra == nil {
			merged.Extra = make(map[string]json.RawMessage)
		}
		merged.Extra[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if err := c.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return errors.Wrapf(err, "writing %q", key)
	}
	return nil
}

// BlockKey returns the object key of a block within a dataset.
func BlockKey(dataset string, coord core.ChunkPointNd) string {
	parts := make([]string, len(coord))
	for d, c := range coord {
		parts[d] = strconv.FormatInt(c, 10)
	}
	return datasetKey(dataset, strings.Join(parts, "/"))
}

// ReadBlock reads and decompresses a block.  Returns ErrBlockNotFound if the
// block was never written.
func (c *Container) ReadBlock(ctx context.Context, dataset string, attrs *DatasetAttributes, coord core.ChunkPointNd) (*Block, error) {
	key := BlockKey(dataset, coord)
	data, err := c.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, errors.Wrapf(ErrBlockNotFound, "block %s of dataset %q", coord, dataset)
		}
		return nil, errors.Wrapf(err, "reading %q", key)
	}
	return DecodeBlock(coord, data, attrs.Compression)
}

// WriteBlock compresses and writes a block as one object.
func (c *Container) WriteBlock(ctx context.Context, dataset string, attrs *DatasetAttributes, b *Block) error {
	if len(b.Coord) != len(attrs.Dimensions) {
		return fmt.Errorf("block %s dimensionality does not match dataset %q (%d-d)", b.Coord, dataset, len(attrs.Dimensions))
	}
	data, err := EncodeBlock(b, attrs.Compression)
	if err != nil {
		return err
	}
	key := BlockKey(dataset, b.Coord)
	if err := c.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return errors.Wrapf(err, "writing %q", key)
	}
	return nil
}

// returns nil map and nil error if the key does not exist.
func (c *Container) readJSON(ctx context.Context, key string) (map[string]json.RawMessage, error) {
	data, err := c.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %q", key)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "bad JSON in %q", key)
	}
	return m, nil
}

func (c *Container) writeJSON(ctx context.Context, key string, m map[string]json.RawMessage) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := c.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return errors.Wrapf(err, "writing %q", key)
	}
	return nil
}

func datasetKey(dataset, name string) string {
	dataset = strings.Trim(dataset, "/")
	if dataset == "" {
		return name
	}
	return dataset + "/" + name
}
