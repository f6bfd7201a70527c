package convert

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/janelia-flyem/lmtconvert/core"
	"github.com/janelia-flyem/lmtconvert/storage/n5"
)

// Sink receives the dense label blocks.
type Sink interface {
	// CreateDataset prepares an output of the given geometry.
	CreateDataset(ctx context.Context, geom core.Geometry) error

	// WriteBlock stores one block's labels in flat order, axis 0 fastest.
	WriteBlock(ctx context.Context, coord core.ChunkPointNd, extent core.PointNd, data []uint64) error
}

// ErrOutputNotLabels is returned when an existing output dataset holds something
// other than uint64 labels, e.g., the label multiset source itself.
var ErrOutputNotLabels = errors.New("existing output dataset does not hold uint64 labels")

// N5Sink writes uint64 label blocks into an N5 dataset.
type N5Sink struct {
	container   *n5.Container
	dataset     string
	compression n5.Compression

	attrs *n5.DatasetAttributes
}

// NewN5Sink returns a sink writing blocks with the given compression.
func NewN5Sink(container *n5.Container, dataset string, compression n5.Compression) *N5Sink {
	return &N5Sink{
		container:   container,
		dataset:     dataset,
		compression: compression,
	}
}

// CreateDataset writes the output attributes.  An existing dataset must be a plain
// uint64 dataset of the same geometry, and the attributes read back must match what
// was requested.
func (s *N5Sink) CreateDataset(ctx context.Context, geom core.Geometry) error {
	if err := s.compression.Supported(); err != nil {
		return err
	}
	existing, err := s.container.GetDatasetAttributes(ctx, s.dataset)
	switch {
	case err == nil:
		if existing.IsLabelMultiset || existing.DataType != n5.Uint64 {
			return errors.Wrapf(ErrOutputNotLabels, "dataset %q has type %s (label multiset %t)",
				s.dataset, existing.DataType, existing.IsLabelMultiset)
		}
		if actual := existing.Geometry(); !actual.Equal(geom) {
			return &GeometryMismatchError{Expected: geom, Actual: &actual}
		}
		core.Warningf("Overwriting existing output dataset %q\n", s.dataset)
	case !errors.Is(err, n5.ErrDatasetNotFound):
		return err
	}

	attrs := n5.NewDatasetAttributes(geom, n5.Uint64, s.compression)
	if err := s.container.CreateDataset(ctx, s.dataset, attrs); err != nil {
		return err
	}
	written, err := s.container.GetDatasetAttributes(ctx, s.dataset)
	if err != nil {
		return err
	}
	if actual := written.Geometry(); !actual.Equal(geom) {
		return &GeometryMismatchError{Expected: geom, Actual: &actual}
	}
	s.attrs = written
	return nil
}

func (s *N5Sink) WriteBlock(ctx context.Context, coord core.ChunkPointNd, extent core.PointNd, data []uint64) error {
	if s.attrs == nil {
		return fmt.Errorf("output dataset %q not created", s.dataset)
	}
	b, err := n5.NewUint64Block(coord, extent, data)
	if err != nil {
		return err
	}
	return s.container.WriteBlock(ctx, s.dataset, s.attrs, b)
}
