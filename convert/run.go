package convert

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/janelia-flyem/lmtconvert/cache"
	"github.com/janelia-flyem/lmtconvert/core"
	"github.com/janelia-flyem/lmtconvert/storage"
	"github.com/janelia-flyem/lmtconvert/storage/n5"
)

// Options describe a conversion of one N5 label multiset dataset into a uint64
// label dataset.
type Options struct {
	InputRef      string
	InputDataset  string
	OutputRef     string
	OutputDataset string // defaults to InputDataset

	Workers          int
	ProgressInterval int64
	Missing          MissingBlockPolicy

	// Compression of the output blocks, e.g., "gzip" or "zstd".  Empty uses the
	// source compression.
	Compression string

	Cache cache.Config
}

// ParseCompression returns output compression settings for a name: raw, gzip,
// zlib or zstd.
func ParseCompression(name string) (n5.Compression, error) {
	switch strings.ToLower(name) {
	case "zlib":
		c := n5.DefaultCompression(n5.CompressionGzip)
		c.UseZlib = true
		return c, nil
	case n5.CompressionRaw, n5.CompressionGzip, n5.CompressionZstd:
		return n5.DefaultCompression(strings.ToLower(name)), nil
	}
	return n5.Compression{}, fmt.Errorf("unsupported output compression %q, must be raw, gzip, zlib or zstd", name)
}

// Run opens the input and output containers and transcodes the dataset.
func Run(ctx context.Context, opts Options) error {
	if opts.InputRef == "" || opts.InputDataset == "" || opts.OutputRef == "" {
		return fmt.Errorf("input container, input dataset and output container must be given")
	}
	outDataset := opts.OutputDataset
	if outDataset == "" {
		outDataset = opts.InputDataset
	}
	if sameRef(opts.InputRef, opts.OutputRef) && path.Clean("/"+opts.InputDataset) == path.Clean("/"+outDataset) {
		return fmt.Errorf("output dataset %q would overwrite the input dataset", outDataset)
	}

	inBucket, err := storage.OpenBucket(ctx, opts.InputRef, false)
	if err != nil {
		return err
	}
	input, err := n5.Open(ctx, inBucket)
	if err != nil {
		inBucket.Close()
		return err
	}
	defer input.Close()

	loader, err := NewN5ChunkLoader(ctx, input, opts.InputDataset, opts.Missing)
	if err != nil {
		return err
	}
	srcAttrs := loader.Attributes()
	geom := srcAttrs.Geometry()

	compression := srcAttrs.Compression
	if opts.Compression != "" {
		if compression, err = ParseCompression(opts.Compression); err != nil {
			return err
		}
	} else if err := compression.Supported(); err != nil {
		return errors.Wrapf(err, "source compression cannot be written, an output compression must be given")
	}

	outBucket, err := storage.OpenBucket(ctx, opts.OutputRef, true)
	if err != nil {
		return err
	}
	output, err := n5.Create(ctx, outBucket)
	if err != nil {
		outBucket.Close()
		return err
	}
	defer output.Close()

	core.Infof("Converting %s:%s -> %s:%s (%s compression, missing blocks %s, cache %s)\n",
		opts.InputRef, opts.InputDataset, opts.OutputRef, outDataset, compression,
		opts.Missing, humanize.Bytes(opts.Cache.MaxBytes))

	source := NewMultisetSource(loader, geom, cache.New(opts.Cache))
	t := &Transcoder{
		Source:           source,
		Sink:             NewN5Sink(output, outDataset, compression),
		Workers:          opts.Workers,
		ProgressInterval: opts.ProgressInterval,
	}
	return t.Run(ctx, geom)
}

// sameRef returns true if two container references name the same container.
// Local paths are compared after resolving relative elements and symlinks.
func sameRef(a, b string) bool {
	if strings.HasPrefix(a, "mem://") || strings.HasPrefix(b, "mem://") {
		return false
	}
	return canonicalRef(a) == canonicalRef(b)
}

func canonicalRef(ref string) string {
	for _, scheme := range []string{"s3://", "gs://"} {
		if strings.HasPrefix(ref, scheme) {
			return scheme + path.Clean(strings.TrimPrefix(ref, scheme))
		}
	}
	dir := strings.TrimPrefix(ref, "file://")
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	// a missing directory may still sit below a symlinked parent.
	parent, base := filepath.Split(abs)
	if resolved, err := filepath.EvalSymlinks(parent); err == nil {
		return filepath.Join(resolved, base)
	}
	return abs
}
