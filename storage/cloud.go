package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/janelia-flyem/lmtconvert/core"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// OpenBucket returns a blob.Bucket rooted at the given container reference.
// The reference should be of the form:
//
//	/path/to/container.n5      (local directory)
//	file:///path/to/container.n5
//	mem://                     (in-memory, mostly for testing)
//	s3://<bucketname>/<path>
//	gs://<bucketname>/<path>
//
// If create is true, a missing local directory is created.
func OpenBucket(ctx context.Context, ref string, create bool) (bucket *blob.Bucket, err error) {
	switch {
	case strings.HasPrefix(ref, "mem://"):
		return memblob.OpenBucket(nil), nil

	case strings.HasPrefix(ref, "s3://"):
		// Requires AWS credentials discoverable by gocloud and the AWS_REGION
		// environment variable.
		bucketname, pathpart := splitCloudRef(strings.TrimPrefix(ref, "s3://"))
		bucket, err = blob.OpenBucket(ctx, "s3://"+bucketname)
		if err != nil {
			core.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		return prefixed(bucket, pathpart), nil

	case strings.HasPrefix(ref, "gs://"):
		// Default Google application credentials.
		// See https://cloud.google.com/docs/authentication/production
		bucketname, pathpart := splitCloudRef(strings.TrimPrefix(ref, "gs://"))
		creds, err := gcp.DefaultCredentials(ctx)
		if err != nil {
			return nil, err
		}
		client, err := gcp.NewHTTPClient(
			gcp.DefaultTransport(),
			gcp.CredentialsTokenSource(creds))
		if err != nil {
			return nil, err
		}
		bucket, err = gcsblob.OpenBucket(ctx, client, bucketname, nil)
		if err != nil {
			core.Errorf("Can't open bucket reference @ %q: %v\n", ref, err)
			return nil, err
		}
		return prefixed(bucket, pathpart), nil

	default:
		dir := strings.TrimPrefix(ref, "file://")
		if dir == "" {
			return nil, fmt.Errorf("empty container reference")
		}
		if dir, err = filepath.Abs(dir); err != nil {
			return nil, err
		}
		if create {
			if err = os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("unable to create container directory %q: %v", dir, err)
			}
		} else if fi, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("container %q not accessible: %v", dir, err)
		} else if !fi.IsDir() {
			return nil, fmt.Errorf("container %q is not a directory", dir)
		}
		bucket, err = fileblob.OpenBucket(dir, nil)
		if err != nil {
			core.Errorf("Can't open local container @ %q: %v\n", dir, err)
			return nil, err
		}
		return bucket, nil
	}
}

// splitCloudRef splits "<bucket>/<path>" into its bucket name and path.
func splitCloudRef(ref string) (bucketname, pathpart string) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func prefixed(bucket *blob.Bucket, pathpart string) *blob.Bucket {
	pathpart = strings.Trim(pathpart, "/")
	if pathpart == "" {
		return bucket
	}
	return blob.PrefixedBucket(bucket, pathpart+"/")
}
