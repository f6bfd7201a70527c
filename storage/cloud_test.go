package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenLocalBucket(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out.n5")

	if _, err := OpenBucket(ctx, dir, false); err == nil {
		t.Fatalf("expected error opening nonexistent container without create\n")
	}
	bucket, err := OpenBucket(ctx, dir, true)
	if err != nil {
		t.Fatalf("unable to create local container: %v\n", err)
	}
	defer bucket.Close()
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("expected container directory to be created: %v\n", err)
	}
	if err := bucket.WriteAll(ctx, "attributes.json", []byte(`{"n5":"2.5.1"}`), nil); err != nil {
		t.Fatalf("unable to write to local container: %v\n", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "attributes.json")); err != nil {
		t.Errorf("expected attributes.json in container directory: %v\n", err)
	}

	reopened, err := OpenBucket(ctx, "file://"+dir, false)
	if err != nil {
		t.Fatalf("unable to reopen container via file:// ref: %v\n", err)
	}
	defer reopened.Close()
	data, err := reopened.ReadAll(ctx, "attributes.json")
	if err != nil {
		t.Fatalf("unable to read back attributes: %v\n", err)
	}
	if string(data) != `{"n5":"2.5.1"}` {
		t.Errorf("unexpected attributes read back: %s\n", data)
	}
}

func TestOpenMemBucket(t *testing.T) {
	ctx := context.Background()
	bucket, err := OpenBucket(ctx, "mem://", true)
	if err != nil {
		t.Fatalf("unable to open memory bucket: %v\n", err)
	}
	defer bucket.Close()
	if err := bucket.WriteAll(ctx, "a/0/0", []byte{1, 2, 3}, nil); err != nil {
		t.Fatalf("bad write: %v\n", err)
	}
	exists, err := bucket.Exists(ctx, "a/0/0")
	if err != nil || !exists {
		t.Errorf("expected written key to exist: %v\n", err)
	}
}

func TestSplitCloudRef(t *testing.T) {
	tests := []struct {
		ref, bucket, path string
	}{
		{"mybucket", "mybucket", ""},
		{"mybucket/volumes/sample.n5", "mybucket", "volumes/sample.n5"},
	}
	for _, tc := range tests {
		b, p := splitCloudRef(tc.ref)
		if b != tc.bucket || p != tc.path {
			t.Errorf("ref %q: expected (%q, %q), got (%q, %q)\n", tc.ref, tc.bucket, tc.path, b, p)
		}
	}
}
