package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrLoad(t *testing.T) {
	c := New(Config{})
	var loads int
	load := func() (interface{}, error) {
		loads++
		return []uint64{1, 2, 3}, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("a", load)
		if err != nil {
			t.Fatalf("unexpected error: %v\n", err)
		}
		if len(v.([]uint64)) != 3 {
			t.Fatalf("bad value returned: %v\n", v)
		}
	}
	if loads != 1 {
		t.Errorf("expected one load, got %d\n", loads)
	}
	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Loads != 1 || stats.Entries != 1 {
		t.Errorf("unexpected stats: %s\n", stats)
	}
	if stats.Bytes == 0 {
		t.Errorf("expected nonzero resident bytes\n")
	}
}

func TestLoadError(t *testing.T) {
	c := New(Config{})
	_, err := c.GetOrLoad("bad", func() (interface{}, error) {
		return nil, fmt.Errorf("disk on fire")
	})
	if err == nil {
		t.Fatalf("expected load error to be returned\n")
	}
	if _, found := c.Get("bad"); found {
		t.Errorf("failed load should not be cached\n")
	}
	v, err := c.GetOrLoad("bad", func() (interface{}, error) { return "ok", nil })
	if err != nil || v.(string) != "ok" {
		t.Errorf("expected retry after failed load to succeed: %v %v\n", v, err)
	}
}

func TestConcurrentSingleLoad(t *testing.T) {
	c := New(Config{})
	var loads int32
	release := make(chan struct{})
	load := func() (interface{}, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return make([]byte, 1024), nil
	}

	var wg sync.WaitGroup
	results := make([]interface{}, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrLoad("chunk", load)
			if err != nil {
				t.Errorf("unexpected error: %v\n", err)
			}
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&loads); n != 1 {
		t.Errorf("expected exactly one load for concurrent requests, got %d\n", n)
	}
	first := results[0].([]byte)
	for i, r := range results {
		if &r.([]byte)[0] != &first[0] {
			t.Errorf("request %d got a different value than request 0\n", i)
		}
	}
}

func TestEvictionByBytes(t *testing.T) {
	c := New(Config{MaxBytes: 3000})
	loadKB := func() (interface{}, error) { return make([]byte, 1024), nil }
	for i := 0; i < 5; i++ {
		if _, err := c.GetOrLoad(fmt.Sprintf("k%d", i), loadKB); err != nil {
			t.Fatalf("unexpected error: %v\n", err)
		}
	}
	stats := c.Stats()
	if stats.Bytes > 3000 {
		t.Errorf("resident bytes %d exceed budget\n", stats.Bytes)
	}
	if stats.Evictions == 0 || stats.Entries >= 5 {
		t.Errorf("expected evictions, got %s\n", stats)
	}
	if _, found := c.Get("k4"); !found {
		t.Errorf("most recent entry should be resident\n")
	}
	if _, found := c.Get("k0"); found {
		t.Errorf("oldest entry should have been evicted\n")
	}

	// evicted values are reloaded transparently.
	reloaded := false
	if _, err := c.GetOrLoad("k0", func() (interface{}, error) {
		reloaded = true
		return make([]byte, 1024), nil
	}); err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	if !reloaded {
		t.Errorf("expected evicted entry to be reloaded\n")
	}
}

func TestOversizedEntryKept(t *testing.T) {
	c := New(Config{MaxBytes: 100})
	v, err := c.GetOrLoad("big", func() (interface{}, error) { return make([]byte, 4096), nil })
	if err != nil || len(v.([]byte)) != 4096 {
		t.Fatalf("unexpected result: %v\n", err)
	}
	if _, found := c.Get("big"); !found {
		t.Errorf("single oversized entry should stay resident\n")
	}
}

func TestEvictionByEntries(t *testing.T) {
	c := New(Config{MaxEntries: 2})
	for i := 0; i < 4; i++ {
		key := fmt.Sprintf("k%d", i)
		if _, err := c.GetOrLoad(key, func() (interface{}, error) { return i, nil }); err != nil {
			t.Fatalf("unexpected error: %v\n", err)
		}
	}
	stats := c.Stats()
	if stats.Entries != 2 || stats.Evictions != 2 {
		t.Errorf("expected 2 entries and 2 evictions, got %s\n", stats)
	}

	c.Purge()
	if stats := c.Stats(); stats.Entries != 0 || stats.Bytes != 0 {
		t.Errorf("expected empty cache after Purge, got %s\n", stats)
	}
}
