package core

import "testing"

func TestPointNd(t *testing.T) {
	a := PointNd{10, 21, 837821, 100}
	b := PointNd{78312, -200, 40123, -100}

	result := a.Add(b)
	for i := range a {
		if result[i] != a[i]+b[i] {
			t.Errorf("bad Add on dim %d: got %d, expected %d\n", i, result[i], a[i]+b[i])
		}
	}
	if a.String() != "(10,21,837821,100)" {
		t.Errorf("bad String(): %s\n", a)
	}
	if a.Equals(b) || !a.Equals(a.Duplicate()) || a.Equals(PointNd{10, 21, 837821}) {
		t.Errorf("bad Equals()\n")
	}
	if (PointNd{2, 3, 4}).Prod() != 24 {
		t.Errorf("bad Prod()\n")
	}

	dup := a.Duplicate()
	dup[0] = 7
	if a[0] != 10 {
		t.Errorf("Duplicate() shares memory with original\n")
	}
}

func TestChunking(t *testing.T) {
	blockSize := PointNd{20, 30, 40}
	p := PointNd{111, 213, 678}
	c := p.Chunk(blockSize)
	if c.String() != "(5,7,16)" {
		t.Errorf("expected chunk (5,7,16), got %s\n", c)
	}
	inChunk := p.PointInChunk(blockSize)
	if !inChunk.Equals(PointNd{11, 3, 38}) {
		t.Errorf("expected point in chunk (11,3,38), got %s\n", inChunk)
	}

	neg := PointNd{-1, -30, -41}
	c = neg.Chunk(blockSize)
	if c.String() != "(-1,-1,-2)" {
		t.Errorf("expected chunk (-1,-1,-2), got %s\n", c)
	}

	chunk := ChunkPointNd{1, 2, 3}
	if !chunk.MinPoint(blockSize).Equals(PointNd{20, 60, 120}) {
		t.Errorf("bad MinPoint: %s\n", chunk.MinPoint(blockSize))
	}
	if !chunk.Equals(ChunkPointNd{1, 2, 3}) || chunk.Equals(ChunkPointNd{1, 2}) {
		t.Errorf("bad chunk Equals()\n")
	}
	if chunk.Key() != "1_2_3" {
		t.Errorf("bad chunk key: %s\n", chunk.Key())
	}
}
