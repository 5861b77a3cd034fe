package memory

import "testing"

func TestEmbeddingIndex_TopKRanksMostSimilarFirst(t *testing.T) {
	idx := NewEmbeddingIndex()
	idx.Upsert("auth.go", "package auth\nfunc Login(user, pass string) error { return nil }")
	idx.Upsert("math.go", "package mathutil\nfunc Add(a, b int) int { return a + b }")

	related := idx.TopK("func Logout(user string) error { return nil }", "", 1)
	if len(related) != 1 {
		t.Fatalf("got %d results, want 1", len(related))
	}
	if related[0].Path != "auth.go" {
		t.Errorf("top match = %s, want auth.go (shares vocabulary)", related[0].Path)
	}
}

func TestEmbeddingIndex_TopKExcludesGivenPath(t *testing.T) {
	idx := NewEmbeddingIndex()
	idx.Upsert("a.go", "package a")
	idx.Upsert("b.go", "package b")

	related := idx.TopK("package a", "a.go", 5)
	for _, r := range related {
		if r.Path == "a.go" {
			t.Errorf("excluded path a.go appeared in results")
		}
	}
}

func TestEmbeddingIndex_EmptyIndexReturnsNilNotError(t *testing.T) {
	idx := NewEmbeddingIndex()
	related := idx.TopK("anything", "", 5)
	if related != nil {
		t.Errorf("got %v, want nil for empty index", related)
	}
}

func TestEmbeddingIndex_UpsertSkipsRecomputeWhenHashUnchanged(t *testing.T) {
	idx := NewEmbeddingIndex()
	idx.Upsert("a.go", "package a")
	first, _ := idx.Get("a.go")

	idx.Upsert("a.go", "package a")
	second, _ := idx.Get("a.go")

	if first.ContentHash != second.ContentHash {
		t.Errorf("content hash changed for identical content")
	}
}

func TestEmbeddingIndex_InvalidateRemovesEntry(t *testing.T) {
	idx := NewEmbeddingIndex()
	idx.Upsert("a.go", "package a")
	idx.Invalidate("a.go")

	if _, ok := idx.Get("a.go"); ok {
		t.Errorf("entry still present after Invalidate")
	}
}

func TestHashNGramVector_IsL2Normalized(t *testing.T) {
	vec := hashNGramVector("some reasonably long content to hash into trigrams")
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm < 0.99 || norm > 1.01 {
		t.Errorf("||vec||^2 = %f, want ~1.0", norm)
	}
}
