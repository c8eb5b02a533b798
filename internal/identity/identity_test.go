package identity

import "testing"

func TestHashDeterministic(t *testing.T) {
	a := Hash("the quick brown fox")
	b := Hash("the quick brown fox")
	if a != b {
		t.Errorf("same content produced different hashes: %s vs %s", a, b)
	}
}

func TestHashDistinguishesContent(t *testing.T) {
	if Hash("alpha") == Hash("beta") {
		t.Error("different content produced the same hash")
	}
}

func TestHashEmptyContent(t *testing.T) {
	if Hash("") == "" {
		t.Error("empty content should still produce a digest")
	}
	if len(Hash("")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(Hash("")))
	}
}
