package shuffle

import "testing"

func TestShuffleDeterministic(t *testing.T) {
	var seed Seed
	for i := range seed {
		seed[i] = byte(i)
	}
	a := Shuffle(seed)
	b := Shuffle(seed)
	if len(a) != 52 || len(b) != 52 {
		t.Fatalf("expected 52 cards, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("shuffle not deterministic at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestCommitmentVerifies(t *testing.T) {
	seed, err := NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	c := Commit(seed)
	if !Verify(seed, c) {
		t.Fatalf("seed should verify against its own commitment")
	}
	var wrong Seed
	copy(wrong[:], seed[:])
	wrong[0] ^= 0xFF
	if Verify(wrong, c) {
		t.Fatalf("a different seed must not verify")
	}
}

func TestShuffleProducesFullDistinctDeck(t *testing.T) {
	seed, err := NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	deck := Shuffle(seed)
	seen := map[string]bool{}
	for _, c := range deck {
		s := c.String()
		if seen[s] {
			t.Fatalf("duplicate card %s in shuffled deck", s)
		}
		seen[s] = true
	}
	if len(seen) != 52 {
		t.Fatalf("expected 52 distinct cards, got %d", len(seen))
	}
}
