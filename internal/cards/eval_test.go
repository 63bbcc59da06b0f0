package cards

import "testing"

func mustSeven(t *testing.T, strs ...string) [7]Card {
	t.Helper()
	if len(strs) != 7 {
		t.Fatalf("need 7 cards, got %d", len(strs))
	}
	var out [7]Card
	for i, s := range strs {
		c, err := ParseCard(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		out[i] = c
	}
	return out
}

func TestCardStringRoundTrip(t *testing.T) {
	for _, s := range []string{"Ah", "Td", "2c", "Ks", "9h", "Jd"} {
		c, err := ParseCard(s)
		if err != nil {
			t.Fatalf("ParseCard(%q): %v", s, err)
		}
		if got := c.String(); got != s {
			t.Fatalf("round trip: parsed %q, serialized %q", s, got)
		}
	}
}

func TestS1_AAvsKKRainbow(t *testing.T) {
	aa := mustSeven(t, "Ah", "Ad", "2c", "3s", "7h", "Tc", "Js")
	kk := mustSeven(t, "Kh", "Kd", "2c", "3s", "7h", "Tc", "Js")

	rAA := Evaluate7(aa)
	rKK := Evaluate7(kk)

	if rAA.Category != Pair {
		t.Fatalf("expected pair, got %v", rAA.Category)
	}
	want := []Rank{Ace, Jack, Ten, Seven}
	if len(rAA.Tiebreakers) != len(want) {
		t.Fatalf("tiebreakers length: got %v want %v", rAA.Tiebreakers, want)
	}
	for i, r := range want {
		if rAA.Tiebreakers[i] != r {
			t.Fatalf("tiebreaker[%d]: got %v want %v", i, rAA.Tiebreakers[i], r)
		}
	}
	if Compare(rAA, rKK) <= 0 {
		t.Fatalf("AA should beat KK on this board")
	}
}

func TestS2_WheelLosesToSixHigh(t *testing.T) {
	wheel := mustSeven(t, "Ah", "2d", "3c", "4s", "5h", "9d", "Tc")
	sixHigh := mustSeven(t, "2h", "3d", "4c", "5s", "6h", "9c", "Td")

	rWheel := Evaluate7(wheel)
	rSix := Evaluate7(sixHigh)

	if rWheel.Category != Straight || rWheel.Tiebreakers[0] != Five {
		t.Fatalf("expected 5-high straight, got %+v", rWheel)
	}
	if rSix.Category != Straight || rSix.Tiebreakers[0] != Six {
		t.Fatalf("expected 6-high straight, got %+v", rSix)
	}
	if Compare(rSix, rWheel) <= 0 {
		t.Fatalf("6-high straight must beat the wheel")
	}
}

func TestRoyalFlushIsAceHighStraightFlush(t *testing.T) {
	royal := mustSeven(t, "Ah", "Kh", "Qh", "Jh", "Th", "2c", "3d")
	r := Evaluate7(royal)
	if r.Category != StraightFlush || r.Tiebreakers[0] != Ace {
		t.Fatalf("expected ace-high straight flush, got %+v", r)
	}
}

func TestEvaluate7SevenCardContractIsCompileTime(t *testing.T) {
	// Evaluate7 takes a fixed [7]Card array, so the 7-card contract is
	// enforced at compile time; this test documents that invariant instead
	// of attempting to call it with a wrong-sized slice.
	seven := mustSeven(t, "2h", "3d", "4c", "5s", "6h", "9c", "Td")
	_ = Evaluate7(seven)
}
