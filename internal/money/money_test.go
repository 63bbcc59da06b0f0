package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseRoundsToTwoDecimals(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12.5", "12.50"},
		{"12.345", "12.35"},
		{"-3", "-3.00"},
		{"0", "0.00"},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if got.String() != c.want {
			t.Errorf("Parse(%q).String() = %q, want %q", c.in, got.String(), c.want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("not-a-number"); err == nil {
		t.Error("expected an error for a non-numeric string")
	}
}

func TestMulRateRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		amount string
		rate   string
		want   string
	}{
		{"20.10", "0.05", "1.01"},  // 1.005 -> 1.01
		{"-20.10", "0.05", "-1.01"}, // -1.005 -> -1.01
		{"10.00", "0.05", "0.50"},
		{"1.00", "0.04", "0.04"},
	}
	for _, c := range cases {
		amt := MustParse(c.amount)
		rate := decimal.RequireFromString(c.rate)
		got := amt.MulRate(rate)
		if got.String() != c.want {
			t.Errorf("MulRate(%s, %s) = %s, want %s", c.amount, c.rate, got, c.want)
		}
	}
}

func TestSplitSumsExactlyToTheOriginalWithRemainderFirst(t *testing.T) {
	total := MustParse("10.00")
	shares := Split(total, 3)
	if len(shares) != 3 {
		t.Fatalf("expected 3 shares, got %d", len(shares))
	}

	sum := Zero
	for _, s := range shares {
		sum = sum.Add(s)
	}
	if sum.Cmp(total) != 0 {
		t.Errorf("shares sum to %s, want %s", sum, total)
	}

	if shares[0].Cmp(shares[1]) <= 0 {
		t.Errorf("expected the remainder cent to land on share 0, got shares %v", shares)
	}
}

func TestSplitWithNoRemainderIsEven(t *testing.T) {
	total := MustParse("9.00")
	shares := Split(total, 3)
	for i, s := range shares {
		if s.String() != "3.00" {
			t.Errorf("share %d = %s, want 3.00", i, s)
		}
	}
}

func TestJSONRoundTripIsADecimalString(t *testing.T) {
	amt := MustParse("42.50")

	b, err := json.Marshal(amt)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `"42.50"` {
		t.Errorf("Marshal = %s, want %q", b, `"42.50"`)
	}

	var roundTripped Amount
	if err := json.Unmarshal(b, &roundTripped); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if roundTripped.Cmp(amt) != 0 {
		t.Errorf("round-tripped amount = %s, want %s", roundTripped, amt)
	}
}

func TestJSONUnmarshalRejectsBareNumbers(t *testing.T) {
	var a Amount
	if err := json.Unmarshal([]byte("42.50"), &a); err == nil {
		t.Error("expected a bare JSON number to be rejected")
	}
}

func TestMulIntIsExact(t *testing.T) {
	amt := MustParse("0.01")
	got := amt.MulInt(7)
	if got.String() != "0.07" {
		t.Errorf("MulInt(7) = %s, want 0.07", got)
	}
}
