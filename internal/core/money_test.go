package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"1000", 100000, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestParseAllocationAllowsZero(t *testing.T) {
	got, err := ParseAllocation("0")
	if err != nil || got.Cents != 0 {
		t.Fatalf("expected zero allocation, got %d (err=%v)", got.Cents, err)
	}
	if _, err := ParseAllocation("-0.01"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative allocation should fail, got %v", err)
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := Money{Cents: 1000}
	b := Money{Cents: 250}
	if got := a.Add(b).Cents; got != 1250 {
		t.Fatalf("Add: expected 1250, got %d", got)
	}
	if got := b.Sub(a).Cents; got != -750 {
		t.Fatalf("Sub: expected -750, got %d", got)
	}
	if !b.LessThan(a) || a.LessThan(b) {
		t.Fatal("LessThan ordering wrong")
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{1234, "12.34"},
		{100, "1.00"},
		{5, "0.05"},
		{-750, "-7.50"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("%d cents: expected %q, got %q", tc.cents, tc.want, got)
		}
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	m := Money{Cents: 1234}
	b, err := m.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"12.34"` {
		t.Fatalf("expected \"12.34\", got %s", b)
	}
	var back Money
	if err := back.UnmarshalJSON(b); err != nil {
		t.Fatal(err)
	}
	if back.Cents != m.Cents {
		t.Fatalf("round trip changed cents: %d != %d", back.Cents, m.Cents)
	}
}
