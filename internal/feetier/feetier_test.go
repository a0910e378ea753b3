package feetier

import (
	"math"
	"testing"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		rate int
		want string
	}{
		{100, "0.01%"},
		{500, "0.05%"},
		{2500, "0.25%"},
		{10000, "1.00%"},
		{0, "N/A"},
		{-1, "N/A"},
	}

	for _, tc := range cases {
		if got := Format(tc.rate); got != tc.want {
			t.Fatalf("Format(%d) = %q, want %q", tc.rate, got, tc.want)
		}
	}
}

func TestCategory(t *testing.T) {
	cases := []struct {
		rate int
		want string
	}{
		{100, "Ultra Low"},
		{500, "Low"},
		{2500, "Medium"},
		{10000, "High"},
		{300, "Ultra Low"},
		{1000, "Low"},
		{5000, "Medium"},
		{20000, "High"},
		{0, "Unknown"},
	}

	for _, tc := range cases {
		if got := Category(tc.rate); got != tc.want {
			t.Fatalf("Category(%d) = %q, want %q", tc.rate, got, tc.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(2500); got != "0.25% (Medium - Standard)" {
		t.Fatalf("Describe(2500) = %q", got)
	}
	if got := Describe(100); got != "0.01% (Ultra Low - Stablecoins)" {
		t.Fatalf("Describe(100) = %q", got)
	}
	if got := Describe(0); got != "N/A (Unknown)" {
		t.Fatalf("Describe(0) = %q", got)
	}
}

func TestFeesFromVolume(t *testing.T) {
	// 0.25% of $1M.
	if got := FeesFromVolume(1_000_000, 2500); math.Abs(got-2500) > 1e-9 {
		t.Fatalf("FeesFromVolume = %v, want 2500", got)
	}
	if got := FeesFromVolume(0, 2500); got != 0 {
		t.Fatalf("FeesFromVolume zero volume = %v", got)
	}
	if got := FeesFromVolume(1000, 0); got != 0 {
		t.Fatalf("FeesFromVolume zero rate = %v", got)
	}
}

func TestParsePercent(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"0.05%", 500},
		{"0.25%", 2500},
		{"1%", 10000},
		{"1.00%", 10000},
		{" 0.01% ", 100},
		{"", 0},
		{"abc", 0},
		{"-1%", 0},
	}

	for _, tc := range cases {
		if got := ParsePercent(tc.in); got != tc.want {
			t.Fatalf("ParsePercent(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{2500, 2500},
		{0.05, 500},
		{0.25, 2500},
		{1, 10000},
		{500, 500},
		{0, 0},
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
