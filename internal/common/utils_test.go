package common

import (
	"math"
	"testing"
)

func TestOptionalFloat(t *testing.T) {
	v, err := OptionalFloat(" 22.3072 ")
	if err != nil || v == nil || *v != 22.3072 {
		t.Fatalf("expected 22.3072, got %v %v", v, err)
	}

	v, err = OptionalFloat("")
	if err != nil || v != nil {
		t.Fatalf("expected nil for empty input, got %v %v", v, err)
	}

	if _, err := OptionalFloat("north"); err == nil {
		t.Fatal("expected error for non-numeric input")
	}
}

func TestIntOrDefault(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 24},
		{"48", 48},
		{"72h", 72},
		{"abc", 24},
		{"0", 24},
		{"-5", -5},
		{"500", 500},
		{"99999999999999999999", math.MaxInt},
		{"-99999999999999999999", math.MinInt},
	}
	for _, tc := range cases {
		if got := IntOrDefault(tc.in, 24); got != tc.want {
			t.Errorf("IntOrDefault(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
