package utils

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		input string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"1d2h30m", 26*time.Hour + 30*time.Minute},
		{"5m1d", 24*time.Hour + 5*time.Minute},
		{"1h1h", 2 * time.Hour},
		{"90m", 90 * time.Minute},
	}
	for _, tc := range cases {
		got, ok := ParseDuration(tc.input)
		if !ok {
			t.Fatalf("%q: expected ok", tc.input)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.input, tc.want, got)
		}
	}
}

func TestParseDurationRejects(t *testing.T) {
	for _, input := range []string{"", "0s", "0d0h", "1 h", " 1h", "1h ", "1w", "10", "h", "-1h", "1ms", "1.5h", "abc"} {
		if _, ok := ParseDuration(input); ok {
			t.Fatalf("%q: expected rejection", input)
		}
	}
}

func TestSeconds(t *testing.T) {
	got, ok := Seconds("1m5s")
	if !ok || got != 65 {
		t.Fatalf("expected 65 seconds, got %d %v", got, ok)
	}
}
