package intent

import (
	"context"
	"math"
	"testing"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 100},
		{"abc", "xyz", 0},
		{"", "", 100},
		{"hell", "help", 75},
	}
	for _, tt := range tests {
		if got := Ratio(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPartialRatio(t *testing.T) {
	if got := PartialRatio("fire up the server", "hey can you fire up the server"); got != 100 {
		t.Errorf("substring should score 100, got %v", got)
	}
	if got := PartialRatio("hey can you fire up the server", "fire up the server"); got != 100 {
		t.Errorf("argument order should not matter, got %v", got)
	}
	if got := PartialRatio("START", "start"); got != 100 {
		t.Errorf("comparison should ignore case, got %v", got)
	}
	if got := PartialRatio("", "start"); got != 0 {
		t.Errorf("empty input should score 0, got %v", got)
	}
	if got := PartialRatio("help", "hello"); got != 75 {
		t.Errorf("PartialRatio(help, hello) = %v, want 75", got)
	}
}

func TestFuzzyMetric_Best(t *testing.T) {
	m := FuzzyMetric{}
	got, err := m.Best(context.Background(), "please boot up now", []string{"shut down", "boot up"})
	if err != nil {
		t.Fatalf("Best error: %v", err)
	}
	if got != 100 {
		t.Errorf("Best = %v, want 100", got)
	}

	got, err = m.Best(context.Background(), "anything", nil)
	if err != nil || got != 0 {
		t.Errorf("Best over no phrases = %v, %v; want 0, nil", got, err)
	}
}
