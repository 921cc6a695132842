package model

import "testing"

func TestNextLevel(t *testing.T) {
	tests := []struct {
		in   BloomLevel
		want BloomLevel
		ok   bool
	}{
		{LevelRemember, LevelUnderstand, true},
		{LevelUnderstand, LevelApply, true},
		{LevelApply, LevelAnalyze, true},
		{LevelAnalyze, LevelEvaluate, true},
		{LevelEvaluate, LevelCreate, true},
		{LevelCreate, LevelCreate, false},
		{BloomLevel("bogus"), BloomLevel("bogus"), false},
	}
	for _, tt := range tests {
		got, ok := NextLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NextLevel(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValidLevel(t *testing.T) {
	for _, l := range LevelOrder {
		if !ValidLevel(l) {
			t.Errorf("ValidLevel(%q) = false", l)
		}
	}
	if ValidLevel("synthesize") {
		t.Error("ValidLevel accepted an unknown level")
	}
}
